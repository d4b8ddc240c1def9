package points

import (
	"github.com/okian/repforge/internal/domain/model"
	"github.com/shopspring/decimal"
)

// TierTable maps subscription tiers to their reward rate.
type TierTable struct {
	rates map[model.Tier]decimal.Decimal
}

// Option applies a configuration option to the TierTable.
type Option func(*TierTable)

// WithTierMultipliersFromConfig overrides rates from a configuration map.
// Keys are parsed with model.ParseTier; negative rates are ignored.
func WithTierMultipliersFromConfig(rates map[string]float64) Option {
	return func(t *TierTable) {
		for name, rate := range rates {
			if rate < 0 {
				continue
			}
			t.rates[model.ParseTier(name)] = Factor(rate)
		}
	}
}

// NewTierTable returns the default rates: essential 0.5, plus 1.0, premium 1.5.
func NewTierTable(opts ...Option) *TierTable {
	t := &TierTable{
		rates: map[model.Tier]decimal.Decimal{
			model.TierEssential: decimal.RequireFromString("0.5"),
			model.TierPlus:      decimal.RequireFromString("1.0"),
			model.TierPremium:   decimal.RequireFromString("1.5"),
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Multiplier returns the rate for tier, falling back to the essential rate.
func (t *TierTable) Multiplier(tier model.Tier) decimal.Decimal {
	if r, ok := t.rates[tier]; ok {
		return r
	}
	return t.rates[model.TierEssential]
}
