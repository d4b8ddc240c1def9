// Package points implements the ledger arithmetic: multiplier composition,
// rounding and balance folding. It performs no I/O.
package points

import (
	"fmt"

	"github.com/okian/repforge/internal/domain/model"
	"github.com/shopspring/decimal"
)

// Places is the number of decimals persisted for every point value.
const Places = 2

// Factor converts a configured float into a ledger factor. Configured
// values such as 1.2 or 0.5 convert exactly.
func Factor(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Round applies round-half-up at Places decimals.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Product multiplies every factor in recorded order. The empty product is 1.
func Product(ms model.Multipliers) decimal.Decimal {
	p := decimal.NewFromInt(1)
	for _, m := range ms {
		p = p.Mul(m.Factor)
	}
	return p
}

// ComputePoints returns base × ∏ multipliers × tier, rounded.
func ComputePoints(base decimal.Decimal, ms model.Multipliers, tier decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(Product(ms)).Mul(tier))
}

// Validate rejects factors that would turn an award negative.
func Validate(ms model.Multipliers) error {
	for _, m := range ms {
		if m.Factor.IsNegative() {
			return fmt.Errorf("%s=%s: %w", m.Name, m.Factor, ErrNegativeFactor)
		}
	}
	return nil
}

// Verify recomputes an entry's points from its persisted factors.
func Verify(e *model.LedgerEntry) error {
	want := ComputePoints(e.BasePoints, e.Multipliers, e.TierMultiplier)
	if !want.Equal(e.Points) {
		return fmt.Errorf("entry %s: stored %s, derived %s: %w", e.ID, e.Points, want, ErrPointsMismatch)
	}
	return nil
}

// Signed returns the entry's contribution to a balance.
func Signed(e *model.LedgerEntry) (decimal.Decimal, error) {
	switch e.TransactionType {
	case model.TransactionEarned:
		return e.Points, nil
	case model.TransactionSpent:
		return e.Points.Neg(), nil
	default:
		return decimal.Zero, fmt.Errorf("entry %s: %q: %w", e.ID, e.TransactionType, ErrUnknownTxnType)
	}
}

// Balance folds entries into the owner's current balance.
func Balance(entries []model.LedgerEntry) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range entries {
		v, err := Signed(&entries[i])
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}
	return total, nil
}
