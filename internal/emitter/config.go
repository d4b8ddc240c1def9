// Package emitter generates synthetic producer events, posts them to a
// running service and checks that the resulting ledgers are consistent.
package emitter

import (
	"errors"
	"fmt"
	"time"
)

// Defaults used when a Config field is left zero.
const (
	DefaultBaseURL = "http://localhost:9080"
	DefaultEvents  = 1000
	DefaultOwners  = 50
	DefaultTimeout = 10 * time.Second
)

// ErrInvalidConfig is returned for configurations Run cannot execute.
var ErrInvalidConfig = errors.New("invalid emitter config")

// Config holds configuration for one emitter run.
type Config struct {
	BaseURL       string        // Base URL of the service
	NumEvents     int           // Number of events to generate
	Owners        int           // Distinct owners the events are spread across
	Workers       int           // Concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	Seed          uint64        // Seed for reproducible batches
	DuplicateRate float64       // Share of events that replay an earlier id (0..1)
	Dispatch      bool          // Trigger POST /dispatch after submitting
	Verify        bool          // Check balance == fold(ledger) per owner afterwards
	Verbose       bool
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if out.NumEvents == 0 {
		out.NumEvents = DefaultEvents
	}
	if out.Owners == 0 {
		out.Owners = DefaultOwners
	}
	if out.Workers == 0 {
		out.Workers = 4
	}
	if out.Timeout == 0 {
		out.Timeout = DefaultTimeout
	}
	return out
}

// Validate rejects values Run cannot work with.
func (c *Config) Validate() error {
	switch {
	case c.NumEvents < 0:
		return fmt.Errorf("%w: events %d is negative", ErrInvalidConfig, c.NumEvents)
	case c.Owners < 0:
		return fmt.Errorf("%w: owners %d is negative", ErrInvalidConfig, c.Owners)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers %d is negative", ErrInvalidConfig, c.Workers)
	case c.DuplicateRate < 0 || c.DuplicateRate > 1:
		return fmt.Errorf("%w: duplicate rate %v outside 0..1", ErrInvalidConfig, c.DuplicateRate)
	case c.Verify && !c.Dispatch:
		return fmt.Errorf("%w: verify needs dispatch", ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	Generated  int           `json:"generated"`
	Accepted   int           `json:"accepted"`
	Duplicate  int           `json:"duplicate"`
	Failed     int           `json:"failed"`
	Processed  int           `json:"processed"`
	Skipped    int           `json:"skipped"`
	Retrying   int           `json:"retrying"`
	Verified   int           `json:"verified"`
	Mismatched []string      `json:"mismatched,omitempty"`
	Duration   time.Duration `json:"duration"`
}
