package domain

import (
	"fmt"
	"math"
)

// Bin is a half-open intensity interval [Lower, Upper). The final bin of
// a table is closed above (Upper = +Inf).
type Bin struct {
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Contains reports whether value falls inside the bin under the
// half-open convention.
func (b Bin) Contains(value float64) bool {
	return value >= b.Lower && value < b.Upper
}

// HazardConfig couples a risk type's bin boundaries with its per-bin base
// damage rates. It is declarative configuration, loaded once at startup
// into an immutable registry and shared read-only across computations.
//
// Exact boundaries and rates are deployment configuration sourced from
// whichever methodology document is authoritative; they are validated for
// structure here, not for provenance.
type HazardConfig struct {
	RiskType    RiskType  `json:"riskType" yaml:"risk_type"`
	Version     string    `json:"version" yaml:"version"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Bins        []Bin     `json:"bins" yaml:"bins"`
	DamageRates []float64 `json:"damageRates" yaml:"damage_rates"`
}

// Validate enforces the configuration-integrity invariants. Any violation
// is an ErrConfigMismatch, fatal to startup: corrupted configuration would
// make every subsequent computation wrong.
func (c *HazardConfig) Validate() error {
	if !c.RiskType.Valid() {
		return fmt.Errorf("%w: unknown risk type %q", ErrConfigMismatch, c.RiskType)
	}
	if len(c.Bins) == 0 {
		return fmt.Errorf("%w: %s has no bins", ErrConfigMismatch, c.RiskType)
	}
	if len(c.DamageRates) != len(c.Bins) {
		return fmt.Errorf("%w: %s has %d bins but %d damage rates",
			ErrConfigMismatch, c.RiskType, len(c.Bins), len(c.DamageRates))
	}

	first := c.Bins[0].Lower
	if first != 0 && !math.IsInf(first, -1) {
		return fmt.Errorf("%w: %s first bin must start at 0 or -Inf, got %v",
			ErrConfigMismatch, c.RiskType, first)
	}

	for i, b := range c.Bins {
		if math.IsNaN(b.Lower) || math.IsNaN(b.Upper) {
			return fmt.Errorf("%w: %s bin %d has NaN boundary", ErrConfigMismatch, c.RiskType, i)
		}
		if b.Upper <= b.Lower {
			return fmt.Errorf("%w: %s bin %d upper %v <= lower %v",
				ErrConfigMismatch, c.RiskType, i, b.Upper, b.Lower)
		}
		if i > 0 && b.Lower != c.Bins[i-1].Upper {
			return fmt.Errorf("%w: %s bins %d and %d do not partition the axis",
				ErrConfigMismatch, c.RiskType, i-1, i)
		}
	}
	if !math.IsInf(c.Bins[len(c.Bins)-1].Upper, 1) {
		return fmt.Errorf("%w: %s last bin must be unbounded above", ErrConfigMismatch, c.RiskType)
	}

	for i, rate := range c.DamageRates {
		if rate < 0 || math.IsNaN(rate) {
			return fmt.Errorf("%w: %s damage rate %d is %v", ErrConfigMismatch, c.RiskType, i, rate)
		}
		if i > 0 && rate < c.DamageRates[i-1] {
			return fmt.Errorf("%w: %s damage rates decrease at bin %d",
				ErrConfigMismatch, c.RiskType, i)
		}
	}

	return nil
}
