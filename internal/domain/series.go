package domain

import (
	"fmt"
	"math"
)

// Granularity is the time step of an intensity series.
type Granularity string

const (
	GranularityYearly  Granularity = "yearly"
	GranularityMonthly Granularity = "monthly"
)

// NormalizationMode records how a composite index was normalized.
// Percentile-relative and absolute-threshold modes can disagree
// meaningfully, so the mode is surfaced in results rather than
// silently swapped.
type NormalizationMode string

const (
	NormalizationNone       NormalizationMode = "none"
	NormalizationPercentile NormalizationMode = "percentile"
	NormalizationAbsolute   NormalizationMode = "absolute"
	// NormalizationBaseline marks values projected from a baseline
	// reference level rather than computed from the period alone.
	NormalizationBaseline NormalizationMode = "baseline"
)

// IntensityPoint is one sample of a risk-specific strength indicator.
// Month is zero for yearly series.
type IntensityPoint struct {
	Year  int     `json:"year"`
	Month int     `json:"month,omitempty"`
	Value float64 `json:"value"`
}

// IntensitySeries is the ordered single-indicator series produced by an
// intensity extractor for one risk type.
type IntensitySeries struct {
	RiskType      RiskType          `json:"riskType"`
	Granularity   Granularity       `json:"granularity"`
	Normalization NormalizationMode `json:"normalization,omitempty"`
	Points        []IntensityPoint  `json:"points"`
}

// Len returns the number of samples in the series.
func (s *IntensitySeries) Len() int {
	return len(s.Points)
}

// Values returns the intensity values in time order.
func (s *IntensitySeries) Values() []float64 {
	vals := make([]float64, len(s.Points))
	for i, p := range s.Points {
		vals[i] = p.Value
	}
	return vals
}

// Validate checks the series invariants: at least one sample, strictly
// increasing timestamps, homogeneous granularity, finite values.
func (s *IntensitySeries) Validate() error {
	if len(s.Points) == 0 {
		return fmt.Errorf("%w: empty intensity series for %s", ErrInsufficientData, s.RiskType)
	}

	for i, p := range s.Points {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			return fmt.Errorf("%w: sample %d of %s series", ErrInvalidIntensity, i, s.RiskType)
		}

		switch s.Granularity {
		case GranularityYearly:
			if p.Month != 0 {
				return fmt.Errorf("yearly series contains monthly sample at index %d", i)
			}
		case GranularityMonthly:
			if p.Month < 1 || p.Month > 12 {
				return fmt.Errorf("monthly series has month %d at index %d", p.Month, i)
			}
		default:
			return fmt.Errorf("unknown granularity %q", s.Granularity)
		}

		if i == 0 {
			continue
		}
		prev := s.Points[i-1]
		if !after(p, prev) {
			return fmt.Errorf("series timestamps not strictly increasing at index %d", i)
		}
	}

	return nil
}

func after(p, prev IntensityPoint) bool {
	if p.Year != prev.Year {
		return p.Year > prev.Year
	}
	return p.Month > prev.Month
}
