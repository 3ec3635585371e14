// Package aal folds bin probabilities, damage rates, vulnerability
// scaling and insurance recovery into annual average loss figures.
package aal

import (
	"fmt"
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// Input carries everything one AAL computation needs. Probabilities and
// DamageRates must be index-aligned to the same bin table.
type Input struct {
	RiskType      domain.RiskType
	SiteID        string
	Scenario      domain.Scenario
	Period        domain.YearRange
	Probabilities []float64
	DamageRates   []float64
	ScaleFactor   float64
	InsuranceRate float64

	// AssetValue, when known, converts the fractional AAL into an
	// expected monetary loss.
	AssetValue *float64

	Details domain.CalculationDetails
}

// Aggregate computes the annual average loss:
//
//	base  = sum_i p[i] * rate[i]
//	final = base * scaleFactor * (1 - insuranceRate)
//
// The unscaled base figure is carried on the result so reviewers can
// separate climate probability from vulnerability adjustment.
func Aggregate(in Input) (*domain.AALResult, error) {
	if len(in.Probabilities) != len(in.DamageRates) {
		return nil, fmt.Errorf("%w: %d probabilities vs %d damage rates",
			domain.ErrDimensionMismatch, len(in.Probabilities), len(in.DamageRates))
	}
	if len(in.Probabilities) == 0 {
		return nil, fmt.Errorf("%w: empty probability vector", domain.ErrDimensionMismatch)
	}

	if math.IsNaN(in.InsuranceRate) || in.InsuranceRate < 0 || in.InsuranceRate > 1 {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRate, in.InsuranceRate)
	}
	if math.IsNaN(in.ScaleFactor) || math.IsInf(in.ScaleFactor, 0) || in.ScaleFactor <= 0 {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidScaleFactor, in.ScaleFactor)
	}

	var base float64
	for i := range in.Probabilities {
		p := in.Probabilities[i]
		rate := in.DamageRates[i]
		if math.IsNaN(p) || p < 0 {
			return nil, fmt.Errorf("%w: probability %v at bin %d", domain.ErrDimensionMismatch, p, i)
		}
		if math.IsNaN(rate) || rate < 0 {
			return nil, fmt.Errorf("%w: damage rate %v at bin %d", domain.ErrConfigMismatch, rate, i)
		}
		base += p * rate
	}

	final := base * in.ScaleFactor * (1 - in.InsuranceRate)

	result := &domain.AALResult{
		RiskType:         in.RiskType,
		SiteID:           in.SiteID,
		Scenario:         in.Scenario,
		Period:           in.Period,
		BaseAAL:          base,
		ScaleFactor:      in.ScaleFactor,
		InsuranceRate:    in.InsuranceRate,
		FinalAAL:         final,
		BinProbabilities: in.Probabilities,
		BinDamageRates:   in.DamageRates,
		Details:          in.Details,
	}

	if in.AssetValue != nil {
		loss := final * *in.AssetValue
		result.ExpectedLoss = &loss
	}

	return result, nil
}
