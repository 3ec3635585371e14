package intensity

import (
	"github.com/open-climate/physrisk/internal/domain"
)

// riverFloodWindowDays is the accumulation window for the fluvial flood
// indicator: sustained multi-day rainfall drives river levels.
const riverFloodWindowDays = 3

// RiverFloodExtractor derives one value per year: the maximum 3-day
// accumulated precipitation, in mm.
type RiverFloodExtractor struct{}

func NewRiverFloodExtractor() *RiverFloodExtractor { return &RiverFloodExtractor{} }

func (e *RiverFloodExtractor) RiskType() domain.RiskType { return domain.RiskRiverFlood }

func (e *RiverFloodExtractor) RequiredVariables() []domain.Variable {
	return []domain.Variable{domain.VarPrecipitation}
}

func (e *RiverFloodExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	return precipWindowSeries(in, e.RiskType(), riverFloodWindowDays)
}

// UrbanFloodExtractor derives one value per year: the maximum single-day
// precipitation, in mm. Pluvial flooding responds to burst intensity
// rather than accumulation, hence the 1-day window.
type UrbanFloodExtractor struct{}

func NewUrbanFloodExtractor() *UrbanFloodExtractor { return &UrbanFloodExtractor{} }

func (e *UrbanFloodExtractor) RiskType() domain.RiskType { return domain.RiskUrbanFlood }

func (e *UrbanFloodExtractor) RequiredVariables() []domain.Variable {
	return []domain.Variable{domain.VarPrecipitation}
}

func (e *UrbanFloodExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	return precipWindowSeries(in, e.RiskType(), 1)
}

func precipWindowSeries(in *Inputs, rt domain.RiskType, windowDays int) (*domain.IntensitySeries, error) {
	samples, err := requireSeries(in, rt, domain.VarPrecipitation)
	if err != nil {
		return nil, err
	}
	samples, err = filterPeriod(samples, in.Period)
	if err != nil {
		return nil, err
	}

	byYear, years := groupByYear(samples)
	return yearlySeries(rt, domain.NormalizationNone, years, func(y int) float64 {
		return maxWindowSum(byYear[y], windowDays)
	}), nil
}
