package intensity

import (
	"github.com/open-climate/physrisk/internal/domain"
)

// SeaLevelExtractor derives one value per year: the annual mean
// sea-surface height anomaly relative to the baseline mean, in metres.
// Without a baseline the raw annual mean is used as-is.
type SeaLevelExtractor struct{}

func NewSeaLevelExtractor() *SeaLevelExtractor { return &SeaLevelExtractor{} }

func (e *SeaLevelExtractor) RiskType() domain.RiskType { return domain.RiskSeaLevelRise }

func (e *SeaLevelExtractor) RequiredVariables() []domain.Variable {
	return []domain.Variable{domain.VarSeaLevel}
}

func (e *SeaLevelExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	samples, err := requireSeries(in, e.RiskType(), domain.VarSeaLevel)
	if err != nil {
		return nil, err
	}
	samples, err = filterPeriod(samples, in.Period)
	if err != nil {
		return nil, err
	}

	var reference float64
	norm := domain.NormalizationNone
	if baseline := in.Baseline[domain.VarSeaLevel]; len(baseline) > 0 {
		reference = mean(sampleValues(baseline))
		norm = domain.NormalizationAbsolute
	}

	byYear, years := groupByYear(samples)
	return yearlySeries(e.RiskType(), norm, years, func(y int) float64 {
		return mean(sampleValues(byYear[y])) - reference
	}), nil
}
