package intensity

import (
	"github.com/open-climate/physrisk/internal/domain"
)

const absoluteColdDayThresholdC = 0.0

const coldDayPercentile = 0.10

// ExtremeColdExtractor mirrors the heat strategy on the cold tail: the
// longest annual run of days with minimum temperature below the cold-day
// threshold, percentile-relative when a baseline exists.
type ExtremeColdExtractor struct{}

func NewExtremeColdExtractor() *ExtremeColdExtractor { return &ExtremeColdExtractor{} }

func (e *ExtremeColdExtractor) RiskType() domain.RiskType { return domain.RiskExtremeCold }

func (e *ExtremeColdExtractor) RequiredVariables() []domain.Variable {
	return []domain.Variable{domain.VarTempMin}
}

func (e *ExtremeColdExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	samples, err := requireSeries(in, e.RiskType(), domain.VarTempMin)
	if err != nil {
		return nil, err
	}
	samples, err = filterPeriod(samples, in.Period)
	if err != nil {
		return nil, err
	}

	threshold := absoluteColdDayThresholdC
	norm := domain.NormalizationAbsolute
	if baseline := in.Baseline[domain.VarTempMin]; len(baseline) > 0 {
		threshold = percentileOf(sampleValues(baseline), coldDayPercentile)
		norm = domain.NormalizationPercentile
	}

	byYear, years := groupByYear(samples)
	return yearlySeries(e.RiskType(), norm, years, func(y int) float64 {
		return maxRun(byYear[y], func(v float64) bool { return v < threshold })
	}), nil
}
