package intensity

import (
	"github.com/open-climate/physrisk/internal/domain"
)

// Absolute hot-day threshold used when no baseline is available to
// derive a site-relative percentile.
const absoluteHotDayThresholdC = 30.0

// hotDayPercentile is the baseline percentile defining a "hot day"
// relative to the site's own climate.
const hotDayPercentile = 0.90

// ExtremeHeatExtractor derives one value per year: the longest run of
// consecutive days with maximum temperature above the hot-day threshold.
// The threshold is the site's baseline 90th percentile when baseline
// data is available, otherwise an absolute fallback; the mode used is
// recorded on the series.
type ExtremeHeatExtractor struct{}

func NewExtremeHeatExtractor() *ExtremeHeatExtractor { return &ExtremeHeatExtractor{} }

func (e *ExtremeHeatExtractor) RiskType() domain.RiskType { return domain.RiskExtremeHeat }

func (e *ExtremeHeatExtractor) RequiredVariables() []domain.Variable {
	return []domain.Variable{domain.VarTempMax}
}

func (e *ExtremeHeatExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	samples, err := requireSeries(in, e.RiskType(), domain.VarTempMax)
	if err != nil {
		return nil, err
	}
	samples, err = filterPeriod(samples, in.Period)
	if err != nil {
		return nil, err
	}

	threshold := absoluteHotDayThresholdC
	norm := domain.NormalizationAbsolute
	if baseline := in.Baseline[domain.VarTempMax]; len(baseline) > 0 {
		threshold = percentileOf(sampleValues(baseline), hotDayPercentile)
		norm = domain.NormalizationPercentile
	}

	byYear, years := groupByYear(samples)
	return yearlySeries(e.RiskType(), norm, years, func(y int) float64 {
		return maxRun(byYear[y], func(v float64) bool { return v > threshold })
	}), nil
}
