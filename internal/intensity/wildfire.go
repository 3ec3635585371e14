package intensity

import (
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// fireDangerPercentile marks a day as high-danger when its index exceeds
// the baseline's 90th percentile.
const fireDangerPercentile = 0.90

// absoluteFireDangerThreshold is the fallback high-danger cutoff when no
// baseline index distribution is available.
const absoluteFireDangerThreshold = 20.0

// WildfireExtractor derives one value per year: the count of days whose
// fire-weather index exceeds the high-danger threshold. The index is a
// multiplicative composite of temperature, dryness, wind and recent
// rainfall suppression; the exact weighting is a methodology parameter,
// but the shape (hot, dry, windy, recently rain-free days score high) is
// fixed here.
type WildfireExtractor struct{}

func NewWildfireExtractor() *WildfireExtractor { return &WildfireExtractor{} }

func (e *WildfireExtractor) RiskType() domain.RiskType { return domain.RiskWildfire }

func (e *WildfireExtractor) RequiredVariables() []domain.Variable {
	return []domain.Variable{
		domain.VarTempMean,
		domain.VarHumidity,
		domain.VarWindSpeed,
		domain.VarPrecipitation,
	}
}

func (e *WildfireExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	temp, err := requireSeries(in, e.RiskType(), domain.VarTempMean)
	if err != nil {
		return nil, err
	}
	humidity, err := requireSeries(in, e.RiskType(), domain.VarHumidity)
	if err != nil {
		return nil, err
	}
	wind, err := requireSeries(in, e.RiskType(), domain.VarWindSpeed)
	if err != nil {
		return nil, err
	}
	precip, err := requireSeries(in, e.RiskType(), domain.VarPrecipitation)
	if err != nil {
		return nil, err
	}

	index, err := fireWeatherIndex(temp, humidity, wind, precip)
	if err != nil {
		return nil, err
	}
	index, err = filterPeriod(index, in.Period)
	if err != nil {
		return nil, err
	}

	threshold := absoluteFireDangerThreshold
	norm := domain.NormalizationAbsolute
	if baselineIndex := e.baselineIndex(in); len(baselineIndex) > 0 {
		threshold = percentileOf(baselineIndex, fireDangerPercentile)
		norm = domain.NormalizationPercentile
	}

	byYear, years := groupByYear(index)
	return yearlySeries(e.RiskType(), norm, years, func(y int) float64 {
		var days float64
		for _, s := range byYear[y] {
			if s.Value > threshold {
				days++
			}
		}
		return days
	}), nil
}

// baselineIndex computes the index distribution over the baseline
// bundle, or nil when any component is missing.
func (e *WildfireExtractor) baselineIndex(in *Inputs) []float64 {
	temp := in.Baseline[domain.VarTempMean]
	humidity := in.Baseline[domain.VarHumidity]
	wind := in.Baseline[domain.VarWindSpeed]
	precip := in.Baseline[domain.VarPrecipitation]
	if len(temp) == 0 || len(humidity) == 0 || len(wind) == 0 || len(precip) == 0 {
		return nil
	}

	index, err := fireWeatherIndex(temp, humidity, wind, precip)
	if err != nil {
		return nil
	}
	return sampleValues(index)
}

// fireWeatherIndex joins the component series by timestamp and computes
// the daily index. Component series must cover the same days; joining by
// key rather than position tolerates gaps that differ per variable.
func fireWeatherIndex(temp, humidity, wind, precip []domain.RawSample) ([]domain.RawSample, error) {
	type dayKey struct{ year, month, day int }
	key := func(s domain.RawSample) dayKey { return dayKey{s.Year, s.Month, s.Day} }

	byDay := func(samples []domain.RawSample) map[dayKey]float64 {
		m := make(map[dayKey]float64, len(samples))
		for _, s := range samples {
			m[key(s)] = s.Value
		}
		return m
	}
	humidityByDay := byDay(humidity)
	windByDay := byDay(wind)
	precipByDay := byDay(precip)

	index := make([]domain.RawSample, 0, len(temp))
	var dryDays float64
	for _, t := range temp {
		k := key(t)
		h, okH := humidityByDay[k]
		w, okW := windByDay[k]
		p, okP := precipByDay[k]
		if !okH || !okW || !okP {
			continue
		}

		if p < 1.0 {
			dryDays++
		} else {
			dryDays = 0
		}

		// Hotter, drier, windier and longer-since-rain days score higher.
		// Each factor is floored at zero so a cold or saturated day
		// contributes nothing rather than a negative index.
		heatTerm := math.Max(t.Value-10, 0)
		drynessTerm := math.Max(100-h, 0) / 100
		windTerm := 1 + w/10
		droughtTerm := 1 + math.Min(dryDays, 30)/10

		index = append(index, domain.RawSample{
			Year:  t.Year,
			Month: t.Month,
			Day:   t.Day,
			Value: heatTerm * drynessTerm * windTerm * droughtTerm,
		})
	}
	return index, nil
}
