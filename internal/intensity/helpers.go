package intensity

import (
	"fmt"
	"math"
	"sort"

	"github.com/open-climate/physrisk/internal/domain"
)

// requireSeries fetches a variable's samples from the bundle, failing
// with ErrInsufficientData when the variable is absent or empty.
func requireSeries(in *Inputs, rt domain.RiskType, v domain.Variable) ([]domain.RawSample, error) {
	samples := in.Series[v]
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %s requires variable %s", domain.ErrInsufficientData, rt, v)
	}
	return samples, nil
}

// filterPeriod keeps the samples whose year falls inside the range,
// failing with ErrInvalidTimeRange when nothing overlaps.
func filterPeriod(samples []domain.RawSample, period domain.YearRange) ([]domain.RawSample, error) {
	out := make([]domain.RawSample, 0, len(samples))
	for _, s := range samples {
		if period.Contains(s.Year) {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no samples in %s", domain.ErrInvalidTimeRange, period)
	}
	return out, nil
}

// groupByYear buckets samples by year, preserving within-year order.
// Returned years are sorted ascending.
func groupByYear(samples []domain.RawSample) (map[int][]domain.RawSample, []int) {
	byYear := make(map[int][]domain.RawSample)
	for _, s := range samples {
		byYear[s.Year] = append(byYear[s.Year], s)
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)
	return byYear, years
}

// percentileOf returns the q-th percentile (q in [0, 1]) of the sample
// values using linear interpolation between order statistics.
func percentileOf(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// maxRun returns the longest run of consecutive samples satisfying the
// predicate.
func maxRun(samples []domain.RawSample, pred func(float64) bool) float64 {
	var longest, current int
	for _, s := range samples {
		if pred(s.Value) {
			current++
			if current > longest {
				longest = current
			}
		} else {
			current = 0
		}
	}
	return float64(longest)
}

// maxWindowSum returns the maximum sum over any window of n consecutive
// samples. Shorter series use the full-series sum.
func maxWindowSum(samples []domain.RawSample, n int) float64 {
	if len(samples) == 0 {
		return 0
	}
	if n > len(samples) {
		n = len(samples)
	}

	var window float64
	for i := 0; i < n; i++ {
		window += samples[i].Value
	}
	best := window
	for i := n; i < len(samples); i++ {
		window += samples[i].Value - samples[i-n].Value
		if window > best {
			best = window
		}
	}
	return best
}

func sampleValues(samples []domain.RawSample) []float64 {
	vals := make([]float64, len(samples))
	for i, s := range samples {
		vals[i] = s.Value
	}
	return vals
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}

// yearlySeries assembles a yearly IntensitySeries from per-year values,
// years ascending.
func yearlySeries(rt domain.RiskType, norm domain.NormalizationMode, years []int, valueOf func(year int) float64) *domain.IntensitySeries {
	points := make([]domain.IntensityPoint, 0, len(years))
	for _, y := range years {
		points = append(points, domain.IntensityPoint{Year: y, Value: valueOf(y)})
	}
	return &domain.IntensitySeries{
		RiskType:      rt,
		Granularity:   domain.GranularityYearly,
		Normalization: norm,
		Points:        points,
	}
}
