package binprob

import (
	"fmt"
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// DensitySampleThreshold is the minimum sample count for the kernel
// density estimator. Below it a smooth density is not statistically
// meaningful and the count-based strategy is used instead.
const DensitySampleThreshold = 30

// probTolerance bounds the acceptable deviation of a probability vector
// total from 1.0 before renormalization kicks in.
const probTolerance = 1e-6

// Estimate is a bin probability vector plus the strategy that produced
// it. The method is recorded because count and density estimates can
// disagree meaningfully on small samples.
type Estimate struct {
	Probabilities []float64
	Method        domain.EstimatorMethod
	SampleCount   int
}

// EstimateProbabilities derives the per-bin occurrence probabilities for
// an intensity series. Entries are >= 0 and sum to 1 within tolerance; a
// single-sample series yields a one-hot vector on its bin.
func EstimateProbabilities(series *domain.IntensitySeries, bins []domain.Bin) (*Estimate, error) {
	if err := series.Validate(); err != nil {
		return nil, err
	}

	values := series.Values()

	if len(values) >= DensitySampleThreshold {
		probs, err := densityEstimate(values, bins)
		if err == nil {
			return &Estimate{Probabilities: probs, Method: domain.EstimatorDensity, SampleCount: len(values)}, nil
		}
		// Degenerate density (zero spread) falls back to counting.
	}

	probs, err := countEstimate(values, bins)
	if err != nil {
		return nil, err
	}
	return &Estimate{Probabilities: probs, Method: domain.EstimatorCount, SampleCount: len(values)}, nil
}

// countEstimate classifies every sample and divides bin counts by the
// total sample count.
func countEstimate(values []float64, bins []domain.Bin) ([]float64, error) {
	counts := make([]int, len(bins))
	for _, v := range values {
		idx, err := Classify(v, bins)
		if err != nil {
			return nil, err
		}
		counts[idx]++
	}

	probs := make([]float64, len(bins))
	total := float64(len(values))
	for i, c := range counts {
		probs[i] = float64(c) / total
	}
	return normalize(probs)
}

// densityEstimate fits a Gaussian kernel density (Silverman bandwidth)
// to the samples and integrates it over each bin interval.
func densityEstimate(values []float64, bins []domain.Bin) ([]float64, error) {
	n := float64(len(values))

	var mean float64
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidIntensity, v)
		}
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n - 1

	sigma := math.Sqrt(variance)
	if sigma == 0 {
		return nil, fmt.Errorf("zero sample spread")
	}

	bandwidth := 1.06 * sigma * math.Pow(n, -0.2)

	// The bins partition the real line, so the kernel mass sums to 1
	// analytically; renormalization only corrects floating error.
	probs := make([]float64, len(bins))
	for i, b := range bins {
		var mass float64
		for _, x := range values {
			mass += gaussianCDF(b.Upper, x, bandwidth) - gaussianCDF(b.Lower, x, bandwidth)
		}
		probs[i] = mass / n
	}
	return normalize(probs)
}

// gaussianCDF evaluates the N(mu, h^2) cumulative distribution at x,
// with the conventions needed for unbounded bin edges.
func gaussianCDF(x, mu, h float64) float64 {
	if math.IsInf(x, 1) {
		return 1
	}
	if math.IsInf(x, -1) {
		return 0
	}
	return 0.5 * (1 + math.Erf((x-mu)/(h*math.Sqrt2)))
}

// normalize enforces the numeric invariant: entries >= 0, total within
// tolerance of 1. Out-of-tolerance totals are renormalized; a
// non-positive total fails loudly rather than returning garbage.
func normalize(probs []float64) ([]float64, error) {
	var total float64
	for i, p := range probs {
		if p < 0 {
			if p > -probTolerance {
				probs[i] = 0
				p = 0
			} else {
				return nil, fmt.Errorf("negative bin probability %v at index %d", p, i)
			}
		}
		total += p
	}

	if total <= 0 {
		return nil, fmt.Errorf("probability vector sums to %v", total)
	}

	if math.Abs(total-1) > probTolerance {
		for i := range probs {
			probs[i] /= total
		}
	}
	return probs, nil
}
