package binprob

import (
	"errors"
	"math"
	"testing"

	"github.com/open-climate/physrisk/internal/domain"
)

func yearlySeries(values []float64) *domain.IntensitySeries {
	points := make([]domain.IntensityPoint, len(values))
	for i, v := range values {
		points[i] = domain.IntensityPoint{Year: 2000 + i, Value: v}
	}
	return &domain.IntensitySeries{
		RiskType:    domain.RiskRiverFlood,
		Granularity: domain.GranularityYearly,
		Points:      points,
	}
}

func fourBins() []domain.Bin {
	return []domain.Bin{
		{Lower: 0, Upper: 3},
		{Lower: 3, Upper: 8},
		{Lower: 8, Upper: 20},
		{Lower: 20, Upper: math.Inf(1)},
	}
}

func TestClassifyBoundaryGoesUp(t *testing.T) {
	bins := fourBins()

	cases := []struct {
		value float64
		want  int
	}{
		{0, 0},
		{2.999, 0},
		{3, 1}, // exact boundary lands in the upper bin
		{8, 2},
		{19.999, 2},
		{20, 3},
		{1e9, 3},
	}
	for _, tc := range cases {
		got, err := Classify(tc.value, bins)
		if err != nil {
			t.Fatalf("Classify(%v) failed: %v", tc.value, err)
		}
		if got != tc.want {
			t.Errorf("Classify(%v) = %d, want %d", tc.value, got, tc.want)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	bins := fourBins()
	first, err := Classify(7.3, bins)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		got, err := Classify(7.3, bins)
		if err != nil || got != first {
			t.Fatalf("run %d: Classify(7.3) = (%d, %v), want (%d, nil)", i, got, err, first)
		}
	}
}

func TestClassifyRejectsNonFinite(t *testing.T) {
	bins := fourBins()
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if _, err := Classify(v, bins); !errors.Is(err, domain.ErrInvalidIntensity) {
			t.Errorf("Classify(%v): expected ErrInvalidIntensity, got %v", v, err)
		}
	}
}

func TestClassifyClampsBelowFirstBound(t *testing.T) {
	idx, err := Classify(-2.5, fourBins())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if idx != 0 {
		t.Errorf("values below the first bound should clamp to bin 0, got %d", idx)
	}
}

func TestClassifyEmptyTable(t *testing.T) {
	if _, err := Classify(1, nil); !errors.Is(err, domain.ErrConfigMismatch) {
		t.Errorf("expected ErrConfigMismatch for empty table, got %v", err)
	}
}

// Ten yearly samples against the four-bin table: three land in [0,3),
// four in [3,8), two in [8,20), one at or above 20.
func TestCountEstimateKnownDistribution(t *testing.T) {
	series := yearlySeries([]float64{1, 2, 4, 5, 9, 10, 22, 1, 3, 6})

	est, err := EstimateProbabilities(series, fourBins())
	if err != nil {
		t.Fatalf("EstimateProbabilities failed: %v", err)
	}
	if est.Method != domain.EstimatorCount {
		t.Errorf("expected count estimator for 10 samples, got %s", est.Method)
	}
	if est.SampleCount != 10 {
		t.Errorf("expected sample count 10, got %d", est.SampleCount)
	}

	want := []float64{0.3, 0.4, 0.2, 0.1}
	for i, p := range est.Probabilities {
		if math.Abs(p-want[i]) > 1e-12 {
			t.Errorf("bin %d probability = %v, want %v", i, p, want[i])
		}
	}
}

func TestEstimateSingleSampleOneHot(t *testing.T) {
	est, err := EstimateProbabilities(yearlySeries([]float64{9.5}), fourBins())
	if err != nil {
		t.Fatalf("EstimateProbabilities failed: %v", err)
	}

	want := []float64{0, 0, 1, 0}
	for i, p := range est.Probabilities {
		if p != want[i] {
			t.Errorf("bin %d probability = %v, want %v", i, p, want[i])
		}
	}
}

func TestEstimateEmptySeries(t *testing.T) {
	series := &domain.IntensitySeries{
		RiskType:    domain.RiskRiverFlood,
		Granularity: domain.GranularityYearly,
	}
	if _, err := EstimateProbabilities(series, fourBins()); !errors.Is(err, domain.ErrInsufficientData) {
		t.Errorf("expected ErrInsufficientData for empty series, got %v", err)
	}
}

func TestDensityEstimatorSelectedAtThreshold(t *testing.T) {
	values := make([]float64, DensitySampleThreshold)
	for i := range values {
		// Spread across all four bins with nonzero variance.
		values[i] = float64(i%25) + 0.5
	}

	est, err := EstimateProbabilities(yearlySeries(values), fourBins())
	if err != nil {
		t.Fatalf("EstimateProbabilities failed: %v", err)
	}
	if est.Method != domain.EstimatorDensity {
		t.Errorf("expected density estimator at %d samples, got %s", DensitySampleThreshold, est.Method)
	}

	var total float64
	for i, p := range est.Probabilities {
		if p < 0 {
			t.Errorf("bin %d probability is negative: %v", i, p)
		}
		total += p
	}
	if math.Abs(total-1) > probTolerance {
		t.Errorf("density probabilities sum to %v", total)
	}
}

func TestDensityZeroSpreadFallsBackToCount(t *testing.T) {
	values := make([]float64, DensitySampleThreshold+5)
	for i := range values {
		values[i] = 4.0
	}

	est, err := EstimateProbabilities(yearlySeries(values), fourBins())
	if err != nil {
		t.Fatalf("EstimateProbabilities failed: %v", err)
	}
	if est.Method != domain.EstimatorCount {
		t.Errorf("constant series should fall back to count, got %s", est.Method)
	}
	if est.Probabilities[1] != 1 {
		t.Errorf("all mass should be in bin 1, got %v", est.Probabilities)
	}
}
