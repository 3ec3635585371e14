package intensity

import (
	"fmt"
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// absoluteDroughtDivisor converts a raw monthly water deficit (mm) into
// index units when no baseline distribution exists to standardize
// against. A methodology parameter, not a physical constant.
const absoluteDroughtDivisor = 50.0

// DroughtExtractor derives one value per year: the peak standardized
// dryness severity. Monthly water balance is precipitation minus a
// temperature-driven potential-evapotranspiration estimate; each month's
// balance is standardized against the baseline distribution for that
// calendar month, and the year's severity is the magnitude of its worst
// (most negative) month. Without a baseline the balance is normalized by
// an absolute divisor instead, and the mode is recorded.
type DroughtExtractor struct{}

func NewDroughtExtractor() *DroughtExtractor { return &DroughtExtractor{} }

func (e *DroughtExtractor) RiskType() domain.RiskType { return domain.RiskDrought }

func (e *DroughtExtractor) RequiredVariables() []domain.Variable {
	return []domain.Variable{domain.VarPrecipitation, domain.VarTempMean}
}

func (e *DroughtExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	precip, err := requireSeries(in, e.RiskType(), domain.VarPrecipitation)
	if err != nil {
		return nil, err
	}
	temp, err := requireSeries(in, e.RiskType(), domain.VarTempMean)
	if err != nil {
		return nil, err
	}

	balance, err := monthlyWaterBalance(precip, temp)
	if err != nil {
		return nil, err
	}
	balance, err = filterPeriod(balance, in.Period)
	if err != nil {
		return nil, err
	}

	norm := domain.NormalizationAbsolute
	var byMonth map[int][]float64
	if basePrecip, baseTemp := in.Baseline[domain.VarPrecipitation], in.Baseline[domain.VarTempMean]; len(basePrecip) > 0 && len(baseTemp) > 0 {
		baseBalance, err := monthlyWaterBalance(basePrecip, baseTemp)
		if err == nil && len(baseBalance) > 0 {
			byMonth = make(map[int][]float64)
			for _, s := range baseBalance {
				byMonth[s.Month] = append(byMonth[s.Month], s.Value)
			}
			norm = domain.NormalizationPercentile
		}
	}

	standardize := func(s domain.RawSample) float64 {
		if byMonth != nil {
			ref := byMonth[s.Month]
			sigma := stddev(ref)
			if len(ref) >= 2 && sigma > 0 {
				return (s.Value - mean(ref)) / sigma
			}
		}
		return s.Value / absoluteDroughtDivisor
	}

	byYear, years := groupByYear(balance)
	return yearlySeries(e.RiskType(), norm, years, func(y int) float64 {
		worst := math.Inf(1)
		for _, s := range byYear[y] {
			if z := standardize(s); z < worst {
				worst = z
			}
		}
		// Severity is positive-dry: a wet year scores negative and lands
		// in the lowest bin.
		return -worst
	}), nil
}

// monthlyWaterBalance joins monthly precipitation and temperature by
// (year, month) and returns P minus a simple temperature-exponential PET
// estimate.
func monthlyWaterBalance(precip, temp []domain.RawSample) ([]domain.RawSample, error) {
	type monthKey struct{ year, month int }

	tempByMonth := make(map[monthKey]float64, len(temp))
	for _, s := range temp {
		tempByMonth[monthKey{s.Year, s.Month}] = s.Value
	}

	balance := make([]domain.RawSample, 0, len(precip))
	for _, p := range precip {
		t, ok := tempByMonth[monthKey{p.Year, p.Month}]
		if !ok {
			continue
		}
		balance = append(balance, domain.RawSample{
			Year:  p.Year,
			Month: p.Month,
			Value: p.Value - potentialEvapotranspiration(t),
		})
	}
	if len(balance) == 0 {
		return nil, fmt.Errorf("%w: precipitation and temperature series share no months",
			domain.ErrInsufficientData)
	}
	return balance, nil
}

// potentialEvapotranspiration estimates monthly PET in mm from mean
// temperature. Thornthwaite-style shape: zero below freezing, growing
// superlinearly with warmth.
func potentialEvapotranspiration(tempC float64) float64 {
	if tempC <= 0 {
		return 0
	}
	return 16 * math.Pow(tempC/5, 1.514)
}
