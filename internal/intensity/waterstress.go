package intensity

import (
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// environmentalFlowFraction is the share of runoff reserved for
// ecosystem flow requirements and unavailable for withdrawal.
const environmentalFlowFraction = 0.4

// waterStressCap bounds the withdrawal ratio when available supply is
// zero or negative. An unbounded ratio would swamp the bin table with
// meaningless magnitudes; everything past the cap is equally extreme.
const waterStressCap = 5.0

// WaterStressExtractor derives one value per year: the ratio of water
// withdrawal demand to available supply. Supply is environmental-flow-
// adjusted runoff less an evapotranspiration loss; when baseline runoff
// exists, each year's supply is the baseline availability projected
// forward by that year's runoff ratio.
type WaterStressExtractor struct{}

func NewWaterStressExtractor() *WaterStressExtractor { return &WaterStressExtractor{} }

func (e *WaterStressExtractor) RiskType() domain.RiskType { return domain.RiskWaterStress }

func (e *WaterStressExtractor) RequiredVariables() []domain.Variable {
	return []domain.Variable{domain.VarRunoff, domain.VarWaterDemand}
}

func (e *WaterStressExtractor) Extract(in *Inputs) (*domain.IntensitySeries, error) {
	runoff, err := requireSeries(in, e.RiskType(), domain.VarRunoff)
	if err != nil {
		return nil, err
	}
	demand, err := requireSeries(in, e.RiskType(), domain.VarWaterDemand)
	if err != nil {
		return nil, err
	}

	runoff, err = filterPeriod(runoff, in.Period)
	if err != nil {
		return nil, err
	}
	demand, err = filterPeriod(demand, in.Period)
	if err != nil {
		return nil, err
	}

	runoffByYear, years := groupByYear(runoff)
	demandByYear, _ := groupByYear(demand)

	// Evapotranspiration loss from mean temperature, when available.
	etByYear := make(map[int]float64)
	if temp := in.Series[domain.VarTempMean]; len(temp) > 0 {
		tempByYear, _ := groupByYear(temp)
		for y, samples := range tempByYear {
			var et float64
			for _, s := range samples {
				et += potentialEvapotranspiration(s.Value)
			}
			etByYear[y] = et
		}
	}

	annualRunoff := func(byYear map[int][]domain.RawSample, y int) float64 {
		var total float64
		for _, s := range byYear[y] {
			total += s.Value
		}
		return total
	}

	// Baseline availability and the per-year projection ratio.
	var baselineAvail, baselineRunoffMean float64
	project := false
	if baseRunoff := in.Baseline[domain.VarRunoff]; len(baseRunoff) > 0 {
		baseByYear, baseYears := groupByYear(baseRunoff)
		var totals []float64
		for _, y := range baseYears {
			totals = append(totals, annualRunoff(baseByYear, y))
		}
		baselineRunoffMean = mean(totals)
		if baselineRunoffMean > 0 {
			baselineAvail = baselineRunoffMean * (1 - environmentalFlowFraction)
			project = true
		}
	}

	norm := domain.NormalizationNone
	if project {
		norm = domain.NormalizationBaseline
	}

	return yearlySeries(e.RiskType(), norm, years, func(y int) float64 {
		var totalDemand float64
		for _, s := range demandByYear[y] {
			totalDemand += s.Value
		}

		yearRunoff := annualRunoff(runoffByYear, y)
		var supply float64
		if project {
			supply = baselineAvail * (yearRunoff / baselineRunoffMean)
		} else {
			supply = yearRunoff * (1 - environmentalFlowFraction)
		}
		supply -= etByYear[y]

		if supply <= 0 {
			return waterStressCap
		}
		return math.Min(totalDemand/supply, waterStressCap)
	}), nil
}
