// Package domain defines the core interfaces and types for physrisk.
package domain

import "fmt"

// RiskType identifies one of the supported physical climate hazards.
// It selects which intensity extractor, bin table and damage schedule apply.
type RiskType string

const (
	RiskExtremeHeat  RiskType = "extreme_heat"
	RiskExtremeCold  RiskType = "extreme_cold"
	RiskWildfire     RiskType = "wildfire"
	RiskDrought      RiskType = "drought"
	RiskWaterStress  RiskType = "water_stress"
	RiskSeaLevelRise RiskType = "sea_level_rise"
	RiskRiverFlood   RiskType = "river_flood"
	RiskUrbanFlood   RiskType = "urban_flood"
	RiskTyphoon      RiskType = "typhoon"
)

// AllRiskTypes returns every supported risk type in canonical order.
// Sequential assessment mode emits progress events in this order, so
// consumers rendering a progress bar can rely on it.
func AllRiskTypes() []RiskType {
	return []RiskType{
		RiskExtremeHeat,
		RiskExtremeCold,
		RiskWildfire,
		RiskDrought,
		RiskWaterStress,
		RiskSeaLevelRise,
		RiskRiverFlood,
		RiskUrbanFlood,
		RiskTyphoon,
	}
}

// Valid reports whether r is one of the supported risk types.
func (r RiskType) Valid() bool {
	switch r {
	case RiskExtremeHeat, RiskExtremeCold, RiskWildfire, RiskDrought,
		RiskWaterStress, RiskSeaLevelRise, RiskRiverFlood, RiskUrbanFlood,
		RiskTyphoon:
		return true
	}
	return false
}

// Scenario identifies an IPCC SSP emission scenario (or the historical
// baseline) used to select which climate projection feeds the extractor.
type Scenario string

const (
	ScenarioHistorical Scenario = "historical"
	ScenarioSSP126     Scenario = "ssp126"
	ScenarioSSP245     Scenario = "ssp245"
	ScenarioSSP585     Scenario = "ssp585"
)

// Valid reports whether s is a known scenario.
func (s Scenario) Valid() bool {
	switch s {
	case ScenarioHistorical, ScenarioSSP126, ScenarioSSP245, ScenarioSSP585:
		return true
	}
	return false
}

// AllScenarios returns every supported scenario.
func AllScenarios() []Scenario {
	return []Scenario{ScenarioHistorical, ScenarioSSP126, ScenarioSSP245, ScenarioSSP585}
}

// YearRange is an inclusive span of calendar years.
type YearRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Contains reports whether year falls inside the range.
func (yr YearRange) Contains(year int) bool {
	return year >= yr.Start && year <= yr.End
}

// Valid reports whether the range is well-formed.
func (yr YearRange) Valid() bool {
	return yr.Start > 0 && yr.End >= yr.Start
}

// String renders the range as "start-end", the key format used for
// period-level result maps.
func (yr YearRange) String() string {
	return fmt.Sprintf("%d-%d", yr.Start, yr.End)
}
