package hazard

import (
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// DefaultConfigs returns the built-in bin tables and damage schedules for
// all nine risk types. These are starting-point numbers; deployments
// normally override them with their own methodology tables via the
// hazard config directory.
func DefaultConfigs() []*domain.HazardConfig {
	inf := math.Inf(1)
	ninf := math.Inf(-1)

	return []*domain.HazardConfig{
		{
			RiskType:    domain.RiskExtremeHeat,
			Version:     "default-1",
			Description: "annual maximum consecutive hot-day run",
			Bins: []domain.Bin{
				{Lower: 0, Upper: 3},
				{Lower: 3, Upper: 8},
				{Lower: 8, Upper: 20},
				{Lower: 20, Upper: inf},
			},
			DamageRates: []float64{0.0005, 0.0015, 0.0050, 0.0120},
		},
		{
			RiskType:    domain.RiskExtremeCold,
			Version:     "default-1",
			Description: "annual maximum consecutive cold-day run",
			Bins: []domain.Bin{
				{Lower: 0, Upper: 3},
				{Lower: 3, Upper: 7},
				{Lower: 7, Upper: 15},
				{Lower: 15, Upper: inf},
			},
			DamageRates: []float64{0.0004, 0.0012, 0.0040, 0.0100},
		},
		{
			RiskType:    domain.RiskWildfire,
			Version:     "default-1",
			Description: "annual count of high fire-danger days",
			Bins: []domain.Bin{
				{Lower: 0, Upper: 5},
				{Lower: 5, Upper: 15},
				{Lower: 15, Upper: 30},
				{Lower: 30, Upper: inf},
			},
			DamageRates: []float64{0.0002, 0.0020, 0.0080, 0.0200},
		},
		{
			RiskType:    domain.RiskDrought,
			Version:     "default-1",
			Description: "annual peak standardized dryness severity",
			Bins: []domain.Bin{
				{Lower: ninf, Upper: 1.0},
				{Lower: 1.0, Upper: 1.5},
				{Lower: 1.5, Upper: 2.0},
				{Lower: 2.0, Upper: inf},
			},
			DamageRates: []float64{0.0001, 0.0010, 0.0035, 0.0090},
		},
		{
			RiskType:    domain.RiskWaterStress,
			Version:     "default-1",
			Description: "annual withdrawal-to-availability ratio",
			Bins: []domain.Bin{
				{Lower: 0, Upper: 0.2},
				{Lower: 0.2, Upper: 0.4},
				{Lower: 0.4, Upper: 0.8},
				{Lower: 0.8, Upper: inf},
			},
			DamageRates: []float64{0.0001, 0.0008, 0.0030, 0.0080},
		},
		{
			RiskType:    domain.RiskSeaLevelRise,
			Version:     "default-1",
			Description: "annual mean sea-level anomaly, metres",
			Bins: []domain.Bin{
				{Lower: ninf, Upper: 0.1},
				{Lower: 0.1, Upper: 0.3},
				{Lower: 0.3, Upper: 0.6},
				{Lower: 0.6, Upper: inf},
			},
			DamageRates: []float64{0.0000, 0.0010, 0.0045, 0.0150},
		},
		{
			RiskType:    domain.RiskRiverFlood,
			Version:     "default-1",
			Description: "annual maximum 3-day accumulated precipitation, mm",
			Bins: []domain.Bin{
				{Lower: 0, Upper: 80},
				{Lower: 80, Upper: 150},
				{Lower: 150, Upper: 250},
				{Lower: 250, Upper: inf},
			},
			DamageRates: []float64{0.0002, 0.0015, 0.0060, 0.0180},
		},
		{
			RiskType:    domain.RiskUrbanFlood,
			Version:     "default-1",
			Description: "annual maximum 1-day precipitation, mm",
			Bins: []domain.Bin{
				{Lower: 0, Upper: 50},
				{Lower: 50, Upper: 100},
				{Lower: 100, Upper: 180},
				{Lower: 180, Upper: inf},
			},
			DamageRates: []float64{0.0002, 0.0012, 0.0050, 0.0140},
		},
		{
			RiskType:    domain.RiskTyphoon,
			Version:     "default-1",
			Description: "annual accumulated cyclone exposure score",
			Bins: []domain.Bin{
				{Lower: 0, Upper: 1},
				{Lower: 1, Upper: 4},
				{Lower: 4, Upper: 10},
				{Lower: 10, Upper: inf},
			},
			DamageRates: []float64{0.0003, 0.0025, 0.0090, 0.0250},
		},
	}
}
