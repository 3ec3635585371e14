package domain

import "context"

// Variable names a raw upstream climate series, following CMIP short
// names where one exists.
type Variable string

const (
	VarTempMax       Variable = "tasmax"  // daily maximum near-surface temperature, degC
	VarTempMin       Variable = "tasmin"  // daily minimum near-surface temperature, degC
	VarTempMean      Variable = "tas"     // near-surface mean temperature, degC
	VarPrecipitation Variable = "pr"      // precipitation, mm
	VarHumidity      Variable = "hurs"    // near-surface relative humidity, percent
	VarWindSpeed     Variable = "sfcWind" // near-surface wind speed, m/s
	VarSeaLevel      Variable = "zos"     // sea-surface height anomaly, m
	VarRunoff        Variable = "mrro"    // total runoff, mm
	VarWaterDemand   Variable = "demand"  // water withdrawal demand, mm equivalent
)

// RawSample is one upstream observation for a (site, variable, scenario)
// series. Day is zero for monthly samples; Day and Month are zero for
// yearly samples.
type RawSample struct {
	Year  int     `json:"year"`
	Month int     `json:"month,omitempty"`
	Day   int     `json:"day,omitempty"`
	Value float64 `json:"value"`
}

// TrackPoint is one tropical-cyclone track observation within reach of a
// site, pre-joined by the upstream warehouse.
type TrackPoint struct {
	StormID   string  `json:"stormId"`
	Year      int     `json:"year"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// MaxWindKt is the storm's instantaneous maximum sustained wind.
	MaxWindKt float64 `json:"maxWindKt"`
	// Wind-field ellipse semi-axes and orientation.
	RadiusMajorKm float64 `json:"radiusMajorKm"`
	RadiusMinorKm float64 `json:"radiusMinorKm"`
	BearingDeg    float64 `json:"bearingDeg"`
}

// ClimateProvider supplies raw per-site climate series from the upstream
// warehouse. The computation core performs no I/O itself; this is the one
// injected boundary where an implementation may block.
//
// An empty result is not an error at this layer: extractors decide
// whether a missing variable is fatal for their risk type.
type ClimateProvider interface {
	// Series returns the samples for one (site, variable, scenario)
	// series within the period, in time order.
	Series(ctx context.Context, tenantID, siteID string, v Variable, scenario Scenario, period YearRange) ([]RawSample, error)

	// TrackPoints returns cyclone track observations near the site
	// within the period.
	TrackPoints(ctx context.Context, tenantID, siteID string, scenario Scenario, period YearRange) ([]TrackPoint, error)
}
