package domain

import "time"

// Site is a business location under assessment. Vulnerability scores and
// the optional asset value are owned by external subsystems; the core
// consumes them by value and never mutates them.
type Site struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// AssetValue converts a final AAL fraction into an expected-loss
	// currency amount. Nil when the financial subsystem has no value for
	// the site; AAL computation proceeds regardless.
	AssetValue *float64 `json:"assetValue,omitempty"`

	// InsuranceRate is the fraction of loss recovered via insurance,
	// in [0, 1].
	InsuranceRate float64 `json:"insuranceRate"`

	// Vulnerability holds per-hazard scores in [0, VulnerabilityScaleMax].
	// A missing entry means the vulnerability subsystem has no score for
	// that hazard; the scaler then applies a neutral factor of 1.0.
	Vulnerability map[RiskType]float64 `json:"vulnerability,omitempty"`

	// VulnerabilityScaleMax declares the score bound (100 or 1). It is an
	// explicit parameter, never inferred from the scores themselves.
	VulnerabilityScaleMax float64 `json:"vulnerabilityScaleMax"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
