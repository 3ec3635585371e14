package domain

import "time"

// ScreeningRule flags computed AAL results via a CEL expression.
// Expressions see the fields of one completed cell (final_aal, base_aal,
// scale_factor, risk_type, scenario, ...) and return a bool or a numeric
// score that is mapped to a severity through bands.
type ScreeningRule struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	Expression string `json:"expression"`

	Bands []SeverityBand `json:"bands"`

	Enabled bool `json:"enabled"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// SeverityBand maps a score range to a severity level. Lower inclusive,
// upper exclusive; a nil bound is unbounded.
type SeverityBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Severity   string   `json:"severity"`
	Reason     string   `json:"reason"`
}

// Severity levels, in increasing order of concern.
const (
	SeverityInfo     = "info"
	SeverityWatch    = "watch"
	SeverityCritical = "critical"
)

// RiskFlag is one screening hit on a completed cell.
type RiskFlag struct {
	RuleID   string   `json:"ruleId"`
	RiskType RiskType `json:"riskType"`
	Scenario Scenario `json:"scenario"`
	Period   string   `json:"period"`
	Severity string   `json:"severity"`
	Score    float64  `json:"score"`
	Reason   string   `json:"reason,omitempty"`
}
