package domain

import "time"

// CellStatus tracks the lifecycle of one (risk, scenario, period)
// computation cell. Cells only move forward: PENDING -> COMPUTING ->
// DONE or FAILED.
type CellStatus string

const (
	CellPending   CellStatus = "PENDING"
	CellComputing CellStatus = "COMPUTING"
	CellDone      CellStatus = "DONE"
	CellFailed    CellStatus = "FAILED"
)

// EstimatorMethod records which probability strategy produced a bin
// probability vector. Count-based and density-based estimates can
// disagree meaningfully on small samples, so the method travels with
// the result for auditability.
type EstimatorMethod string

const (
	EstimatorCount   EstimatorMethod = "count"
	EstimatorDensity EstimatorMethod = "density"
)

// CalculationDetails captures the auditing context behind an AAL figure.
type CalculationDetails struct {
	Estimator     EstimatorMethod   `json:"estimator"`
	Normalization NormalizationMode `json:"normalization,omitempty"`
	SampleCount   int               `json:"sampleCount"`
	ConfigVersion string            `json:"configVersion,omitempty"`
	CacheHit      bool              `json:"cacheHit,omitempty"`
}

// AALResult is the terminal value of one cell computation: the annual
// average loss for a (site, risk type, scenario, period) combination.
// Immutable once returned.
type AALResult struct {
	RiskType RiskType  `json:"riskType"`
	SiteID   string    `json:"siteId"`
	Scenario Scenario  `json:"scenario"`
	Period   YearRange `json:"period"`

	// BaseAAL is the probability-weighted damage sum before vulnerability
	// scaling and insurance recovery (scale factor 1, insurance 0).
	// Reported separately so consumers can audit how much of the final
	// value is attributable to vulnerability versus raw climate
	// probability.
	BaseAAL float64 `json:"baseAal"`

	ScaleFactor   float64 `json:"scaleFactor"`
	InsuranceRate float64 `json:"insuranceRate"`

	// FinalAAL is the expected fractional asset loss per year.
	FinalAAL float64 `json:"finalAal"`

	// ExpectedLoss is FinalAAL times the site's asset value, omitted when
	// no asset value is known.
	ExpectedLoss *float64 `json:"expectedLoss,omitempty"`

	BinProbabilities []float64 `json:"binProbabilities"`
	BinDamageRates   []float64 `json:"binDamageRates"`

	Details CalculationDetails `json:"details"`
}

// CellResult is the per-cell outcome: either a completed AALResult or a
// recorded failure with its error kind. A failed cell is explicitly
// distinguishable from a computed low-risk result.
type CellResult struct {
	Status       CellStatus `json:"status"`
	Result       *AALResult `json:"result,omitempty"`
	ErrorKind    string     `json:"errorKind,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
}

// Assessment status values.
const (
	AssessmentComplete = "COMPLETE"
	AssessmentPartial  = "PARTIAL"
	AssessmentFailed   = "FAILED"
)

// AssessmentMetadata carries processing information for one run.
type AssessmentMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	Cells         int    `json:"cells"`
	FailedCells   int    `json:"failedCells"`
	DurationMs    int64  `json:"durationMs"`
	EngineVersion string `json:"engineVersion"`
}

// Assessment is the full result set of one scenario run for a site,
// keyed by scenario, then risk type, then period string. Keyed rather
// than positional so callers never depend on completion order.
type Assessment struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	SiteID    string    `json:"siteId"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`

	Results map[Scenario]map[RiskType]map[string]*CellResult `json:"results"`

	// Flags are screening-rule hits over the completed cells.
	Flags []RiskFlag `json:"flags,omitempty"`

	Metadata AssessmentMetadata `json:"metadata"`
}

// Cell returns the result for one cell, or nil when absent.
func (a *Assessment) Cell(scenario Scenario, risk RiskType, period YearRange) *CellResult {
	byRisk, ok := a.Results[scenario]
	if !ok {
		return nil
	}
	byPeriod, ok := byRisk[risk]
	if !ok {
		return nil
	}
	return byPeriod[period.String()]
}

// CountCells returns the total and failed cell counts.
func (a *Assessment) CountCells() (total, failed int) {
	for _, byRisk := range a.Results {
		for _, byPeriod := range byRisk {
			for _, cell := range byPeriod {
				total++
				if cell.Status == CellFailed {
					failed++
				}
			}
		}
	}
	return total, failed
}
