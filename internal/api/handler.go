package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/open-climate/physrisk/internal/domain"
	"github.com/open-climate/physrisk/internal/hazard"
	"github.com/open-climate/physrisk/internal/repository"
	"github.com/open-climate/physrisk/internal/runner"
	"github.com/open-climate/physrisk/internal/screening"
	"github.com/open-climate/physrisk/internal/vuln"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	runner   *runner.Runner
	screener *screening.Engine
	hazards  *hazard.Registry
	version  string
	tier     domain.Tier
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, run *runner.Runner, screener *screening.Engine, hazards *hazard.Registry, version string, tier domain.Tier) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		runner:   run,
		screener: screener,
		hazards:  hazards,
		version:  version,
		tier:     tier,
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
		"tier":    string(h.tier),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ============================================================================
// SITE HANDLERS
// ============================================================================

// CreateSite registers or updates a site.
func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var site domain.Site
	if err := json.NewDecoder(r.Body).Decode(&site); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if site.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}
	if site.Latitude < -90 || site.Latitude > 90 || site.Longitude < -180 || site.Longitude > 180 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "latitude/longitude out of range",
		})
		return
	}
	if site.InsuranceRate < 0 || site.InsuranceRate > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "insuranceRate must be between 0 and 1",
		})
		return
	}
	for rt := range site.Vulnerability {
		if !rt.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "unknown risk type in vulnerability: " + string(rt),
			})
			return
		}
	}

	site.TenantID = tenantID
	now := time.Now().UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now

	if err := h.repo.SaveSite(ctx, tenantID, &site); err != nil {
		slog.Error("failed to save site", "site_id", site.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save site",
		})
		return
	}

	writeJSON(w, http.StatusCreated, &site)
}

// GetSite retrieves a site by ID.
func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	siteID := chi.URLParam(r, "id")

	site, err := h.repo.GetSite(ctx, tenantID, siteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "site not found",
			})
			return
		}
		slog.Error("failed to get site", "site_id", siteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get site",
		})
		return
	}

	writeJSON(w, http.StatusOK, site)
}

// ListSites returns all sites for the tenant.
func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	sites, err := h.repo.ListSites(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list sites", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list sites",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sites": sites,
		"count": len(sites),
	})
}

// ListSiteAssessments returns recent assessments for a site.
func (h *Handler) ListSiteAssessments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	siteID := chi.URLParam(r, "id")

	// Default lookback of 90 days
	since := time.Now().UTC().AddDate(0, 0, -90)

	assessments, err := h.repo.ListAssessmentsBySite(ctx, tenantID, siteID, since)
	if err != nil {
		slog.Error("failed to list assessments", "site_id", siteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list assessments",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assessments": assessments,
		"count":       len(assessments),
	})
}

// ============================================================================
// ASSESSMENT HANDLERS
// ============================================================================

// AssessmentRequest is the request body for POST /assessments.
type AssessmentRequest struct {
	SiteID         string             `json:"siteId"`
	RiskTypes      []domain.RiskType  `json:"riskTypes,omitempty"`
	Scenarios      []domain.Scenario  `json:"scenarios"`
	Periods        []domain.YearRange `json:"periods"`
	BaselinePeriod domain.YearRange   `json:"baselinePeriod,omitempty"`
	Convention     *vuln.Convention   `json:"convention,omitempty"`

	// Async queues the run on the event bus instead of computing inline.
	// Requires a bus-backed deployment.
	Async    bool `json:"async,omitempty"`
	Parallel bool `json:"parallel,omitempty"`
}

// RunAssessment handles POST /assessments.
func (h *Handler) RunAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req AssessmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.SiteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "siteId is required",
		})
		return
	}
	if len(req.Scenarios) == 0 || len(req.Periods) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scenarios and periods are required",
		})
		return
	}

	if req.Async {
		if h.bus == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "async assessments require an event bus",
			})
			return
		}
		payload, _ := json.Marshal(map[string]any{
			"tenantId":       tenantID,
			"siteId":         req.SiteID,
			"traceId":        traceID,
			"riskTypes":      req.RiskTypes,
			"scenarios":      req.Scenarios,
			"periods":        req.Periods,
			"baselinePeriod": req.BaselinePeriod,
			"convention":     req.Convention,
			"parallel":       req.Parallel,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAssessmentRequested, payload); err != nil {
			slog.Error("failed to queue assessment", "site_id", req.SiteID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to queue assessment",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "queued",
			"traceId": traceID,
		})
		return
	}

	site, err := h.repo.GetSite(ctx, tenantID, req.SiteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "site not found",
			})
			return
		}
		slog.Error("failed to load site", "site_id", req.SiteID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load site",
		})
		return
	}

	runReq := &runner.Request{
		TenantID:       tenantID,
		Site:           site,
		RiskTypes:      req.RiskTypes,
		Scenarios:      req.Scenarios,
		Periods:        req.Periods,
		BaselinePeriod: req.BaselinePeriod,
		Convention:     req.Convention,
	}

	var assessment *domain.Assessment
	if req.Parallel {
		assessment, err = h.runner.RunParallel(ctx, runReq)
	} else {
		assessment, err = h.runner.Run(ctx, runReq)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}
	assessment.Metadata.TraceID = traceID

	if h.screener != nil && h.screener.RuleCount() > 0 {
		assessment.Flags = h.screener.Screen(assessment)
	}

	if err := h.repo.SaveAssessment(ctx, tenantID, assessment); err != nil {
		slog.Error("failed to save assessment", "assessment_id", assessment.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, assessment)
}

// GetAssessment retrieves an assessment by ID.
func (h *Handler) GetAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	assessmentID := chi.URLParam(r, "id")

	a, err := h.repo.GetAssessment(ctx, tenantID, assessmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "assessment not found",
			})
			return
		}
		slog.Error("failed to get assessment", "id", assessmentID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get assessment",
		})
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// ============================================================================
// HAZARD HANDLERS
// ============================================================================

// ListHazards returns the loaded hazard bin/damage tables.
func (h *Handler) ListHazards(w http.ResponseWriter, r *http.Request) {
	configs := make([]*domain.HazardConfig, 0, h.hazards.Count())
	for _, rt := range h.hazards.RiskTypes() {
		if cfg, ok := h.hazards.Config(rt); ok {
			configs = append(configs, cfg)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hazards": configs,
		"count":   len(configs),
	})
}

// ============================================================================
// SCREENING RULE HANDLERS
// ============================================================================

// GlobalTenantID is used for screening rules that apply to all tenants.
const GlobalTenantID = "*"

// ListScreeningRules returns persisted screening rules.
func (h *Handler) ListScreeningRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rules, err := h.repo.ListScreeningRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list screening rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  rules,
		"count":  len(rules),
		"loaded": h.screener.RuleCount(),
	})
}

// GetScreeningRule retrieves a screening rule by ID.
func (h *Handler) GetScreeningRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	rule, err := h.repo.GetScreeningRule(ctx, GlobalTenantID, ruleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "screening rule not found",
			})
			return
		}
		slog.Error("failed to get screening rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get screening rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateScreeningRule validates, persists and loads a screening rule.
func (h *Handler) CreateScreeningRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.ScreeningRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and expression are required",
		})
		return
	}
	for _, band := range rule.Bands {
		switch band.Severity {
		case domain.SeverityInfo, domain.SeverityWatch, domain.SeverityCritical:
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "unknown severity: " + band.Severity,
			})
			return
		}
	}

	rule.TenantID = GlobalTenantID
	if rule.Version == "" {
		rule.Version = "1.0.0"
	}

	// Validate CEL expression before persisting
	if err := h.screener.ValidateRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveScreeningRule(ctx, GlobalTenantID, &rule); err != nil {
		slog.Error("failed to save screening rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save screening rule",
		})
		return
	}

	if rule.Enabled {
		if err := h.screener.LoadRule(&rule); err != nil {
			slog.Error("failed to load screening rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("screening rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, &rule)
}

// DeleteScreeningRule deletes a screening rule and reloads the engine.
func (h *Handler) DeleteScreeningRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if err := h.repo.DeleteScreeningRule(ctx, GlobalTenantID, ruleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "screening rule not found",
			})
			return
		}
		slog.Error("failed to delete screening rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete screening rule",
		})
		return
	}

	// Reload so the deleted rule stops firing immediately
	rules, err := h.repo.ListScreeningRules(ctx, GlobalTenantID)
	if err == nil {
		if err := h.screener.ReloadRules(rules); err != nil {
			slog.Error("failed to reload rules after delete", "error", err)
		}
	}

	slog.Info("screening rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "screening rule deleted",
	})
}

// ReloadScreeningRules reloads all rules from the database into the engine.
func (h *Handler) ReloadScreeningRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rules, err := h.repo.ListScreeningRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load screening rules from database",
		})
		return
	}

	if err := h.screener.ReloadRules(rules); err != nil {
		slog.Error("failed to reload screening rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload screening rules: " + err.Error(),
		})
		return
	}

	slog.Info("screening rules reloaded", "count", h.screener.RuleCount())
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "screening rules reloaded successfully",
		"count":   h.screener.RuleCount(),
	})
}

// ============================================================================
// CLIMATE WAREHOUSE HANDLERS
// ============================================================================

// ClimateSamplesRequest is the request body for POST /climate/samples.
type ClimateSamplesRequest struct {
	SiteID   string             `json:"siteId"`
	Variable domain.Variable    `json:"variable"`
	Scenario domain.Scenario    `json:"scenario"`
	Samples  []domain.RawSample `json:"samples"`
}

// IngestClimateSamples stores raw climate samples for a site.
func (h *Handler) IngestClimateSamples(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req ClimateSamplesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.SiteID == "" || req.Variable == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "siteId and variable are required",
		})
		return
	}
	if !req.Scenario.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown scenario: " + string(req.Scenario),
		})
		return
	}
	if len(req.Samples) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "samples are required",
		})
		return
	}

	if err := h.repo.SaveClimateSamples(ctx, tenantID, req.SiteID, req.Variable, req.Scenario, req.Samples); err != nil {
		slog.Error("failed to save climate samples",
			"site_id", req.SiteID,
			"variable", req.Variable,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save climate samples",
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"saved": len(req.Samples),
	})
}

// TrackPointsRequest is the request body for POST /climate/tracks.
type TrackPointsRequest struct {
	SiteID   string              `json:"siteId"`
	Scenario domain.Scenario     `json:"scenario"`
	Points   []domain.TrackPoint `json:"points"`
}

// IngestTrackPoints stores cyclone track observations for a site.
func (h *Handler) IngestTrackPoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req TrackPointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.SiteID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "siteId is required",
		})
		return
	}
	if !req.Scenario.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown scenario: " + string(req.Scenario),
		})
		return
	}
	if len(req.Points) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "points are required",
		})
		return
	}

	if err := h.repo.SaveTrackPoints(ctx, tenantID, req.SiteID, req.Scenario, req.Points); err != nil {
		slog.Error("failed to save track points",
			"site_id", req.SiteID,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save track points",
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"saved": len(req.Points),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
