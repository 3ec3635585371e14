// Package runner orchestrates AAL computation across the requested
// {risk type} x {scenario} x {period} grid for one site.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/open-climate/physrisk/internal/aal"
	"github.com/open-climate/physrisk/internal/binprob"
	"github.com/open-climate/physrisk/internal/domain"
	"github.com/open-climate/physrisk/internal/hazard"
	"github.com/open-climate/physrisk/internal/intensity"
	"github.com/open-climate/physrisk/internal/vuln"
)

// EngineVersion is stamped on assessment metadata.
const EngineVersion = "1.0.0"

// ProgressFunc is invoked after each cell completes. Current counts
// completed cells; events arrive strictly in canonical risk-type order,
// since consumers render a progress bar from them. A nil callback is a
// no-op.
type ProgressFunc func(current, total int, rt domain.RiskType)

// Request describes one assessment run.
type Request struct {
	TenantID string
	Site     *domain.Site

	// RiskTypes defaults to all nine when empty. Order is irrelevant:
	// cells are processed in canonical risk order regardless.
	RiskTypes []domain.RiskType
	Scenarios []domain.Scenario
	Periods   []domain.YearRange

	// BaselinePeriod anchors percentile thresholds and anomaly
	// references.
	BaselinePeriod domain.YearRange

	// Convention overrides the runner's vulnerability scale convention
	// for this request.
	Convention *vuln.Convention

	OnProgress ProgressFunc
}

// Runner composes the extractors, hazard tables, probability estimation
// and aggregation into per-cell computations. Each cell is independent
// and side-effect-free except for its own result and an optional cache
// write, so a batch is safe to abandon and retry.
type Runner struct {
	extractors *intensity.Registry
	hazards    *hazard.Registry
	climate    domain.ClimateProvider
	cache      domain.Cache
	convention vuln.Convention
	cacheTTL   time.Duration
	maxWorkers int
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithCache enables cell-result caching.
func WithCache(cache domain.Cache, ttl time.Duration) Option {
	return func(r *Runner) {
		r.cache = cache
		r.cacheTTL = ttl
	}
}

// WithConvention sets the default vulnerability scale convention.
func WithConvention(c vuln.Convention) Option {
	return func(r *Runner) { r.convention = c }
}

// WithMaxWorkers bounds per-risk cell parallelism in RunParallel.
func WithMaxWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxWorkers = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner. The hazard registry is validated at
// construction, never mid-computation.
func New(extractors *intensity.Registry, hazards *hazard.Registry, climate domain.ClimateProvider, opts ...Option) *Runner {
	r := &Runner{
		extractors: extractors,
		hazards:    hazards,
		climate:    climate,
		convention: vuln.WideConvention(),
		cacheTTL:   time.Hour,
		maxWorkers: 4,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the request sequentially, risk type by risk type in
// canonical order, emitting ordered progress events.
func (r *Runner) Run(ctx context.Context, req *Request) (*domain.Assessment, error) {
	return r.run(ctx, req, 1)
}

// RunParallel executes cells within each risk type concurrently, bounded
// by the worker limit. Risk types still advance in canonical order so
// progress events stay ordered.
func (r *Runner) RunParallel(ctx context.Context, req *Request) (*domain.Assessment, error) {
	return r.run(ctx, req, r.maxWorkers)
}

func (r *Runner) run(ctx context.Context, req *Request, workers int) (*domain.Assessment, error) {
	if err := r.validate(req); err != nil {
		return nil, err
	}

	risks := canonicalOrder(req.RiskTypes)
	convention := r.convention
	if req.Convention != nil {
		convention = *req.Convention
	}
	if err := convention.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	assessment := &domain.Assessment{
		ID:        uuid.New().String(),
		TenantID:  req.TenantID,
		SiteID:    req.Site.ID,
		CreatedAt: started.UTC(),
		Results:   make(map[domain.Scenario]map[domain.RiskType]map[string]*domain.CellResult),
	}
	for _, scenario := range req.Scenarios {
		assessment.Results[scenario] = make(map[domain.RiskType]map[string]*domain.CellResult)
		for _, rt := range risks {
			byPeriod := make(map[string]*domain.CellResult)
			for _, period := range req.Periods {
				byPeriod[period.String()] = &domain.CellResult{Status: domain.CellPending}
			}
			assessment.Results[scenario][rt] = byPeriod
		}
	}

	total := len(risks) * len(req.Scenarios) * len(req.Periods)
	completed := 0

	for _, rt := range risks {
		type cellRef struct {
			scenario domain.Scenario
			period   domain.YearRange
		}
		cells := make([]cellRef, 0, len(req.Scenarios)*len(req.Periods))
		for _, scenario := range req.Scenarios {
			for _, period := range req.Periods {
				cells = append(cells, cellRef{scenario, period})
			}
		}

		var wg sync.WaitGroup
		sem := make(chan struct{}, workers)
		for _, c := range cells {
			slot := assessment.Results[c.scenario][rt][c.period.String()]
			wg.Add(1)
			sem <- struct{}{}
			go func(c cellRef, slot *domain.CellResult) {
				defer wg.Done()
				defer func() { <-sem }()
				r.computeCell(ctx, req, convention, rt, c.scenario, c.period, slot)
			}(c, slot)
		}
		wg.Wait()

		// Progress advances once per completed cell, emitted after the
		// whole risk type finishes so events never interleave across
		// risks.
		for range cells {
			completed++
			if req.OnProgress != nil {
				req.OnProgress(completed, total, rt)
			}
		}
	}

	totalCells, failed := assessment.CountCells()
	switch {
	case failed == 0:
		assessment.Status = domain.AssessmentComplete
	case failed == totalCells:
		assessment.Status = domain.AssessmentFailed
	default:
		assessment.Status = domain.AssessmentPartial
	}
	assessment.Metadata = domain.AssessmentMetadata{
		Cells:         totalCells,
		FailedCells:   failed,
		DurationMs:    time.Since(started).Milliseconds(),
		EngineVersion: EngineVersion,
	}

	r.logger.Info("assessment finished",
		"assessment_id", assessment.ID,
		"tenant_id", req.TenantID,
		"site_id", req.Site.ID,
		"status", assessment.Status,
		"cells", totalCells,
		"failed_cells", failed,
		"duration_ms", assessment.Metadata.DurationMs)

	return assessment, nil
}

func (r *Runner) validate(req *Request) error {
	if req.Site == nil {
		return fmt.Errorf("site is required")
	}
	if req.TenantID == "" {
		return fmt.Errorf("tenantID is required")
	}
	if len(req.Scenarios) == 0 {
		return fmt.Errorf("at least one scenario is required")
	}
	if len(req.Periods) == 0 {
		return fmt.Errorf("at least one period is required")
	}
	for _, scenario := range req.Scenarios {
		if !scenario.Valid() {
			return fmt.Errorf("unknown scenario %q", scenario)
		}
	}
	for _, period := range req.Periods {
		if !period.Valid() {
			return fmt.Errorf("invalid period %s", period)
		}
	}
	for _, rt := range req.RiskTypes {
		if !rt.Valid() {
			return fmt.Errorf("unknown risk type %q", rt)
		}
	}
	return nil
}

// computeCell runs one (risk, scenario, period) computation and records
// the outcome in the cell slot. Failures are contained here: they mark
// the cell FAILED with an error kind and never propagate.
func (r *Runner) computeCell(ctx context.Context, req *Request, convention vuln.Convention, rt domain.RiskType, scenario domain.Scenario, period domain.YearRange, slot *domain.CellResult) {
	slot.Status = domain.CellComputing

	score, scoreMax := vulnerabilityInputs(req.Site, rt, convention)
	key := domain.CellCacheKey{
		SiteID:   req.Site.ID,
		RiskType: rt,
		Scenario: scenario,
		Period:   period,
		VulnHash: domain.VulnerabilityHash(score, scoreMax, req.Site.InsuranceRate),
	}

	if r.cache != nil {
		if cached, err := r.cache.GetCell(ctx, req.TenantID, key); err == nil && cached != nil && cached.Status == domain.CellDone {
			result := *cached.Result
			result.Details.CacheHit = true
			slot.Status = domain.CellDone
			slot.Result = &result
			return
		}
	}

	result, err := r.compute(ctx, req, convention, rt, scenario, period, score, scoreMax)
	if err != nil {
		slot.Status = domain.CellFailed
		slot.ErrorKind = domain.ErrorKind(err)
		slot.ErrorMessage = err.Error()
		r.logger.Warn("cell computation failed",
			"tenant_id", req.TenantID,
			"site_id", req.Site.ID,
			"risk_type", rt,
			"scenario", scenario,
			"period", period.String(),
			"error_kind", slot.ErrorKind,
			"error", err)
		return
	}

	slot.Status = domain.CellDone
	slot.Result = result

	if r.cache != nil {
		done := &domain.CellResult{Status: domain.CellDone, Result: result}
		if err := r.cache.SetCell(ctx, req.TenantID, key, done, r.cacheTTL); err != nil {
			r.logger.Warn("cell cache write failed", "key", key.String(), "error", err)
		}
	}
}

func (r *Runner) compute(ctx context.Context, req *Request, convention vuln.Convention, rt domain.RiskType, scenario domain.Scenario, period domain.YearRange, score, scoreMax float64) (*domain.AALResult, error) {
	cfg, ok := r.hazards.Config(rt)
	if !ok {
		return nil, fmt.Errorf("%w: no hazard config for %s", domain.ErrConfigMismatch, rt)
	}
	extractor, ok := r.extractors.Lookup(rt)
	if !ok {
		return nil, fmt.Errorf("%w: no extractor for %s", domain.ErrConfigMismatch, rt)
	}

	inputs, err := r.loadInputs(ctx, req, extractor, rt, scenario, period)
	if err != nil {
		return nil, err
	}

	series, err := extractor.Extract(inputs)
	if err != nil {
		return nil, err
	}

	estimate, err := binprob.EstimateProbabilities(series, cfg.Bins)
	if err != nil {
		return nil, err
	}

	cellConvention := convention
	cellConvention.ScoreMax = scoreMax
	scale := 1.0
	if _, has := req.Site.Vulnerability[rt]; has {
		scale, err = cellConvention.Scale(score)
		if err != nil {
			return nil, err
		}
	}

	return aal.Aggregate(aal.Input{
		RiskType:      rt,
		SiteID:        req.Site.ID,
		Scenario:      scenario,
		Period:        period,
		Probabilities: estimate.Probabilities,
		DamageRates:   cfg.DamageRates,
		ScaleFactor:   scale,
		InsuranceRate: req.Site.InsuranceRate,
		AssetValue:    req.Site.AssetValue,
		Details: domain.CalculationDetails{
			Estimator:     estimate.Method,
			Normalization: series.Normalization,
			SampleCount:   estimate.SampleCount,
			ConfigVersion: cfg.Version,
		},
	})
}

// loadInputs assembles the raw-data bundle: the strategy's required
// variables plus optional companions for the period, baselines for the
// required set, and cyclone tracks for the typhoon strategy.
func (r *Runner) loadInputs(ctx context.Context, req *Request, extractor intensity.Extractor, rt domain.RiskType, scenario domain.Scenario, period domain.YearRange) (*intensity.Inputs, error) {
	in := &intensity.Inputs{
		Site:           req.Site,
		Series:         make(map[domain.Variable][]domain.RawSample),
		Baseline:       make(map[domain.Variable][]domain.RawSample),
		Period:         period,
		BaselinePeriod: req.BaselinePeriod,
	}

	variables := extractor.RequiredVariables()
	if rt == domain.RiskWaterStress {
		// Optional companion for the evapotranspiration adjustment.
		variables = append(variables, domain.VarTempMean)
	}

	for _, v := range variables {
		samples, err := r.climate.Series(ctx, req.TenantID, req.Site.ID, v, scenario, period)
		if err != nil {
			return nil, err
		}
		if len(samples) > 0 {
			in.Series[v] = samples
		}

		if req.BaselinePeriod.Valid() {
			baseline, err := r.climate.Series(ctx, req.TenantID, req.Site.ID, v, domain.ScenarioHistorical, req.BaselinePeriod)
			if err != nil {
				return nil, err
			}
			if len(baseline) > 0 {
				in.Baseline[v] = baseline
			}
		}
	}

	if rt == domain.RiskTyphoon {
		tracks, err := r.climate.TrackPoints(ctx, req.TenantID, req.Site.ID, scenario, period)
		if err != nil {
			return nil, err
		}
		in.Tracks = tracks
	}

	return in, nil
}

// vulnerabilityInputs resolves the site's score and declared bound for a
// risk type. A missing score means the vulnerability subsystem has no
// assessment for that hazard; the caller applies a neutral factor.
func vulnerabilityInputs(site *domain.Site, rt domain.RiskType, convention vuln.Convention) (score, scoreMax float64) {
	scoreMax = site.VulnerabilityScaleMax
	if scoreMax <= 0 {
		scoreMax = convention.ScoreMax
	}
	score = site.Vulnerability[rt]
	return score, scoreMax
}

// canonicalOrder returns the requested risk set in canonical order, or
// all risk types when the set is empty. Deduplicates.
func canonicalOrder(requested []domain.RiskType) []domain.RiskType {
	if len(requested) == 0 {
		return domain.AllRiskTypes()
	}
	want := make(map[domain.RiskType]bool, len(requested))
	for _, rt := range requested {
		want[rt] = true
	}
	out := make([]domain.RiskType, 0, len(want))
	for _, rt := range domain.AllRiskTypes() {
		if want[rt] {
			out = append(out, rt)
		}
	}
	return out
}
