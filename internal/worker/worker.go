// Package worker provides async assessment processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/open-climate/physrisk/internal/domain"
	"github.com/open-climate/physrisk/internal/runner"
	"github.com/open-climate/physrisk/internal/screening"
	"github.com/open-climate/physrisk/internal/vuln"
)

// Worker processes assessment requests asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	runner   *runner.Runner
	screener *screening.Engine
	cache    domain.Cache

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string
}

// NewWorker creates a new async worker. The screener and cache are
// optional; a nil screener skips flagging, a nil cache skips stats.
func NewWorker(bus domain.EventBus, repo domain.Repository, run *runner.Runner, screener *screening.Engine, cache domain.Cache) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		runner:   run,
		screener: screener,
		cache:    cache,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing assessment requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAssessmentRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAssessmentRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processAssessment(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAssessmentRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processAssessment(ctx, msg.TenantID, msg)
}

// AssessmentMessage is the message payload for assessment processing.
type AssessmentMessage struct {
	TenantID       string             `json:"tenantId"`
	SiteID         string             `json:"siteId"`
	TraceID        string             `json:"traceId,omitempty"`
	RiskTypes      []domain.RiskType  `json:"riskTypes,omitempty"`
	Scenarios      []domain.Scenario  `json:"scenarios"`
	Periods        []domain.YearRange `json:"periods"`
	BaselinePeriod domain.YearRange   `json:"baselinePeriod,omitempty"`
	Convention     *vuln.Convention   `json:"convention,omitempty"`
	Parallel       bool               `json:"parallel,omitempty"`
}

// processAssessment runs one assessment request through the pipeline.
func (w *Worker) processAssessment(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req AssessmentMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse assessment message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if req.TenantID != "" {
		tenantID = req.TenantID
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing assessment request",
		"site_id", req.SiteID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Load the site
	site, err := w.repo.GetSite(ctx, tenantID, req.SiteID)
	if err != nil {
		slog.Error("failed to load site",
			"site_id", req.SiteID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	// 2. Run the assessment, streaming progress events
	runReq := &runner.Request{
		TenantID:       tenantID,
		Site:           site,
		RiskTypes:      req.RiskTypes,
		Scenarios:      req.Scenarios,
		Periods:        req.Periods,
		BaselinePeriod: req.BaselinePeriod,
		Convention:     req.Convention,
		OnProgress: func(current, total int, rt domain.RiskType) {
			w.publishProgress(ctx, tenantID, req.SiteID, traceID, current, total, rt)
		},
	}

	var assessment *domain.Assessment
	if req.Parallel {
		assessment, err = w.runner.RunParallel(ctx, runReq)
	} else {
		assessment, err = w.runner.Run(ctx, runReq)
	}
	if err != nil {
		slog.Error("assessment run failed",
			"site_id", req.SiteID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}
	assessment.Metadata.TraceID = traceID

	// 3. Screen completed cells
	if w.screener != nil && w.screener.RuleCount() > 0 {
		assessment.Flags = w.screener.Screen(assessment)
	}

	// 4. Save assessment
	if err := w.repo.SaveAssessment(ctx, tenantID, assessment); err != nil {
		slog.Error("failed to save assessment",
			"assessment_id", assessment.ID,
			"error", err,
		)
	}

	// 5. Publish completion
	resultPayload, _ := json.Marshal(assessment)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAssessmentCompleted, resultPayload); err != nil {
		slog.Error("failed to publish assessment completion",
			"assessment_id", assessment.ID,
			"error", err,
		)
	}

	// 6. Publish raised flags individually
	for _, flag := range assessment.Flags {
		flagPayload, _ := json.Marshal(flag)
		if err := w.bus.Publish(ctx, tenantID, domain.TopicRiskFlag, flagPayload); err != nil {
			slog.Error("failed to publish risk flag",
				"assessment_id", assessment.ID,
				"rule_id", flag.RuleID,
				"error", err,
			)
		}
	}

	// 7. Per-tenant processing stats
	if w.cache != nil {
		if _, err := w.cache.IncrementCounter(ctx, tenantID, "stats:assessments", 24*time.Hour); err != nil {
			slog.Debug("failed to increment assessment counter", "error", err)
		}
	}

	slog.Info("assessment processed",
		"assessment_id", assessment.ID,
		"tenant_id", tenantID,
		"site_id", req.SiteID,
		"status", assessment.Status,
		"flags", len(assessment.Flags),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (w *Worker) publishProgress(ctx context.Context, tenantID, siteID, traceID string, current, total int, rt domain.RiskType) {
	event := domain.ProgressEvent{
		AssessmentID: traceID,
		SiteID:       siteID,
		Current:      current,
		Total:        total,
		RiskType:     rt,
	}
	payload, _ := json.Marshal(event)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAssessmentProgress, payload); err != nil {
		slog.Debug("failed to publish progress event",
			"site_id", siteID,
			"error", err,
		)
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
