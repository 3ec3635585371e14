package worker

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/open-climate/physrisk/internal/bus"
	"github.com/open-climate/physrisk/internal/climate"
	"github.com/open-climate/physrisk/internal/domain"
	"github.com/open-climate/physrisk/internal/hazard"
	"github.com/open-climate/physrisk/internal/intensity"
	"github.com/open-climate/physrisk/internal/repository"
	"github.com/open-climate/physrisk/internal/runner"
	"github.com/open-climate/physrisk/internal/screening"
)

func testProvider() *climate.StaticProvider {
	var tasmax []domain.RawSample
	for year := 2030; year < 2040; year++ {
		for day := 1; day <= 28; day++ {
			value := 22.0
			if day >= 10 && day <= 14 {
				value = 33.0
			}
			tasmax = append(tasmax, domain.RawSample{Year: year, Month: 7, Day: day, Value: value})
		}
	}
	return &climate.StaticProvider{
		SeriesData: map[domain.Variable][]domain.RawSample{
			domain.VarTempMax: tasmax,
		},
	}
}

func testRunner(t *testing.T) *runner.Runner {
	t.Helper()

	hazards, err := hazard.NewRegistry(hazard.DefaultConfigs())
	if err != nil {
		t.Fatalf("failed to build hazard registry: %v", err)
	}
	return runner.New(intensity.DefaultRegistry(), hazards, testProvider())
}

func testRepo(t *testing.T) domain.Repository {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "worker_test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestWorker(t *testing.T) {
	eventBus := bus.NewChannelBus(100)
	defer eventBus.Close()

	repo := testRepo(t)
	run := testRunner(t)

	site := &domain.Site{
		ID:       "site-001",
		TenantID: "tenant-test",
		Name:     "Coastal Plant",
		Latitude: 35.0, Longitude: 139.0,
	}
	if err := repo.SaveSite(context.Background(), "tenant-test", site); err != nil {
		t.Fatalf("SaveSite failed: %v", err)
	}

	t.Run("StartAndStop", func(t *testing.T) {
		w := NewWorker(eventBus, repo, run, nil, nil)

		cfg := Config{TenantIDs: []string{"tenant-001"}}
		if err := w.Start(cfg); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		stats := w.GetStats()
		if stats.SubscriptionCount != 1 {
			t.Errorf("expected 1 subscription, got %d", stats.SubscriptionCount)
		}

		if err := w.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}

		stats = w.GetStats()
		if stats.SubscriptionCount != 0 {
			t.Errorf("expected 0 subscriptions after stop, got %d", stats.SubscriptionCount)
		}
	})

	t.Run("ProcessAssessment", func(t *testing.T) {
		w := NewWorker(eventBus, repo, run, nil, nil)

		cfg := Config{TenantIDs: []string{"tenant-test"}}
		w.Start(cfg)
		defer w.Stop()

		var completedReceived atomic.Bool
		var completedPayload []byte
		var mu sync.Mutex
		var progressEvents []domain.ProgressEvent

		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAssessmentCompleted, func(ctx context.Context, msg *domain.Message) error {
			completedPayload = msg.Payload
			completedReceived.Store(true)
			return nil
		})
		eventBus.Subscribe(context.Background(), "tenant-test", domain.TopicAssessmentProgress, func(ctx context.Context, msg *domain.Message) error {
			var event domain.ProgressEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				return err
			}
			mu.Lock()
			progressEvents = append(progressEvents, event)
			mu.Unlock()
			return nil
		})

		// Allow subscriptions to be active
		time.Sleep(50 * time.Millisecond)

		req := AssessmentMessage{
			TenantID:       "tenant-test",
			SiteID:         "site-001",
			TraceID:        "trace-001",
			RiskTypes:      []domain.RiskType{domain.RiskExtremeHeat},
			Scenarios:      []domain.Scenario{domain.ScenarioSSP245},
			Periods:        []domain.YearRange{{Start: 2030, End: 2039}},
			BaselinePeriod: domain.YearRange{Start: 1995, End: 2014},
		}

		payload, _ := json.Marshal(req)
		if err := eventBus.Publish(context.Background(), "tenant-test", domain.TopicAssessmentRequested, payload); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}

		// Wait for processing
		time.Sleep(200 * time.Millisecond)

		if !completedReceived.Load() {
			t.Fatal("expected assessment completion to be published")
		}

		var a domain.Assessment
		if err := json.Unmarshal(completedPayload, &a); err != nil {
			t.Fatalf("failed to parse completed assessment: %v", err)
		}

		if a.SiteID != "site-001" {
			t.Errorf("expected siteID 'site-001', got '%s'", a.SiteID)
		}
		if a.Status != domain.AssessmentComplete {
			t.Errorf("expected status COMPLETE, got '%s'", a.Status)
		}
		if a.Metadata.TraceID != "trace-001" {
			t.Errorf("expected traceID 'trace-001', got '%s'", a.Metadata.TraceID)
		}

		// The run produced one cell, so exactly one progress event
		mu.Lock()
		defer mu.Unlock()
		if len(progressEvents) != 1 {
			t.Fatalf("expected 1 progress event, got %d", len(progressEvents))
		}
		if progressEvents[0].Current != 1 || progressEvents[0].Total != 1 {
			t.Errorf("unexpected progress counts: %+v", progressEvents[0])
		}
		if progressEvents[0].RiskType != domain.RiskExtremeHeat {
			t.Errorf("expected extreme_heat progress, got %s", progressEvents[0].RiskType)
		}

		// The assessment must also have been persisted
		saved, err := repo.GetAssessment(context.Background(), "tenant-test", a.ID)
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}
		if saved.Status != domain.AssessmentComplete {
			t.Errorf("persisted status = %s, want COMPLETE", saved.Status)
		}
	})

	t.Run("FlagPublished", func(t *testing.T) {
		screener, err := screening.NewEngine()
		if err != nil {
			t.Fatalf("NewEngine failed: %v", err)
		}
		defer screener.Close()

		// Any completed cell raises a watch flag
		if err := screener.LoadRule(&domain.ScreeningRule{
			ID:         "always-flag",
			Version:    "1",
			Expression: "final_aal >= 0.0",
			Enabled:    true,
		}); err != nil {
			t.Fatalf("LoadRule failed: %v", err)
		}

		w := NewWorker(eventBus, repo, run, screener, nil)

		cfg := Config{TenantIDs: []string{"tenant-flag"}}
		w.Start(cfg)
		defer w.Stop()

		flagSite := &domain.Site{ID: "site-flag", TenantID: "tenant-flag", Latitude: 35.0, Longitude: 139.0}
		if err := repo.SaveSite(context.Background(), "tenant-flag", flagSite); err != nil {
			t.Fatalf("SaveSite failed: %v", err)
		}

		var flagReceived atomic.Bool
		eventBus.Subscribe(context.Background(), "tenant-flag", domain.TopicRiskFlag, func(ctx context.Context, msg *domain.Message) error {
			flagReceived.Store(true)
			return nil
		})

		time.Sleep(50 * time.Millisecond)

		req := AssessmentMessage{
			TenantID:  "tenant-flag",
			SiteID:    "site-flag",
			RiskTypes: []domain.RiskType{domain.RiskExtremeHeat},
			Scenarios: []domain.Scenario{domain.ScenarioSSP245},
			Periods:   []domain.YearRange{{Start: 2030, End: 2039}},
		}
		payload, _ := json.Marshal(req)
		eventBus.Publish(context.Background(), "tenant-flag", domain.TopicAssessmentRequested, payload)

		time.Sleep(200 * time.Millisecond)

		if !flagReceived.Load() {
			t.Error("expected risk flag to be published")
		}
	})

	t.Run("MultiTenant", func(t *testing.T) {
		w := NewWorker(eventBus, repo, run, nil, nil)

		cfg := Config{TenantIDs: []string{"tenant-a", "tenant-b"}}
		w.Start(cfg)
		defer w.Stop()

		stats := w.GetStats()
		if stats.SubscriptionCount != 2 {
			t.Errorf("expected 2 subscriptions for 2 tenants, got %d", stats.SubscriptionCount)
		}
	})
}

func TestAssessmentMessageParsing(t *testing.T) {
	msg := AssessmentMessage{
		TenantID:       "tenant-001",
		SiteID:         "site-123",
		TraceID:        "trace-456",
		RiskTypes:      []domain.RiskType{domain.RiskRiverFlood, domain.RiskDrought},
		Scenarios:      []domain.Scenario{domain.ScenarioSSP585},
		Periods:        []domain.YearRange{{Start: 2040, End: 2059}},
		BaselinePeriod: domain.YearRange{Start: 1995, End: 2014},
		Parallel:       true,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed AssessmentMessage
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if parsed.SiteID != msg.SiteID {
		t.Errorf("expected SiteID '%s', got '%s'", msg.SiteID, parsed.SiteID)
	}
	if len(parsed.RiskTypes) != 2 {
		t.Errorf("expected 2 risk types, got %d", len(parsed.RiskTypes))
	}
	if parsed.Periods[0].String() != "2040-2059" {
		t.Errorf("expected period 2040-2059, got %s", parsed.Periods[0].String())
	}
	if !parsed.Parallel {
		t.Error("expected Parallel to survive round trip")
	}
}
