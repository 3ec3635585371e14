// Physrisk - Climate physical-risk scoring for site portfolios.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/open-climate/physrisk/internal/api"
	"github.com/open-climate/physrisk/internal/bus"
	"github.com/open-climate/physrisk/internal/cache"
	"github.com/open-climate/physrisk/internal/climate"
	"github.com/open-climate/physrisk/internal/domain"
	"github.com/open-climate/physrisk/internal/hazard"
	"github.com/open-climate/physrisk/internal/intensity"
	"github.com/open-climate/physrisk/internal/repository"
	"github.com/open-climate/physrisk/internal/runner"
	"github.com/open-climate/physrisk/internal/screening"
	"github.com/open-climate/physrisk/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("PHYSRISK_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting physrisk",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("PHYSRISK_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}
	if dir := os.Getenv("PHYSRISK_HAZARD_DIR"); dir != "" {
		cfg.Hazard.Dir = dir
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Load hazard bin/damage tables. Invalid tables are fatal: a config
	// mismatch discovered mid-assessment would poison results.
	hazards, err := loadHazardRegistry(cfg)
	if err != nil {
		slog.Error("failed to load hazard tables", "error", err)
		os.Exit(1)
	}
	slog.Info("hazard tables loaded", "risk_types", hazards.Count())

	// Initialize the assessment runner over the warehouse-backed provider
	provider := climate.NewWarehouseProvider(repo)
	run := runner.New(intensity.DefaultRegistry(), hazards, provider,
		runner.WithCache(cacheImpl, time.Duration(cfg.Assessment.CacheTTLSecs)*time.Second),
		runner.WithMaxWorkers(cfg.Assessment.MaxWorkers),
	)
	slog.Info("assessment runner initialized", "max_workers", cfg.Assessment.MaxWorkers)

	// Initialize Screening Engine
	screener, err := screening.NewEngine()
	if err != nil {
		slog.Error("failed to initialize screening engine", "error", err)
		os.Exit(1)
	}
	defer screener.Close()

	// Load screening rules from database (no hardcoded defaults)
	if err := loadScreeningRules(ctx, repo, screener); err != nil {
		slog.Error("failed to load screening rules", "error", err)
		os.Exit(1)
	}
	slog.Info("screening engine initialized", "rules_count", screener.RuleCount())

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("PHYSRISK_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, run, screener, cacheImpl)

		var tenantIDs []string
		if envTenants := os.Getenv("PHYSRISK_TENANTS"); envTenants != "" {
			for _, tenant := range strings.Split(envTenants, ",") {
				if tenant = strings.TrimSpace(tenant); tenant != "" {
					tenantIDs = append(tenantIDs, tenant)
				}
			}
		}

		workerCfg := worker.Config{TenantIDs: tenantIDs}
		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, run, screener, hazards, Version, cfg.Tier)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("physrisk is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("physrisk shutdown complete")
}

// GlobalTenantID is used for screening rules that apply to all tenants.
const GlobalTenantID = "*"

// loadHazardRegistry builds the validated hazard table registry from the
// configured directory, falling back to the built-in default tables.
func loadHazardRegistry(cfg *domain.Config) (*hazard.Registry, error) {
	if cfg.Hazard.Dir != "" {
		configs, err := hazard.LoadDir(cfg.Hazard.Dir)
		if err != nil {
			return nil, err
		}
		slog.Info("hazard tables loaded from directory", "dir", cfg.Hazard.Dir, "count", len(configs))
		return hazard.NewRegistry(configs)
	}
	return hazard.NewRegistry(hazard.DefaultConfigs())
}

// loadScreeningRules loads screening rules from the database into the
// engine. All rules are configured via POST /screening/rules.
func loadScreeningRules(ctx context.Context, repo domain.Repository, screener *screening.Engine) error {
	dbRules, err := repo.ListScreeningRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list screening rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading screening rules from database", "count", len(dbRules))
		return screener.LoadRules(dbRules)
	}

	slog.Info("no screening rules in database - configure via POST /screening/rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  physrisk - climate physical-risk scoring")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /sites                   - Register a site")
	fmt.Println("    GET  /sites/{id}              - Get site by ID")
	fmt.Println("    POST /assessments             - Run an assessment")
	fmt.Println("    GET  /assessments/{id}        - Get assessment by ID")
	fmt.Println("    GET  /hazards                 - List hazard tables")
	fmt.Println("    GET  /screening/rules         - List screening rules")
	fmt.Println("    POST /screening/rules         - Create a screening rule")
	fmt.Println("    POST /screening/rules/reload  - Hot-reload rules from database")
	fmt.Println("    POST /climate/samples         - Ingest climate samples")
	fmt.Println("    POST /climate/tracks          - Ingest cyclone tracks")
	fmt.Println("    GET  /health                  - Health check")
	fmt.Println()
}
