package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Site operations
	SaveSite(ctx context.Context, tenantID string, site *Site) error
	GetSite(ctx context.Context, tenantID string, siteID string) (*Site, error)
	ListSites(ctx context.Context, tenantID string) ([]*Site, error)

	// Hazard configuration (versioned declarative bin/damage tables)
	SaveHazardConfig(ctx context.Context, tenantID string, cfg *HazardConfig) error
	ListHazardConfigs(ctx context.Context, tenantID string) ([]*HazardConfig, error)

	// Screening rule operations
	SaveScreeningRule(ctx context.Context, tenantID string, rule *ScreeningRule) error
	GetScreeningRule(ctx context.Context, tenantID string, ruleID string) (*ScreeningRule, error)
	ListScreeningRules(ctx context.Context, tenantID string) ([]*ScreeningRule, error)
	DeleteScreeningRule(ctx context.Context, tenantID string, ruleID string) error

	// Assessment results
	SaveAssessment(ctx context.Context, tenantID string, a *Assessment) error
	GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*Assessment, error)
	ListAssessmentsBySite(ctx context.Context, tenantID string, siteID string, since time.Time) ([]*Assessment, error)

	// Climate warehouse (per-site raw series keyed by variable + scenario)
	SaveClimateSamples(ctx context.Context, tenantID string, siteID string, v Variable, scenario Scenario, samples []RawSample) error
	GetClimateSamples(ctx context.Context, tenantID string, siteID string, v Variable, scenario Scenario, period YearRange) ([]RawSample, error)
	SaveTrackPoints(ctx context.Context, tenantID string, siteID string, scenario Scenario, points []TrackPoint) error
	GetTrackPoints(ctx context.Context, tenantID string, siteID string, scenario Scenario, period YearRange) ([]TrackPoint, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
