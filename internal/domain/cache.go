package domain

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"
)

// Cache defines the interface for caching operations.
// Supports two-phase caching: local LRU (Community) + Redis (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, tenantID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, tenantID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, tenantID string, key string) error

	// GetCell retrieves a cached cell result.
	GetCell(ctx context.Context, tenantID string, key CellCacheKey) (*CellResult, error)

	// SetCell caches a completed cell result. Duplicate concurrent writes
	// for the same key are wasted work, not a correctness bug, so no
	// exactly-once guarantee is required.
	SetCell(ctx context.Context, tenantID string, key CellCacheKey, cell *CellResult, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns the
	// new value. Used for per-tenant processing statistics.
	IncrementCounter(ctx context.Context, tenantID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CellCacheKey identifies one cached cell computation. VulnHash folds the
// site's vulnerability inputs in, so a changed score never serves a stale
// AAL.
type CellCacheKey struct {
	SiteID   string
	RiskType RiskType
	Scenario Scenario
	Period   YearRange
	VulnHash uint64
}

// String renders the cache key in a stable form.
func (k CellCacheKey) String() string {
	return fmt.Sprintf("cell:%s:%s:%s:%s:%x", k.SiteID, k.RiskType, k.Scenario, k.Period, k.VulnHash)
}

// VulnerabilityHash derives the cache-key component from a site's
// vulnerability inputs for one risk type.
func VulnerabilityHash(score, scoreMax, insuranceRate float64) uint64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.FormatFloat(score, 'g', -1, 64)))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.FormatFloat(scoreMax, 'g', -1, 64)))
	h.Write([]byte{':'})
	h.Write([]byte(strconv.FormatFloat(insuranceRate, 'g', -1, 64)))
	return h.Sum64()
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
