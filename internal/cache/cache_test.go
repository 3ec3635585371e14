package cache

import (
	"context"
	"testing"
	"time"

	"github.com/open-climate/physrisk/internal/domain"
)

func TestLRUCacheGetSet(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "tenant-1", "key1", []byte("value1"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "tenant-1", "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "value1" {
		t.Errorf("got %q, want value1", val)
	}

	// Missing key returns nil, nil
	val, err = c.Get(ctx, "tenant-1", "missing")
	if err != nil || val != nil {
		t.Errorf("missing key should return nil, nil; got %v, %v", val, err)
	}
}

func TestLRUCacheTenantIsolation(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "tenant-1", "shared-key", []byte("t1"), time.Minute)
	_ = c.Set(ctx, "tenant-2", "shared-key", []byte("t2"), time.Minute)

	v1, _ := c.Get(ctx, "tenant-1", "shared-key")
	v2, _ := c.Get(ctx, "tenant-2", "shared-key")
	if string(v1) != "t1" || string(v2) != "t2" {
		t.Errorf("tenant keys leaked: %q, %q", v1, v2)
	}

	if _, err := c.Get(ctx, "", "shared-key"); err == nil {
		t.Error("empty tenantID should be rejected")
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "tenant-1", "short", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	val, err := c.Get(ctx, "tenant-1", "short")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != nil {
		t.Error("expired entry should return nil")
	}
}

func TestLRUCacheEviction(t *testing.T) {
	c := NewLRUCache(3)
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d"} {
		_ = c.Set(ctx, "tenant-1", k, []byte(k), time.Minute)
	}

	size, capacity := c.Stats()
	if size != 3 || capacity != 3 {
		t.Errorf("stats = (%d, %d), want (3, 3)", size, capacity)
	}

	// Oldest entry evicted
	if val, _ := c.Get(ctx, "tenant-1", "a"); val != nil {
		t.Error("oldest entry should have been evicted")
	}
	if val, _ := c.Get(ctx, "tenant-1", "d"); val == nil {
		t.Error("newest entry should survive")
	}
}

func TestLRUCacheCellRoundTrip(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	key := domain.CellCacheKey{
		SiteID:   "site-1",
		RiskType: domain.RiskExtremeHeat,
		Scenario: domain.ScenarioSSP245,
		Period:   domain.YearRange{Start: 2030, End: 2050},
		VulnHash: domain.VulnerabilityHash(42, 100, 0.1),
	}
	cell := &domain.CellResult{
		Status: domain.CellDone,
		Result: &domain.AALResult{
			RiskType:         domain.RiskExtremeHeat,
			SiteID:           "site-1",
			Scenario:         domain.ScenarioSSP245,
			Period:           domain.YearRange{Start: 2030, End: 2050},
			BaseAAL:          0.0055,
			ScaleFactor:      1.0,
			FinalAAL:         0.0055,
			BinProbabilities: []float64{0.3, 0.4, 0.2, 0.1},
			BinDamageRates:   []float64{0.001, 0.003, 0.010, 0.020},
		},
	}

	if err := c.SetCell(ctx, "tenant-1", key, cell, time.Minute); err != nil {
		t.Fatalf("SetCell failed: %v", err)
	}

	got, err := c.GetCell(ctx, "tenant-1", key)
	if err != nil {
		t.Fatalf("GetCell failed: %v", err)
	}
	if got == nil {
		t.Fatal("cached cell not found")
	}
	if got.Status != domain.CellDone || got.Result.FinalAAL != 0.0055 {
		t.Errorf("round trip mismatch: %+v", got)
	}

	// Different vulnerability hash is a different key
	other := key
	other.VulnHash = domain.VulnerabilityHash(90, 100, 0.1)
	miss, err := c.GetCell(ctx, "tenant-1", other)
	if err != nil {
		t.Fatalf("GetCell failed: %v", err)
	}
	if miss != nil {
		t.Error("changed vulnerability hash should miss")
	}
}

func TestLRUCacheCounter(t *testing.T) {
	c := NewLRUCache(10)
	defer c.Close()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := c.IncrementCounter(ctx, "tenant-1", "assessments", time.Minute)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if n != i {
			t.Errorf("counter = %d, want %d", n, i)
		}
	}

	// Separate tenant starts its own counter
	n, _ := c.IncrementCounter(ctx, "tenant-2", "assessments", time.Minute)
	if n != 1 {
		t.Errorf("tenant-2 counter = %d, want 1", n)
	}
}

func TestNewFactory(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*LRUCache); !ok {
		t.Errorf("memory config should yield an LRU cache, got %T", c)
	}

	if _, err := New(domain.CacheConfig{Type: "bogus"}); err == nil {
		t.Error("unknown cache type should fail")
	}
}
