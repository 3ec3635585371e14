// Package climate adapts the upstream climate warehouse to the
// ClimateProvider interface consumed by the assessment runner.
package climate

import (
	"context"
	"fmt"

	"github.com/open-climate/physrisk/internal/domain"
)

// WarehouseProvider serves per-site climate series from the repository,
// which the external ETL pipeline keeps loaded.
type WarehouseProvider struct {
	repo domain.Repository
}

// NewWarehouseProvider creates a provider backed by the repository.
func NewWarehouseProvider(repo domain.Repository) *WarehouseProvider {
	return &WarehouseProvider{repo: repo}
}

// Series returns the samples for one (site, variable, scenario) series
// within the period. An empty result is returned as-is; the extractor
// layer decides whether absence is fatal for its risk type.
func (p *WarehouseProvider) Series(ctx context.Context, tenantID, siteID string, v domain.Variable, scenario domain.Scenario, period domain.YearRange) ([]domain.RawSample, error) {
	if tenantID == "" || siteID == "" {
		return nil, fmt.Errorf("tenantID and siteID are required")
	}
	samples, err := p.repo.GetClimateSamples(ctx, tenantID, siteID, v, scenario, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s series: %w", v, err)
	}
	return samples, nil
}

// TrackPoints returns cyclone track observations near the site within
// the period.
func (p *WarehouseProvider) TrackPoints(ctx context.Context, tenantID, siteID string, scenario domain.Scenario, period domain.YearRange) ([]domain.TrackPoint, error) {
	if tenantID == "" || siteID == "" {
		return nil, fmt.Errorf("tenantID and siteID are required")
	}
	points, err := p.repo.GetTrackPoints(ctx, tenantID, siteID, scenario, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load track points: %w", err)
	}
	return points, nil
}

// StaticProvider serves fixed in-memory series. Used in tests and in
// the benchmark tool, where synthetic data is generated up front.
type StaticProvider struct {
	// SeriesData is keyed by variable; the same series is returned for
	// every site and scenario.
	SeriesData map[domain.Variable][]domain.RawSample
	Tracks     []domain.TrackPoint
}

func (p *StaticProvider) Series(_ context.Context, _, _ string, v domain.Variable, _ domain.Scenario, _ domain.YearRange) ([]domain.RawSample, error) {
	return p.SeriesData[v], nil
}

func (p *StaticProvider) TrackPoints(_ context.Context, _, _ string, _ domain.Scenario, _ domain.YearRange) ([]domain.TrackPoint, error) {
	return p.Tracks, nil
}
