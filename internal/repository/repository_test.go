package repository

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"
	"time"

	"github.com/open-climate/physrisk/internal/domain"
)

func testRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "physrisk-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpFile.Name(),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSiteRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	asset := 5_000_000.0
	site := &domain.Site{
		ID:            "site-1",
		Name:          "Osaka Plant",
		Latitude:      34.69,
		Longitude:     135.50,
		AssetValue:    &asset,
		InsuranceRate: 0.25,
		Vulnerability: map[domain.RiskType]float64{
			domain.RiskExtremeHeat: 60,
			domain.RiskRiverFlood:  85,
		},
		VulnerabilityScaleMax: 100,
	}

	if err := repo.SaveSite(ctx, "tenant-1", site); err != nil {
		t.Fatalf("SaveSite failed: %v", err)
	}

	got, err := repo.GetSite(ctx, "tenant-1", "site-1")
	if err != nil {
		t.Fatalf("GetSite failed: %v", err)
	}
	if got.Name != "Osaka Plant" || got.InsuranceRate != 0.25 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.AssetValue == nil || *got.AssetValue != asset {
		t.Errorf("asset value mismatch: %v", got.AssetValue)
	}
	if got.Vulnerability[domain.RiskRiverFlood] != 85 {
		t.Errorf("vulnerability map mismatch: %v", got.Vulnerability)
	}

	// Upsert updates in place
	site.Name = "Osaka Plant 2"
	if err := repo.SaveSite(ctx, "tenant-1", site); err != nil {
		t.Fatalf("SaveSite upsert failed: %v", err)
	}
	got, _ = repo.GetSite(ctx, "tenant-1", "site-1")
	if got.Name != "Osaka Plant 2" {
		t.Errorf("upsert did not apply: %s", got.Name)
	}

	sites, err := repo.ListSites(ctx, "tenant-1")
	if err != nil || len(sites) != 1 {
		t.Errorf("ListSites = (%d, %v), want 1 site", len(sites), err)
	}
}

func TestSiteTenantIsolation(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	site := &domain.Site{ID: "site-1", Name: "Plant", VulnerabilityScaleMax: 100}
	if err := repo.SaveSite(ctx, "tenant-1", site); err != nil {
		t.Fatalf("SaveSite failed: %v", err)
	}

	if _, err := repo.GetSite(ctx, "tenant-2", "site-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-tenant read should be ErrNotFound, got %v", err)
	}
	if _, err := repo.GetSite(ctx, "", "site-1"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty tenant should be ErrInvalidInput, got %v", err)
	}
}

func TestHazardConfigRoundTripWithInfinity(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	cfg := &domain.HazardConfig{
		RiskType:    domain.RiskDrought,
		Version:     "2024-1",
		Description: "drought severity bins",
		Bins: []domain.Bin{
			{Lower: math.Inf(-1), Upper: 1},
			{Lower: 1, Upper: 2},
			{Lower: 2, Upper: math.Inf(1)},
		},
		DamageRates: []float64{0.0001, 0.001, 0.009},
	}

	if err := repo.SaveHazardConfig(ctx, "tenant-1", cfg); err != nil {
		t.Fatalf("SaveHazardConfig failed: %v", err)
	}

	configs, err := repo.ListHazardConfigs(ctx, "tenant-1")
	if err != nil {
		t.Fatalf("ListHazardConfigs failed: %v", err)
	}
	if len(configs) != 1 {
		t.Fatalf("expected 1 config, got %d", len(configs))
	}

	got := configs[0]
	if !math.IsInf(got.Bins[0].Lower, -1) {
		t.Errorf("-Inf lower bound lost: %v", got.Bins[0].Lower)
	}
	if !math.IsInf(got.Bins[2].Upper, 1) {
		t.Errorf("+Inf upper bound lost: %v", got.Bins[2].Upper)
	}
	if err := got.Validate(); err != nil {
		t.Errorf("restored config fails validation: %v", err)
	}
}

func TestScreeningRuleCRUD(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	lower := 0.01
	rule := &domain.ScreeningRule{
		ID:         "high-aal",
		Name:       "High AAL",
		Version:    "1.0.0",
		Expression: "final_aal",
		Bands: []domain.SeverityBand{
			{LowerLimit: &lower, Severity: domain.SeverityCritical, Reason: "AAL above 1%"},
		},
		Enabled: true,
	}

	if err := repo.SaveScreeningRule(ctx, "tenant-1", rule); err != nil {
		t.Fatalf("SaveScreeningRule failed: %v", err)
	}

	got, err := repo.GetScreeningRule(ctx, "tenant-1", "high-aal")
	if err != nil {
		t.Fatalf("GetScreeningRule failed: %v", err)
	}
	if got.Expression != "final_aal" || len(got.Bands) != 1 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Bands[0].LowerLimit == nil || *got.Bands[0].LowerLimit != 0.01 {
		t.Errorf("band bound mismatch: %+v", got.Bands[0])
	}

	rules, err := repo.ListScreeningRules(ctx, "tenant-1")
	if err != nil || len(rules) != 1 {
		t.Errorf("ListScreeningRules = (%d, %v)", len(rules), err)
	}

	if err := repo.DeleteScreeningRule(ctx, "tenant-1", "high-aal"); err != nil {
		t.Fatalf("DeleteScreeningRule failed: %v", err)
	}
	if _, err := repo.GetScreeningRule(ctx, "tenant-1", "high-aal"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted rule should be ErrNotFound, got %v", err)
	}
}

func TestAssessmentRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	period := domain.YearRange{Start: 2030, End: 2050}
	a := &domain.Assessment{
		ID:        "assessment-1",
		TenantID:  "tenant-1",
		SiteID:    "site-1",
		Status:    domain.AssessmentPartial,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Results: map[domain.Scenario]map[domain.RiskType]map[string]*domain.CellResult{
			domain.ScenarioSSP245: {
				domain.RiskExtremeHeat: {
					period.String(): {
						Status: domain.CellDone,
						Result: &domain.AALResult{
							RiskType: domain.RiskExtremeHeat,
							SiteID:   "site-1",
							Scenario: domain.ScenarioSSP245,
							Period:   period,
							BaseAAL:  0.0055,
							FinalAAL: 0.0055,
						},
					},
				},
				domain.RiskTyphoon: {
					period.String(): {
						Status:       domain.CellFailed,
						ErrorKind:    "insufficient_data",
						ErrorMessage: "typhoon requires cyclone track points",
					},
				},
			},
		},
		Metadata: domain.AssessmentMetadata{Cells: 2, FailedCells: 1, EngineVersion: "1.0.0"},
	}

	if err := repo.SaveAssessment(ctx, "tenant-1", a); err != nil {
		t.Fatalf("SaveAssessment failed: %v", err)
	}

	got, err := repo.GetAssessment(ctx, "tenant-1", "assessment-1")
	if err != nil {
		t.Fatalf("GetAssessment failed: %v", err)
	}
	if got.Status != domain.AssessmentPartial {
		t.Errorf("status = %s, want PARTIAL", got.Status)
	}

	done := got.Cell(domain.ScenarioSSP245, domain.RiskExtremeHeat, period)
	if done == nil || done.Status != domain.CellDone || done.Result.FinalAAL != 0.0055 {
		t.Errorf("done cell mismatch: %+v", done)
	}
	failed := got.Cell(domain.ScenarioSSP245, domain.RiskTyphoon, period)
	if failed == nil || failed.Status != domain.CellFailed || failed.ErrorKind != "insufficient_data" {
		t.Errorf("failed cell must survive persistence with its reason: %+v", failed)
	}

	list, err := repo.ListAssessmentsBySite(ctx, "tenant-1", "site-1", time.Now().Add(-time.Hour))
	if err != nil || len(list) != 1 {
		t.Errorf("ListAssessmentsBySite = (%d, %v)", len(list), err)
	}
}

func TestClimateSamplesRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	samples := []domain.RawSample{
		{Year: 2030, Month: 7, Day: 1, Value: 31.5},
		{Year: 2030, Month: 7, Day: 2, Value: 33.0},
		{Year: 2031, Month: 7, Day: 1, Value: 30.1},
		{Year: 2060, Month: 7, Day: 1, Value: 35.0},
	}

	err := repo.SaveClimateSamples(ctx, "tenant-1", "site-1", domain.VarTempMax, domain.ScenarioSSP245, samples)
	if err != nil {
		t.Fatalf("SaveClimateSamples failed: %v", err)
	}

	got, err := repo.GetClimateSamples(ctx, "tenant-1", "site-1",
		domain.VarTempMax, domain.ScenarioSSP245, domain.YearRange{Start: 2030, End: 2040})
	if err != nil {
		t.Fatalf("GetClimateSamples failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 samples in period, got %d", len(got))
	}
	if got[0].Value != 31.5 || got[2].Year != 2031 {
		t.Errorf("sample order/content mismatch: %+v", got)
	}

	// Upsert replaces the value
	err = repo.SaveClimateSamples(ctx, "tenant-1", "site-1", domain.VarTempMax, domain.ScenarioSSP245,
		[]domain.RawSample{{Year: 2030, Month: 7, Day: 1, Value: 32.0}})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, _ = repo.GetClimateSamples(ctx, "tenant-1", "site-1",
		domain.VarTempMax, domain.ScenarioSSP245, domain.YearRange{Start: 2030, End: 2030})
	if got[0].Value != 32.0 {
		t.Errorf("upsert did not apply: %v", got[0].Value)
	}
}

func TestTrackPointsRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	points := []domain.TrackPoint{
		{StormID: "TC-2030-01", Year: 2030, Latitude: 33.0, Longitude: 138.5, MaxWindKt: 85, RadiusMajorKm: 220, RadiusMinorKm: 160, BearingDeg: 40},
		{StormID: "TC-2030-01", Year: 2030, Latitude: 34.2, Longitude: 139.1, MaxWindKt: 78, RadiusMajorKm: 200, RadiusMinorKm: 150, BearingDeg: 35},
		{StormID: "TC-2055-03", Year: 2055, Latitude: 35.5, Longitude: 140.0, MaxWindKt: 110, RadiusMajorKm: 250, RadiusMinorKm: 180, BearingDeg: 20},
	}

	if err := repo.SaveTrackPoints(ctx, "tenant-1", "site-1", domain.ScenarioSSP585, points); err != nil {
		t.Fatalf("SaveTrackPoints failed: %v", err)
	}

	got, err := repo.GetTrackPoints(ctx, "tenant-1", "site-1", domain.ScenarioSSP585, domain.YearRange{Start: 2030, End: 2040})
	if err != nil {
		t.Fatalf("GetTrackPoints failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 points in period, got %d", len(got))
	}
	if got[0].StormID != "TC-2030-01" || got[0].MaxWindKt != 85 {
		t.Errorf("track point mismatch: %+v", got[0])
	}
}
