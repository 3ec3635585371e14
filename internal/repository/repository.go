// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/open-climate/physrisk/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveSite stores a site with tenant isolation.
func (r *SQLRepository) SaveSite(ctx context.Context, tenantID string, site *domain.Site) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	vulnerability, _ := json.Marshal(site.Vulnerability)

	now := time.Now().UTC()
	createdAt := site.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO sites (
			id, tenant_id, name, latitude, longitude, asset_value,
			insurance_rate, vulnerability, vulnerability_scale_max,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			asset_value = excluded.asset_value,
			insurance_rate = excluded.insurance_rate,
			vulnerability = excluded.vulnerability,
			vulnerability_scale_max = excluded.vulnerability_scale_max,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		site.ID, tenantID, site.Name,
		site.Latitude, site.Longitude, site.AssetValue,
		site.InsuranceRate, string(vulnerability), site.VulnerabilityScaleMax,
		createdAt, now,
	)
	return err
}

// GetSite retrieves a site by ID with tenant isolation.
func (r *SQLRepository) GetSite(ctx context.Context, tenantID string, siteID string) (*domain.Site, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, latitude, longitude, asset_value,
			   insurance_rate, vulnerability, vulnerability_scale_max,
			   created_at, updated_at
		FROM sites
		WHERE tenant_id = ? AND id = ?
	`

	site, err := scanSite(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, siteID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return site, err
}

// ListSites retrieves all sites for a tenant.
func (r *SQLRepository) ListSites(ctx context.Context, tenantID string) ([]*domain.Site, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, latitude, longitude, asset_value,
			   insurance_rate, vulnerability, vulnerability_scale_max,
			   created_at, updated_at
		FROM sites
		WHERE tenant_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []*domain.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*domain.Site, error) {
	var site domain.Site
	var vulnerability sql.NullString
	var assetValue sql.NullFloat64

	err := row.Scan(
		&site.ID, &site.TenantID, &site.Name,
		&site.Latitude, &site.Longitude, &assetValue,
		&site.InsuranceRate, &vulnerability, &site.VulnerabilityScaleMax,
		&site.CreatedAt, &site.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assetValue.Valid {
		v := assetValue.Float64
		site.AssetValue = &v
	}
	if vulnerability.Valid && vulnerability.String != "" {
		json.Unmarshal([]byte(vulnerability.String), &site.Vulnerability)
	}
	return &site, nil
}

// SaveHazardConfig stores a versioned hazard table with tenant isolation.
// Infinite bin bounds survive the round trip via a JSON-safe encoding.
func (r *SQLRepository) SaveHazardConfig(ctx context.Context, tenantID string, cfg *domain.HazardConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bins, err := json.Marshal(encodeBins(cfg.Bins))
	if err != nil {
		return err
	}
	rates, err := json.Marshal(cfg.DamageRates)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO hazard_configs (
			risk_type, tenant_id, version, description, bins, damage_rates, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(risk_type, tenant_id, version) DO UPDATE SET
			description = excluded.description,
			bins = excluded.bins,
			damage_rates = excluded.damage_rates
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		string(cfg.RiskType), tenantID, cfg.Version, cfg.Description,
		string(bins), string(rates), time.Now().UTC(),
	)
	return err
}

// ListHazardConfigs retrieves the latest hazard table per risk type for a
// tenant.
func (r *SQLRepository) ListHazardConfigs(ctx context.Context, tenantID string) ([]*domain.HazardConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT risk_type, version, description, bins, damage_rates
		FROM hazard_configs
		WHERE tenant_id = ?
		  AND (risk_type, version) IN (
			SELECT risk_type, MAX(version) FROM hazard_configs
			WHERE tenant_id = ? GROUP BY risk_type
		  )
		ORDER BY risk_type
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.HazardConfig
	for rows.Next() {
		var cfg domain.HazardConfig
		var riskType, bins, rates string
		if err := rows.Scan(&riskType, &cfg.Version, &cfg.Description, &bins, &rates); err != nil {
			return nil, err
		}
		cfg.RiskType = domain.RiskType(riskType)

		var encoded []encodedBin
		if err := json.Unmarshal([]byte(bins), &encoded); err != nil {
			return nil, err
		}
		cfg.Bins = decodeBins(encoded)
		if err := json.Unmarshal([]byte(rates), &cfg.DamageRates); err != nil {
			return nil, err
		}
		configs = append(configs, &cfg)
	}
	return configs, rows.Err()
}

// encodedBin is the storage form of a bin: nil bounds stand in for the
// infinities JSON cannot carry.
type encodedBin struct {
	Lower *float64 `json:"lower"`
	Upper *float64 `json:"upper"`
}

func encodeBins(bins []domain.Bin) []encodedBin {
	out := make([]encodedBin, len(bins))
	for i, b := range bins {
		if !math.IsInf(b.Lower, -1) {
			lower := b.Lower
			out[i].Lower = &lower
		}
		if !math.IsInf(b.Upper, 1) {
			upper := b.Upper
			out[i].Upper = &upper
		}
	}
	return out
}

func decodeBins(encoded []encodedBin) []domain.Bin {
	out := make([]domain.Bin, len(encoded))
	for i, e := range encoded {
		out[i].Lower = math.Inf(-1)
		if e.Lower != nil {
			out[i].Lower = *e.Lower
		}
		out[i].Upper = math.Inf(1)
		if e.Upper != nil {
			out[i].Upper = *e.Upper
		}
	}
	return out
}

// SaveScreeningRule stores a screening rule with tenant isolation.
func (r *SQLRepository) SaveScreeningRule(ctx context.Context, tenantID string, rule *domain.ScreeningRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	bands, _ := json.Marshal(rule.Bands)

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO screening_rules (
			id, tenant_id, name, description, version, expression, bands, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Version, rule.Expression, string(bands), enabled,
		now, now,
	)
	return err
}

// GetScreeningRule retrieves the latest enabled version of a rule.
func (r *SQLRepository) GetScreeningRule(ctx context.Context, tenantID string, ruleID string) (*domain.ScreeningRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, enabled
		FROM screening_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	var rule domain.ScreeningRule
	var bands string
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Version, &rule.Expression, &bands, &enabled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1
	if bands != "" {
		json.Unmarshal([]byte(bands), &rule.Bands)
	}
	return &rule, nil
}

// ListScreeningRules retrieves all enabled rules for a tenant.
func (r *SQLRepository) ListScreeningRules(ctx context.Context, tenantID string) ([]*domain.ScreeningRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, enabled
		FROM screening_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY id, version DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var rules []*domain.ScreeningRule
	for rows.Next() {
		var rule domain.ScreeningRule
		var bands string
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Version, &rule.Expression, &bands, &enabled,
		); err != nil {
			return nil, err
		}

		// Latest version per rule ID only
		if seen[rule.ID] {
			continue
		}
		seen[rule.ID] = true

		rule.Enabled = enabled == 1
		if bands != "" {
			json.Unmarshal([]byte(bands), &rule.Bands)
		}
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// DeleteScreeningRule removes all versions of a rule.
func (r *SQLRepository) DeleteScreeningRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `DELETE FROM screening_rules WHERE tenant_id = ? AND id = ?`
	_, err := r.db.ExecContext(ctx, r.rebind(query), tenantID, ruleID)
	return err
}

// SaveAssessment stores a completed assessment result set.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	results, err := json.Marshal(a.Results)
	if err != nil {
		return err
	}
	flags, _ := json.Marshal(a.Flags)
	metadata, _ := json.Marshal(a.Metadata)

	query := `
		INSERT INTO assessments (
			id, tenant_id, site_id, status, created_at, results, flags, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.SiteID, a.Status, a.CreatedAt,
		string(results), string(flags), string(metadata),
	)
	return err
}

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, site_id, status, created_at, results, flags, metadata
		FROM assessments
		WHERE tenant_id = ? AND id = ?
	`

	a, err := scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// ListAssessmentsBySite retrieves a site's assessments since a time.
func (r *SQLRepository) ListAssessmentsBySite(ctx context.Context, tenantID string, siteID string, since time.Time) ([]*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, site_id, status, created_at, results, flags, metadata
		FROM assessments
		WHERE tenant_id = ? AND site_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, siteID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assessments []*domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, a)
	}
	return assessments, rows.Err()
}

func scanAssessment(row rowScanner) (*domain.Assessment, error) {
	var a domain.Assessment
	var results, flags, metadata string

	err := row.Scan(
		&a.ID, &a.TenantID, &a.SiteID, &a.Status, &a.CreatedAt,
		&results, &flags, &metadata,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(results), &a.Results); err != nil {
		return nil, err
	}
	if flags != "" {
		json.Unmarshal([]byte(flags), &a.Flags)
	}
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &a.Metadata)
	}
	return &a, nil
}

// SaveClimateSamples upserts a batch of raw warehouse samples for one
// (site, variable, scenario) series.
func (r *SQLRepository) SaveClimateSamples(ctx context.Context, tenantID string, siteID string, v domain.Variable, scenario domain.Scenario, samples []domain.RawSample) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO climate_samples (
			tenant_id, site_id, variable, scenario, year, month, day, value
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, site_id, variable, scenario, year, month, day)
		DO UPDATE SET value = excluded.value
	`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx,
			tenantID, siteID, string(v), string(scenario),
			s.Year, s.Month, s.Day, s.Value,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetClimateSamples retrieves one series within a period, in time order.
func (r *SQLRepository) GetClimateSamples(ctx context.Context, tenantID string, siteID string, v domain.Variable, scenario domain.Scenario, period domain.YearRange) ([]domain.RawSample, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT year, month, day, value
		FROM climate_samples
		WHERE tenant_id = ? AND site_id = ? AND variable = ? AND scenario = ?
		  AND year >= ? AND year <= ?
		ORDER BY year, month, day
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query),
		tenantID, siteID, string(v), string(scenario), period.Start, period.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []domain.RawSample
	for rows.Next() {
		var s domain.RawSample
		if err := rows.Scan(&s.Year, &s.Month, &s.Day, &s.Value); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// SaveTrackPoints upserts cyclone track points near one site.
func (r *SQLRepository) SaveTrackPoints(ctx context.Context, tenantID string, siteID string, scenario domain.Scenario, points []domain.TrackPoint) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO track_points (
			tenant_id, site_id, scenario, storm_id, seq, year,
			latitude, longitude, max_wind_kt,
			radius_major_km, radius_minor_km, bearing_deg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, site_id, scenario, storm_id, seq)
		DO UPDATE SET
			year = excluded.year,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			max_wind_kt = excluded.max_wind_kt,
			radius_major_km = excluded.radius_major_km,
			radius_minor_km = excluded.radius_minor_km,
			bearing_deg = excluded.bearing_deg
	`)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, p := range points {
		if _, err := stmt.ExecContext(ctx,
			tenantID, siteID, string(scenario), p.StormID, i, p.Year,
			p.Latitude, p.Longitude, p.MaxWindKt,
			p.RadiusMajorKm, p.RadiusMinorKm, p.BearingDeg,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTrackPoints retrieves track points within a period.
func (r *SQLRepository) GetTrackPoints(ctx context.Context, tenantID string, siteID string, scenario domain.Scenario, period domain.YearRange) ([]domain.TrackPoint, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT storm_id, year, latitude, longitude, max_wind_kt,
			   radius_major_km, radius_minor_km, bearing_deg
		FROM track_points
		WHERE tenant_id = ? AND site_id = ? AND scenario = ?
		  AND year >= ? AND year <= ?
		ORDER BY year, storm_id, seq
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query),
		tenantID, siteID, string(scenario), period.Start, period.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.TrackPoint
	for rows.Next() {
		var p domain.TrackPoint
		if err := rows.Scan(
			&p.StormID, &p.Year, &p.Latitude, &p.Longitude, &p.MaxWindKt,
			&p.RadiusMajorKm, &p.RadiusMinorKm, &p.BearingDeg,
		); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
