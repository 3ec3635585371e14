package repository

// Schema definitions for the physrisk database.
// Compatible with both SQLite and PostgreSQL.

const schemaSites = `
CREATE TABLE IF NOT EXISTS sites (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    asset_value REAL,
    insurance_rate REAL NOT NULL DEFAULT 0,
    vulnerability TEXT,
    vulnerability_scale_max REAL NOT NULL DEFAULT 100,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id)
);

CREATE INDEX IF NOT EXISTS idx_sites_tenant ON sites(tenant_id);
`

// Versioned declarative bin/damage tables. The authoritative methodology
// document supplies the numbers; the engine only validates structure.
const schemaHazardConfigs = `
CREATE TABLE IF NOT EXISTS hazard_configs (
    risk_type TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    version TEXT NOT NULL,
    description TEXT,
    bins TEXT NOT NULL,
    damage_rates TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (risk_type, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_hazard_configs_tenant ON hazard_configs(tenant_id);
`

const schemaScreeningRules = `
CREATE TABLE IF NOT EXISTS screening_rules (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_screening_rules_tenant ON screening_rules(tenant_id);
CREATE INDEX IF NOT EXISTS idx_screening_rules_enabled ON screening_rules(tenant_id, enabled);
`

// Assessment result sets are stored whole: the keyed result map is the
// persistence contract and reads are by assessment or by site.
const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    site_id TEXT NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    results TEXT NOT NULL,
    flags TEXT,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_site ON assessments(tenant_id, site_id);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(tenant_id, created_at);
`

// Raw warehouse series loaded by the external ETL pipeline.
const schemaClimateSamples = `
CREATE TABLE IF NOT EXISTS climate_samples (
    tenant_id TEXT NOT NULL,
    site_id TEXT NOT NULL,
    variable TEXT NOT NULL,
    scenario TEXT NOT NULL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL DEFAULT 0,
    day INTEGER NOT NULL DEFAULT 0,
    value REAL NOT NULL,
    PRIMARY KEY (tenant_id, site_id, variable, scenario, year, month, day)
);

CREATE INDEX IF NOT EXISTS idx_climate_samples_series
    ON climate_samples(tenant_id, site_id, variable, scenario, year);
`

const schemaTrackPoints = `
CREATE TABLE IF NOT EXISTS track_points (
    tenant_id TEXT NOT NULL,
    site_id TEXT NOT NULL,
    scenario TEXT NOT NULL,
    storm_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    year INTEGER NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    max_wind_kt REAL NOT NULL,
    radius_major_km REAL NOT NULL,
    radius_minor_km REAL NOT NULL,
    bearing_deg REAL NOT NULL,
    PRIMARY KEY (tenant_id, site_id, scenario, storm_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_track_points_year
    ON track_points(tenant_id, site_id, scenario, year);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaSites,
		schemaHazardConfigs,
		schemaScreeningRules,
		schemaAssessments,
		schemaClimateSamples,
		schemaTrackPoints,
	}
}
