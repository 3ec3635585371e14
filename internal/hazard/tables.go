// Package hazard loads and serves the declarative per-risk bin tables and
// damage schedules. Tables are validated once at startup and shared
// read-only across all concurrent computations.
package hazard

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-climate/physrisk/internal/domain"
	"gopkg.in/yaml.v3"
)

// Registry is the immutable risk-type to hazard-config mapping. No
// runtime mutation: a new Registry replaces the old one on reload.
type Registry struct {
	byRisk map[domain.RiskType]*domain.HazardConfig
}

// NewRegistry validates every config and builds the registry. Any
// validation failure is an ErrConfigMismatch and must abort startup:
// corrupted tables would make every computation wrong.
func NewRegistry(configs []*domain.HazardConfig) (*Registry, error) {
	byRisk := make(map[domain.RiskType]*domain.HazardConfig, len(configs))
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byRisk[cfg.RiskType]; dup {
			return nil, fmt.Errorf("%w: duplicate config for %s", domain.ErrConfigMismatch, cfg.RiskType)
		}
		byRisk[cfg.RiskType] = cfg
	}
	return &Registry{byRisk: byRisk}, nil
}

// Config returns the hazard configuration for a risk type.
func (r *Registry) Config(risk domain.RiskType) (*domain.HazardConfig, bool) {
	cfg, ok := r.byRisk[risk]
	return cfg, ok
}

// RiskTypes returns the configured risk types in canonical order.
func (r *Registry) RiskTypes() []domain.RiskType {
	var out []domain.RiskType
	for _, rt := range domain.AllRiskTypes() {
		if _, ok := r.byRisk[rt]; ok {
			out = append(out, rt)
		}
	}
	return out
}

// Count returns the number of configured risk types.
func (r *Registry) Count() int {
	return len(r.byRisk)
}

// LoadDir reads every *.yaml / *.yml file in dir as one HazardConfig.
func LoadDir(dir string) ([]*domain.HazardConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read hazard config dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var configs []*domain.HazardConfig
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var cfg hazardConfigFile
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		configs = append(configs, cfg.toDomain())
	}
	return configs, nil
}

// hazardConfigFile is the YAML file shape. The last bin's upper bound may
// be omitted or written as .inf; both mean unbounded.
type hazardConfigFile struct {
	RiskType    string    `yaml:"risk_type"`
	Version     string    `yaml:"version"`
	Description string    `yaml:"description"`
	Bins        []binFile `yaml:"bins"`
	DamageRates []float64 `yaml:"damage_rates"`
}

type binFile struct {
	Lower float64  `yaml:"lower"`
	Upper *float64 `yaml:"upper"`
}

func (f *hazardConfigFile) toDomain() *domain.HazardConfig {
	cfg := &domain.HazardConfig{
		RiskType:    domain.RiskType(f.RiskType),
		Version:     f.Version,
		Description: f.Description,
		DamageRates: f.DamageRates,
	}
	for _, b := range f.Bins {
		upper := math.Inf(1)
		if b.Upper != nil {
			upper = *b.Upper
		}
		cfg.Bins = append(cfg.Bins, domain.Bin{Lower: b.Lower, Upper: upper})
	}
	return cfg
}
