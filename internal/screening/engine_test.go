package screening

import (
	"testing"

	"github.com/open-climate/physrisk/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func testAssessment() *domain.Assessment {
	period := domain.YearRange{Start: 2030, End: 2050}
	return &domain.Assessment{
		ID:       "assessment-1",
		TenantID: "tenant-1",
		SiteID:   "site-1",
		Results: map[domain.Scenario]map[domain.RiskType]map[string]*domain.CellResult{
			domain.ScenarioSSP585: {
				domain.RiskRiverFlood: {
					period.String(): {
						Status: domain.CellDone,
						Result: &domain.AALResult{
							RiskType:    domain.RiskRiverFlood,
							SiteID:      "site-1",
							Scenario:    domain.ScenarioSSP585,
							Period:      period,
							BaseAAL:     0.012,
							ScaleFactor: 1.2,
							FinalAAL:    0.0144,
							Details:     domain.CalculationDetails{Estimator: domain.EstimatorCount, SampleCount: 20},
						},
					},
				},
				domain.RiskExtremeHeat: {
					period.String(): {
						Status: domain.CellDone,
						Result: &domain.AALResult{
							RiskType:    domain.RiskExtremeHeat,
							SiteID:      "site-1",
							Scenario:    domain.ScenarioSSP585,
							Period:      period,
							BaseAAL:     0.0004,
							ScaleFactor: 1.0,
							FinalAAL:    0.0004,
							Details:     domain.CalculationDetails{Estimator: domain.EstimatorCount, SampleCount: 20},
						},
					},
				},
				domain.RiskTyphoon: {
					period.String(): {
						Status:    domain.CellFailed,
						ErrorKind: "insufficient_data",
					},
				},
			},
		},
	}
}

func highAALRule() *domain.ScreeningRule {
	return &domain.ScreeningRule{
		ID:         "high-aal",
		Name:       "High annual loss",
		Version:    "1.0.0",
		Expression: "final_aal",
		Bands: []domain.SeverityBand{
			{LowerLimit: floatPtr(0.001), UpperLimit: floatPtr(0.01), Severity: domain.SeverityWatch, Reason: "AAL above 0.1%"},
			{LowerLimit: floatPtr(0.01), Severity: domain.SeverityCritical, Reason: "AAL above 1%"},
		},
		Enabled: true,
	}
}

func TestScreenFlagsHighCells(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	if err := engine.LoadRule(highAALRule()); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	flags := engine.Screen(testAssessment())
	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d: %+v", len(flags), flags)
	}

	flag := flags[0]
	if flag.RiskType != domain.RiskRiverFlood {
		t.Errorf("flagged risk = %s, want river_flood", flag.RiskType)
	}
	if flag.Severity != domain.SeverityCritical {
		t.Errorf("severity = %s, want critical", flag.Severity)
	}
	if flag.Score != 0.0144 {
		t.Errorf("score = %v, want 0.0144", flag.Score)
	}
}

func TestScreenSkipsFailedCells(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	// Flags everything it sees
	rule := &domain.ScreeningRule{
		ID:         "any",
		Version:    "1",
		Expression: "true",
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	flags := engine.Screen(testAssessment())
	for _, f := range flags {
		if f.RiskType == domain.RiskTyphoon {
			t.Errorf("failed cell must not be screened: %+v", f)
		}
	}
	if len(flags) != 2 {
		t.Errorf("expected 2 flags for the 2 DONE cells, got %d", len(flags))
	}
}

func TestScreenBooleanExpression(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	rule := &domain.ScreeningRule{
		ID:         "scaled-up-flood",
		Version:    "1",
		Expression: `risk_type == "river_flood" && scale_factor > 1.1`,
		Enabled:    true,
	}
	if err := engine.LoadRule(rule); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	flags := engine.Screen(testAssessment())
	if len(flags) != 1 {
		t.Fatalf("expected 1 flag, got %d", len(flags))
	}
	if flags[0].Severity != domain.SeverityWatch {
		t.Errorf("bandless boolean match should default to watch, got %s", flags[0].Severity)
	}
}

func TestValidateRule(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	bad := &domain.ScreeningRule{ID: "bad", Version: "1", Expression: "no_such_var > 1"}
	if err := engine.ValidateRule(bad); err == nil {
		t.Error("unknown variable should fail validation")
	}
	if engine.RuleCount() != 0 {
		t.Error("validation must not load rules")
	}

	good := highAALRule()
	if err := engine.ValidateRule(good); err != nil {
		t.Errorf("valid rule failed validation: %v", err)
	}
}

func TestReloadRules(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	defer engine.Close()

	if err := engine.LoadRule(highAALRule()); err != nil {
		t.Fatalf("LoadRule failed: %v", err)
	}

	replacement := &domain.ScreeningRule{
		ID:         "sparse-sample",
		Version:    "1",
		Expression: "sample_count < 5",
		Enabled:    true,
	}
	disabled := highAALRule()
	disabled.Enabled = false

	if err := engine.ReloadRules([]*domain.ScreeningRule{replacement, disabled}); err != nil {
		t.Fatalf("ReloadRules failed: %v", err)
	}
	if engine.RuleCount() != 1 {
		t.Errorf("rule count = %d, want 1 after reload", engine.RuleCount())
	}
}
