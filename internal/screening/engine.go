// Package screening provides the CEL-Go based post-assessment rule
// engine. Rules run over completed cells of an assessment and raise
// severity-banded flags, so report consumers see which results need
// attention without re-reading every number.
package screening

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/open-climate/physrisk/internal/domain"
)

// Engine compiles and evaluates screening rules.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules map[string]*CompiledRule
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.ScreeningRule
	Program cel.Program
}

// NewEngine creates a screening engine. Expressions see the fields of
// one completed cell.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("risk_type", cel.StringType),
		cel.Variable("scenario", cel.StringType),
		cel.Variable("period", cel.StringType),
		cel.Variable("final_aal", cel.DoubleType),
		cel.Variable("base_aal", cel.DoubleType),
		cel.Variable("scale_factor", cel.DoubleType),
		cel.Variable("insurance_rate", cel.DoubleType),
		cel.Variable("expected_loss", cel.DoubleType),
		cel.Variable("sample_count", cel.IntType),
		cel.Variable("estimator", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
	}, nil
}

// ValidateRule compiles a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.ScreeningRule) error {
	if cfg == nil {
		return fmt.Errorf("screening rule is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled
	return nil
}

// LoadRules compiles and loads multiple rules, skipping disabled ones.
func (e *Engine) LoadRules(configs []*domain.ScreeningRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules swaps the loaded rule set atomically. This enables
// hot-reloading of rules from the database.
func (e *Engine) ReloadRules(configs []*domain.ScreeningRule) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules
	return nil
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// Screen evaluates every loaded rule against every DONE cell of the
// assessment and returns the raised flags. Failed cells are skipped:
// screening judges computed results, not gaps.
func (e *Engine) Screen(a *domain.Assessment) []domain.RiskFlag {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	var flags []domain.RiskFlag
	for _, byRisk := range a.Results {
		for _, byPeriod := range byRisk {
			for _, cell := range byPeriod {
				if cell.Status != domain.CellDone || cell.Result == nil {
					continue
				}
				for _, rule := range rules {
					if flag, ok := e.screenCell(rule, cell.Result); ok {
						flags = append(flags, flag)
					}
				}
			}
		}
	}
	return flags
}

func (e *Engine) screenCell(rule *CompiledRule, result *domain.AALResult) (domain.RiskFlag, bool) {
	expectedLoss := 0.0
	if result.ExpectedLoss != nil {
		expectedLoss = *result.ExpectedLoss
	}

	activation := map[string]any{
		"risk_type":      string(result.RiskType),
		"scenario":       string(result.Scenario),
		"period":         result.Period.String(),
		"final_aal":      result.FinalAAL,
		"base_aal":       result.BaseAAL,
		"scale_factor":   result.ScaleFactor,
		"insurance_rate": result.InsuranceRate,
		"expected_loss":  expectedLoss,
		"sample_count":   int64(result.Details.SampleCount),
		"estimator":      string(result.Details.Estimator),
	}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		// A rule that cannot evaluate a cell raises nothing for it.
		return domain.RiskFlag{}, false
	}

	score := toScore(out)
	severity, reason := matchBand(score, rule.Config.Bands)
	if severity == "" {
		return domain.RiskFlag{}, false
	}

	return domain.RiskFlag{
		RuleID:   rule.Config.ID,
		RiskType: result.RiskType,
		Scenario: result.Scenario,
		Period:   result.Period.String(),
		Severity: severity,
		Score:    score,
		Reason:   reason,
	}, true
}

func (e *Engine) compileRule(cfg *domain.ScreeningRule) (*CompiledRule, error) {
	if cfg.Expression == "" {
		return nil, fmt.Errorf("rule %s has no expression", cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{Config: cfg, Program: program}, nil
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching severity band for a score. Bands are
// evaluated in order: lower inclusive, upper exclusive, a nil bound is
// unbounded. With no bands configured, any positive score is a watch.
func matchBand(score float64, bands []domain.SeverityBand) (severity, reason string) {
	if len(bands) == 0 {
		if score > 0 {
			return domain.SeverityWatch, "rule matched"
		}
		return "", ""
	}

	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}

		if score < lower {
			continue
		}
		if band.UpperLimit != nil && score >= *band.UpperLimit {
			continue
		}
		return band.Severity, band.Reason
	}
	return "", ""
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}
