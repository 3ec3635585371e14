// Package intensity converts raw upstream climate series into
// single-indicator intensity series, one strategy per risk type.
package intensity

import (
	"fmt"
	"sync"

	"github.com/open-climate/physrisk/internal/domain"
)

// Inputs is the raw-data bundle handed to an extractor. It is assembled
// by the runner from the climate provider; extractors perform no I/O.
// Each strategy declares which variables it requires and fails with
// ErrInsufficientData when one is absent, because a substituted zero
// series is indistinguishable from a genuinely calm climate.
type Inputs struct {
	Site *domain.Site

	// Series holds the requested period's samples per variable. A key may
	// be absent or empty when the warehouse has no data.
	Series map[domain.Variable][]domain.RawSample

	// Baseline holds baseline-period samples for strategies that
	// normalize against a historical reference.
	Baseline map[domain.Variable][]domain.RawSample

	// Tracks carries cyclone track points for the exposure strategy.
	Tracks []domain.TrackPoint

	Period         domain.YearRange
	BaselinePeriod domain.YearRange
}

// Extractor is the per-risk-type strategy contract. Implementations are
// stateless and safe for concurrent use.
type Extractor interface {
	// RiskType tags the strategy. One strategy per risk type.
	RiskType() domain.RiskType

	// RequiredVariables lists the upstream series the strategy cannot run
	// without. Used for prefetching and for error reporting.
	RequiredVariables() []domain.Variable

	// Extract derives the intensity series for the inputs' period.
	Extract(in *Inputs) (*domain.IntensitySeries, error)
}

// Registry holds the strategy per risk type. Strategies are registered
// at startup and looked up per computation; reads vastly outnumber
// writes.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.RiskType]Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[domain.RiskType]Extractor)}
}

// Register installs a strategy, replacing any previous one for the same
// risk type.
func (r *Registry) Register(e Extractor) error {
	rt := e.RiskType()
	if !rt.Valid() {
		return fmt.Errorf("%w: extractor has unknown risk type %q", domain.ErrConfigMismatch, rt)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[rt] = e
	return nil
}

// Lookup returns the strategy for a risk type.
func (r *Registry) Lookup(rt domain.RiskType) (Extractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[rt]
	return e, ok
}

// Count returns the number of registered strategies.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.extractors)
}

// DefaultRegistry returns a registry with all nine built-in strategies
// installed.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, e := range []Extractor{
		NewExtremeHeatExtractor(),
		NewExtremeColdExtractor(),
		NewWildfireExtractor(),
		NewDroughtExtractor(),
		NewWaterStressExtractor(),
		NewSeaLevelExtractor(),
		NewRiverFloodExtractor(),
		NewUrbanFloodExtractor(),
		NewTyphoonExtractor(),
	} {
		// Built-in strategies carry valid tags; Register cannot fail here.
		_ = r.Register(e)
	}
	return r
}
