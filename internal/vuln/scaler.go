// Package vuln converts site vulnerability scores into multiplicative
// damage-rate scale factors.
package vuln

import (
	"fmt"
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// Convention fixes the scale-factor band and the score range it maps
// from. The mapping is linear: score 0 yields ScaleMin, score ScoreMax
// yields ScaleMax, scores outside [0, ScoreMax] clamp to the edges.
type Convention struct {
	ScaleMin float64 `json:"scaleMin" yaml:"scale_min"`
	ScaleMax float64 `json:"scaleMax" yaml:"scale_max"`
	ScoreMax float64 `json:"scoreMax" yaml:"score_max"`
}

// WideConvention spans 0.7x to 1.3x, for portfolios where site-level
// vulnerability assessments are detailed enough to justify a strong
// adjustment.
func WideConvention() Convention {
	return Convention{ScaleMin: 0.7, ScaleMax: 1.3, ScoreMax: 100}
}

// NarrowConvention spans 0.9x to 1.1x, the conservative default when
// vulnerability scores are coarse screening estimates.
func NarrowConvention() Convention {
	return Convention{ScaleMin: 0.9, ScaleMax: 1.1, ScoreMax: 100}
}

// Validate rejects conventions that would produce non-positive or
// inverted scale factors.
func (c Convention) Validate() error {
	for _, v := range []float64{c.ScaleMin, c.ScaleMax, c.ScoreMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite convention parameter", domain.ErrInvalidScaleFactor)
		}
	}
	if c.ScaleMin <= 0 {
		return fmt.Errorf("%w: scale minimum %v must be positive", domain.ErrInvalidScaleFactor, c.ScaleMin)
	}
	if c.ScaleMax < c.ScaleMin {
		return fmt.Errorf("%w: scale band [%v, %v] is inverted", domain.ErrInvalidScaleFactor, c.ScaleMin, c.ScaleMax)
	}
	if c.ScoreMax <= 0 {
		return fmt.Errorf("%w: score maximum %v must be positive", domain.ErrInvalidScaleFactor, c.ScoreMax)
	}
	return nil
}

// Scale maps a vulnerability score to its scale factor. Scores outside
// the configured range clamp rather than extrapolate, so a data-entry
// outlier cannot push a site past the convention's band.
func (c Convention) Scale(score float64) (float64, error) {
	if err := c.Validate(); err != nil {
		return 0, err
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidScore, score)
	}

	if score < 0 {
		score = 0
	}
	if score > c.ScoreMax {
		score = c.ScoreMax
	}

	return c.ScaleMin + (c.ScaleMax-c.ScaleMin)*score/c.ScoreMax, nil
}
