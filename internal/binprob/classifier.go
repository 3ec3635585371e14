// Package binprob converts intensity series into discrete bin
// probability vectors: classification against a bin table, then
// count-based or density-based occurrence estimation.
package binprob

import (
	"fmt"
	"math"

	"github.com/open-climate/physrisk/internal/domain"
)

// Classify maps one intensity value to a bin index. Pure and
// deterministic: a value exactly on an interior boundary lands in the
// upper bin (half-open [lower, upper) intervals), and the final bin is
// closed above. Non-finite values fail rather than defaulting to an edge
// bin, which would corrupt the probability distribution.
func Classify(value float64, bins []domain.Bin) (int, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidIntensity, value)
	}
	if len(bins) == 0 {
		return 0, fmt.Errorf("%w: empty bin table", domain.ErrConfigMismatch)
	}

	// Below the first boundary clamps to bin 0; tables whose indicator
	// can go negative carry a -Inf lower bound instead.
	if value < bins[0].Lower {
		return 0, nil
	}

	for i, b := range bins {
		if b.Contains(value) {
			return i, nil
		}
	}

	// Last bin is [lower, +Inf), so only reachable if the table is
	// malformed.
	return len(bins) - 1, nil
}
