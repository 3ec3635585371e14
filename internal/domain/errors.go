package domain

import "errors"

// Error kinds of the computation core. Cell-level errors (insufficient
// data, invalid time range) are contained at the cell boundary by the
// runner; configuration errors are fatal at startup.
var (
	// ErrInsufficientData indicates a required upstream variable is absent
	// or empty for the requested time range. Zero-intensity is a valid
	// climate outcome, so missing data is never substituted with zeros.
	ErrInsufficientData = errors.New("insufficient upstream data")

	// ErrInvalidTimeRange indicates the requested time range has no
	// overlap with the available samples.
	ErrInvalidTimeRange = errors.New("time range has no overlapping samples")

	// ErrInvalidIntensity indicates a non-finite value reached the bin
	// classifier.
	ErrInvalidIntensity = errors.New("non-finite intensity value")

	// ErrConfigMismatch indicates corrupted hazard configuration: bin
	// boundaries and damage schedules that disagree in length or violate
	// monotonicity. Detected at load time, before any computation runs.
	ErrConfigMismatch = errors.New("hazard configuration mismatch")

	// ErrDimensionMismatch indicates probability and damage-rate vectors
	// of unequal length reached the aggregator. Caller bug.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidRate indicates an insurance recovery rate outside [0, 1].
	ErrInvalidRate = errors.New("invalid insurance rate")

	// ErrInvalidScaleFactor indicates a zero, negative or non-finite
	// vulnerability scale factor.
	ErrInvalidScaleFactor = errors.New("invalid scale factor")

	// ErrInvalidScore indicates a non-finite vulnerability score.
	ErrInvalidScore = errors.New("invalid vulnerability score")
)

// ErrorKind maps an error to the stable kind string recorded on failed
// cells and persisted with assessments.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrInvalidTimeRange):
		return "invalid_time_range"
	case errors.Is(err, ErrInvalidIntensity):
		return "invalid_intensity"
	case errors.Is(err, ErrConfigMismatch):
		return "config_mismatch"
	case errors.Is(err, ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, ErrInvalidRate):
		return "invalid_rate"
	case errors.Is(err, ErrInvalidScaleFactor):
		return "invalid_scale_factor"
	case errors.Is(err, ErrInvalidScore):
		return "invalid_score"
	default:
		return "internal"
	}
}
