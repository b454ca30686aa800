package model

import "github.com/rotisserie/eris"

// Sentinel errors for the pipeline failure taxonomy. Precondition and
// timeout failures are fatal for a location's run; geometry degradation
// is recovered locally and never surfaces as an error.
var (
	// ErrPrecondition marks mismatched grid dimensions or a degenerate
	// bounding box. Never silently coerced.
	ErrPrecondition = eris.New("precondition violation")

	// ErrTimeout marks a run abandoned after exceeding its caller-supplied
	// budget. No partial grid or spot list is ever surfaced with it.
	ErrTimeout = eris.New("run timed out")
)

// IsPrecondition reports whether err is (or wraps) a precondition violation.
func IsPrecondition(err error) bool {
	return eris.Is(err, ErrPrecondition)
}

// IsTimeout reports whether err is (or wraps) a run timeout.
func IsTimeout(err error) bool {
	return eris.Is(err, ErrTimeout)
}
