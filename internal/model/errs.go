package model

import "errors"

// Sentinel errors of the engine. Callers wrap these with %w and match with
// errors.Is; none of them is fatal to the process.
var (
	// ErrInvalidCondition rejects malformed alert definitions at creation.
	ErrInvalidCondition = errors.New("invalid condition")

	// ErrNotFound is returned when a cancel targets an unknown or foreign alert.
	ErrNotFound = errors.New("alert not found")

	// ErrInsufficientHistory means fewer samples are retained than the
	// requested indicator period. Transient; resolves as samples accrue.
	ErrInsufficientHistory = errors.New("insufficient history")

	// ErrFeedUnavailable marks a transient per-asset upstream failure.
	ErrFeedUnavailable = errors.New("feed unavailable")
)
