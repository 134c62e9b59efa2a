package service

import "errors"

// Sentinel errors shared across the validation services. Callers branch on
// these with errors.Is; wrapped messages carry the specifics.
var (
	// ErrInvalidInput marks malformed or inconsistent caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig marks an out-of-range configuration value.
	ErrConfig = errors.New("invalid configuration")

	// ErrInsufficientSample marks an aggregate requested over too few
	// observations to be meaningful.
	ErrInsufficientSample = errors.New("insufficient sample")

	// ErrDegenerateGroup marks a grouping where a statistic is undefined,
	// e.g. a single outcome group.
	ErrDegenerateGroup = errors.New("degenerate group")
)
