package learning

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrInsufficientSamples marks a tuning run that had too little data.
	// Callers treat it as a soft no-op, distinct from "ran, no change".
	ErrInsufficientSamples = errors.New("insufficient samples")
)
