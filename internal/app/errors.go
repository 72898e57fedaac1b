package service

import "errors"

// Sentinel error kinds for this package.
var (
	// ErrLearningInProgress means another learning run holds the cycle lock.
	ErrLearningInProgress = errors.New("learning cycle already in progress")
)
