package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("interview not found")
	ErrDecisionExists  = errors.New("decision already recorded")
	ErrVersionNotFound = errors.New("weight version not found")
	ErrVersionFrozen   = errors.New("weight version is frozen")
	ErrNoActiveVersion = errors.New("no active weight version")
	ErrMultipleActive  = errors.New("multiple active weight versions")
	ErrNotPromotable   = errors.New("weight version is not promotable")
)
