package scoring

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidTemplate = errors.New("invalid scoring template")
)
