package share

import "errors"

// Sentinel errors for the share core.
var (
	// ErrNotFound covers both unknown and expired codes; callers must not
	// be able to tell the two apart.
	ErrNotFound = errors.New("share not found")

	ErrNoFiles = errors.New("share must contain at least one file")

	ErrStorageExceeded = errors.New("storage limit exceeded")

	ErrCodeSpaceExhausted = errors.New("no free share codes available")
)
