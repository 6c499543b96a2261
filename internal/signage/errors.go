package signage

import "errors"

var (
	// ErrNotFound is returned when an operation addresses a manifest, item or
	// player that must exist but does not.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input; nothing is persisted.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateItem is returned when an add would repeat an identifier
	// already present in the player's manifest.
	ErrDuplicateItem = errors.New("identifier already in manifest")

	// ErrStorage is returned when a manifest or registry document cannot be
	// read or written, including corrupt JSON.
	ErrStorage = errors.New("storage failure")
)
