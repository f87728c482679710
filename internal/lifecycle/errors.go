package lifecycle

import "errors"

// Orchestration errors.
var (
	// ErrNotHot is returned when a hot-only operation is applied to a
	// record on another tier.
	ErrNotHot = errors.New("file is not on the hot tier")

	// ErrNoVisibilityPrefix is returned when a record's path starts with
	// neither the public nor the private prefix for its tier.
	ErrNoVisibilityPrefix = errors.New("path has no visibility prefix")

	// ErrFileTooLarge is returned when an upload exceeds the configured
	// maximum file size.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
)
