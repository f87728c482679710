package objstore

import "errors"

// Object storage error types.
var (
	ErrObjectNotFound = errors.New("object not found")
)
