package repository

import "errors"

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a record changed since it was loaded.
	ErrVersionConflict = errors.New("version conflict")
)
