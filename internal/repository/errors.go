package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with a unique column other than the key
var ErrConflict = errors.New("conflict")
