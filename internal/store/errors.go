package store

import "errors"

// ErrNotFound is returned when a record does not exist or an update matched no row.
var ErrNotFound = errors.New("store: not found")
