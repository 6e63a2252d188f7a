package es

import "errors"

// Sentinel errors for store operations.
var (
	ErrNotFound        = errors.New("es: document not found")
	ErrConflict        = errors.New("es: document already exists")
	ErrVersionConflict = errors.New("es: version conflict")
	ErrIndexExists     = errors.New("es: index already exists")
)

// Op constants name the store operation for error context.
const (
	OpCreate      = "create"
	OpIndex       = "index"
	OpDelete      = "delete"
	OpGet         = "get"
	OpSearch      = "search"
	OpCreateIndex = "indices.create"
	OpExists      = "indices.exists"
	OpRefresh     = "indices.refresh"
	OpPing        = "ping"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
