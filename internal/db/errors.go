package db

import "errors"

// Sentinel errors for store operations.
var (
	ErrIndexNotFound   = errors.New("db: index not found")
	ErrInvalidQuery    = errors.New("db: invalid query")
	ErrMalformedOutput = errors.New("db: malformed output")
	ErrFilterRequired  = errors.New("db: at least one filter is required")
)

// Op constants name store operations for error context.
const (
	OpOpen    = "OPEN"
	OpPing    = "PING"
	OpSearch  = "SEARCH"
	OpUpsert  = "UPSERT"
	OpDelete  = "DELETE"
	OpMigrate = "MIGRATE"
	OpExec    = "EXEC"
	OpDecode  = "DECODE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
