package db

import "errors"

// Sentinel errors for store operations.
var (
	ErrIndexNotFound = errors.New("db: index not found")
	ErrAliasNotFound = errors.New("db: alias not found")
)

// Op constants map to store endpoints for error context.
const (
	OpBulk          = "BULK"
	OpDeleteByQuery = "DELETE_BY_QUERY"
	OpGetAlias      = "GET_ALIAS"
	OpUpdateAliases = "UPDATE_ALIASES"
	OpIndexExists   = "INDEX_EXISTS"
	OpCreateIndex   = "CREATE_INDEX"
	OpDeleteIndex   = "DELETE_INDEX"
	OpListIndices   = "LIST_INDICES"
	OpPing          = "PING"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
