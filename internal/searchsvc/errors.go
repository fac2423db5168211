package searchsvc

import (
	"errors"
	"strconv"
)

// ErrNotFound is wrapped by Error for 404 responses.
var ErrNotFound = errors.New("searchsvc: not found")

// Op constants name remote operations for error context and metrics labels.
const (
	OpListIndexes   = "list_indexes"
	OpGetIndex      = "get_index"
	OpPutIndex      = "put_index"
	OpDeleteIndex   = "delete_index"
	OpGetSynonyms   = "get_synonym_map"
	OpPutSynonyms   = "put_synonym_map"
	OpDeleteSynonym = "delete_synonym_map"
	OpSearch        = "search"
	OpCount         = "count"
	OpUpload        = "upload"
)

// Error wraps a failed remote call with the operation and HTTP status.
type Error struct {
	Op         string
	StatusCode int // 0 for transport failures
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg += ": HTTP " + strconv.Itoa(e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the service.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
