// Package stage defines the durable store that holds batch files between
// extraction and import.
package stage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Read when no object exists under the name.
var ErrNotFound = errors.New("stage: object not found")

// ErrInvalidName rejects names that could escape the container.
var ErrInvalidName = errors.New("stage: invalid object name")

// Op constants name stage operations for error context and metrics labels.
const (
	OpWrite = "write"
	OpRead  = "read"
)

// Writer stores named content, overwriting any previous object.
type Writer interface {
	Write(ctx context.Context, name string, content []byte) error
}

// Reader returns the content stored under name, or ErrNotFound.
type Reader interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// Store is a flat, named object container. Objects are never deleted by the pipeline.
type Store interface {
	Writer
	Reader
}

// Error wraps a backend failure with the operation and object name.
type Error struct {
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string { return "stage " + e.Op + " " + e.Name + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// ValidateName rejects empty names, path separators and dot segments.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return &Error{Op: "validate", Name: name, Err: ErrInvalidName}
	}
	return nil
}
