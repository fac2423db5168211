package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSchema signals an index schema the pipeline cannot work with.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrIncompleteExport signals that at least one page failed to stage.
	ErrIncompleteExport = errors.New("incomplete export")
	// ErrRunInProgress signals that another run holds the controller.
	ErrRunInProgress = errors.New("run in progress")
)
