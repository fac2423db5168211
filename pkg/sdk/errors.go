package idxmigrate

import "github.com/kailas-cloud/idxmigrate/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrRunInProgress    = domain.ErrRunInProgress
	ErrIncompleteExport = domain.ErrIncompleteExport
	ErrInvalidSchema    = domain.ErrInvalidSchema
	ErrNotFound         = domain.ErrNotFound
)
