// Package searchsvc describes the remote search service the pipeline talks to.
package searchsvc

import (
	"context"
	"encoding/json"

	"github.com/kailas-cloud/idxmigrate/internal/domain"
)

// Service is the facade over one search service instance.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Service interface {
	IndexManager
	SynonymManager
	DocumentSearcher
	DocumentUploader
}

// IndexManager manages index definitions.
type IndexManager interface {
	ListIndexNames(ctx context.Context) ([]string, error)
	GetIndex(ctx context.Context, name string) (domain.IndexSchema, error)
	CreateOrUpdateIndex(ctx context.Context, schema domain.IndexSchema) error
	DeleteIndex(ctx context.Context, name string) error
}

// SynonymManager manages synonym maps.
type SynonymManager interface {
	GetSynonymMap(ctx context.Context, name string) (domain.SynonymMap, error)
	CreateOrUpdateSynonymMap(ctx context.Context, m domain.SynonymMap) error
	DeleteSynonymMap(ctx context.Context, name string) error
}

// DocumentSearcher reads documents.
type DocumentSearcher interface {
	Search(ctx context.Context, index string, q *Query) (*SearchResult, error)
	Count(ctx context.Context, index string) (int64, error)
}

// DocumentUploader posts a staged {"value":[...]} payload as-is.
type DocumentUploader interface {
	UploadDocuments(ctx context.Context, index string, payload []byte) (*UploadResult, error)
}

// Query is a paged match-all document query.
type Query struct {
	Search       string // "*" when empty
	Skip         int
	Top          int
	IncludeCount bool
}

// SearchResult is one page of raw documents, annotations removed.
type SearchResult struct {
	Count     *int64
	Documents []json.RawMessage
}

// UploadResult summarizes a bulk upload. Failed lists keys the service rejected
// (207 Multi-Status).
type UploadResult struct {
	StatusCode int
	Succeeded  int
	Failed     []ItemError
}

// ItemError is a per-document rejection.
type ItemError struct {
	Key        string
	StatusCode int
	Message    string
}
