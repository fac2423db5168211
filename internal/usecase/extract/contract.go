package extract

import (
	"context"

	"github.com/kailas-cloud/idxmigrate/internal/searchsvc"
)

// DocumentSearcher reads pages of documents from the source service.
type DocumentSearcher interface {
	Search(ctx context.Context, index string, q *searchsvc.Query) (*searchsvc.SearchResult, error)
}

// StageWriter persists batch files.
type StageWriter interface {
	Write(ctx context.Context, name string, content []byte) error
}
