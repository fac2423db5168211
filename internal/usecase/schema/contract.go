package schema

import (
	"context"

	"github.com/kailas-cloud/idxmigrate/internal/domain"
)

// IndexReader reads index definitions from the source service.
type IndexReader interface {
	GetIndex(ctx context.Context, name string) (domain.IndexSchema, error)
}

// IndexWriter replaces index definitions on the target service.
type IndexWriter interface {
	CreateOrUpdateIndex(ctx context.Context, schema domain.IndexSchema) error
	DeleteIndex(ctx context.Context, name string) error
}

// SynonymReader reads synonym maps from the source service.
type SynonymReader interface {
	GetSynonymMap(ctx context.Context, name string) (domain.SynonymMap, error)
}

// SynonymWriter replaces synonym maps on the target service.
type SynonymWriter interface {
	CreateOrUpdateSynonymMap(ctx context.Context, m domain.SynonymMap) error
	DeleteSynonymMap(ctx context.Context, name string) error
}

// StageWriter persists raw schemas next to the batch files.
type StageWriter interface {
	Write(ctx context.Context, name string, content []byte) error
}
