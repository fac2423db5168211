package run

import (
	"context"

	"github.com/kailas-cloud/idxmigrate/internal/domain"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/bulkimport"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/extract"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/verify"
)

// Source enumerates and counts source indexes.
type Source interface {
	ListIndexNames(ctx context.Context) ([]string, error)
	Count(ctx context.Context, index string) (int64, error)
}

// SchemaMigrator moves definitions and synonyms.
type SchemaMigrator interface {
	FetchSchema(ctx context.Context, index string) (domain.IndexSchema, error)
	PersistSchema(ctx context.Context, schema domain.IndexSchema) (bool, error)
	Recreate(ctx context.Context, schema domain.IndexSchema) error
	MigrateSynonyms(ctx context.Context) domain.SynonymResult
}

// Exporter stages all documents of an index.
type Exporter interface {
	Export(ctx context.Context, index string, total int64) (*extract.Export, error)
}

// Importer replays staged files into the target.
type Importer interface {
	Import(ctx context.Context, index string, files []string) bulkimport.Summary
}

// Reconciler waits for the target count to settle.
type Reconciler interface {
	Reconcile(ctx context.Context, index string, expected int64) (verify.Result, error)
}
