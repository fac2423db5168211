package bulkimport

import (
	"context"

	"github.com/kailas-cloud/idxmigrate/internal/searchsvc"
)

// StageReader reads staged batch files.
type StageReader interface {
	Read(ctx context.Context, name string) ([]byte, error)
}

// DocumentUploader posts a batch payload to the target index.
type DocumentUploader interface {
	UploadDocuments(ctx context.Context, index string, payload []byte) (*searchsvc.UploadResult, error)
}
