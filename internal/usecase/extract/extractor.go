package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/idxmigrate/internal/searchsvc"
)

// Extractor reads one page of an index.
type Extractor struct {
	src DocumentSearcher
}

// NewExtractor creates an Extractor over the source service.
func NewExtractor(src DocumentSearcher) *Extractor {
	return &Extractor{src: src}
}

// Extract returns up to top documents starting at skip, in service order. No retries.
func (e *Extractor) Extract(ctx context.Context, index string, skip, top int) ([]json.RawMessage, error) {
	res, err := e.src.Search(ctx, index, &searchsvc.Query{Skip: skip, Top: top})
	if err != nil {
		return nil, fmt.Errorf("extract %s skip=%d top=%d: %w", index, skip, top, err)
	}
	return res.Documents, nil
}
