// Package bulkimport replays staged batch files against the target index.
package bulkimport

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/idxmigrate/internal/domain/batch"
	"github.com/kailas-cloud/idxmigrate/internal/logger"
	"github.com/kailas-cloud/idxmigrate/internal/metrics"
)

// ErrForeignFile is returned for a staged name that is not a batch file of the index.
var ErrForeignFile = errors.New("staged file does not belong to index")

// Summary aggregates per-file results of one index import.
type Summary struct {
	Results  []dombatch.Result
	Skipped  int // files not attempted after a stop-on-error failure
	Imported int // files with status ok or partial
	Failed   int
	Docs     int
	Rejected int
}

// Errors returns the errors of failed files in import order.
func (s Summary) Errors() []error {
	var errs []error
	for _, r := range s.Results {
		if r.Err() != nil {
			errs = append(errs, r.Err())
		}
	}
	return errs
}

// Service uploads staged files one by one. One file is one upload call.
type Service struct {
	stage       StageReader
	target      DocumentUploader
	stopOnError bool
}

// New creates an import service.
func New(stage StageReader, target DocumentUploader) *Service {
	return &Service{stage: stage, target: target}
}

// WithStopOnError makes Import give up on an index after its first failed file.
func (s *Service) WithStopOnError(stop bool) *Service {
	s.stopOnError = stop
	return s
}

// Import uploads files in the given order. Failures are recorded per file;
// there are no retries.
func (s *Service) Import(ctx context.Context, index string, files []string) Summary {
	log := logger.FromContext(ctx).With(zap.String("index", index))
	sum := Summary{Results: make([]dombatch.Result, 0, len(files))}

	for i, name := range files {
		if ctx.Err() != nil || (s.stopOnError && sum.Failed > 0) {
			sum.Skipped = len(files) - i
			log.Warn("import stopped", zap.Int("skipped_files", sum.Skipped))
			break
		}

		res := s.importFile(ctx, index, name)
		sum.Results = append(sum.Results, res)
		metrics.ImportFilesTotal.WithLabelValues(index, string(res.Status())).Inc()

		switch res.Status() {
		case dombatch.StatusOK:
			sum.Imported++
			sum.Docs += res.Docs()
			log.Info("batch imported", zap.String("file", name), zap.Int("docs", res.Docs()))
		case dombatch.StatusPartial:
			sum.Imported++
			sum.Docs += res.Docs()
			sum.Rejected += res.Rejected()
			log.Warn("batch partially imported",
				zap.String("file", name),
				zap.Int("docs", res.Docs()),
				zap.Int("rejected", res.Rejected()),
			)
		case dombatch.StatusError:
			sum.Failed++
			log.Error("batch import failed", zap.String("file", name), zap.Error(res.Err()))
		}
	}
	return sum
}

func (s *Service) importFile(ctx context.Context, index, name string) dombatch.Result {
	if !dombatch.BelongsTo(name, index) {
		return dombatch.NewError(name, fmt.Errorf("%s: %w %s", name, ErrForeignFile, index))
	}
	payload, err := s.stage.Read(ctx, name)
	if err != nil {
		return dombatch.NewError(name, fmt.Errorf("read staged %s: %w", name, err))
	}
	docs, err := dombatch.Count(payload)
	if err != nil {
		return dombatch.NewError(name, fmt.Errorf("staged %s: %w", name, err))
	}

	res, err := s.target.UploadDocuments(ctx, index, payload)
	if err != nil {
		return dombatch.NewError(name, fmt.Errorf("upload %s: %w", name, err))
	}
	if len(res.Failed) > 0 {
		first := res.Failed[0]
		logger.FromContext(ctx).Debug("document rejected",
			zap.String("index", index),
			zap.String("key", first.Key),
			zap.Int("status", first.StatusCode),
			zap.String("message", first.Message),
		)
		return dombatch.NewPartial(name, docs, len(res.Failed))
	}
	return dombatch.NewOK(name, docs)
}
