// Package extract pages documents out of a source index in parallel waves,
// rewrites geo values and stages each page as one batch file.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	dombatch "github.com/kailas-cloud/idxmigrate/internal/domain/batch"
	"github.com/kailas-cloud/idxmigrate/internal/domain/geo"
	"github.com/kailas-cloud/idxmigrate/internal/logger"
	"github.com/kailas-cloud/idxmigrate/internal/metrics"
)

// Defaults match the service's paging limits.
const (
	DefaultBatchSize    = 500
	DefaultParallelJobs = 10
)

// PageResult is the outcome of one page: extract, rewrite, encode, stage.
type PageResult struct {
	Page     int
	Skip     int
	Docs     int
	File     string // empty when nothing was staged
	Geo      geo.Report
	Duration time.Duration
	Err      error
}

// Export is everything one index's extraction produced.
type Export struct {
	Index string
	// Files lists staged names in the order they were produced.
	Files []string
	// Pages is indexed by page number.
	Pages []PageResult
}

// Failed returns the number of pages that did not stage.
func (e *Export) Failed() int {
	n := 0
	for _, p := range e.Pages {
		if p.Err != nil {
			n++
		}
	}
	return n
}

// Docs returns the number of documents staged.
func (e *Export) Docs() int {
	n := 0
	for _, p := range e.Pages {
		if p.Err == nil {
			n += p.Docs
		}
	}
	return n
}

// Geo sums geo rewrite counts over staged pages.
func (e *Export) Geo() geo.Report {
	var r geo.Report
	for _, p := range e.Pages {
		if p.Err == nil {
			r.Add(p.Geo)
		}
	}
	return r
}

// Errors returns page errors in page order.
func (e *Export) Errors() []error {
	var errs []error
	for _, p := range e.Pages {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}

// Scheduler runs page extraction in waves of at most parallelJobs pages,
// waiting for each wave to finish before starting the next.
type Scheduler struct {
	extractor    *Extractor
	stage        StageWriter
	batchSize    int
	parallelJobs int
}

// New creates a Scheduler reading from src and staging into stage.
func New(src DocumentSearcher, stage StageWriter) *Scheduler {
	return &Scheduler{
		extractor:    NewExtractor(src),
		stage:        stage,
		batchSize:    DefaultBatchSize,
		parallelJobs: DefaultParallelJobs,
	}
}

// WithBatchSize sets the page size (documents per staged file).
func (s *Scheduler) WithBatchSize(n int) *Scheduler {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// WithParallelJobs sets the wave width.
func (s *Scheduler) WithParallelJobs(n int) *Scheduler {
	if n > 0 {
		s.parallelJobs = n
	}
	return s
}

// PageCount returns ceil(total/batchSize).
func (s *Scheduler) PageCount(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(s.batchSize) - 1) / int64(s.batchSize))
}

// Export extracts total documents of index. Page failures are recorded in the
// result, not returned. The error is non-nil only when ctx ends before all
// waves ran; pages never started are then marked with ctx.Err().
func (s *Scheduler) Export(ctx context.Context, index string, total int64) (*Export, error) {
	pages := s.PageCount(total)
	exp := &Export{Index: index, Pages: make([]PageResult, pages)}
	log := logger.FromContext(ctx)

	var mu sync.Mutex
	for start := 0; start < pages; start += s.parallelJobs {
		if err := ctx.Err(); err != nil {
			for p := start; p < pages; p++ {
				exp.Pages[p] = PageResult{Page: p, Skip: p * s.batchSize, Err: err}
			}
			return exp, fmt.Errorf("export %s: %w", index, err)
		}

		end := min(start+s.parallelJobs, pages)
		log.Debug("extraction wave",
			zap.String("index", index),
			zap.Int("first_page", start),
			zap.Int("pages", end-start),
		)

		var wg sync.WaitGroup
		for p := start; p < end; p++ {
			wg.Add(1)
			go func(page int) {
				defer wg.Done()
				res := s.runPage(ctx, index, page)
				exp.Pages[page] = res
				if res.File != "" {
					mu.Lock()
					exp.Files = append(exp.Files, res.File)
					mu.Unlock()
				}
			}(p)
		}
		wg.Wait()
	}

	return exp, nil
}

func (s *Scheduler) runPage(ctx context.Context, index string, page int) PageResult {
	skip := page * s.batchSize
	res := PageResult{Page: page, Skip: skip}
	start := time.Now()
	log := logger.FromContext(ctx).With(zap.String("index", index), zap.Int("page", page), zap.Int("skip", skip))

	res.Err = s.stagePage(ctx, index, &res)
	res.Duration = time.Since(start)

	metrics.PagesTotal.WithLabelValues(index, metrics.StatusLabel(res.Err)).Inc()
	if res.Err != nil {
		log.Error("page failed", zap.Error(res.Err))
		return res
	}

	metrics.DocumentsExportedTotal.WithLabelValues(index).Add(float64(res.Docs))
	metrics.GeoRewritesTotal.WithLabelValues("point").Add(float64(res.Geo.Points))
	metrics.GeoRewritesTotal.WithLabelValues("empty").Add(float64(res.Geo.Empty))
	if res.Geo.Empty > 0 {
		log.Warn("empty geo values staged as null", zap.Int("count", res.Geo.Empty))
	}
	log.Info("page staged",
		zap.String("file", res.File),
		zap.Int("docs", res.Docs),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (s *Scheduler) stagePage(ctx context.Context, index string, res *PageResult) error {
	docs, err := s.extractor.Extract(ctx, index, res.Skip, s.batchSize)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	out := make([]json.RawMessage, len(docs))
	for i, doc := range docs {
		rewritten, rep, err := geo.Rewrite(doc)
		if err != nil {
			return fmt.Errorf("rewrite document %d of page %d: %w", i, res.Page, err)
		}
		res.Geo.Add(rep)
		out[i] = rewritten
	}

	name := dombatch.FileName(index)
	if err := s.stage.Write(ctx, name, dombatch.Encode(out)); err != nil {
		return fmt.Errorf("stage %s: %w", name, err)
	}
	res.Docs = len(out)
	res.File = name
	return nil
}
