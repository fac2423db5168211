// Package run sequences the migration of every source index and builds the run summary.
package run

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/idxmigrate/internal/domain"
	"github.com/kailas-cloud/idxmigrate/internal/logger"
	"github.com/kailas-cloud/idxmigrate/internal/metrics"
)

// Service is the run controller. Only one run executes at a time.
type Service struct {
	src        Source
	schema     SchemaMigrator
	exporter   Exporter
	importer   Importer
	reconciler Reconciler

	requireComplete bool

	running atomic.Bool
	mu      sync.RWMutex
	last    *domain.RunSummary
}

// New creates a run controller.
func New(src Source, schema SchemaMigrator, exporter Exporter, importer Importer, reconciler Reconciler) *Service {
	return &Service{
		src:        src,
		schema:     schema,
		exporter:   exporter,
		importer:   importer,
		reconciler: reconciler,
	}
}

// WithRequireCompleteExport refuses to touch the target index when any page failed to stage.
func (s *Service) WithRequireCompleteExport(require bool) *Service {
	s.requireComplete = require
	return s
}

// Running reports whether a run is in progress.
func (s *Service) Running() bool { return s.running.Load() }

// Last returns the summary of the most recent finished run.
func (s *Service) Last() (domain.RunSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return domain.RunSummary{}, false
	}
	return *s.last, true
}

// Run migrates the synonym map, then every source index in turn. A failing
// index never stops the run; its outcome is recorded in the summary. The
// error is non-nil only when the run could not proceed (listing failed, ctx
// ended) or another run is in progress.
func (s *Service) Run(ctx context.Context) (domain.RunSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return domain.RunSummary{}, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	return s.execute(ctx, xid.New().String())
}

// Start launches a run in the background and returns its id. The run is
// bound to ctx, not to the caller's lifetime; the result is read via Last.
func (s *Service) Start(ctx context.Context) (string, error) {
	if !s.running.CompareAndSwap(false, true) {
		return "", domain.ErrRunInProgress
	}

	id := xid.New().String()
	go func() {
		defer s.running.Store(false)
		_, _ = s.execute(ctx, id)
	}()
	return id, nil
}

func (s *Service) execute(ctx context.Context, id string) (domain.RunSummary, error) {
	sum := domain.RunSummary{RunID: id, Started: time.Now()}
	ctx, log := logger.With(ctx, zap.String("run_id", sum.RunID))
	log.Info("run started")

	err := s.run(ctx, &sum)
	if err != nil {
		sum.Error = err.Error()
		log.Error("run aborted", zap.Error(err))
	}
	sum.Duration = time.Since(sum.Started)
	s.finish(ctx, &sum)
	return sum, err
}

func (s *Service) run(ctx context.Context, sum *domain.RunSummary) error {
	names, err := s.src.ListIndexNames(ctx)
	if err != nil {
		return fmt.Errorf("list source indexes: %w", err)
	}
	logger.FromContext(ctx).Info("source indexes listed", zap.Strings("indexes", names))

	sum.Synonyms = s.schema.MigrateSynonyms(ctx)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run interrupted: %w", err)
		}
		sum.Indexes = append(sum.Indexes, s.migrateIndex(ctx, name))
	}
	return nil
}

func (s *Service) finish(ctx context.Context, sum *domain.RunSummary) {
	outcome := sum.Outcome()
	metrics.RunsTotal.WithLabelValues(string(outcome)).Inc()
	metrics.RunDuration.Observe(sum.Duration.Seconds())

	log := logger.FromContext(ctx)
	for _, r := range sum.Indexes {
		log.Info("index summary",
			zap.String("index", r.Index),
			zap.String("outcome", string(r.Outcome)),
			zap.String("stage", string(r.Stage)),
			zap.Int64("source_count", r.SourceCount),
			zap.Int64("target_count", r.TargetCount),
			zap.Int("pages_failed", r.PagesFailed),
			zap.Int("files_failed", r.FilesFailed),
			zap.Int("docs_rejected", r.DocsRejected),
		)
	}
	log.Info("run finished",
		zap.String("outcome", string(outcome)),
		zap.Int("indexes", len(sum.Indexes)),
		zap.Bool("synonyms_copied", sum.Synonyms.Created),
		zap.Duration("duration", sum.Duration),
	)

	s.mu.Lock()
	s.last = sum
	s.mu.Unlock()
}

// migrateIndex drives one index through its stages. The target is only
// touched once the export has finished.
func (s *Service) migrateIndex(ctx context.Context, index string) domain.IndexReport {
	start := time.Now()
	ctx, log := logger.With(ctx, zap.String("index", index))
	rep := domain.IndexReport{Index: index, Stage: domain.StagePending, Outcome: domain.OutcomeSucceeded}
	defer func() {
		rep.Duration = time.Since(start)
		if rep.Outcome == domain.OutcomeFailed {
			log.Error("index failed", zap.String("stage", string(rep.Stage)), zap.Strings("errors", rep.Errors))
		}
	}()

	schema, err := s.schema.FetchSchema(ctx, index)
	if err != nil {
		rep.Fail(err)
		return rep
	}
	advance(log, &rep, domain.StageSchemaFetched)

	if ok, err := s.schema.PersistSchema(ctx, schema); err != nil {
		log.Warn("schema not persisted", zap.Error(err))
		rep.AddError(err)
	} else if ok {
		log.Info("schema persisted")
	}

	total, err := s.src.Count(ctx, index)
	if err != nil {
		rep.Fail(fmt.Errorf("count source %s: %w", index, err))
		return rep
	}
	rep.SourceCount = total
	advance(log, &rep, domain.StageExtracting)
	log.Info("extracting", zap.Int64("source_count", total))

	exp, err := s.exporter.Export(ctx, index, total)
	if exp != nil {
		rep.PagesTotal = len(exp.Pages)
		rep.PagesFailed = exp.Failed()
		rep.DocsExported = exp.Docs()
		rep.FilesStaged = len(exp.Files)
		rep.GeoWarnings = exp.Geo().Empty
		for _, perr := range exp.Errors() {
			rep.AddError(perr)
		}
	}
	if err != nil {
		rep.Fail(err)
		return rep
	}
	log.Info("export finished",
		zap.Int("pages", rep.PagesTotal),
		zap.Int("pages_failed", rep.PagesFailed),
		zap.Int("files", rep.FilesStaged),
		zap.Int("docs", rep.DocsExported),
	)
	if rep.PagesFailed > 0 && s.requireComplete {
		rep.Fail(fmt.Errorf("%d of %d pages failed, target left untouched: %w",
			rep.PagesFailed, rep.PagesTotal, domain.ErrIncompleteExport))
		return rep
	}

	if err := s.schema.Recreate(ctx, schema); err != nil {
		rep.Fail(err)
		return rep
	}
	advance(log, &rep, domain.StageTargetRecreated)

	advance(log, &rep, domain.StageImporting)
	imp := s.importer.Import(ctx, index, exp.Files)
	rep.FilesImported = imp.Imported
	rep.FilesFailed = imp.Failed
	rep.DocsRejected = imp.Rejected
	for _, ierr := range imp.Errors() {
		rep.AddError(ierr)
	}
	if imp.Skipped > 0 {
		rep.AddError(fmt.Errorf("%d staged files not imported", imp.Skipped))
	}
	if rep.FilesStaged > 0 && imp.Imported == 0 {
		rep.Fail(errors.New("no staged file was imported"))
		return rep
	}

	advance(log, &rep, domain.StageVerifying)
	res, err := s.reconciler.Reconcile(ctx, index, total)
	rep.TargetCount = res.Count
	rep.CountsMatch = res.Matched
	switch {
	case err != nil:
		rep.AddError(fmt.Errorf("verify: %w", err))
	case !res.Matched:
		rep.AddError(fmt.Errorf("target count %d does not match source count %d", res.Count, total))
	}
	log.Info("counts compared",
		zap.Int64("source_count", total),
		zap.Int64("target_count", res.Count),
		zap.Bool("match", res.Matched),
		zap.Int("polls", res.Polls),
	)

	advance(log, &rep, domain.StageDone)
	return rep
}

func advance(log *zap.Logger, rep *domain.IndexReport, to domain.Stage) {
	log.Info("index stage", zap.String("from", string(rep.Stage)), zap.String("to", string(to)))
	rep.Stage = to
}
