package idxmigrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/idxmigrate/internal/config"
	"github.com/kailas-cloud/idxmigrate/internal/domain"
	"github.com/kailas-cloud/idxmigrate/internal/searchsvc/azure"
	"github.com/kailas-cloud/idxmigrate/internal/stage"
	stageFS "github.com/kailas-cloud/idxmigrate/internal/stage/fs"
	stageS3 "github.com/kailas-cloud/idxmigrate/internal/stage/s3"
	stageValkey "github.com/kailas-cloud/idxmigrate/internal/stage/valkey"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/bulkimport"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/idxmigrate/internal/usecase/health"
	runuc "github.com/kailas-cloud/idxmigrate/internal/usecase/run"
	schemauc "github.com/kailas-cloud/idxmigrate/internal/usecase/schema"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/verify"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultContainer        = "idxmigrate"
	defaultAPIVersion       = "2020-06-30"
)

// Internal interfaces for substitution in tests.
type runUseCase interface {
	Run(ctx context.Context) (domain.RunSummary, error)
	Last() (domain.RunSummary, bool)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

type pingStore interface {
	stage.Store
	Ping(ctx context.Context) error
}

// Client is the idxmigrate entry point.
type Client struct {
	closeStage func()
	runSvc     runUseCase
	healthSvc  healthUseCase
	obs        *observer
}

// New creates a Client and opens the stage store.
// The provided context is used for the stage readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:    "fs",
		dir:       "stage",
		container: defaultContainer,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	src, err := serviceConfig("source", cfg.source)
	if err != nil {
		return nil, err
	}
	dst, err := serviceConfig("target", cfg.target)
	if err != nil {
		return nil, err
	}

	store, closeStage, err := createStage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		closeStage()
		return nil, err
	}

	c := wireClient(cfg, azure.New("source", src), azure.New("target", dst), store, obs)
	c.closeStage = closeStage
	return c, nil
}

func serviceConfig(label string, s Service) (config.ServiceConfig, error) {
	if s.Name == "" && s.Endpoint == "" {
		return config.ServiceConfig{}, fmt.Errorf("idxmigrate: %s service name or endpoint required", label)
	}
	if s.APIKey == "" {
		return config.ServiceConfig{}, fmt.Errorf("idxmigrate: %s api key required", label)
	}
	sc := config.ServiceConfig{
		Name:       s.Name,
		Endpoint:   s.Endpoint,
		APIKey:     s.APIKey,
		APIVersion: s.APIVersion,
		TimeoutSec: int(s.Timeout / time.Second),
	}
	if sc.APIVersion == "" {
		sc.APIVersion = defaultAPIVersion
	}
	return sc, nil
}

func createStage(ctx context.Context, cfg *clientConfig) (pingStore, func(), error) {
	noop := func() {}

	switch cfg.driver {
	case "fs":
		s, err := stageFS.NewStore(cfg.dir, cfg.container)
		if err != nil {
			return nil, nil, fmt.Errorf("idxmigrate: create fs stage: %w", err)
		}
		return s, noop, nil
	case "valkey":
		s, err := stageValkey.NewStore(stageValkey.Config{
			Addrs:     cfg.addrs,
			Password:  cfg.password,
			KeyPrefix: defaultContainer + ":",
			Container: cfg.container,
			TTL:       cfg.ttl,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("idxmigrate: create valkey stage: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, fmt.Errorf("idxmigrate: valkey stage not ready: %w", err)
		}
		return s, s.Close, nil
	case "s3":
		s, err := stageS3.NewStore(stageS3.Config{
			Endpoint:  cfg.endpoint,
			AccessKey: cfg.accessKey,
			SecretKey: cfg.secretKey,
			UseSSL:    cfg.useSSL,
			Bucket:    cfg.container,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("idxmigrate: create s3 stage: %w", err)
		}
		if err := s.EnsureContainer(ctx); err != nil {
			return nil, nil, fmt.Errorf("idxmigrate: %w", err)
		}
		return s, noop, nil
	default:
		return nil, nil, fmt.Errorf("idxmigrate: unknown stage driver %q", cfg.driver)
	}
}

func wireClient(cfg *clientConfig, src, dst *azure.Client, store pingStore, obs *observer) *Client {
	staged := stage.Instrument(cfg.driver, store)

	schemaSvc := schemauc.New(src, dst, src, dst).WithSynonymMap(cfg.synonymMap)
	if cfg.persistSchema {
		schemaSvc = schemaSvc.WithSchemaStage(staged)
	}
	exporter := extract.New(src, staged).
		WithBatchSize(cfg.batchSize).
		WithParallelJobs(cfg.parallelJobs)
	importer := bulkimport.New(staged, dst).WithStopOnError(cfg.stopOnError)
	reconciler := verify.New(dst, verify.Config{
		PollInterval: cfg.verifyInterval,
		Timeout:      cfg.verifyTimeout,
	})

	runSvc := runuc.New(src, schemaSvc, exporter, importer, reconciler).
		WithRequireCompleteExport(cfg.requireComplete)

	return &Client{
		runSvc:    runSvc,
		healthSvc: healthuc.New(src, dst).WithStage(store),
		obs:       obs,
	}
}

// Close releases the stage store.
func (c *Client) Close() {
	if c.closeStage != nil {
		c.closeStage()
	}
}

// Run migrates every source index once. The summary is filled even when
// err is non-nil; err reports a run that could not finish (listing failed,
// ctx ended, another run in progress).
func (c *Client) Run(ctx context.Context) (sum RunSummary, err error) {
	start := time.Now()
	defer func() { c.obs.observe("run", start, err) }()

	s, err := c.runSvc.Run(ctx)
	if errors.Is(err, domain.ErrRunInProgress) {
		return RunSummary{}, fmt.Errorf("run: %w", err)
	}

	sum = fromInternalSummary(s)
	c.obs.observeRun(ctx, &sum)
	if err != nil {
		return sum, fmt.Errorf("run: %w", err)
	}
	return sum, nil
}

// LastRun returns the summary of the most recent finished run.
func (c *Client) LastRun() (RunSummary, bool) {
	s, ok := c.runSvc.Last()
	if !ok {
		return RunSummary{}, false
	}
	return fromInternalSummary(s), true
}

func fromInternalSummary(s domain.RunSummary) RunSummary {
	out := RunSummary{
		RunID:    s.RunID,
		Started:  s.Started,
		Duration: s.Duration,
		Outcome:  Outcome(s.Outcome()),
		Synonyms: SynonymResult{
			Name:    s.Synonyms.Name,
			Found:   s.Synonyms.Found,
			Created: s.Synonyms.Created,
			Errors:  s.Synonyms.Errors,
		},
		Error: s.Error,
	}
	if len(s.Indexes) > 0 {
		out.Indexes = make([]IndexReport, len(s.Indexes))
		for i := range s.Indexes {
			out.Indexes[i] = fromInternalReport(&s.Indexes[i])
		}
	}
	return out
}

func fromInternalReport(r *domain.IndexReport) IndexReport {
	return IndexReport{
		Index:         r.Index,
		Stage:         string(r.Stage),
		Outcome:       Outcome(r.Outcome),
		SourceCount:   r.SourceCount,
		TargetCount:   r.TargetCount,
		CountsMatch:   r.CountsMatch,
		PagesTotal:    r.PagesTotal,
		PagesFailed:   r.PagesFailed,
		DocsExported:  r.DocsExported,
		FilesStaged:   r.FilesStaged,
		FilesImported: r.FilesImported,
		FilesFailed:   r.FilesFailed,
		DocsRejected:  r.DocsRejected,
		GeoWarnings:   r.GeoWarnings,
		Errors:        r.Errors,
		Duration:      r.Duration,
	}
}
