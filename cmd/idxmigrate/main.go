package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/idxmigrate/internal/config"
	"github.com/kailas-cloud/idxmigrate/internal/domain"
	logpkg "github.com/kailas-cloud/idxmigrate/internal/logger"
	"github.com/kailas-cloud/idxmigrate/internal/metrics"
	"github.com/kailas-cloud/idxmigrate/internal/searchsvc/azure"
	"github.com/kailas-cloud/idxmigrate/internal/stage"
	stageFS "github.com/kailas-cloud/idxmigrate/internal/stage/fs"
	stageS3 "github.com/kailas-cloud/idxmigrate/internal/stage/s3"
	stageValkey "github.com/kailas-cloud/idxmigrate/internal/stage/valkey"
	chiTransport "github.com/kailas-cloud/idxmigrate/internal/transport/chi"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/bulkimport"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/extract"
	healthuc "github.com/kailas-cloud/idxmigrate/internal/usecase/health"
	runuc "github.com/kailas-cloud/idxmigrate/internal/usecase/run"
	schemauc "github.com/kailas-cloud/idxmigrate/internal/usecase/schema"
	"github.com/kailas-cloud/idxmigrate/internal/usecase/verify"
	"github.com/kailas-cloud/idxmigrate/internal/version"
)

// stageReadinessTimeout bounds the wait for a valkey stage at startup.
const stageReadinessTimeout = 30 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	serve := flag.Bool("serve", false, "expose the HTTP trigger instead of running once")
	summaryPath := flag.String("summary", "", "write the run summary as JSON to this file (one-shot mode)")
	flag.Parse()

	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return 2
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create logger:", err)
		return 2
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting idxmigrate",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Bool("serve", *serve),
		zap.String("source", cfg.Source.BaseURL()),
		zap.String("target", cfg.Target.BaseURL()),
		zap.String("stage_driver", cfg.Stage.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logpkg.ContextWithLogger(ctx, logger)

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	st, err := openStage(ctx, cfg.Stage)
	if err != nil {
		logger.Error("Failed to open stage store", zap.Error(err))
		return 1
	}
	defer st.close()
	logger.Info("Stage store ready", zap.String("driver", cfg.Stage.Driver), zap.String("container", cfg.Stage.Container))

	src := azure.New("source", cfg.Source)
	dst := azure.New("target", cfg.Target)
	staged := stage.Instrument(cfg.Stage.Driver, st.store)

	schemaSvc := schemauc.New(src, dst, src, dst).WithSynonymMap(cfg.Migration.SynonymMap)
	if cfg.Stage.PersistSchema {
		schemaSvc = schemaSvc.WithSchemaStage(staged)
	}
	exporter := extract.New(src, staged).
		WithBatchSize(cfg.Migration.MaxBatchSize).
		WithParallelJobs(cfg.Migration.ParallelJobs)
	importer := bulkimport.New(staged, dst).WithStopOnError(cfg.Migration.StopImportOnError)
	reconciler := verify.New(dst, verify.Config{
		Settle:       time.Duration(cfg.Verify.SettleSec) * time.Second,
		PollInterval: time.Duration(cfg.Verify.PollIntervalSec) * time.Second,
		StablePolls:  cfg.Verify.StablePolls,
		Timeout:      time.Duration(cfg.Verify.TimeoutSec) * time.Second,
	})
	runSvc := runuc.New(src, schemaSvc, exporter, importer, reconciler).
		WithRequireCompleteExport(cfg.Migration.RequireCompleteExport)

	if *serve {
		healthSvc := healthuc.New(src, dst).WithStage(st.store)
		return serveHTTP(ctx, cfg, runSvc, healthSvc, logger)
	}
	return runOnce(ctx, runSvc, *summaryPath, logger)
}

// runOnce executes a single run; the exit code is zero only when every index succeeded.
func runOnce(ctx context.Context, runSvc *runuc.Service, summaryPath string, logger *zap.Logger) int {
	sum, err := runSvc.Run(ctx)
	if err != nil {
		logger.Error("Run aborted", zap.Error(err))
	}

	if summaryPath != "" {
		if werr := writeSummary(summaryPath, sum); werr != nil {
			logger.Error("Failed to write summary", zap.String("path", summaryPath), zap.Error(werr))
		}
	}

	switch sum.Outcome() {
	case domain.OutcomeSucceeded:
		return 0
	case domain.OutcomePartial:
		return 3
	default:
		return 1
	}
}

func writeSummary(path string, sum domain.RunSummary) error {
	data, err := json.MarshalIndent(struct {
		domain.RunSummary
		Outcome domain.Outcome `json:"outcome"`
	}{sum, sum.Outcome()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func serveHTTP(
	ctx context.Context,
	cfg config.Config,
	runSvc *runuc.Service,
	healthSvc *healthuc.Service,
	logger *zap.Logger,
) int {
	metrics.RegisterHTTPMetrics()
	server := chiTransport.NewServer(runSvc, healthSvc, logger).WithBaseContext(ctx)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Mount(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		logger.Error("HTTP server error", zap.Error(err))
		return 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	// The base context is canceled, so a background run stops at its next checkpoint.
	for runSvc.Running() {
		select {
		case <-shutdownCtx.Done():
			logger.Warn("Run still in progress at shutdown")
			return 1
		case <-time.After(100 * time.Millisecond):
		}
	}

	logger.Info("Server stopped gracefully")
	return 0
}

type pingStore interface {
	stage.Store
	Ping(ctx context.Context) error
}

type openedStage struct {
	store pingStore
	close func()
}

// openStage builds the stage store selected by cfg.Driver.
func openStage(ctx context.Context, cfg config.StageConfig) (openedStage, error) {
	noop := func() {}

	switch cfg.Driver {
	case config.StageDriverFS:
		s, err := stageFS.NewStore(cfg.Dir, cfg.Container)
		if err != nil {
			return openedStage{}, fmt.Errorf("fs stage: %w", err)
		}
		return openedStage{store: s, close: noop}, nil

	case config.StageDriverValkey:
		s, err := stageValkey.NewStore(stageValkey.Config{
			Addrs:     cfg.Addrs,
			Password:  cfg.Password,
			KeyPrefix: cfg.KeyPrefix,
			Container: cfg.Container,
			TTL:       time.Duration(cfg.TTLHours) * time.Hour,
		})
		if err != nil {
			return openedStage{}, fmt.Errorf("valkey stage: %w", err)
		}
		if err := s.WaitForReady(ctx, stageReadinessTimeout); err != nil {
			s.Close()
			return openedStage{}, fmt.Errorf("valkey stage not ready: %w", err)
		}
		return openedStage{store: s, close: s.Close}, nil

	case config.StageDriverS3:
		s, err := stageS3.NewStore(stageS3.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Container,
		})
		if err != nil {
			return openedStage{}, fmt.Errorf("s3 stage: %w", err)
		}
		if err := s.EnsureContainer(ctx); err != nil {
			return openedStage{}, fmt.Errorf("s3 stage: %w", err)
		}
		return openedStage{store: s, close: noop}, nil

	default:
		return openedStage{}, fmt.Errorf("unknown stage driver %q", cfg.Driver)
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.CodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
