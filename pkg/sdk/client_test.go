package idxmigrate

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/idxmigrate/internal/domain"
	healthuc "github.com/kailas-cloud/idxmigrate/internal/usecase/health"
)

func TestNew_MissingSource(t *testing.T) {
	_, err := New(context.Background(), WithTarget(Service{Name: "dst", APIKey: "k"}))
	if err == nil {
		t.Fatal("expected error when no source provided")
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	_, err := New(context.Background(),
		WithSource(Service{Name: "src", APIKey: "k"}),
		WithTarget(Service{Name: "dst"}),
	)
	if err == nil {
		t.Fatal("expected error for missing target api key")
	}
}

func TestNew_FSStage(t *testing.T) {
	dir := t.TempDir()
	c, err := New(context.Background(),
		WithSource(Service{Endpoint: "http://127.0.0.1:1", APIKey: "k1"}),
		WithTarget(Service{Endpoint: "http://127.0.0.1:1", APIKey: "k2"}),
		WithFSStage(dir),
		WithContainer("backup"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	h := c.Health(context.Background())
	if h.Checks["stage"] != "ok" {
		t.Errorf("stage check = %q, want ok", h.Checks["stage"])
	}
	if h.Checks["target"] != "error" {
		t.Errorf("target check = %q, want error for unreachable endpoint", h.Checks["target"])
	}
	if h.Status != "degraded" {
		t.Errorf("status = %q, want degraded", h.Status)
	}
	if _, err := os.Stat(filepath.Join(dir, "backup")); err != nil {
		t.Errorf("container directory not created: %v", err)
	}
}

func TestCreateStage_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "azblob", container: "x"}
	if _, _, err := createStage(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestServiceConfig_Defaults(t *testing.T) {
	sc, err := serviceConfig("source", Service{Name: "src", APIKey: "k", Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("serviceConfig: %v", err)
	}
	if sc.APIVersion != defaultAPIVersion {
		t.Errorf("api version = %q, want %q", sc.APIVersion, defaultAPIVersion)
	}
	if sc.TimeoutSec != 30 {
		t.Errorf("timeout = %d, want 30", sc.TimeoutSec)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithValkeyStage("localhost:6379", "secret", time.Hour).apply(cfg)
	if cfg.driver != "valkey" || cfg.addrs[0] != "localhost:6379" || cfg.password != "secret" || cfg.ttl != time.Hour {
		t.Errorf("valkey options = %+v", cfg)
	}

	WithS3Stage("minio:9000", "ak", "sk", true).apply(cfg)
	if cfg.driver != "s3" || cfg.endpoint != "minio:9000" || !cfg.useSSL {
		t.Errorf("s3 options = %+v", cfg)
	}

	WithBatchSize(250).apply(cfg)
	WithParallelJobs(4).apply(cfg)
	WithSynonymMap("syn").apply(cfg)
	if cfg.batchSize != 250 || cfg.parallelJobs != 4 || cfg.synonymMap != "syn" {
		t.Errorf("pipeline options = %+v", cfg)
	}

	WithPersistSchema().apply(cfg)
	WithRequireCompleteExport().apply(cfg)
	WithStopImportOnError().apply(cfg)
	if !cfg.persistSchema || !cfg.requireComplete || !cfg.stopOnError {
		t.Errorf("flags = %+v", cfg)
	}

	WithVerify(time.Second, time.Minute).apply(cfg)
	if cfg.verifyInterval != time.Second || cfg.verifyTimeout != time.Minute {
		t.Errorf("verify = %v/%v", cfg.verifyInterval, cfg.verifyTimeout)
	}

	logger := slog.Default()
	WithLogger(logger).apply(cfg)
	if cfg.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg)
	if cfg.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestClient_Close_NilStage(t *testing.T) {
	c := &Client{}
	c.Close()
}

func TestClient_Run(t *testing.T) {
	started := time.Now()
	runSvc := &mockRunUC{runFn: func(context.Context) (domain.RunSummary, error) {
		return domain.RunSummary{
			RunID:   "r1",
			Started: started,
			Indexes: []domain.IndexReport{
				{Index: "hotels", Stage: domain.StageDone, Outcome: domain.OutcomeSucceeded, SourceCount: 1200, TargetCount: 1200, CountsMatch: true},
				{Index: "rooms", Stage: domain.StageImporting, Outcome: domain.OutcomePartial, Errors: []string{"upload failed"}},
			},
		}, nil
	}}
	c := testClient(runSvc, &mockHealthUC{})

	sum, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.RunID != "r1" || !sum.Started.Equal(started) {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Outcome != OutcomePartial {
		t.Errorf("outcome = %s, want partial", sum.Outcome)
	}
	if len(sum.Indexes) != 2 {
		t.Fatalf("indexes = %d, want 2", len(sum.Indexes))
	}
	if sum.Indexes[0].Stage != "done" || !sum.Indexes[0].CountsMatch || sum.Indexes[0].TargetCount != 1200 {
		t.Errorf("index[0] = %+v", sum.Indexes[0])
	}
	if sum.Indexes[1].Outcome != OutcomePartial || sum.Indexes[1].Errors[0] != "upload failed" {
		t.Errorf("index[1] = %+v", sum.Indexes[1])
	}
}

func TestClient_Run_Aborted(t *testing.T) {
	runSvc := &mockRunUC{runFn: func(context.Context) (domain.RunSummary, error) {
		return domain.RunSummary{RunID: "r2", Error: "list source indexes: boom"}, errors.New("list source indexes: boom")
	}}
	c := testClient(runSvc, &mockHealthUC{})

	sum, err := c.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if sum.RunID != "r2" || sum.Outcome != OutcomeFailed {
		t.Errorf("summary = %+v", sum)
	}
}

func TestClient_Run_InProgress(t *testing.T) {
	runSvc := &mockRunUC{runFn: func(context.Context) (domain.RunSummary, error) {
		return domain.RunSummary{}, domain.ErrRunInProgress
	}}
	c := testClient(runSvc, &mockHealthUC{})

	sum, err := c.Run(context.Background())
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if sum.RunID != "" {
		t.Errorf("expected empty summary, got %+v", sum)
	}
}

func TestClient_LastRun(t *testing.T) {
	runSvc := &mockRunUC{}
	c := testClient(runSvc, &mockHealthUC{})

	if _, ok := c.LastRun(); ok {
		t.Error("LastRun() must be empty before the first run")
	}
	runSvc.last = &domain.RunSummary{RunID: "r3"}
	sum, ok := c.LastRun()
	if !ok || sum.RunID != "r3" || sum.Outcome != OutcomeSucceeded {
		t.Errorf("LastRun() = %+v, %v", sum, ok)
	}
}

func TestClient_Health(t *testing.T) {
	c := testClient(&mockRunUC{}, &mockHealthUC{report: healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"source": healthuc.CheckOK, "target": healthuc.CheckError},
	}})

	h := c.Health(context.Background())
	if h.Status != "degraded" {
		t.Errorf("status = %q, want degraded", h.Status)
	}
	if h.Checks["source"] != "ok" || h.Checks["target"] != "error" {
		t.Errorf("checks = %v", h.Checks)
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("run", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("run", time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "idxmigrate_client_operations_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric samples, got %d", len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("idxmigrate_client_operations_total not found")
	}
}

func TestObserver_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second newObserver on the same registry: %v", err)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	obs, err := newObserver(slog.Default(), nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("run", time.Now(), nil)
	obs.observe("run", time.Now(), errors.New("test error"))
}

func TestObserver_RunOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(slog.Default(), reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	runSvc := &mockRunUC{runFn: func(context.Context) (domain.RunSummary, error) {
		return domain.RunSummary{
			RunID: "r4",
			Indexes: []domain.IndexReport{
				{Index: "a", Outcome: domain.OutcomeSucceeded},
				{Index: "b", Outcome: domain.OutcomeSucceeded},
				{Index: "c", Outcome: domain.OutcomeFailed},
			},
		}, nil
	}}
	c := &Client{runSvc: runSvc, healthSvc: &mockHealthUC{}, obs: obs}
	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := testutil.ToFloat64(obs.metrics.indexes.WithLabelValues("succeeded")); got != 2 {
		t.Errorf("succeeded indexes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(obs.metrics.indexes.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed indexes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("run", "ok")); got != 1 {
		t.Errorf("run operations = %v, want 1", got)
	}
}
