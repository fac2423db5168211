package idxmigrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// clientMetrics holds prometheus metrics registered for the embedded client.
type clientMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	indexes    *prometheus.CounterVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Subsystem: "client",
			Name:      "operations_total",
			Help:      "Client operations by type and status.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "idxmigrate",
			Subsystem: "client",
			Name:      "operation_duration_seconds",
			Help:      "Client operation duration in seconds.",
			Buckets:   []float64{0.1, 1, 10, 60, 300, 900, 3600},
		}, []string{"operation"}),
		indexes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "idxmigrate",
			Subsystem: "client",
			Name:      "indexes_total",
			Help:      "Indexes migrated by embedded runs, by outcome.",
		}, []string{"outcome"}),
	}
	for _, c := range []**prometheus.CounterVec{&m.operations, &m.indexes} {
		if err := registerOrReuse(reg, c); err != nil {
			return nil, err
		}
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one, so two
// clients can share a registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("idxmigrate: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("idxmigrate: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer provides logging and metrics for client operations. A nil
// observer, or one without logger or registry, is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.metrics.operations.WithLabelValues(op, status).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}

	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("operation failed", "op", op, "duration", dur, "error", err)
		return
	}
	o.logger.Debug("operation completed", "op", op, "duration", dur)
}

// observeRun records per-index outcomes and logs the run summary.
func (o *observer) observeRun(ctx context.Context, sum *RunSummary) {
	if o == nil || sum.RunID == "" {
		return
	}

	if o.metrics != nil {
		for i := range sum.Indexes {
			o.metrics.indexes.WithLabelValues(string(sum.Indexes[i].Outcome)).Inc()
		}
	}

	if o.logger == nil {
		return
	}
	for i := range sum.Indexes {
		r := &sum.Indexes[i]
		level := slog.LevelInfo
		if r.Outcome != OutcomeSucceeded {
			level = slog.LevelWarn
		}
		o.logger.Log(ctx, level, "index migrated",
			"run_id", sum.RunID,
			"index", r.Index,
			"outcome", r.Outcome,
			"stage", r.Stage,
			"source_count", r.SourceCount,
			"target_count", r.TargetCount,
			"errors", len(r.Errors),
		)
	}
	o.logger.InfoContext(ctx, "run finished",
		"run_id", sum.RunID,
		"outcome", sum.Outcome,
		"indexes", len(sum.Indexes),
		"duration", sum.Duration,
	)
}
