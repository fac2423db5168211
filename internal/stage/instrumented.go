package stage

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/idxmigrate/internal/logger"
	"github.com/kailas-cloud/idxmigrate/internal/metrics"
)

// Instrumented decorates a Store with metrics and debug logging.
type Instrumented struct {
	driver string
	next   Store
}

// Instrument wraps next; driver labels the metrics.
func Instrument(driver string, next Store) *Instrumented {
	return &Instrumented{driver: driver, next: next}
}

// Write delegates to the wrapped store.
func (s *Instrumented) Write(ctx context.Context, name string, content []byte) error {
	err := s.next.Write(ctx, name, content)
	metrics.StageOpsTotal.WithLabelValues(s.driver, OpWrite, metrics.StatusLabel(err)).Inc()
	if err == nil {
		metrics.StageBytesTotal.WithLabelValues(s.driver, OpWrite).Add(float64(len(content)))
		logger.FromContext(ctx).Debug("staged object",
			zap.String("driver", s.driver),
			zap.String("name", name),
			zap.Int("bytes", len(content)),
		)
	}
	return err //nolint:wrapcheck // decorator
}

// Read delegates to the wrapped store.
func (s *Instrumented) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := s.next.Read(ctx, name)
	metrics.StageOpsTotal.WithLabelValues(s.driver, OpRead, metrics.StatusLabel(err)).Inc()
	if err == nil {
		metrics.StageBytesTotal.WithLabelValues(s.driver, OpRead).Add(float64(len(data)))
	}
	return data, err //nolint:wrapcheck // decorator
}
