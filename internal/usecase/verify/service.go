// Package verify reconciles target document counts after an import.
package verify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/idxmigrate/internal/logger"
)

// Config controls polling.
type Config struct {
	Settle       time.Duration // wait before the first poll
	PollInterval time.Duration
	StablePolls  int // consecutive equal counts that end polling
	Timeout      time.Duration
}

// DefaultConfig polls every 2s for up to 2 minutes, stopping after 3 equal counts.
func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second, StablePolls: 3, Timeout: 2 * time.Minute}
}

// Result describes how polling ended.
type Result struct {
	Expected int64
	Count    int64 // last count observed
	Polls    int
	Matched  bool // Count == Expected
	Stable   bool // Count stopped changing without matching
	TimedOut bool
}

// Service polls the target until its count matches, stabilizes or times out.
type Service struct {
	counter Counter
	clock   Clock
	cfg     Config
}

// New creates a reconciler.
func New(counter Counter, cfg Config) *Service {
	d := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = d.PollInterval
	}
	if cfg.StablePolls <= 0 {
		cfg.StablePolls = d.StablePolls
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}
	return &Service{counter: counter, clock: realClock{}, cfg: cfg}
}

// WithClock replaces the wall clock.
func (s *Service) WithClock(c Clock) *Service {
	s.clock = c
	return s
}

// Reconcile polls index until its count equals expected, repeats unchanged for
// StablePolls polls, or Timeout elapses. It returns an error only when ctx ends
// or no poll succeeded before the timeout.
func (s *Service) Reconcile(ctx context.Context, index string, expected int64) (Result, error) {
	log := logger.FromContext(ctx).With(zap.String("index", index))
	res := Result{Expected: expected}

	if s.cfg.Settle > 0 {
		if err := s.wait(ctx, s.cfg.Settle); err != nil {
			return res, err
		}
	}

	deadline := s.clock.Now().Add(s.cfg.Timeout)
	var (
		lastErr error
		seen    bool
		same    int
	)
	for {
		n, err := s.counter.Count(ctx, index)
		res.Polls++
		if err != nil {
			lastErr = err
			log.Warn("count target failed", zap.Int("poll", res.Polls), zap.Error(err))
		} else {
			lastErr = nil
			if seen && n == res.Count {
				same++
			} else {
				same = 1
			}
			seen = true
			res.Count = n
			log.Debug("target count", zap.Int("poll", res.Polls), zap.Int64("count", n), zap.Int64("expected", expected))

			if n == expected {
				res.Matched = true
				return res, nil
			}
			if same >= s.cfg.StablePolls {
				res.Stable = true
				return res, nil
			}
		}

		if !s.clock.Now().Before(deadline) {
			res.TimedOut = true
			if !seen && lastErr != nil {
				return res, fmt.Errorf("count %s: %w", index, lastErr)
			}
			return res, nil
		}
		if err := s.wait(ctx, s.cfg.PollInterval); err != nil {
			return res, err
		}
	}
}

func (s *Service) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("reconcile: %w", ctx.Err())
	case <-s.clock.After(d):
		return nil
	}
}
