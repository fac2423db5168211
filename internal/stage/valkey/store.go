// Package valkey stages batch files as string keys in Valkey (or Redis) via rueidis.
package valkey

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/idxmigrate/internal/stage"
)

var _ stage.Store = (*Store)(nil)

// Config holds connection and keying parameters.
type Config struct {
	Addrs     []string
	Password  string
	KeyPrefix string
	Container string
	TTL       time.Duration // 0 = keys never expire
}

// Store keeps each object under <prefix><container>/<name>.
type Store struct {
	client rueidis.Client
	prefix string
	ttl    time.Duration
}

// NewStore creates a Valkey-backed stage store.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return newStore(client, cfg), nil
}

func newStore(c rueidis.Client, cfg Config) *Store {
	return &Store{
		client: c,
		prefix: cfg.KeyPrefix + cfg.Container + "/",
		ttl:    cfg.TTL,
	}
}

func (s *Store) key(name string) string { return s.prefix + name }

// Write stores content with SET, applying EX when a TTL is configured.
func (s *Store) Write(ctx context.Context, name string, content []byte) error {
	if err := stage.ValidateName(name); err != nil {
		return err //nolint:wrapcheck // already a stage.Error
	}

	var cmd rueidis.Completed
	if s.ttl > 0 {
		cmd = s.client.B().Set().Key(s.key(name)).Value(rueidis.BinaryString(content)).Ex(s.ttl).Build()
	} else {
		cmd = s.client.B().Set().Key(s.key(name)).Value(rueidis.BinaryString(content)).Build()
	}
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &stage.Error{Op: stage.OpWrite, Name: name, Err: err}
	}
	return nil
}

// Read returns the stored content or stage.ErrNotFound.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := stage.ValidateName(name); err != nil {
		return nil, err //nolint:wrapcheck // already a stage.Error
	}

	cmd := s.client.B().Get().Key(s.key(name)).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, &stage.Error{Op: stage.OpRead, Name: name, Err: stage.ErrNotFound}
		}
		return nil, &stage.Error{Op: stage.OpRead, Name: name, Err: err}
	}
	return data, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for valkey: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
