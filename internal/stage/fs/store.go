// Package fs stages batch files on the local filesystem under <dir>/<container>.
package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/idxmigrate/internal/stage"
)

var _ stage.Store = (*Store)(nil)

// Store writes each object to its own file. Writes go through a temp file and
// rename so a reader never sees a partial object.
type Store struct {
	root string
}

// NewStore creates the container directory if missing.
func NewStore(dir, container string) (*Store, error) {
	root := filepath.Join(dir, container)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the container directory.
func (s *Store) Root() string { return s.root }

// Ping checks that the container directory still exists.
func (s *Store) Ping(context.Context) error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.root)
	}
	return nil
}

// Write stores content under name, replacing any previous file.
func (s *Store) Write(ctx context.Context, name string, content []byte) error {
	if err := stage.ValidateName(name); err != nil {
		return err //nolint:wrapcheck // already a stage.Error
	}
	if err := ctx.Err(); err != nil {
		return &stage.Error{Op: stage.OpWrite, Name: name, Err: err}
	}

	tmp, err := os.CreateTemp(s.root, ".tmp-"+name+"-*")
	if err != nil {
		return &stage.Error{Op: stage.OpWrite, Name: name, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &stage.Error{Op: stage.OpWrite, Name: name, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &stage.Error{Op: stage.OpWrite, Name: name, Err: err}
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, name)); err != nil {
		_ = os.Remove(tmpName)
		return &stage.Error{Op: stage.OpWrite, Name: name, Err: err}
	}
	return nil
}

// Read returns the file content or stage.ErrNotFound.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := stage.ValidateName(name); err != nil {
		return nil, err //nolint:wrapcheck // already a stage.Error
	}
	if err := ctx.Err(); err != nil {
		return nil, &stage.Error{Op: stage.OpRead, Name: name, Err: err}
	}

	data, err := os.ReadFile(filepath.Join(s.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &stage.Error{Op: stage.OpRead, Name: name, Err: stage.ErrNotFound}
		}
		return nil, &stage.Error{Op: stage.OpRead, Name: name, Err: err}
	}
	return data, nil
}
