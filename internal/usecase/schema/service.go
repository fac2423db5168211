// Package schema copies index definitions and the synonym map from the source
// service to the target service.
package schema

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/idxmigrate/internal/domain"
	dombatch "github.com/kailas-cloud/idxmigrate/internal/domain/batch"
	"github.com/kailas-cloud/idxmigrate/internal/logger"
	"github.com/kailas-cloud/idxmigrate/internal/searchsvc"
)

// DefaultSynonymMap is the single synonym map copied per run.
const DefaultSynonymMap = "synonym-map"

// Service migrates schemas and synonyms.
type Service struct {
	srcIndexes  IndexReader
	dstIndexes  IndexWriter
	srcSynonyms SynonymReader
	dstSynonyms SynonymWriter
	stage       StageWriter // optional
	synonymMap  string
}

// New creates a schema service.
func New(srcIndexes IndexReader, dstIndexes IndexWriter, srcSynonyms SynonymReader, dstSynonyms SynonymWriter) *Service {
	return &Service{
		srcIndexes:  srcIndexes,
		dstIndexes:  dstIndexes,
		srcSynonyms: srcSynonyms,
		dstSynonyms: dstSynonyms,
		synonymMap:  DefaultSynonymMap,
	}
}

// WithSynonymMap overrides the synonym map name.
func (s *Service) WithSynonymMap(name string) *Service {
	if name != "" {
		s.synonymMap = name
	}
	return s
}

// WithSchemaStage enables persisting <index>.schema on fetch.
func (s *Service) WithSchemaStage(w StageWriter) *Service {
	s.stage = w
	return s
}

// FetchSchema reads an index definition from the source and checks it has a key field.
func (s *Service) FetchSchema(ctx context.Context, index string) (domain.IndexSchema, error) {
	schema, err := s.srcIndexes.GetIndex(ctx, index)
	if err != nil {
		return domain.IndexSchema{}, fmt.Errorf("fetch schema %s: %w", index, err)
	}
	if _, err := schema.KeyField(); err != nil {
		return domain.IndexSchema{}, fmt.Errorf("fetch schema %s: %w", index, err)
	}
	return schema, nil
}

// PersistSchema writes the raw definition to the stage store when enabled.
// It reports whether anything was written.
func (s *Service) PersistSchema(ctx context.Context, schema domain.IndexSchema) (bool, error) {
	if s.stage == nil {
		return false, nil
	}
	name := dombatch.SchemaName(schema.Name)
	if err := s.stage.Write(ctx, name, schema.Raw); err != nil {
		return false, fmt.Errorf("persist schema %s: %w", schema.Name, err)
	}
	return true, nil
}

// DeleteIndex removes the target index. A missing index counts as deleted.
func (s *Service) DeleteIndex(ctx context.Context, index string) error {
	err := s.dstIndexes.DeleteIndex(ctx, index)
	if searchsvc.IsNotFound(err) {
		logger.FromContext(ctx).Info("target index absent, nothing to delete", zap.String("index", index))
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete target index %s: %w", index, err)
	}
	return nil
}

// CreateIndex applies a schema to the target.
func (s *Service) CreateIndex(ctx context.Context, schema domain.IndexSchema) error {
	if err := s.dstIndexes.CreateOrUpdateIndex(ctx, schema); err != nil {
		return fmt.Errorf("create target index %s: %w", schema.Name, err)
	}
	return nil
}

// Recreate deletes the target index and creates it from schema. Creation is
// skipped when deletion fails.
func (s *Service) Recreate(ctx context.Context, schema domain.IndexSchema) error {
	if err := s.DeleteIndex(ctx, schema.Name); err != nil {
		return err
	}
	return s.CreateIndex(ctx, schema)
}

// MigrateSynonyms copies the synonym map: fetch source, delete target, create
// target when the source had one. Failures are recorded, never returned.
func (s *Service) MigrateSynonyms(ctx context.Context) domain.SynonymResult {
	log := logger.FromContext(ctx).With(zap.String("synonym_map", s.synonymMap))
	res := domain.SynonymResult{Name: s.synonymMap}

	m, err := s.srcSynonyms.GetSynonymMap(ctx, s.synonymMap)
	switch {
	case err == nil:
		res.Found = true
	case searchsvc.IsNotFound(err):
		log.Info("source synonym map absent")
	default:
		log.Error("fetch source synonym map", zap.Error(err))
		res.Errors = append(res.Errors, fmt.Sprintf("fetch source: %v", err))
	}

	if err := s.dstSynonyms.DeleteSynonymMap(ctx, s.synonymMap); err != nil && !searchsvc.IsNotFound(err) {
		log.Error("delete target synonym map", zap.Error(err))
		res.Errors = append(res.Errors, fmt.Sprintf("delete target: %v", err))
	}

	if !res.Found {
		return res
	}
	if err := s.dstSynonyms.CreateOrUpdateSynonymMap(ctx, m); err != nil {
		log.Error("create target synonym map", zap.Error(err))
		res.Errors = append(res.Errors, fmt.Sprintf("create target: %v", err))
		return res
	}
	res.Created = true
	log.Info("synonym map copied")
	return res
}
