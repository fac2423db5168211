// Package s3 stages batch files in an S3-compatible bucket via minio-go.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kailas-cloud/idxmigrate/internal/stage"
)

var _ stage.Store = (*Store)(nil)

// Config holds the object store endpoint and credentials. Bucket is the stage container.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// objectAPI is the subset of *minio.Client the store uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	Open(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

type minioAPI struct {
	*minio.Client
}

func (m minioAPI) Open(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return m.GetObject(ctx, bucket, object, minio.GetObjectOptions{}) //nolint:wrapcheck // adapter
}

// Store keeps each object under its name in one bucket.
type Store struct {
	api    objectAPI
	bucket string
	region string
}

// NewStore creates a minio client for cfg. Call EnsureContainer before first use.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Store{api: minioAPI{client}, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureContainer creates the bucket if it does not exist yet.
func (s *Store) EnsureContainer(ctx context.Context) error {
	err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	if err == nil {
		return nil
	}
	exists, existsErr := s.api.BucketExists(ctx, s.bucket)
	if existsErr == nil && exists {
		return nil
	}
	return fmt.Errorf("create bucket %s: %w", s.bucket, err)
}

// Ping checks that the bucket is reachable and exists.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// Write uploads content as a single object, replacing any previous version.
func (s *Store) Write(ctx context.Context, name string, content []byte) error {
	if err := stage.ValidateName(name); err != nil {
		return err //nolint:wrapcheck // already a stage.Error
	}
	_, err := s.api.PutObject(ctx, s.bucket, name, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return &stage.Error{Op: stage.OpWrite, Name: name, Err: err}
	}
	return nil
}

// Read downloads an object or returns stage.ErrNotFound.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	if err := stage.ValidateName(name); err != nil {
		return nil, err //nolint:wrapcheck // already a stage.Error
	}
	obj, err := s.api.Open(ctx, s.bucket, name)
	if err != nil {
		return nil, readError(name, err)
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, readError(name, err)
	}
	return data, nil
}

func readError(name string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return &stage.Error{Op: stage.OpRead, Name: name, Err: fmt.Errorf("%w: %s", stage.ErrNotFound, resp.Message)}
	}
	return &stage.Error{Op: stage.OpRead, Name: name, Err: err}
}
