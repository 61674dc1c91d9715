// Package artifact stores rendered gate-pass documents in a MinIO/S3 bucket
// and hands out presigned download URLs. Artifacts are addressed
// deterministically by reference and stage, so re-rendering simply replaces
// the previous copy.
package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dispatchworks/gatepass/internal/config"
)

// Store wraps MinIO interactions for rendered documents.
type Store struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Store{
		client: client,
		bucket: cfg.DocumentBucket,
		region: cfg.S3Region,
	}, nil
}

// EnsureBucket makes sure the document bucket exists before use.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// DocumentKey returns the object key for a rendered PDF at the given stage.
func DocumentKey(reference, stage string) string {
	return fmt.Sprintf("gate-passes/%s/%s.pdf", reference, stage)
}

// TextKey returns the object key for the searchable text sidecar.
func TextKey(reference, stage string) string {
	return fmt.Sprintf("gate-passes/%s/%s.txt", reference, stage)
}

// UploadDocument stores a rendered PDF.
func (s *Store) UploadDocument(ctx context.Context, objectKey string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: "application/pdf"}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("upload document: %w", err)
	}
	return nil
}

// UploadText stores the extracted-text sidecar of a rendered document.
func (s *Store) UploadText(ctx context.Context, objectKey string, text string) error {
	data := []byte(text)
	opts := minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("upload text: %w", err)
	}
	return nil
}

// Download fetches an artifact's bytes.
func (s *Store) Download(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return buf, nil
}

// PresignDocumentURL returns a signed GET URL for a rendered document.
func (s *Store) PresignDocumentURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign document: %w", err)
	}
	return u.String(), nil
}
