// Package assets stores uploaded files (post images, attachments) in an
// S3-compatible object store and hands out presigned download URLs.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"dec/api/internal/util"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Service struct {
	client *minio.Client
	bucket string
}

// Upload describes a stored object.
type Upload struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func NewService(cfg Config) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Service{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Put stores an object under a random key that keeps the original
// extension, and returns the stored metadata.
func (s *Service) Put(ctx context.Context, filename, contentType string, size int64, reader io.Reader) (Upload, error) {
	key := objectKey(filename)
	info, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Upload{}, fmt.Errorf("store object: %w", err)
	}
	return Upload{
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}, nil
}

// PresignedGet returns a time-limited download URL for an object.
func (s *Service) PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = time.Hour
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return presigned.String(), nil
}

// Remove deletes an object.
func (s *Service) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func objectKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	// Extensions are advisory only; content type travels separately.
	if len(ext) > 10 {
		ext = ""
	}
	return time.Now().UTC().Format("2006/01") + "/" + util.NewID("") + ext
}
