package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"courtside/internal/config"
	"courtside/internal/middleware"
	"courtside/internal/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultURLTTL = time.Hour

// MinioProvider serves media from an S3-compatible bucket.
type MinioProvider struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewMinioProvider connects to the bucket described by cfg. The region is
// always set so presigning never needs a bucket-location round trip.
func NewMinioProvider(cfg *config.Config) (*MinioProvider, error) {
	region := cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.S3Endpoint, "https://"), "http://")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ttl := defaultURLTTL
	if cfg.MediaURLTTLMinutes > 0 {
		ttl = time.Duration(cfg.MediaURLTTLMinutes) * time.Minute
	}
	return &MinioProvider{client: client, bucket: cfg.S3Bucket, ttl: ttl}, nil
}

// NewProvider returns a MinioProvider when object storage is configured and Disabled otherwise.
func NewProvider(cfg *config.Config) (Provider, error) {
	if !cfg.MediaEnabled() {
		return Disabled{}, nil
	}
	return NewMinioProvider(cfg)
}

func (p *MinioProvider) presignGet(ctx context.Context, key string, params url.Values) (string, error) {
	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (p *MinioProvider) UploadURL(ctx context.Context, upload *models.Upload) (string, error) {
	u, err := p.client.PresignedPutObject(ctx, p.bucket, originalKey(upload), p.ttl)
	if err != nil {
		return "", fmt.Errorf("presign upload: %w", err)
	}
	return u.String(), nil
}

func (p *MinioProvider) ViewURL(ctx context.Context, upload *models.Upload) (string, error) {
	return p.presignGet(ctx, manifestKey(upload), nil)
}

func (p *MinioProvider) ThumbnailURL(ctx context.Context, upload *models.Upload) (string, error) {
	return p.presignGet(ctx, thumbnailKey(upload), nil)
}

func (p *MinioProvider) DownloadURL(ctx context.Context, upload *models.Upload) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", upload.Filename))
	return p.presignGet(ctx, originalKey(upload), params)
}

// StreamReady reports whether the HLS manifest has been written.
func (p *MinioProvider) StreamReady(ctx context.Context, upload *models.Upload) (bool, error) {
	return p.exists(ctx, manifestKey(upload))
}

// StartConvert checks that the original exists and hands back a job id.
// Conversion runs outside this service and signals completion by writing
// the manifest.
func (p *MinioProvider) StartConvert(ctx context.Context, upload *models.Upload) (string, error) {
	ok, err := p.exists(ctx, originalKey(upload))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", models.NewValidationError("the original file has not been uploaded yet")
	}
	return uuid.NewString(), nil
}

func (p *MinioProvider) DeleteObjects(ctx context.Context, uploadIDs ...uint) error {
	for _, id := range uploadIDs {
		objects := p.client.ListObjects(ctx, p.bucket, minio.ListObjectsOptions{
			Prefix:    uploadPrefix(id),
			Recursive: true,
		})
		for rmErr := range p.client.RemoveObjects(ctx, p.bucket, objects, minio.RemoveObjectsOptions{}) {
			if rmErr.Err != nil {
				return fmt.Errorf("remove %s: %w", rmErr.ObjectName, rmErr.Err)
			}
		}
		middleware.Logger.DebugContext(ctx, "removed upload objects", slog.Uint64("upload_id", uint64(id)))
	}
	return nil
}

func (p *MinioProvider) exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.StatObject(ctx, p.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}
