package upload

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base clients fetch objects from, e.g. a CDN in front
	// of the bucket. Defaults to the endpoint.
	PublicURL string
}

// MinioUploader stores photos in an S3-compatible bucket.
type MinioUploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

func NewMinioUploader(cfg MinioConfig, logger *zap.Logger) (*MinioUploader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	public := cfg.PublicURL
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = scheme + "://" + cfg.Endpoint
	}
	return &MinioUploader{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(public, "/"),
		logger:    logger,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *MinioUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

func (u *MinioUploader) Upload(ctx context.Context, f File) (string, error) {
	if err := CheckImage(f); err != nil {
		return "", err
	}

	object := "issues/" + uuid.NewString() + strings.ToLower(path.Ext(f.Name))
	size := f.Size
	if size <= 0 {
		size = -1
	}
	_, err := u.client.PutObject(ctx, u.bucket, object, f.Body, size, minio.PutObjectOptions{
		ContentType: f.ContentType,
	})
	if err != nil {
		u.logger.Error("minio upload failed", zap.String("file", f.Name), zap.Error(err))
		return "", &Error{Message: err.Error()}
	}

	url := fmt.Sprintf("%s/%s/%s", u.publicURL, u.bucket, object)
	u.logger.Info("image uploaded", zap.String("file", f.Name), zap.String("url", url))
	return url, nil
}
