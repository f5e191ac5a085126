package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/CZERTAINLY/verascan/internal/model"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioPublisher uploads files to an S3 compatible bucket.
type MinioPublisher struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioPublisher connects to the endpoint and creates the bucket
// when it does not exist.
func NewMinioPublisher(ctx context.Context, cfg model.S3) (*MinioPublisher, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Endpoint, err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err)
		}
		slog.InfoContext(ctx, "bucket created", "bucket", cfg.Bucket)
	}

	return &MinioPublisher{client: cli, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (p *MinioPublisher) Publish(ctx context.Context, key, localPath string) (string, error) {
	key = path.Join(p.prefix, key)
	_, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}

func contentType(localPath string) string {
	switch filepath.Ext(localPath) {
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
