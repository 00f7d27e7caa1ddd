// Package backup keeps snapshots of the written field configuration in an
// S3-compatible bucket.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Uploader stores one snapshot and returns its key.
type Uploader interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// Config selects the bucket. An empty Bucket disables backups.
type Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

func (c Config) Enabled() bool {
	return c.Bucket != ""
}

var loadAWSConfig = config.LoadDefaultConfig

type S3Uploader struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// NewS3Uploader builds a client for cfg. Static credentials are used when
// given, the default AWS chain otherwise. A base endpoint (MinIO and the
// like) switches to path-style addressing.
func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := loadAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

// SnapshotKey returns fieldconfig/<yyyy>/<mm>/<dd>/<uuid>.json for t.
func SnapshotKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("fieldconfig/%04d/%02d/%02d/%s.json", t.Year(), t.Month(), t.Day(), uuid.New())
}

func (u *S3Uploader) Upload(ctx context.Context, data []byte) (string, error) {
	key := SnapshotKey(u.now())

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	return key, nil
}
