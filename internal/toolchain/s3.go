package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/spachava753/perfcollector/internal/models"
)

// ErrArtifactNotFound is returned by a Fetcher when the object does not exist.
var ErrArtifactNotFound = errors.New("artifact not found")

// Fetcher retrieves toolchain artifacts by key.
type Fetcher interface {
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
}

// S3Fetcher reads artifacts from an S3 bucket.
type S3Fetcher struct {
	client *s3.Client
	bucket string
}

// NewS3Fetcher creates a fetcher for the configured bucket. Without static
// credentials the bucket is read anonymously.
func NewS3Fetcher(ctx context.Context, cfg models.ToolchainConfig) (*S3Fetcher, error) {
	creds := aws.CredentialsProvider(aws.AnonymousCredentials{})
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Fetcher{client: client, bucket: cfg.Bucket}, nil
}

// Fetch downloads an object. The caller must close the returned body.
func (f *S3Fetcher) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("s3://%s/%s: %w", f.bucket, key, ErrArtifactNotFound)
		}
		return nil, fmt.Errorf("getting s3://%s/%s: %w", f.bucket, key, err)
	}
	return out.Body, nil
}
