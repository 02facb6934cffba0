package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var _ Backend = (*S3)(nil)

// S3Config holds the settings for an S3-compatible backend (AWS or MinIO).
type S3Config struct {
	Bucket       string
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
}

// S3 stores promoted objects in an S3-compatible bucket. Chunks are written
// at arbitrary offsets, which object storage cannot do, so in-flight uploads
// are staged on the local filesystem and shipped to the bucket on Promote.
type S3 struct {
	client  *s3.Client
	bucket  string
	staging *Local
}

func NewS3(ctx context.Context, cfg S3Config, stagingBase string) (*S3, error) {
	awscfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)))
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awscfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	staging, err := NewLocal(stagingBase)
	if err != nil {
		return nil, err
	}
	return &S3{client: client, bucket: cfg.Bucket, staging: staging}, nil
}

func (s *S3) CreateTemp(ctx context.Context, uploadID string, size int64) error {
	return s.staging.CreateTemp(ctx, uploadID, size)
}

func (s *S3) WriteChunk(ctx context.Context, uploadID string, offset int64, data []byte) error {
	return s.staging.WriteChunk(ctx, uploadID, offset, data)
}

func (s *S3) ReadTemp(ctx context.Context, uploadID string) (io.ReadCloser, error) {
	return s.staging.ReadTemp(ctx, uploadID)
}

func (s *S3) Promote(ctx context.Context, uploadID, shortID string) (string, error) {
	body, err := s.staging.ReadTemp(ctx, uploadID)
	if err != nil {
		return "", err
	}
	defer body.Close()

	location := path.Join("fcs", shortID[:2], shortID+".fcs")
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
		Body:   body,
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", location, err)
	}
	// The staged copy is only needed until the object is durable.
	_ = s.staging.DiscardTemp(ctx, uploadID)
	return location, nil
}

func (s *S3) DiscardTemp(ctx context.Context, uploadID string) error {
	return s.staging.DiscardTemp(ctx, uploadID)
}

func (s *S3) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return out.Body, nil
}

func (s *S3) Delete(ctx context.Context, location string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(location),
	})
	return err
}
