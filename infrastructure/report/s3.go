package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ahrav/go-tally/internal/ports"
)

var _ ports.ReportSink = (*S3Sink)(nil)

// S3Config locates the report object in an S3-compatible store (AWS S3 or
// MinIO). Credentials fall back to the default AWS chain when unset.
type S3Config struct {
	Region          string `yaml:"region" validate:"omitempty,min=1"`
	Bucket          string `yaml:"bucket" validate:"required"`
	Key             string `yaml:"key" validate:"required"`
	Endpoint        string `yaml:"endpoint" validate:"omitempty,url"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id" validate:"required_with=SecretAccessKey"`
	SecretAccessKey string `yaml:"secret_access_key" validate:"required_with=AccessKeyID"`
	SessionToken    string `yaml:"session_token"`
}

// S3Sink uploads the report as a single object.
type S3Sink struct {
	client *s3.Client
	bucket string
	key    string
	logger *slog.Logger
}

// NewS3Sink builds an S3 client from cfg and the default AWS configuration
// chain. The region defaults to us-east-1.
func NewS3Sink(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Sink, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("s3 sink configuration validation failed: %w", err)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3SinkWithClient(client, cfg.Bucket, cfg.Key, logger), nil
}

// NewS3SinkWithClient wraps an existing client. A nil logger uses
// slog.Default().
func NewS3SinkWithClient(client *s3.Client, bucket, key string, logger *slog.Logger) *S3Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Sink{client: client, bucket: bucket, key: key, logger: logger}
}

// Destination returns the object URL.
func (s *S3Sink) Destination() string { return "s3://" + s.bucket + "/" + s.key }

// WriteReport encodes rows and puts the object, replacing any previous
// report under the same key.
func (s *S3Sink) WriteReport(ctx context.Context, rows [][]string) error {
	data, err := EncodeBytes(rows)
	if err != nil {
		return ports.NewSinkError(s.Destination(), "encode", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType),
	})
	if err != nil {
		return ports.NewSinkError(s.Destination(), "put", err)
	}

	s.logger.Info("report uploaded", "destination", s.Destination(), "rows", len(rows), "bytes", len(data))
	return nil
}
