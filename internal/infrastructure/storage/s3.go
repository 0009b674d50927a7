package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

const defaultPresignExpiry = 15 * time.Minute

// LoadAWSConfig loads credentials from the default chain (env, shared config,
// instance role) for region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return cfg, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}

// S3Options selects the bucket and how objects are addressed publicly.
// Endpoint overrides the S3 endpoint (LocalStack/MinIO) and switches to
// path-style addressing. CloudFrontDomain, when set, fronts public URLs.
type S3Options struct {
	Bucket           string
	Endpoint         string
	CloudFrontDomain string
	PresignExpiry    time.Duration
}

// S3Store issues presigned uploads into one bucket and deletes objects from it.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	region  string
	opts    S3Options
}

func NewS3Store(cfg aws.Config, opts S3Options) *S3Store {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = defaultPresignExpiry
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	if opts.Endpoint != "" {
		log.Info().Str("endpoint", opts.Endpoint).Str("bucket", opts.Bucket).Msg("s3: custom endpoint configured")
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		region:  cfg.Region,
		opts:    opts,
	}
}

// PresignPut returns a URL the browser can PUT the object to directly. When
// size > 0 the upload must match it exactly.
func (s *S3Store) PresignPut(ctx context.Context, key, contentType string, size int64) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	req, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(s.opts.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign put object: %w", err)
	}
	return req.URL, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

// PublicURL is where a stored object is served from.
func (s *S3Store) PublicURL(key string) string {
	if d := s.opts.CloudFrontDomain; d != "" {
		d = strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(d, "https://"), "http://"), "/")
		return fmt.Sprintf("https://%s/%s", d, key)
	}
	if s.opts.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.opts.Endpoint, "/"), s.opts.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.region, key)
}
