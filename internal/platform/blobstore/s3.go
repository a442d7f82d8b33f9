package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Config struct {
	Bucket string
	Region string
	// Endpoint targets an S3-compatible service (MinIO, LocalStack) with path-style addressing.
	Endpoint string
	// PublicBaseURL prefixes returned URLs; defaults to the virtual-hosted bucket URL.
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
	MaxFileSize     int64
}

// S3Store writes files to one bucket.
type S3Store struct {
	bucket  string
	baseURL string
	maxSize int64
	client  S3API
	logger  zerolog.Logger
}

// NewS3Client builds an S3 client from the default AWS credential chain, or
// from static keys when both are set.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Store(client S3API, cfg S3Config, logger zerolog.Logger) *S3Store {
	base := cfg.PublicBaseURL
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	maxSize := cfg.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &S3Store{
		bucket:  cfg.Bucket,
		baseURL: strings.TrimRight(base, "/"),
		maxSize: maxSize,
		client:  client,
		logger:  logger.With().Str("component", "s3store").Logger(),
	}
}

func (s *S3Store) Put(ctx context.Context, f File, folder string) (*Object, error) {
	data, obj, err := readLimited(f, s.maxSize)
	if err != nil {
		return nil, err
	}
	obj.StorageID = objectKey(folder, f.Name)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj.StorageID),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(obj.Size),
		Metadata: map[string]string{
			"original-name": f.Name,
			"sha256":        obj.Hash,
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("key", obj.StorageID).Msg("put object failed")
		return nil, fmt.Errorf("put object %s: %w", obj.StorageID, err)
	}

	obj.URL = s.baseURL + "/" + obj.StorageID
	s.logger.Debug().Str("key", obj.StorageID).Int64("size", obj.Size).Msg("object stored")
	return obj, nil
}
