package blob

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appconfig "github.com/dom/wartracker/internal/config"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes to AWS S3 or any compatible endpoint such as Cloudflare R2.
type S3Store struct {
	client     putObjectAPI
	bucket     string
	keyPrefix  string
	publicBase string
}

// NewS3Store builds a client from cfg. Static credentials are used when set,
// otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg appconfig.BlobConfig) (*S3Store, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load blob config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg), nil
}

func newS3Store(client putObjectAPI, cfg appconfig.BlobConfig) *S3Store {
	return &S3Store{
		client:     client,
		bucket:     cfg.Bucket,
		keyPrefix:  cfg.KeyPrefix,
		publicBase: cfg.PublicBaseURL,
	}
}

func (s *S3Store) Put(ctx context.Context, obj Object) (string, error) {
	key := obj.Key
	if s.keyPrefix != "" {
		key = PublicURL(s.keyPrefix, key)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        obj.Body,
		ContentType: aws.String(obj.ContentType),
	}
	if obj.Size > 0 {
		input.ContentLength = aws.Int64(obj.Size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return PublicURL(s.publicBase, key), nil
}
