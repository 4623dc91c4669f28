package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/mamadbah2/vaccine-orders/internal/config"
)

// Putter is the subset of the S3 client used for uploads.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads images to a bucket, optionally fronted by CloudFront.
type S3Store struct {
	client           Putter
	bucket           string
	region           string
	cloudFrontDomain string
	logger           *zap.Logger
}

// NewS3Store loads AWS configuration. Static keys are used when both are set, otherwise the
// default credential chain applies.
func NewS3Store(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3StoreWithClient(s3.NewFromConfig(sdkConfig), cfg, logger), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client Putter, cfg config.StorageConfig, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Store{
		client:           client,
		bucket:           cfg.Bucket,
		region:           cfg.Region,
		cloudFrontDomain: cfg.CloudFrontURL,
		logger:           logger,
	}
}

func (s *S3Store) Save(ctx context.Context, folder, filename string, r io.Reader) (string, error) {
	data, contentType, err := readImage(r)
	if err != nil {
		return "", err
	}
	key := ObjectKey(folder, filename)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	s.logger.Debug("image uploaded", zap.String("bucket", s.bucket), zap.String("key", key))

	if s.cloudFrontDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cloudFrontDomain, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

var _ ImageStore = (*S3Store)(nil)
