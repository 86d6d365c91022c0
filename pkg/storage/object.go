package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
)

const objectTimeout = 15 * time.Second

// ObjectStorage keeps artifacts in an S3-compatible bucket. Names map to
// object keys unchanged.
type ObjectStorage struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewObjectStorage builds a client for cfg. A custom endpoint switches to
// path-style addressing, which MinIO and most S3-compatible stores expect.
func NewObjectStorage(cfg config.S3Config, logger *zap.Logger) (*ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:                     region,
		Credentials:                credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(strings.TrimRight(cfg.Endpoint, "/"))
		opts.UsePathStyle = true
	}

	logger.Info("object storage initialised",
		zap.String("bucket", cfg.Bucket),
		zap.String("endpoint", cfg.Endpoint),
		zap.String("region", region))

	return &ObjectStorage{client: s3.New(opts), bucket: cfg.Bucket, logger: logger}, nil
}

// Save uploads data under name.
func (s *ObjectStorage) Save(name string, data []byte) (string, error) {
	if err := validKey(name); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(context.Background(), objectTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(name),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(name)),
	})
	if err != nil {
		s.logger.Warn("object upload failed", zap.String("key", name), zap.Error(err))
		return "", fmt.Errorf("upload artifact: %w", err)
	}
	s.logger.Debug("object uploaded",
		zap.String("key", name),
		zap.Int("size_bytes", len(data)),
		zap.Duration("duration", time.Since(start)))
	return name, nil
}

// Read downloads name. A missing object yields an error matching os.ErrNotExist.
func (s *ObjectStorage) Read(name string) ([]byte, error) {
	if err := validKey(name); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), objectTimeout)
	defer cancel()

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("read artifact %s: %w", name, os.ErrNotExist)
		}
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact body: %w", err)
	}
	return data, nil
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

func validKey(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".pdf") {
		return "application/pdf"
	}
	return "application/octet-stream"
}
