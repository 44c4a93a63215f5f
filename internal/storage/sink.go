// Package storage writes generated reports to a local path or an S3 object.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"dmastore/internal/common"
	"dmastore/pkg/errors"
	"dmastore/pkg/models"
)

// Sink stores a finished report
type Sink interface {
	Put(ctx context.Context, dest string, data []byte) error
}

// LocalSink writes to the local filesystem
type LocalSink struct{}

// Put writes data to dest, creating parent directories
func (LocalSink) Put(ctx context.Context, dest string, data []byte) error {
	path, err := common.CleanPath(dest)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidLocation, "Invalid report destination").
			WithContext("destination", dest)
	}
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionNormal); err != nil {
		return errors.FileSystemError("Failed to create report directory", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, common.FilePermissionNormal); err != nil {
		return errors.FileSystemError("Failed to write report", path, err)
	}
	return nil
}

// putObjectAPI is the subset of the S3 client used by S3Sink
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads to s3://bucket/key destinations
type S3Sink struct {
	client putObjectAPI
}

// NewS3Sink loads the default AWS configuration for region and profile
func NewS3Sink(ctx context.Context, region, profile string) (*S3Sink, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "Failed to load AWS configuration").
			WithContext("region", region)
	}
	return &S3Sink{client: s3.NewFromConfig(cfg)}, nil
}

var contentTypes = map[string]string{
	".csv":  "text/csv",
	".json": "application/json",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ParseS3URI splits s3://bucket/key
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %s", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("s3 uri needs a bucket and an object key: %s", uri)
	}
	return bucket, key, nil
}

// Put uploads data to dest
func (s *S3Sink) Put(ctx context.Context, dest string, data []byte) error {
	bucket, key, err := ParseS3URI(dest)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidLocation, "Invalid report destination").
			WithContext("destination", dest)
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(key))]; ok {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errors.Wrap(err, errors.ErrCodeUploadFailed, fmt.Sprintf("S3 PutObject %s/%s failed", bucket, key)).
			WithContext("destination", dest)
	}
	return nil
}

// ForDestination returns the sink able to write dest
func ForDestination(ctx context.Context, dest string, cfg models.StorageConfig) (Sink, error) {
	if common.IsRemote(dest) {
		return NewS3Sink(ctx, cfg.S3Region, cfg.AWSProfile)
	}
	return LocalSink{}, nil
}
