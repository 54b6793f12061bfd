// Package storage archives finished pull request reviews to S3.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"codesherpa/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const keyPrefix = "reviews"

// Uploader is the part of the S3 upload manager the archiver uses
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// ReviewArchiver writes review documents as JSON objects in a bucket
type ReviewArchiver struct {
	bucket   string
	uploader Uploader
	now      func() time.Time
	log      *zap.Logger
}

// NewReviewArchiver creates an archiver over an existing uploader
func NewReviewArchiver(bucket string, uploader Uploader) *ReviewArchiver {
	return &ReviewArchiver{
		bucket:   bucket,
		uploader: uploader,
		now:      time.Now,
		log:      logging.Named("archive"),
	}
}

// NewS3ReviewArchiver loads AWS credentials from the default chain and
// builds an archiver backed by the S3 upload manager
func NewS3ReviewArchiver(ctx context.Context, bucket, region string) (*ReviewArchiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	uploader := manager.NewUploader(s3.NewFromConfig(cfg))
	return NewReviewArchiver(bucket, uploader), nil
}

// Key returns the object key for a review taken at t
func Key(repoFullName string, number int, t time.Time) string {
	return fmt.Sprintf("%s/%s/%d/%s.json", keyPrefix, strings.Trim(repoFullName, "/"), number, t.UTC().Format("20060102T150405Z"))
}

// Archive uploads document and returns its s3:// location
func (a *ReviewArchiver) Archive(ctx context.Context, repoFullName string, number int, document interface{}) (string, error) {
	body, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode review: %w", err)
	}

	key := Key(repoFullName, number, a.now())
	_, err = a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload review to %s: %w", a.bucket, err)
	}

	location := "s3://" + a.bucket + "/" + key
	a.log.Info("review archived", zap.String("location", location), zap.Int("bytes", len(body)))
	return location, nil
}

// NopArchiver discards reviews. It is used when no bucket is configured.
type NopArchiver struct{}

// Archive does nothing
func (NopArchiver) Archive(ctx context.Context, repoFullName string, number int, document interface{}) (string, error) {
	return "", nil
}
