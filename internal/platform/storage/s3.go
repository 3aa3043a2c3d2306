// Package storage wraps S3-compatible object storage (MinIO in the default
// deployment) for user file uploads.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Config carries the connection settings for the object store.
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// BaseURL is the public prefix files are served from, e.g. behind the
	// reverse proxy. Public URLs are BaseURL/bucket/key.
	BaseURL string
	UseSSL  bool
}

// ObjectStore is an S3-backed file store.
type ObjectStore struct {
	svc     *s3.S3
	bucket  string
	baseURL string
}

// New connects to the configured S3 endpoint. MinIO requires path-style
// addressing, so it is always enabled.
func New(cfg Config) (*ObjectStore, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(region),
		Endpoint:         aws.String(cfg.Endpoint),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		DisableSSL:       aws.Bool(!cfg.UseSSL),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: new session: %w", err)
	}

	return &ObjectStore{
		svc:     s3.New(sess),
		bucket:  cfg.Bucket,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	_, err := s.svc.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket, "NotFound":
			_, err = s.svc.CreateBucketWithContext(ctx, &s3.CreateBucketInput{
				Bucket: aws.String(s.bucket),
			})
			if err != nil {
				return fmt.Errorf("storage: create bucket: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("storage: head bucket: %w", err)
}

// Upload stores an object under the given key.
func (s *ObjectStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        aws.ReadSeekCloser(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("storage: put object %s: %w", key, err)
	}
	return nil
}

// Delete removes an object by key.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	_, err := s.svc.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete object %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for private reads.
func (s *ObjectStore) PresignGet(key string, expiry time.Duration) (string, error) {
	req, _ := s.svc.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	url, err := req.Presign(expiry)
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}
	return url, nil
}

// PublicURL returns the externally served URL for a key.
func (s *ObjectStore) PublicURL(key string) string {
	return s.baseURL + "/" + s.bucket + "/" + key
}

// KeyFromURL resolves a public file URL back to its object key. Returns
// false for URLs outside this store.
func (s *ObjectStore) KeyFromURL(fileURL string) (string, bool) {
	prefix := s.baseURL + "/" + s.bucket + "/"
	if !strings.HasPrefix(fileURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(fileURL, prefix)
	if key == "" {
		return "", false
	}
	return key, true
}
