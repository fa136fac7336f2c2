package publish

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vk/callgrid/internal/commit"
	"github.com/vk/callgrid/internal/ctxlog"
)

// S3Config configures an S3Publisher.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// KeyPrefix is prepended to every object key.
	KeyPrefix string
	UseSSL    bool
}

// Enabled reports whether enough is configured to publish.
func (c S3Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// objectStore is the part of *minio.Client the publisher uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

var _ commit.Publisher = (*S3Publisher)(nil)

// S3Publisher copies committed outputs into a bucket.
type S3Publisher struct {
	client    objectStore
	bucket    string
	region    string
	keyPrefix string
	initOnce  sync.Once
	initErr   error
}

// NewS3Publisher validates cfg and creates the client. No request is made
// until the first Publish.
func NewS3Publisher(cfg S3Config) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return newS3Publisher(client, bucket, region, cfg.KeyPrefix), nil
}

func newS3Publisher(client objectStore, bucket, region, keyPrefix string) *S3Publisher {
	return &S3Publisher{
		client:    client,
		bucket:    bucket,
		region:    region,
		keyPrefix: strings.Trim(keyPrefix, "/"),
	}
}

func (s *S3Publisher) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// Publish uploads the marker's output and returns its s3:// location.
func (s *S3Publisher) Publish(ctx context.Context, m *commit.Marker) (string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("ensure bucket: %w", err)
	}
	key := s.ObjectKey(m)
	_, err := s.client.FPutObject(ctx, s.bucket, key, m.Path, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
		UserMetadata: map[string]string{
			"sha256": m.SHA256,
			"node":   m.Node,
			"run-id": m.RunID,
		},
	})
	if err != nil {
		return "", err
	}
	loc := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	ctxlog.FromContext(ctx).Debug("Published deliverable.", "path", m.Path, "location", loc)
	return loc, nil
}

// ObjectKey maps a committed output to its key: the path below the
// version/pipeline namespace, under KeyPrefix/version/pipeline. Outputs
// outside that namespace keep only their base name.
func (s *S3Publisher) ObjectKey(m *commit.Marker) string {
	p := filepath.ToSlash(m.Path)
	rel := path.Base(p)
	ns := "/" + m.Version + "/" + m.Pipeline + "/"
	if i := strings.LastIndex(p, ns); i >= 0 {
		rel = p[i+len(ns):]
	}
	return path.Join(s.keyPrefix, m.Version, m.Pipeline, rel)
}
