package publish

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/callgrid/internal/commit"
)

type fakeStore struct {
	exists  bool
	made    int
	puts    map[string]string
	meta    map[string]map[string]string
	failPut error
}

func (f *fakeStore) BucketExists(context.Context, string) (bool, error) { return f.exists, nil }

func (f *fakeStore) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made++
	f.exists = true
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.failPut != nil {
		return minio.UploadInfo{}, f.failPut
	}
	if f.puts == nil {
		f.puts = map[string]string{}
		f.meta = map[string]map[string]string{}
	}
	f.puts[bucket+"/"+object] = filePath
	f.meta[object] = opts.UserMetadata
	return minio.UploadInfo{Bucket: bucket, Key: object}, nil
}

func marker(path string) *commit.Marker {
	return &commit.Marker{Path: path, Node: "stage.get_snps", RunID: "r1", Pipeline: "callset", Version: "0.3", SHA256: "abc"}
}

func TestObjectKey(t *testing.T) {
	p := newS3Publisher(&fakeStore{}, "calls", "us-east-1", "/archive/")
	assert.Equal(t, "archive/0.3/callset/run1/run1_SNPs.vcf.gz",
		p.ObjectKey(marker("/data/0.3/callset/run1/run1_SNPs.vcf.gz")))
	assert.Equal(t, "archive/0.3/callset/loose.vcf.gz",
		p.ObjectKey(marker("/elsewhere/loose.vcf.gz")), "paths outside the namespace keep their base name")

	bare := newS3Publisher(&fakeStore{}, "calls", "us-east-1", "")
	assert.Equal(t, "0.3/callset/run1/x.vcf", bare.ObjectKey(marker("/d/0.3/callset/run1/x.vcf")))
}

func TestPublish(t *testing.T) {
	store := &fakeStore{}
	p := newS3Publisher(store, "calls", "us-east-1", "")

	loc, err := p.Publish(context.Background(), marker("/data/0.3/callset/run1/a.vcf.gz"))
	require.NoError(t, err)
	assert.Equal(t, "s3://calls/0.3/callset/run1/a.vcf.gz", loc)
	assert.Equal(t, "/data/0.3/callset/run1/a.vcf.gz", store.puts["calls/0.3/callset/run1/a.vcf.gz"])
	assert.Equal(t, "abc", store.meta["0.3/callset/run1/a.vcf.gz"]["sha256"])

	_, err = p.Publish(context.Background(), marker("/data/0.3/callset/run1/b.vcf.gz"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.made, "the bucket is created once")
}

func TestPublish_Failure(t *testing.T) {
	boom := errors.New("connection refused")
	p := newS3Publisher(&fakeStore{exists: true, failPut: boom}, "calls", "", "")
	_, err := p.Publish(context.Background(), marker("/data/0.3/callset/run1/a.vcf.gz"))
	assert.ErrorIs(t, err, boom)
}

func TestNewS3Publisher_Validation(t *testing.T) {
	_, err := NewS3Publisher(S3Config{Bucket: "b", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "endpoint")
	_, err = NewS3Publisher(S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "access key")

	p, err := NewS3Publisher(S3Config{Endpoint: "localhost:9000", Bucket: "b", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", p.region)
	assert.True(t, S3Config{Endpoint: "e", Bucket: "b"}.Enabled())
	assert.False(t, S3Config{Endpoint: "e"}.Enabled())
}
