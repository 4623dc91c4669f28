package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/vaccine-orders/internal/config"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestLocalStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/media/", nil)
	require.NoError(t, err)

	url, err := store.Save(context.Background(), "products", "Photo.PNG", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/products/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	rel := strings.TrimPrefix(url, "/media/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, data)
}

func TestLocalStoreRejectsLargeImage(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/media", nil)
	require.NoError(t, err)
	big := io.LimitReader(zeroReader{}, MaxImageBytes+10)
	_, err = store.Save(context.Background(), "batches", "x.jpg", big)
	assert.Error(t, err)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type fakePutter struct {
	input *s3.PutObjectInput
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreURLs(t *testing.T) {
	putter := &fakePutter{}
	store := NewS3StoreWithClient(putter, config.StorageConfig{Bucket: "vax", Region: "eu-west-1"}, nil)
	url, err := store.Save(context.Background(), "products", "a.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://vax.s3.eu-west-1.amazonaws.com/products/"))
	assert.Equal(t, "vax", aws.ToString(putter.input.Bucket))
	assert.Equal(t, "image/png", aws.ToString(putter.input.ContentType))

	cdn := NewS3StoreWithClient(putter, config.StorageConfig{Bucket: "vax", Region: "eu-west-1", CloudFrontURL: "cdn.example.com"}, nil)
	url, err = cdn.Save(context.Background(), "batches", "b.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/batches/"))
}
