package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAWSConfig() aws.Config {
	return aws.Config{
		Region: "ap-northeast-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIDTEST", SecretAccessKey: "secret"}, nil
		}),
	}
}

func TestPresignPut_PathStyleEndpoint(t *testing.T) {
	store := NewS3Store(testAWSConfig(), S3Options{Bucket: "videos-bucket", Endpoint: "http://localhost:4566"})

	raw, err := store.PresignPut(context.Background(), "videos/u1/1700000000000_clip.mp4", "video/mp4", 1024)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "localhost:4566", u.Host)
	assert.Equal(t, "/videos-bucket/videos/u1/1700000000000_clip.mp4", u.Path)
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Contains(t, u.Query().Get("X-Amz-SignedHeaders"), "host")
}

func TestDelete_SendsDeleteObject(t *testing.T) {
	var mu sync.Mutex
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := NewS3Store(testAWSConfig(), S3Options{Bucket: "b", Endpoint: srv.URL})
	require.NoError(t, store.Delete(context.Background(), "thumbnails/u1/1_a.png"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/b/thumbnails/u1/1_a.png", path)
}

func TestPublicURL(t *testing.T) {
	cfg := testAWSConfig()

	cdn := NewS3Store(cfg, S3Options{Bucket: "b", CloudFrontDomain: "https://d111.cloudfront.net/"})
	assert.Equal(t, "https://d111.cloudfront.net/videos/k.mp4", cdn.PublicURL("videos/k.mp4"))

	direct := NewS3Store(cfg, S3Options{Bucket: "b"})
	assert.Equal(t, "https://b.s3.ap-northeast-1.amazonaws.com/videos/k.mp4", direct.PublicURL("videos/k.mp4"))

	local := NewS3Store(cfg, S3Options{Bucket: "b", Endpoint: "http://localhost:4566/"})
	assert.Equal(t, "http://localhost:4566/b/videos/k.mp4", local.PublicURL("videos/k.mp4"))
}
