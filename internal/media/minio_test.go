package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"courtside/internal/config"
	"courtside/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(endpoint string) *config.Config {
	return &config.Config{
		S3Endpoint:         endpoint,
		S3AccessKey:        "access",
		S3SecretKey:        "secret-secret",
		S3Bucket:           "media",
		S3Region:           "us-east-1",
		MediaURLTTLMinutes: 15,
	}
}

func TestNewProvider_DisabledWithoutEndpoint(t *testing.T) {
	p, err := NewProvider(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, Disabled{}, p)

	ready, err := p.StreamReady(context.Background(), &models.Upload{ID: 1})
	require.NoError(t, err)
	assert.False(t, ready)

	_, err = p.StartConvert(context.Background(), &models.Upload{ID: 1})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestMinioProvider_PresignsWithoutNetwork(t *testing.T) {
	p, err := NewMinioProvider(testConfig("storage.invalid:9000"))
	require.NoError(t, err)
	upload := &models.Upload{ID: 42, Filename: "serve.mov"}
	ctx := context.Background()

	tests := []struct {
		name string
		get  func() (string, error)
		path string
	}{
		{"upload", func() (string, error) { return p.UploadURL(ctx, upload) }, "/media/uploads/42/serve.mov"},
		{"view", func() (string, error) { return p.ViewURL(ctx, upload) }, "/media/uploads/42/hls/index.m3u8"},
		{"thumbnail", func() (string, error) { return p.ThumbnailURL(ctx, upload) }, "/media/uploads/42/thumbnail.0000000.jpg"},
		{"download", func() (string, error) { return p.DownloadURL(ctx, upload) }, "/media/uploads/42/serve.mov"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.get()
			require.NoError(t, err)
			u, err := url.Parse(raw)
			require.NoError(t, err)
			assert.Equal(t, "storage.invalid:9000", u.Host)
			assert.Equal(t, tt.path, u.Path)
			assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
		})
	}
}

func TestMinioProvider_DownloadSetsDisposition(t *testing.T) {
	p, err := NewMinioProvider(testConfig("storage.invalid:9000"))
	require.NoError(t, err)

	raw, err := p.DownloadURL(context.Background(), &models.Upload{ID: 1, Filename: "a.mp4"})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, `attachment; filename="a.mp4"`, u.Query().Get("response-content-disposition"))
}

// fakeS3 answers HEAD requests for the keys in present and 404s the rest.
func fakeS3(t *testing.T, present ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/media/")
		for _, p := range present {
			if key == p {
				w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
				w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
				w.Header().Set("Content-Length", "0")
				w.Header().Set("Content-Type", "application/octet-stream")
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMinioProvider_StreamReady(t *testing.T) {
	srv := fakeS3(t, "uploads/1/hls/index.m3u8")
	p, err := NewMinioProvider(testConfig(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()

	ready, err := p.StreamReady(ctx, &models.Upload{ID: 1})
	require.NoError(t, err)
	assert.True(t, ready)

	ready, err = p.StreamReady(ctx, &models.Upload{ID: 2})
	require.NoError(t, err)
	assert.False(t, ready)
}

func TestMinioProvider_StartConvertRequiresOriginal(t *testing.T) {
	srv := fakeS3(t, "uploads/1/a.mp4")
	p, err := NewMinioProvider(testConfig(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()

	jobID, err := p.StartConvert(ctx, &models.Upload{ID: 1, Filename: "a.mp4"})
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)

	_, err = p.StartConvert(ctx, &models.Upload{ID: 2, Filename: "b.mp4"})
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.CodeValidation, appErr.Code)
}
