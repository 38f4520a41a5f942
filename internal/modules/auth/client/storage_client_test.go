package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-gateway/internal/pkg/config"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/xerrors"
)

func newTestStorageClient(t *testing.T, handler http.Handler) *StorageClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	cfg := &config.Config{
		StorageBaseURL:   ts.URL,
		StorageBucket:    "avatars",
		StoragePublicURL: "https://cdn.example.com/",
		StorageTimeout:   2 * time.Second,
	}
	return NewStorageClient(cfg, log.GetLogger())
}

func TestUploadSuccess(t *testing.T) {
	var gotName, gotContentType string
	var gotBody []byte
	c := newTestStorageClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/b/avatars/o", r.URL.Path)
		gotName = r.URL.Query().Get("name")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	publicURL, err := c.Upload(context.Background(), "profile_photos/abc.jpg", []byte("jpeg-bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/profile_photos/abc.jpg", publicURL)
	assert.Equal(t, "profile_photos/abc.jpg", gotName)
	assert.Equal(t, "image/jpeg", gotContentType)
	assert.Equal(t, []byte("jpeg-bytes"), gotBody)
}

func TestUploadDefaultContentType(t *testing.T) {
	var gotContentType string
	c := newTestStorageClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))

	_, err := c.Upload(context.Background(), "profile_photos/abc.png", []byte("png-bytes"), "")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", gotContentType)
}

func TestUploadServerError(t *testing.T) {
	c := newTestStorageClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.Upload(context.Background(), "profile_photos/abc.jpg", []byte("jpeg-bytes"), "image/jpeg")
	require.Error(t, err)
	appErr := xerrors.AsAppError(err)
	assert.Equal(t, xerrors.CodeStorageError, appErr.Code)
	assert.Equal(t, "Storage service unavailable", appErr.Message)
}

func TestUploadTimeout(t *testing.T) {
	c := newTestStorageClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	c.timeout = 50 * time.Millisecond

	_, err := c.Upload(context.Background(), "profile_photos/abc.jpg", []byte("jpeg-bytes"), "image/jpeg")
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeStorageError, xerrors.AsAppError(err).Code)
}
