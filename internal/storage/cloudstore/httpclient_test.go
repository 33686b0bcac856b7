package cloudstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaneholloman/mcp-memory-service-sub001/internal/merrors"
)

func TestDoJSONDecodesSuccessResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"blob_id":"abc123"}`))
	}))
	defer srv.Close()

	c := newHTTPClient(srv.URL, "token", 2*time.Second, 2)
	var resp putBlobResponse
	err := c.doJSON(context.Background(), "GET", "/v1/blobs/abc123", nil, &resp)
	require.NoError(t, err)
	assert.Equal(t, "abc123", resp.BlobID)
}

func TestDoJSONRetriesOnServerErrorThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newHTTPClient(srv.URL, "", 2*time.Second, 3)
	err := c.doJSON(context.Background(), "DELETE", "/v1/blobs/x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestDoJSONTreatsPayloadTooLargeAsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	c := newHTTPClient(srv.URL, "", 2*time.Second, 1)
	err := c.doJSON(context.Background(), "PUT", "/v1/memories/x", putBlobRequest{Content: "x"}, nil)
	require.Error(t, err)
	assert.True(t, merrors.OfKind(err, merrors.KindLimit))
	assert.True(t, merrors.IsPermanent(err))
}

func TestDoJSONTreatsOtherClientErrorAsPermanentStorageError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newHTTPClient(srv.URL, "", 2*time.Second, 1)
	err := c.doJSON(context.Background(), "GET", "/v1/memories/missing", nil, nil)
	require.Error(t, err)
	assert.True(t, merrors.OfKind(err, merrors.KindStorage))
	assert.True(t, merrors.IsPermanent(err))
}
