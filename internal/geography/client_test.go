package geography

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ontario-health/healthmap/internal/shared/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string) *Client {
	return NewClient(
		config.BoundaryConfig{URL: url, Timeout: 2 * time.Second},
		config.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		zerolog.Nop(),
	)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write(encode(ontario()))
	}))
	defer srv.Close()

	data, err := testClient(srv.URL).FetchBoundaries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())

	fc, err := Decode(data)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 3)
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "layer not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchBoundaries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), hits.Load())
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchBoundaries(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), hits.Load())
}
