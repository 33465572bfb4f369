package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("msch-body"))
	}))
	defer server.Close()

	client := NewClient(Options{UserAgent: "test-agent"})
	body, err := client.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "msch-body", string(body))
}

func TestFetchStatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		rateLimited bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"not found", http.StatusNotFound, false},
		{"server error", http.StatusBadGateway, false},
		{"redirect without location", http.StatusMultipleChoices, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := NewClient(DefaultOptions()).Fetch(context.Background(), server.URL)
			require.Error(t, err)

			var serr *StatusError
			require.True(t, errors.As(err, &serr), "expected StatusError, got %T", err)
			assert.Equal(t, tt.status, serr.StatusCode)
			assert.Equal(t, tt.rateLimited, errors.Is(err, ErrRateLimited))
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(DefaultOptions()).Fetch(context.Background(), url)

	var terr *TransportError
	require.True(t, errors.As(err, &terr), "expected TransportError, got %T", err)
	assert.Equal(t, url, terr.URL)
	assert.False(t, errors.Is(err, ErrRateLimited))
}

func TestFetchInvalidURL(t *testing.T) {
	_, err := NewClient(DefaultOptions()).Fetch(context.Background(), "://bad")

	var terr *TransportError
	assert.True(t, errors.As(err, &terr))
}
