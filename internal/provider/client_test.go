package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heirclark17/resume-ai-backend/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, serverURL string, cfg gateway.DependencyConfig) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(map[string]gateway.DependencyConfig{"openai": cfg}, logger)
	return New("openai", serverURL, "sk-test", gw, logger)
}

func TestPostJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"answer":"done"}`))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, gateway.DependencyConfig{})

	var out struct {
		Answer string `json:"answer"`
	}
	err := client.PostJSON(context.Background(), "/chat/completions", map[string]string{"model": "gpt-4o"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "done", out.Answer)
}

func TestPostJSON_TerminalStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, gateway.DependencyConfig{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
	})

	err := client.PostJSON(context.Background(), "/chat/completions", map[string]string{}, nil)

	var httpErr *gateway.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, httpErr.Message, "model not found")
	assert.Equal(t, int32(1), calls.Load())
}

func TestPostJSON_RetriesServerErrorThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"answer":"recovered"}`))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, gateway.DependencyConfig{
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	})

	var out struct {
		Answer string `json:"answer"`
	}
	err := client.PostJSON(context.Background(), "/v1", map[string]string{}, &out)
	require.NoError(t, err)
	assert.Equal(t, "recovered", out.Answer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPostJSON_RateLimitCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := testClient(t, srv.URL, gateway.DependencyConfig{
		MaxRetries: 0,
	})

	err := client.PostJSON(context.Background(), "/v1", map[string]string{}, nil)

	var httpErr *gateway.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.Equal(t, 7*time.Second, httpErr.RetryAfter)
}

func TestPostJSON_UnreachableHostFails(t *testing.T) {
	client := testClient(t, "http://127.0.0.1:1", gateway.DependencyConfig{
		MaxRetries:  0,
		CallTimeout: time.Second,
	})

	err := client.PostJSON(context.Background(), "/v1", map[string]string{}, nil)
	assert.Error(t, err)

	var httpErr *gateway.HTTPError
	assert.False(t, errors.As(err, &httpErr))
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{
			name:  "empty",
			value: "",
			want:  0,
		},
		{
			name:  "seconds",
			value: "30",
			want:  30 * time.Second,
		},
		{
			name:  "negative seconds",
			value: "-5",
			want:  0,
		},
		{
			name:  "garbage",
			value: "soon",
			want:  0,
		},
		{
			name:  "http date in the past",
			value: "Mon, 02 Jan 2006 15:04:05 GMT",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value))
		})
	}

	t.Run("http date in the future", func(t *testing.T) {
		future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
		got := parseRetryAfter(future)
		assert.Greater(t, got, 50*time.Second)
		assert.LessOrEqual(t, got, time.Minute)
	})
}
