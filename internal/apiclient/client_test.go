package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanluon/gitgafit-web-sub000/errors"
)

func TestGetJSONSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "tok-123" })
	var out map[string]string
	require.NoError(t, c.GetJSON(context.Background(), "/ping", &out))

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "yes", out["ok"])
}

func TestEmptyTokenOmitsHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	c := New(srv.URL, func() string { return "" })
	require.NoError(t, c.GetJSON(context.Background(), "/ping", nil))
	assert.Empty(t, gotAuth)
}

func TestPostJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		json.NewEncoder(w).Encode(map[string]string{"echo": body["value"]})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	var out map[string]string
	require.NoError(t, c.PostJSON(context.Background(), "/echo", map[string]string{"value": "hi"}, &out))
	assert.Equal(t, "hi", out["echo"])
}

func TestUnauthorizedMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	err := c.GetJSON(context.Background(), "/private", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestServerErrorIncludesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	err := c.GetJSON(context.Background(), "/boom", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "500")
	assert.False(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestRateLimitThrottlesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil).WithRateLimit(20)

	start := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(t, c.GetJSON(context.Background(), "/ping", nil))
	}
	// 20 rps with burst 1 forces ~50ms between the remaining 3 requests.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestRateLimitRespectsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil).WithRateLimit(0.01)
	require.NoError(t, c.GetJSON(context.Background(), "/ping", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.GetJSON(ctx, "/ping", nil))
}

func TestRateLimitCanBeReconfiguredLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, nil).WithRateLimit(0.01)
	require.NoError(t, c.GetJSON(context.Background(), "/ping", nil))

	// Lifting the limit mid-session must take effect immediately, the way
	// a config reload applies it.
	c.WithRateLimit(0)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, c.GetJSON(context.Background(), "/ping", nil))
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}
