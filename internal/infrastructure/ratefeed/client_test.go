package ratefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Latest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, "KRW", r.URL.Query().Get("base"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"krw","date":"2026-03-10","rates":{"USD":0.00075,"JPY":"0.11"}}`))
	}))
	defer srv.Close()

	quote, err := NewClient(srv.URL+"/", WithAPIKey("secret")).Latest(context.Background(), "KRW")
	require.NoError(t, err)
	assert.Equal(t, "KRW", quote.Base)
	assert.Equal(t, "0.00075", quote.Rates["USD"].String())
	assert.Equal(t, "0.11", quote.Rates["JPY"].String())
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), quote.AsOf)
	assert.Equal(t, srv.URL, quote.Source)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"base":"KRW","rates":{"EUR":0.00069}}`))
	}))
	defer srv.Close()

	quote, err := NewClient(srv.URL).Latest(context.Background(), "KRW")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "0.00069", quote.Rates["EUR"].String())
}

func TestClient_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown base", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Latest(context.Background(), "XYZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown base")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithMaxElapsed(300*time.Millisecond)).Latest(context.Background(), "KRW")
	assert.ErrorContains(t, err, "503")
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Latest(context.Background(), "KRW")
	assert.ErrorContains(t, err, "decode rate feed")
}
