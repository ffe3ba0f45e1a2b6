package docintel

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

func TestAnalyzeLayout(t *testing.T) {
	var polls atomic.Int32

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/pdf", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		w.Header().Set("Operation-Location", srv.URL+"/op/abc123")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /op/abc123", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"status": "running"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status": "succeeded", "analyzeResult": {"pages": [{"pageNumber": 1}]}}`))
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", WithPolling(time.Millisecond, time.Second))

	result, err := client.AnalyzeLayout(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))

	pages, ok := result["pages"].([]any)
	require.True(t, ok)
	assert.Len(t, pages, 1)
}

func TestAnalyzeLayoutFailed(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", srv.URL+"/op/bad")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /op/bad", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "failed", "error": {"code": "InvalidContent", "message": "not a PDF"}}`))
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "k", WithPolling(time.Millisecond, time.Second))

	_, err := client.AnalyzeLayout(context.Background(), []byte("junk"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "InvalidContent")
}

func TestAnalyzeLayoutRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "wrong")

	_, err := client.AnalyzeLayout(context.Background(), []byte("%PDF"))
	assert.ErrorContains(t, err, "401")
}

func TestAnalyzeLayoutPollTimeout(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /documentintelligence/documentModels/prebuilt-layout:analyze", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Operation-Location", srv.URL+"/op/slow")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /op/slow", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "running"}`))
	})

	srv = httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, "k", WithPolling(time.Millisecond, 10*time.Millisecond))

	_, err := client.AnalyzeLayout(context.Background(), []byte("%PDF"))
	assert.ErrorContains(t, err, "did not complete")
}
