package facts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPProber(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"UP"}`))
	})
	mux.HandleFunc("/info", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"missing"}`))
	})
	mux.HandleFunc("/swagger-ui.html", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/swagger-ui/index.html", http.StatusFound)
	})
	mux.HandleFunc("/v3/api-docs", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"paths":{"/subject-access-request":{"get":{}}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got := NewHTTPProber().Probe(context.Background(), srv.URL)

	assert.Equal(t, ProbeResult{HealthPath: "/health", Swagger: true, SAR: true}, got)
}

func TestHTTPProberSignIn(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	// The base URL only needs to contain "sign-in" to switch probe paths.
	got := NewHTTPProber().Probe(context.Background(), srv.URL+"/sign-in")

	assert.Equal(t, "/auth/health", got.HealthPath)
	assert.Equal(t, "/auth/info", got.InfoPath)
	assert.False(t, got.Swagger)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "/sign-in/auth/health")
}

func TestHTTPProberUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Equal(t, ProbeResult{}, NewHTTPProber().Probe(context.Background(), url))
}
