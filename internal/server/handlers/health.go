// Package handlers provides the HTTP handlers of the health server.
package handlers

import (
	"net/http"
)

// HandleHealth handles GET /health. The body is the plain text "UP" expected
// by the Kubernetes liveness probe.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("UP"))
}
