package handlers

import (
	"fmt"
	"net/http"
)

// Healthz reports liveness as plain text.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type rootResponse struct {
	Detail   string `json:"detail"`
	TokenURL string `json:"token_url,omitempty"`
}

// Root describes the service and tells front-ends where to submit credentials.
func Root(version, tokenURL string) http.HandlerFunc {
	body := rootResponse{
		Detail:   fmt.Sprintf("DT demo authentication service (version %s)", version),
		TokenURL: tokenURL,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}
