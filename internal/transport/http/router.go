// Package httptransport is the thin HTTP layer. It delegates to the
// credential engine without embedding business logic so transport concerns
// remain isolated.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dErrors "pinguard/pkg/domain-errors"
)

// NewRouter wires all public endpoints behind the shared middleware chain.
func NewRouter(auth *AuthHandler, health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(clientMetadata)

	auth.Register(r)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	if health == nil {
		health = defaultHealth
	}
	r.Get("/healthz", health)

	return r
}

func defaultHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// errorEnvelope is the uniform JSON error shape. Meta carries the
// structured payloads some rejections need, like locked_until or
// attempts_remaining.
type errorEnvelope struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// writeError centralizes domain error translation to HTTP responses.
// Keeping it here ensures consistent JSON error envelopes.
func writeError(w http.ResponseWriter, err error) {
	envelope := errorEnvelope{Error: string(dErrors.CodeInternal)}
	status := http.StatusInternalServerError

	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		status = dErrors.ToHTTPStatus(domainErr.Code)
		envelope.Error = string(domainErr.Code)
		envelope.Message = domainErr.Message
		envelope.Meta = domainErr.Meta
	}
	writeJSON(w, status, envelope)
}
