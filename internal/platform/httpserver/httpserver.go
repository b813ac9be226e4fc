package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. The write timeout leaves headroom for an
// RSA decryption plus two store round-trips on the login path; the
// header cap keeps oversized payloads out of slow-read territory.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
}
