package httptransport

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"pinguard/pkg/requestcontext"
)

// fingerprintHeader is where clients send their opaque device identifier.
const fingerprintHeader = "X-Device-Fingerprint"

// clientMetadata stamps the request context with the client IP, user agent,
// device fingerprint, request ID, and arrival time, so services downstream
// never touch *http.Request.
func clientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ctx = requestcontext.WithClientMetadata(ctx, clientIP(r), r.UserAgent())
		if fp := r.Header.Get(fingerprintHeader); fp != "" {
			ctx = requestcontext.WithDeviceFingerprint(ctx, fp)
		}
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP strips the port from RemoteAddr. middleware.RealIP has already
// folded X-Forwarded-For / X-Real-IP into RemoteAddr by this point.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
