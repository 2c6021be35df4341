package proxy

import (
	"log/slog"
	"net"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/vnmchuo/quill/internal/logger"
)

const (
	// DefaultJSONBodyLimit caps JSON request bodies.
	DefaultJSONBodyLimit = 200 << 10
	// DefaultMaxUploadFiles caps the number of documents in one upload.
	DefaultMaxUploadFiles = 10
	// uploadOverhead covers multipart boundaries and part headers.
	uploadOverhead = 64 << 10
)

// RequestLogger puts base, tagged with the request id, into the request context.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.With(logger.WithLogger(r.Context(), base), "request_id", requestID(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LimitBody caps request bodies at n bytes whatever their content type.
func LimitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

func requestID(r *http.Request) string {
	if id := chimiddleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return uuid.New().String()
}

// clientKey identifies the caller for rate limiting. RemoteAddr is expected to have
// been rewritten by chi's RealIP when behind a proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
