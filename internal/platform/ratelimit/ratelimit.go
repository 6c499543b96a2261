package ratelimit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// Config holds configuration for rate limiting middleware.
type Config struct {
	// RequestLimit is the maximum number of requests allowed in the window.
	RequestLimit int
	// WindowSize is the time window for rate limiting.
	WindowSize time.Duration
	// KeyFunc extracts the rate limit key from the request. Defaults to the client IP.
	KeyFunc func(r *http.Request) (string, error)
}

// Limit returns a sliding-window rate limiter. A non-positive RequestLimit
// disables limiting.
func Limit(cfg Config) func(http.Handler) http.Handler {
	if cfg.RequestLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = httprate.KeyByIP
	}

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowSize,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.WindowSize.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
		}),
	)
}

// UploadsPerMinute limits media ingestion per client IP.
func UploadsPerMinute(n int) func(http.Handler) http.Handler {
	return Limit(Config{RequestLimit: n, WindowSize: time.Minute})
}
