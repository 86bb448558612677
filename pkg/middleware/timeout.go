package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/farescout/farescout/pkg/logger"
)

// Timeout cuts off handlers that outlive the request budget with a 504.
// The handler keeps running on its cancelled context; once it has written
// anything the response is left alone, since headers are already gone.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			tw := &timeoutWriter{ResponseWriter: w}
			done := make(chan struct{})
			go func() {
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if tw.wrote() {
					return
				}
				slog.Warn("request timed out",
					"method", r.Method, "path", r.URL.Path,
					"timeout", timeout, "request_id", logger.RequestID(r.Context()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusGatewayTimeout)
				w.Write([]byte(`{"error":"request timeout"}`))
			}
		})
	}
}

// timeoutWriter tracks whether the wrapped handler produced output. The
// handler goroutine and the timeout arm touch it concurrently.
type timeoutWriter struct {
	http.ResponseWriter
	mu      sync.Mutex
	written bool
}

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	tw.written = true
	tw.mu.Unlock()
	tw.ResponseWriter.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	tw.written = true
	tw.mu.Unlock()
	return tw.ResponseWriter.Write(b)
}

func (tw *timeoutWriter) wrote() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.written
}
