package middleware

import (
	"math/rand"
	"net/http"

	"github.com/farescout/farescout/pkg/logger"
	"github.com/farescout/farescout/pkg/tracing"
)

// Trace samples a fraction of requests and records a span tree for each,
// emitted to the log when the request finishes. The request ID doubles as
// the trace ID, so span lines correlate with the request's other log
// entries. A rate of 0 or less disables tracing; 1 traces everything.
//
// Must run inside RequestID so the trace ID is populated.
func Trace(sampleRate float64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if sampleRate <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rand.Float64() >= sampleRate {
				next.ServeHTTP(w, r)
				return
			}

			ctx, span := tracing.StartSpan(r.Context(), r.Method+" "+r.URL.Path, logger.RequestID(r.Context()))
			next.ServeHTTP(w, r.WithContext(ctx))
			span.End()
			span.Log()
		})
	}
}
