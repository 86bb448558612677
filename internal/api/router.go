package api

import (
	"net/http"
	"time"

	"github.com/farescout/farescout/internal/analytics"
	"github.com/farescout/farescout/internal/auth/apikey"
	"github.com/farescout/farescout/internal/auth/ratelimit"
	"github.com/farescout/farescout/pkg/health"
	"github.com/farescout/farescout/pkg/metrics"
	pkgmw "github.com/farescout/farescout/pkg/middleware"
)

// NewRouter builds the full API server handler with all routes and
// middleware. A nil validator disables authentication, rate limiting, and
// the admin key routes; a nil stats handler disables the analytics routes.
//
// Route table:
//
//	GET    /api/v1/search                     → ranked flight search
//	POST   /api/v1/flights                    → create flight
//	GET    /api/v1/flights                    → list flights
//	GET    /api/v1/flights/{id}               → get flight
//	PUT    /api/v1/flights/{id}               → update flight
//	DELETE /api/v1/flights/{id}               → deactivate flight
//	POST   /api/v1/flights/{id}/observations  → record price observation
//	GET    /api/v1/flights/{id}/observations  → list price observations
//	GET    /api/v1/stats                      → live analytics snapshot
//	GET    /api/v1/stats/history              → persisted analytics snapshots
//	POST   /api/v1/admin/keys                 → create API key
//	GET    /api/v1/admin/keys                 → list API keys
//	GET    /health/live                       → liveness
//	GET    /health/ready                      → readiness
//
// Middleware chain (outermost first):
//
//	RequestID → Trace → Metrics → CORS → Auth → RateLimit → Timeout → handler
//
// traceSampleRate controls what fraction of requests get a logged span
// tree; 0 disables tracing.
func NewRouter(
	h *Handler,
	stats *analytics.Handler,
	checker *health.Checker,
	validator *apikey.Validator,
	limiter *ratelimit.WindowLimiter,
	m *metrics.Metrics,
	requestTimeout time.Duration,
	traceSampleRate float64,
) http.Handler {
	mux := http.NewServeMux()

	// Health (unauthenticated)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	// Search API
	mux.HandleFunc("GET /api/v1/search", h.Search)

	// Flight API
	mux.HandleFunc("POST /api/v1/flights", h.CreateFlight)
	mux.HandleFunc("GET /api/v1/flights", h.ListFlights)
	mux.HandleFunc("GET /api/v1/flights/{id}", h.GetFlight)
	mux.HandleFunc("PUT /api/v1/flights/{id}", h.UpdateFlight)
	mux.HandleFunc("DELETE /api/v1/flights/{id}", h.DeleteFlight)

	// Observation API
	mux.HandleFunc("POST /api/v1/flights/{id}/observations", h.CreateObservation)
	mux.HandleFunc("GET /api/v1/flights/{id}/observations", h.ListObservations)

	// Analytics API
	if stats != nil {
		mux.HandleFunc("GET /api/v1/stats", stats.Stats)
		mux.HandleFunc("GET /api/v1/stats/history", stats.History)
	}

	// Admin API
	if validator != nil {
		keys := NewKeyHandler(validator, h)
		mux.HandleFunc("POST /api/v1/admin/keys", keys.CreateKey)
		mux.HandleFunc("GET /api/v1/admin/keys", keys.ListKeys)
	}

	// Middleware chain, applied inside-out:
	// request → RequestID → Trace → Metrics → CORS → Auth → RateLimit → Timeout → mux
	var chain http.Handler = mux
	if requestTimeout > 0 {
		chain = pkgmw.Timeout(requestTimeout)(chain)
	}
	if validator != nil {
		chain = RateLimit(limiter, m)(chain)
		chain = Auth(validator)(chain)
	}
	chain = pkgmw.CORS(pkgmw.DefaultCORSConfig())(chain)
	chain = pkgmw.Metrics(m)(chain)
	chain = pkgmw.Trace(traceSampleRate)(chain)
	chain = pkgmw.RequestID()(chain)

	return chain
}
