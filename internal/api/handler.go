// Package api exposes the HTTP surface of the ranking server: the search
// endpoint, flight and observation management, analytics stats, and API key
// administration, plus the middleware chain that fronts them.
package api

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/farescout/farescout/internal/analytics"
	"github.com/farescout/farescout/internal/flight"
	"github.com/farescout/farescout/internal/search"
	"github.com/farescout/farescout/internal/store"
	apperrors "github.com/farescout/farescout/pkg/errors"
	"github.com/farescout/farescout/pkg/logger"
)

type Handler struct {
	store     store.Store
	engine    *search.Engine
	collector *analytics.Collector
	logger    *slog.Logger
}

func New(st store.Store, engine *search.Engine, collector *analytics.Collector) *Handler {
	return &Handler{
		store:     st,
		engine:    engine,
		collector: collector,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// Search ranks the filtered candidate set and returns one page of results.
// Every query parameter is optional; an empty request ranks all active
// flights in composite mode.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	q := r.URL.Query()

	filters, err := flight.ParseFilters(flight.FilterInput{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		Airline:     q.Get("airline"),
		FreeText:    q.Get("q"),
		PriceMin:    q.Get("price_min"),
		PriceMax:    q.Get("price_max"),
		DateStart:   q.Get("date_start"),
		DateEnd:     q.Get("date_end"),
	})
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	sortStrategy, err := search.ParseSortStrategy(q.Get("sort"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	mode, err := search.ParseMode(q.Get("mode"))
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	req := search.Request{
		Filters: filters,
		Sort:    sortStrategy,
		Mode:    mode,
	}
	if s := q.Get("alpha"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			h.writeAppError(w, apperrors.InvalidFilter("alpha", "must be a number, got %q", s))
			return
		}
		req.Alpha = &v
	}
	if req.Page, err = intParam(q.Get("page"), "page"); err != nil {
		h.writeAppError(w, err)
		return
	}
	if req.PageSize, err = intParam(q.Get("page_size"), "page_size"); err != nil {
		h.writeAppError(w, err)
		return
	}

	resp, err := h.engine.Rank(ctx, req)
	if err != nil {
		log.Error("search failed", "error", err, "status_code", apperrors.HTTPStatusCode(err))
		h.writeAppError(w, err)
		return
	}
	roundScores(resp.Items)

	if h.collector != nil {
		route := ""
		if filters.Origin != "" && filters.Destination != "" {
			route = filters.Origin + "-" + filters.Destination
		}
		h.collector.Track(analytics.SearchEvent{
			Type:       analytics.EventSearch,
			Query:      filters.FreeText,
			Route:      route,
			Mode:       resp.Mode,
			Sort:       resp.Sort,
			TotalItems: resp.Pagination.TotalItems,
			Returned:   len(resp.Items),
			Truncated:  resp.Truncated,
			LatencyMs:  time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
			RequestID:  logger.RequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// intParam parses an optional positive integer query parameter. Empty means
// unset; the engine substitutes its defaults for zero values.
func intParam(s, field string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, apperrors.InvalidFilter(field, "must be a positive integer, got %q", s)
	}
	return v, nil
}

// roundScores trims the wire representation of every score to four decimal
// places. Ordering happened upstream on the full-precision values.
func roundScores(items []flight.ScoredCandidate) {
	for i := range items {
		items[i].LexicalScore = round4(items[i].LexicalScore)
		items[i].VectorScore = round4(items[i].VectorScore)
		items[i].FusedScore = round4(items[i].FusedScore)
		items[i].CompositeScore = round4(items[i].CompositeScore)
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps a domain error onto its HTTP status and surfaces the
// offending field when the error names one.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	body := map[string]string{"error": errorMessage(err, status)}
	if field := apperrors.FieldOf(err); field != "" {
		body["field"] = field
	}
	h.writeJSON(w, status, body)
}

// errorMessage keeps 5xx responses generic; internal detail goes to the log,
// not the client.
func errorMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		switch status {
		case http.StatusServiceUnavailable:
			return "candidate fetch failed"
		default:
			return "internal error"
		}
	}
	return err.Error()
}
