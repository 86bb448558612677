// Package search implements the hybrid ranking engine: it fetches a filtered
// candidate set from a CandidateSource, scores it with BM25 and TF-IDF cosine
// (fused) or with the rule-based composite scorer, applies the requested sort
// strategy, and paginates the result.
package search

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/farescout/farescout/internal/flight"
	"github.com/farescout/farescout/internal/search/bm25"
	"github.com/farescout/farescout/internal/search/composite"
	"github.com/farescout/farescout/internal/search/corpus"
	"github.com/farescout/farescout/internal/search/fusion"
	"github.com/farescout/farescout/internal/search/vector"
	"github.com/farescout/farescout/pkg/config"
	apperrors "github.com/farescout/farescout/pkg/errors"
	"github.com/farescout/farescout/pkg/logger"
	"github.com/farescout/farescout/pkg/metrics"
	"github.com/farescout/farescout/pkg/resilience"
	"github.com/farescout/farescout/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

// Engine ranks flight candidates for one request at a time. It holds no
// mutable state across requests; everything derived from a candidate set
// lives only for the duration of one Rank call.
type Engine struct {
	source  CandidateSource
	cfg     config.EngineConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewEngine(source CandidateSource, cfg config.EngineConfig, m *metrics.Metrics) *Engine {
	return &Engine{
		source:  source,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("rank-engine"),
		now:     time.Now,
	}
}

// Rank executes one ranking request end to end: validate, fetch, score,
// sort, paginate. Validation failures are reported before any retrieval
// happens; an empty candidate set is a valid zero-result response, not an
// error.
func (e *Engine) Rank(ctx context.Context, req Request) (*Response, error) {
	alpha, page, pageSize, err := e.normalize(req)
	if err != nil {
		e.metrics.SearchesTotal.WithLabelValues(req.Mode.String(), "invalid_filter").Inc()
		return nil, err
	}

	ctx, span := tracing.StartChildSpan(ctx, "rank")
	defer span.End()
	start := time.Now()

	candidates, err := e.fetch(ctx, req.Filters)
	if err != nil {
		e.metrics.SearchesTotal.WithLabelValues(req.Mode.String(), "upstream_error").Inc()
		return nil, err
	}

	e.metrics.CandidatesFetched.Observe(float64(len(candidates)))
	truncated := false
	if e.cfg.MaxCandidates > 0 && len(candidates) > e.cfg.MaxCandidates {
		candidates = candidates[:e.cfg.MaxCandidates]
		truncated = true
		e.metrics.CandidatesTruncated.Inc()
	}

	mode := resolveMode(req.Mode, req.Filters)
	items := e.score(ctx, candidates, req.Filters, mode, alpha)
	applySort(items, req.Sort, mode)

	total := len(items)
	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	pageItems := make([]flight.ScoredCandidate, 0, pageSize)
	if offset := (page - 1) * pageSize; offset < total {
		end := offset + pageSize
		if end > total {
			end = total
		}
		pageItems = append(pageItems, items[offset:end]...)
	}

	span.SetAttr("candidates", total)
	span.SetAttr("mode", mode.String())
	e.metrics.SearchesTotal.WithLabelValues(mode.String(), "ok").Inc()
	e.metrics.SearchLatency.WithLabelValues(mode.String()).Observe(time.Since(start).Seconds())
	e.metrics.SearchResultsCount.Observe(float64(total))
	e.logger.InfoContext(ctx, "ranking completed",
		"mode", mode.String(),
		"sort", req.Sort.String(),
		"candidates", total,
		"truncated", truncated,
		"page", page,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &Response{
		Items: pageItems,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			TotalItems: total,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
		AppliedFilters: req.Filters.Applied(),
		Mode:           mode.String(),
		Sort:           req.Sort.String(),
		Truncated:      truncated,
	}, nil
}

// normalize applies defaults and rejects out-of-range request parameters.
func (e *Engine) normalize(req Request) (alpha float64, page, pageSize int, err error) {
	alpha = e.cfg.DefaultAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
		if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
			return 0, 0, 0, apperrors.InvalidFilter("alpha", "fusion weight must be between 0 and 1, got %v", alpha)
		}
	}
	page = req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return 0, 0, 0, apperrors.InvalidFilter("page", "page must be a positive integer, got %d", req.Page)
	}
	pageSize = req.PageSize
	if pageSize == 0 {
		pageSize = e.cfg.DefaultPageSize
	}
	if pageSize < 1 {
		return 0, 0, 0, apperrors.InvalidFilter("page_size", "page size must be a positive integer, got %d", req.PageSize)
	}
	if e.cfg.MaxPageSize > 0 && pageSize > e.cfg.MaxPageSize {
		pageSize = e.cfg.MaxPageSize
	}
	return alpha, page, pageSize, nil
}

// fetch retrieves the filtered candidate set within the configured timeout.
// Any failure, including cancellation and deadline expiry, is surfaced as an
// upstream fetch failure without retrying; retry policy belongs to the
// caller.
func (e *Engine) fetch(ctx context.Context, filters flight.Filters) ([]flight.Candidate, error) {
	ctx, span := tracing.StartChildSpan(ctx, "fetch-candidates")
	defer span.End()

	var candidates []flight.Candidate
	err := resilience.WithTimeout(ctx, e.cfg.FetchTimeout, "fetch-candidates", func(ctx context.Context) error {
		var fetchErr error
		candidates, fetchErr = e.source.FetchCandidates(ctx, filters)
		return fetchErr
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "candidate fetch failed", "error", err)
		return nil, apperrors.UpstreamFetch(err)
	}
	return candidates, nil
}

// resolveMode turns ModeAuto into a concrete scoring path: hybrid when a
// free-text query is present, composite otherwise.
func resolveMode(mode Mode, filters flight.Filters) Mode {
	if mode != ModeAuto {
		return mode
	}
	if filters.FreeText != "" {
		return ModeHybrid
	}
	return ModeComposite
}

// score computes per-candidate scores under the resolved mode. Hybrid builds
// the shared term statistics first, then runs the BM25 and cosine scorers
// concurrently and fuses their normalized outputs.
func (e *Engine) score(ctx context.Context, candidates []flight.Candidate, filters flight.Filters, mode Mode, alpha float64) []flight.ScoredCandidate {
	_, span := tracing.StartChildSpan(ctx, "score")
	defer span.End()

	scored := make([]flight.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = flight.ScoredCandidate{Candidate: c}
	}
	if len(scored) == 0 {
		return scored
	}

	if mode == ModeComposite {
		for i, s := range composite.ScoreAll(candidates, e.now().UTC()) {
			scored[i].CompositeScore = s
		}
		return scored
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.DocumentText()
	}
	stats := corpus.Build(texts, filters.QueryText())

	var lexical, cosines []float64
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexical = bm25.ScoreAll(stats)
		return nil
	})
	g.Go(func() error {
		cosines = vector.ScoreAll(stats)
		return nil
	})
	_ = g.Wait() // scorers do not fail

	_, _, fused := fusion.Fuse(lexical, cosines, alpha)
	for i := range scored {
		scored[i].LexicalScore = lexical[i]
		scored[i].VectorScore = cosines[i]
		scored[i].FusedScore = fused[i]
	}
	return scored
}
