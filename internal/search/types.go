package search

import (
	"context"

	"github.com/farescout/farescout/internal/flight"
	apperrors "github.com/farescout/farescout/pkg/errors"
)

// CandidateSource fetches the filtered candidate set for one ranking request.
// Implementations must return candidates that already satisfy the complete
// filter contract (active flag, route/airline equality, date window, free
// text, and price bounds applied to the derived aggregates) and must honour
// ctx cancellation.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, filters flight.Filters) ([]flight.Candidate, error)
}

// SortStrategy selects how the scored candidate set is ordered.
type SortStrategy int

const (
	SortRelevance SortStrategy = iota
	SortPriceAsc
	SortPriceDesc
	SortDateAsc
	SortDateDesc
)

// ParseSortStrategy maps the wire name of a strategy to its tag. An empty
// name selects relevance.
func ParseSortStrategy(s string) (SortStrategy, error) {
	switch s {
	case "", "relevance":
		return SortRelevance, nil
	case "price_asc":
		return SortPriceAsc, nil
	case "price_desc":
		return SortPriceDesc, nil
	case "date_asc":
		return SortDateAsc, nil
	case "date_desc":
		return SortDateDesc, nil
	default:
		return SortRelevance, apperrors.InvalidFilter("sort", "unknown sort strategy %q", s)
	}
}

func (s SortStrategy) String() string {
	switch s {
	case SortPriceAsc:
		return "price_asc"
	case SortPriceDesc:
		return "price_desc"
	case SortDateAsc:
		return "date_asc"
	case SortDateDesc:
		return "date_desc"
	default:
		return "relevance"
	}
}

// Mode selects which scoring path produces the relevance signal.
type Mode int

const (
	// ModeAuto picks hybrid when a free-text query is present and composite
	// otherwise.
	ModeAuto Mode = iota
	// ModeHybrid blends BM25 and TF-IDF cosine scores.
	ModeHybrid
	// ModeComposite uses the rule-based price/recency score.
	ModeComposite
)

// ParseMode maps the wire name of a ranking mode to its tag.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "hybrid":
		return ModeHybrid, nil
	case "composite":
		return ModeComposite, nil
	default:
		return ModeAuto, apperrors.InvalidFilter("mode", "unknown ranking mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeHybrid:
		return "hybrid"
	case ModeComposite:
		return "composite"
	default:
		return "auto"
	}
}

// Request carries one ranking invocation. Alpha is optional; nil selects the
// configured default weight.
type Request struct {
	Filters  flight.Filters
	Sort     SortStrategy
	Mode     Mode
	Alpha    *float64
	Page     int
	PageSize int
}

// Pagination describes the returned page within the full result set.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	TotalPages int  `json:"total_pages"`
	TotalItems int  `json:"total_items"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// Response is the result of one ranking request.
type Response struct {
	Items          []flight.ScoredCandidate `json:"items"`
	Pagination     Pagination               `json:"pagination"`
	AppliedFilters map[string]string        `json:"applied_filters"`
	Mode           string                   `json:"mode"`
	Sort           string                   `json:"sort"`
	Truncated      bool                     `json:"truncated"`
}
