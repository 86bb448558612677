package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/farescout/farescout/pkg/kafka"
)

// AggregatedStats is the in-memory analytics snapshot served by the stats
// endpoint and persisted by the snapshot store.
type AggregatedStats struct {
	TotalSearches        int64        `json:"total_searches"`
	HybridSearches       int64        `json:"hybrid_searches"`
	CompositeSearches    int64        `json:"composite_searches"`
	ZeroResultCount      int64        `json:"zero_result_count"`
	TruncatedCount       int64        `json:"truncated_count"`
	AvgLatencyMs         float64      `json:"avg_latency_ms"`
	P50LatencyMs         int64        `json:"p50_latency_ms"`
	P95LatencyMs         int64        `json:"p95_latency_ms"`
	P99LatencyMs         int64        `json:"p99_latency_ms"`
	TopQueries           []QueryCount `json:"top_queries"`
	TopRoutes            []QueryCount `json:"top_routes"`
	ZeroResultQueries    []QueryCount `json:"zero_result_queries"`
	SearchesPerMinute    float64      `json:"searches_per_minute"`
	ObservationsRecorded int64        `json:"observations_recorded"`
	AvgObservedFare      float64      `json:"avg_observed_fare"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator accumulates search and observation events. Local events are
// recorded directly via Record; events produced by other processes arrive
// through a Kafka consumer built around HandleEvent.
type Aggregator struct {
	mu                sync.RWMutex
	totalSearches     atomic.Int64
	hybridSearches    atomic.Int64
	compositeSearches atomic.Int64
	zeroResults       atomic.Int64
	truncated         atomic.Int64
	latencies         []int64
	queryCounts       map[string]int64
	routeCounts       map[string]int64
	zeroResultQueries map[string]int64
	observations      int64
	fareSum           float64
	startTime         time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		routeCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent decodes consumed messages and records them.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		env, err := kafka.DecodeJSON[eventEnvelope](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		switch env.Type {
		case EventSearch:
			event, err := kafka.DecodeJSON[SearchEvent](value)
			if err != nil {
				return fmt.Errorf("decoding search event: %w", err)
			}
			agg.Record(event)
		case EventObservation:
			event, err := kafka.DecodeJSON[ObservationEvent](value)
			if err != nil {
				return fmt.Errorf("decoding observation event: %w", err)
			}
			agg.Record(event)
		default:
			agg.logger.Warn("unknown analytics event type", "type", env.Type)
		}
		return nil
	}
}

// Record accumulates one event. Unknown event types are ignored.
func (a *Aggregator) Record(event interface{}) {
	switch e := event.(type) {
	case SearchEvent:
		a.recordSearchEvent(e)
	case ObservationEvent:
		a.recordObservationEvent(e)
	}
}

func (a *Aggregator) recordSearchEvent(event SearchEvent) {
	a.totalSearches.Add(1)
	switch event.Mode {
	case "hybrid":
		a.hybridSearches.Add(1)
	case "composite":
		a.compositeSearches.Add(1)
	}
	if event.TotalItems == 0 {
		a.zeroResults.Add(1)
	}
	if event.Truncated {
		a.truncated.Add(1)
	}

	a.mu.Lock()
	a.latencies = append(a.latencies, event.LatencyMs)
	if event.Query != "" {
		a.queryCounts[event.Query]++
		if event.TotalItems == 0 {
			a.zeroResultQueries[event.Query]++
		}
	}
	if event.Route != "" {
		a.routeCounts[event.Route]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordObservationEvent(event ObservationEvent) {
	a.mu.Lock()
	a.observations++
	a.fareSum += event.Amount
	if event.Route != "" {
		a.routeCounts[event.Route]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSearches:        a.totalSearches.Load(),
		HybridSearches:       a.hybridSearches.Load(),
		CompositeSearches:    a.compositeSearches.Load(),
		ZeroResultCount:      a.zeroResults.Load(),
		TruncatedCount:       a.truncated.Load(),
		ObservationsRecorded: a.observations,
	}
	if a.observations > 0 {
		stats.AvgObservedFare = a.fareSum / float64(a.observations)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.TopRoutes = topN(a.routeCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.SearchesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
