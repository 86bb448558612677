// Package sampler runs the periodic price-sampling job: on every tick it
// walks the active flights and appends one synthetic observation per flight,
// jittered around the latest observed fare. A Redis SetNX register keeps
// replicas from double-sampling the same tick, and observation events are
// batch-published for the analytics consumer.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/farescout/farescout/internal/analytics"
	"github.com/farescout/farescout/internal/analytics/collector"
	"github.com/farescout/farescout/internal/flight"
	"github.com/farescout/farescout/internal/store"
	"github.com/farescout/farescout/pkg/config"
	"github.com/farescout/farescout/pkg/metrics"
	"github.com/farescout/farescout/pkg/redis"
	"github.com/farescout/farescout/pkg/resilience"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// minFare is the floor a jittered walk can never cross.
const minFare = 25.0

// errDuplicateTick marks a flight whose current tick was already sampled by
// another replica.
var errDuplicateTick = errors.New("tick already sampled")

// Sampler appends synthetic price observations for every active flight on a
// fixed cadence. A nil dedupe client disables cross-replica idempotency; a
// nil batch collector disables event publishing.
type Sampler struct {
	store   store.Store
	dedupe  *redis.Client
	batch   *collector.BatchCollector
	cfg     config.SamplerConfig
	metrics *metrics.Metrics
	pool    *ants.Pool
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Sampler with a worker pool of cfg.Workers goroutines,
// filling in defaults for zero config values.
func New(st store.Store, dedupe *redis.Client, batch *collector.BatchCollector, cfg config.SamplerConfig, m *metrics.Metrics) (*Sampler, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.PriceJitter <= 0 {
		cfg.PriceJitter = 0.15
	}
	if cfg.Source == "" {
		cfg.Source = "sampler"
	}
	if cfg.DedupeTTL <= 0 {
		cfg.DedupeTTL = cfg.Interval - time.Minute
		if cfg.DedupeTTL <= 0 {
			cfg.DedupeTTL = cfg.Interval
		}
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("creating sampler pool: %w", err)
	}

	s := &Sampler{
		store:   st,
		dedupe:  dedupe,
		batch:   batch,
		cfg:     cfg,
		metrics: m,
		pool:    pool,
		logger:  slog.Default().With("component", "sampler"),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.breaker = resilience.NewCircuitBreaker("sampler-store", resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, state resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
		},
	})
	return s, nil
}

// Run performs one sweep immediately and then one per interval until ctx is
// cancelled.
func (s *Sampler) Run(ctx context.Context) {
	s.logger.Info("sampler started",
		"interval", s.cfg.Interval,
		"workers", s.cfg.Workers,
		"jitter", s.cfg.PriceJitter,
	)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("sampling sweep failed", "error", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			s.logger.Info("sampler stopped")
			return
		}
	}
}

// Close releases the worker pool. Call after Run has returned.
func (s *Sampler) Close() {
	s.pool.Release()
}

// Sweep samples every active flight once. Flights are fanned out across the
// worker pool; the sweep returns once every flight has been handled.
func (s *Sampler) Sweep(ctx context.Context) error {
	start := time.Now()
	flights, err := s.store.ListFlights(ctx, true)
	if err != nil {
		return fmt.Errorf("listing active flights: %w", err)
	}

	// All replicas resolve the same tick identity for a sweep, so the
	// dedupe register only admits the first one.
	tick := start.UTC().Truncate(s.cfg.Interval)

	var wg sync.WaitGroup
	var sampled, skipped, failed atomic.Int64
	for _, fl := range flights {
		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()
			switch err := s.sampleFlight(ctx, fl, tick); {
			case err == nil:
				sampled.Add(1)
				s.metrics.ObservationsSampled.WithLabelValues("ok").Inc()
			case errors.Is(err, errDuplicateTick):
				skipped.Add(1)
				s.metrics.ObservationsSampled.WithLabelValues("skipped").Inc()
			default:
				failed.Add(1)
				s.metrics.ObservationsSampled.WithLabelValues("error").Inc()
				s.logger.Warn("flight sampling failed", "flight_id", fl.ID, "error", err)
			}
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
			s.metrics.ObservationsSampled.WithLabelValues("error").Inc()
		}
	}
	wg.Wait()

	duration := time.Since(start)
	s.metrics.SamplerRunDuration.Observe(duration.Seconds())
	s.logger.Info("sampling sweep completed",
		"flights", len(flights),
		"sampled", sampled.Load(),
		"skipped", skipped.Load(),
		"failed", failed.Load(),
		"duration_ms", duration.Milliseconds(),
	)
	return ctx.Err()
}

func (s *Sampler) sampleFlight(ctx context.Context, fl flight.Flight, tick time.Time) error {
	if s.dedupe != nil {
		key := fmt.Sprintf("sample:%s:%d", fl.ID, tick.Unix())
		ok, err := s.dedupe.SetNX(ctx, key, "1", s.cfg.DedupeTTL)
		if err != nil {
			s.logger.Warn("dedupe register unreachable, sampling anyway", "flight_id", fl.ID, "error", err)
		} else if !ok {
			return errDuplicateTick
		}
	}

	base, err := s.basePrice(ctx, fl)
	if err != nil {
		return err
	}

	obs := flight.PriceObservation{
		ID:         uuid.NewString(),
		FlightID:   fl.ID,
		Amount:     s.jitter(base),
		CapturedAt: time.Now().UTC(),
		Source:     s.cfg.Source,
	}
	err = s.breaker.Execute(func() error {
		return resilience.Retry(ctx, "append-observation", resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
		}, func() error {
			return s.store.AddObservation(ctx, obs)
		})
	})
	if err != nil {
		return fmt.Errorf("appending observation: %w", err)
	}

	if s.batch != nil {
		s.batch.Track(fl.ID, analytics.ObservationEvent{
			Type:       analytics.EventObservation,
			FlightID:   fl.ID,
			Route:      fl.Origin + "-" + fl.Destination,
			Amount:     obs.Amount,
			Source:     obs.Source,
			CapturedAt: obs.CapturedAt,
		})
	}
	return nil
}

// basePrice returns the flight's latest observed fare, or a seeded starting
// fare for flights that have never been sampled.
func (s *Sampler) basePrice(ctx context.Context, fl flight.Flight) (float64, error) {
	recent, err := s.store.ListObservations(ctx, fl.ID, 1)
	if err != nil {
		return 0, fmt.Errorf("loading latest observation: %w", err)
	}
	if len(recent) > 0 {
		return recent[0].Amount, nil
	}
	return seedPrice(fl), nil
}

// jitter applies a uniform random walk step of at most ±PriceJitter to the
// base fare, floored at minFare and rounded to cents.
func (s *Sampler) jitter(base float64) float64 {
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()

	amount := base * (1 + (f*2-1)*s.cfg.PriceJitter)
	if amount < minFare {
		amount = minFare
	}
	return math.Round(amount*100) / 100
}

// seedPrice derives a stable starting fare from the flight's identity so a
// route lands in the same price band on every replica.
func seedPrice(fl flight.Flight) float64 {
	h := fnv.New32a()
	h.Write([]byte(fl.Origin + fl.Destination + fl.Airline))
	return 150 + float64(h.Sum32()%1250)
}
