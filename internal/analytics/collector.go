package analytics

import (
	"context"
	"log/slog"

	"github.com/farescout/farescout/pkg/kafka"
	"github.com/farescout/farescout/pkg/metrics"
)

// Collector records events into the local aggregator and, when a producer is
// attached, forwards them to Kafka for external consumers. Tracking never
// blocks the request path: when the publish buffer is full the event is
// still aggregated locally but dropped from the stream.
type Collector struct {
	agg      *Aggregator
	producer *kafka.Producer
	metrics  *metrics.Metrics
	eventCh  chan interface{}
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(agg *Aggregator, producer *kafka.Producer, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &Collector{
		agg:      agg,
		producer: producer,
		metrics:  m,
		eventCh:  make(chan interface{}, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}
}

// Start launches the publish loop. Without a producer there is nothing to
// publish and Start only arms Close.
func (c *Collector) Start(ctx context.Context) {
	if c.producer == nil {
		close(c.done)
		return
	}
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track records an event locally and queues it for publishing.
func (c *Collector) Track(event interface{}) {
	c.agg.Record(event)
	if c.producer == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.metrics.AnalyticsDropped.Inc()
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event interface{}) {
	if err := c.producer.Publish(ctx, kafka.Event{Key: keyFor(event), Value: event}); err != nil {
		c.logger.Error("failed to publish analytics event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}

func keyFor(event interface{}) string {
	switch event.(type) {
	case SearchEvent:
		return string(EventSearch)
	case ObservationEvent:
		return string(EventObservation)
	default:
		return "event"
	}
}
