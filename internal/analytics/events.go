package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventObservation EventType = "observation"
)

// SearchEvent describes one completed ranking request.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Route      string    `json:"route,omitempty"`
	Mode       string    `json:"mode"`
	Sort       string    `json:"sort"`
	TotalItems int       `json:"total_items"`
	Returned   int       `json:"returned"`
	Truncated  bool      `json:"truncated"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// ObservationEvent describes one recorded price observation.
type ObservationEvent struct {
	Type       EventType `json:"type"`
	FlightID   string    `json:"flight_id"`
	Route      string    `json:"route,omitempty"`
	Amount     float64   `json:"amount"`
	Source     string    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
}

// eventEnvelope carries just the discriminator so consumed events can be
// decoded into the right concrete type.
type eventEnvelope struct {
	Type EventType `json:"type"`
}
