// Package tracing records span trees for sampled requests so slow searches
// can be broken down by phase: how long the candidate fetch took versus
// scoring versus everything around them. Spans propagate through contexts
// and are emitted as structured slog lines when the root span is logged.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type contextKey string

const spanKey contextKey = "trace_span"

// Span is one timed phase of a traced request. Child spans attach to the
// parent found in the context, forming a tree rooted at the request span.
type Span struct {
	Name      string
	TraceID   string
	StartedAt time.Time
	Duration  time.Duration

	mu       sync.Mutex
	children []*Span
	attrs    map[string]any
}

// StartSpan opens a root span and returns a context carrying it. The trace
// ID ties the emitted lines back to the request's log entries.
func StartSpan(ctx context.Context, name, traceID string) (context.Context, *Span) {
	span := &Span{
		Name:      name,
		TraceID:   traceID,
		StartedAt: time.Now(),
		attrs:     make(map[string]any),
	}
	return context.WithValue(ctx, spanKey, span), span
}

// StartChildSpan opens a span nested under the one in ctx. Without a parent
// the span still times its phase but belongs to no trace and is never
// emitted, which keeps instrumented code paths cheap on unsampled requests.
func StartChildSpan(ctx context.Context, name string) (context.Context, *Span) {
	child := &Span{
		Name:      name,
		StartedAt: time.Now(),
		attrs:     make(map[string]any),
	}

	if parent := SpanFromContext(ctx); parent != nil {
		child.TraceID = parent.TraceID
		parent.mu.Lock()
		parent.children = append(parent.children, child)
		parent.mu.Unlock()
	}

	return context.WithValue(ctx, spanKey, child), child
}

// End stamps the span's duration. Safe to call once per span.
func (s *Span) End() {
	s.Duration = time.Since(s.StartedAt)
}

// SetAttr attaches a key-value pair emitted with the span's log line.
func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs[key] = value
	s.mu.Unlock()
}

// SpanFromContext returns the span carried by ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanKey).(*Span); ok {
		return span
	}
	return nil
}

// Log emits the whole tree, one line per span, with slash-joined paths so
// "search/rank/score" reads as a call path without needing depth counters.
func (s *Span) Log() {
	s.emit("")
}

func (s *Span) emit(parentPath string) {
	path := s.Name
	if parentPath != "" {
		path = parentPath + "/" + s.Name
	}

	attrs := []any{
		"trace_id", s.TraceID,
		"span", path,
		"duration_ms", s.Duration.Milliseconds(),
	}
	s.mu.Lock()
	for k, v := range s.attrs {
		attrs = append(attrs, k, v)
	}
	children := s.children
	s.mu.Unlock()

	slog.Info("span", attrs...)

	for _, child := range children {
		child.emit(path)
	}
}
