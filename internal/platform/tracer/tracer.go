// Package tracer provides a lightweight tracing abstraction for the scoring
// and store paths.
//
// The interface keeps OpenTelemetry out of the domain packages:
//   - NoopTracer: for tests and when tracing is disabled
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a span; the returned context carries it to child calls.
	//
	// Example:
	//   ctx, span := tr.Start(ctx, tracer.SpanScore, tracer.Bool(tracer.AttrAdmin, false))
	//   defer span.End(nil)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanScore     = "scoring.score"
	SpanInterests = "scoring.interests"
	SpanInterest  = "scoring.interest"
)

// Attribute keys.
const (
	AttrAdmin     = "admin"
	AttrCacheHit  = "cache.hit"
	AttrScore     = "score"
	AttrClientID  = "client_id"
	AttrNClients  = "nclients"
	AttrStoreMiss = "store.miss"
)

// Event names.
const (
	EventCacheWriteFailed = "cache.write_failed"
	EventCacheReadFailed  = "cache.read_failed"
	EventCacheAbandoned   = "cache.abandoned"
)
