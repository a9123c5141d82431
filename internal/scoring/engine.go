// Package scoring computes identity scores and looks up client interests.
//
// Both operations read from a key/value store. Scores are memoized there and
// the store is optional for them: any read or write failure falls back to a
// fresh computation. Interests live only in the store, so a store failure
// fails the lookup.
package scoring

import (
	"context"
	"crypto/md5" //nolint:gosec // cache key derivation, not a security boundary
	"encoding/hex"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"scoring/internal/platform/metrics"
	"scoring/internal/platform/privacy"
	"scoring/internal/platform/tracer"
	"scoring/internal/sentinel"
)

const (
	// AdminScore is returned to admin callers without computation.
	AdminScore Score = 42

	DefaultScoreTTL = time.Hour
	DefaultFanout   = 8
)

// Store is the key/value contract the engine depends on.
// Get must return sentinel.ErrNotFound (possibly wrapped) for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Score is a non-negative sum of attribute weights. It always renders with
// one decimal place, e.g. 3.0.
type Score float64

func (s Score) String() string {
	return strconv.FormatFloat(float64(s), 'f', 1, 64)
}

func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(s.String()), nil
}

// ScoreInput carries the optional identity attributes. Empty strings and nil
// pointers count as absent.
type ScoreInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthday  *time.Time
	Gender    *int
}

// Compute applies the attribute weights.
func Compute(in ScoreInput) Score {
	var score Score
	if in.Phone != "" && in.Email != "" {
		score += 3.0
	}
	if in.Birthday != nil && in.Gender != nil {
		score += 1.5
	}
	if in.FirstName != "" && in.LastName != "" {
		score += 0.5
	}
	return score
}

// CacheKey derives the memoization key from the phone number. Inputs without
// a phone have no stable identity and are not cached.
func CacheKey(in ScoreInput) (string, bool) {
	if in.Phone == "" {
		return "", false
	}
	sum := md5.Sum([]byte(in.Phone)) //nolint:gosec // see import
	return "uid:" + hex.EncodeToString(sum[:]), true
}

// Engine serves scores and interests over a Store.
type Engine struct {
	store    Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	scoreTTL time.Duration
	fanout   int
	flights  singleflight.Group
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithScoreTTL sets how long computed scores stay cached.
func WithScoreTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.scoreTTL = ttl
		}
	}
}

// WithFanout bounds concurrent store reads per interests call.
func WithFanout(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fanout = n
		}
	}
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		logger:   slog.Default(),
		tracer:   tracer.NewNoop(),
		scoreTTL: DefaultScoreTTL,
		fanout:   DefaultFanout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score returns the cached score for in, or computes and caches it. Store
// failures are logged and never surface; the only error is a ctx that is
// already done on entry.
//
// Concurrent calls for one phone share a single read-compute-write. A caller
// whose ctx ends while that is still in flight gets a fresh computation at
// once, so a slow store never holds a response.
func (e *Engine) Score(ctx context.Context, in ScoreInput) (Score, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ctx, span := e.tracer.Start(ctx, tracer.SpanScore)
	defer span.End(nil)

	key, cacheable := CacheKey(in)
	if !cacheable {
		score := Compute(in)
		span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, false), tracer.Float64(tracer.AttrScore, float64(score)))
		return score, nil
	}

	// The flight outlives any single caller's deadline; the store's own
	// timeouts and retry budget bound it.
	flightCtx := context.WithoutCancel(ctx)
	ch := e.flights.DoChan(key, func() (any, error) {
		return e.cachedOrFresh(flightCtx, span, key, in), nil
	})

	select {
	case res := <-ch:
		score, _ := res.Val.(Score)
		return score, nil
	case <-ctx.Done():
		span.AddEvent(tracer.EventCacheAbandoned)
		e.metrics.IncrementScoreCache("abandoned")
		e.logger.WarnContext(ctx, "score cache too slow, answering uncached",
			"phone", privacy.MaskPhone(in.Phone),
		)
		return Compute(in), nil
	}
}

func (e *Engine) cachedOrFresh(ctx context.Context, span tracer.Span, key string, in ScoreInput) Score {
	if cached, ok := e.cachedScore(ctx, span, key); ok {
		span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, true), tracer.Float64(tracer.AttrScore, float64(cached)))
		return cached
	}

	score := Compute(in)
	span.SetAttributes(tracer.Bool(tracer.AttrCacheHit, false), tracer.Float64(tracer.AttrScore, float64(score)))
	if err := e.store.Set(ctx, key, score.String(), e.scoreTTL); err != nil {
		span.AddEvent(tracer.EventCacheWriteFailed)
		e.logger.WarnContext(ctx, "score cache write failed",
			"phone", privacy.MaskPhone(in.Phone),
			"error", err,
		)
	}
	return score
}

func (e *Engine) cachedScore(ctx context.Context, span tracer.Span, key string) (Score, bool) {
	raw, err := e.store.Get(ctx, key)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		e.metrics.IncrementScoreCache("miss")
		return 0, false
	case err != nil:
		e.metrics.IncrementScoreCache("error")
		span.AddEvent(tracer.EventCacheReadFailed)
		e.logger.WarnContext(ctx, "score cache read failed", "error", err)
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		e.metrics.IncrementScoreCache("error")
		e.logger.WarnContext(ctx, "discarding malformed cached score", "value", raw)
		return 0, false
	}
	e.metrics.IncrementScoreCache("hit")
	return Score(v), true
}
