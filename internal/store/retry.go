package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scoring/internal/platform/metrics"
	"scoring/internal/sentinel"
	"scoring/pkg/platform/circuit"
)

const (
	DefaultAttempts      = 5
	DefaultRetryInterval = 50 * time.Millisecond
)

// Storage wraps a Cache with a bounded retry policy and a circuit breaker.
// A miss is final and never retried. While the breaker is open each call
// gets a single attempt so a dead backend does not multiply request latency.
type Storage struct {
	cache    Cache
	breaker  *circuit.Breaker
	attempts int
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Storage)

// WithAttempts sets the total number of tries per call. Values below 1 are ignored.
func WithAttempts(n int) Option {
	return func(s *Storage) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func WithRetryInterval(d time.Duration) Option {
	return func(s *Storage) {
		if d >= 0 {
			s.interval = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Storage) {
		s.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Storage) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Storage) {
		s.metrics = m
	}
}

func NewStorage(cache Cache, opts ...Option) *Storage {
	s := &Storage{
		cache:    cache,
		attempts: DefaultAttempts,
		interval: DefaultRetryInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = circuit.New("store")
	}
	return s
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := s.do(ctx, "get", func() error {
		v, err := s.cache.Get(ctx, key)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if err != nil {
		return "", err
	}
	return val, nil
}

func (s *Storage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.do(ctx, "set", func() error {
		return s.cache.Set(ctx, key, value, ttl)
	})
}

// Ping reports backend health when the wrapped cache supports it.
func (s *Storage) Ping(ctx context.Context) error {
	if p, ok := s.cache.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// BreakerOpen reports whether calls are currently limited to one attempt.
func (s *Storage) BreakerOpen() bool {
	return s.breaker.IsOpen()
}

func (s *Storage) do(ctx context.Context, op string, fn func() error) error {
	attempts := s.attempts
	if s.breaker.IsOpen() {
		attempts = 1
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.interval), uint64(attempts-1)),
		ctx,
	)
	err := backoff.Retry(func() error {
		s.metrics.IncrementStoreAttempts(op)
		err := fn()
		if errors.Is(err, sentinel.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)

	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		s.recordSuccess()
		return err
	}

	s.metrics.IncrementStoreGiveUps(op)
	s.recordFailure()
	if !errors.Is(err, sentinel.ErrUnavailable) {
		err = fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return err
}

func (s *Storage) recordSuccess() {
	if s.breaker.RecordSuccess() == circuit.Closed {
		s.logger.Info("store circuit closed", "breaker", s.breaker.Name())
		s.metrics.SetBreakerOpen(false)
	}
}

func (s *Storage) recordFailure() {
	if s.breaker.RecordFailure() == circuit.Opened {
		s.logger.Warn("store circuit opened", "breaker", s.breaker.Name())
		s.metrics.SetBreakerOpen(true)
	}
}
