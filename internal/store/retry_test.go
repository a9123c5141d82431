package store

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Cache,Pinger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"scoring/internal/platform/metrics"
	"scoring/internal/sentinel"
	"scoring/internal/store/mocks"
	"scoring/pkg/platform/circuit"
)

var errBackend = fmt.Errorf("dial tcp: %w", sentinel.ErrUnavailable)

type StorageSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	cache   *mocks.MockCache
	breaker *circuit.Breaker
	metrics *metrics.Metrics
	storage *Storage
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.cache = mocks.NewMockCache(s.ctrl)
	s.breaker = circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1))
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.storage = NewStorage(s.cache,
		WithAttempts(3),
		WithRetryInterval(0),
		WithBreaker(s.breaker),
		WithMetrics(s.metrics),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func (s *StorageSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *StorageSuite) TestGet_SucceedsFirstTry() {
	s.cache.EXPECT().Get(gomock.Any(), "uid:1").Return("3.0", nil).Times(1)

	val, err := s.storage.Get(context.Background(), "uid:1")
	s.Require().NoError(err)
	s.Equal("3.0", val)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.StoreAttempts.WithLabelValues("get")))
}

func (s *StorageSuite) TestGet_RetriesTransientFailures() {
	gomock.InOrder(
		s.cache.EXPECT().Get(gomock.Any(), "uid:1").Return("", errBackend),
		s.cache.EXPECT().Get(gomock.Any(), "uid:1").Return("", errBackend),
		s.cache.EXPECT().Get(gomock.Any(), "uid:1").Return("3.0", nil),
	)

	val, err := s.storage.Get(context.Background(), "uid:1")
	s.Require().NoError(err)
	s.Equal("3.0", val)
	s.False(s.breaker.IsOpen())
}

func (s *StorageSuite) TestGet_GivesUpAfterAttempts() {
	s.cache.EXPECT().Get(gomock.Any(), "uid:1").Return("", errBackend).Times(3)

	_, err := s.storage.Get(context.Background(), "uid:1")
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.StoreGiveUps.WithLabelValues("get")))
}

func (s *StorageSuite) TestGet_MissIsNotRetried() {
	s.cache.EXPECT().Get(gomock.Any(), "i:1").Return("", sentinel.ErrNotFound).Times(1)

	_, err := s.storage.Get(context.Background(), "i:1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.Equal(0.0, testutil.ToFloat64(s.metrics.StoreGiveUps.WithLabelValues("get")))
}

func (s *StorageSuite) TestSet_WrapsUnknownErrors() {
	s.cache.EXPECT().Set(gomock.Any(), "k", "v", time.Hour).Return(errors.New("boom")).Times(3)

	err := s.storage.Set(context.Background(), "k", "v", time.Hour)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *StorageSuite) TestBreaker_LimitsAttemptsWhileOpen() {
	// Two exhausted calls open the breaker.
	s.cache.EXPECT().Get(gomock.Any(), "k").Return("", errBackend).Times(6)
	for range 2 {
		_, err := s.storage.Get(context.Background(), "k")
		s.Require().Error(err)
	}
	s.True(s.storage.BreakerOpen())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BreakerOpen))

	// Open breaker: one attempt only.
	s.cache.EXPECT().Get(gomock.Any(), "k").Return("", errBackend).Times(1)
	_, err := s.storage.Get(context.Background(), "k")
	s.Require().Error(err)

	// A success closes it again.
	s.cache.EXPECT().Get(gomock.Any(), "k").Return("v", nil).Times(1)
	_, err = s.storage.Get(context.Background(), "k")
	s.Require().NoError(err)
	s.False(s.storage.BreakerOpen())
	s.Equal(0.0, testutil.ToFloat64(s.metrics.BreakerOpen))
}

func (s *StorageSuite) TestGet_StopsOnCanceledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cache.EXPECT().Get(gomock.Any(), "k").DoAndReturn(func(context.Context, string) (string, error) {
		cancel()
		return "", errBackend
	}).Times(1)

	_, err := s.storage.Get(ctx, "k")
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *StorageSuite) TestPing_DelegatesWhenSupported() {
	s.NoError(s.storage.Ping(context.Background()))

	mem := NewStorage(NewMemoryStore())
	s.NoError(mem.Ping(context.Background()))
}

func TestNewStorage_Defaults(t *testing.T) {
	s := NewStorage(NewMemoryStore(), WithAttempts(0), WithRetryInterval(-1))
	assert.Equal(t, DefaultAttempts, s.attempts)
	assert.Equal(t, DefaultRetryInterval, s.interval)
	require.NotNil(t, s.breaker)
	assert.Equal(t, "store", s.breaker.Name())
}
