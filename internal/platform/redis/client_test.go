package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoring/internal/platform/config"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNew_NotConfigured(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{}, nil, discard)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "http://localhost"}, nil, discard)
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestNew_UnreachableIsNotFatal(t *testing.T) {
	cfg := config.RedisConfig{URL: "redis://127.0.0.1:1/0", DialTimeout: 50 * time.Millisecond}
	c, err := New(context.Background(), cfg, nil, discard)
	require.NoError(t, err)
	require.NotNil(t, c)
	defer c.Close() //nolint:errcheck // test cleanup

	assert.Error(t, c.Health(context.Background()))
}

func TestRecordPoolStats(t *testing.T) {
	m := NewPoolMetrics(prometheus.NewRegistry())
	cfg := config.RedisConfig{URL: "redis://127.0.0.1:1/0", DialTimeout: 50 * time.Millisecond}
	c, err := New(context.Background(), cfg, m, discard)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck // test cleanup

	c.RecordPoolStats()
	first := testutil.ToFloat64(m.Misses)
	c.RecordPoolStats()

	assert.Equal(t, first, testutil.ToFloat64(m.Misses), "no new pool activity between calls")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TotalConns))
}

func TestRecordPoolStats_NoMetrics(t *testing.T) {
	c := &Client{}
	assert.NotPanics(t, c.RecordPoolStats)
}
