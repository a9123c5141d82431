package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"scoring/internal/method/auth"
	"scoring/internal/method/handler"
	"scoring/internal/method/service"
	"scoring/internal/platform/health"
	"scoring/internal/platform/metrics"
	"scoring/internal/scoring"
	"scoring/internal/store"
	httptransport "scoring/internal/transport/http"
	fixtures "scoring/pkg/testutil"
)

// TestContext holds state between test steps. Without BASE_URL every
// scenario gets its own in-process server backed by a memory store.
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte

	Auth     *auth.Authenticator
	Store    *store.MemoryStore
	Envelope *fixtures.EnvelopeBuilder

	server *httptest.Server
	mu     sync.Mutex
	now    time.Time
}

// NewTestContext creates a new test context
func NewTestContext() *TestContext {
	tc := &TestContext{
		BaseURL:    os.Getenv("BASE_URL"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Auth:       auth.New(),
		Store:      store.NewMemoryStore(),
	}
	if tc.BaseURL == "" {
		tc.server = httptest.NewServer(tc.newRouter())
		tc.BaseURL = tc.server.URL
	}
	return tc
}

// InProcess reports whether the scenario controls the server's store and clock.
func (tc *TestContext) InProcess() bool {
	return tc.server != nil
}

func (tc *TestContext) Close() {
	if tc.server != nil {
		tc.server.Close()
	}
}

func (tc *TestContext) newRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	storage := store.NewStorage(tc.Store, store.WithRetryInterval(0), store.WithMetrics(m), store.WithLogger(logger))
	engine := scoring.New(storage, scoring.WithLogger(logger), scoring.WithMetrics(m))
	dispatcher := service.New(tc.Auth, engine, service.WithLogger(logger), service.WithMetrics(m))

	hh := health.New("e2e")
	hh.RegisterCheck("store", storage.Ping)

	return httptransport.NewRouter(httptransport.Config{
		Logger:         logger,
		Metrics:        m,
		Gatherer:       reg,
		RequestTimeout: 5 * time.Second,
		MaxBodyBytes:   64 << 10,
		Clock:          tc.Now,
	}, hh, handler.New(dispatcher, logger, m))
}

// Now is the server clock; it is the wall clock until a step pins it.
func (tc *TestContext) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.now.IsZero() {
		return time.Now()
	}
	return tc.now
}

func (tc *TestContext) SetNow(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.now = t
}

// POST sends a raw body and stores the response
func (tc *TestContext) POST(path string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, tc.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return tc.do(req)
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, tc.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body fully read below

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	return nil
}

// GetResponseField extracts a top-level field from the JSON response
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var data map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}
	return value, nil
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}
