package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scoring/internal/platform/health"
	"scoring/internal/platform/metrics"
	"scoring/pkg/platform/httputil"
	"scoring/pkg/platform/middleware/metadata"
	"scoring/pkg/platform/middleware/request"
	"scoring/pkg/platform/middleware/requesttime"
)

// Registrar mounts routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

// Config holds what the router needs besides the handlers.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	TrustedProxies []netip.Prefix
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// NewRouter wires the probes, /metrics and the method endpoint.
// Unknown paths and methods get the standard error envelope.
func NewRouter(cfg Config, healthHandler *health.Handler, method Registrar) http.Handler {
	stampTime := requesttime.Middleware
	if cfg.Clock != nil {
		stampTime = requesttime.WithClock(cfg.Clock)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(&metadata.Config{TrustedProxies: cfg.TrustedProxies}).Handler)
	r.Use(stampTime)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.LatencyMiddleware(cfg.Metrics))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteStatus(w, http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteStatus(w, http.StatusMethodNotAllowed)
	})

	healthHandler.Register(r)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(request.Timeout(cfg.RequestTimeout))
		}
		r.Use(request.ContentTypeJSON)
		if cfg.MaxBodyBytes > 0 {
			r.Use(request.BodyLimit(cfg.MaxBodyBytes))
		}
		method.Register(r)
	})

	return r
}
