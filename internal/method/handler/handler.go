package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scoring/internal/method/models"
	"scoring/internal/method/service"
	"scoring/internal/platform/metrics"
	dErrors "scoring/pkg/domain-errors"
	"scoring/pkg/platform/httputil"
	"scoring/pkg/requestcontext"
	"scoring/pkg/schema"
)

// Path is where method calls are accepted. The unslashed form is also routed.
const Path = "/method/"

// Dispatcher runs one decoded method call.
type Dispatcher interface {
	Dispatch(ctx context.Context, doc schema.Document) (*service.Result, error)
}

// Handler exposes the method dispatcher over HTTP.
type Handler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func New(dispatcher Dispatcher, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Register registers the method routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post(Path, h.HandleMethod)
	r.Post("/method", h.HandleMethod)
}

// HandleMethod decodes the envelope, dispatches it and writes
// {"response": ..., "code": 200} or {"error": ..., "code": N}.
func (h *Handler) HandleMethod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	doc, ok := httputil.DecodeDocument(w, r, h.logger, ctx, requestID)
	if !ok {
		h.metrics.IncrementMethodRequests("unknown", http.StatusBadRequest)
		return
	}
	method := methodLabel(doc)

	res, err := h.dispatcher.Dispatch(ctx, doc)
	if err != nil {
		status := httputil.DomainCodeToHTTPStatus(dErrors.CodeOf(err))
		h.metrics.IncrementMethodRequests(method, status)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "method served",
		"method", res.Method,
		"context", map[string]any(res.Context),
		"request_id", requestID,
	)
	h.metrics.IncrementMethodRequests(method, http.StatusOK)
	httputil.WriteResponse(w, res.Payload)
}

// methodLabel keeps metric cardinality bounded to the known method names.
func methodLabel(doc schema.Document) string {
	name, _ := doc["method"].(string)
	switch name {
	case models.MethodOnlineScore, models.MethodClientsInterests:
		return name
	default:
		return "unknown"
	}
}
