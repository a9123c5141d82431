// Package service routes validated method calls to the scoring engine.
//
// A call moves through Received → EnvelopeValidated → Authenticated →
// MethodResolved → Executed. Each early exit is a domain error:
// CodeValidation carries the literal validation message, CodeForbidden and
// CodeNotFound carry none, and anything unexpected becomes CodeInternal.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"scoring/internal/method/models"
	"scoring/internal/platform/metrics"
	"scoring/internal/scoring"
	dErrors "scoring/pkg/domain-errors"
	"scoring/pkg/requestcontext"
	"scoring/pkg/schema"
)

// Authenticator verifies the caller's token.
type Authenticator interface {
	Check(ctx context.Context, cred models.Credential) bool
}

// Scorer executes the business methods.
type Scorer interface {
	Score(ctx context.Context, in scoring.ScoreInput) (scoring.Score, error)
	Interests(ctx context.Context, clientIDs []int64) (map[string]any, error)
}

// Result is the payload of a successful call plus the facts gathered while
// validating it. Context is for logs only and never reaches the response.
type Result struct {
	Method  string
	Payload any
	Context schema.Context
}

// ScoreResponse is the online_score payload.
type ScoreResponse struct {
	Score scoring.Score `json:"score"`
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	auth    Authenticator
	scorer  Scorer
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(auth Authenticator, scorer Scorer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		auth:   auth,
		scorer: scorer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch validates doc, authenticates the caller and runs the named method.
func (d *Dispatcher) Dispatch(ctx context.Context, doc schema.Document) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "panic in method dispatch",
				"error", r,
				"stack", string(debug.Stack()),
				"request_id", requestcontext.RequestID(ctx),
			)
			res, err = nil, dErrors.New(dErrors.CodeInternal, "")
		}
	}()

	req, err := models.ParseMethodRequest(doc)
	if err != nil {
		return nil, d.invalid(ctx, err)
	}

	if !d.auth.Check(ctx, req.Credential()) {
		d.metrics.IncrementAuthFailures()
		d.logger.WarnContext(ctx, "authentication failed",
			"login", req.Login,
			"method", req.Method,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "")
	}

	switch req.Method {
	case models.MethodOnlineScore:
		return d.onlineScore(ctx, req)
	case models.MethodClientsInterests:
		return d.clientsInterests(ctx, req)
	default:
		d.logger.InfoContext(ctx, "unknown method",
			"method", req.Method,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.New(dErrors.CodeNotFound, "")
	}
}

func (d *Dispatcher) onlineScore(ctx context.Context, req *models.MethodRequest) (*Result, error) {
	args, err := models.ParseOnlineScore(req.Arguments)
	if err != nil {
		return nil, d.invalid(ctx, err)
	}

	score := scoring.AdminScore
	if !req.IsAdmin() {
		score, err = d.scorer.Score(ctx, scoring.ScoreInput{
			FirstName: args.FirstName,
			LastName:  args.LastName,
			Email:     args.Email,
			Phone:     args.Phone,
			Birthday:  args.Birthday,
			Gender:    args.Gender,
		})
		if err != nil {
			return nil, d.internal(ctx, req.Method, err)
		}
	}

	return &Result{
		Method:  req.Method,
		Payload: ScoreResponse{Score: score},
		Context: args.Context,
	}, nil
}

func (d *Dispatcher) clientsInterests(ctx context.Context, req *models.MethodRequest) (*Result, error) {
	args, err := models.ParseClientsInterests(req.Arguments)
	if err != nil {
		return nil, d.invalid(ctx, err)
	}

	interests, err := d.scorer.Interests(ctx, args.ClientIDs)
	if err != nil {
		return nil, d.internal(ctx, req.Method, err)
	}

	return &Result{
		Method:  req.Method,
		Payload: interests,
		Context: args.Context,
	}, nil
}

// invalid maps a validation failure to CodeValidation with its message.
func (d *Dispatcher) invalid(ctx context.Context, err error) error {
	var vErr *schema.ValidationError
	if !errors.As(err, &vErr) {
		return d.internal(ctx, "", err)
	}
	d.logger.InfoContext(ctx, "invalid request",
		"field", vErr.Field,
		"rule", string(vErr.Rule),
		"reason", vErr.Message,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(vErr, dErrors.CodeValidation, vErr.Message)
}

func (d *Dispatcher) internal(ctx context.Context, method string, err error) error {
	d.logger.ErrorContext(ctx, "method failed",
		"method", method,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &dErrors.Error{Code: dErrors.CodeInternal, Err: fmt.Errorf("%s: %w", method, err)}
}
