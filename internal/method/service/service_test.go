package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Authenticator,Scorer

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

	"scoring/internal/method/auth"
	"scoring/internal/method/models"
	"scoring/internal/method/service/mocks"
	"scoring/internal/platform/metrics"
	"scoring/internal/scoring"
	"scoring/internal/sentinel"
	"scoring/internal/store"
	dErrors "scoring/pkg/domain-errors"
	"scoring/pkg/requestcontext"
	fixtures "scoring/pkg/testutil"
)

type DispatcherSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	auth       *mocks.MockAuthenticator
	scorer     *mocks.MockScorer
	metrics    *metrics.Metrics
	dispatcher *Dispatcher
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.auth = mocks.NewMockAuthenticator(s.ctrl)
	s.scorer = mocks.NewMockScorer(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.dispatcher = New(s.auth, s.scorer,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
	)
}

func (s *DispatcherSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DispatcherSuite) TestInvalidEnvelopeSkipsAuth() {
	_, err := s.dispatcher.Dispatch(context.Background(), fixtures.NewEnvelope("online_score").Without("login").Document())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(`Validation error - require field "login"`, err.Error())
}

func (s *DispatcherSuite) TestAuthFailureIsForbidden() {
	s.auth.EXPECT().Check(gomock.Any(), models.Credential{Account: "horns&hoofs", Login: "h&f", Token: "sdd"}).Return(false)

	_, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("online_score").WithToken("sdd").Document())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AuthFailures))
}

func (s *DispatcherSuite) TestAuthIsCheckedBeforeMethodResolution() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(false)

	_, err := s.dispatcher.Dispatch(context.Background(), fixtures.NewEnvelope("no_such_method").Document())
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *DispatcherSuite) TestUnknownMethodIsNotFound() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)

	_, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("no_such_method").WithArguments(map[string]any{"phone": "79175002040", "email": "a@b"}).Document())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *DispatcherSuite) TestOnlineScore() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)
	s.scorer.EXPECT().
		Score(gomock.Any(), scoring.ScoreInput{Phone: "79175002040", Email: "stupnikov@otus.ru"}).
		Return(scoring.Score(3.0), nil)

	res, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("online_score").WithArguments(map[string]any{
			"phone": 79175002040, "email": "stupnikov@otus.ru",
		}).Document())
	s.Require().NoError(err)
	s.Equal(models.MethodOnlineScore, res.Method)
	s.Equal(ScoreResponse{Score: 3.0}, res.Payload)
	s.Equal([]string{"email", "phone"}, res.Context[models.ContextHas])
}

func (s *DispatcherSuite) TestOnlineScore_AdminGetsFixedScore() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)

	res, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("online_score").WithLogin("admin").WithArguments(map[string]any{
			"first_name": "a", "last_name": "b",
		}).Document())
	s.Require().NoError(err)
	s.Equal(ScoreResponse{Score: scoring.AdminScore}, res.Payload)
}

func (s *DispatcherSuite) TestOnlineScore_AdminArgumentsStillValidated() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)

	_, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("online_score").WithLogin("admin").Document())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal("No required pair", err.Error())
}

func (s *DispatcherSuite) TestOnlineScore_InvalidArguments() {
	tests := []struct {
		name string
		args map[string]any
		msg  string
	}{
		{"no pair", map[string]any{}, "No required pair"},
		{"null arguments", nil, "No required pair"},
		{"bad phone", map[string]any{"phone": "7917500204", "email": "a@b"}, "Phone must be 11 digits"},
		{"bad gender", map[string]any{"gender": 3, "birthday": "01.01.2000"}, "Gender must be in [0, 1, 2]"},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)
			env := fixtures.NewEnvelope("online_score")
			if tt.args == nil {
				env.Set("arguments", nil)
			} else {
				env.WithArguments(tt.args)
			}
			_, err := s.dispatcher.Dispatch(context.Background(), env.Document())
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
			s.Equal(tt.msg, err.Error())
		})
	}
}

func (s *DispatcherSuite) TestClientsInterests() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)
	payload := map[string]any{"1": []any{}, "2": []any{"cars"}}
	s.scorer.EXPECT().Interests(gomock.Any(), []int64{1, 2}).Return(payload, nil)

	res, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("clients_interests").WithArguments(map[string]any{
			"client_ids": []any{1, 2}, "date": "19.07.2017",
		}).Document())
	s.Require().NoError(err)
	s.Equal(payload, res.Payload)
	s.Equal(2, res.Context[models.ContextNClients])
}

func (s *DispatcherSuite) TestClientsInterests_EmptyIDs() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)

	_, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("clients_interests").WithArguments(map[string]any{"client_ids": []any{}}).Document())
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(`Trying to set None to not-nullable field "client_ids"`, err.Error())
}

func (s *DispatcherSuite) TestClientsInterests_StoreFailureIsInternal() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)
	s.scorer.EXPECT().Interests(gomock.Any(), []int64{1}).Return(nil, fmt.Errorf("get i:1: %w", sentinel.ErrUnavailable))

	_, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("clients_interests").WithArguments(map[string]any{"client_ids": []any{1}}).Document())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func (s *DispatcherSuite) TestPanicBecomesInternal() {
	s.auth.EXPECT().Check(gomock.Any(), gomock.Any()).Return(true)
	s.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, scoring.ScoreInput) (scoring.Score, error) {
			panic("boom")
		})

	res, err := s.dispatcher.Dispatch(context.Background(),
		fixtures.NewEnvelope("online_score").WithArguments(map[string]any{"phone": "79175002040", "email": "a@b"}).Document())
	s.Nil(res)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestDispatch_EndToEndWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2017, time.July, 19, 14, 0, 0, 0, time.Local)
	ctx = requestcontext.WithTime(ctx, now)

	authn := auth.New()
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Set(ctx, store.InterestsKey(2), `{"interests": ["piano", "guitar"]}`, 0))
	d := New(authn, scoring.New(store.NewStorage(mem)))

	res, err := d.Dispatch(ctx, fixtures.NewEnvelope("online_score").
		WithArguments(map[string]any{"phone": "79175002040", "email": "x@y.z"}).
		Signed(authn, now).Document())
	require.NoError(t, err)
	assert.Equal(t, ScoreResponse{Score: 3.0}, res.Payload)

	res, err = d.Dispatch(ctx, fixtures.NewEnvelope("clients_interests").
		WithArguments(map[string]any{"client_ids": []any{1, 2}}).
		Signed(authn, now).Document())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"1": []any{},
		"2": map[string]any{"interests": []any{"piano", "guitar"}},
	}, res.Payload)

	res, err = d.Dispatch(ctx, fixtures.NewEnvelope("online_score").WithLogin("admin").
		WithArguments(map[string]any{"first_name": "a", "last_name": "b"}).
		Signed(authn, now).Document())
	require.NoError(t, err)
	assert.Equal(t, ScoreResponse{Score: 42}, res.Payload)

	// Admin tokens rotate hourly.
	_, err = d.Dispatch(requestcontext.WithTime(context.Background(), now.Add(time.Hour)),
		fixtures.NewEnvelope("online_score").WithLogin("admin").
			WithArguments(map[string]any{"first_name": "a", "last_name": "b"}).
			Signed(authn, now).Document())
	assert.True(t, errors.Is(err, dErrors.New(dErrors.CodeForbidden, "")))
}
