package models

import (
	"time"

	"scoring/pkg/schema"
)

// Method names accepted by the dispatcher.
const (
	MethodOnlineScore      = "online_score"
	MethodClientsInterests = "clients_interests"
)

// AdminLogin is the login that switches a caller to the hourly admin token.
const AdminLogin = "admin"

// Context keys recorded by the request schemas.
const (
	ContextHas      = "has"
	ContextNClients = "nclients"
)

var (
	MethodRequestSchema = schema.New("method_request", []schema.Field{
		schema.Char("account", schema.Nullable),
		schema.Char("login", schema.Required, schema.Nullable),
		schema.Char("token", schema.Required, schema.Nullable),
		schema.Arguments("arguments", schema.Required, schema.Nullable),
		schema.Char("method", schema.Required),
	})

	OnlineScoreSchema = newOnlineScoreSchema()

	ClientsInterestsSchema = schema.New("clients_interests", []schema.Field{
		schema.ClientIDs("client_ids", schema.Required),
		schema.Date("date", schema.Nullable),
	},
		schema.WithContext(ContextNClients, func(_ schema.Document, v *schema.Validated) any {
			return len(v.Ints("client_ids"))
		}),
	)
)

func newOnlineScoreSchema(opts ...schema.Option) *schema.Schema {
	opts = append([]schema.Option{
		schema.WithRequiredPairs(
			[]string{"first_name", "last_name"},
			[]string{"email", "phone"},
			[]string{"birthday", "gender"},
		),
		schema.WithContext(ContextHas, schema.SuppliedKeys),
	}, opts...)
	return schema.New("online_score", []schema.Field{
		schema.Char("first_name", schema.Nullable),
		schema.Char("last_name", schema.Nullable),
		schema.Email("email", schema.Nullable),
		schema.Phone("phone", schema.Nullable),
		schema.BirthDay("birthday", schema.Nullable),
		schema.Gender("gender", schema.Nullable),
	}, opts...)
}

// Credential is what the caller claims to be. It is never persisted.
type Credential struct {
	Account string
	Login   string
	Token   string
}

// IsAdmin reports whether the caller uses the admin login.
func (c Credential) IsAdmin() bool {
	return c.Login == AdminLogin
}

// MethodRequest is the validated outer envelope of every call.
type MethodRequest struct {
	Account   string
	Login     string
	Token     string
	Method    string
	Arguments schema.Document
}

func (r *MethodRequest) IsAdmin() bool {
	return r.Login == AdminLogin
}

func (r *MethodRequest) Credential() Credential {
	return Credential{Account: r.Account, Login: r.Login, Token: r.Token}
}

// OnlineScoreRequest holds the identity attributes a score is computed from.
// Empty strings and nil pointers mean the attribute was not supplied.
type OnlineScoreRequest struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Birthday  *time.Time
	Gender    *int
	Context   schema.Context
}

// ClientsInterestsRequest lists the clients whose interests are requested.
type ClientsInterestsRequest struct {
	ClientIDs []int64
	Date      *time.Time
	Context   schema.Context
}

// ParseMethodRequest validates the envelope. A null arguments value becomes
// an empty document so the method schema reports what is missing.
func ParseMethodRequest(doc schema.Document) (*MethodRequest, error) {
	v, err := MethodRequestSchema.Apply(doc)
	if err != nil {
		return nil, err
	}
	args := v.Document("arguments")
	if args == nil {
		args = schema.Document{}
	}
	return &MethodRequest{
		Account:   v.String("account"),
		Login:     v.String("login"),
		Token:     v.String("token"),
		Method:    v.String("method"),
		Arguments: args,
	}, nil
}

func ParseOnlineScore(args schema.Document) (*OnlineScoreRequest, error) {
	return parseOnlineScore(OnlineScoreSchema, args)
}

func parseOnlineScore(s *schema.Schema, args schema.Document) (*OnlineScoreRequest, error) {
	v, err := s.Apply(args)
	if err != nil {
		return nil, err
	}
	req := &OnlineScoreRequest{
		FirstName: v.String("first_name"),
		LastName:  v.String("last_name"),
		Email:     v.String("email"),
		Phone:     v.String("phone"),
		Context:   v.Context,
	}
	if bday, ok := v.Time("birthday"); ok {
		req.Birthday = &bday
	}
	if g, ok := v.Int("gender"); ok {
		req.Gender = &g
	}
	return req, nil
}

func ParseClientsInterests(args schema.Document) (*ClientsInterestsRequest, error) {
	v, err := ClientsInterestsSchema.Apply(args)
	if err != nil {
		return nil, err
	}
	req := &ClientsInterestsRequest{
		ClientIDs: v.Ints("client_ids"),
		Context:   v.Context,
	}
	if d, ok := v.Time("date"); ok {
		req.Date = &d
	}
	return req, nil
}
