package testutil

import (
	"encoding/json"
	"maps"
	"time"

	"scoring/internal/method/auth"
	"scoring/pkg/schema"
)

// Default identity used by test envelopes.
const (
	TestAccount = "horns&hoofs"
	TestLogin   = "h&f"
)

// EnvelopeBuilder provides a fluent interface for building method requests.
type EnvelopeBuilder struct {
	doc map[string]any
}

// NewEnvelope starts an unsigned envelope for method with empty arguments.
func NewEnvelope(method string) *EnvelopeBuilder {
	return &EnvelopeBuilder{doc: map[string]any{
		"account":   TestAccount,
		"login":     TestLogin,
		"method":    method,
		"token":     "",
		"arguments": map[string]any{},
	}}
}

func (b *EnvelopeBuilder) WithAccount(account string) *EnvelopeBuilder {
	b.doc["account"] = account
	return b
}

func (b *EnvelopeBuilder) WithLogin(login string) *EnvelopeBuilder {
	b.doc["login"] = login
	return b
}

func (b *EnvelopeBuilder) WithToken(token string) *EnvelopeBuilder {
	b.doc["token"] = token
	return b
}

func (b *EnvelopeBuilder) WithArguments(args map[string]any) *EnvelopeBuilder {
	b.doc["arguments"] = args
	return b
}

// Set overrides any top-level key, including with nil.
func (b *EnvelopeBuilder) Set(key string, value any) *EnvelopeBuilder {
	b.doc[key] = value
	return b
}

func (b *EnvelopeBuilder) Without(key string) *EnvelopeBuilder {
	delete(b.doc, key)
	return b
}

// Signed sets the token a expects from the current account and login at now.
func (b *EnvelopeBuilder) Signed(a *auth.Authenticator, now time.Time) *EnvelopeBuilder {
	account, _ := b.doc["account"].(string)
	login, _ := b.doc["login"].(string)
	b.doc["token"] = a.Token(account, login, now)
	return b
}

func (b *EnvelopeBuilder) Document() schema.Document {
	return schema.Document(maps.Clone(b.doc))
}

// JSON encodes the envelope; it panics on values json cannot encode.
func (b *EnvelopeBuilder) JSON() []byte {
	raw, err := json.Marshal(b.doc)
	if err != nil {
		panic(err)
	}
	return raw
}
