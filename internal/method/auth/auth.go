// Package auth checks the per-call token of the method endpoint.
//
// Regular callers sign with sha512(account + login + salt). The admin login
// signs with sha512(YYYYMMDDHH + adminSalt), so admin tokens rotate hourly.
package auth

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"scoring/internal/method/models"
	"scoring/pkg/requestcontext"
)

const (
	DefaultSalt      = "Otus"
	DefaultAdminSalt = "42"

	// adminHourLayout formats the admin token's hour stamp (YYYYMMDDHH).
	adminHourLayout = "2006010215"
)

// Authenticator derives expected tokens and compares them with supplied ones.
type Authenticator struct {
	salt      string
	adminSalt string
}

// Option configures an Authenticator.
type Option func(*Authenticator)

func WithSalt(salt string) Option {
	return func(a *Authenticator) {
		if salt != "" {
			a.salt = salt
		}
	}
}

func WithAdminSalt(salt string) Option {
	return func(a *Authenticator) {
		if salt != "" {
			a.adminSalt = salt
		}
	}
}

func New(opts ...Option) *Authenticator {
	a := &Authenticator{
		salt:      DefaultSalt,
		adminSalt: DefaultAdminSalt,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check reports whether cred carries the token expected at the request time
// found in ctx.
func (a *Authenticator) Check(ctx context.Context, cred models.Credential) bool {
	expected := a.Token(cred.Account, cred.Login, requestcontext.Now(ctx))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(cred.Token)) == 1
}

// Token returns the hex digest a caller must present at time now.
func (a *Authenticator) Token(account, login string, now time.Time) string {
	if login == models.AdminLogin {
		return Digest(now.Format(adminHourLayout) + a.adminSalt)
	}
	return Digest(account + login + a.salt)
}

// Digest is the lowercase hex sha512 of s.
func Digest(s string) string {
	sum := sha512.Sum512([]byte(s))
	return hex.EncodeToString(sum[:])
}
