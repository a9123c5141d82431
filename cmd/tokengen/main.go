// Package main prints a token the scoring API accepts for an account and
// login. Admin tokens are valid until the end of the current hour.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"scoring/internal/method/auth"
	"scoring/internal/method/models"
)

type tokenOutput struct {
	Account    string `json:"account,omitempty"`
	Login      string `json:"login"`
	Token      string `json:"token"`
	ValidUntil string `json:"valid_until,omitempty"`
}

func main() {
	if err := run(os.Stdout, os.Args[1:], time.Now()); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run(w io.Writer, args []string, now time.Time) error {
	fs := pflag.NewFlagSet("tokengen", pflag.ContinueOnError)
	account := fs.StringP("account", "a", "", "account name")
	login := fs.StringP("login", "u", "", "login; \"admin\" produces an hourly admin token")
	admin := fs.Bool("admin", false, "shorthand for --login admin")
	salt := fs.String("salt", envOr("SCORING_SALT", auth.DefaultSalt), "user token salt")
	adminSalt := fs.String("admin-salt", envOr("SCORING_ADMIN_SALT", auth.DefaultAdminSalt), "admin token salt")
	asJSON := fs.Bool("json", false, "print JSON instead of the bare token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *admin {
		*login = models.AdminLogin
	}
	if *login == "" {
		return errors.New("--login or --admin is required")
	}

	a := auth.New(auth.WithSalt(*salt), auth.WithAdminSalt(*adminSalt))
	cred := models.Credential{Account: *account, Login: *login}
	out := tokenOutput{
		Account: *account,
		Login:   *login,
		Token:   a.Token(*account, *login, now),
	}
	if cred.IsAdmin() {
		out.ValidUntil = now.Truncate(time.Hour).Add(time.Hour).Format(time.RFC3339)
	}

	if !*asJSON {
		fmt.Fprintln(w, out.Token)
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
