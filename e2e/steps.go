package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"scoring/internal/scoring"
	"scoring/internal/store"
	pstrings "scoring/pkg/platform/strings"
	fixtures "scoring/pkg/testutil"
)

const methodPath = "/method/"

// RegisterSteps wires every step definition to tc.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Environment
	ctx.Step(`^the scoring API is running$`, tc.apiIsRunning)
	ctx.Step(`^the current time is "([^"]*)"$`, tc.currentTimeIs)
	ctx.Step(`^client (\d+) has interests "([^"]*)"$`, tc.clientHasInterests)
	ctx.Step(`^client (\d+) has the stored interests document:$`, tc.clientHasDocument)

	// Envelope
	ctx.Step(`^a "([^"]*)" request$`, tc.aRequest)
	ctx.Step(`^a "([^"]*)" request from login "([^"]*)"$`, tc.aRequestFromLogin)
	ctx.Step(`^the request arguments are:$`, tc.requestArgumentsAre)
	ctx.Step(`^the request is signed$`, tc.requestIsSigned)
	ctx.Step(`^the request token is "([^"]*)"$`, tc.requestTokenIs)
	ctx.Step(`^the request has no "([^"]*)" field$`, tc.requestHasNoField)

	// Transport
	ctx.Step(`^I send the request$`, tc.sendRequest)
	ctx.Step(`^I post the raw body "([^"]*)"$`, tc.postRawBody)
	ctx.Step(`^I GET "([^"]*)"$`, tc.GET)

	// Assertions
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should be:$`, tc.responseShouldBe)
	ctx.Step(`^the response error should be "([^"]*)"$`, tc.responseErrorShouldBe)
	ctx.Step(`^the response error should be '([^']*)'$`, tc.responseErrorShouldBe)
	ctx.Step(`^the response body should contain "([^"]*)"$`, tc.responseBodyShouldContain)
	ctx.Step(`^the response header "([^"]*)" should not be empty$`, tc.responseHeaderShouldNotBeEmpty)
	ctx.Step(`^the score for phone "([^"]*)" should be cached as "([^"]*)"$`, tc.scoreShouldBeCached)
}

func (tc *TestContext) requireInProcess() error {
	if !tc.InProcess() {
		return godog.ErrSkip
	}
	return nil
}

func (tc *TestContext) apiIsRunning() error {
	if err := tc.GET("/health/live"); err != nil {
		return err
	}
	return tc.responseStatusShouldBe(200)
}

func (tc *TestContext) currentTimeIs(value string) error {
	if err := tc.requireInProcess(); err != nil {
		return err
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", value, time.Local)
	if err != nil {
		return fmt.Errorf("parse time %q: %w", value, err)
	}
	tc.SetNow(t)
	return nil
}

func (tc *TestContext) clientHasInterests(id int64, list string) error {
	if err := tc.requireInProcess(); err != nil {
		return err
	}
	interests := pstrings.SplitList(list)
	return store.SeedInterests(context.Background(), tc.Store, map[int64][]string{id: interests})
}

func (tc *TestContext) clientHasDocument(id int64, doc *godog.DocString) error {
	if err := tc.requireInProcess(); err != nil {
		return err
	}
	return tc.Store.Set(context.Background(), store.InterestsKey(id), doc.Content, 0)
}

func (tc *TestContext) aRequest(method string) error {
	tc.Envelope = fixtures.NewEnvelope(method)
	return nil
}

func (tc *TestContext) aRequestFromLogin(method, login string) error {
	tc.Envelope = fixtures.NewEnvelope(method).WithLogin(login)
	return nil
}

func (tc *TestContext) requestArgumentsAre(doc *godog.DocString) error {
	dec := json.NewDecoder(strings.NewReader(doc.Content))
	dec.UseNumber()
	var args any
	if err := dec.Decode(&args); err != nil {
		return fmt.Errorf("arguments are not JSON: %w", err)
	}
	tc.Envelope.Set("arguments", args)
	return nil
}

func (tc *TestContext) requestIsSigned() error {
	tc.Envelope.Signed(tc.Auth, tc.Now())
	return nil
}

func (tc *TestContext) requestTokenIs(token string) error {
	tc.Envelope.WithToken(token)
	return nil
}

func (tc *TestContext) requestHasNoField(field string) error {
	tc.Envelope.Without(field)
	return nil
}

func (tc *TestContext) sendRequest() error {
	if tc.Envelope == nil {
		return fmt.Errorf("no request prepared")
	}
	return tc.POST(methodPath, tc.Envelope.JSON(), nil)
}

func (tc *TestContext) postRawBody(body string) error {
	return tc.POST(methodPath, []byte(body), nil)
}

func (tc *TestContext) responseStatusShouldBe(expected int) error {
	if got := tc.GetLastResponseStatus(); got != expected {
		return fmt.Errorf("expected status %d, got %d. Body: %s", expected, got, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseShouldBe(doc *godog.DocString) error {
	var want, got any
	if err := json.Unmarshal([]byte(doc.Content), &want); err != nil {
		return fmt.Errorf("expected body is not JSON: %w", err)
	}
	if err := json.Unmarshal(tc.LastResponseBody, &got); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("expected response %s, got %s", strings.TrimSpace(doc.Content), string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseErrorShouldBe(expected string) error {
	value, err := tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if value != expected {
		return fmt.Errorf("expected error %q, got %v", expected, value)
	}
	return nil
}

func (tc *TestContext) responseBodyShouldContain(fragment string) error {
	if !bytes.Contains(tc.LastResponseBody, []byte(fragment)) {
		return fmt.Errorf("expected body to contain %q, got %s", fragment, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseHeaderShouldNotBeEmpty(name string) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no response received")
	}
	if tc.LastResponse.Header.Get(name) == "" {
		return fmt.Errorf("expected header %s to be set", name)
	}
	return nil
}

func (tc *TestContext) scoreShouldBeCached(phone, expected string) error {
	if err := tc.requireInProcess(); err != nil {
		return err
	}
	key, ok := scoring.CacheKey(scoring.ScoreInput{Phone: phone})
	if !ok {
		return fmt.Errorf("no cache key for phone %q", phone)
	}
	raw, err := tc.Store.Get(context.Background(), key)
	if err != nil {
		return fmt.Errorf("score not cached: %w", err)
	}
	if _, err := strconv.ParseFloat(raw, 64); err != nil || raw != expected {
		return fmt.Errorf("expected cached score %q, got %q", expected, raw)
	}
	return nil
}
