package e2e

import (
	"context"
	"flag"
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
)

var opts = godog.Options{
	Output: colors.Colored(os.Stdout),
	Format: "pretty",
	Paths:  []string{"features"},
}

func init() {
	godog.BindCommandLineFlags("godog.", &opts)
}

func TestFeatures(t *testing.T) {
	if !flag.Parsed() {
		flag.Parse()
	}
	opts.TestingT = t

	status := godog.TestSuite{
		Name:                "scoring",
		ScenarioInitializer: InitializeScenario,
		Options:             &opts,
	}.Run()

	if status != 0 {
		t.Fatalf("godog suite failed with status %d", status)
	}
}

// InitializeScenario runs once per scenario, so each scenario starts from an
// empty store.
func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := NewTestContext()

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.Close()
		return ctx, nil
	})

	RegisterSteps(ctx, tc)
}
