package functional

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cucumber/godog"

	"github.com/zerobrew/zerobrew/internal/formula"
)

type stateKeyType struct{}

var stateKey = stateKeyType{}

type testState struct {
	homeDir  string
	binPath  string
	indexURL string
	stdout   string
	stderr   string
	exitCode int
}

func getState(ctx context.Context) *testState {
	if s, ok := ctx.Value(stateKey).(*testState); ok {
		return s
	}
	return nil
}

func setState(ctx context.Context, s *testState) context.Context {
	return context.WithValue(ctx, stateKey, s)
}

func TestFeatures(t *testing.T) {
	binPath := os.Getenv("ZEROBREW_TEST_BINARY")
	if binPath == "" {
		t.Skip("ZEROBREW_TEST_BINARY not set; run via 'make test-functional'")
	}

	absBin, err := filepath.Abs(binPath)
	if err != nil {
		t.Fatalf("resolving binary path: %v", err)
	}
	binPath = absBin

	opts := &godog.Options{
		Format:   "pretty",
		Paths:    []string{"features"},
		TestingT: t,
	}
	if tags := os.Getenv("ZEROBREW_TEST_TAGS"); tags != "" {
		opts.Tags = tags
	}

	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			initializeScenario(ctx, binPath)
		},
		Options: opts,
	}
	if suite.Run() != 0 {
		t.Fatal("functional tests failed")
	}
}

func initializeScenario(ctx *godog.ScenarioContext, binPath string) {
	var srv *fixtureServer

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		homeDir, err := os.MkdirTemp("", "zerobrew-test-*")
		if err != nil {
			return ctx, err
		}

		tag := currentPlatformTag()
		srv = newFixtureServer()

		jq := jqRecord(srv, tag, "1.7.1")
		foo, bar := fooBarRecords(srv, tag)
		srv.serveIndex([]*formula.Record{jq, foo, bar})

		state := &testState{
			homeDir:  homeDir,
			binPath:  binPath,
			indexURL: srv.indexURL(),
		}
		return setState(ctx, state), nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		state := getState(ctx)
		if state != nil {
			os.RemoveAll(state.homeDir)
		}
		if srv != nil {
			srv.Close()
		}
		return ctx, nil
	})

	ctx.Step(`^a clean zerobrew environment$`, aCleanZerobrewEnvironment)
	ctx.Step(`^a file named "([^"]*)" with:$`, aFileNamedWith)
	ctx.Step(`^I run "([^"]*)"$`, iRun)
	ctx.Step(`^the exit code is (\d+)$`, theExitCodeIs)
	ctx.Step(`^the exit code is not (\d+)$`, theExitCodeIsNot)
	ctx.Step(`^the output contains "([^"]*)"$`, theOutputContains)
	ctx.Step(`^the output does not contain "([^"]*)"$`, theOutputDoesNotContain)
	ctx.Step(`^the error output contains "([^"]*)"$`, theErrorOutputContains)
	ctx.Step(`^the file "([^"]*)" exists$`, theFileExists)
	ctx.Step(`^the file "([^"]*)" is a symlink to "([^"]*)"$`, theFileIsASymlinkTo)
	ctx.Step(`^the file "([^"]*)" does not exist$`, theFileDoesNotExist)
}
