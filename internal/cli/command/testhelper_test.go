package command

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kubedash/kubedash-go/internal/cli/config"
	"github.com/kubedash/kubedash-go/internal/mock"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

// newTestEnv returns an Env backed by the fixture backend and an
// in-memory store, with its config file in a temp dir.
func newTestEnv(t *testing.T) *Env {
	t.Helper()
	cfg := config.Default()
	cfg.Mock = true
	cfg.Storage.Engine = config.EngineMemory
	cfg.Storage.Dir = t.TempDir()

	env := NewEnv(cfg, filepath.Join(t.TempDir(), "cli.yaml"), logger.Nop())
	t.Cleanup(func() { env.Close(context.Background()) })
	return env
}

// run executes args against env and returns stdout.
func run(t *testing.T, env *Env, args ...string) (string, error) {
	t.Helper()
	return runInput(t, env, "", args...)
}

// runInput is run with input on the app's reader.
func runInput(t *testing.T, env *Env, input string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Metadata[metaEnv] = env
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(input)
	err := app.RunContext(context.Background(), append([]string{app.Name}, args...))
	return out.String(), err
}

// mustRun fails the test when the command fails.
func mustRun(t *testing.T, env *Env, args ...string) string {
	t.Helper()
	out, err := run(t, env, args...)
	if err != nil {
		t.Fatalf("%s: %v", strings.Join(args, " "), err)
	}
	return out
}

// loggedIn returns a test Env with a session for email.
func loggedIn(t *testing.T, email string) *Env {
	t.Helper()
	env := newTestEnv(t)
	mustRun(t, env, "login", "-u", email, "-p", mock.Password)
	return env
}
