package command

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/infra/buildinfo"
)

func TestApp(t *testing.T) {
	app := App()
	if app.Name != "kubedash-cli" {
		t.Errorf("Name = %q, want %q", app.Name, "kubedash-cli")
	}
	if app.Usage == "" {
		t.Error("Usage should not be empty")
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	required := []string{
		"login", "logout", "whoami", "tenant", "cluster", "namespace", "quota", "rbac",
		"deployment", "user", "audit", "stats", "storage", "config", "connect",
		"disconnect", "profiles", "shell", "mock", "version",
	}
	for _, name := range required {
		if !names[name] {
			t.Errorf("missing command: %s", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	app := App()

	flagNames := make(map[string]bool)
	for _, flag := range app.Flags {
		flagNames[flag.Names()[0]] = true
	}
	for _, name := range []string{"server", "config", "output", "wide", "verbose", "mock", "storage-dir"} {
		if !flagNames[name] {
			t.Errorf("missing global flag: %s", name)
		}
	}
}

func TestApp_BeforeLoadsConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	var out bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &bytes.Buffer{}

	err := app.RunContext(context.Background(), []string{app.Name,
		"--config", path, "--mock", "--storage-dir", t.TempDir(), "-o", "json", "version"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var info buildinfo.Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version output %q: %v", out.String(), err)
	}
	if info.Version != buildinfo.Version {
		t.Errorf("version = %q, want %q", info.Version, buildinfo.Version)
	}

	env, ok := app.Metadata[metaEnv].(*Env)
	if !ok {
		t.Fatal("Before did not install an Env")
	}
	if env.ConfigPath != path || !env.Config.Mock || env.Config.Output != "json" {
		t.Errorf("env = %+v, config = %+v", env, env.Config)
	}
}

func TestApp_VerboseAndServerOverrides(t *testing.T) {
	app := App()
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.RunContext(context.Background(), []string{app.Name,
		"--config", filepath.Join(t.TempDir(), "cli.yaml"),
		"--server", "dash.example.com/api/", "-V", "version"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	cfg := app.Metadata[metaEnv].(*Env).Config
	if cfg.Server != "http://dash.example.com/api" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	env := newTestEnv(t)
	if _, err := run(t, env, "-o", "xml", "version"); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	for _, args := range [][]string{
		{"cluster", "list"},
		{"whoami"},
		{"stats"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := run(t, env, args...)
			if !errors.Is(err, domain.ErrNotAuthenticated) {
				t.Errorf("error = %v, want ErrNotAuthenticated", err)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", errors.New("boom"), "boom"},
		{"domain", domain.ErrNotFound, domain.ErrNotFound.Message},
		{"domain with details", domain.ErrNotFound.WithDetails("tenant x"), domain.ErrNotFound.Message + " (tenant x)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatError(tt.err); got != tt.want {
				t.Errorf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandPaths(t *testing.T) {
	paths := commandPaths([]*cli.Command{
		{Name: "cluster", Subcommands: []*cli.Command{{Name: "list"}, {Name: "get"}}},
		{Name: "hidden", Hidden: true},
		{Name: "stats"},
	})
	want := []string{"cluster", "cluster get", "cluster list", "stats"}
	if !slices.Equal(paths, want) {
		t.Errorf("commandPaths() = %q, want %q", paths, want)
	}
}

func TestConfirm(t *testing.T) {
	env := newTestEnv(t)
	for _, tt := range []struct {
		input   string
		wantErr bool
	}{
		{"y\n", false},
		{"yes\n", false},
		{"n\n", true},
		{"", true},
	} {
		t.Run(tt.input, func(t *testing.T) {
			_, err := runInput(t, env, tt.input, "storage", "clear")
			if (err != nil) != tt.wantErr {
				t.Errorf("storage clear with %q: error = %v", tt.input, err)
			}
		})
	}
}

func TestParsePairs(t *testing.T) {
	tests := []struct {
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{nil, nil, false},
		{[]string{"team=payments", " env = prod "}, map[string]string{"team": "payments", "env": "prod"}, false},
		{[]string{"empty="}, map[string]string{"empty": ""}, false},
		{[]string{"novalue"}, nil, true},
		{[]string{"=x"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.in, ","), func(t *testing.T) {
			got, err := parsePairs(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePairs() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsePairs() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
