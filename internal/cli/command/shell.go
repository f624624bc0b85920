package command

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/cli/config"
	"github.com/kubedash/kubedash-go/internal/cli/repl"
	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/infra/confloader"
	"github.com/kubedash/kubedash-go/internal/infra/shutdown"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history-file",
				Usage: "History file (defaults to 'history' next to the config file)",
			},
		},
		Action: shellAction,
	}
}

type shell struct {
	env     *Env
	root    *cli.Context
	history *repl.History
}

func shellAction(c *cli.Context) error {
	env := envFrom(c)
	histFile := c.String("history-file")
	if histFile == "" {
		histFile = filepath.Join(filepath.Dir(env.ConfigPath), "history")
	}
	history := repl.NewHistory(histFile, repl.DefaultHistorySize)
	if err := history.Load(); err != nil {
		env.Logger.Warn("history not loaded", "file", histFile, "error", err)
	}

	sh := &shell{env: env, root: c, history: history}

	h := shutdown.NewHandler(0, env.Logger)
	h.OnShutdown("history", func(context.Context) error { return history.Save() })

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	if w := watchConfig(env); w != nil {
		go func() { _ = w.Run(ctx) }()
	}
	go func() {
		_ = h.Wait(ctx)
		cancel()
	}()

	r := repl.New(sh.exec,
		repl.WithIO(reader(c), c.App.Writer),
		repl.WithCompleter(repl.NewCompleter(commandPaths(App().Commands)...)),
		repl.WithHistory(history),
	)
	runErr := r.Run(ctx)
	cancel()

	err := errors.Join(runErr, h.Shutdown())
	if sh.env != env {
		err = errors.Join(err, sh.env.Close(context.Background()))
	}
	return err
}

// exec runs one shell line as a fresh app sharing the session's Env.
func (sh *shell) exec(ctx context.Context, args []string) error {
	if args[0] == "shell" {
		return errors.New("already in a shell")
	}

	prev := sh.target()
	app := App()
	app.Metadata[metaEnv] = sh.env
	app.Writer = sh.root.App.Writer
	app.ErrWriter = sh.root.App.ErrWriter
	// Prompts cannot share the REPL's input; destructive commands need --force.
	app.Reader = strings.NewReader("")

	err := app.RunContext(ctx, append([]string{app.Name}, args...))
	sh.remember(ctx, args)
	if sh.target() != prev {
		sh.reconnect(ctx)
	}
	if err != nil {
		return errors.New(FormatError(err))
	}
	return nil
}

func (sh *shell) target() string {
	if sh.env.Config.Mock {
		return "mock"
	}
	return sh.env.Config.ServerURL()
}

func (sh *shell) remember(ctx context.Context, args []string) {
	svc, err := sh.env.Services(ctx)
	if err != nil {
		return
	}
	if err := svc.Store.Set(ctx, domain.KeyLastCommand, strings.Join(args, " "), 0); err != nil {
		sh.env.Logger.Debug("last command not stored", "error", err)
	}
}

// reconnect replaces the Env after the backend changed so the next line
// talks to the new server.
func (sh *shell) reconnect(ctx context.Context) {
	old := sh.env
	if err := old.Close(ctx); err != nil {
		old.Logger.Warn("closing previous session", "error", err)
	}
	sh.env = NewEnv(old.Config, old.ConfigPath, old.Logger)
	old.Logger.Debug("backend changed", "target", sh.target())
}

// watchConfig follows the config file and applies log level changes
// while a long-running command is active. It returns nil when the file
// cannot be watched.
func watchConfig(env *Env) *confloader.Watcher {
	w, err := confloader.NewWatcher(env.Logger, env.ConfigPath)
	if err != nil {
		env.Logger.Debug("config watcher unavailable", "error", err)
		return nil
	}
	w.OnChange(func(path string) {
		cfg, err := config.Load(path, nil)
		if err != nil {
			env.Logger.Warn("config reload failed", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			env.Logger.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	return w
}
