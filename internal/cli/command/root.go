package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/cli/config"
	"github.com/kubedash/kubedash-go/internal/cli/connection"
	"github.com/kubedash/kubedash-go/internal/cli/output"
	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/infra/buildinfo"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

// Metadata keys on cli.App.
const (
	metaEnv   = "env"
	metaOwned = "env_owned"
)

var errAborted = errors.New("aborted")

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "kubedash-cli",
		Usage:                "Kubernetes multi-cluster dashboard client",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Metadata:             make(map[string]any),
		Commands: []*cli.Command{
			LoginCommand(),
			LogoutCommand(),
			WhoamiCommand(),
			TenantCommand(),
			ClusterCommand(),
			NamespaceCommand(),
			QuotaCommand(),
			RBACCommand(),
			DeploymentCommand(),
			UserCommand(),
			AuditCommand(),
			StatsCommand(),
			StorageCommand(),
			ConfigCommand(),
			ConnectCommand(),
			DisconnectCommand(),
			ProfilesCommand(),
			ShellCommand(),
			MockCommand(),
			VersionCommand(),
		},
		Before: before,
		After:  after,
		// Errors are reported by the caller; never exit from inside Run.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Dashboard API base URL (e.g., http://localhost:8000/api)",
			EnvVars: []string{"KUBEDASH_SERVER"},
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the CLI config file",
			EnvVars: []string{"KUBEDASH_CONFIG"},
			Value:   config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:  "mock",
			Usage: "Serve requests from the built-in fixture backend",
		},
		&cli.StringFlag{
			Name:  "storage-dir",
			Usage: "Directory of the local session store",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Server     string
	Config     string
	Output     string
	Wide       bool
	Verbose    bool
	Mock       bool
	StorageDir string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Server:     c.String("server"),
		Config:     c.String("config"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
		Verbose:    c.Bool("verbose"),
		Mock:       c.Bool("mock"),
		StorageDir: c.String("storage-dir"),
	}
}

// overrides maps the flags the user actually set to config keys.
func overrides(c *cli.Context, f *GlobalFlags) map[string]any {
	m := make(map[string]any)
	if c.IsSet("server") {
		m["server"] = connection.NormalizeServer(f.Server)
		// An explicit server wins over the active profile.
		m["profile"] = ""
	}
	if c.IsSet("output") {
		m["output"] = f.Output
	}
	if c.IsSet("mock") {
		m["mock"] = f.Mock
	}
	if c.IsSet("storage-dir") {
		m["storage.dir"] = f.StorageDir
	}
	if f.Verbose {
		m["log.level"] = "debug"
	}
	return m
}

// before loads the configuration and installs the Env unless one was
// handed in by a shell session or a test.
func before(c *cli.Context) error {
	if _, ok := c.App.Metadata[metaEnv].(*Env); ok {
		return nil
	}

	flags := ParseGlobalFlags(c)
	cfg, err := config.Load(flags.Config, overrides(c, flags))
	if err != nil {
		return err
	}
	errOut := c.App.ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Backend: cfg.Log.Backend,
		Output:  errOut,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	c.App.Metadata[metaEnv] = NewEnv(cfg, flags.Config, log)
	c.App.Metadata[metaOwned] = true
	return nil
}

func after(c *cli.Context) error {
	owned, _ := c.App.Metadata[metaOwned].(bool)
	env, ok := c.App.Metadata[metaEnv].(*Env)
	if !owned || !ok {
		return nil
	}
	return env.Close(context.Background())
}

// envFrom returns the Env installed by before.
func envFrom(c *cli.Context) *Env {
	env, ok := c.App.Metadata[metaEnv].(*Env)
	if !ok {
		panic("command: environment not initialised")
	}
	return env
}

// printer returns a printer honouring --output and --wide, falling back
// to the configured output format.
func printer(c *cli.Context) (*output.Printer, error) {
	name := c.String("output")
	if name == "" {
		name = envFrom(c).Config.Output
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(c.App.Writer, format, c.Bool("wide")), nil
}

// session returns the services with an authenticated session.
func session(c *cli.Context) (*Services, error) {
	return envFrom(c).Session(c.Context)
}

// services returns the services without requiring a session.
func services(c *cli.Context) (*Services, error) {
	return envFrom(c).Services(c.Context)
}

// requireArg returns the positional argument at i.
func requireArg(c *cli.Context, i int, name string) (string, error) {
	v := strings.TrimSpace(c.Args().Get(i))
	if v == "" {
		return "", domain.ErrInvalidArgument.WithDetails(name + " is required")
	}
	return v, nil
}

// FormatError renders err for the terminal.
func FormatError(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		if de.Details != "" {
			return de.Message + " (" + de.Details + ")"
		}
		return de.Message
	}
	return err.Error()
}

// commandPaths lists "cmd" and "cmd sub" for every visible command.
func commandPaths(cmds []*cli.Command) []string {
	var paths []string
	var walk func(prefix string, cmds []*cli.Command)
	walk = func(prefix string, cmds []*cli.Command) {
		for _, cmd := range cmds {
			if cmd.Hidden {
				continue
			}
			p := strings.TrimSpace(prefix + " " + cmd.Name)
			paths = append(paths, p)
			walk(p, cmd.Subcommands)
		}
	}
	walk("", cmds)
	sort.Strings(paths)
	return paths
}

// confirm asks a yes/no question on the app's reader unless force.
func confirm(c *cli.Context, force bool, format string, args ...any) bool {
	if force {
		return true
	}
	fmt.Fprintf(c.App.ErrWriter, format+" [y/N]: ", args...)
	var answer string
	fmt.Fscanln(reader(c), &answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func reader(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return os.Stdin
}
