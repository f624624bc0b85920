package command

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/cli/config"
	"github.com/kubedash/kubedash-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "CLI configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: configShow,
			},
			{
				Name:   "path",
				Usage:  "Print the configuration file path",
				Action: configPath,
			},
			{
				Name:      "set",
				Usage:     "Set a configuration value and save it",
				ArgsUsage: "KEY VALUE",
				Action:    configSet,
			},
			{
				Name:   "keys",
				Usage:  "List the keys accepted by set",
				Action: configKeys,
			},
			{
				Name:   "validate",
				Usage:  "Validate the effective configuration",
				Action: configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	env := envFrom(c)
	p, err := printer(c)
	if err != nil {
		return err
	}
	redacted := env.Config.Redacted()
	if p.Structured() {
		return p.Print(redacted, nil)
	}
	return output.NewFormatter(output.FormatYAML, false).Format(c.App.Writer, redacted)
}

func configPath(c *cli.Context) error {
	_, err := fmt.Fprintln(c.App.Writer, envFrom(c).ConfigPath)
	return err
}

func configSet(c *cli.Context) error {
	key, err := requireArg(c, 0, "KEY")
	if err != nil {
		return err
	}
	if c.NArg() < 2 {
		return fmt.Errorf("VALUE is required; keys: %s", strings.Join(config.Keys(), ", "))
	}
	value := c.Args().Get(1)

	env := envFrom(c)
	cfg, err := config.Load(env.ConfigPath, nil)
	if err != nil {
		return err
	}
	if err := cfg.Set(key, value); err != nil {
		return err
	}
	if err := config.Save(cfg, env.ConfigPath); err != nil {
		return err
	}
	// Keep the running session in step, e.g. inside the shell.
	_ = env.Config.Set(key, value)

	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"key": strings.ToLower(key), "value": value}, "Set %s = %s", strings.ToLower(key), value)
}

func configKeys(c *cli.Context) error {
	p, err := printer(c)
	if err != nil {
		return err
	}
	keys := config.Keys()
	t := output.NewTable("KEY")
	for _, k := range keys {
		t.AddRow(k)
	}
	return p.Print(keys, t)
}

func configValidate(c *cli.Context) error {
	env := envFrom(c)
	if err := env.Config.Validate(); err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]bool{"valid": true}, "Configuration %s is valid", env.ConfigPath)
}
