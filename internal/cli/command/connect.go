package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/cli/connection"
	"github.com/kubedash/kubedash-go/internal/cli/output"
)

// ConnectCommand returns the connect command.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Connect to a dashboard backend",
		ArgsUsage: "[SERVER]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Save the server as a named profile",
			},
			&cli.BoolFlag{
				Name:  "no-probe",
				Usage: "Skip the health check",
			},
		},
		Action: connectAction,
	}
}

func connectAction(c *cli.Context) error {
	env := envFrom(c)
	server := c.Args().First()
	if server == "" {
		server = ParseGlobalFlags(c).Server
	}
	if server == "" {
		return fmt.Errorf("SERVER is required")
	}

	if !env.Config.Mock && !c.Bool("no-probe") {
		ctx, cancel := context.WithTimeout(c.Context, env.Config.API.Timeout.Std())
		defer cancel()
		client, err := env.httpClient()
		if err != nil {
			return err
		}
		if err := connection.Probe(ctx, client, server); err != nil {
			return fmt.Errorf("connect failed: %w", err)
		}
	}

	conn, err := env.Profiles.Connect(c.String("name"), server)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	if conn.Name != "" {
		return p.Message(conn, "Connected to %s (profile %s)", conn.Server, conn.Name)
	}
	return p.Message(conn, "Connected to %s", conn.Server)
}

// DisconnectCommand returns the disconnect command.
func DisconnectCommand() *cli.Command {
	return &cli.Command{
		Name:   "disconnect",
		Usage:  "Deactivate the current profile and return to the default server",
		Action: disconnectAction,
	}
}

func disconnectAction(c *cli.Context) error {
	env := envFrom(c)
	p, err := printer(c)
	if err != nil {
		return err
	}
	if !env.Profiles.IsConnected() {
		return p.Message(map[string]bool{"disconnected": false}, "No active profile")
	}
	if err := env.Profiles.Disconnect(); err != nil {
		return err
	}
	return p.Message(map[string]bool{"disconnected": true}, "Disconnected, using %s", env.Config.ServerURL())
}

// ProfilesCommand returns the profiles command group.
func ProfilesCommand() *cli.Command {
	return &cli.Command{
		Name:    "profiles",
		Aliases: []string{"profile"},
		Usage:   "List and switch saved connection profiles",
		Action:  profilesList,
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List saved profiles",
				Action:  profilesList,
			},
			{
				Name:      "use",
				Usage:     "Activate a saved profile",
				ArgsUsage: "NAME",
				Action:    profilesUse,
			},
			{
				Name:      "remove",
				Aliases:   []string{"rm"},
				Usage:     "Delete a saved profile",
				ArgsUsage: "NAME",
				Action:    profilesRemove,
			},
		},
	}
}

func profilesList(c *cli.Context) error {
	env := envFrom(c)
	profiles := env.Profiles.Profiles()
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("", "NAME", "SERVER", "TENANT")
	for _, conn := range profiles {
		marker := ""
		if conn.Active {
			marker = "*"
		}
		t.AddRow(marker, conn.Name, conn.Server, conn.Tenant)
	}
	return p.Print(profiles, t)
}

func profilesUse(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	conn, err := envFrom(c).Profiles.Use(name)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(conn, "Using profile %s (%s)", conn.Name, conn.Server)
}

func profilesRemove(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	if err := envFrom(c).Profiles.Remove(name); err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"removed": name}, "Profile %s removed", name)
}
