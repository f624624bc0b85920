package command

import (
	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			p, err := printer(c)
			if err != nil {
				return err
			}
			info := buildinfo.Get()
			return p.Message(info, "kubedash-cli %s (%s) built at %s, %s %s",
				info.Version, info.Commit, info.BuildTime, info.GoVersion, info.Platform)
		},
	}
}
