package command

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/cli/output"
	"github.com/kubedash/kubedash-go/internal/core/domain"
)

// UserCommand returns the user subcommand group.
func UserCommand() *cli.Command {
	return &cli.Command{
		Name:    "user",
		Aliases: []string{"users"},
		Usage:   "Manage users of the current tenant",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List users",
				Action:  userList,
			},
			{
				Name:      "invite",
				Usage:     "Invite a user",
				ArgsUsage: "EMAIL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Usage: "Role: admin, developer, viewer", Value: string(domain.RoleViewer)},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Display name"},
					&cli.StringFlag{Name: "tenant", Aliases: []string{"t"}, Usage: "Tenant (current tenant when omitted)"},
				},
				Action: userInvite,
			},
			{
				Name:      "delete",
				Usage:     "Remove a user",
				ArgsUsage: "USER_ID",
				Flags:     []cli.Flag{forceFlag},
				Action:    userDelete,
			},
		},
	}
}

func userList(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	users, err := svc.Dashboard.ListUsers(c.Context)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("ID", "EMAIL", "NAME", "ROLE", "TENANT")
	for _, u := range users {
		t.AddRow(u.ID, u.Email, u.Name, string(u.Role), u.TenantID)
	}
	return p.Print(users, t)
}

func userInvite(c *cli.Context) error {
	email, err := requireArg(c, 0, "EMAIL")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	tenant := c.String("tenant")
	if tenant == "" {
		tenant = svc.Auth.CurrentTenant()
	}
	u, err := svc.Dashboard.InviteUser(c.Context, domain.InviteUserRequest{
		Email:    email,
		Name:     c.String("name"),
		Role:     domain.Role(c.String("role")),
		TenantID: tenant,
	})
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(u, "Invited %s as %s (%s)", u.Email, u.Role, u.ID)
}

func userDelete(c *cli.Context) error {
	id, err := requireArg(c, 0, "USER_ID")
	if err != nil {
		return err
	}
	if !confirm(c, c.Bool("force"), "Remove user %s?", id) {
		return errAborted
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	if err := svc.Dashboard.DeleteUser(c.Context, id); err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"deleted": id}, "User %s removed", id)
}

var auditFilterFlags = []cli.Flag{
	&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "Only entries by this user"},
	&cli.StringFlag{Name: "action", Aliases: []string{"a"}, Usage: "Only entries with this action, e.g. cluster.create"},
	&cli.DurationFlag{Name: "since", Usage: "Only entries newer than this, e.g. 24h"},
	&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum number of entries (0 for all)"},
}

// AuditCommand returns the audit subcommand group.
func AuditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Query the audit trail (admin only)",
		Subcommands: []*cli.Command{
			{
				Name:   "logs",
				Usage:  "List audit entries, newest first",
				Flags:  auditFilterFlags,
				Action: auditLogs,
			},
			{
				Name:  "export",
				Usage: "Export audit entries as JSON or CSV",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format: json, csv", Value: "json"},
					&cli.StringFlag{Name: "out", Usage: "Write to file instead of stdout"},
				}, auditFilterFlags...),
				Action: auditExport,
			},
		},
	}
}

func auditQuery(c *cli.Context) domain.AuditQuery {
	q := domain.AuditQuery{
		User:   c.String("user"),
		Action: c.String("action"),
		Limit:  c.Int("limit"),
	}
	if since := c.Duration("since"); since > 0 {
		q.Since = time.Now().Add(-since)
	}
	return q
}

func auditLogs(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	logs, err := svc.Dashboard.AuditLogs(c.Context, auditQuery(c))
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("TIME", "USER", "ACTION", "STATUS", "DESCRIPTION").WithWide("ID", "TENANT")
	for _, l := range logs {
		t.AddRow(l.Timestamp.Local().Format("2006-01-02 15:04:05"), l.User, l.Action, l.Status, l.Description, l.ID, l.TenantID)
	}
	return p.Print(logs, t)
}

func auditExport(c *cli.Context) error {
	q := auditQuery(c)
	q.Format = c.String("format")

	svc, err := session(c)
	if err != nil {
		return err
	}
	exp, err := svc.Dashboard.ExportAudit(c.Context, q)
	if err != nil {
		return err
	}

	out := c.String("out")
	if out == "" {
		_, err := fmt.Fprint(c.App.Writer, exp.Content)
		return err
	}
	if err := os.WriteFile(out, []byte(exp.Content), 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(c.App.ErrWriter, "Exported %d audit entries (%s) to %s\n", exp.Count, exp.Format, out)
	return nil
}

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show a dashboard overview",
		Action: stats,
	}
}

func stats(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	s, err := svc.Dashboard.Stats(c.Context)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("METRIC", "VALUE")
	t.AddRow("clusters", fmt.Sprintf("%d (%d running)", s.Clusters, s.RunningClusters))
	t.AddRow("nodes", fmt.Sprint(s.Nodes))
	t.AddRow("pods", fmt.Sprint(s.Pods))
	t.AddRow("deployments", fmt.Sprint(s.Deployments))
	t.AddRow("users", fmt.Sprint(s.Users))
	return p.Print(s, t)
}
