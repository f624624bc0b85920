package command

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/kubedash/kubedash-go/internal/cli/output"
	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

// LoginCommand returns the login command.
func LoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in to the dashboard backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "email",
				Aliases: []string{"u"},
				Usage:   "Account email",
				EnvVars: []string{"KUBEDASH_EMAIL"},
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Account password (prompted when omitted)",
				EnvVars: []string{"KUBEDASH_PASSWORD"},
			},
		},
		Action: login,
	}
}

// LogoutCommand returns the logout command.
func LogoutCommand() *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "End the current session",
		Action: logout,
	}
}

// WhoamiCommand returns the whoami command.
func WhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the logged-in user",
		Action: whoami,
	}
}

// TenantCommand returns the tenant subcommand group.
func TenantCommand() *cli.Command {
	return &cli.Command{
		Name:  "tenant",
		Usage: "List and switch tenants",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List tenants",
				Action: tenantList,
			},
			{
				Name:      "switch",
				Usage:     "Make a tenant active",
				ArgsUsage: "TENANT_ID",
				Action:    tenantSwitch,
			},
			{
				Name:   "current",
				Usage:  "Show the active tenant",
				Action: tenantCurrent,
			},
		},
	}
}

func login(c *cli.Context) error {
	svc, err := services(c)
	if err != nil {
		return err
	}

	in := bufio.NewReader(reader(c))
	email := c.String("email")
	if email == "" {
		fmt.Fprint(c.App.ErrWriter, "Email: ")
		email, _ = in.ReadString('\n')
	}
	password := c.String("password")
	if password == "" {
		password, err = readPassword(c, in)
		if err != nil {
			return err
		}
	}

	res := svc.Auth.Login(c.Context, domain.Credentials{
		Email:    strings.TrimSpace(email),
		Password: strings.TrimRight(password, "\r\n"),
	})
	if !res.Success {
		return domain.ErrAuthFailed.WithDetails(res.Error)
	}

	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(res.User, "Logged in as %s (%s), tenant %s",
		res.User.Email, res.User.Role, svc.Auth.CurrentTenant())
}

// readPassword reads without echo from a terminal, otherwise one line.
func readPassword(c *cli.Context, in *bufio.Reader) (string, error) {
	fmt.Fprint(c.App.ErrWriter, "Password: ")
	if f, ok := reader(c).(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.App.ErrWriter)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", domain.ErrInvalidArgument.WithDetails("password is required")
	}
	return line, nil
}

func logout(c *cli.Context) error {
	svc, err := services(c)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	if !svc.Auth.IsAuthenticated() && !svc.Auth.Start(c.Context) {
		return p.Message(map[string]bool{"logged_out": true}, "Not logged in")
	}
	user := svc.Auth.CurrentUser()
	svc.Auth.Logout(c.Context)
	return p.Message(map[string]bool{"logged_out": true}, "Logged out %s", user.Email)
}

type whoamiView struct {
	domain.User `yaml:",inline"`
	Tenant      string    `json:"active_tenant" yaml:"active_tenant"`
	NextRefresh time.Time `json:"next_refresh,omitempty" yaml:"next_refresh,omitempty"`
	Server      string    `json:"server" yaml:"server"`
}

func whoami(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	env := envFrom(c)
	server := env.Config.ServerURL()
	if env.Config.Mock {
		server = "mock"
	}
	u := svc.Auth.CurrentUser()
	view := whoamiView{User: *u, Tenant: svc.Auth.CurrentTenant(), NextRefresh: svc.Auth.NextRefresh(), Server: server}

	t := output.NewTable("FIELD", "VALUE")
	t.AddRow("email", u.Email)
	t.AddRow("name", u.Name)
	t.AddRow("role", string(u.Role))
	t.AddRow("tenant", view.Tenant)
	t.AddRow("permissions", strings.Join(u.Permissions, ","))
	t.AddRow("server", server)
	if tok := svc.Auth.Token(c.Context); tok != "" {
		t.AddRow("token", logger.MaskToken(tok))
	}
	if !view.NextRefresh.IsZero() {
		t.AddRow("token refresh", view.NextRefresh.Local().Format(time.RFC3339))
	}
	return p.Print(view, t)
}

func tenantList(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	tenants, err := svc.Dashboard.ListTenants(c.Context)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	current := svc.Auth.CurrentTenant()
	t := output.NewTable("", "ID", "NAME", "DESCRIPTION")
	for _, tn := range tenants {
		marker := ""
		if tn.ID == current {
			marker = "*"
		}
		t.AddRow(marker, tn.ID, tn.Name, tn.Description)
	}
	return p.Print(tenants, t)
}

func tenantSwitch(c *cli.Context) error {
	id, err := requireArg(c, 0, "TENANT_ID")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}

	tenants, err := svc.Dashboard.ListTenants(c.Context)
	if err != nil {
		return err
	}
	found := false
	for _, tn := range tenants {
		if tn.ID == id {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrNotFound.WithDetails("tenant " + id)
	}

	if err := svc.Auth.SwitchTenant(c.Context, id); err != nil {
		return err
	}
	if err := envFrom(c).Profiles.SetTenant(id); err != nil {
		envFrom(c).Logger.Warn("tenant not saved to profile", "error", err)
	}

	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"tenant": id}, "Switched to tenant %s", id)
}

func tenantCurrent(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	tenant := svc.Auth.CurrentTenant()
	return p.Message(map[string]string{"tenant": tenant}, "%s", tenant)
}
