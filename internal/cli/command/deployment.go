package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/cli/output"
	"github.com/kubedash/kubedash-go/internal/core/domain"
)

// DeploymentCommand returns the deployment subcommand group.
func DeploymentCommand() *cli.Command {
	return &cli.Command{
		Name:    "deployment",
		Aliases: []string{"deploy", "deployments"},
		Usage:   "Manage application deployments",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List deployments",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cluster", Aliases: []string{"C"}, Usage: "Only deployments of this cluster"},
				},
				Action: deploymentList,
			},
			{
				Name:      "create",
				Usage:     "Deploy an image",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					clusterFlag,
					&cli.StringFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Target namespace", Value: "default"},
					&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "Container image", Required: true},
					&cli.IntFlag{Name: "replicas", Aliases: []string{"r"}, Usage: "Replica count", Value: 1},
					&cli.StringFlag{Name: "strategy", Usage: "Rollout strategy: rolling, blue-green, canary", Value: string(domain.StrategyRolling)},
				},
				Action: deploymentCreate,
			},
			{
				Name:      "status",
				Usage:     "Show rollout status",
				ArgsUsage: "DEPLOYMENT_ID",
				Action:    deploymentStatus,
			},
			{
				Name:      "rollback",
				Usage:     "Roll back to an earlier revision",
				ArgsUsage: "DEPLOYMENT_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "revision", Usage: "Target revision (previous when omitted)"},
				},
				Action: deploymentRollback,
			},
			{
				Name:      "delete",
				Usage:     "Delete a deployment",
				ArgsUsage: "DEPLOYMENT_ID",
				Flags:     []cli.Flag{forceFlag},
				Action:    deploymentDelete,
			},
		},
	}
}

func deploymentList(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	deps, err := svc.Dashboard.ListDeployments(c.Context)
	if err != nil {
		return err
	}
	if cluster := c.String("cluster"); cluster != "" {
		filtered := deps[:0]
		for _, d := range deps {
			if d.ClusterID == cluster {
				filtered = append(filtered, d)
			}
		}
		deps = filtered
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("ID", "NAME", "CLUSTER", "NAMESPACE", "STATUS", "REPLICAS", "REVISION").
		WithWide("IMAGE", "STRATEGY", "CREATED")
	for _, d := range deps {
		t.AddRow(d.ID, d.Name, d.ClusterID, d.Namespace, d.Status,
			fmt.Sprint(d.Replicas), fmt.Sprint(d.Revision),
			d.Image, string(d.Strategy), d.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return p.Print(deps, t)
}

func deploymentCreate(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	d, err := svc.Dashboard.CreateDeployment(c.Context, domain.CreateDeploymentRequest{
		Name:      name,
		ClusterID: c.String("cluster"),
		Namespace: c.String("namespace"),
		Image:     c.String("image"),
		Replicas:  c.Int("replicas"),
		Strategy:  domain.DeploymentStrategy(c.String("strategy")),
	})
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(d, "Deployment %s (%s) created, revision %d", d.Name, d.ID, d.Revision)
}

func deploymentStatus(c *cli.Context) error {
	id, err := requireArg(c, 0, "DEPLOYMENT_ID")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	st, err := svc.Dashboard.DeploymentStatus(c.Context, id)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("ID", "STATUS", "READY", "REVISION", "MESSAGE")
	t.AddRow(st.ID, st.Status, fmt.Sprintf("%d/%d", st.ReadyReplicas, st.Replicas), fmt.Sprint(st.Revision), st.Message)
	return p.Print(st, t)
}

func deploymentRollback(c *cli.Context) error {
	id, err := requireArg(c, 0, "DEPLOYMENT_ID")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	d, err := svc.Dashboard.RollbackDeployment(c.Context, id, c.Int("revision"))
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(d, "Deployment %s rolled back to revision %d", d.ID, d.Revision)
}

func deploymentDelete(c *cli.Context) error {
	id, err := requireArg(c, 0, "DEPLOYMENT_ID")
	if err != nil {
		return err
	}
	if !confirm(c, c.Bool("force"), "Delete deployment %s?", id) {
		return errAborted
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	if err := svc.Dashboard.DeleteDeployment(c.Context, id); err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"deleted": id}, "Deployment %s deleted", id)
}
