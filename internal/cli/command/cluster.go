package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kubedash/kubedash-go/internal/cli/output"
	"github.com/kubedash/kubedash-go/internal/core/domain"
)

var clusterFlag = &cli.StringFlag{
	Name:     "cluster",
	Aliases:  []string{"C"},
	Usage:    "Cluster ID",
	Required: true,
}

var forceFlag = &cli.BoolFlag{
	Name:    "force",
	Aliases: []string{"f"},
	Usage:   "Skip confirmation",
}

// ClusterCommand returns the cluster subcommand group.
func ClusterCommand() *cli.Command {
	return &cli.Command{
		Name:    "cluster",
		Aliases: []string{"clusters"},
		Usage:   "Manage clusters",
		Subcommands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List clusters",
				Action:  clusterList,
			},
			{
				Name:      "get",
				Usage:     "Show cluster details",
				ArgsUsage: "CLUSTER_ID",
				Action:    clusterGet,
			},
			{
				Name:  "create",
				Usage: "Create a cluster",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Cluster name (DNS-1123 label)", Required: true},
					&cli.StringFlag{Name: "provider", Usage: "Cloud provider: aws, gcp, azure", Required: true},
					&cli.StringFlag{Name: "region", Usage: "Provider region", Required: true},
					&cli.IntFlag{Name: "nodes", Usage: "Node count", Value: 3},
					&cli.StringFlag{Name: "version", Usage: "Kubernetes version"},
				},
				Action: clusterCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a cluster and everything in it",
				ArgsUsage: "CLUSTER_ID",
				Flags:     []cli.Flag{forceFlag},
				Action:    clusterDelete,
			},
			{
				Name:      "scale",
				Usage:     "Change the node count of a cluster",
				ArgsUsage: "CLUSTER_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "nodes", Usage: "New node count", Required: true},
				},
				Action: clusterScale,
			},
			{
				Name:      "health",
				Usage:     "Show cluster health",
				ArgsUsage: "CLUSTER_ID",
				Action:    clusterHealth,
			},
		},
	}
}

func clusterTable(clusters ...domain.Cluster) *output.Table {
	t := output.NewTable("ID", "NAME", "PROVIDER", "REGION", "STATUS", "NODES", "PODS").
		WithWide("VERSION", "CPU", "MEMORY", "TENANT", "CREATED")
	for _, cl := range clusters {
		t.AddRow(cl.ID, cl.Name, cl.Provider, cl.Region, string(cl.Status),
			fmt.Sprint(cl.Nodes), fmt.Sprint(cl.Pods),
			cl.Version, fmt.Sprintf("%.1f%%", cl.CPUUsage), fmt.Sprintf("%.1f%%", cl.MemoryUsage),
			cl.TenantID, cl.CreatedAt.Local().Format("2006-01-02"))
	}
	return t
}

func clusterList(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	clusters, err := svc.Dashboard.ListClusters(c.Context)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Print(clusters, clusterTable(clusters...))
}

func clusterGet(c *cli.Context) error {
	id, err := requireArg(c, 0, "CLUSTER_ID")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	cl, err := svc.Dashboard.GetCluster(c.Context, id)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Print(cl, nil)
}

func clusterCreate(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	cl, err := svc.Dashboard.CreateCluster(c.Context, domain.CreateClusterRequest{
		Name:     c.String("name"),
		Provider: c.String("provider"),
		Region:   c.String("region"),
		Nodes:    c.Int("nodes"),
		Version:  c.String("version"),
	})
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(cl, "Cluster %s (%s) created, status %s", cl.Name, cl.ID, cl.Status)
}

func clusterDelete(c *cli.Context) error {
	id, err := requireArg(c, 0, "CLUSTER_ID")
	if err != nil {
		return err
	}
	if !confirm(c, c.Bool("force"), "Delete cluster %s with all namespaces and deployments?", id) {
		return errAborted
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	if err := svc.Dashboard.DeleteCluster(c.Context, id); err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"deleted": id}, "Cluster %s deleted", id)
}

func clusterScale(c *cli.Context) error {
	id, err := requireArg(c, 0, "CLUSTER_ID")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	cl, err := svc.Dashboard.ScaleCluster(c.Context, id, c.Int("nodes"))
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(cl, "Cluster %s scaled to %d nodes", cl.ID, cl.Nodes)
}

func clusterHealth(c *cli.Context) error {
	id, err := requireArg(c, 0, "CLUSTER_ID")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	h, err := svc.Dashboard.ClusterHealth(c.Context, id)
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("COMPONENT", "STATUS")
	t.AddRow("cluster", h.Status)
	for _, name := range sortedKeys(h.Components) {
		t.AddRow(name, h.Components[name])
	}
	return p.Print(h, t)
}

// NamespaceCommand returns the namespace subcommand group.
func NamespaceCommand() *cli.Command {
	return &cli.Command{
		Name:    "namespace",
		Aliases: []string{"ns"},
		Usage:   "Manage namespaces",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List namespaces of a cluster",
				Flags:  []cli.Flag{clusterFlag},
				Action: namespaceList,
			},
			{
				Name:      "create",
				Usage:     "Create a namespace",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					clusterFlag,
					&cli.StringSliceFlag{Name: "label", Aliases: []string{"l"}, Usage: "Label as KEY=VALUE (repeatable)"},
				},
				Action: namespaceCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a namespace",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{clusterFlag, forceFlag},
				Action:    namespaceDelete,
			},
		},
	}
}

func namespaceList(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	nss, err := svc.Dashboard.ListNamespaces(c.Context, c.String("cluster"))
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("NAME", "STATUS", "CREATED").WithWide("LABELS")
	for _, ns := range nss {
		t.AddRow(ns.Name, ns.Status, ns.CreatedAt.Local().Format("2006-01-02"), joinMap(ns.Labels))
	}
	return p.Print(nss, t)
}

func namespaceCreate(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	labels, err := parsePairs(c.StringSlice("label"))
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	ns, err := svc.Dashboard.CreateNamespace(c.Context, c.String("cluster"), domain.CreateNamespaceRequest{Name: name, Labels: labels})
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(ns, "Namespace %s created in cluster %s", ns.Name, ns.ClusterID)
}

func namespaceDelete(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	cluster := c.String("cluster")
	if !confirm(c, c.Bool("force"), "Delete namespace %s in cluster %s?", name, cluster) {
		return errAborted
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	if err := svc.Dashboard.DeleteNamespace(c.Context, cluster, name); err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"deleted": name}, "Namespace %s deleted", name)
}

// QuotaCommand returns the quota subcommand group.
func QuotaCommand() *cli.Command {
	nsFlag := &cli.StringFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Namespace", Required: true}
	return &cli.Command{
		Name:    "quota",
		Aliases: []string{"quotas"},
		Usage:   "Manage namespace resource quotas",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List quotas of a namespace",
				Flags:  []cli.Flag{clusterFlag, nsFlag},
				Action: quotaList,
			},
			{
				Name:      "create",
				Usage:     "Create a quota",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					clusterFlag, nsFlag,
					&cli.StringSliceFlag{Name: "hard", Usage: "Limit as RESOURCE=QUANTITY, e.g. cpu=4 (repeatable)", Required: true},
				},
				Action: quotaCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a quota",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{clusterFlag, nsFlag, forceFlag},
				Action:    quotaDelete,
			},
		},
	}
}

func quotaList(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	quotas, err := svc.Dashboard.ListQuotas(c.Context, c.String("cluster"), c.String("namespace"))
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("NAME", "RESOURCE", "USED", "HARD")
	for _, q := range quotas {
		for _, res := range sortedKeys(q.Hard) {
			used := q.Used[res]
			if used == "" {
				used = "0"
			}
			t.AddRow(q.Name, res, used, q.Hard[res])
		}
	}
	return p.Print(quotas, t)
}

func quotaCreate(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	hard, err := parsePairs(c.StringSlice("hard"))
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	q, err := svc.Dashboard.CreateQuota(c.Context, c.String("cluster"), c.String("namespace"),
		domain.CreateQuotaRequest{Name: name, Hard: hard})
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(q, "Quota %s created (%s)", q.Name, joinMap(q.Hard))
}

func quotaDelete(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	if !confirm(c, c.Bool("force"), "Delete quota %s?", name) {
		return errAborted
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	if err := svc.Dashboard.DeleteQuota(c.Context, c.String("cluster"), c.String("namespace"), name); err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"deleted": name}, "Quota %s deleted", name)
}

// RBACCommand returns the rbac subcommand group.
func RBACCommand() *cli.Command {
	return &cli.Command{
		Name:  "rbac",
		Usage: "Inspect roles and manage role bindings",
		Subcommands: []*cli.Command{
			{
				Name:   "roles",
				Usage:  "List roles of a cluster",
				Flags:  []cli.Flag{clusterFlag},
				Action: rbacRoles,
			},
			{
				Name:   "permissions",
				Usage:  "List the permissions a cluster grants",
				Flags:  []cli.Flag{clusterFlag},
				Action: rbacPermissions,
			},
			{
				Name:   "bindings",
				Usage:  "List role bindings of a cluster",
				Flags:  []cli.Flag{clusterFlag},
				Action: rbacBindings,
			},
			{
				Name:      "bind",
				Usage:     "Bind a role to a subject",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					clusterFlag,
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Usage: "Role name", Required: true},
					&cli.StringFlag{Name: "subject", Usage: "User or group", Required: true},
					&cli.StringFlag{Name: "namespace", Aliases: []string{"n"}, Usage: "Namespace (cluster-wide when omitted)"},
				},
				Action: rbacBind,
			},
			{
				Name:      "unbind",
				Usage:     "Delete a role binding",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{clusterFlag, forceFlag},
				Action:    rbacUnbind,
			},
		},
	}
}

func rbacRoles(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	roles, err := svc.Dashboard.ListRoles(c.Context, c.String("cluster"))
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("NAME", "SCOPE").WithWide("RULES")
	for _, r := range roles {
		scope := "cluster"
		if !r.Cluster {
			scope = "namespace/" + r.Namespace
		}
		t.AddRow(r.Name, scope, strings.Join(r.Rules, "; "))
	}
	return p.Print(roles, t)
}

func rbacPermissions(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	perms, err := svc.Dashboard.ListPermissions(c.Context, c.String("cluster"))
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("RESOURCE", "VERBS")
	for _, perm := range perms {
		t.AddRow(perm.Resource, strings.Join(perm.Verbs, ","))
	}
	return p.Print(perms, t)
}

func rbacBindings(c *cli.Context) error {
	svc, err := session(c)
	if err != nil {
		return err
	}
	bindings, err := svc.Dashboard.ListBindings(c.Context, c.String("cluster"))
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}

	t := output.NewTable("NAME", "ROLE", "SUBJECT", "NAMESPACE")
	for _, b := range bindings {
		ns := b.Namespace
		if ns == "" {
			ns = "*"
		}
		t.AddRow(b.Name, b.Role, b.Subject, ns)
	}
	return p.Print(bindings, t)
}

func rbacBind(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	b, err := svc.Dashboard.CreateBinding(c.Context, c.String("cluster"), domain.CreateRoleBindingRequest{
		Name:      name,
		Namespace: c.String("namespace"),
		Role:      c.String("role"),
		Subject:   c.String("subject"),
	})
	if err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(b, "Bound role %s to %s as %s", b.Role, b.Subject, b.Name)
}

func rbacUnbind(c *cli.Context) error {
	name, err := requireArg(c, 0, "NAME")
	if err != nil {
		return err
	}
	if !confirm(c, c.Bool("force"), "Delete role binding %s?", name) {
		return errAborted
	}
	svc, err := session(c)
	if err != nil {
		return err
	}
	if err := svc.Dashboard.DeleteBinding(c.Context, c.String("cluster"), name); err != nil {
		return err
	}
	p, err := printer(c)
	if err != nil {
		return err
	}
	return p.Message(map[string]string{"deleted": name}, "Role binding %s deleted", name)
}

// parsePairs parses KEY=VALUE arguments.
func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, domain.ErrInvalidArgument.WithDetails(fmt.Sprintf("expected KEY=VALUE, got %q", pair))
		}
		m[k] = strings.TrimSpace(v)
	}
	return m, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinMap(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ",")
}
