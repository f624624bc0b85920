package command

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/kubedash/kubedash-go/internal/core/domain"
)

func TestClusterList(t *testing.T) {
	env := loggedIn(t, "viewer@example.com")

	out := mustRun(t, env, "cluster", "list")
	for _, want := range []string{"ID", "cl-prod-us", "prod-us-east", "cl-staging", "pending"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "VERSION") {
		t.Error("wide column shown without --wide")
	}
	if out := mustRun(t, env, "--wide", "cluster", "list"); !strings.Contains(out, "VERSION") {
		t.Errorf("--wide output missing VERSION:\n%s", out)
	}

	var clusters []domain.Cluster
	if err := json.Unmarshal([]byte(mustRun(t, env, "-o", "json", "cluster", "list")), &clusters); err != nil {
		t.Fatalf("json output: %v", err)
	}
	if len(clusters) != 3 {
		t.Errorf("len(clusters) = %d, want 3", len(clusters))
	}
}

func TestClusterGetAndHealth(t *testing.T) {
	env := loggedIn(t, "viewer@example.com")

	if out := mustRun(t, env, "-o", "yaml", "cluster", "get", "cl-prod-eu"); !strings.Contains(out, "provider: gcp") {
		t.Errorf("get output = %q", out)
	}
	if _, err := run(t, env, "cluster", "get", "cl-nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("get unknown error = %v, want ErrNotFound", err)
	}
	if _, err := run(t, env, "cluster", "get"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("get without id error = %v, want ErrInvalidArgument", err)
	}

	out := mustRun(t, env, "cluster", "health", "cl-staging")
	if !strings.Contains(out, "etcd") || !strings.Contains(out, "Unknown") {
		t.Errorf("health output = %q", out)
	}
}

func TestClusterLifecycle(t *testing.T) {
	env := loggedIn(t, "admin@example.com")

	out := mustRun(t, env, "-o", "json", "cluster", "create",
		"--name", "edge-1", "--provider", "aws", "--region", "us-west-2", "--nodes", "2")
	var cl domain.Cluster
	if err := json.Unmarshal([]byte(out), &cl); err != nil {
		t.Fatalf("create output %q: %v", out, err)
	}
	if cl.Name != "edge-1" || cl.Nodes != 2 || cl.Status != domain.ClusterPending {
		t.Errorf("created = %+v", cl)
	}

	if out := mustRun(t, env, "cluster", "scale", "--nodes", "5", cl.ID); !strings.Contains(out, "scaled to 5 nodes") {
		t.Errorf("scale output = %q", out)
	}
	if out := mustRun(t, env, "cluster", "list"); !strings.Contains(out, "edge-1") {
		t.Errorf("list after create missing edge-1:\n%s", out)
	}

	if _, err := run(t, env, "cluster", "delete", cl.ID); err == nil {
		t.Error("delete without confirmation should abort")
	}
	mustRun(t, env, "cluster", "delete", "--force", cl.ID)
	if out := mustRun(t, env, "cluster", "list"); strings.Contains(out, "edge-1") {
		t.Errorf("deleted cluster still listed:\n%s", out)
	}
}

func TestClusterCreateValidation(t *testing.T) {
	env := loggedIn(t, "admin@example.com")

	tests := []struct {
		name string
		args []string
	}{
		{"bad provider", []string{"--name", "edge", "--provider", "ibm", "--region", "x"}},
		{"bad name", []string{"--name", "Edge_1", "--provider", "aws", "--region", "x"}},
		{"too many nodes", []string{"--name", "edge", "--provider", "aws", "--region", "x", "--nodes", "101"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, env, append([]string{"cluster", "create"}, tt.args...)...)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestClusterRoleGates(t *testing.T) {
	viewer := loggedIn(t, "viewer@example.com")
	_, err := run(t, viewer, "cluster", "scale", "--nodes", "3", "cl-prod-us")
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("viewer scale error = %v, want ErrPermissionDenied", err)
	}

	dev := loggedIn(t, "dev@example.com")
	_, err = run(t, dev, "cluster", "delete", "--force", "cl-prod-us")
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("developer delete error = %v, want ErrPermissionDenied", err)
	}
}

func TestNamespaceCommands(t *testing.T) {
	env := loggedIn(t, "dev@example.com")

	out := mustRun(t, env, "namespace", "list", "--cluster", "cl-prod-us")
	for _, ns := range []string{"default", "kube-system", "payments"} {
		if !strings.Contains(out, ns) {
			t.Errorf("namespace list missing %s:\n%s", ns, out)
		}
	}

	out = mustRun(t, env, "namespace", "create", "-C", "cl-prod-us", "-l", "team=a", "-l", "env=dev", "team-a")
	if !strings.Contains(out, "Namespace team-a created in cluster cl-prod-us") {
		t.Errorf("create output = %q", out)
	}
	if out := mustRun(t, env, "-w", "ns", "list", "-C", "cl-prod-us"); !strings.Contains(out, "env=dev,team=a") {
		t.Errorf("labels not shown:\n%s", out)
	}

	if _, err := run(t, env, "namespace", "create", "-C", "cl-prod-us", "-l", "novalue", "bad"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("bad label error = %v", err)
	}
	if _, err := run(t, env, "namespace", "list"); err == nil {
		t.Error("missing --cluster should fail")
	}

	mustRun(t, env, "namespace", "delete", "-C", "cl-prod-us", "-f", "team-a")
	if out := mustRun(t, env, "ns", "list", "-C", "cl-prod-us"); strings.Contains(out, "team-a") {
		t.Errorf("deleted namespace still listed:\n%s", out)
	}
}

func TestQuotaCommands(t *testing.T) {
	env := loggedIn(t, "admin@example.com")

	out := mustRun(t, env, "quota", "list", "-C", "cl-prod-us", "-n", "payments")
	if !strings.Contains(out, "payments-quota") || !strings.Contains(out, "64Gi") {
		t.Errorf("quota list:\n%s", out)
	}

	out = mustRun(t, env, "quota", "create", "-C", "cl-prod-us", "-n", "default", "--hard", "cpu=4", "--hard", "pods=20", "batch")
	if !strings.Contains(out, "Quota batch created (cpu=4,pods=20)") {
		t.Errorf("create output = %q", out)
	}
	if out := mustRun(t, env, "quota", "list", "-C", "cl-prod-us", "-n", "default"); !strings.Contains(out, "batch") {
		t.Errorf("new quota not listed:\n%s", out)
	}
	mustRun(t, env, "quota", "delete", "-C", "cl-prod-us", "-n", "default", "--force", "batch")
}

func TestRBACCommands(t *testing.T) {
	env := loggedIn(t, "admin@example.com")

	if out := mustRun(t, env, "rbac", "roles", "-C", "cl-prod-us"); !strings.Contains(out, "namespace/payments") {
		t.Errorf("roles output:\n%s", out)
	}
	if out := mustRun(t, env, "rbac", "permissions", "-C", "cl-prod-us"); !strings.Contains(out, "get,list,create,rollback,delete") {
		t.Errorf("permissions output:\n%s", out)
	}
	if out := mustRun(t, env, "rbac", "bindings", "-C", "cl-prod-us"); !strings.Contains(out, "payments-devs") {
		t.Errorf("bindings output:\n%s", out)
	}

	out := mustRun(t, env, "rbac", "bind", "-C", "cl-prod-us", "--role", "view", "--subject", "viewer@example.com", "qa-viewers")
	if !strings.Contains(out, "Bound role view to viewer@example.com as qa-viewers") {
		t.Errorf("bind output = %q", out)
	}
	if _, err := run(t, env, "rbac", "bind", "-C", "cl-prod-us", "--role", "root", "--subject", "a@b.c", "x"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown role error = %v, want ErrValidation", err)
	}

	mustRun(t, env, "rbac", "unbind", "-C", "cl-prod-us", "--force", "qa-viewers")
	if out := mustRun(t, env, "rbac", "bindings", "-C", "cl-prod-us"); strings.Contains(out, "qa-viewers") {
		t.Errorf("unbound binding still listed:\n%s", out)
	}
}
