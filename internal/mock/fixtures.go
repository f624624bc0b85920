package mock

import (
	"time"

	"github.com/kubedash/kubedash-go/internal/core/domain"
)

// Password is accepted for every fixture user.
const Password = "Passw0rd!"

// Fixtures is the data served by the backend.
type Fixtures struct {
	Users       []domain.User
	Tenants     []domain.Tenant
	Clusters    []domain.Cluster
	Namespaces  []domain.Namespace
	Quotas      []domain.ResourceQuota // Namespace is "<cluster>/<namespace>"
	Roles       []domain.RBACRole
	Permissions []domain.RBACPermission
	Bindings    map[string][]domain.RoleBinding // by cluster id
	Deployments []domain.Deployment
	Audit       []domain.AuditLog
}

// DefaultFixtures returns a fresh copy of the built-in data set, with
// timestamps relative to now.
func DefaultFixtures(now time.Time) *Fixtures {
	days := func(n int) time.Time { return now.Add(-time.Duration(n) * 24 * time.Hour).UTC() }

	return &Fixtures{
		Users: []domain.User{
			{ID: "u-admin", Email: "admin@example.com", Name: "Alex Admin", Role: domain.RoleAdmin, TenantID: "default"},
			{ID: "u-dev", Email: "dev@example.com", Name: "Dana Developer", Role: domain.RoleDeveloper,
				Permissions: []string{"clusters:read", "clusters:write", "deployments:read", "deployments:write"}, TenantID: "default"},
			{ID: "u-viewer", Email: "viewer@example.com", Name: "Val Viewer", Role: domain.RoleViewer,
				Permissions: []string{"clusters:read", "deployments:read"}, TenantID: "acme"},
		},
		Tenants: []domain.Tenant{
			{ID: "default", Name: "Default", Description: "Default tenant"},
			{ID: "acme", Name: "Acme Corp", Description: "Production workloads"},
			{ID: "globex", Name: "Globex", Description: "Staging and QA"},
		},
		Clusters: []domain.Cluster{
			{ID: "cl-prod-us", Name: "prod-us-east", Provider: "aws", Region: "us-east-1", Status: domain.ClusterRunning,
				Version: "1.30", Nodes: 12, Pods: 340, CPUUsage: 63.5, MemoryUsage: 71.2, TenantID: "default", CreatedAt: days(210)},
			{ID: "cl-prod-eu", Name: "prod-eu-west", Provider: "gcp", Region: "europe-west1", Status: domain.ClusterRunning,
				Version: "1.29", Nodes: 8, Pods: 198, CPUUsage: 48.1, MemoryUsage: 55.0, TenantID: "acme", CreatedAt: days(120)},
			{ID: "cl-staging", Name: "staging", Provider: "azure", Region: "westus2", Status: domain.ClusterPending,
				Version: "1.30", Nodes: 3, Pods: 41, CPUUsage: 12.4, MemoryUsage: 20.9, TenantID: "globex", CreatedAt: days(3)},
		},
		Namespaces: []domain.Namespace{
			{Name: "default", ClusterID: "cl-prod-us", Status: "Active", CreatedAt: days(210)},
			{Name: "kube-system", ClusterID: "cl-prod-us", Status: "Active", CreatedAt: days(210)},
			{Name: "payments", ClusterID: "cl-prod-us", Status: "Active", Labels: map[string]string{"team": "payments"}, CreatedAt: days(90)},
			{Name: "default", ClusterID: "cl-prod-eu", Status: "Active", CreatedAt: days(120)},
			{Name: "qa", ClusterID: "cl-staging", Status: "Active", Labels: map[string]string{"env": "qa"}, CreatedAt: days(3)},
		},
		Quotas: []domain.ResourceQuota{
			{Name: "payments-quota", Namespace: "cl-prod-us/payments",
				Hard: map[string]string{"cpu": "16", "memory": "64Gi", "pods": "100"},
				Used: map[string]string{"cpu": "9500m", "memory": "41Gi", "pods": "57"}},
			{Name: "qa-quota", Namespace: "cl-staging/qa",
				Hard: map[string]string{"cpu": "4", "memory": "8Gi"},
				Used: map[string]string{"cpu": "1200m", "memory": "3Gi"}},
		},
		Roles: []domain.RBACRole{
			{Name: "cluster-admin", Rules: []string{"*/*: *"}, Cluster: true},
			{Name: "edit", Rules: []string{"deployments: get,list,create,update,delete", "pods: get,list"}, Cluster: true},
			{Name: "view", Rules: []string{"*: get,list,watch"}, Cluster: true},
			{Name: "payments-deployer", Namespace: "payments", Rules: []string{"deployments: get,list,update"}},
		},
		Permissions: []domain.RBACPermission{
			{Resource: "clusters", Verbs: []string{"get", "list", "create", "delete", "scale"}},
			{Resource: "namespaces", Verbs: []string{"get", "list", "create", "delete"}},
			{Resource: "deployments", Verbs: []string{"get", "list", "create", "rollback", "delete"}},
			{Resource: "rolebindings", Verbs: []string{"get", "list", "create", "delete"}},
		},
		Bindings: map[string][]domain.RoleBinding{
			"cl-prod-us": {
				{Name: "admins", Role: "cluster-admin", Subject: "admin@example.com"},
				{Name: "payments-devs", Namespace: "payments", Role: "payments-deployer", Subject: "dev@example.com"},
			},
			"cl-prod-eu": {
				{Name: "viewers", Role: "view", Subject: "viewer@example.com"},
			},
		},
		Deployments: []domain.Deployment{
			{ID: "dep-api", Name: "api-gateway", ClusterID: "cl-prod-us", Namespace: "default", Image: "registry.example.com/api:2.4.1",
				Replicas: 6, Strategy: domain.StrategyRolling, Status: "running", Revision: 14, CreatedAt: days(30)},
			{ID: "dep-pay", Name: "payments", ClusterID: "cl-prod-us", Namespace: "payments", Image: "registry.example.com/payments:1.9.0",
				Replicas: 4, Strategy: domain.StrategyBlueGreen, Status: "running", Revision: 7, CreatedAt: days(12)},
			{ID: "dep-web", Name: "web", ClusterID: "cl-prod-eu", Namespace: "default", Image: "registry.example.com/web:5.0.0",
				Replicas: 3, Strategy: domain.StrategyCanary, Status: "progressing", Revision: 22, CreatedAt: days(1)},
			{ID: "dep-qa", Name: "qa-runner", ClusterID: "cl-staging", Namespace: "qa", Image: "registry.example.com/qa:latest",
				Replicas: 1, Strategy: domain.StrategyRolling, Status: "failed", Revision: 3, CreatedAt: days(2)},
		},
		Audit: []domain.AuditLog{
			{ID: "au-1", Action: "cluster.create", Description: "Created cluster staging", User: "admin@example.com", Status: "success", TenantID: "globex", Timestamp: days(3)},
			{ID: "au-2", Action: "deployment.create", Description: "Deployed web 5.0.0", User: "dev@example.com", Status: "success", TenantID: "acme", Timestamp: days(1)},
			{ID: "au-3", Action: "deployment.rollback", Description: "Rolled back qa-runner", User: "dev@example.com", Status: "failure", TenantID: "globex", Timestamp: now.Add(-2 * time.Hour).UTC()},
		},
	}
}
