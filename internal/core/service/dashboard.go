package service

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/kubedash/kubedash-go/internal/core/domain"
)

// Dashboard is the typed client of the dashboard backend. Errors are
// *domain.DomainError values carrying the HTTP status when there was one.
type Dashboard struct {
	api *APIService
}

// NewDashboard wraps api.
func NewDashboard(api *APIService) *Dashboard {
	return &Dashboard{api: api}
}

// API returns the underlying APIService.
func (d *Dashboard) API() *APIService {
	return d.api
}

func fetch[T any](ctx context.Context, d *Dashboard, endpoint string, noCache bool) (T, error) {
	var out T
	r := d.api.Request(ctx, endpoint, RequestOptions{NoCache: noCache})
	err := r.Decode(&out)
	return out, err
}

// mutate sends a write and drops cached reads under the given prefixes.
func mutate[T any](ctx context.Context, d *Dashboard, method, endpoint string, body any, invalidate ...string) (T, error) {
	var out T
	r := d.api.Request(ctx, endpoint, RequestOptions{Method: method, Body: body})
	if r.Success {
		for _, p := range invalidate {
			d.api.InvalidatePrefix(p)
		}
	}
	err := r.Decode(&out)
	return out, err
}

// ============================================================================
// Clusters
// ============================================================================

func (d *Dashboard) ListClusters(ctx context.Context) ([]domain.Cluster, error) {
	return fetch[[]domain.Cluster](ctx, d, PathClusters, false)
}

func (d *Dashboard) GetCluster(ctx context.Context, id string) (*domain.Cluster, error) {
	return fetch[*domain.Cluster](ctx, d, clusterPath(id), false)
}

// CreateCluster validates req and creates a cluster.
func (d *Dashboard) CreateCluster(ctx context.Context, req domain.CreateClusterRequest) (*domain.Cluster, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	return mutate[*domain.Cluster](ctx, d, http.MethodPost, PathClusters, req, PathClusters)
}

func (d *Dashboard) DeleteCluster(ctx context.Context, id string) error {
	_, err := mutate[struct{}](ctx, d, http.MethodDelete, clusterPath(id), nil, PathClusters)
	return err
}

// ScaleCluster sets the node count of a cluster.
func (d *Dashboard) ScaleCluster(ctx context.Context, id string, nodes int) (*domain.Cluster, error) {
	req := domain.ScaleClusterRequest{Nodes: nodes}
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	return mutate[*domain.Cluster](ctx, d, http.MethodPost, clusterPath(id)+"/scale", req, PathClusters)
}

// ClusterHealth is never served from cache.
func (d *Dashboard) ClusterHealth(ctx context.Context, id string) (*domain.ClusterHealth, error) {
	return fetch[*domain.ClusterHealth](ctx, d, clusterPath(id)+"/health", true)
}

// ============================================================================
// Namespaces and quotas
// ============================================================================

func (d *Dashboard) ListNamespaces(ctx context.Context, clusterID string) ([]domain.Namespace, error) {
	return fetch[[]domain.Namespace](ctx, d, namespacesPath(clusterID), false)
}

func (d *Dashboard) CreateNamespace(ctx context.Context, clusterID string, req domain.CreateNamespaceRequest) (*domain.Namespace, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	return mutate[*domain.Namespace](ctx, d, http.MethodPost, namespacesPath(clusterID), req, namespacesPath(clusterID))
}

func (d *Dashboard) DeleteNamespace(ctx context.Context, clusterID, name string) error {
	_, err := mutate[struct{}](ctx, d, http.MethodDelete, namespacesPath(clusterID)+"/"+url.PathEscape(name), nil, namespacesPath(clusterID))
	return err
}

func (d *Dashboard) ListQuotas(ctx context.Context, clusterID, ns string) ([]domain.ResourceQuota, error) {
	return fetch[[]domain.ResourceQuota](ctx, d, quotasPath(clusterID, ns), false)
}

// CreateQuota validates that every limit parses as a resource quantity.
func (d *Dashboard) CreateQuota(ctx context.Context, clusterID, ns string, req domain.CreateQuotaRequest) (*domain.ResourceQuota, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	return mutate[*domain.ResourceQuota](ctx, d, http.MethodPost, quotasPath(clusterID, ns), req, quotasPath(clusterID, ns))
}

func (d *Dashboard) DeleteQuota(ctx context.Context, clusterID, ns, name string) error {
	_, err := mutate[struct{}](ctx, d, http.MethodDelete, quotasPath(clusterID, ns)+"/"+url.PathEscape(name), nil, quotasPath(clusterID, ns))
	return err
}

// ============================================================================
// RBAC
// ============================================================================

func (d *Dashboard) ListRoles(ctx context.Context, clusterID string) ([]domain.RBACRole, error) {
	return fetch[[]domain.RBACRole](ctx, d, rbacPath(clusterID)+"/roles", false)
}

func (d *Dashboard) ListPermissions(ctx context.Context, clusterID string) ([]domain.RBACPermission, error) {
	return fetch[[]domain.RBACPermission](ctx, d, clusterPath(clusterID)+"/permissions", false)
}

func (d *Dashboard) ListBindings(ctx context.Context, clusterID string) ([]domain.RoleBinding, error) {
	return fetch[[]domain.RoleBinding](ctx, d, rbacPath(clusterID)+"/bindings", false)
}

func (d *Dashboard) CreateBinding(ctx context.Context, clusterID string, req domain.CreateRoleBindingRequest) (*domain.RoleBinding, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	return mutate[*domain.RoleBinding](ctx, d, http.MethodPost, rbacPath(clusterID)+"/bindings", req, rbacPath(clusterID))
}

func (d *Dashboard) DeleteBinding(ctx context.Context, clusterID, name string) error {
	_, err := mutate[struct{}](ctx, d, http.MethodDelete, rbacPath(clusterID)+"/bindings/"+url.PathEscape(name), nil, rbacPath(clusterID))
	return err
}

// ============================================================================
// Deployments
// ============================================================================

func (d *Dashboard) ListDeployments(ctx context.Context) ([]domain.Deployment, error) {
	return fetch[[]domain.Deployment](ctx, d, PathDeployments, false)
}

func (d *Dashboard) CreateDeployment(ctx context.Context, req domain.CreateDeploymentRequest) (*domain.Deployment, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	return mutate[*domain.Deployment](ctx, d, http.MethodPost, PathDeployments, req, PathDeployments)
}

// DeploymentStatus is never served from cache.
func (d *Dashboard) DeploymentStatus(ctx context.Context, id string) (*domain.DeploymentStatus, error) {
	return fetch[*domain.DeploymentStatus](ctx, d, deploymentPath(id)+"/status", true)
}

func (d *Dashboard) RollbackDeployment(ctx context.Context, id string, revision int) (*domain.Deployment, error) {
	req := domain.RollbackRequest{Revision: revision}
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	return mutate[*domain.Deployment](ctx, d, http.MethodPost, deploymentPath(id)+"/rollback", req, PathDeployments)
}

func (d *Dashboard) DeleteDeployment(ctx context.Context, id string) error {
	_, err := mutate[struct{}](ctx, d, http.MethodDelete, deploymentPath(id), nil, PathDeployments)
	return err
}

// ============================================================================
// Users, tenants and audit
// ============================================================================

func (d *Dashboard) ListUsers(ctx context.Context) ([]domain.User, error) {
	return fetch[[]domain.User](ctx, d, PathUsers, false)
}

func (d *Dashboard) InviteUser(ctx context.Context, req domain.InviteUserRequest) (*domain.User, error) {
	if err := domain.Validate(req); err != nil {
		return nil, err
	}
	return mutate[*domain.User](ctx, d, http.MethodPost, PathUsers+"/invite", req, PathUsers)
}

func (d *Dashboard) DeleteUser(ctx context.Context, id string) error {
	_, err := mutate[struct{}](ctx, d, http.MethodDelete, userPath(id), nil, PathUsers)
	return err
}

func (d *Dashboard) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	return fetch[[]domain.Tenant](ctx, d, PathTenants, false)
}

// AuditLogs lists audit entries matching q. Audit reads bypass the cache.
func (d *Dashboard) AuditLogs(ctx context.Context, q domain.AuditQuery) ([]domain.AuditLog, error) {
	return fetch[[]domain.AuditLog](ctx, d, PathAudit+"/logs"+auditQuery(q, false), true)
}

// ExportAudit returns the audit log rendered by the backend as json or csv.
func (d *Dashboard) ExportAudit(ctx context.Context, q domain.AuditQuery) (*domain.AuditExport, error) {
	if q.Format != "" {
		if err := domain.ValidateVar("format", q.Format, "oneof=json csv"); err != nil {
			return nil, err
		}
	}
	return fetch[*domain.AuditExport](ctx, d, PathAudit+"/export"+auditQuery(q, true), true)
}

// ============================================================================
// Stats
// ============================================================================

// Stats fetches clusters, deployments and users concurrently and
// summarises them.
func (d *Dashboard) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	var (
		clusters    []domain.Cluster
		deployments []domain.Deployment
		users       []domain.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		clusters, err = d.ListClusters(gctx)
		return err
	})
	g.Go(func() (err error) {
		deployments, err = d.ListDeployments(gctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = d.ListUsers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &domain.DashboardStats{
		Clusters:    len(clusters),
		Deployments: len(deployments),
		Users:       len(users),
	}
	for _, c := range clusters {
		if c.Status == domain.ClusterRunning {
			stats.RunningClusters++
		}
		stats.Nodes += c.Nodes
		stats.Pods += c.Pods
	}
	return stats, nil
}
