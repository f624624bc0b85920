package mock

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kubedash/kubedash-go/internal/core/domain"
)

// ============================================================================
// Auth
// ============================================================================

func (b *Backend) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   b.clock.Now().UTC(),
	})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if !decode(w, r, &creds) {
		return
	}

	b.mu.RLock()
	user, ok := b.userByEmail(creds.Email)
	b.mu.RUnlock()
	if !ok || creds.Password != Password {
		b.record(creds.Email, "", "auth.login", "Login rejected", "failure")
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, _, err := b.tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	b.record(user.Email, user.TenantID, "auth.login", "Logged in", "success")

	tenant := user.TenantID
	if tenant == "" {
		tenant = domain.DefaultTenantID
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"user":      user,
		"tenant_id": tenant,
	})
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	b.tokens.Revoke(c)
	b.record(c.Email, c.TenantID, "auth.logout", "Logged out", "success")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (b *Backend) session(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	user, ok := b.userByID(claimsFrom(r.Context()).Subject)
	b.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Session is no longer valid")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r.Context())
	b.mu.RLock()
	user, ok := b.userByID(c.Subject)
	b.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Session is no longer valid")
		return
	}

	token, _, err := b.tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	b.tokens.Revoke(c)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ============================================================================
// Clusters
// ============================================================================

func (b *Backend) listClusters(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	writeJSON(w, http.StatusOK, slices.Clone(b.data.Clusters))
}

func (b *Backend) createCluster(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateClusterRequest
	if !decode(w, r, &req) {
		return
	}
	c := claimsFrom(r.Context())

	b.mu.Lock()
	if slices.ContainsFunc(b.data.Clusters, func(cl domain.Cluster) bool { return cl.Name == req.Name }) {
		b.mu.Unlock()
		writeError(w, http.StatusConflict, "cluster "+req.Name+" already exists")
		return
	}
	version := req.Version
	if version == "" {
		version = "1.30"
	}
	cluster := domain.Cluster{
		ID:        "cl-" + uuid.NewString()[:8],
		Name:      req.Name,
		Provider:  req.Provider,
		Region:    req.Region,
		Status:    domain.ClusterPending,
		Version:   version,
		Nodes:     req.Nodes,
		TenantID:  c.TenantID,
		CreatedAt: b.clock.Now().UTC(),
	}
	b.data.Clusters = append(b.data.Clusters, cluster)
	b.appendAuditLocked(c, "cluster.create", "Created cluster "+req.Name, "success")
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, cluster)
}

func (b *Backend) getCluster(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i := b.clusterIndex(chi.URLParam(r, "clusterID"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	writeJSON(w, http.StatusOK, b.data.Clusters[i])
}

func (b *Backend) deleteCluster(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "clusterID")

	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.clusterIndex(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	name := b.data.Clusters[i].Name
	b.data.Clusters = slices.Delete(b.data.Clusters, i, i+1)
	b.data.Namespaces = slices.DeleteFunc(b.data.Namespaces, func(ns domain.Namespace) bool { return ns.ClusterID == id })
	b.data.Quotas = slices.DeleteFunc(b.data.Quotas, func(q domain.ResourceQuota) bool { return strings.HasPrefix(q.Namespace, id+"/") })
	b.data.Deployments = slices.DeleteFunc(b.data.Deployments, func(d domain.Deployment) bool { return d.ClusterID == id })
	delete(b.data.Bindings, id)
	b.appendAuditLocked(claimsFrom(r.Context()), "cluster.delete", "Deleted cluster "+name, "success")

	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) scaleCluster(w http.ResponseWriter, r *http.Request) {
	var req domain.ScaleClusterRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.clusterIndex(chi.URLParam(r, "clusterID"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	cl := &b.data.Clusters[i]
	b.appendAuditLocked(claimsFrom(r.Context()), "cluster.scale",
		"Scaled cluster "+cl.Name+" from "+strconv.Itoa(cl.Nodes)+" to "+strconv.Itoa(req.Nodes)+" nodes", "success")
	cl.Nodes = req.Nodes
	writeJSON(w, http.StatusOK, *cl)
}

func (b *Backend) clusterHealth(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i := b.clusterIndex(chi.URLParam(r, "clusterID"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	cl := b.data.Clusters[i]

	component := "Healthy"
	if cl.Status != domain.ClusterRunning {
		component = "Unknown"
	}
	writeJSON(w, http.StatusOK, domain.ClusterHealth{
		ClusterID: cl.ID,
		Healthy:   cl.Status == domain.ClusterRunning,
		Status:    string(cl.Status),
		Components: map[string]string{
			"apiserver":          component,
			"etcd":               component,
			"scheduler":          component,
			"controller-manager": component,
		},
		CheckedAt: b.clock.Now().UTC(),
	})
}

func (b *Backend) listPermissions(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.clusterIndex(chi.URLParam(r, "clusterID")) < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	writeJSON(w, http.StatusOK, slices.Clone(b.data.Permissions))
}

// ============================================================================
// Namespaces and quotas
// ============================================================================

func (b *Backend) listNamespaces(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "clusterID")

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.clusterIndex(id) < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	out := []domain.Namespace{}
	for _, ns := range b.data.Namespaces {
		if ns.ClusterID == id {
			out = append(out, ns)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createNamespace(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNamespaceRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "clusterID")

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clusterIndex(id) < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	if b.namespaceIndex(id, req.Name) >= 0 {
		writeError(w, http.StatusConflict, "namespace "+req.Name+" already exists")
		return
	}
	ns := domain.Namespace{
		Name:      req.Name,
		ClusterID: id,
		Status:    "Active",
		Labels:    req.Labels,
		CreatedAt: b.clock.Now().UTC(),
	}
	b.data.Namespaces = append(b.data.Namespaces, ns)
	b.appendAuditLocked(claimsFrom(r.Context()), "namespace.create", "Created namespace "+req.Name+" on "+id, "success")
	writeJSON(w, http.StatusCreated, ns)
}

func (b *Backend) deleteNamespace(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "clusterID"), chi.URLParam(r, "ns")

	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.namespaceIndex(id, name)
	if i < 0 {
		writeError(w, http.StatusNotFound, "namespace not found")
		return
	}
	b.data.Namespaces = slices.Delete(b.data.Namespaces, i, i+1)
	key := id + "/" + name
	b.data.Quotas = slices.DeleteFunc(b.data.Quotas, func(q domain.ResourceQuota) bool { return q.Namespace == key })
	b.appendAuditLocked(claimsFrom(r.Context()), "namespace.delete", "Deleted namespace "+name+" on "+id, "success")
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) listQuotas(w http.ResponseWriter, r *http.Request) {
	id, ns := chi.URLParam(r, "clusterID"), chi.URLParam(r, "ns")

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.namespaceIndex(id, ns) < 0 {
		writeError(w, http.StatusNotFound, "namespace not found")
		return
	}
	out := []domain.ResourceQuota{}
	for _, q := range b.data.Quotas {
		if q.Namespace == id+"/"+ns {
			q.Namespace = ns
			out = append(out, q)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createQuota(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateQuotaRequest
	if !decode(w, r, &req) {
		return
	}
	id, ns := chi.URLParam(r, "clusterID"), chi.URLParam(r, "ns")
	key := id + "/" + ns

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.namespaceIndex(id, ns) < 0 {
		writeError(w, http.StatusNotFound, "namespace not found")
		return
	}
	if slices.ContainsFunc(b.data.Quotas, func(q domain.ResourceQuota) bool { return q.Namespace == key && q.Name == req.Name }) {
		writeError(w, http.StatusConflict, "quota "+req.Name+" already exists")
		return
	}
	b.data.Quotas = append(b.data.Quotas, domain.ResourceQuota{Name: req.Name, Namespace: key, Hard: req.Hard})
	b.appendAuditLocked(claimsFrom(r.Context()), "quota.create", "Created quota "+req.Name+" in "+key, "success")
	writeJSON(w, http.StatusCreated, domain.ResourceQuota{Name: req.Name, Namespace: ns, Hard: req.Hard})
}

func (b *Backend) deleteQuota(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "clusterID") + "/" + chi.URLParam(r, "ns")
	name := chi.URLParam(r, "name")

	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.data.Quotas, func(q domain.ResourceQuota) bool { return q.Namespace == key && q.Name == name })
	if i < 0 {
		writeError(w, http.StatusNotFound, "quota not found")
		return
	}
	b.data.Quotas = slices.Delete(b.data.Quotas, i, i+1)
	b.appendAuditLocked(claimsFrom(r.Context()), "quota.delete", "Deleted quota "+name+" in "+key, "success")
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// RBAC
// ============================================================================

func (b *Backend) listRoles(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.clusterIndex(chi.URLParam(r, "clusterID")) < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	writeJSON(w, http.StatusOK, slices.Clone(b.data.Roles))
}

func (b *Backend) listBindings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "clusterID")

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.clusterIndex(id) < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	out := slices.Clone(b.data.Bindings[id])
	if out == nil {
		out = []domain.RoleBinding{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) createBinding(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateRoleBindingRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "clusterID")

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clusterIndex(id) < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	if !slices.ContainsFunc(b.data.Roles, func(role domain.RBACRole) bool { return role.Name == req.Role }) {
		writeError(w, http.StatusUnprocessableEntity, "unknown role "+req.Role)
		return
	}
	if slices.ContainsFunc(b.data.Bindings[id], func(rb domain.RoleBinding) bool { return rb.Name == req.Name }) {
		writeError(w, http.StatusConflict, "binding "+req.Name+" already exists")
		return
	}
	rb := domain.RoleBinding{Name: req.Name, Namespace: req.Namespace, Role: req.Role, Subject: req.Subject}
	if b.data.Bindings == nil {
		b.data.Bindings = map[string][]domain.RoleBinding{}
	}
	b.data.Bindings[id] = append(b.data.Bindings[id], rb)
	b.appendAuditLocked(claimsFrom(r.Context()), "rbac.bind", "Bound "+req.Role+" to "+req.Subject+" on "+id, "success")
	writeJSON(w, http.StatusCreated, rb)
}

func (b *Backend) deleteBinding(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "clusterID"), chi.URLParam(r, "name")

	b.mu.Lock()
	defer b.mu.Unlock()
	bindings := b.data.Bindings[id]
	i := slices.IndexFunc(bindings, func(rb domain.RoleBinding) bool { return rb.Name == name })
	if i < 0 {
		writeError(w, http.StatusNotFound, "binding not found")
		return
	}
	b.data.Bindings[id] = slices.Delete(bindings, i, i+1)
	b.appendAuditLocked(claimsFrom(r.Context()), "rbac.unbind", "Removed binding "+name+" on "+id, "success")
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Deployments
// ============================================================================

func (b *Backend) listDeployments(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	writeJSON(w, http.StatusOK, slices.Clone(b.data.Deployments))
}

func (b *Backend) createDeployment(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDeploymentRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.clusterIndex(req.ClusterID) < 0 {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	if b.namespaceIndex(req.ClusterID, req.Namespace) < 0 {
		writeError(w, http.StatusNotFound, "namespace not found")
		return
	}
	dep := domain.Deployment{
		ID:        "dep-" + uuid.NewString()[:8],
		Name:      req.Name,
		ClusterID: req.ClusterID,
		Namespace: req.Namespace,
		Image:     req.Image,
		Replicas:  req.Replicas,
		Strategy:  req.Strategy,
		Status:    "pending",
		Revision:  1,
		CreatedAt: b.clock.Now().UTC(),
	}
	b.data.Deployments = append(b.data.Deployments, dep)
	b.appendAuditLocked(claimsFrom(r.Context()), "deployment.create", "Deployed "+req.Name+" ("+req.Image+")", "success")
	writeJSON(w, http.StatusCreated, dep)
}

func (b *Backend) deploymentStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i := b.deploymentIndex(chi.URLParam(r, "deploymentID"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	writeJSON(w, http.StatusOK, rolloutStatus(b.data.Deployments[i]))
}

// rolloutStatus derives replica readiness from the deployment status.
func rolloutStatus(d domain.Deployment) domain.DeploymentStatus {
	st := domain.DeploymentStatus{
		ID:       d.ID,
		Status:   d.Status,
		Replicas: d.Replicas,
		Revision: d.Revision,
	}
	switch d.Status {
	case "running":
		st.ReadyReplicas = d.Replicas
		st.Message = "all replicas available"
	case "pending", "progressing":
		st.ReadyReplicas = d.Replicas / 2
		st.Message = "rollout in progress"
	default:
		st.Message = "rollout failed: replicas not ready"
	}
	return st
}

func (b *Backend) rollbackDeployment(w http.ResponseWriter, r *http.Request) {
	var req domain.RollbackRequest
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.deploymentIndex(chi.URLParam(r, "deploymentID"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	dep := &b.data.Deployments[i]

	target := req.Revision
	if target == 0 {
		target = dep.Revision - 1
	}
	if target < 1 || target >= dep.Revision {
		writeError(w, http.StatusConflict,
			"cannot roll back "+dep.Name+" from revision "+strconv.Itoa(dep.Revision)+" to "+strconv.Itoa(target))
		return
	}
	b.appendAuditLocked(claimsFrom(r.Context()), "deployment.rollback",
		"Rolled back "+dep.Name+" to revision "+strconv.Itoa(target), "success")
	dep.Revision = target
	dep.Status = "running"
	writeJSON(w, http.StatusOK, *dep)
}

func (b *Backend) deleteDeployment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.deploymentIndex(chi.URLParam(r, "deploymentID"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "deployment not found")
		return
	}
	name := b.data.Deployments[i].Name
	b.data.Deployments = slices.Delete(b.data.Deployments, i, i+1)
	b.appendAuditLocked(claimsFrom(r.Context()), "deployment.delete", "Deleted deployment "+name, "success")
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// Users and tenants
// ============================================================================

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	writeJSON(w, http.StatusOK, slices.Clone(b.data.Users))
}

func (b *Backend) inviteUser(w http.ResponseWriter, r *http.Request) {
	var req domain.InviteUserRequest
	if !decode(w, r, &req) {
		return
	}
	c := claimsFrom(r.Context())

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.userByEmail(req.Email); ok {
		writeError(w, http.StatusConflict, "user "+req.Email+" already exists")
		return
	}
	tenant := req.TenantID
	if tenant == "" {
		tenant = c.TenantID
	}
	name := req.Name
	if name == "" {
		name, _, _ = strings.Cut(req.Email, "@")
	}
	u := domain.User{
		ID:       "u-" + uuid.NewString()[:8],
		Email:    req.Email,
		Name:     name,
		Role:     req.Role,
		TenantID: tenant,
	}
	b.data.Users = append(b.data.Users, u)
	b.appendAuditLocked(c, "user.invite", "Invited "+req.Email+" as "+string(req.Role), "success")
	writeJSON(w, http.StatusCreated, u)
}

func (b *Backend) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	c := claimsFrom(r.Context())
	if id == c.Subject {
		writeError(w, http.StatusConflict, "cannot delete the current user")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.data.Users, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	email := b.data.Users[i].Email
	b.data.Users = slices.Delete(b.data.Users, i, i+1)
	b.appendAuditLocked(c, "user.delete", "Deleted user "+email, "success")
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) listTenants(w http.ResponseWriter, r *http.Request) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	writeJSON(w, http.StatusOK, slices.Clone(b.data.Tenants))
}

// ============================================================================
// Audit
// ============================================================================

func (b *Backend) auditLogs(w http.ResponseWriter, r *http.Request) {
	q, err := parseAuditQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b.filterAudit(q))
}

func (b *Backend) auditExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseAuditQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if q.Format == "" {
		q.Format = "json"
	}
	entries := b.filterAudit(q)

	var buf bytes.Buffer
	switch q.Format {
	case "json":
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		err = enc.Encode(entries)
	case "csv":
		cw := csv.NewWriter(&buf)
		_ = cw.Write([]string{"id", "timestamp", "user", "action", "status", "tenant_id", "description"})
		for _, e := range entries {
			_ = cw.Write([]string{e.ID, e.Timestamp.Format(time.RFC3339), e.User, e.Action, e.Status, e.TenantID, e.Description})
		}
		cw.Flush()
		err = cw.Error()
	default:
		writeError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, domain.AuditExport{Format: q.Format, Count: len(entries), Content: buf.String()})
}

func parseAuditQuery(r *http.Request) (domain.AuditQuery, error) {
	v := r.URL.Query()
	q := domain.AuditQuery{
		User:   v.Get("user"),
		Action: v.Get("action"),
		Format: v.Get("format"),
	}
	if s := v.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Since = t
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, strconv.ErrSyntax
		}
		q.Limit = n
	}
	return q, nil
}

// filterAudit returns matching entries, newest first.
func (b *Backend) filterAudit(q domain.AuditQuery) []domain.AuditLog {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := []domain.AuditLog{}
	for _, e := range slices.Backward(b.data.Audit) {
		if q.User != "" && e.User != q.User {
			continue
		}
		if q.Action != "" && !strings.HasPrefix(e.Action, q.Action) {
			continue
		}
		if !q.Since.IsZero() && e.Timestamp.Before(q.Since) {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(x, y domain.AuditLog) int {
		return y.Timestamp.Compare(x.Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// ============================================================================
// Lookups (callers hold b.mu)
// ============================================================================

func (b *Backend) clusterIndex(id string) int {
	return slices.IndexFunc(b.data.Clusters, func(c domain.Cluster) bool { return c.ID == id })
}

func (b *Backend) namespaceIndex(clusterID, name string) int {
	return slices.IndexFunc(b.data.Namespaces, func(ns domain.Namespace) bool {
		return ns.ClusterID == clusterID && ns.Name == name
	})
}

func (b *Backend) deploymentIndex(id string) int {
	return slices.IndexFunc(b.data.Deployments, func(d domain.Deployment) bool { return d.ID == id })
}

func (b *Backend) userByID(id string) (domain.User, bool) {
	i := slices.IndexFunc(b.data.Users, func(u domain.User) bool { return u.ID == id })
	if i < 0 {
		return domain.User{}, false
	}
	return *b.data.Users[i].Clone(), true
}

func (b *Backend) userByEmail(email string) (domain.User, bool) {
	i := slices.IndexFunc(b.data.Users, func(u domain.User) bool { return strings.EqualFold(u.Email, email) })
	if i < 0 {
		return domain.User{}, false
	}
	return *b.data.Users[i].Clone(), true
}

func (b *Backend) appendAuditLocked(c *Claims, action, description, status string) {
	e := domain.AuditLog{
		ID:          "au-" + uuid.NewString()[:8],
		Action:      action,
		Description: description,
		Status:      status,
		Timestamp:   b.clock.Now().UTC(),
	}
	if c != nil {
		e.User = c.Email
		e.TenantID = c.TenantID
	}
	b.data.Audit = append(b.data.Audit, e)
}

func (b *Backend) record(user, tenant, action, description, status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.appendAuditLocked(&Claims{Email: user, TenantID: tenant}, action, description, status)
}
