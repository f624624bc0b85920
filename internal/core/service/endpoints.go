package service

import (
	"net/url"
	"strconv"
	"time"

	"github.com/kubedash/kubedash-go/internal/core/domain"
)

// Collection roots, used for cache invalidation after mutations.
const (
	PathClusters    = "/clusters"
	PathDeployments = "/deployments"
	PathUsers       = "/users"
	PathTenants     = "/tenants"
	PathAudit       = "/audit"
	PathHealth      = "/health"
)

func clusterPath(id string) string {
	return PathClusters + "/" + url.PathEscape(id)
}

func namespacesPath(clusterID string) string {
	return clusterPath(clusterID) + "/namespaces"
}

func quotasPath(clusterID, ns string) string {
	return namespacesPath(clusterID) + "/" + url.PathEscape(ns) + "/quotas"
}

func rbacPath(clusterID string) string {
	return clusterPath(clusterID) + "/rbac"
}

func deploymentPath(id string) string {
	return PathDeployments + "/" + url.PathEscape(id)
}

func userPath(id string) string {
	return PathUsers + "/" + url.PathEscape(id)
}

// auditQuery encodes q as a query string, including the leading '?'.
func auditQuery(q domain.AuditQuery, export bool) string {
	v := url.Values{}
	if q.User != "" {
		v.Set("user", q.User)
	}
	if q.Action != "" {
		v.Set("action", q.Action)
	}
	if !q.Since.IsZero() {
		v.Set("since", q.Since.UTC().Format(time.RFC3339))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if export && q.Format != "" {
		v.Set("format", q.Format)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}
