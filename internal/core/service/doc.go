// Package service provides the client services of the dashboard.
//
// This package contains:
//
//   - APIService: HTTP requests with bearer-token injection, a short-lived
//     response cache, in-flight de-duplication and timeouts
//   - AuthService: login, logout, token refresh, periodic session checks
//     and tenant switching
//   - Dashboard: typed calls for clusters, namespaces, quotas, RBAC,
//     deployments, users, tenants and audit logs
//
// Services are safe for concurrent use. Transport and persistence are
// injected through the Doer and Store interfaces.
package service
