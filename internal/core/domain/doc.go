// Package domain defines the core domain models for kubedash.
//
// Domain models are plain value objects without IO dependencies. This
// package contains:
//
//   - User, Tenant and AuthEvent: the identity carried by a session
//   - Cluster, Namespace, Deployment, RBAC and quota resources
//   - Credentials and create requests with their validation rules
//   - Preferences persisted by the CLI
//   - Errors: structured error codes shared by every layer
package domain
