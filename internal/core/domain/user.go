package domain

import (
	"slices"
	"strings"
)

// Role is the dashboard role assigned to a user.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDeveloper Role = "developer"
	RoleViewer    Role = "viewer"
)

// ValidRoles returns all valid roles.
func ValidRoles() []Role {
	return []Role{RoleAdmin, RoleDeveloper, RoleViewer}
}

// IsValidRole checks if a string is a valid role.
func IsValidRole(r string) bool {
	switch Role(r) {
	case RoleAdmin, RoleDeveloper, RoleViewer:
		return true
	}
	return false
}

// DefaultTenantID is used when the login reply carries no tenant.
const DefaultTenantID = "default"

// User is the identity returned by the backend on login.
type User struct {
	ID          string   `json:"id" yaml:"id"`
	Email       string   `json:"email" yaml:"email"`
	Name        string   `json:"name" yaml:"name"`
	Role        Role     `json:"role" yaml:"role"`
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`
	TenantID    string   `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
}

// HasPermission reports whether the user holds perm. Admins hold every
// permission.
func (u *User) HasPermission(perm string) bool {
	if u == nil {
		return false
	}
	if u.Role == RoleAdmin {
		return true
	}
	return slices.Contains(u.Permissions, perm)
}

// HasRole reports whether the user has exactly the given role.
func (u *User) HasRole(role Role) bool {
	return u != nil && u.Role == role
}

// Roles returns the user's roles; a nil user has none.
func (u *User) Roles() []Role {
	if u == nil {
		return nil
	}
	return []Role{u.Role}
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Permissions = slices.Clone(u.Permissions)
	return &c
}

// Tenant is an isolation unit a user can switch between.
type Tenant struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// AuthState is the lifecycle state of an authentication session.
type AuthState string

const (
	StateAnonymous      AuthState = "anonymous"
	StateAuthenticating AuthState = "authenticating"
	StateAuthenticated  AuthState = "authenticated"
)

// AuthEvent is delivered to listeners whenever the session changes.
type AuthEvent struct {
	User            *User  `json:"user"`
	Tenant          string `json:"tenant"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	TenantChanged   bool   `json:"tenantChanged,omitempty"`
}

// MaskToken masks a bearer token for safe display.
// Example: eyJhb...Xk9w
func MaskToken(token string) string {
	if len(token) < 16 {
		return "***REDACTED***"
	}
	return token[:5] + "..." + token[len(token)-4:]
}

// BearerHeader formats an Authorization header value, or "" without a token.
func BearerHeader(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	return "Bearer " + token
}
