package domain

import "time"

// ClusterStatus is the lifecycle status reported for a cluster.
type ClusterStatus string

const (
	ClusterRunning  ClusterStatus = "running"
	ClusterPending  ClusterStatus = "pending"
	ClusterStopping ClusterStatus = "stopping"
	ClusterStopped  ClusterStatus = "stopped"
	ClusterError    ClusterStatus = "error"
)

// Cluster is a managed Kubernetes cluster.
type Cluster struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Provider    string        `json:"provider" yaml:"provider"`
	Region      string        `json:"region" yaml:"region"`
	Status      ClusterStatus `json:"status" yaml:"status"`
	Version     string        `json:"version,omitempty" yaml:"version,omitempty"`
	Nodes       int           `json:"nodes" yaml:"nodes"`
	Pods        int           `json:"pods" yaml:"pods"`
	CPUUsage    float64       `json:"cpu_usage" yaml:"cpu_usage"`
	MemoryUsage float64       `json:"memory_usage" yaml:"memory_usage"`
	TenantID    string        `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at" yaml:"created_at"`
}

// ClusterHealth is the health summary of a cluster.
type ClusterHealth struct {
	ClusterID  string            `json:"cluster_id" yaml:"cluster_id"`
	Healthy    bool              `json:"healthy" yaml:"healthy"`
	Status     string            `json:"status" yaml:"status"`
	Components map[string]string `json:"components,omitempty" yaml:"components,omitempty"`
	CheckedAt  time.Time         `json:"checked_at" yaml:"checked_at"`
}

// CreateClusterRequest is the body of POST /clusters.
type CreateClusterRequest struct {
	Name     string `json:"name" validate:"required,dns1123"`
	Provider string `json:"provider" validate:"required,oneof=aws gcp azure"`
	Region   string `json:"region" validate:"required"`
	Nodes    int    `json:"nodes" validate:"min=1,max=100"`
	Version  string `json:"version,omitempty"`
}

// ScaleClusterRequest is the body of POST /clusters/{id}/scale.
type ScaleClusterRequest struct {
	Nodes int `json:"nodes" validate:"min=1,max=100"`
}

// Namespace is a namespace within a cluster.
type Namespace struct {
	Name      string            `json:"name" yaml:"name"`
	ClusterID string            `json:"cluster_id" yaml:"cluster_id"`
	Status    string            `json:"status" yaml:"status"`
	Labels    map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
}

// CreateNamespaceRequest is the body of POST /clusters/{id}/namespaces.
type CreateNamespaceRequest struct {
	Name   string            `json:"name" validate:"required,dns1123"`
	Labels map[string]string `json:"labels,omitempty"`
}

// ResourceQuota limits resource consumption within a namespace.
type ResourceQuota struct {
	Name      string            `json:"name" yaml:"name"`
	Namespace string            `json:"namespace" yaml:"namespace"`
	Hard      map[string]string `json:"hard" yaml:"hard"`
	Used      map[string]string `json:"used,omitempty" yaml:"used,omitempty"`
}

// CreateQuotaRequest is the body of POST /clusters/{id}/namespaces/{ns}/quotas.
type CreateQuotaRequest struct {
	Name string            `json:"name" validate:"required,dns1123"`
	Hard map[string]string `json:"hard" validate:"required,min=1,dive,keys,required,endkeys,quantity"`
}

// RBACRole is a Kubernetes role visible through the dashboard.
type RBACRole struct {
	Name      string   `json:"name" yaml:"name"`
	Namespace string   `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Rules     []string `json:"rules,omitempty" yaml:"rules,omitempty"`
	Cluster   bool     `json:"cluster_scoped" yaml:"cluster_scoped"`
}

// RBACPermission is one verb on one resource kind.
type RBACPermission struct {
	Resource string   `json:"resource" yaml:"resource"`
	Verbs    []string `json:"verbs" yaml:"verbs"`
}

// RoleBinding grants a role to a subject.
type RoleBinding struct {
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Role      string `json:"role" yaml:"role"`
	Subject   string `json:"subject" yaml:"subject"`
}

// CreateRoleBindingRequest is the body of POST /clusters/{id}/rbac/bindings.
type CreateRoleBindingRequest struct {
	Name      string `json:"name" validate:"required,dns1123"`
	Namespace string `json:"namespace,omitempty" validate:"omitempty,dns1123"`
	Role      string `json:"role" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
}

// DeploymentStrategy is the rollout strategy of a deployment.
type DeploymentStrategy string

const (
	StrategyRolling   DeploymentStrategy = "rolling"
	StrategyBlueGreen DeploymentStrategy = "blue-green"
	StrategyCanary    DeploymentStrategy = "canary"
)

// Deployment is an application rollout on a cluster.
type Deployment struct {
	ID        string             `json:"id" yaml:"id"`
	Name      string             `json:"name" yaml:"name"`
	ClusterID string             `json:"cluster_id" yaml:"cluster_id"`
	Namespace string             `json:"namespace" yaml:"namespace"`
	Image     string             `json:"image" yaml:"image"`
	Replicas  int                `json:"replicas" yaml:"replicas"`
	Strategy  DeploymentStrategy `json:"strategy" yaml:"strategy"`
	Status    string             `json:"status" yaml:"status"`
	Revision  int                `json:"revision" yaml:"revision"`
	CreatedAt time.Time          `json:"created_at" yaml:"created_at"`
}

// DeploymentStatus is the rollout progress of a deployment.
type DeploymentStatus struct {
	ID            string `json:"id" yaml:"id"`
	Status        string `json:"status" yaml:"status"`
	ReadyReplicas int    `json:"ready_replicas" yaml:"ready_replicas"`
	Replicas      int    `json:"replicas" yaml:"replicas"`
	Revision      int    `json:"revision" yaml:"revision"`
	Message       string `json:"message,omitempty" yaml:"message,omitempty"`
}

// CreateDeploymentRequest is the body of POST /deployments.
type CreateDeploymentRequest struct {
	Name      string             `json:"name" validate:"required,dns1123"`
	ClusterID string             `json:"cluster_id" validate:"required"`
	Namespace string             `json:"namespace" validate:"required,dns1123"`
	Image     string             `json:"image" validate:"required"`
	Replicas  int                `json:"replicas" validate:"min=1,max=1000"`
	Strategy  DeploymentStrategy `json:"strategy" validate:"required,oneof=rolling blue-green canary"`
}

// RollbackRequest is the body of POST /deployments/{id}/rollback.
// A zero Revision rolls back to the previous revision.
type RollbackRequest struct {
	Revision int `json:"revision,omitempty" validate:"min=0"`
}

// InviteUserRequest is the body of POST /users/invite.
type InviteUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name,omitempty"`
	Role     Role   `json:"role" validate:"required,oneof=admin developer viewer"`
	TenantID string `json:"tenant_id,omitempty"`
}

// AuditLog is one audited action.
type AuditLog struct {
	ID          string    `json:"id" yaml:"id"`
	Action      string    `json:"action" yaml:"action"`
	Description string    `json:"description" yaml:"description"`
	User        string    `json:"user" yaml:"user"`
	Status      string    `json:"status" yaml:"status"`
	TenantID    string    `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// AuditQuery filters audit log listings and exports.
type AuditQuery struct {
	User   string
	Action string
	Since  time.Time
	Limit  int
	Format string // export only: json or csv
}

// DashboardStats is the overview shown by the stats command.
type DashboardStats struct {
	Clusters        int `json:"clusters" yaml:"clusters"`
	RunningClusters int `json:"running_clusters" yaml:"running_clusters"`
	Nodes           int `json:"nodes" yaml:"nodes"`
	Pods            int `json:"pods" yaml:"pods"`
	Deployments     int `json:"deployments" yaml:"deployments"`
	Users           int `json:"users" yaml:"users"`
}

// AuditExport is the reply of GET /audit/export.
type AuditExport struct {
	Format  string `json:"format" yaml:"format"`
	Count   int    `json:"count" yaml:"count"`
	Content string `json:"content" yaml:"content"`
}
