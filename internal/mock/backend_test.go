package mock

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	backend *Backend
	clock   *testingclock.FakePassiveClock
	metrics *metric.Registry
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	clk := testingclock.NewFakePassiveClock(testEpoch)
	reg := metric.NewRegistry()
	opts = append([]Option{WithClock(clk), WithLogger(logger.Nop()), WithMetrics(reg)}, opts...)
	b, err := New([]byte("test-signing-key"), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testEnv{backend: b, clock: clk, metrics: reg}
}

// tokenFor issues a token for the fixture user with the given email.
func (e *testEnv) tokenFor(t *testing.T, email string) string {
	t.Helper()
	u, ok := e.backend.userByEmail(email)
	if !ok {
		t.Fatalf("no fixture user %s", email)
	}
	token, _, err := e.backend.Tokens().Issue(u)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.backend.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[map[string]any](t, rec)["status"]; got != "ok" {
		t.Errorf("status field = %v", got)
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name  string
		creds domain.Credentials
		want  int
	}{
		{"valid", domain.Credentials{Email: "admin@example.com", Password: Password}, http.StatusOK},
		{"email case", domain.Credentials{Email: "Admin@Example.com", Password: Password}, http.StatusOK},
		{"wrong password", domain.Credentials{Email: "admin@example.com", Password: "nope"}, http.StatusUnauthorized},
		{"unknown user", domain.Credentials{Email: "who@example.com", Password: Password}, http.StatusUnauthorized},
		{"malformed email", domain.Credentials{Email: "admin", Password: Password}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/auth/login", "", tt.creds)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want != http.StatusOK {
				if msg := decodeBody[map[string]string](t, rec)["message"]; msg == "" {
					t.Error("error reply carries no message")
				}
				return
			}
			resp := decodeBody[struct {
				Token    string      `json:"token"`
				User     domain.User `json:"user"`
				TenantID string      `json:"tenant_id"`
			}](t, rec)
			if resp.User.ID != "u-admin" || resp.TenantID != "default" {
				t.Errorf("reply = %+v", resp)
			}
			claims, err := e.backend.Tokens().Verify(resp.Token)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if claims.Role != domain.RoleAdmin || claims.Subject != "u-admin" {
				t.Errorf("claims = %+v", claims)
			}
			if got := claims.ExpiresAt.Sub(testEpoch); got != DefaultTokenTTL {
				t.Errorf("token lifetime = %v, want %v", got, DefaultTokenTTL)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	e := newTestEnv(t)
	valid := e.tokenFor(t, "viewer@example.com")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/clusters", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.backend.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "dev@example.com")

	e.clock.SetTime(testEpoch.Add(59 * time.Minute))
	if rec := e.do(t, http.MethodGet, "/auth/session", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("before expiry status = %d", rec.Code)
	}
	e.clock.SetTime(testEpoch.Add(61 * time.Minute))
	if rec := e.do(t, http.MethodGet, "/auth/session", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("after expiry status = %d, want 401", rec.Code)
	}
}

func TestSession(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/auth/session", e.tokenFor(t, "dev@example.com"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if u := decodeBody[domain.User](t, rec); u.ID != "u-dev" || u.Role != domain.RoleDeveloper {
		t.Errorf("user = %+v", u)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "dev@example.com")

	if rec := e.do(t, http.MethodPost, "/auth/logout", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/auth/session", token, nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("session after logout status = %d, want 401", rec.Code)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	e := newTestEnv(t)
	old := e.tokenFor(t, "dev@example.com")

	e.clock.SetTime(testEpoch.Add(30 * time.Minute))
	rec := e.do(t, http.MethodGet, "/auth/refresh", old, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d", rec.Code)
	}
	fresh := decodeBody[map[string]string](t, rec)["token"]

	claims, err := e.backend.Tokens().Verify(fresh)
	if err != nil {
		t.Fatalf("Verify(fresh) error = %v", err)
	}
	if want := testEpoch.Add(90 * time.Minute); !claims.ExpiresAt.Equal(want) {
		t.Errorf("fresh exp = %v, want %v", claims.ExpiresAt.Time, want)
	}
	if _, err := e.backend.Tokens().Verify(old); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Verify(old) error = %v, want ErrTokenRevoked", err)
	}
}

func TestRoleGates(t *testing.T) {
	tests := []struct {
		name   string
		email  string
		method string
		path   string
		body   any
		want   int
	}{
		{"viewer reads clusters", "viewer@example.com", http.MethodGet, "/clusters", nil, http.StatusOK},
		{"viewer cannot create cluster", "viewer@example.com", http.MethodPost, "/clusters",
			domain.CreateClusterRequest{Name: "x", Provider: "aws", Region: "r", Nodes: 1}, http.StatusForbidden},
		{"developer scales cluster", "dev@example.com", http.MethodPost, "/clusters/cl-staging/scale",
			domain.ScaleClusterRequest{Nodes: 5}, http.StatusOK},
		{"developer cannot delete cluster", "dev@example.com", http.MethodDelete, "/clusters/cl-staging", nil, http.StatusForbidden},
		{"developer cannot read audit", "dev@example.com", http.MethodGet, "/audit/logs", nil, http.StatusForbidden},
		{"developer cannot invite", "dev@example.com", http.MethodPost, "/users/invite",
			domain.InviteUserRequest{Email: "n@example.com", Role: domain.RoleViewer}, http.StatusForbidden},
		{"admin deletes cluster", "admin@example.com", http.MethodDelete, "/clusters/cl-staging", nil, http.StatusNoContent},
		{"admin reads audit", "admin@example.com", http.MethodGet, "/audit/logs", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			rec := e.do(t, tt.method, tt.path, e.tokenFor(t, tt.email), tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestClusterLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "admin@example.com")

	req := domain.CreateClusterRequest{Name: "edge", Provider: "gcp", Region: "asia-east1", Nodes: 2}
	rec := e.do(t, http.MethodPost, "/clusters", token, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", rec.Code, rec.Body.String())
	}
	created := decodeBody[domain.Cluster](t, rec)
	if !strings.HasPrefix(created.ID, "cl-") || created.Status != domain.ClusterPending || !created.CreatedAt.Equal(testEpoch) {
		t.Errorf("created = %+v", created)
	}

	if rec := e.do(t, http.MethodPost, "/clusters", token, req); rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}
	bad := domain.CreateClusterRequest{Name: "Bad_Name", Provider: "ibm", Region: "x", Nodes: 0}
	if rec := e.do(t, http.MethodPost, "/clusters", token, bad); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid status = %d, want 422", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/clusters/"+created.ID, token, nil)
	if rec.Code != http.StatusOK || decodeBody[domain.Cluster](t, rec).Name != "edge" {
		t.Errorf("get status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/clusters/cl-prod-us/health", token, nil)
	if h := decodeBody[domain.ClusterHealth](t, rec); !h.Healthy || h.Components["etcd"] != "Healthy" {
		t.Errorf("health = %+v", h)
	}
	rec = e.do(t, http.MethodGet, "/clusters/"+created.ID+"/health", token, nil)
	if h := decodeBody[domain.ClusterHealth](t, rec); h.Healthy {
		t.Errorf("pending cluster reported healthy: %+v", h)
	}

	if rec := e.do(t, http.MethodDelete, "/clusters/"+created.ID, token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/clusters/"+created.ID, token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
	if n := len(decodeBody[[]domain.Cluster](t, e.do(t, http.MethodGet, "/clusters", token, nil))); n != 3 {
		t.Errorf("cluster count = %d, want 3", n)
	}
}

func TestDeleteClusterCascades(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "admin@example.com")

	if rec := e.do(t, http.MethodDelete, "/clusters/cl-prod-us", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	deps := decodeBody[[]domain.Deployment](t, e.do(t, http.MethodGet, "/deployments", token, nil))
	for _, d := range deps {
		if d.ClusterID == "cl-prod-us" {
			t.Errorf("deployment %s survived its cluster", d.ID)
		}
	}
	if len(deps) != 2 {
		t.Errorf("deployments = %d, want 2", len(deps))
	}
}

func TestNamespacesAndQuotas(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "admin@example.com")

	nss := decodeBody[[]domain.Namespace](t, e.do(t, http.MethodGet, "/clusters/cl-prod-us/namespaces", token, nil))
	if len(nss) != 3 {
		t.Fatalf("namespaces = %d, want 3", len(nss))
	}

	rec := e.do(t, http.MethodPost, "/clusters/cl-prod-us/namespaces", token, domain.CreateNamespaceRequest{Name: "search"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create namespace status = %d (%s)", rec.Code, rec.Body.String())
	}

	quota := domain.CreateQuotaRequest{Name: "search-quota", Hard: map[string]string{"cpu": "2", "memory": "4Gi"}}
	if rec := e.do(t, http.MethodPost, "/clusters/cl-prod-us/namespaces/search/quotas", token, quota); rec.Code != http.StatusCreated {
		t.Fatalf("create quota status = %d (%s)", rec.Code, rec.Body.String())
	}
	badQuota := domain.CreateQuotaRequest{Name: "bad", Hard: map[string]string{"cpu": "lots"}}
	if rec := e.do(t, http.MethodPost, "/clusters/cl-prod-us/namespaces/search/quotas", token, badQuota); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid quota status = %d, want 422", rec.Code)
	}

	quotas := decodeBody[[]domain.ResourceQuota](t, e.do(t, http.MethodGet, "/clusters/cl-prod-us/namespaces/search/quotas", token, nil))
	if len(quotas) != 1 || quotas[0].Namespace != "search" || quotas[0].Hard["memory"] != "4Gi" {
		t.Errorf("quotas = %+v", quotas)
	}

	if rec := e.do(t, http.MethodDelete, "/clusters/cl-prod-us/namespaces/search/quotas/search-quota", token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete quota status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/clusters/cl-prod-us/namespaces/search", token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete namespace status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/clusters/cl-prod-us/namespaces/search", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/clusters/nope/namespaces", token, nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown cluster status = %d, want 404", rec.Code)
	}
}

func TestRBAC(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "admin@example.com")

	if n := len(decodeBody[[]domain.RBACRole](t, e.do(t, http.MethodGet, "/clusters/cl-prod-us/rbac/roles", token, nil))); n != 4 {
		t.Errorf("roles = %d, want 4", n)
	}
	if n := len(decodeBody[[]domain.RBACPermission](t, e.do(t, http.MethodGet, "/clusters/cl-prod-us/permissions", token, nil))); n != 4 {
		t.Errorf("permissions = %d, want 4", n)
	}
	bindings := decodeBody[[]domain.RoleBinding](t, e.do(t, http.MethodGet, "/clusters/cl-staging/rbac/bindings", token, nil))
	if bindings == nil || len(bindings) != 0 {
		t.Errorf("staging bindings = %#v, want empty list", bindings)
	}

	bind := domain.CreateRoleBindingRequest{Name: "qa-view", Role: "view", Subject: "viewer@example.com"}
	if rec := e.do(t, http.MethodPost, "/clusters/cl-staging/rbac/bindings", token, bind); rec.Code != http.StatusCreated {
		t.Fatalf("bind status = %d (%s)", rec.Code, rec.Body.String())
	}
	if rec := e.do(t, http.MethodPost, "/clusters/cl-staging/rbac/bindings", token, bind); rec.Code != http.StatusConflict {
		t.Errorf("duplicate bind status = %d, want 409", rec.Code)
	}
	unknown := domain.CreateRoleBindingRequest{Name: "x", Role: "root", Subject: "viewer@example.com"}
	if rec := e.do(t, http.MethodPost, "/clusters/cl-staging/rbac/bindings", token, unknown); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown role status = %d, want 422", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/clusters/cl-staging/rbac/bindings/qa-view", token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("unbind status = %d", rec.Code)
	}
}

func TestDeployments(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "dev@example.com")

	req := domain.CreateDeploymentRequest{
		Name: "search", ClusterID: "cl-prod-us", Namespace: "default",
		Image: "registry.example.com/search:1.0.0", Replicas: 2, Strategy: domain.StrategyCanary,
	}
	rec := e.do(t, http.MethodPost, "/deployments", token, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (%s)", rec.Code, rec.Body.String())
	}
	dep := decodeBody[domain.Deployment](t, rec)
	if dep.Revision != 1 || dep.Status != "pending" {
		t.Errorf("created = %+v", dep)
	}

	req.Namespace = "missing"
	if rec := e.do(t, http.MethodPost, "/deployments", token, req); rec.Code != http.StatusNotFound {
		t.Errorf("missing namespace status = %d, want 404", rec.Code)
	}

	st := decodeBody[domain.DeploymentStatus](t, e.do(t, http.MethodGet, "/deployments/dep-api/status", token, nil))
	if st.ReadyReplicas != 6 || st.Revision != 14 {
		t.Errorf("status = %+v", st)
	}

	tests := []struct {
		name     string
		revision int
		code     int
		want     int
	}{
		{"previous", 0, http.StatusOK, 13},
		{"explicit", 10, http.StatusOK, 10},
		{"not older", 10, http.StatusConflict, 10},
		{"future", 99, http.StatusConflict, 10},
	}
	for _, tt := range tests {
		t.Run("rollback "+tt.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/deployments/dep-api/rollback", token, domain.RollbackRequest{Revision: tt.revision})
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.code, rec.Body.String())
			}
			st := decodeBody[domain.DeploymentStatus](t, e.do(t, http.MethodGet, "/deployments/dep-api/status", token, nil))
			if st.Revision != tt.want {
				t.Errorf("revision = %d, want %d", st.Revision, tt.want)
			}
		})
	}

	if rec := e.do(t, http.MethodDelete, "/deployments/"+dep.ID, token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestUsers(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "admin@example.com")

	rec := e.do(t, http.MethodPost, "/users/invite", token, domain.InviteUserRequest{Email: "sam@example.com", Role: domain.RoleViewer})
	if rec.Code != http.StatusCreated {
		t.Fatalf("invite status = %d (%s)", rec.Code, rec.Body.String())
	}
	u := decodeBody[domain.User](t, rec)
	if u.Name != "sam" || u.TenantID != "default" {
		t.Errorf("invited = %+v", u)
	}
	if rec := e.do(t, http.MethodPost, "/users/invite", token, domain.InviteUserRequest{Email: "sam@example.com", Role: domain.RoleViewer}); rec.Code != http.StatusConflict {
		t.Errorf("duplicate invite status = %d, want 409", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/users/u-admin", token, nil); rec.Code != http.StatusConflict {
		t.Errorf("self delete status = %d, want 409", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/users/"+u.ID, token, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if n := len(decodeBody[[]domain.Tenant](t, e.do(t, http.MethodGet, "/tenants", token, nil))); n != 3 {
		t.Errorf("tenants = %d, want 3", n)
	}
}

func TestAudit(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "admin@example.com")

	e.do(t, http.MethodPost, "/clusters/cl-staging/scale", token, domain.ScaleClusterRequest{Nodes: 4})

	logs := decodeBody[[]domain.AuditLog](t, e.do(t, http.MethodGet, "/audit/logs", token, nil))
	if len(logs) != 4 {
		t.Fatalf("entries = %d, want 4", len(logs))
	}
	if logs[0].Action != "cluster.scale" || logs[0].User != "admin@example.com" {
		t.Errorf("newest entry = %+v", logs[0])
	}

	tests := []struct {
		query string
		want  int
	}{
		{"?user=dev@example.com", 2},
		{"?action=deployment", 2},
		{"?limit=1", 1},
		{"?since=" + testEpoch.Add(-36*time.Hour).Format(time.RFC3339), 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := decodeBody[[]domain.AuditLog](t, e.do(t, http.MethodGet, "/audit/logs"+tt.query, token, nil))
			if len(got) != tt.want {
				t.Errorf("entries = %d, want %d", len(got), tt.want)
			}
		})
	}

	if rec := e.do(t, http.MethodGet, "/audit/logs?since=yesterday", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", rec.Code)
	}

	exp := decodeBody[domain.AuditExport](t, e.do(t, http.MethodGet, "/audit/export?format=csv&user=dev@example.com", token, nil))
	lines := strings.Split(strings.TrimSpace(exp.Content), "\n")
	if exp.Format != "csv" || exp.Count != 2 || len(lines) != 3 || !strings.HasPrefix(lines[0], "id,timestamp,user") {
		t.Errorf("csv export = %+v", exp)
	}
	exp = decodeBody[domain.AuditExport](t, e.do(t, http.MethodGet, "/audit/export", token, nil))
	if exp.Format != "json" || !strings.HasPrefix(exp.Content, "[") {
		t.Errorf("json export = %+v", exp)
	}
	if rec := e.do(t, http.MethodGet, "/audit/export?format=xml", token, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("xml export status = %d, want 400", rec.Code)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	e := newTestEnv(t)
	if rec := e.do(t, http.MethodGet, "/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPut, "/health", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method status = %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	e := newTestEnv(t)
	e.do(t, http.MethodGet, "/health", "", nil)
	e.do(t, http.MethodGet, "/clusters", "", nil)

	if got := testutil.ToFloat64(e.metrics.MockRequests.WithLabelValues("GET", "200")); got != 1 {
		t.Errorf("GET 200 = %v, want 1", got)
	}
	if got := testutil.ToFloat64(e.metrics.MockRequests.WithLabelValues("GET", "401")); got != 1 {
		t.Errorf("GET 401 = %v, want 1", got)
	}

	rec := e.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "kubedash_mock_requests_total") {
		t.Errorf("metrics endpoint status = %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	e := newTestEnv(t, WithCORSOrigins("http://localhost:3000"))
	req := httptest.NewRequest(http.MethodOptions, "/clusters", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	e.backend.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRecoverer(t *testing.T) {
	e := newTestEnv(t)
	h := e.backend.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestDoer(t *testing.T) {
	e := newTestEnv(t)
	token := e.tokenFor(t, "viewer@example.com")

	req, _ := http.NewRequest(http.MethodGet, "http://mock/deployments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := e.backend.Doer().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	var deps []domain.Deployment
	if err := json.NewDecoder(resp.Body).Decode(&deps); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || len(deps) != 4 || resp.Request != req {
		t.Errorf("status = %d deployments = %d", resp.StatusCode, len(deps))
	}
}

func TestDoerHonoursContext(t *testing.T) {
	e := newTestEnv(t, WithLatency(time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://mock/health", nil)

	start := time.Now()
	_, err := e.backend.Doer().Do(req)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Do() error = %v, want DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Do() waited %v", elapsed)
	}
}

func TestServer(t *testing.T) {
	e := newTestEnv(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(ln.Addr().String(), e.backend.Handler())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for Serve to return")
	}
}

func TestRoutes(t *testing.T) {
	e := newTestEnv(t)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	h := Routes(e.backend, "/api/", metrics)

	tests := []struct {
		path string
		want int
	}{
		{"/api/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/health", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}
