package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	testingclock "k8s.io/utils/clock/testing"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/storage"
	"github.com/kubedash/kubedash-go/internal/storage/memory"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// testBackend is a minimal dashboard backend with switchable failures.
type testBackend struct {
	srv *httptest.Server

	mu            sync.Mutex
	hits          map[string]int
	loginToken    string
	logoutStatus  int
	sessionStatus int
	refreshStatus int
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{
		hits:       make(map[string]int),
		loginToken: "opaque-session-token-0001",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.hit(r)
		var creds domain.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "Passw0rd!" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid email or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":     b.token(),
			"user":      testUser(),
			"tenant_id": "t1",
		})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.hit(r)
		writeJSON(w, b.status(&b.logoutStatus), map[string]bool{"ok": true})
	})
	mux.HandleFunc("GET /auth/session", func(w http.ResponseWriter, r *http.Request) {
		b.hit(r)
		if st := b.status(&b.sessionStatus); st != http.StatusOK {
			writeJSON(w, st, map[string]string{"detail": "session expired"})
			return
		}
		writeJSON(w, http.StatusOK, testUser())
	})
	mux.HandleFunc("GET /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.hit(r)
		if st := b.status(&b.refreshStatus); st != http.StatusOK {
			writeJSON(w, st, map[string]string{"message": "refresh rejected"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": "refreshed-session-token"})
	})
	mux.HandleFunc("GET /clusters", func(w http.ResponseWriter, r *http.Request) {
		b.hit(r)
		writeJSON(w, http.StatusOK, []domain.Cluster{{ID: "c1", Name: "prod", Status: domain.ClusterRunning}})
	})

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *testBackend) hit(r *http.Request) {
	b.mu.Lock()
	b.hits[r.Method+" "+r.URL.Path]++
	b.mu.Unlock()
}

func (b *testBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *testBackend) status(p *int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if *p == 0 {
		return http.StatusOK
	}
	return *p
}

func (b *testBackend) set(p *int, status int) {
	b.mu.Lock()
	*p = status
	b.mu.Unlock()
}

func (b *testBackend) token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginToken
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testUser() domain.User {
	return domain.User{
		ID:          "u1",
		Email:       "admin@example.com",
		Name:        "Admin",
		Role:        domain.RoleDeveloper,
		Permissions: []string{"clusters:read"},
	}
}

func newTestStore(t *testing.T) *storage.Service {
	t.Helper()
	s, err := storage.New(context.Background(), memory.New(), storage.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

type testEnv struct {
	backend *testBackend
	clock   *testingclock.FakeClock
	store   *storage.Service
	api     *APIService
	auth    *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	b := newTestBackend(t)
	clk := testingclock.NewFakeClock(testEpoch)
	store := newTestStore(t)
	opts := []Option{WithClock(clk), WithLogger(logger.Nop())}

	api := NewAPIService(b.srv.Client(), store, APIConfig{BaseURL: b.srv.URL}, opts...)
	auth := NewAuthService(api, store, AuthConfig{}, opts...)
	t.Cleanup(auth.Close)

	return &testEnv{backend: b, clock: clk, store: store, api: api, auth: auth}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	res := e.auth.Login(context.Background(), domain.Credentials{Email: "admin@example.com", Password: "Passw0rd!"})
	if !res.Success {
		t.Fatalf("Login() failed: %s", res.Error)
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
