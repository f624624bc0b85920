package mock

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"k8s.io/utils/clock"

	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
)

// Backend is an in-memory dashboard backend.
type Backend struct {
	mu   sync.RWMutex
	data *Fixtures

	tokens  *TokenIssuer
	clock   clock.PassiveClock
	logger  logger.Logger
	metrics *metric.Registry

	corsOrigins []string
	latency     time.Duration

	handlerOnce sync.Once
	handler     http.Handler
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock sets the clock used for timestamps and token lifetimes.
func WithClock(c clock.PassiveClock) Option {
	return func(b *Backend) {
		b.clock = c
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Backend) {
		b.logger = l
	}
}

// WithMetrics counts served requests on reg and exposes it at /metrics.
func WithMetrics(reg *metric.Registry) Option {
	return func(b *Backend) {
		b.metrics = reg
	}
}

// WithFixtures replaces the default data set.
func WithFixtures(f *Fixtures) Option {
	return func(b *Backend) {
		b.data = f
	}
}

// WithCORSOrigins sets the origins allowed by CORS. The default allows
// local development servers.
func WithCORSOrigins(origins ...string) Option {
	return func(b *Backend) {
		b.corsOrigins = origins
	}
}

// WithLatency delays every in-process response by d.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) {
		b.latency = d
	}
}

// New creates a Backend. secret signs tokens; empty selects a random key.
func New(secret []byte, opts ...Option) (*Backend, error) {
	b := &Backend{
		clock:       clock.RealClock{},
		logger:      logger.Default(),
		corsOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.data == nil {
		b.data = DefaultFixtures(b.clock.Now())
	}

	tokens, err := NewTokenIssuer(secret, DefaultTokenTTL, b.clock)
	if err != nil {
		return nil, fmt.Errorf("mock: %w", err)
	}
	b.tokens = tokens
	b.logger = b.logger.With("component", "mock")
	return b, nil
}

// Tokens returns the token issuer.
func (b *Backend) Tokens() *TokenIssuer {
	return b.tokens
}

// Handler returns the HTTP handler serving every endpoint.
func (b *Backend) Handler() http.Handler {
	b.handlerOnce.Do(func() {
		b.handler = b.routes()
	})
	return b.handler
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(b.recoverer)
	r.Use(b.accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   b.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", b.health)
	if b.metrics != nil {
		r.Handle("/metrics", b.metrics.Handler())
	}

	r.Post("/auth/login", b.login)

	r.Group(func(r chi.Router) {
		r.Use(b.requireAuth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/logout", b.logout)
			r.Get("/session", b.session)
			r.Get("/refresh", b.refresh)
		})

		r.Route("/clusters", func(r chi.Router) {
			r.Get("/", b.listClusters)
			r.With(b.requireWrite).Post("/", b.createCluster)

			r.Route("/{clusterID}", func(r chi.Router) {
				r.Get("/", b.getCluster)
				r.With(b.requireAdmin).Delete("/", b.deleteCluster)
				r.With(b.requireWrite).Post("/scale", b.scaleCluster)
				r.Get("/health", b.clusterHealth)
				r.Get("/permissions", b.listPermissions)

				r.Route("/namespaces", func(r chi.Router) {
					r.Get("/", b.listNamespaces)
					r.With(b.requireWrite).Post("/", b.createNamespace)
					r.With(b.requireWrite).Delete("/{ns}", b.deleteNamespace)

					r.Get("/{ns}/quotas", b.listQuotas)
					r.With(b.requireAdmin).Post("/{ns}/quotas", b.createQuota)
					r.With(b.requireAdmin).Delete("/{ns}/quotas/{name}", b.deleteQuota)
				})

				r.Route("/rbac", func(r chi.Router) {
					r.Get("/roles", b.listRoles)
					r.Get("/bindings", b.listBindings)
					r.With(b.requireAdmin).Post("/bindings", b.createBinding)
					r.With(b.requireAdmin).Delete("/bindings/{name}", b.deleteBinding)
				})
			})
		})

		r.Route("/deployments", func(r chi.Router) {
			r.Get("/", b.listDeployments)
			r.With(b.requireWrite).Post("/", b.createDeployment)
			r.Get("/{deploymentID}/status", b.deploymentStatus)
			r.With(b.requireWrite).Post("/{deploymentID}/rollback", b.rollbackDeployment)
			r.With(b.requireWrite).Delete("/{deploymentID}", b.deleteDeployment)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", b.listUsers)
			r.With(b.requireAdmin).Post("/invite", b.inviteUser)
			r.With(b.requireAdmin).Delete("/{userID}", b.deleteUser)
		})

		r.Get("/tenants", b.listTenants)

		r.Route("/audit", func(r chi.Router) {
			r.Use(b.requireAdmin)
			r.Get("/logs", b.auditLogs)
			r.Get("/export", b.auditExport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}
