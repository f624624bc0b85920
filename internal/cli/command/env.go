package command

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kubedash/kubedash-go/internal/cli/config"
	"github.com/kubedash/kubedash-go/internal/cli/connection"
	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/core/service"
	"github.com/kubedash/kubedash-go/internal/infra/tlsroots"
	"github.com/kubedash/kubedash-go/internal/mock"
	"github.com/kubedash/kubedash-go/internal/storage"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
	"github.com/kubedash/kubedash-go/internal/telemetry/tracer"
)

// mockBaseURL is the base URL of the in-process fixture backend.
const mockBaseURL = "http://mock.kubedash.local"

// mockSecret signs fixture tokens. It is fixed so a token issued by one
// --mock invocation verifies in the next.
var mockSecret = []byte("kubedash-mock-backend-signing-key")

// Env is the state shared by every command of one process or shell
// session.
type Env struct {
	Config     *config.CLIConfig
	ConfigPath string
	Logger     logger.Logger
	Metrics    *metric.Registry
	Profiles   *connection.Manager

	once    sync.Once
	svc     *Services
	initErr error

	closeOnce sync.Once
}

// Services are built on first use so commands such as version and
// config never open the store.
type Services struct {
	Store     *storage.Service
	API       *service.APIService
	Auth      *service.AuthService
	Dashboard *service.Dashboard
	// Mock is the fixture backend when the mock layer is selected.
	Mock   *mock.Backend
	tracer *tracer.Provider
}

// NewEnv creates an environment for cfg, saved to path.
func NewEnv(cfg *config.CLIConfig, path string, log logger.Logger) *Env {
	if log == nil {
		log = logger.Nop()
	}
	return &Env{
		Config:     cfg,
		ConfigPath: path,
		Logger:     log,
		Metrics:    metric.NewRegistry(),
		Profiles:   connection.NewManager(cfg, path),
	}
}

// Services returns the shared services, building them on first call.
func (e *Env) Services(ctx context.Context) (*Services, error) {
	e.once.Do(func() {
		e.svc, e.initErr = e.build(ctx)
	})
	return e.svc, e.initErr
}

func (e *Env) build(ctx context.Context) (*Services, error) {
	cfg := e.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s := &Services{}

	if cfg.Tracing.Endpoint != "" {
		p, err := tracer.New(ctx, cfg.Tracing)
		if err != nil {
			e.Logger.Warn("tracing disabled", "error", err)
		} else {
			s.tracer = p
		}
	}

	var backend storage.Backend
	if cfg.Storage.Engine == config.EngineBadger {
		b, err := storage.NewBadgerBackend(storage.DefaultBadgerConfig(cfg.Storage.Dir), e.Logger)
		if err != nil {
			e.Logger.Warn("persistent storage unavailable, using memory", "dir", cfg.Storage.Dir, "error", err)
		} else {
			backend = b
		}
	}
	store, err := storage.New(ctx, backend,
		storage.WithPrefix(cfg.Storage.Prefix),
		storage.WithLogger(e.Logger),
		storage.WithMetrics(e.Metrics),
		storage.WithPassphrase(cfg.Storage.Passphrase),
	)
	if err != nil {
		if backend != nil {
			_ = backend.Close()
		}
		return nil, fmt.Errorf("open storage: %w", err)
	}
	s.Store = store

	var doer service.Doer
	baseURL := cfg.ServerURL()
	if cfg.Mock {
		b, err := mock.New(mockSecret, mock.WithLogger(e.Logger), mock.WithMetrics(e.Metrics))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("start mock backend: %w", err)
		}
		s.Mock = b
		doer = b.Doer()
		baseURL = mockBaseURL
	} else {
		client, err := e.httpClient(connection.WithRateLimit(cfg.API.RateLimit, cfg.API.Burst))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		doer = client
	}

	opts := []service.Option{service.WithLogger(e.Logger), service.WithMetrics(e.Metrics)}
	s.API = service.NewAPIService(doer, store, service.APIConfig{
		BaseURL:  baseURL,
		CacheTTL: cfg.API.CacheTTL.Std(),
		Timeout:  cfg.API.Timeout.Std(),
	}, opts...)
	s.Auth = service.NewAuthService(s.API, store, service.AuthConfig{
		RefreshLead:     cfg.Auth.RefreshLead.Std(),
		RefreshFallback: cfg.Auth.RefreshFallback.Std(),
		SessionInterval: cfg.Auth.SessionInterval.Std(),
	}, opts...)
	s.Dashboard = service.NewDashboard(s.API)

	if err := e.Metrics.Register(metric.NewCollector(sessionSource{s})); err != nil {
		e.Logger.Debug("session collector not registered", "error", err)
	}

	e.Logger.Debug("services ready",
		"base_url", baseURL,
		"storage", store.StorageType(),
		"encrypted", store.Encrypted())
	return s, nil
}

// Session returns the services with an authenticated session, restoring
// the stored one when needed.
func (e *Env) Session(ctx context.Context) (*Services, error) {
	s, err := e.Services(ctx)
	if err != nil {
		return nil, err
	}
	if s.Auth.IsAuthenticated() || s.Auth.Start(ctx) {
		return s, nil
	}
	return nil, domain.ErrNotAuthenticated.WithDetails("run 'kubedash-cli login' first")
}

// Close stops the session timers and closes the store. The stored
// session is kept.
func (e *Env) Close(ctx context.Context) error {
	var errs []error
	e.closeOnce.Do(func() {
		if e.svc == nil {
			return
		}
		e.svc.Auth.Close()
		if err := e.svc.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
		if e.svc.tracer != nil {
			if err := e.svc.tracer.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}

type sessionSource struct{ s *Services }

func (src sessionSource) CacheLen() int         { return src.s.API.CacheLen() }
func (src sessionSource) IsAuthenticated() bool { return src.s.Auth.IsAuthenticated() }

// httpClient returns an API client using the configured TLS settings.
func (e *Env) httpClient(opts ...connection.HTTPOption) (*connection.HTTPClient, error) {
	tlsCfg, err := tlsroots.ClientConfig(e.Config.API.CAFile, e.Config.API.Insecure)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}
	opts = append([]connection.HTTPOption{
		connection.WithTLSConfig(tlsCfg),
		connection.WithHTTPLogger(e.Logger),
	}, opts...)
	return connection.NewHTTPClient(opts...), nil
}
