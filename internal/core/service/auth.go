package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"k8s.io/utils/clock"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
	"github.com/kubedash/kubedash-go/pkg/event"
)

// Auth endpoints.
const (
	EndpointLogin   = "/auth/login"
	EndpointLogout  = "/auth/logout"
	EndpointRefresh = "/auth/refresh"
	EndpointSession = "/auth/session"
)

// Auth events recorded in metrics.
const (
	eventLogin         = "login"
	eventLoginFailed   = "login_failed"
	eventLogout        = "logout"
	eventRefresh       = "refresh"
	eventRefreshFailed = "refresh_failed"
	eventSessionLost   = "session_invalid"
	eventRestored      = "restored"
	eventTenantSwitch  = "tenant_switch"
)

// AuthConfig holds the session timing of an AuthService.
type AuthConfig struct {
	// RefreshLead is how long before a JWT's exp the token is refreshed.
	RefreshLead time.Duration

	// RefreshFallback is the refresh delay for tokens without exp.
	RefreshFallback time.Duration

	// SessionInterval is the period of the session re-validation.
	SessionInterval time.Duration
}

// DefaultAuthConfig returns the default session timing.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		RefreshLead:     5 * time.Minute,
		RefreshFallback: 55 * time.Minute,
		SessionInterval: 5 * time.Minute,
	}
}

type loginResponse struct {
	Token    string       `json:"token"`
	User     *domain.User `json:"user"`
	TenantID string       `json:"tenant_id"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

// AuthService owns the authentication session.
//
// State moves anonymous -> authenticating -> authenticated, and back to
// anonymous on logout or when a refresh or session check fails. While
// authenticated a single-shot refresh timer and a recurring session
// check run on the injected clock.
//
// The mutex is never held across network calls or listener callbacks.
type AuthService struct {
	api   *APIService
	store Store
	cfg   AuthConfig

	clock     clock.WithTicker
	logger    logger.Logger
	metrics   *metric.Registry
	listeners *event.Broadcaster[domain.AuthEvent]

	mu          sync.Mutex
	state       domain.AuthState
	user        *domain.User
	tenant      string
	epoch       uint64 // bumped whenever a session starts or ends
	nextRefresh time.Time
	stopRefresh chan struct{}
	stopSession chan struct{}
}

// NewAuthService creates an AuthService in the anonymous state. Call
// Start to restore a stored session.
func NewAuthService(api *APIService, store Store, cfg AuthConfig, opts ...Option) *AuthService {
	o := applyOptions(opts)
	def := DefaultAuthConfig()
	if cfg.RefreshLead <= 0 {
		cfg.RefreshLead = def.RefreshLead
	}
	if cfg.RefreshFallback <= 0 {
		cfg.RefreshFallback = def.RefreshFallback
	}
	if cfg.SessionInterval <= 0 {
		cfg.SessionInterval = def.SessionInterval
	}

	log := o.logger.With("component", "auth")
	return &AuthService{
		api:     api,
		store:   store,
		cfg:     cfg,
		clock:   o.clock,
		logger:  log,
		metrics: o.metrics,
		listeners: event.New[domain.AuthEvent](event.WithPanicHandler(func(err error) {
			log.Warn("auth listener failed", "error", err)
		})),
		state: domain.StateAnonymous,
	}
}

// ============================================================================
// Session lifecycle
// ============================================================================

// Start restores a session from the stored token and user and verifies
// it with the backend. Any failure clears the local session. It reports
// whether the session is authenticated afterwards.
func (a *AuthService) Start(ctx context.Context) bool {
	var (
		token  string
		user   domain.User
		tenant string
	)
	if !a.store.Load(ctx, domain.KeyToken, &token) || token == "" ||
		!a.store.Load(ctx, domain.KeyUser, &user) {
		return false
	}
	a.store.Load(ctx, domain.KeyTenant, &tenant)

	a.mu.Lock()
	a.epoch++
	epoch := a.epoch
	a.user = &user
	a.tenant = tenant
	a.state = domain.StateAuthenticating
	a.mu.Unlock()

	if err := a.verifySession(ctx); err != nil {
		a.logger.Warn("stored session rejected", "error", err)
		a.endSession(ctx, eventSessionLost)
		return false
	}

	if !a.activate(epoch, token) {
		return false
	}
	a.metrics.RecordAuthEvent(eventRestored)
	a.publish(false)
	return true
}

// Login authenticates with the backend and starts a session. A login
// rejected by the backend ends any session that was active.
func (a *AuthService) Login(ctx context.Context, creds domain.Credentials) domain.LoginResult {
	if err := creds.Validate(); err != nil {
		return domain.LoginResult{Success: false, Error: errorText(err)}
	}

	a.mu.Lock()
	a.epoch++
	epoch := a.epoch
	a.stopTimersLocked()
	a.state = domain.StateAuthenticating
	a.mu.Unlock()

	r := a.api.Request(ctx, EndpointLogin, RequestOptions{Method: http.MethodPost, Body: creds})
	var resp loginResponse
	err := r.Decode(&resp)
	if err == nil && (resp.Token == "" || resp.User == nil) {
		err = domain.ErrInvalidResponse.WithDetails("login reply carries no token or user")
	}
	if err != nil {
		a.mu.Lock()
		ours := a.epoch == epoch
		hadSession := ours && a.user != nil
		if ours {
			a.state = domain.StateAnonymous
		}
		a.mu.Unlock()
		a.logger.Info("login failed", "email", creds.Email, "error", err)
		if hadSession {
			// The previous session's timers are already stopped; clear the rest.
			a.endSession(context.WithoutCancel(ctx), eventLoginFailed)
		} else {
			a.metrics.RecordAuthEvent(eventLoginFailed)
		}

		msg := r.Error
		if r.Success || msg == "" {
			msg = domain.ErrAuthFailed.Message
		}
		return domain.LoginResult{Success: false, Error: msg}
	}

	tenant := resp.TenantID
	if tenant == "" {
		tenant = resp.User.TenantID
	}
	if tenant == "" {
		tenant = domain.DefaultTenantID
	}

	a.persist(ctx, domain.KeyToken, resp.Token)
	a.persist(ctx, domain.KeyUser, resp.User)
	a.persist(ctx, domain.KeyTenant, tenant)

	a.mu.Lock()
	a.user = resp.User.Clone()
	a.tenant = tenant
	a.mu.Unlock()

	if !a.activate(epoch, resp.Token) {
		return domain.LoginResult{Success: false, Error: domain.ErrCanceled.Message}
	}
	a.metrics.RecordAuthEvent(eventLogin)
	a.logger.Info("logged in", "user", resp.User.Email, "tenant", tenant)
	a.publish(false)

	return domain.LoginResult{Success: true, Message: "Login successful", User: resp.User.Clone()}
}

// Logout ends the session. The backend call is best effort; local state
// is always cleared.
func (a *AuthService) Logout(ctx context.Context) {
	a.logout(ctx, eventLogout)
}

func (a *AuthService) logout(ctx context.Context, reason string) {
	r := a.api.Request(ctx, EndpointLogout, RequestOptions{Method: http.MethodPost})
	if !r.Success {
		a.logger.Warn("backend logout failed", "error", r.Err)
	}
	a.endSession(ctx, reason)
}

// activate marks the session authenticated and arms the timers, unless
// another session change happened since epoch was taken.
func (a *AuthService) activate(epoch uint64, token string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.epoch != epoch {
		return false
	}
	a.state = domain.StateAuthenticated
	a.scheduleRefreshLocked(token)
	a.startSessionCheckLocked()
	return true
}

// endSession clears every trace of the session and notifies listeners.
func (a *AuthService) endSession(ctx context.Context, reason string) {
	a.mu.Lock()
	a.epoch++
	a.stopTimersLocked()
	a.user = nil
	a.tenant = ""
	a.state = domain.StateAnonymous
	a.nextRefresh = time.Time{}
	a.mu.Unlock()

	a.store.Remove(ctx, domain.KeyToken)
	a.store.Remove(ctx, domain.KeyUser)
	a.store.Remove(ctx, domain.KeyTenant)
	a.api.ClearCache()

	a.metrics.RecordAuthEvent(reason)
	a.publish(false)
}

func (a *AuthService) verifySession(ctx context.Context) error {
	r := a.api.Request(ctx, EndpointSession, RequestOptions{NoCache: true})
	var user domain.User
	if err := r.Decode(&user); err != nil {
		return err
	}
	if user.ID == "" {
		return nil
	}

	a.persist(ctx, domain.KeyUser, &user)
	a.mu.Lock()
	a.user = &user
	a.mu.Unlock()
	return nil
}

func (a *AuthService) persist(ctx context.Context, key string, v any) {
	if err := a.store.Set(ctx, key, v, 0); err != nil {
		a.logger.Warn("failed to persist auth state", "key", key, "error", err)
	}
}

// ============================================================================
// Timers
// ============================================================================

// RefreshDelay returns how long to wait before refreshing token: RefreshLead
// before the JWT exp claim, or RefreshFallback when there is none.
func (a *AuthService) RefreshDelay(token string) time.Duration {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil || claims.ExpiresAt == nil {
		return a.cfg.RefreshFallback
	}
	d := claims.ExpiresAt.Time.Sub(a.clock.Now()) - a.cfg.RefreshLead
	if d < 0 {
		return 0
	}
	return d
}

func (a *AuthService) scheduleRefreshLocked(token string) {
	if a.stopRefresh != nil {
		close(a.stopRefresh)
	}
	delay := a.RefreshDelay(token)
	timer := a.clock.NewTimer(delay)
	stop := make(chan struct{})
	epoch := a.epoch

	a.stopRefresh = stop
	a.nextRefresh = a.clock.Now().Add(delay)

	go func() {
		select {
		case <-timer.C():
			a.refresh(epoch)
		case <-stop:
			timer.Stop()
		}
	}()
}

func (a *AuthService) refresh(epoch uint64) {
	ctx := context.Background()
	if !a.current(epoch) {
		return
	}

	r := a.api.Request(ctx, EndpointRefresh, RequestOptions{NoCache: true})
	var resp refreshResponse
	err := r.Decode(&resp)
	if err == nil && resp.Token == "" {
		err = domain.ErrInvalidResponse.WithDetails("refresh reply carries no token")
	}
	if err != nil {
		if !a.current(epoch) {
			return
		}
		a.logger.Warn("token refresh failed, logging out", "error", err)
		a.logout(ctx, eventRefreshFailed)
		return
	}

	if err := a.store.Set(ctx, domain.KeyToken, resp.Token, 0); err != nil {
		a.logger.Warn("failed to persist refreshed token", "error", err)
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		// The session ended meanwhile. Keep the store only if a newer
		// session already wrote its own token.
		var stored string
		if a.store.Load(ctx, domain.KeyToken, &stored) && stored == resp.Token {
			a.store.Remove(ctx, domain.KeyToken)
		}
		return
	}
	a.stopRefresh = nil
	a.scheduleRefreshLocked(resp.Token)
	next := a.nextRefresh
	a.mu.Unlock()

	a.metrics.RecordAuthEvent(eventRefresh)
	a.logger.Debug("token refreshed", "next_refresh", next)
}

func (a *AuthService) startSessionCheckLocked() {
	if a.stopSession != nil {
		close(a.stopSession)
	}
	ticker := a.clock.NewTicker(a.cfg.SessionInterval)
	stop := make(chan struct{})
	epoch := a.epoch
	a.stopSession = stop

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C():
				if !a.checkSession(epoch) {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// checkSession re-validates the session and reports whether the check
// loop should continue.
func (a *AuthService) checkSession(epoch uint64) bool {
	if !a.current(epoch) {
		return false
	}
	ctx := context.Background()
	if err := a.verifySession(ctx); err != nil {
		if !a.current(epoch) {
			return false
		}
		a.logger.Warn("session check failed, logging out", "error", err)
		a.logout(ctx, eventSessionLost)
		return false
	}
	return true
}

func (a *AuthService) stopTimersLocked() {
	if a.stopRefresh != nil {
		close(a.stopRefresh)
		a.stopRefresh = nil
	}
	if a.stopSession != nil {
		close(a.stopSession)
		a.stopSession = nil
	}
}

func (a *AuthService) current(epoch uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epoch == epoch && a.state == domain.StateAuthenticated
}

// NextRefresh returns when the token will next be refreshed, or the zero
// time when no refresh is scheduled.
func (a *AuthService) NextRefresh() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextRefresh
}

// ============================================================================
// Tenants and listeners
// ============================================================================

// SwitchTenant makes id the active tenant and flushes cached responses.
func (a *AuthService) SwitchTenant(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidArgument.WithDetails("tenant id is required")
	}

	a.mu.Lock()
	if a.state != domain.StateAuthenticated {
		a.mu.Unlock()
		return domain.ErrNotAuthenticated.WithDetails("must be authenticated to switch tenants")
	}
	a.tenant = id
	a.mu.Unlock()

	a.persist(ctx, domain.KeyTenant, id)
	a.api.ClearCache()
	a.metrics.RecordAuthEvent(eventTenantSwitch)
	a.logger.Info("tenant switched", "tenant", id)
	a.publish(true)
	return nil
}

// Subscribe registers fn for session changes. A panicking listener is
// logged and does not affect the others.
func (a *AuthService) Subscribe(fn func(domain.AuthEvent)) (unsubscribe func()) {
	return a.listeners.Subscribe(fn)
}

func (a *AuthService) publish(tenantChanged bool) {
	a.mu.Lock()
	ev := domain.AuthEvent{
		User:            a.user.Clone(),
		Tenant:          a.tenant,
		IsAuthenticated: a.state == domain.StateAuthenticated && a.user != nil,
		TenantChanged:   tenantChanged,
	}
	a.mu.Unlock()
	a.listeners.Publish(ev)
}

// ============================================================================
// Accessors
// ============================================================================

// State returns the session state.
func (a *AuthService) State() domain.AuthState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsAuthenticated reports whether a verified session is active.
func (a *AuthService) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == domain.StateAuthenticated && a.user != nil
}

// CurrentUser returns a copy of the session user, or nil.
func (a *AuthService) CurrentUser() *domain.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.Clone()
}

// CurrentTenant returns the active tenant id.
func (a *AuthService) CurrentTenant() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tenant
}

func (a *AuthService) HasPermission(perm string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.HasPermission(perm)
}

func (a *AuthService) HasRole(role domain.Role) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.HasRole(role)
}

func (a *AuthService) Roles() []domain.Role {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user.Roles()
}

// Token returns the stored bearer token.
func (a *AuthService) Token(ctx context.Context) string {
	var token string
	a.store.Load(ctx, domain.KeyToken, &token)
	return token
}

// AuthHeader returns the Authorization header value, or "".
func (a *AuthService) AuthHeader(ctx context.Context) string {
	return domain.BearerHeader(a.Token(ctx))
}

// Close stops the timers and drops every listener. The stored session
// is kept so a later Start can restore it.
func (a *AuthService) Close() {
	a.mu.Lock()
	a.epoch++
	a.stopTimersLocked()
	a.mu.Unlock()
	a.listeners.Reset()
}

func errorText(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) && de.Details != "" {
		return de.Details
	}
	return err.Error()
}
