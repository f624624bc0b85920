package mock

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kubedash/kubedash-go/internal/core/domain"
)

type contextKey string

const claimsKey contextKey = "claims"

func claimsFrom(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// recoverer turns a handler panic into a 500 reply.
func (b *Backend) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				b.logger.Error("panic recovered",
					"request_id", chimw.GetReqID(r.Context()),
					"error", err,
					"path", r.URL.Path)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// accessLog logs each request and counts it in metrics.
func (b *Backend) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		b.metrics.RecordMockRequest(r.Method, strconv.Itoa(status))

		attrs := []any{
			"request_id", chimw.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			b.logger.Error("request completed with error", attrs...)
		case status >= 400:
			b.logger.Warn("request completed with client error", attrs...)
		default:
			b.logger.Debug("request completed", attrs...)
		}
	})
}

// requireAuth rejects requests without a valid bearer token.
func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Missing or invalid authorization")
			return
		}
		claims, err := b.tokens.Verify(token)
		if err != nil {
			b.logger.Debug("token rejected", "error", err)
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireWrite admits admins and developers.
func (b *Backend) requireWrite(next http.Handler) http.Handler {
	return requireRole(next, domain.RoleAdmin, domain.RoleDeveloper)
}

// requireAdmin admits admins only.
func (b *Backend) requireAdmin(next http.Handler) http.Handler {
	return requireRole(next, domain.RoleAdmin)
}

func requireRole(next http.Handler, roles ...domain.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := claimsFrom(r.Context())
		for _, role := range roles {
			if c != nil && c.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeError(w, http.StatusForbidden, "Permission denied")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"message": message,
		"code":    http.StatusText(status),
	})
}

// decode reads a JSON body into dst and validates it. It writes the
// error reply itself and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := domain.Validate(dst); err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			writeError(w, http.StatusUnprocessableEntity, de.Details)
			return false
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// delay holds each request for the configured latency.
func (b *Backend) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t := time.NewTimer(b.latency)
		defer t.Stop()
		select {
		case <-r.Context().Done():
			return
		case <-t.C:
		}
		next.ServeHTTP(w, r)
	})
}
