package mock

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server serves a Backend over HTTP.
type Server struct {
	httpServer *http.Server
}

// NewServer creates a server for h listening on addr.
func NewServer(addr string, h http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// ListenAndServe starts the server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	return ignoreClosed(s.httpServer.ListenAndServe())
}

// ListenAndServeTLS starts the server with TLS. cfg supplies the
// certificate.
func (s *Server) ListenAndServeTLS(cfg *tls.Config) error {
	s.httpServer.TLSConfig = cfg
	return ignoreClosed(s.httpServer.ListenAndServeTLS("", ""))
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return ignoreClosed(s.httpServer.Serve(ln))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Routes mounts the backend under basePath, e.g. "/api", and serves
// metrics on /metrics when given. The backend latency applies to every
// request.
func Routes(b *Backend, basePath string, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	if b.latency > 0 {
		r.Use(b.delay)
	}
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	basePath = "/" + strings.Trim(basePath, "/")
	r.Mount(basePath, b.Handler())
	return r
}
