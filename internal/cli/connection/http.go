package connection

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/infra/buildinfo"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

// RequestIDHeader carries the client-generated request id.
const RequestIDHeader = "X-Request-ID"

// Doer sends an HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPClient sends API requests to a backend. It implements the Doer
// used by the API service.
type HTTPClient struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    logger.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithRateLimit limits outgoing requests to rps per second with the
// given burst. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(c *HTTPClient) {
		c.client.Transport = rt
	}
}

// WithTLSConfig sets the TLS settings of the default transport.
func WithTLSConfig(cfg *tls.Config) HTTPOption {
	return func(c *HTTPClient) {
		if cfg == nil {
			return
		}
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = cfg
		c.client.Transport = t
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(c *HTTPClient) {
		c.userAgent = ua
	}
}

// WithHTTPLogger sets the logger.
func WithHTTPLogger(l logger.Logger) HTTPOption {
	return func(c *HTTPClient) {
		c.logger = l
	}
}

// NewHTTPClient creates a new HTTP client. Request timeouts come from
// the request context.
func NewHTTPClient(opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		client:    &http.Client{},
		userAgent: buildinfo.UserAgent(),
		logger:    logger.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do waits for the rate limiter, stamps the common headers and sends
// the request.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, domain.ErrRateLimited.WithCause(err)
		}
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = ulid.Make().String()
		req.Header.Set(RequestIDHeader, id)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		var de *domain.DomainError
		if !errors.As(err, &de) {
			c.logger.Debug("transport error", "request_id", id, "url", req.URL.Redacted(), "error", err)
		}
		return nil, err
	}
	return resp, nil
}

// Limiter returns the rate limiter, or nil when limiting is disabled.
func (c *HTTPClient) Limiter() *rate.Limiter {
	return c.limiter
}

// NormalizeServer adds a missing http:// scheme and trims trailing
// slashes.
func NormalizeServer(server string) string {
	s := strings.TrimSpace(server)
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "http://" + s
	}
	return strings.TrimRight(s, "/")
}

// Probe checks that the backend answers its health endpoint.
func Probe(ctx context.Context, doer Doer, server string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, NormalizeServer(server)+"/health", nil)
	if err != nil {
		return fmt.Errorf("probe %s: %w", server, err)
	}
	resp, err := doer.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", server, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: status %d", server, resp.StatusCode)
	}
	return nil
}
