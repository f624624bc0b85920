package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/singleflight"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
	"github.com/kubedash/kubedash-go/internal/telemetry/tracer"
)

const (
	// DefaultTimeout bounds a single request.
	DefaultTimeout = 10 * time.Second

	// HealthTimeout bounds HealthCheck.
	HealthTimeout = 5 * time.Second

	maxResponseBytes = 8 << 20
	requestIDHeader  = "X-Request-ID"
)

// Request outcomes recorded in metrics.
const (
	outcomeSuccess   = "success"
	outcomeHTTPError = "http_error"
	outcomeNetwork   = "network_error"
	outcomeTimeout   = "timeout"
	outcomeInvalid   = "invalid_response"
	outcomeCanceled  = "canceled"
	outcomeLimited   = "rate_limited"
)

// RequestOptions controls a single request.
type RequestOptions struct {
	Method  string            // defaults to GET
	Body    any               // JSON encoded when non-nil
	Headers map[string]string // merged over the default headers
	NoCache bool              // bypass the response cache for a GET
	Timeout time.Duration     // defaults to the service timeout
}

// Result is the outcome of a request. It never carries a panic; every
// failure is reported through Success, Error and Err.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Err     error           `json:"-"`
	Status  int             `json:"status,omitempty"`
}

// Decode unmarshals the response body into dst, or returns the request
// error when the request failed.
func (r *Result) Decode(dst any) error {
	if !r.Success {
		if r.Err != nil {
			return r.Err
		}
		return domain.ErrInvalidResponse.WithDetails(r.Error)
	}
	if dst == nil || len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, dst); err != nil {
		return domain.ErrInvalidResponse.WithStatus(r.Status).WithCause(err)
	}
	return nil
}

func failure(err *domain.DomainError) *Result {
	return &Result{Success: false, Error: err.Message, Err: err, Status: err.Status}
}

// APIConfig configures an APIService.
type APIConfig struct {
	// BaseURL is prepended to every endpoint. It may be empty when the
	// Doer resolves relative URLs itself.
	BaseURL string

	// CacheTTL is the lifetime of cached GET results (default 30s).
	CacheTTL time.Duration

	// Timeout bounds a request (default 10s).
	Timeout time.Duration
}

// APIService sends JSON requests to the dashboard backend.
//
// Identical concurrent requests share one network call. Successful GET
// results are cached for the configured TTL, and the cache is written
// before the shared call is released so a later caller never triggers a
// duplicate call. A result fetched before ClearCache or InvalidatePrefix
// is returned to its waiting callers but never cached.
type APIService struct {
	doer    Doer
	store   Store
	baseURL string
	timeout time.Duration

	cache   *ResponseCache
	group   singleflight.Group
	logger  logger.Logger
	metrics *metric.Registry
}

// NewAPIService creates an APIService. store supplies the bearer token
// and may be nil.
func NewAPIService(doer Doer, store Store, cfg APIConfig, opts ...Option) *APIService {
	o := applyOptions(opts)
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &APIService{
		doer:    doer,
		store:   store,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		cache:   NewResponseCache(cfg.CacheTTL, o.clock),
		logger:  o.logger.With("component", "api"),
		metrics: o.metrics,
	}
}

// cacheKey identifies a request by method, URL and JSON body.
func cacheKey(method, url string, body []byte) string {
	if body == nil {
		body = []byte("{}")
	}
	return method + "_" + url + "_" + string(body)
}

// Request sends a request to endpoint.
//
// A caller whose ctx is done stops waiting and gets a canceled result;
// the shared call keeps running for the other callers under its own
// timeout.
func (s *APIService) Request(ctx context.Context, endpoint string, opts RequestOptions) *Result {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body []byte
	if opts.Body != nil {
		var err error
		if body, err = json.Marshal(opts.Body); err != nil {
			return failure(domain.ErrInvalidArgument.WithDetails("request body is not JSON encodable").WithCause(err))
		}
	}

	url := s.baseURL + endpoint
	key := cacheKey(method, url, body)
	cacheable := method == http.MethodGet && !opts.NoCache

	if cacheable {
		if r, ok := s.cache.Get(key); ok {
			s.metrics.IncCacheHit()
			return r
		}
		s.metrics.IncCacheMiss()
	}

	// Callers arriving after a flush must not join a call started before it.
	gen := s.cache.Generation()
	ch := s.group.DoChan(strconv.FormatUint(gen, 10)+"#"+key, func() (any, error) {
		r := s.send(ctx, method, url, body, opts)
		if cacheable && r.Success && !s.cache.SetAt(gen, key, r) {
			s.logger.Debug("discarding response fetched before cache flush", "method", method, "url", url)
		}
		return r, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			s.metrics.IncInflightJoin()
		}
		r := *res.Val.(*Result)
		return &r
	case <-ctx.Done():
		s.metrics.RecordRequest(method, outcomeCanceled, 0)
		return failure(domain.ErrCanceled.WithCause(ctx.Err()))
	}
}

// send performs one network call, detached from the caller's cancellation.
func (s *APIService) send(parent context.Context, method, url string, body []byte, opts RequestOptions) *Result {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()
	if logger.RequestID(ctx) == "" {
		ctx = logger.WithRequestID(ctx, ulid.Make().String())
	}

	ctx, span := tracer.StartSpan(ctx, "HTTP "+method)
	defer span.End()
	span.SetAttribute("http.method", method)
	span.SetAttribute("http.url", url)

	start := time.Now()
	r, outcome := s.roundTrip(ctx, method, url, body, opts.Headers)
	elapsed := time.Since(start)

	s.metrics.RecordRequest(method, outcome, elapsed)
	log := s.logger.WithContext(ctx)
	if r.Status != 0 {
		span.SetAttribute("http.status_code", r.Status)
	}
	if !r.Success {
		span.RecordError(r.Err)
		log.Debug("api request failed",
			"method", method,
			"url", url,
			"status", r.Status,
			"outcome", outcome,
			"error", r.Err,
			"elapsed", elapsed)
	} else {
		log.Debug("api request",
			"method", method,
			"url", url,
			"status", r.Status,
			"elapsed", elapsed)
	}
	return r
}

func (s *APIService) roundTrip(ctx context.Context, method, url string, body []byte, headers map[string]string) (*Result, string) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return failure(domain.ErrInvalidArgument.WithDetails(url).WithCause(err)), outcomeInvalid
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, logger.RequestID(ctx))
	if token := s.token(ctx); token != "" {
		req.Header.Set("Authorization", domain.BearerHeader(token))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	tracer.Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := s.doer.Do(req)
	if err != nil {
		return transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		r, outcome := transportFailure(ctx, err)
		r.Status = resp.StatusCode
		return r, outcome
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		derr := domain.FromHTTPStatus(resp.StatusCode, errorMessage(data))
		return failure(derr), outcomeHTTPError
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &Result{Success: true, Status: resp.StatusCode}, outcomeSuccess
	}
	if !json.Valid(data) {
		return failure(domain.ErrInvalidResponse.WithStatus(resp.StatusCode)), outcomeInvalid
	}
	return &Result{Success: true, Data: data, Status: resp.StatusCode}, outcomeSuccess
}

func transportFailure(ctx context.Context, err error) (*Result, string) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return failure(domain.ErrTimeout.WithCause(err)), outcomeTimeout
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return failure(domain.ErrRateLimited.WithCause(err)), outcomeLimited
	}
	return failure(domain.ErrNetwork.WithCause(err)), outcomeNetwork
}

// errorMessage extracts the backend's message or detail field.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil {
		return ""
	}
	switch {
	case body.Message != "":
		return body.Message
	case body.Detail != "":
		return body.Detail
	}
	if s, ok := body.Error.(string); ok {
		return s
	}
	return ""
}

func (s *APIService) token(ctx context.Context) string {
	if s.store == nil {
		return ""
	}
	var token string
	s.store.Load(ctx, domain.KeyToken, &token)
	return token
}

// Get sends a cached GET.
func (s *APIService) Get(ctx context.Context, endpoint string) *Result {
	return s.Request(ctx, endpoint, RequestOptions{Method: http.MethodGet})
}

// Post sends a POST with a JSON body.
func (s *APIService) Post(ctx context.Context, endpoint string, body any) *Result {
	return s.Request(ctx, endpoint, RequestOptions{Method: http.MethodPost, Body: body})
}

// Put sends a PUT with a JSON body.
func (s *APIService) Put(ctx context.Context, endpoint string, body any) *Result {
	return s.Request(ctx, endpoint, RequestOptions{Method: http.MethodPut, Body: body})
}

// Patch sends a PATCH with a JSON body.
func (s *APIService) Patch(ctx context.Context, endpoint string, body any) *Result {
	return s.Request(ctx, endpoint, RequestOptions{Method: http.MethodPatch, Body: body})
}

// Delete sends a DELETE.
func (s *APIService) Delete(ctx context.Context, endpoint string) *Result {
	return s.Request(ctx, endpoint, RequestOptions{Method: http.MethodDelete})
}

// HealthCheck probes /health, bypassing the cache.
func (s *APIService) HealthCheck(ctx context.Context) error {
	r := s.Request(ctx, "/health", RequestOptions{NoCache: true, Timeout: HealthTimeout})
	if !r.Success {
		return r.Err
	}
	return nil
}

// ClearCache drops every cached response.
func (s *APIService) ClearCache() int {
	n := s.cache.Clear()
	if n > 0 {
		s.logger.Debug("api cache cleared", "entries", n)
	}
	return n
}

// InvalidatePrefix drops cached responses for endpoints under prefix.
func (s *APIService) InvalidatePrefix(prefix string) int {
	return s.cache.InvalidateURLPrefix(s.baseURL + prefix)
}

// CacheLen returns the number of cached responses.
func (s *APIService) CacheLen() int {
	return s.cache.Len()
}
