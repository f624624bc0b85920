package connection

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

func TestNormalizeServer(t *testing.T) {
	tests := []struct {
		name   string
		server string
		want   string
	}{
		{"with http prefix", "http://localhost:8000", "http://localhost:8000"},
		{"with https prefix", "https://dash.example.com/api/", "https://dash.example.com/api"},
		{"without prefix", "localhost:8000", "http://localhost:8000"},
		{"hostname only", "api.example.com", "http://api.example.com"},
		{"whitespace", "  localhost:8000/  ", "http://localhost:8000"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeServer(tt.server); got != tt.want {
				t.Errorf("NormalizeServer(%q) = %q, want %q", tt.server, got, tt.want)
			}
		})
	}
}

func TestHTTPClient_Headers(t *testing.T) {
	var gotID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(RequestIDHeader)
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(WithHTTPLogger(logger.Nop()))
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/clusters", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if _, err := ulid.Parse(gotID); err != nil {
		t.Errorf("X-Request-ID = %q, want a ULID: %v", gotID, err)
	}
	if !strings.HasPrefix(gotUA, "kubedash-cli/") {
		t.Errorf("User-Agent = %q, want kubedash-cli/...", gotUA)
	}
}

func TestHTTPClient_KeepsCallerHeaders(t *testing.T) {
	var gotID, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(RequestIDHeader)
		gotUA = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := NewHTTPClient(WithUserAgent("custom/1.0"))
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()

	if gotID != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want fixed-id", gotID)
	}
	if gotUA != "custom/1.0" {
		t.Errorf("User-Agent = %q, want custom/1.0", gotUA)
	}
}

func TestHTTPClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := NewHTTPClient(WithRateLimit(0.001, 1))
	if client.Limiter() == nil {
		t.Fatal("limiter should be enabled")
	}

	send := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		return err
	}

	if err := send(); err != nil {
		t.Fatalf("first request should use the burst: %v", err)
	}
	err := send()
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("second request error = %v, want ErrRateLimited", err)
	}
}

func TestHTTPClient_RateLimitCanceled(t *testing.T) {
	client := NewHTTPClient(WithRateLimit(1, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1", nil)
	if _, err := client.Do(req); !errors.Is(err, context.Canceled) {
		t.Errorf("Do() error = %v, want context.Canceled", err)
	}
}

func TestHTTPClient_NoRateLimit(t *testing.T) {
	if NewHTTPClient(WithRateLimit(0, 5)).Limiter() != nil {
		t.Error("rps 0 should disable limiting")
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestHTTPClient_Transport(t *testing.T) {
	called := false
	client := NewHTTPClient(WithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
	})))

	req, _ := http.NewRequest(http.MethodDelete, "http://backend.invalid/clusters/c1", nil)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	resp.Body.Close()
	if !called || resp.StatusCode != http.StatusNoContent {
		t.Errorf("called = %v, status = %d", called, resp.StatusCode)
	}
}

func TestProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := NewHTTPClient()
	if err := Probe(context.Background(), client, server.URL+"/api/"); err != nil {
		t.Errorf("Probe() error = %v", err)
	}
	if err := Probe(context.Background(), client, server.URL); err == nil {
		t.Error("Probe() should fail on 404")
	}
}

func TestHTTPClient_TLSConfig(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	if err := Probe(context.Background(), NewHTTPClient(), server.URL); err == nil {
		t.Error("untrusted certificate should fail")
	}

	pool := x509.NewCertPool()
	pool.AddCert(server.Certificate())
	client := NewHTTPClient(WithTLSConfig(&tls.Config{RootCAs: pool}))
	if err := Probe(context.Background(), client, server.URL); err != nil {
		t.Errorf("Probe() error = %v", err)
	}
}
