package service

import (
	"context"
	"net/http"
	"time"

	"k8s.io/utils/clock"

	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Store is the persistence used by the services. *storage.Service
// satisfies it.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Load(ctx context.Context, key string, dst any) bool
	Remove(ctx context.Context, key string)
}

// Option configures APIService and AuthService.
type Option func(*options)

type options struct {
	clock   clock.WithTicker
	logger  logger.Logger
	metrics *metric.Registry
}

func defaultOptions() options {
	return options{
		clock:  clock.RealClock{},
		logger: logger.Default(),
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock sets the clock used for cache ages and timers.
func WithClock(c clock.WithTicker) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(o *options) {
		o.metrics = m
	}
}
