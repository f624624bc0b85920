package tlsroots

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kubedash/kubedash-go/internal/infra/confloader"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
)

// DefaultSettle is how long the watcher waits after the last change
// before reloading, so a certificate and key written one after the
// other are read as a pair.
const DefaultSettle = 300 * time.Millisecond

// Watcher serves a certificate key pair from disk and swaps in a new one
// when either file changes.
type Watcher struct {
	certFile, keyFile string
	log               logger.Logger
	settle            time.Duration

	current atomic.Pointer[tls.Certificate]

	timerMu sync.Mutex
	timer   *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) WatcherOption {
	return func(w *Watcher) { w.log = l }
}

// WithDebounce replaces DefaultSettle.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.settle = d }
}

// NewWatcher reads the key pair; it fails if the pair cannot be loaded.
func NewWatcher(certFile, keyFile string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{certFile: certFile, keyFile: keyFile, log: logger.Default(), settle: DefaultSettle}
	for _, opt := range opts {
		opt(w)
	}
	if err := w.load(); err != nil {
		return nil, err
	}
	return w, nil
}

// Run follows both files until ctx is done. A pair that fails to load
// is logged and the previous certificate stays in use.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := confloader.NewWatcher(w.log, w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: %w", err)
	}
	fw.OnChange(func(string) { w.schedule() })
	defer w.stopTimer()
	return fw.Run(ctx)
}

// GetCertificate serves the current pair; use it as
// tls.Config.GetCertificate.
func (w *Watcher) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return w.current.Load(), nil
}

// ServerConfig returns a TLS 1.2+ server config backed by the watcher.
func (w *Watcher) ServerConfig() *tls.Config {
	return &tls.Config{MinVersion: tls.VersionTLS12, GetCertificate: w.GetCertificate}
}

// schedule restarts the settle timer.
func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.settle, func() {
		if err := w.load(); err != nil {
			w.log.Error("certificate reload failed", "cert_file", w.certFile, "error", err)
		}
	})
}

func (w *Watcher) stopTimer() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) load() error {
	pair, err := tls.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		return fmt.Errorf("tlsroots: load key pair: %w", err)
	}
	w.current.Store(&pair)
	w.log.Info("certificate loaded", "cert_file", w.certFile)
	return nil
}
