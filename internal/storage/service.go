package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"k8s.io/utils/clock"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/storage/memory"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
	"github.com/kubedash/kubedash-go/pkg/crypto/adaptive"
)

const (
	// DefaultPrefix namespaces every key the service writes.
	DefaultPrefix = "k8s_dashboard_"

	// MinPassphraseLength is the minimum at-rest encryption passphrase length.
	MinPassphraseLength = 8

	// Metadata keys live outside the prefix so Clear never touches them.
	saltKey  = "kubedash.meta.salt"
	probeKey = "kubedash.meta.probe"

	// Storage types reported by StorageType.
	TypePersistent = "persistent"
	TypeMemory     = "memory"
)

// ErrPassphraseTooWeak is returned by New for a short passphrase.
var ErrPassphraseTooWeak = errors.New("storage: passphrase too weak (minimum 8 characters)")

// storedValue is the envelope written for every key.
// Timestamps are Unix milliseconds.
type storedValue struct {
	Value      json.RawMessage `json:"value"`
	Timestamp  int64           `json:"timestamp"`
	Expiration *int64          `json:"expiration"`
}

// expired reports whether the entry has reached its expiration.
func (v *storedValue) expired(now time.Time) bool {
	return v.Expiration != nil && now.UnixMilli() >= *v.Expiration
}

// Service is a prefixed key-value store with per-entry expiration.
//
// Writes go to the persistent backend; a write it rejects is mirrored to
// an in-memory fallback instead of failing. Reads consult the persistent
// backend first and then the fallback.
type Service struct {
	persistent Backend // nil in memory-only mode
	fallback   *memory.Backend
	prefix     string
	passphrase string
	cipher     adaptive.Cipher

	clock   clock.PassiveClock
	logger  logger.Logger
	metrics *metric.Registry
}

// Option configures a Service.
type Option func(*Service)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Service) {
		s.prefix = prefix
	}
}

// WithClock sets the clock used for timestamps and expiration.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics sets the metrics registry.
func WithMetrics(m *metric.Registry) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPassphrase enables at-rest encryption of persisted values.
func WithPassphrase(passphrase string) Option {
	return func(s *Service) {
		s.passphrase = passphrase
	}
}

// New creates a storage service over persistent, which may be nil.
//
// The persistent backend is probed with a write and a delete; when that
// fails the service runs in memory-only mode. An error is returned only
// when encryption is requested and cannot be set up.
func New(ctx context.Context, persistent Backend, opts ...Option) (*Service, error) {
	s := &Service{
		persistent: persistent,
		fallback:   memory.New(),
		prefix:     DefaultPrefix,
		clock:      clock.RealClock{},
		logger:     logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "storage")

	if s.persistent != nil {
		if err := s.probe(ctx); err != nil {
			s.logger.Warn("persistent storage unavailable, using memory", "error", err)
			s.persistent = nil
		}
	}

	if s.passphrase != "" && s.persistent != nil {
		if len(s.passphrase) < MinPassphraseLength {
			return nil, ErrPassphraseTooWeak
		}
		if err := s.setupCipher(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) probe(ctx context.Context) error {
	if err := s.persistent.Set(ctx, probeKey, []byte("probe")); err != nil {
		return err
	}
	return s.persistent.Delete(ctx, probeKey)
}

func (s *Service) setupCipher(ctx context.Context) error {
	salt, err := s.persistent.Get(ctx, saltKey)
	switch {
	case errors.Is(err, ErrKeyNotFound):
		if salt, err = adaptive.NewSalt(); err != nil {
			return fmt.Errorf("storage: generate salt: %w", err)
		}
		if err := s.persistent.Set(ctx, saltKey, salt); err != nil {
			return fmt.Errorf("storage: persist salt: %w", err)
		}
	case err != nil:
		return fmt.Errorf("storage: read salt: %w", err)
	case len(salt) != adaptive.SaltSize:
		return fmt.Errorf("storage: corrupt salt (%d bytes)", len(salt))
	}

	c, err := adaptive.New(adaptive.DeriveKey([]byte(s.passphrase), salt))
	if err != nil {
		return fmt.Errorf("storage: init cipher: %w", err)
	}
	s.cipher = c
	return nil
}

// StorageType reports TypePersistent or TypeMemory.
func (s *Service) StorageType() string {
	if s.persistent != nil {
		return TypePersistent
	}
	return TypeMemory
}

// IsAvailable reports whether a persistent backend is in use.
func (s *Service) IsAvailable() bool {
	return s.persistent != nil
}

// Encrypted reports whether persisted values are encrypted.
func (s *Service) Encrypted() bool {
	return s.cipher != nil
}

// Prefix returns the key prefix.
func (s *Service) Prefix() string {
	return s.prefix
}

// Set stores value under key. A ttl of 0 means the entry never expires.
// Only values that cannot be JSON encoded produce an error.
func (s *Service) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return domain.ErrStorageEncode.WithDetails(key).WithCause(err)
	}

	now := s.clock.Now()
	sv := storedValue{Value: raw, Timestamp: now.UnixMilli()}
	if ttl > 0 {
		exp := now.Add(ttl).UnixMilli()
		sv.Expiration = &exp
	}
	return s.write(ctx, s.prefix+key, &sv)
}

func (s *Service) write(ctx context.Context, fullKey string, sv *storedValue) error {
	data, err := json.Marshal(sv)
	if err != nil {
		return domain.ErrStorageEncode.WithDetails(fullKey).WithCause(err)
	}

	if s.persistent != nil {
		perr := s.writePersistent(ctx, fullKey, data)
		if perr == nil {
			_ = s.fallback.Delete(ctx, fullKey)
			return nil
		}
		s.logger.Warn("persistent write failed, keeping value in memory", "key", fullKey, "error", perr)
		s.metrics.IncFallbackWrite()
	}
	_ = s.fallback.Set(ctx, fullKey, data)
	return nil
}

func (s *Service) writePersistent(ctx context.Context, fullKey string, data []byte) error {
	if s.cipher != nil {
		enc, err := s.cipher.Encrypt(data, []byte(fullKey))
		if err != nil {
			return err
		}
		data = enc
	}
	return s.persistent.Set(ctx, fullKey, data)
}

func (s *Service) decode(fullKey string, raw []byte, persisted bool) (*storedValue, error) {
	if persisted && s.cipher != nil {
		plain, err := s.cipher.Decrypt(raw, []byte(fullKey))
		if err != nil {
			return nil, fmt.Errorf("decrypt: %w", err)
		}
		raw = plain
	}
	var sv storedValue
	if err := json.Unmarshal(raw, &sv); err != nil {
		return nil, err
	}
	return &sv, nil
}

// read returns the live envelope for fullKey, evicting it if expired.
// A fallback copy only exists while the persistent engine is missing the
// latest write, so it takes precedence.
func (s *Service) read(ctx context.Context, fullKey string) (*storedValue, bool) {
	if raw, err := s.fallback.Get(ctx, fullKey); err == nil {
		sv, derr := s.decode(fullKey, raw, false)
		if derr == nil {
			return s.live(ctx, fullKey, sv)
		}
		s.logger.Warn("ignoring unreadable stored value", "key", fullKey, "error", derr)
	}

	if s.persistent == nil {
		return nil, false
	}
	raw, err := s.persistent.Get(ctx, fullKey)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn("persistent read failed", "key", fullKey, "error", err)
		}
		return nil, false
	}
	sv, err := s.decode(fullKey, raw, true)
	if err != nil {
		s.logger.Warn("ignoring unreadable stored value", "key", fullKey, "error", err)
		return nil, false
	}
	return s.live(ctx, fullKey, sv)
}

func (s *Service) live(ctx context.Context, fullKey string, sv *storedValue) (*storedValue, bool) {
	if sv.expired(s.clock.Now()) {
		s.delete(ctx, fullKey)
		s.metrics.AddEvictions(1)
		return nil, false
	}
	return sv, true
}

func (s *Service) delete(ctx context.Context, fullKey string) {
	if s.persistent != nil {
		if err := s.persistent.Delete(ctx, fullKey); err != nil {
			s.logger.Warn("persistent delete failed", "key", fullKey, "error", err)
		}
	}
	_ = s.fallback.Delete(ctx, fullKey)
}

// Raw returns the JSON encoding of the value stored under key.
func (s *Service) Raw(ctx context.Context, key string) (json.RawMessage, bool) {
	sv, ok := s.read(ctx, s.prefix+key)
	if !ok {
		return nil, false
	}
	return sv.Value, true
}

// Load decodes the value stored under key into dst. It reports false
// when the key is missing, expired or not decodable into dst.
func (s *Service) Load(ctx context.Context, key string, dst any) bool {
	raw, ok := s.Raw(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("stored value has unexpected shape", "key", key, "error", err)
		return false
	}
	return true
}

// Get returns the value stored under key, or def when it is missing,
// expired or not a T.
func Get[T any](ctx context.Context, s *Service, key string, def T) T {
	var v T
	if !s.Load(ctx, key, &v) {
		return def
	}
	return v
}

// Has reports whether key holds a live entry.
func (s *Service) Has(ctx context.Context, key string) bool {
	_, ok := s.read(ctx, s.prefix+key)
	return ok
}

// Remove deletes key from every backend.
func (s *Service) Remove(ctx context.Context, key string) {
	s.delete(ctx, s.prefix+key)
}

// Clear removes every prefixed key and returns how many were removed.
func (s *Service) Clear(ctx context.Context) int {
	keys := s.Keys(ctx)
	for _, k := range keys {
		s.delete(ctx, s.prefix+k)
	}
	return len(keys)
}

type entry struct {
	fullKey   string
	raw       []byte
	persisted bool
}

// entries lists prefixed entries of both backends, persistent first.
func (s *Service) entries(ctx context.Context) []entry {
	var out []entry
	collect := func(b Backend, persisted bool) {
		err := b.Scan(ctx, s.prefix, func(k string, v []byte) bool {
			out = append(out, entry{fullKey: k, raw: v, persisted: persisted})
			return true
		})
		if err != nil {
			s.logger.Warn("storage scan failed", "persistent", persisted, "error", err)
		}
	}
	if s.persistent != nil {
		collect(s.persistent, true)
	}
	collect(s.fallback, false)
	return out
}

// Keys returns the unprefixed keys currently stored, sorted. Entries
// that expired but were not yet read or cleaned up are included.
func (s *Service) Keys(ctx context.Context) []string {
	seen := make(map[string]struct{})
	for _, e := range s.entries(ctx) {
		seen[e.fullKey[len(s.prefix):]] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Info summarises the store.
type Info struct {
	TotalSize   int64  `json:"totalSize" yaml:"totalSize"`
	ItemCount   int    `json:"itemCount" yaml:"itemCount"`
	Supported   bool   `json:"supported" yaml:"supported"`
	StorageType string `json:"storageType" yaml:"storageType"`
	Encrypted   bool   `json:"encrypted" yaml:"encrypted"`
}

// Info reports size (key plus stored bytes) and item count.
func (s *Service) Info(ctx context.Context) Info {
	info := Info{
		Supported:   s.IsAvailable(),
		StorageType: s.StorageType(),
		Encrypted:   s.Encrypted(),
	}
	seen := make(map[string]struct{})
	for _, e := range s.entries(ctx) {
		info.TotalSize += int64(len(e.fullKey) + len(e.raw))
		seen[e.fullKey] = struct{}{}
	}
	info.ItemCount = len(seen)
	return info
}

// SetBulk stores every item with the same ttl. Failures are joined.
func (s *Service) SetBulk(ctx context.Context, items map[string]any, ttl time.Duration) error {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var errs []error
	for _, k := range keys {
		if err := s.Set(ctx, k, items[k], ttl); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

// GetBulk returns the live values of the requested keys. Missing keys
// are absent from the result.
func (s *Service) GetBulk(ctx context.Context, keys ...string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if raw, ok := s.Raw(ctx, k); ok {
			out[k] = raw
		}
	}
	return out
}

// Migrate rewrites the value under key with fn's result, keeping its
// expiration. It reports false when the key holds no live entry.
func (s *Service) Migrate(ctx context.Context, key string, fn func(old json.RawMessage) (any, error)) (bool, error) {
	fullKey := s.prefix + key
	sv, ok := s.read(ctx, fullKey)
	if !ok {
		return false, nil
	}
	nv, err := fn(sv.Value)
	if err != nil {
		return false, fmt.Errorf("migrate %s: %w", key, err)
	}
	raw, err := json.Marshal(nv)
	if err != nil {
		return false, domain.ErrStorageEncode.WithDetails(key).WithCause(err)
	}

	next := storedValue{Value: raw, Timestamp: s.clock.Now().UnixMilli(), Expiration: sv.Expiration}
	if err := s.write(ctx, fullKey, &next); err != nil {
		return false, err
	}
	return true, nil
}

// Cleanup removes expired and unreadable entries from both backends and
// returns the number of keys removed.
func (s *Service) Cleanup(ctx context.Context) int {
	now := s.clock.Now()
	removed := make(map[string]struct{})
	for _, e := range s.entries(ctx) {
		sv, err := s.decode(e.fullKey, e.raw, e.persisted)
		if err == nil && !sv.expired(now) {
			continue
		}
		var derr error
		if e.persisted {
			derr = s.persistent.Delete(ctx, e.fullKey)
		} else {
			derr = s.fallback.Delete(ctx, e.fullKey)
		}
		if derr != nil {
			s.logger.Warn("cleanup delete failed", "key", e.fullKey, "error", derr)
			continue
		}
		removed[e.fullKey] = struct{}{}
	}
	s.metrics.AddEvictions(len(removed))
	if len(removed) > 0 {
		s.logger.Debug("storage cleanup", "removed", len(removed))
	}
	return len(removed)
}

// Close closes the persistent backend.
func (s *Service) Close() error {
	_ = s.fallback.Close()
	if s.persistent != nil {
		return s.persistent.Close()
	}
	return nil
}
