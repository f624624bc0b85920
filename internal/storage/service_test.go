package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/kubedash/kubedash-go/internal/core/domain"
	"github.com/kubedash/kubedash-go/internal/storage/memory"
	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
)

// flakyBackend wraps a memory backend and rejects writes on demand.
type flakyBackend struct {
	*memory.Backend
	failSets atomic.Bool
}

func (f *flakyBackend) Set(ctx context.Context, key string, value []byte) error {
	if f.failSets.Load() {
		return errors.New("quota exceeded")
	}
	return f.Backend.Set(ctx, key, value)
}

func newTestService(t *testing.T, backend Backend, opts ...Option) (*Service, *testingclock.FakeClock) {
	t.Helper()
	clk := testingclock.NewFakeClock(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clk), WithLogger(logger.Nop())}, opts...)
	s, err := New(context.Background(), backend, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, clk
}

func TestService_SetGet(t *testing.T) {
	s, _ := newTestService(t, memory.New())
	ctx := context.Background()

	prefs := domain.DefaultPreferences()
	prefs.Theme = domain.ThemeDark
	if err := s.Set(ctx, domain.KeyPreferences, prefs, 0); err != nil {
		t.Fatal(err)
	}

	got := Get(ctx, s, domain.KeyPreferences, domain.DefaultPreferences())
	if got.Theme != domain.ThemeDark {
		t.Errorf("Theme = %q, want %q", got.Theme, domain.ThemeDark)
	}

	if v := Get(ctx, s, "missing", "fallback"); v != "fallback" {
		t.Errorf("Get(missing) = %q, want fallback", v)
	}

	// A value of the wrong shape yields the default.
	if err := s.Set(ctx, "num", 42, 0); err != nil {
		t.Fatal(err)
	}
	if v := Get(ctx, s, "num", "def"); v != "def" {
		t.Errorf("Get(num as string) = %q, want def", v)
	}
}

func TestService_Expiration(t *testing.T) {
	s, clk := newTestService(t, memory.New())
	ctx := context.Background()

	if err := s.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatal(err)
	}
	if got := Get(ctx, s, "k", ""); got != "v" {
		t.Fatalf("Get() before expiry = %q, want v", got)
	}

	clk.Step(59 * time.Second)
	if !s.Has(ctx, "k") {
		t.Fatal("Has() should be true before expiry")
	}

	clk.Step(time.Second)
	if got := Get(ctx, s, "k", "default"); got != "default" {
		t.Errorf("Get() at expiry = %q, want default", got)
	}
	if len(s.Keys(ctx)) != 0 {
		t.Errorf("expired key should be evicted on read, keys = %v", s.Keys(ctx))
	}
}

func TestService_ZeroTTLNeverExpires(t *testing.T) {
	s, clk := newTestService(t, memory.New())
	ctx := context.Background()

	if err := s.Set(ctx, "k", true, 0); err != nil {
		t.Fatal(err)
	}
	clk.Step(365 * 24 * time.Hour)
	if !Get(ctx, s, "k", false) {
		t.Error("entry without ttl should not expire")
	}
}

func TestService_Prefix(t *testing.T) {
	backend := memory.New()
	s, _ := newTestService(t, backend)
	ctx := context.Background()

	if err := s.Set(ctx, "token", "abc", 0); err != nil {
		t.Fatal(err)
	}
	raw, err := backend.Get(ctx, DefaultPrefix+"token")
	if err != nil {
		t.Fatalf("backend should hold prefixed key: %v", err)
	}

	var sv storedValue
	if err := json.Unmarshal(raw, &sv); err != nil {
		t.Fatal(err)
	}
	if string(sv.Value) != `"abc"` || sv.Expiration != nil {
		t.Errorf("envelope = %+v", sv)
	}
	if sv.Timestamp != time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC).UnixMilli() {
		t.Errorf("timestamp = %d, want clock time in ms", sv.Timestamp)
	}
}

func TestService_EncodeError(t *testing.T) {
	s, _ := newTestService(t, memory.New())

	err := s.Set(context.Background(), "bad", make(chan int), 0)
	if !errors.Is(err, domain.ErrStorageEncode) {
		t.Errorf("Set(chan) error = %v, want ErrStorageEncode", err)
	}
}

func TestService_MemoryOnly(t *testing.T) {
	t.Run("nil backend", func(t *testing.T) {
		s, _ := newTestService(t, nil)
		if s.StorageType() != TypeMemory || s.IsAvailable() {
			t.Errorf("StorageType() = %q, want memory", s.StorageType())
		}
		ctx := context.Background()
		if err := s.Set(ctx, "k", 1, 0); err != nil {
			t.Fatal(err)
		}
		if got := Get(ctx, s, "k", 0); got != 1 {
			t.Errorf("Get() = %d, want 1", got)
		}
	})

	t.Run("probe failure", func(t *testing.T) {
		fb := &flakyBackend{Backend: memory.New()}
		fb.failSets.Store(true)
		s, _ := newTestService(t, fb)
		if s.StorageType() != TypeMemory {
			t.Errorf("StorageType() = %q, want memory", s.StorageType())
		}
	})

	t.Run("persistent", func(t *testing.T) {
		s, _ := newTestService(t, memory.New())
		if s.StorageType() != TypePersistent {
			t.Errorf("StorageType() = %q, want persistent", s.StorageType())
		}
	})
}

func TestService_FallbackMirroring(t *testing.T) {
	fb := &flakyBackend{Backend: memory.New()}
	reg := metric.NewRegistry()
	s, _ := newTestService(t, fb, WithMetrics(reg))
	ctx := context.Background()

	fb.failSets.Store(true)
	if err := s.Set(ctx, "token", "abc", 0); err != nil {
		t.Fatalf("failed persistent write must not surface: %v", err)
	}
	if got := Get(ctx, s, "token", ""); got != "abc" {
		t.Errorf("Get() = %q, want mirrored value abc", got)
	}
	if n := testutil.ToFloat64(reg.StorageFallbackWrites); n != 1 {
		t.Errorf("fallback writes = %v, want 1", n)
	}

	// Once the engine recovers the stale memory copy is dropped.
	fb.failSets.Store(false)
	if err := s.Set(ctx, "token", "def", 0); err != nil {
		t.Fatal(err)
	}
	if got := Get(ctx, s, "token", ""); got != "def" {
		t.Errorf("Get() = %q, want def", got)
	}
	if s.fallback.Len() != 0 {
		t.Errorf("fallback should be empty after recovery, len = %d", s.fallback.Len())
	}

	// A failed overwrite must hide the older persisted value.
	fb.failSets.Store(true)
	if err := s.Set(ctx, "token", "ghi", 0); err != nil {
		t.Fatal(err)
	}
	if got := Get(ctx, s, "token", ""); got != "ghi" {
		t.Errorf("Get() after failed overwrite = %q, want ghi", got)
	}
	var loaded string
	if !s.Load(ctx, "token", &loaded) || loaded != "ghi" {
		t.Errorf("Load() after failed overwrite = %q, want ghi", loaded)
	}

	// Remove clears both copies.
	s.Remove(ctx, "token")
	if s.Has(ctx, "token") {
		t.Error("Has(token) after Remove = true")
	}
}

func TestService_RemoveHasClear(t *testing.T) {
	s, _ := newTestService(t, memory.New())
	ctx := context.Background()

	_ = s.SetBulk(ctx, map[string]any{"a": 1, "b": 2, "c": 3}, 0)
	if !s.Has(ctx, "a") {
		t.Fatal("Has(a) = false")
	}

	s.Remove(ctx, "a")
	if s.Has(ctx, "a") {
		t.Error("Has(a) after Remove = true")
	}

	if n := s.Clear(ctx); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if keys := s.Keys(ctx); len(keys) != 0 {
		t.Errorf("Keys() after Clear = %v", keys)
	}
}

func TestService_ClearKeepsForeignKeys(t *testing.T) {
	backend := memory.New()
	s, _ := newTestService(t, backend)
	ctx := context.Background()

	_ = backend.Set(ctx, "other_app_key", []byte("x"))
	_ = s.Set(ctx, "mine", 1, 0)
	s.Clear(ctx)

	if _, err := backend.Get(ctx, "other_app_key"); err != nil {
		t.Errorf("Clear() removed a foreign key: %v", err)
	}
}

func TestService_BulkAndInfo(t *testing.T) {
	s, _ := newTestService(t, memory.New())
	ctx := context.Background()

	err := s.SetBulk(ctx, map[string]any{"x": "1", "y": []int{1, 2}, "bad": func() {}}, 0)
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("SetBulk() error = %v, want failure naming bad", err)
	}

	got := s.GetBulk(ctx, "x", "y", "missing")
	if len(got) != 2 {
		t.Fatalf("GetBulk() = %v, want 2 entries", got)
	}
	if string(got["y"]) != "[1,2]" {
		t.Errorf("GetBulk()[y] = %s", got["y"])
	}

	info := s.Info(ctx)
	if info.ItemCount != 2 || info.TotalSize <= 0 || !info.Supported || info.StorageType != TypePersistent {
		t.Errorf("Info() = %+v", info)
	}
}

func TestService_Migrate(t *testing.T) {
	s, clk := newTestService(t, memory.New())
	ctx := context.Background()

	_ = s.Set(ctx, "prefs", map[string]any{"theme": "dark"}, time.Hour)

	ok, err := s.Migrate(ctx, "prefs", func(old json.RawMessage) (any, error) {
		var m map[string]any
		if err := json.Unmarshal(old, &m); err != nil {
			return nil, err
		}
		m["compactView"] = true
		return m, nil
	})
	if err != nil || !ok {
		t.Fatalf("Migrate() = %v, %v", ok, err)
	}

	var m map[string]any
	if !s.Load(ctx, "prefs", &m) || m["compactView"] != true {
		t.Errorf("migrated value = %v", m)
	}

	// Expiration is preserved.
	clk.Step(time.Hour)
	if s.Has(ctx, "prefs") {
		t.Error("migrated entry should keep its expiration")
	}

	ok, err = s.Migrate(ctx, "absent", func(json.RawMessage) (any, error) { return nil, nil })
	if ok || err != nil {
		t.Errorf("Migrate(absent) = %v, %v, want false, nil", ok, err)
	}
}

func TestService_Cleanup(t *testing.T) {
	backend := memory.New()
	reg := metric.NewRegistry()
	s, clk := newTestService(t, backend, WithMetrics(reg))
	ctx := context.Background()

	_ = s.Set(ctx, "short", 1, time.Minute)
	_ = s.Set(ctx, "long", 1, time.Hour)
	_ = s.Set(ctx, "forever", 1, 0)
	_ = backend.Set(ctx, DefaultPrefix+"garbage", []byte("{not json"))

	clk.Step(2 * time.Minute)
	if n := s.Cleanup(ctx); n != 2 {
		t.Errorf("Cleanup() = %d, want 2", n)
	}
	keys := s.Keys(ctx)
	if strings.Join(keys, ",") != "forever,long" {
		t.Errorf("Keys() after Cleanup = %v", keys)
	}
	if n := testutil.ToFloat64(reg.StorageEvictions); n != 2 {
		t.Errorf("evictions = %v, want 2", n)
	}
}

func TestService_ExportImport(t *testing.T) {
	src, _ := newTestService(t, memory.New())
	ctx := context.Background()

	_ = src.Set(ctx, domain.KeyToken, "secret-token", 0)
	_ = src.Set(ctx, domain.KeyTenant, "t1", 0)
	_ = src.Set(ctx, domain.KeyPreferences, domain.DefaultPreferences(), 0)

	backup, err := src.Export(ctx, domain.KeyToken)
	if err != nil {
		t.Fatal(err)
	}
	if backup.Version != BackupVersion {
		t.Errorf("Version = %q", backup.Version)
	}
	if _, ok := backup.Data[domain.KeyToken]; ok {
		t.Error("excluded key was exported")
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(backup); err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseBackup(&buf)
	if err != nil {
		t.Fatal(err)
	}

	dst, _ := newTestService(t, memory.New())
	res, err := dst.Import(ctx, parsed)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 || res.Total != 2 || len(res.Errors) != 0 {
		t.Errorf("Import() = %+v", res)
	}
	if got := Get(ctx, dst, domain.KeyTenant, ""); got != "t1" {
		t.Errorf("imported tenant = %q", got)
	}
	prefs := Get(ctx, dst, domain.KeyPreferences, domain.Preferences{})
	if prefs != domain.DefaultPreferences() {
		t.Errorf("imported preferences = %+v", prefs)
	}
}

func TestService_ImportInvalid(t *testing.T) {
	s, _ := newTestService(t, memory.New())
	ctx := context.Background()

	if _, err := s.Import(ctx, &Backup{}); !errors.Is(err, domain.ErrInvalidBackup) {
		t.Errorf("Import(no data) error = %v, want ErrInvalidBackup", err)
	}
	if _, err := ParseBackup(strings.NewReader("nope")); !errors.Is(err, domain.ErrInvalidBackup) {
		t.Errorf("ParseBackup(garbage) error = %v, want ErrInvalidBackup", err)
	}

	res, err := s.Import(ctx, &Backup{Data: map[string]json.RawMessage{
		"ok":  json.RawMessage(`1`),
		"bad": json.RawMessage(`{`),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 || res.Total != 2 || len(res.Errors) != 1 {
		t.Errorf("Import() = %+v", res)
	}
}

func TestService_Encryption(t *testing.T) {
	backend := memory.New()
	ctx := context.Background()
	s, _ := newTestService(t, backend, WithPassphrase("correct horse"))

	if !s.Encrypted() {
		t.Fatal("Encrypted() = false")
	}
	if err := s.Set(ctx, "token", "plain-secret", 0); err != nil {
		t.Fatal(err)
	}

	raw, err := backend.Get(ctx, DefaultPrefix+"token")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("plain-secret")) {
		t.Error("persisted bytes contain the plaintext value")
	}
	if got := Get(ctx, s, "token", ""); got != "plain-secret" {
		t.Errorf("Get() = %q", got)
	}

	// A second service over the same engine reuses the stored salt.
	again, _ := newTestService(t, backend, WithPassphrase("correct horse"))
	if got := Get(ctx, again, "token", ""); got != "plain-secret" {
		t.Errorf("reopened Get() = %q", got)
	}

	wrong, _ := newTestService(t, backend, WithPassphrase("wrong passphrase"))
	if got := Get(ctx, wrong, "token", "none"); got != "none" {
		t.Errorf("wrong passphrase Get() = %q, want none", got)
	}
}

func TestService_WeakPassphrase(t *testing.T) {
	_, err := New(context.Background(), memory.New(), WithPassphrase("short"), WithLogger(logger.Nop()))
	if !errors.Is(err, ErrPassphraseTooWeak) {
		t.Errorf("New() error = %v, want ErrPassphraseTooWeak", err)
	}
}

func TestService_WithBadger(t *testing.T) {
	b := newTestBadger(t)
	s, clk := newTestService(t, b)
	ctx := context.Background()

	if s.StorageType() != TypePersistent {
		t.Fatalf("StorageType() = %q", s.StorageType())
	}
	_ = s.Set(ctx, domain.KeyUser, domain.User{ID: "u1", Email: "a@b.co", Role: domain.RoleAdmin}, 10*time.Minute)

	u := Get(ctx, s, domain.KeyUser, domain.User{})
	if u.ID != "u1" || u.Role != domain.RoleAdmin {
		t.Errorf("user = %+v", u)
	}

	clk.Step(10 * time.Minute)
	if s.Has(ctx, domain.KeyUser) {
		t.Error("expired user should be gone")
	}
	if _, err := b.Get(ctx, DefaultPrefix+domain.KeyUser); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expired entry should be deleted from badger, err = %v", err)
	}
}
