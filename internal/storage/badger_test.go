package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kubedash/kubedash-go/internal/telemetry/logger"
	"github.com/kubedash/kubedash-go/internal/telemetry/metric"
)

func newTestBadger(t *testing.T) *BadgerBackend {
	t.Helper()
	cfg := DefaultBadgerConfig(t.TempDir())
	cfg.GCInterval = time.Hour
	cfg.SyncWrites = false

	b, err := NewBadgerBackend(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("NewBadgerBackend() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBadgerBackend_BasicOperations(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()

	t.Run("Set and Get", func(t *testing.T) {
		if err := b.Set(ctx, "k8s_dashboard_token", []byte(`"abc"`)); err != nil {
			t.Fatal(err)
		}
		got, err := b.Get(ctx, "k8s_dashboard_token")
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != `"abc"` {
			t.Errorf("Get() = %s, want \"abc\"", got)
		}
	})

	t.Run("Get missing key", func(t *testing.T) {
		if _, err := b.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get() error = %v, want ErrKeyNotFound", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := b.Set(ctx, "gone", []byte("1")); err != nil {
			t.Fatal(err)
		}
		if err := b.Delete(ctx, "gone"); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Get(ctx, "gone"); !errors.Is(err, ErrKeyNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrKeyNotFound", err)
		}
	})
}

func TestBadgerBackend_Scan(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := b.Set(ctx, fmt.Sprintf("p_%d", i), []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Set(ctx, "other", []byte("x")); err != nil {
		t.Fatal(err)
	}

	var keys []string
	err := b.Scan(ctx, "p_", func(k string, _ []byte) bool {
		keys = append(keys, k)
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 5 {
		t.Fatalf("Scan visited %d keys, want 5: %v", len(keys), keys)
	}
	if keys[0] != "p_0" || keys[4] != "p_4" {
		t.Errorf("Scan order = %v, want sorted", keys)
	}

	visited := 0
	_ = b.Scan(ctx, "p_", func(string, []byte) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Errorf("early stop visited %d keys, want 2", visited)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if err := b.Scan(cctx, "p_", func(string, []byte) bool { return true }); !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() with cancelled ctx error = %v, want context.Canceled", err)
	}
}

func TestBadgerBackend_Persistence(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultBadgerConfig(dir)
	cfg.GCInterval = time.Hour
	ctx := context.Background()

	b, err := NewBadgerBackend(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Set(ctx, "persist", []byte("yes")); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	b, err = NewBadgerBackend(cfg, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	got, err := b.Get(ctx, "persist")
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if string(got) != "yes" {
		t.Errorf("Get() = %s, want yes", got)
	}
}

func TestBadgerBackend_InMemory(t *testing.T) {
	b, err := NewBadgerBackend(BadgerConfig{InMemory: true, GCInterval: time.Hour}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	ctx := context.Background()
	if err := b.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	n, err := b.GC(ctx)
	if err != nil {
		t.Errorf("GC() in memory mode error = %v", err)
	}
	if n != 0 {
		t.Errorf("GC() rewrites = %d, want 0", n)
	}
	if b.Stats().GCRuns != 1 {
		t.Errorf("GCRuns = %d, want 1", b.Stats().GCRuns)
	}
}

func TestBadgerBackend_RequiresDir(t *testing.T) {
	if _, err := NewBadgerBackend(BadgerConfig{}, logger.Nop()); err == nil {
		t.Error("NewBadgerBackend() without dir should fail")
	}
}

func TestBadgerBackend_Close(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := b.Set(ctx, "k", []byte("v")); !errors.Is(err, ErrClosed) {
		t.Errorf("Set() after Close error = %v, want ErrClosed", err)
	}
	if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get() after Close error = %v, want ErrClosed", err)
	}
}

func TestBadgerBackend_RegisterMetrics(t *testing.T) {
	b := newTestBadger(t)
	reg := metric.NewRegistry()

	if err := b.RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics() error = %v", err)
	}
	if err := b.RegisterMetrics(reg); err == nil {
		t.Error("second RegisterMetrics() should report duplicate collectors")
	}

	families, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "kubedash_badger_lsm_size_bytes" {
			found = true
		}
	}
	if !found {
		t.Error("kubedash_badger_lsm_size_bytes not gathered")
	}
}
