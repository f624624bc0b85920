package storage

import (
	"context"
	"time"

	"github.com/kubedash/kubedash-go/internal/storage/memory"
)

// Common errors, shared with the memory engine.
var (
	ErrKeyNotFound = memory.ErrKeyNotFound
	ErrClosed      = memory.ErrClosed
)

var _ Backend = (*memory.Backend)(nil)

// Backend is a byte-oriented key-value engine.
//
// Implementations must be safe for concurrent use. Get returns
// ErrKeyNotFound for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Scan visits every key with the given prefix in key order.
	// fn returns false to stop iteration.
	Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error

	Close() error
}

// BadgerConfig contains Badger tuning parameters.
type BadgerConfig struct {
	// Dir is the storage directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps all data in memory (tests).
	InMemory bool

	// GCInterval is the interval between automatic value-log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 8MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// SyncWrites enables fsync after each write.
	// Default: true
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration for dir.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        8 << 20,  // 8MB
		ValueLogFileSize: 64 << 20, // 64MB
		SyncWrites:       true,
	}
}
