package memory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/kubedash/kubedash-go/pkg/cmap"
)

// Errors returned by Backend. The storage package re-exports them.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("storage backend closed")
)

// Backend is an in-memory implementation of storage.Backend.
type Backend struct {
	data   *cmap.Map[[]byte]
	closed atomic.Bool
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{data: cmap.New[[]byte]()}
}

// Get retrieves a copy of the value stored under key.
func (b *Backend) Get(_ context.Context, key string) ([]byte, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	v, ok := b.data.Get(key)
	if !ok {
		return nil, ErrKeyNotFound
	}
	return slices.Clone(v), nil
}

// Set stores a copy of value under key.
func (b *Backend) Set(_ context.Context, key string, value []byte) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.data.Set(key, slices.Clone(value))
	return nil
}

// Delete removes key.
func (b *Backend) Delete(_ context.Context, key string) error {
	if b.closed.Load() {
		return ErrClosed
	}
	b.data.Delete(key)
	return nil
}

// Scan visits keys with the given prefix in sorted order.
func (b *Backend) Scan(ctx context.Context, prefix string, fn func(key string, value []byte) bool) error {
	if b.closed.Load() {
		return ErrClosed
	}
	keys := make([]string, 0)
	b.data.Range(func(k string, _ []byte) bool {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
		return true
	})
	slices.Sort(keys)

	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, ok := b.data.Get(k)
		if !ok {
			continue
		}
		if !fn(k, slices.Clone(v)) {
			break
		}
	}
	return nil
}

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	return b.data.Count()
}

// Close marks the backend closed and drops its contents.
func (b *Backend) Close() error {
	if b.closed.CompareAndSwap(false, true) {
		b.data.Clear()
	}
	return nil
}
