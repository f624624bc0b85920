package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/kubedash/kubedash-go/internal/core/domain"
)

// BackupVersion is the format version written by Export.
const BackupVersion = "1.0"

// Backup is the portable export document.
type Backup struct {
	Timestamp time.Time                  `json:"timestamp"`
	Version   string                     `json:"version"`
	Data      map[string]json.RawMessage `json:"data"`
}

// ImportResult summarises an Import.
type ImportResult struct {
	Imported int      `json:"imported" yaml:"imported"`
	Errors   []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Total    int      `json:"total" yaml:"total"`
}

// Export returns every live entry except the excluded keys.
// Expiration is not carried over.
func (s *Service) Export(ctx context.Context, exclude ...string) (*Backup, error) {
	b := &Backup{
		Timestamp: s.clock.Now().UTC(),
		Version:   BackupVersion,
		Data:      make(map[string]json.RawMessage),
	}
	for _, k := range s.Keys(ctx) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if slices.Contains(exclude, k) {
			continue
		}
		if raw, ok := s.Raw(ctx, k); ok {
			b.Data[k] = raw
		}
	}
	return b, nil
}

// Import stores every entry of b without expiration.
func (s *Service) Import(ctx context.Context, b *Backup) (ImportResult, error) {
	if b == nil || b.Data == nil {
		return ImportResult{}, domain.ErrInvalidBackup
	}
	if b.Version != "" && b.Version != BackupVersion {
		s.logger.Warn("importing backup with unknown version", "version", b.Version)
	}

	keys := make([]string, 0, len(b.Data))
	for k := range b.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	res := ImportResult{Total: len(keys)}
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw := b.Data[k]
		if k == "" || !json.Valid(raw) {
			res.Errors = append(res.Errors, fmt.Sprintf("%q: invalid value", k))
			continue
		}
		if err := s.Set(ctx, k, raw, 0); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%q: %v", k, err))
			continue
		}
		res.Imported++
	}
	return res, nil
}

// ParseBackup decodes a backup document.
func ParseBackup(r io.Reader) (*Backup, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, domain.ErrInvalidBackup.WithCause(err)
	}
	if b.Data == nil {
		return nil, domain.ErrInvalidBackup
	}
	return &b, nil
}
