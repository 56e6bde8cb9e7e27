// Package templates serves the approved SQL templates embedded in the binary.
package templates

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/Strob0t/paddock/internal/domain/template"
)

//go:embed sql/*.sql
var embedded embed.FS

// ErrUnknownTemplate is returned for ids with no approved SQL file.
var ErrUnknownTemplate = errors.New("unknown template")

// Store loads template text once and serves it from memory afterwards.
type Store struct {
	fsys fs.FS

	mu    sync.RWMutex
	cache map[template.ID]string
}

// New returns a store over the embedded templates.
func New() *Store {
	sub, _ := fs.Sub(embedded, "sql")
	return NewFS(sub)
}

// NewFS returns a store reading <id>.sql files from fsys.
func NewFS(fsys fs.FS) *Store {
	return &Store{fsys: fsys, cache: make(map[template.ID]string)}
}

// Load returns the SQL for id.
func (s *Store) Load(_ context.Context, id template.ID) (string, error) {
	s.mu.RLock()
	sql, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return sql, nil
	}

	b, err := fs.ReadFile(s.fsys, string(id)+".sql")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("load template %s: %w", id, ErrUnknownTemplate)
		}
		return "", fmt.Errorf("load template %s: %w", id, err)
	}
	sql = strings.TrimSpace(string(b))
	if sql == "" {
		return "", fmt.Errorf("load template %s: empty file", id)
	}

	s.mu.Lock()
	s.cache[id] = sql
	s.mu.Unlock()
	return sql, nil
}

// Preload loads every id and reports all that failed in one error.
func (s *Store) Preload(ctx context.Context, ids []template.ID) error {
	var errs []error
	for _, id := range ids {
		if _, err := s.Load(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Loaded returns the number of cached templates.
func (s *Store) Loaded() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
