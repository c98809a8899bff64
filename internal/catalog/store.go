// Package catalog persists catalog records as one JSON file per entity,
// keyed by canonical ID, and provides the read-only query surface the API
// serves. Manga and anime live in separate collection directories.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned by Get when no record exists for an ID.
var ErrNotFound = errors.New("catalog: entry not found")

// Store is a file-per-entity collection rooted at one directory.
// Uniqueness per canonical ID is enforced by the filename itself.
//
// Writes go through a per-ID mutex and a temp-file rename, so concurrent
// writers to the same ID never interleave partial file contents and a
// reader never observes a torn record. Distinct IDs do not contend.
type Store[T any] struct {
	dir   string
	locks sync.Map // id -> *sync.Mutex
}

// NewStore opens (creating if needed) the collection directory.
func NewStore[T any](dir string) (*Store[T], error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("catalog: ensure dir %s: %w", dir, err)
	}
	return &Store[T]{dir: dir}, nil
}

// Dir returns the collection root.
func (s *Store[T]) Dir() string { return s.dir }

func (s *Store[T]) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store[T]) lock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Get reads one record. Returns ErrNotFound when the file does not exist
// and a decode error when the stored record is corrupt.
func (s *Store[T]) Get(id string) (*T, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("catalog: read %s: %w", id, err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", id, err)
	}
	return &v, nil
}

// Upsert writes the full record for id, creating or overwriting it.
func (s *Store[T]) Upsert(id string, v *T) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()
	return s.write(id, v)
}

// Update applies fn to the latest stored record under the per-ID lock and
// writes the result back. This is the read-modify-write path components
// use when they own only some of a record's fields (e.g. the cover cache
// setting the local cover path while a reconcile may be writing metadata).
func (s *Store[T]) Update(id string, fn func(*T) error) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	v, err := s.Get(id)
	if err != nil {
		return err
	}
	if err := fn(v); err != nil {
		return err
	}
	return s.write(id, v)
}

// write publishes the record with a temp file + rename so a crash or a
// concurrent reader never sees a truncated JSON document.
func (s *Store[T]) write(id string, v *T) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("catalog: encode %s: %w", id, err)
	}

	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return fmt.Errorf("catalog: temp file for %s: %w", id, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("catalog: write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("catalog: close temp for %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("catalog: publish %s: %w", id, err)
	}
	return nil
}

// List lazily enumerates the collection as (id, record) pairs.
//
// A record that fails to decode is logged for that one ID and skipped; it
// never aborts enumeration of the rest. Enumeration tolerates concurrent
// upserts (eventual, not snapshot-isolated), which is fine for the
// periodic batch workload this store serves.
func (s *Store[T]) List() iter.Seq2[string, *T] {
	return func(yield func(string, *T) bool) {
		names, err := os.ReadDir(s.dir)
		if err != nil {
			log.Error().Err(err).Str("dir", s.dir).Msg("catalog: list collection")
			return
		}
		for _, entry := range names {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".json") {
				continue
			}
			id := strings.TrimSuffix(name, ".json")
			v, err := s.Get(id)
			if err != nil {
				log.Warn().Err(err).Str("id", id).Msg("catalog: skipping unreadable record")
				continue
			}
			if !yield(id, v) {
				return
			}
		}
	}
}
