// Package scanner keeps the catalog in sync with the bulk upstream
// sources: the manga index dump and the anime offline database.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"mangashelf/internal/catalog"
	"mangashelf/internal/covers"
	"mangashelf/internal/identity"
	"mangashelf/internal/metadata"
	"mangashelf/pkg/models"
)

// IndexEntry is one record of the bulk manga index dump.
type IndexEntry struct {
	SourceKey   string `json:"source_key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
}

// Stats summarizes one scan pass.
type Stats struct {
	Created int
	Updated int
	Skipped int
}

// Scanner discovers manga entries from the bulk index: new entries get a
// skeleton record and are handed to the hydrator, existing entries get
// their upstream-mutable fields refreshed.
type Scanner struct {
	Store     *catalog.Store[models.Manga]
	Covers    *covers.Cache
	Hydrator  *Hydrator
	IndexPath string
	Now       func() time.Time
}

// Scan loads the index file and processes every entry in it.
func (s *Scanner) Scan(ctx context.Context) (Stats, error) {
	data, err := os.ReadFile(s.IndexPath)
	if err != nil {
		return Stats{}, fmt.Errorf("scanner: read index %s: %w", s.IndexPath, err)
	}

	var entries []IndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return Stats{}, fmt.Errorf("scanner: decode index: %w", err)
	}

	stats := s.ScanIndex(ctx, entries)
	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Msg("scanner: index scan done")
	return stats, nil
}

// ScanIndex processes the given index entries. Each entry is handled on
// its own: a bad entry is skipped with a warning and never aborts the
// batch. Running the same index twice creates nothing new and changes no
// field besides updated_at.
func (s *Scanner) ScanIndex(ctx context.Context, entries []IndexEntry) Stats {
	var stats Stats
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		id, err := identity.AssignID(entry.SourceKey)
		if err != nil {
			log.Warn().Err(err).Str("title", entry.Title).Msg("scanner: skipping index entry")
			stats.Skipped++
			continue
		}

		switch _, err := s.Store.Get(id); {
		case errors.Is(err, catalog.ErrNotFound):
			if err := s.create(id, entry); err != nil {
				log.Warn().Err(err).Str("id", id).Msg("scanner: create failed")
				stats.Skipped++
				continue
			}
			stats.Created++
			s.Hydrator.Enqueue(metadata.KindManga, id)

		case err != nil:
			log.Warn().Err(err).Str("id", id).Msg("scanner: skipping unreadable record")
			stats.Skipped++
			continue

		default:
			hydrated, err := s.refresh(id, entry)
			if err != nil {
				log.Warn().Err(err).Str("id", id).Msg("scanner: refresh failed")
				stats.Skipped++
				continue
			}
			stats.Updated++
			if !hydrated {
				s.Hydrator.Enqueue(metadata.KindManga, id)
			}
		}

		if entry.CoverURL != "" {
			s.Covers.Enqueue(metadata.KindManga, id, entry.CoverURL)
		}
	}
	return stats
}

// create writes a skeleton record. An empty title is allowed: the entry
// simply ranks last in search until upstream supplies one.
func (s *Scanner) create(id string, entry IndexEntry) error {
	m := &models.Manga{
		CatalogEntry: models.NewCatalogEntry(id, s.now()),
		Volumes:      []models.Volume{},
	}
	m.Title = entry.Title
	m.Description = entry.Description
	m.CoverURL = entry.CoverURL
	m.Sources = []string{entry.SourceKey}
	return s.Store.Upsert(id, m)
}

// refresh updates only the upstream-mutable fields. Fields owned by
// reconciliation or edits (genres, alternative titles, scores) are left
// untouched. Reports whether the record is already hydrated.
func (s *Scanner) refresh(id string, entry IndexEntry) (bool, error) {
	var hydrated bool
	err := s.Store.Update(id, func(m *models.Manga) error {
		if entry.Title != "" {
			m.Title = entry.Title
		}
		if entry.Description != "" {
			m.Description = entry.Description
		}
		if entry.CoverURL != "" {
			m.CoverURL = entry.CoverURL
		}
		m.Sources = appendIfMissing(m.Sources, entry.SourceKey)
		m.UpdatedAt = s.now()
		hydrated = m.FetchedMetadata
		return nil
	})
	return hydrated, err
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func appendIfMissing(slice []string, v string) []string {
	for _, x := range slice {
		if x == v {
			return slice
		}
	}
	return append(slice, v)
}
