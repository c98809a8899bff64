package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mangashelf/internal/catalog"
	"mangashelf/internal/covers"
	"mangashelf/internal/identity"
	"mangashelf/internal/metadata"
	"mangashelf/pkg/models"
)

// DefaultDatabaseURL is the anime offline database published upstream.
const DefaultDatabaseURL = "https://raw.githubusercontent.com/manami-project/anime-offline-database/master/anime-offline-database.json"

// DatabaseEntry is one record of the anime offline database. sources[0]
// is the entry's canonical source key.
type DatabaseEntry struct {
	Sources  []string `json:"sources"`
	Title    string   `json:"title"`
	Synonyms []string `json:"synonyms"`
	Tags     []string `json:"tags"`
	Episodes int      `json:"episodes"`
	Status   string   `json:"status"`
	Type     string   `json:"type"`
	Picture  string   `json:"picture"`
}

type offlineDatabase struct {
	Data []DatabaseEntry `json:"data"`
}

// Refresher maintains the anime collection from the offline database: a
// daily re-download plus a refresh pass that creates skeletons and
// resyncs upstream-mutable fields.
type Refresher struct {
	Store     *catalog.Store[models.Anime]
	Covers    *covers.Cache
	Hydrator  *Hydrator
	URL       string
	LocalPath string
	Client    *http.Client
	Now       func() time.Time
}

// Download fetches the offline database to LocalPath. The file is
// written to a temp location first so a broken transfer never replaces a
// good local copy.
func (r *Refresher) Download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return fmt.Errorf("animedb: build request: %w", err)
	}

	resp, err := r.client().Do(req)
	if err != nil {
		return fmt.Errorf("animedb: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("animedb: download: status %d", resp.StatusCode)
	}

	// Same directory as the destination so the final rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(r.LocalPath), "animedb.*.tmp")
	if err != nil {
		return fmt.Errorf("animedb: temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("animedb: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("animedb: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.LocalPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("animedb: publish: %w", err)
	}

	log.Info().Str("path", r.LocalPath).Msg("animedb: database downloaded")
	return nil
}

// Sync is the daily job: re-download the database, then refresh from it.
func (r *Refresher) Sync(ctx context.Context) error {
	if err := r.Download(ctx); err != nil {
		return err
	}
	_, err := r.Refresh(ctx)
	return err
}

// Refresh processes the local database copy.
func (r *Refresher) Refresh(ctx context.Context) (Stats, error) {
	data, err := os.ReadFile(r.LocalPath)
	if err != nil {
		return Stats{}, fmt.Errorf("animedb: read %s: %w", r.LocalPath, err)
	}

	var db offlineDatabase
	if err := json.Unmarshal(data, &db); err != nil {
		return Stats{}, fmt.Errorf("animedb: decode database: %w", err)
	}

	stats := r.process(ctx, db.Data)
	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Msg("animedb: refresh done")
	return stats, nil
}

func (r *Refresher) process(ctx context.Context, entries []DatabaseEntry) Stats {
	var stats Stats
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		var sourceKey string
		if len(entry.Sources) > 0 {
			sourceKey = entry.Sources[0]
		}
		id, err := identity.AssignID(sourceKey)
		if err != nil {
			log.Warn().Err(err).Str("title", entry.Title).Msg("animedb: skipping entry")
			stats.Skipped++
			continue
		}

		switch _, err := r.Store.Get(id); {
		case errors.Is(err, catalog.ErrNotFound):
			if err := r.create(id, entry); err != nil {
				log.Warn().Err(err).Str("id", id).Msg("animedb: create failed")
				stats.Skipped++
				continue
			}
			stats.Created++
			r.Hydrator.Enqueue(metadata.KindAnime, id)

		case err != nil:
			log.Warn().Err(err).Str("id", id).Msg("animedb: skipping unreadable record")
			stats.Skipped++
			continue

		default:
			hydrated, err := r.refresh(id, entry)
			if err != nil {
				log.Warn().Err(err).Str("id", id).Msg("animedb: refresh failed")
				stats.Skipped++
				continue
			}
			stats.Updated++
			if !hydrated {
				r.Hydrator.Enqueue(metadata.KindAnime, id)
			}
		}

		if entry.Picture != "" {
			r.Covers.Enqueue(metadata.KindAnime, id, entry.Picture)
		}
	}
	return stats
}

func (r *Refresher) create(id string, entry DatabaseEntry) error {
	a := &models.Anime{
		CatalogEntry: models.NewCatalogEntry(id, r.now()),
		Episodes:     entry.Episodes,
		Status:       entry.Status,
		Type:         entry.Type,
		Characters:   []models.Character{},
		Relations:    []models.Relation{},
		WatchOrder:   models.WatchOrder{Prequels: []string{}, Sequels: []string{}},
	}
	a.Title = entry.Title
	a.AlternativeTitles = append([]string{}, entry.Synonyms...)
	a.Genres = append([]string{}, entry.Tags...)
	a.CoverURL = entry.Picture
	a.Sources = append([]string{}, entry.Sources...)
	a.IsR18 = hasAdultTag(entry.Tags)
	return r.Store.Upsert(id, a)
}

// refresh resyncs the upstream-owned fields (title, cover URL, episode
// count, status, type, source list). Merge-protected fields stay as the
// reconciler or an edit left them; is_r18 only ever flips to true.
func (r *Refresher) refresh(id string, entry DatabaseEntry) (bool, error) {
	var hydrated bool
	err := r.Store.Update(id, func(a *models.Anime) error {
		if entry.Title != "" {
			a.Title = entry.Title
		}
		if entry.Picture != "" {
			a.CoverURL = entry.Picture
		}
		if entry.Episodes > 0 {
			a.Episodes = entry.Episodes
		}
		if entry.Status != "" {
			a.Status = entry.Status
		}
		if entry.Type != "" {
			a.Type = entry.Type
		}
		if len(entry.Sources) > 0 {
			a.Sources = append([]string{}, entry.Sources...)
		}
		a.IsR18 = a.IsR18 || hasAdultTag(entry.Tags)
		a.UpdatedAt = r.now()
		hydrated = a.FetchedMetadata
		return nil
	})
	return hydrated, err
}

func hasAdultTag(tags []string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, "hentai") {
			return true
		}
	}
	return false
}

func (r *Refresher) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

func (r *Refresher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
