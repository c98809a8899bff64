// Package covers downloads cover images exactly once per catalog entry
// and records the local path on the entry.
package covers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"mangashelf/internal/catalog"
	"mangashelf/internal/metadata"
	"mangashelf/pkg/models"
)

type task struct {
	kind metadata.Kind
	id   string
	url  string
}

// Cache fetches remote covers into one local assets directory.
//
// A cover that already exists locally is never re-fetched: the path check
// runs before any network call, so every scan cycle after the first is
// free. Downloads land in a temp file and are published by rename, so a
// failed transfer never leaves a truncated image under the final path.
type Cache struct {
	Dir    string
	Client *http.Client
	Manga  *catalog.Store[models.Manga]
	Anime  *catalog.Store[models.Anime]

	queue chan task
}

// NewCache creates the cache rooted at dir.
func NewCache(dir string, manga *catalog.Store[models.Manga], anime *catalog.Store[models.Anime]) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("covers: ensure dir %s: %w", dir, err)
	}
	return &Cache{
		Dir:    dir,
		Client: &http.Client{Timeout: 30 * time.Second},
		Manga:  manga,
		Anime:  anime,
		queue:  make(chan task, 256),
	}, nil
}

func (c *Cache) filename(kind metadata.Kind, id string) string {
	if kind == metadata.KindAnime {
		return "anime_" + id + ".jpg"
	}
	return id + ".jpg"
}

// Path returns where the cover for (kind, id) lives on disk.
func (c *Cache) Path(kind metadata.Kind, id string) string {
	return filepath.Join(c.Dir, c.filename(kind, id))
}

// Enqueue hands a cover download to the worker pool without blocking the
// caller. A full queue drops the task; the next scan cycle re-issues it
// because the local-file check will still miss.
func (c *Cache) Enqueue(kind metadata.Kind, id, remoteURL string) {
	select {
	case c.queue <- task{kind: kind, id: id, url: remoteURL}:
	default:
		log.Warn().Str("id", id).Msg("covers: queue full, deferring to next cycle")
	}
}

// Start runs workers until ctx is cancelled.
func (c *Cache) Start(ctx context.Context, workers int) error {
	if workers <= 0 {
		workers = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	for range workers {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case t := <-c.queue:
					if err := c.Ensure(ctx, t.kind, t.id, t.url); err != nil {
						log.Warn().Err(err).Str("id", t.id).Msg("covers: download failed")
					}
				}
			}
		})
	}
	return g.Wait()
}

// Ensure makes the cover for (kind, id) present locally. No-op when the
// file already exists. On success the entry's cover field is set through
// a minimal read-modify-write so a concurrent reconcile of the same
// record is never clobbered.
func (c *Cache) Ensure(ctx context.Context, kind metadata.Kind, id, remoteURL string) error {
	dst := c.Path(kind, id)
	if _, err := os.Stat(dst); err == nil {
		return nil
	}

	if err := c.download(ctx, remoteURL, dst); err != nil {
		return err
	}

	served := path.Join("/covers", c.filename(kind, id))
	switch kind {
	case metadata.KindAnime:
		return c.Anime.Update(id, func(a *models.Anime) error {
			a.Cover = served
			return nil
		})
	default:
		return c.Manga.Update(id, func(m *models.Manga) error {
			m.Cover = served
			return nil
		})
	}
}

func (c *Cache) download(ctx context.Context, remoteURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return fmt.Errorf("covers: build request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("covers: fetch %s: %w", remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("covers: fetch %s: status %d", remoteURL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.Dir, "cover.*.tmp")
	if err != nil {
		return fmt.Errorf("covers: temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("covers: write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("covers: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("covers: publish %s: %w", dst, err)
	}
	return nil
}
