package scanner

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"mangashelf/internal/catalog"
	"mangashelf/internal/metadata"
	"mangashelf/pkg/models"
)

type hydrateTask struct {
	kind metadata.Kind
	id   string
}

// Hydrator is the channel-fed pool that runs the reconciler against
// newly discovered or still-unhydrated records. Handing hydration to a
// pool decouples discovery throughput from provider latency: a slow
// provider delays one worker, not the scan.
type Hydrator struct {
	Manga      *catalog.Store[models.Manga]
	Anime      *catalog.Store[models.Anime]
	Reconciler *metadata.Reconciler

	queue chan hydrateTask
}

// NewHydrator wires the pool to both collections and the reconciler.
func NewHydrator(manga *catalog.Store[models.Manga], anime *catalog.Store[models.Anime], rec *metadata.Reconciler) *Hydrator {
	return &Hydrator{
		Manga:      manga,
		Anime:      anime,
		Reconciler: rec,
		queue:      make(chan hydrateTask, 512),
	}
}

// Enqueue schedules hydration for one record without blocking. When the
// queue is full the task is dropped; the record stays unhydrated and the
// next scan cycle re-enqueues it.
func (h *Hydrator) Enqueue(kind metadata.Kind, id string) {
	select {
	case h.queue <- hydrateTask{kind: kind, id: id}:
	default:
		log.Warn().Str("id", id).Msg("hydrator: queue full, deferring to next cycle")
	}
}

// Start runs workers until ctx is cancelled.
func (h *Hydrator) Start(ctx context.Context, workers int) error {
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
				case t := <-h.queue:
					if err := h.Hydrate(ctx, t.kind, t.id); err != nil {
						log.Warn().Err(err).Str("id", t.id).Msg("hydrator: hydration failed")
					}
				}
			}
		})
	}
	return g.Wait()
}

// Hydrate reconciles one record in place, under the record's store lock
// so a concurrent cover write cannot be lost.
//
// A record without a title is left alone: providers match by title, so
// there is nothing to query yet. It stays unhydrated until a scan brings
// a title in.
func (h *Hydrator) Hydrate(ctx context.Context, kind metadata.Kind, id string) error {
	errNoTitle := errors.New("no title")

	var err error
	switch kind {
	case metadata.KindAnime:
		err = h.Anime.Update(id, func(a *models.Anime) error {
			if a.Title == "" {
				return errNoTitle
			}
			h.Reconciler.ReconcileAnime(ctx, a)
			return nil
		})
	default:
		err = h.Manga.Update(id, func(m *models.Manga) error {
			if m.Title == "" {
				return errNoTitle
			}
			h.Reconciler.ReconcileManga(ctx, m)
			return nil
		})
	}

	if errors.Is(err, errNoTitle) {
		log.Debug().Str("id", id).Msg("hydrator: skipping entry without title")
		return nil
	}
	return err
}
