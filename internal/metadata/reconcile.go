package metadata

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"mangashelf/pkg/models"
)

// Reconciler merges provider snapshots into catalog records.
//
// Providers are consulted in the order given, which is the system's
// declared merge precedence: for every merge-eligible field the first
// non-empty value wins and later providers cannot overwrite it. A field
// the record already has (from a previous run or an administrator edit)
// therefore never changes, which is also what makes reconciliation
// idempotent. Scores are the exception: each provider keeps its own slot
// and the average is recomputed from whatever slots are set.
type Reconciler struct {
	Providers []Provider
	Now       func() time.Time
}

// NewReconciler builds a reconciler over providers in precedence order.
func NewReconciler(providers ...Provider) *Reconciler {
	return &Reconciler{Providers: providers, Now: time.Now}
}

// ReconcileManga hydrates a manga record in place.
func (r *Reconciler) ReconcileManga(ctx context.Context, m *models.Manga) {
	r.reconcile(ctx, KindManga, &m.CatalogEntry, nil)
}

// ReconcileAnime hydrates an anime record in place, additionally merging
// the anime-only fields (characters, relations, watch order).
func (r *Reconciler) ReconcileAnime(ctx context.Context, a *models.Anime) {
	r.reconcile(ctx, KindAnime, &a.CatalogEntry, func(p *Partial) {
		if len(a.Characters) == 0 && len(p.Characters) > 0 {
			a.Characters = p.Characters
		}
		if len(a.Relations) == 0 && len(p.Relations) > 0 {
			a.Relations = p.Relations
		}
		if p.WatchOrder != nil && len(a.WatchOrder.Prequels) == 0 && len(a.WatchOrder.Sequels) == 0 {
			a.WatchOrder = *p.WatchOrder
		}
	})
}

func (r *Reconciler) reconcile(ctx context.Context, kind Kind, e *models.CatalogEntry, extra func(*Partial)) {
	for _, p := range r.Providers {
		part, err := p.Fetch(ctx, kind, e.Title)
		if err != nil {
			// One provider being down must not block the others
			// or abort the record.
			log.Warn().Err(err).
				Str("provider", p.Name()).
				Str("kind", string(kind)).
				Str("title", e.Title).
				Msg("metadata: provider skipped")
			continue
		}

		if part.Score != nil {
			e.SetScore(p.Name(), *part.Score)
		}
		if len(e.Genres) == 0 && len(part.Genres) > 0 {
			e.Genres = part.Genres
		}
		if len(e.AlternativeTitles) == 0 && len(part.AlternativeTitles) > 0 {
			e.AlternativeTitles = part.AlternativeTitles
		}
		if e.Description == "" && part.Description != "" {
			e.Description = part.Description
		}
		e.IsR18 = e.IsR18 || part.IsR18
		if extra != nil {
			extra(part)
		}
	}

	e.RecomputeAverage()
	e.FetchedMetadata = true
	e.UpdatedAt = r.now()
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
