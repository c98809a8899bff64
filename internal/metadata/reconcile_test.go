package metadata

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/pkg/models"
)

// fixtureProvider implements Provider with a canned snapshot, counting
// how often it is consulted.
type fixtureProvider struct {
	name    string
	partial *Partial
	err     error
	calls   int
}

func (f *fixtureProvider) Name() string { return f.name }

func (f *fixtureProvider) Fetch(ctx context.Context, kind Kind, title string) (*Partial, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.partial, nil
}

func scoreOf(v float64) *float64 { return &v }

func fixedNow() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

func newManga(title string) *models.Manga {
	m := &models.Manga{
		CatalogEntry: models.NewCatalogEntry("id-1", fixedNow().Add(-time.Hour)),
		Volumes:      []models.Volume{},
	}
	m.Title = title
	return m
}

func TestReconcileMergePrecedence(t *testing.T) {
	a := &fixtureProvider{name: "kitsu", partial: &Partial{}}
	b := &fixtureProvider{name: "anilist", partial: &Partial{Genres: []string{"Action"}}}
	c := &fixtureProvider{name: "mal", partial: &Partial{Genres: []string{"Drama", "Romance"}}}

	r := NewReconciler(a, b, c)
	r.Now = fixedNow

	m := newManga("Alpha")
	r.ReconcileManga(context.Background(), m)

	// A had nothing, B filled the field, C may not overwrite it.
	assert.Equal(t, []string{"Action"}, m.Genres)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 1, c.calls)
}

func TestReconcileScoreAggregation(t *testing.T) {
	kitsu := &fixtureProvider{name: "kitsu", partial: &Partial{Score: scoreOf(7.5)}}
	anilist := &fixtureProvider{name: "anilist", partial: &Partial{Score: scoreOf(8.2)}}
	mal := &fixtureProvider{name: "mal", partial: &Partial{}}

	r := NewReconciler(kitsu, anilist, mal)
	r.Now = fixedNow

	m := newManga("Alpha")
	r.ReconcileManga(context.Background(), m)

	require.NotNil(t, m.Scores["kitsu"])
	require.NotNil(t, m.Scores["anilist"])
	assert.Nil(t, m.Scores["mal"])
	assert.InDelta(t, 7.85, m.AverageScore, 1e-9)

	// MAL starts answering: the average folds the new score in.
	mal.partial = &Partial{Score: scoreOf(7.8)}
	r.ReconcileManga(context.Background(), m)
	assert.InDelta(t, (7.5+8.2+7.8)/3, m.AverageScore, 1e-9)
}

func TestReconcileIsIdempotent(t *testing.T) {
	r := NewReconciler(
		&fixtureProvider{name: "kitsu", partial: &Partial{
			Score:             scoreOf(7.0),
			Description:       "From Kitsu",
			AlternativeTitles: []string{"Alt A"},
		}},
		&fixtureProvider{name: "anilist", partial: &Partial{
			Score:  scoreOf(8.0),
			Genres: []string{"Action"},
		}},
	)
	r.Now = fixedNow

	m := newManga("Alpha")
	r.ReconcileManga(context.Background(), m)
	once := *m

	r.ReconcileManga(context.Background(), m)
	assert.Equal(t, once, *m) // fixed point (Now is pinned, so fully equal)
}

func TestReconcileR18IsSticky(t *testing.T) {
	adult := &fixtureProvider{name: "kitsu", partial: &Partial{IsR18: true}}
	r := NewReconciler(adult)
	r.Now = fixedNow

	m := newManga("Alpha")
	r.ReconcileManga(context.Background(), m)
	require.True(t, m.IsR18)

	// Every source now reports false; the flag must not flip back.
	adult.partial = &Partial{IsR18: false}
	r.ReconcileManga(context.Background(), m)
	assert.True(t, m.IsR18)
}

func TestReconcileProviderFailureIsIsolated(t *testing.T) {
	down := &fixtureProvider{name: "kitsu", err: ErrUnavailable}
	up := &fixtureProvider{name: "anilist", partial: &Partial{
		Score:       scoreOf(8.0),
		Description: "From AniList",
	}}

	r := NewReconciler(down, up)
	r.Now = fixedNow

	m := newManga("Alpha")
	r.ReconcileManga(context.Background(), m)

	assert.Equal(t, "From AniList", m.Description)
	assert.InDelta(t, 8.0, m.AverageScore, 1e-9)
	assert.True(t, m.FetchedMetadata)
	assert.Nil(t, m.Scores["kitsu"])
}

func TestReconcileDoesNotOverwriteExistingFields(t *testing.T) {
	r := NewReconciler(&fixtureProvider{name: "kitsu", partial: &Partial{
		Description: "Provider description",
		Genres:      []string{"Horror"},
	}})
	r.Now = fixedNow

	m := newManga("Alpha")
	m.Description = "Curated description"
	m.Genres = []string{"Action"}
	r.ReconcileManga(context.Background(), m)

	assert.Equal(t, "Curated description", m.Description)
	assert.Equal(t, []string{"Action"}, m.Genres)
}

func TestReconcileAnimeExtraFields(t *testing.T) {
	chars := []models.Character{{ID: "c1", Name: "Guts", Role: "Main"}}
	rels := []models.Relation{{ID: "r1", Title: "Berserk 2", RelationType: "sequel"}}
	order := &models.WatchOrder{Prequels: []string{}, Sequels: []string{"Berserk 2"}}

	r := NewReconciler(
		&fixtureProvider{name: "anilist", partial: &Partial{Characters: chars, Relations: rels}},
		&fixtureProvider{name: "mal", partial: &Partial{
			Characters: []models.Character{{ID: "x", Name: "Other"}},
			WatchOrder: order,
		}},
	)
	r.Now = fixedNow

	a := &models.Anime{CatalogEntry: models.NewCatalogEntry("a1", fixedNow())}
	a.Title = "Berserk"
	r.ReconcileAnime(context.Background(), a)

	assert.Equal(t, chars, a.Characters) // first non-empty wins
	assert.Equal(t, rels, a.Relations)
	assert.Equal(t, *order, a.WatchOrder)
	assert.True(t, a.FetchedMetadata)
}

func TestReconcileUpdatedAtBumped(t *testing.T) {
	r := NewReconciler(&fixtureProvider{name: "kitsu", partial: &Partial{}})
	r.Now = fixedNow

	m := newManga("Alpha")
	before := m.UpdatedAt
	r.ReconcileManga(context.Background(), m)
	assert.True(t, m.UpdatedAt.After(before))
}
