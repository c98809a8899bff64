package scanner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/internal/identity"
	"mangashelf/pkg/models"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newRefresher(t *testing.T, e *testEnv) *Refresher {
	t.Helper()
	return &Refresher{
		Store:     e.anime,
		Covers:    e.cache,
		Hydrator:  e.hydrator,
		LocalPath: filepath.Join(t.TempDir(), "anime-offline-database.json"),
	}
}

func TestRefreshCreatesAnimeSkeleton(t *testing.T) {
	e := newTestEnv(t)
	r := newRefresher(t, e)

	writeJSON(t, r.LocalPath, offlineDatabase{Data: []DatabaseEntry{{
		Sources:  []string{"https://myanimelist.net/anime/1", "https://anilist.co/anime/1"},
		Title:    "Cowboy Bebop",
		Synonyms: []string{"CB"},
		Tags:     []string{"Action", "Space"},
		Episodes: 26,
		Status:   "FINISHED",
		Type:     "TV",
		Picture:  "http://img/bebop.jpg",
	}}})

	stats, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 1}, stats)

	id, err := identity.AssignID("https://myanimelist.net/anime/1")
	require.NoError(t, err)

	a, err := e.anime.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Cowboy Bebop", a.Title)
	assert.Equal(t, []string{"CB"}, a.AlternativeTitles)
	assert.Equal(t, []string{"Action", "Space"}, a.Genres)
	assert.Equal(t, 26, a.Episodes)
	assert.Equal(t, "FINISHED", a.Status)
	assert.Equal(t, "TV", a.Type)
	assert.Equal(t, "http://img/bebop.jpg", a.CoverURL)
	assert.Len(t, a.Sources, 2)
	assert.False(t, a.IsR18)
	assert.False(t, a.FetchedMetadata)
}

func TestRefreshSkipsEntryWithoutSources(t *testing.T) {
	e := newTestEnv(t)
	r := newRefresher(t, e)

	writeJSON(t, r.LocalPath, offlineDatabase{Data: []DatabaseEntry{
		{Title: "Orphan"},
		{Sources: []string{"https://myanimelist.net/anime/1"}, Title: "Kept"},
	}})

	stats, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Created: 1, Skipped: 1}, stats)
}

func TestRefreshHentaiTagForcesR18(t *testing.T) {
	e := newTestEnv(t)
	r := newRefresher(t, e)

	writeJSON(t, r.LocalPath, offlineDatabase{Data: []DatabaseEntry{{
		Sources: []string{"https://myanimelist.net/anime/99"},
		Title:   "Adult",
		Tags:    []string{"Hentai"},
	}}})

	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	id, err := identity.AssignID("https://myanimelist.net/anime/99")
	require.NoError(t, err)
	a, err := e.anime.Get(id)
	require.NoError(t, err)
	assert.True(t, a.IsR18)
}

func TestRefreshUpdatesMutableFieldsOnly(t *testing.T) {
	e := newTestEnv(t)
	r := newRefresher(t, e)

	entry := DatabaseEntry{
		Sources:  []string{"https://myanimelist.net/anime/1"},
		Title:    "Cowboy Bebop",
		Episodes: 13,
		Status:   "ONGOING",
		Type:     "TV",
	}
	writeJSON(t, r.LocalPath, offlineDatabase{Data: []DatabaseEntry{entry}})
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	id, err := identity.AssignID("https://myanimelist.net/anime/1")
	require.NoError(t, err)

	// Hydration has filled merge-owned fields in the meantime.
	require.NoError(t, e.anime.Update(id, func(a *models.Anime) error {
		a.Description = "A bounty hunter crew."
		a.Characters = []models.Character{{ID: "c1", Name: "Spike"}}
		a.SetScore("mal", 8.8)
		a.FetchedMetadata = true
		return nil
	}))

	entry.Episodes = 26
	entry.Status = "FINISHED"
	writeJSON(t, r.LocalPath, offlineDatabase{Data: []DatabaseEntry{entry}})
	stats, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Updated: 1}, stats)

	a, err := e.anime.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 26, a.Episodes)
	assert.Equal(t, "FINISHED", a.Status)
	assert.Equal(t, "A bounty hunter crew.", a.Description)
	assert.Equal(t, "Spike", a.Characters[0].Name)
	assert.InDelta(t, 8.8, a.AverageScore, 1e-9)
	assert.True(t, a.FetchedMetadata)
}

func TestRefreshR18NeverReverts(t *testing.T) {
	e := newTestEnv(t)
	r := newRefresher(t, e)

	entry := DatabaseEntry{
		Sources: []string{"https://myanimelist.net/anime/99"},
		Title:   "Adult",
		Tags:    []string{"Hentai"},
	}
	writeJSON(t, r.LocalPath, offlineDatabase{Data: []DatabaseEntry{entry}})
	_, err := r.Refresh(context.Background())
	require.NoError(t, err)

	// Upstream drops the tag; the flag must stay set.
	entry.Tags = []string{"Romance"}
	writeJSON(t, r.LocalPath, offlineDatabase{Data: []DatabaseEntry{entry}})
	_, err = r.Refresh(context.Background())
	require.NoError(t, err)

	id, err := identity.AssignID("https://myanimelist.net/anime/99")
	require.NoError(t, err)
	a, err := e.anime.Get(id)
	require.NoError(t, err)
	assert.True(t, a.IsR18)
}

func TestSyncDownloadsThenRefreshes(t *testing.T) {
	e := newTestEnv(t)
	r := newRefresher(t, e)

	db := offlineDatabase{Data: []DatabaseEntry{{
		Sources: []string{"https://myanimelist.net/anime/1"},
		Title:   "Cowboy Bebop",
	}}}
	payload, err := json.Marshal(db)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()
	r.URL = srv.URL

	require.NoError(t, r.Sync(context.Background()))

	assert.FileExists(t, r.LocalPath)
	id, err := identity.AssignID("https://myanimelist.net/anime/1")
	require.NoError(t, err)
	_, err = e.anime.Get(id)
	require.NoError(t, err)
}

func TestDownloadFailureKeepsLocalCopy(t *testing.T) {
	e := newTestEnv(t)
	r := newRefresher(t, e)

	writeJSON(t, r.LocalPath, offlineDatabase{})
	before, err := os.ReadFile(r.LocalPath)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	r.URL = srv.URL

	require.Error(t, r.Download(context.Background()))

	after, err := os.ReadFile(r.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
