package models

import "time"

// CatalogEntry is the part of a catalog record shared by manga and anime.
//
// Every external source is normalized into this structure first; the
// reconciler and scanner only ever write through it. An empty string means
// "unset" (never null), and Scores keeps one independent slot per provider
// so a later fetch can never erase an earlier provider's opinion.
type CatalogEntry struct {
	ID                string              `json:"id"`
	Title             string              `json:"title"`
	AlternativeTitles []string            `json:"alternative_titles"`
	Genres            []string            `json:"genres"`
	Description       string              `json:"description"`
	CoverURL          string              `json:"cover_url"` // remote, refreshed on every scan
	Cover             string              `json:"cover"`     // local cache path, set once downloaded
	Sources           []string            `json:"sources"`
	Scores            map[string]*float64 `json:"scores"` // provider name -> score, nil = never returned
	AverageScore      float64             `json:"average_score"`
	IsR18             bool                `json:"is_r18"` // sticky: once true, stays true
	FetchedMetadata   bool                `json:"fetched_metadata"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// Manga is a manga catalog record.
type Manga struct {
	CatalogEntry
	Volumes []Volume `json:"volumes"`
}

// Anime is an anime catalog record with the extra fields the anime
// offline database and the providers contribute.
type Anime struct {
	CatalogEntry
	Episodes   int         `json:"episodes"`
	Status     string      `json:"status"`
	Type       string      `json:"type"`
	Characters []Character `json:"characters"`
	Relations  []Relation  `json:"relations"`
	WatchOrder WatchOrder  `json:"watch_order"`
}

type Volume struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

type Character struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
	Role  string `json:"role"`
}

type Relation struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	RelationType string `json:"relation_type"`
}

type WatchOrder struct {
	Prequels []string `json:"prequels"`
	Sequels  []string `json:"sequels"`
}

// NewCatalogEntry builds a skeleton entry: identity fields populated,
// enrichable fields empty, not yet hydrated.
func NewCatalogEntry(id string, now time.Time) CatalogEntry {
	return CatalogEntry{
		ID:                id,
		AlternativeTitles: []string{},
		Genres:            []string{},
		Sources:           []string{},
		Scores:            map[string]*float64{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// SetScore records one provider's score and keeps the average in sync.
func (e *CatalogEntry) SetScore(provider string, score float64) {
	if e.Scores == nil {
		e.Scores = map[string]*float64{}
	}
	s := score
	e.Scores[provider] = &s
	e.RecomputeAverage()
}

// RecomputeAverage recalculates AverageScore as the mean of all currently
// set provider scores, or zero when none are set.
func (e *CatalogEntry) RecomputeAverage() {
	var sum float64
	var n int
	for _, s := range e.Scores {
		if s == nil {
			continue
		}
		sum += *s
		n++
	}
	if n == 0 {
		e.AverageScore = 0
		return
	}
	e.AverageScore = sum / float64(n)
}
