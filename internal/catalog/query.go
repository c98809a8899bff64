package catalog

import (
	"regexp"
	"sort"
	"strings"

	"mangashelf/pkg/models"
)

// Summary is the list-view projection of a catalog record.
type Summary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Cover       string   `json:"cover"`
	Genres      []string `json:"genres"`
	Description string   `json:"description"`
	Score       float64  `json:"score"`
	IsR18       bool     `json:"is_r18"`
}

// CharacterHit is one character search result together with the record it
// was found in.
type CharacterHit struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	SourceID    string `json:"source_id"`
	SourceTitle string `json:"source_title"`
}

const characterResultLimit = 20

// Matcher matches a user-supplied search pattern against catalog fields.
// The pattern is compiled as a case-insensitive regexp; if compilation
// fails the matcher falls back to a literal case-insensitive substring.
type Matcher struct {
	re     *regexp.Regexp
	substr string
}

// NewMatcher builds a matcher for q. An empty q matches everything.
func NewMatcher(q string) *Matcher {
	if q == "" {
		return &Matcher{}
	}
	re, err := regexp.Compile("(?i)" + q)
	if err != nil {
		return &Matcher{substr: strings.ToLower(q)}
	}
	return &Matcher{re: re}
}

func (m *Matcher) matchString(s string) bool {
	if m.re != nil {
		return m.re.MatchString(s)
	}
	return strings.Contains(strings.ToLower(s), m.substr)
}

// MatchEntry reports whether the entry's title, any alternative title or
// any genre matches.
func (m *Matcher) MatchEntry(e *models.CatalogEntry) bool {
	if m.re == nil && m.substr == "" {
		return true
	}
	if m.matchString(e.Title) {
		return true
	}
	for _, t := range e.AlternativeTitles {
		if m.matchString(t) {
			return true
		}
	}
	for _, g := range e.Genres {
		if m.matchString(g) {
			return true
		}
	}
	return false
}

// ListManga returns summaries of every manga matching search, ordered by
// sortKey ("alpha", "score" or "genre").
func ListManga(s *Store[models.Manga], sortKey, search string) []Summary {
	return listSummaries(s, func(m *models.Manga) *models.CatalogEntry {
		return &m.CatalogEntry
	}, sortKey, search)
}

// ListAnime returns summaries of every anime matching search, ordered by
// sortKey ("alpha", "score" or "genre").
func ListAnime(s *Store[models.Anime], sortKey, search string) []Summary {
	return listSummaries(s, func(a *models.Anime) *models.CatalogEntry {
		return &a.CatalogEntry
	}, sortKey, search)
}

func listSummaries[T any](s *Store[T], core func(*T) *models.CatalogEntry, sortKey, search string) []Summary {
	matcher := NewMatcher(search)

	out := []Summary{}
	for _, v := range s.List() {
		e := core(v)
		if !matcher.MatchEntry(e) {
			continue
		}
		out = append(out, Summary{
			ID:          e.ID,
			Title:       e.Title,
			Cover:       e.Cover,
			Genres:      e.Genres,
			Description: e.Description,
			Score:       e.AverageScore,
			IsR18:       e.IsR18,
		})
	}

	switch sortKey {
	case "score":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	case "genre":
		sort.SliceStable(out, func(i, j int) bool {
			return strings.Join(out[i].Genres, ",") < strings.Join(out[j].Genres, ",")
		})
	default: // alpha
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Title) < strings.ToLower(out[j].Title)
		})
	}
	return out
}

// SearchCharacters scans the anime collection for characters whose name
// matches q, capped at 20 hits. Manga records carry no characters, so the
// manga kind always yields an empty result.
func SearchCharacters(s *Store[models.Anime], q string) []CharacterHit {
	matcher := NewMatcher(q)

	hits := []CharacterHit{}
	for _, a := range s.List() {
		for _, ch := range a.Characters {
			if !matcher.matchString(ch.Name) {
				continue
			}
			hits = append(hits, CharacterHit{
				ID:          ch.ID,
				Name:        ch.Name,
				Image:       ch.Image,
				SourceID:    a.ID,
				SourceTitle: a.Title,
			})
			if len(hits) >= characterResultLimit {
				return hits
			}
		}
	}
	return hits
}
