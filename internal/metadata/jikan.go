package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mangashelf/pkg/models"
)

// Jikan queries MyAnimeList through the Jikan REST API.
type Jikan struct {
	BaseURL string
	Client  *http.Client
}

// NewJikan creates a MAL provider against baseURL (empty selects the
// public Jikan v4 API).
func NewJikan(baseURL string) *Jikan {
	if baseURL == "" {
		baseURL = "https://api.jikan.moe/v4"
	}
	return &Jikan{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 12 * time.Second},
	}
}

func (j *Jikan) Name() string { return "mal" }

type jikanSearchResponse struct {
	Data []struct {
		MalID    int      `json:"mal_id"`
		Score    *float64 `json:"score"` // already 0-10
		Synopsis string   `json:"synopsis"`
		Rating   string   `json:"rating"` // anime only, "Rx - Hentai" etc.
		Titles   []struct {
			Type  string `json:"type"`
			Title string `json:"title"`
		} `json:"titles"`
		Genres []struct {
			Name string `json:"name"`
		} `json:"genres"`
		ExplicitGenres []struct {
			Name string `json:"name"`
		} `json:"explicit_genres"`
	} `json:"data"`
}

type jikanRelationsResponse struct {
	Data []struct {
		Relation string `json:"relation"`
		Entry    []struct {
			MalID int    `json:"mal_id"`
			Name  string `json:"name"`
		} `json:"entry"`
	} `json:"data"`
}

// Fetch searches MAL for the title and, for anime, follows up with the
// relations endpoint so the watch order (prequels/sequels) can be derived.
func (j *Jikan) Fetch(ctx context.Context, kind Kind, title string) (*Partial, error) {
	u := fmt.Sprintf("%s/%s?q=%s&limit=1", j.BaseURL, kind, url.QueryEscape(title))

	var sr jikanSearchResponse
	if err := j.get(ctx, u, &sr); err != nil {
		return nil, err
	}
	if len(sr.Data) == 0 {
		return nil, fmt.Errorf("jikan: no match for %q: %w", title, ErrUnavailable)
	}

	item := sr.Data[0]
	p := &Partial{
		Description: item.Synopsis,
		Score:       item.Score,
		IsR18:       strings.HasPrefix(item.Rating, "Rx") || len(item.ExplicitGenres) > 0,
	}
	for _, g := range item.Genres {
		if g.Name != "" {
			p.Genres = append(p.Genres, g.Name)
		}
	}
	for _, t := range item.Titles {
		// "Default" is the primary title, everything else is an alias.
		if t.Type != "Default" && t.Title != "" {
			p.AlternativeTitles = appendIfMissing(p.AlternativeTitles, t.Title)
		}
	}

	if kind == KindAnime {
		j.attachRelations(ctx, item.MalID, p)
	}

	return p, nil
}

// attachRelations is best effort: a failed relations call just leaves the
// snapshot without relations, it never fails the whole fetch.
func (j *Jikan) attachRelations(ctx context.Context, malID int, p *Partial) {
	u := fmt.Sprintf("%s/anime/%d/relations", j.BaseURL, malID)

	var rr jikanRelationsResponse
	if err := j.get(ctx, u, &rr); err != nil {
		return
	}

	order := &models.WatchOrder{Prequels: []string{}, Sequels: []string{}}
	for _, rel := range rr.Data {
		relType := strings.ToLower(strings.ReplaceAll(rel.Relation, " ", "_"))
		for _, entry := range rel.Entry {
			p.Relations = append(p.Relations, models.Relation{
				ID:           strconv.Itoa(entry.MalID),
				Title:        entry.Name,
				RelationType: relType,
			})
			switch relType {
			case "prequel":
				order.Prequels = append(order.Prequels, entry.Name)
			case "sequel":
				order.Sequels = append(order.Sequels, entry.Name)
			}
		}
	}
	if len(order.Prequels) > 0 || len(order.Sequels) > 0 {
		p.WatchOrder = order
	}
}

func (j *Jikan) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("jikan: build request: %w", err)
	}

	resp, err := j.Client.Do(req)
	if err != nil {
		return fmt.Errorf("jikan: request: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jikan: status %d: %w", resp.StatusCode, ErrUnavailable)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("jikan: decode: %w", ErrUnavailable)
	}
	return nil
}
