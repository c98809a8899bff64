package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mangashelf/pkg/models"
)

// AniList queries the AniList GraphQL API.
type AniList struct {
	URL    string
	Client *http.Client
}

// NewAniList creates an AniList provider against endpoint (empty selects
// the public GraphQL endpoint).
func NewAniList(endpoint string) *AniList {
	if endpoint == "" {
		endpoint = "https://graphql.anilist.co"
	}
	return &AniList{
		URL:    endpoint,
		Client: &http.Client{Timeout: 12 * time.Second},
	}
}

func (a *AniList) Name() string { return "anilist" }

const anilistQuery = `
query ($search: String, $type: MediaType) {
  Media(search: $search, type: $type) {
    averageScore
    description
    genres
    synonyms
    isAdult
    characters(perPage: 10) {
      edges {
        role
        node { id name { full } image { large } }
      }
    }
    relations {
      edges {
        relationType
        node { id title { romaji } }
      }
    }
  }
}`

type anilistResponse struct {
	Data struct {
		Media *struct {
			AverageScore *float64 `json:"averageScore"` // 0-100
			Description  string   `json:"description"`
			Genres       []string `json:"genres"`
			Synonyms     []string `json:"synonyms"`
			IsAdult      bool     `json:"isAdult"`
			Characters   struct {
				Edges []struct {
					Role string `json:"role"`
					Node struct {
						ID   int `json:"id"`
						Name struct {
							Full string `json:"full"`
						} `json:"name"`
						Image struct {
							Large string `json:"large"`
						} `json:"image"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"characters"`
			Relations struct {
				Edges []struct {
					RelationType string `json:"relationType"`
					Node         struct {
						ID    int `json:"id"`
						Title struct {
							Romaji string `json:"romaji"`
						} `json:"title"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"relations"`
		} `json:"Media"`
	} `json:"data"`
}

// Fetch runs one search query. AniList contributes score, description,
// genres, synonyms, the adult flag, characters and relations.
func (a *AniList) Fetch(ctx context.Context, kind Kind, title string) (*Partial, error) {
	mediaType := "MANGA"
	if kind == KindAnime {
		mediaType = "ANIME"
	}

	body, err := json.Marshal(map[string]any{
		"query": anilistQuery,
		"variables": map[string]string{
			"search": title,
			"type":   mediaType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anilist: encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anilist: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anilist: request: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anilist: status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var ar anilistResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("anilist: decode: %w", ErrUnavailable)
	}
	media := ar.Data.Media
	if media == nil {
		return nil, fmt.Errorf("anilist: no match for %q: %w", title, ErrUnavailable)
	}

	p := &Partial{
		Description:       stripHTML(media.Description),
		Genres:            media.Genres,
		AlternativeTitles: media.Synonyms,
		IsR18:             media.IsAdult,
	}
	if media.AverageScore != nil && *media.AverageScore > 0 {
		score := *media.AverageScore / 10 // normalize 0-100 to 0-10
		p.Score = &score
	}

	for _, edge := range media.Characters.Edges {
		p.Characters = append(p.Characters, models.Character{
			ID:    strconv.Itoa(edge.Node.ID),
			Name:  edge.Node.Name.Full,
			Image: edge.Node.Image.Large,
			Role:  normalizeRole(edge.Role),
		})
	}
	for _, edge := range media.Relations.Edges {
		p.Relations = append(p.Relations, models.Relation{
			ID:           strconv.Itoa(edge.Node.ID),
			Title:        edge.Node.Title.Romaji,
			RelationType: strings.ToLower(edge.RelationType),
		})
	}

	return p, nil
}

func normalizeRole(role string) string {
	switch strings.ToUpper(role) {
	case "MAIN":
		return "Main"
	case "SUPPORTING":
		return "Supporting"
	case "BACKGROUND":
		return "Background"
	default:
		return role
	}
}

// stripHTML drops the markup AniList embeds in descriptions (<br>, <i>).
func stripHTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
