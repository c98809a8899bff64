package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Kitsu queries the Kitsu JSON:API catalog.
type Kitsu struct {
	BaseURL string
	Client  *http.Client
}

// NewKitsu creates a Kitsu provider against baseURL (empty selects the
// public API).
func NewKitsu(baseURL string) *Kitsu {
	if baseURL == "" {
		baseURL = "https://kitsu.io/api/edge"
	}
	return &Kitsu{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 12 * time.Second},
	}
}

func (k *Kitsu) Name() string { return "kitsu" }

type kitsuResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Titles            map[string]string `json:"titles"`
			CanonicalTitle    string            `json:"canonicalTitle"`
			AbbreviatedTitles []string          `json:"abbreviatedTitles"`
			Synopsis          string            `json:"synopsis"`
			AverageRating     string            `json:"averageRating"` // "82.5" on a 0-100 scale
			AgeRating         string            `json:"ageRating"`     // "G" | "PG" | "R" | "R18"
		} `json:"attributes"`
	} `json:"data"`
}

// Fetch resolves the best text match for title. Kitsu contributes score,
// synopsis, alternative titles and the age rating; genres live behind a
// separate relationship endpoint and are left to the other providers.
func (k *Kitsu) Fetch(ctx context.Context, kind Kind, title string) (*Partial, error) {
	u := fmt.Sprintf("%s/%s?filter[text]=%s&page[limit]=1", k.BaseURL, kind, url.QueryEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("kitsu: build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.api+json")

	resp, err := k.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kitsu: request: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kitsu: status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var kr kitsuResponse
	if err := json.NewDecoder(resp.Body).Decode(&kr); err != nil {
		return nil, fmt.Errorf("kitsu: decode: %w", ErrUnavailable)
	}
	if len(kr.Data) == 0 {
		return nil, fmt.Errorf("kitsu: no match for %q: %w", title, ErrUnavailable)
	}

	attrs := kr.Data[0].Attributes
	p := &Partial{
		Description: attrs.Synopsis,
		IsR18:       attrs.AgeRating == "R18",
	}

	if rating, err := strconv.ParseFloat(attrs.AverageRating, 64); err == nil && rating > 0 {
		score := rating / 10 // normalize 0-100 to 0-10
		p.Score = &score
	}

	for _, t := range attrs.Titles {
		if t != "" && t != attrs.CanonicalTitle {
			p.AlternativeTitles = appendIfMissing(p.AlternativeTitles, t)
		}
	}
	for _, t := range attrs.AbbreviatedTitles {
		if t != "" && t != attrs.CanonicalTitle {
			p.AlternativeTitles = appendIfMissing(p.AlternativeTitles, t)
		}
	}

	return p, nil
}

func appendIfMissing(slice []string, v string) []string {
	for _, x := range slice {
		if x == v {
			return slice
		}
	}
	return append(slice, v)
}
