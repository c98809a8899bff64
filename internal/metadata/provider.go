// Package metadata queries external providers for per-title metadata and
// reconciles their answers into a single catalog record.
//
// Each provider is an independent capability behind the same Fetch
// contract; the reconciler consults them in a fixed precedence order and
// merges field by field.
package metadata

import (
	"context"
	"errors"

	"mangashelf/pkg/models"
)

// Kind selects which collection a title belongs to.
type Kind string

const (
	KindManga Kind = "manga"
	KindAnime Kind = "anime"
)

// ErrUnavailable is the normalized "this provider contributes nothing
// right now" signal: network failure, rate limiting, or no match for the
// title. It is never escalated past the reconciler; the next scheduled
// scan cycle is the retry.
var ErrUnavailable = errors.New("metadata: provider unavailable")

// Partial is one provider's best-effort snapshot for a title. Zero-value
// fields mean the provider has no opinion.
type Partial struct {
	Score             *float64
	Description       string
	Genres            []string
	AlternativeTitles []string
	IsR18             bool
	Characters        []models.Character
	Relations         []models.Relation
	WatchOrder        *models.WatchOrder
}

// Provider fetches a partial metadata snapshot for a title.
//
// Matching is by title string, best effort; ambiguous titles may resolve
// to the wrong work, which is an accepted limitation of every upstream
// search API used here.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, kind Kind, title string) (*Partial, error)
}
