// Package identity derives stable canonical IDs for catalog entries.
//
// IDs are name-based (UUIDv5 over the URL namespace), so importing the
// same upstream item twice always resolves to the same local record, no
// matter when or in which process the import runs.
package identity

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// ErrNoSourceKey means an upstream entry carries no stable source URL or
// identifier. Such an entry cannot be assigned a canonical ID; callers
// skip it as a data-quality problem rather than failing the batch.
var ErrNoSourceKey = errors.New("identity: entry has no source key")

// AssignID maps a stable source key (the first source URL associated with
// an entry) to its canonical ID. Deterministic across runs and restarts.
func AssignID(sourceKey string) (string, error) {
	sourceKey = strings.TrimSpace(sourceKey)
	if sourceKey == "" {
		return "", ErrNoSourceKey
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceKey)).String(), nil
}
