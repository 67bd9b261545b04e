package kb

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Article is one knowledge-base entry. Slug is the immutable unique key;
// inactive articles are kept in storage but excluded from indexing.
type Article struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Synonyms  []string  `json:"synonyms"`
	Active    bool      `json:"active"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound indicates the requested slug does not exist.
	ErrNotFound = errors.New("kb: article not found")
	// ErrDuplicateSlug indicates a create with an already-used slug.
	ErrDuplicateSlug = errors.New("kb: duplicate article slug")
	// ErrInvalidSlug indicates a slug outside the accepted format.
	ErrInvalidSlug = errors.New("kb: invalid article slug")
)

var slugRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,64}$`)

// NormalizeSlug lowercases and trims a slug and validates its format.
func NormalizeSlug(raw string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	if !slugRe.MatchString(slug) {
		return "", ErrInvalidSlug
	}
	return slug, nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
	}
	return out
}
