package core

// slug.go derives URL slugs for new books.
//
// A base slug comes from the folded title cut at a word boundary, then
// slugified and capped again, since NFKC can expand characters such as ½
// or ﬃ. Collisions get "-1", "-2" ... suffixes, checked against storage.

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/awardshelf/internal/normalize"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// MaxSlugBase is the rune limit of a slug before any collision suffix.
const MaxSlugBase = 50

// fallbackSlug is used when a title has no sluggable characters.
const fallbackSlug = "book"

var (
	// Matches anything that is not a letter, digit, underscore, space or dash.
	slugStripRe = regexp.MustCompile(`[^\p{L}\p{N}_\s-]+`)
	// Matches runs of whitespace and dashes.
	slugSeparatorRe = regexp.MustCompile(`[\s-]+`)
)

// Slugify converts text to a URL-safe slug. Letters outside ASCII are
// kept, so callers that want ASCII slugs should fold first.
//
//	Slugify("Owl Moon") == "owl-moon"
//	Slugify("  Where the -- Wild Things Are! ") == "where-the-wild-things-are"
func Slugify(s string) string {
	s = norm.NFKC.String(s)
	s = slugStripRe.ReplaceAllString(s, "")
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugSeparatorRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-_")
}

// TruncateToSpace shortens s to at most max runes, cutting at the last
// space that keeps it within the limit. Text without such a space is cut
// hard at max.
func TruncateToSpace(s string, max int) string {
	return truncateAt(s, max, ' ')
}

func truncateAt(s string, max int, sep rune) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	for i := max; i >= 0; i-- {
		if runes[i] == sep {
			return string(runes[:i])
		}
	}
	return string(runes[:max])
}

// BaseSlug derives a new book's slug before any collision suffix. The
// result never exceeds MaxSlugBase runes.
func BaseSlug(title string) string {
	base := Slugify(TruncateToSpace(normalize.Fold(title), MaxSlugBase))
	base = strings.Trim(truncateAt(base, MaxSlugBase, '-'), "-_")
	if base == "" {
		return fallbackSlug
	}
	return base
}

// UniqueSlug returns base, or base with the first free "-N" suffix.
func UniqueSlug(ctx context.Context, q store.Queries, base string) (string, error) {
	slug := base
	for n := 1; ; n++ {
		taken, err := q.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug %q: %w", slug, err)
		}
		if !taken {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}
