package core

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Owl Moon", "owl-moon"},
		{"  Where the -- Wild Things Are! ", "where-the-wild-things-are"},
		{"Sylvester & the Magic Pebble", "sylvester-the-magic-pebble"},
		{"snake_case_title", "snake_case_title"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestTruncateToSpace(t *testing.T) {
	assert.Equal(t, "short", TruncateToSpace("short", 50))
	assert.Equal(t, "the quick", TruncateToSpace("the quick brown", 10))
	// A space right after the limit still counts as a word boundary.
	assert.Equal(t, "the quick", TruncateToSpace("the quick brown", 9))
	assert.Equal(t, "abcdefghij", TruncateToSpace("abcdefghijklmnop", 10))
}

func TestBaseSlug(t *testing.T) {
	assert.Equal(t, "owl-moon", BaseSlug("Owl Moon"))
	assert.Equal(t, "el-nino-y-la-luna", BaseSlug("El Niño y la Luna"))
	assert.Equal(t, "book", BaseSlug("???"))

	long := strings.Repeat("word ", 20)
	slug := BaseSlug(long)
	assert.LessOrEqual(t, len(slug), MaxSlugBase)
	assert.False(t, strings.HasSuffix(slug, "-"))
	assert.True(t, strings.HasPrefix(slug, "word-word"))
}

func TestBaseSlug_CompatibilityExpansionStaysBounded(t *testing.T) {
	tests := map[string]string{
		"ligatures": strings.Repeat("\uFB03 ", 30),
		"no spaces": strings.Repeat("\uFB03", 49),
		"fractions": strings.Repeat("\u00BD\u00BC ", 20),
	}
	for name, title := range tests {
		t.Run(name, func(t *testing.T) {
			slug := BaseSlug(title)
			assert.LessOrEqual(t, utf8.RuneCountInString(slug), MaxSlugBase)
			assert.NotEmpty(t, slug)
			assert.False(t, strings.HasSuffix(slug, "-"))
		})
	}
	assert.True(t, strings.HasPrefix(BaseSlug(tests["ligatures"]), "ffi-ffi"))
}

func TestUniqueSlug(t *testing.T) {
	ctx := context.Background()
	s := newCatalog(t)

	got, err := UniqueSlug(ctx, s, "owl-moon")
	require.NoError(t, err)
	assert.Equal(t, "owl-moon", got)

	mustCreateBook(t, s, catalog.Book{Title: "Owl Moon", Slug: "owl-moon"})
	mustCreateBook(t, s, catalog.Book{Title: "Owl Moon!", Slug: "owl-moon-1"})

	got, err = UniqueSlug(ctx, s, "owl-moon")
	require.NoError(t, err)
	assert.Equal(t, "owl-moon-2", got)
}
