package normalize

import (
	"strings"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"whitespace only", "   \t", ""},
		{"ascii lowercased", "Jane YOLEN", "jane yolen"},
		{"trimmed", "  Owl Moon  ", "owl moon"},
		{"acute accent", "José", "jose"},
		{"umlaut", "Björn", "bjorn"},
		{"precomposed and decomposed agree", "José", "jose"},
		{"cedilla", "François", "francois"},
		{"tilde", "Peña", "pena"},
		{"ligature untouched", "Æsop", "æsop"},
		{"non-latin kept", "Дмитрий", "дмитрий"},
		{"trailing mark after space", "a ́", "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.input))
		})
	}
}

func TestTransliterate(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"ascii", "Owl Moon", "owl moon"},
		{"accent", "José", "jose"},
		{"ligature", "Æsop", "aesop"},
		{"eszett", "Straße", "strasse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Transliterate(tt.input))
		})
	}
}

func TestTransliterate_InjectedTransliterator(t *testing.T) {
	calls := 0
	n := New(TransliteratorFunc(func(s string) string {
		calls++
		return strings.ReplaceAll(s, "ø", "o")
	}))

	assert.Equal(t, "bjorn", n.Transliterate(" Bjørn "))
	assert.Equal(t, 1, calls)

	// Empty input never reaches the transliterator.
	assert.Equal(t, "", n.Transliterate("  "))
	assert.Equal(t, 1, calls)
}

func TestFold_Idempotent(t *testing.T) {
	samples := []string{
		"", " ", "José", "Björn Åberg", "ÀÉÎÕÜ", "Æsop", "İstanbul", "ﬁnal", "Дмитрий",
		"a ́", "́́", "Owl Moon", "日本語", "é̂",
	}
	for _, s := range samples {
		once := Fold(s)
		assert.Equal(t, once, Fold(once), "input %q", s)
	}

	if err := quick.Check(func(s string) bool {
		once := Fold(s)
		return Fold(once) == once
	}, nil); err != nil {
		t.Error(err)
	}
}

func TestTransliterate_Idempotent(t *testing.T) {
	n := New(nil)
	samples := []string{"", "José", "Björn Åberg", "Æsop", "Straße", "Дмитрий", "日本語", "  x  "}
	for _, s := range samples {
		once := n.Transliterate(s)
		assert.Equal(t, once, n.Transliterate(once), "input %q", s)
	}

	if err := quick.Check(func(s string) bool {
		once := n.Transliterate(s)
		return n.Transliterate(once) == once
	}, nil); err != nil {
		t.Error(err)
	}
}
