// Package normalize canonicalizes names and titles for comparison.
//
// Two strategies are provided. Fold strips diacritics through Unicode
// decomposition so "José" compares equal to "Jose". Transliterate maps
// non-ASCII text onto its nearest ASCII spelling, which also catches
// ligatures and romanized scripts that decomposition leaves alone.
//
// Both are total on any input and idempotent.
package normalize

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Transliterator converts text to an ASCII approximation.
type Transliterator interface {
	ToASCII(s string) string
}

// TransliteratorFunc adapts a plain function to Transliterator.
type TransliteratorFunc func(string) string

// ToASCII implements Transliterator.
func (f TransliteratorFunc) ToASCII(s string) string { return f(s) }

// Unidecode transliterates using the unidecode tables.
type Unidecode struct{}

// ToASCII implements Transliterator.
func (Unidecode) ToASCII(s string) string {
	return unidecode.Unidecode(s)
}

// Normalizer bundles both strategies around an injected Transliterator.
// The zero value is not usable; call New.
type Normalizer struct {
	translit Transliterator
}

// New returns a Normalizer. A nil transliterator falls back to Unidecode.
func New(t Transliterator) *Normalizer {
	if t == nil {
		t = Unidecode{}
	}
	return &Normalizer{translit: t}
}

// Fold is the diacritic-stripping strategy. See the package-level Fold.
func (n *Normalizer) Fold(s string) string {
	return Fold(s)
}

// Transliterate trims, converts to ASCII, and lowercases s.
func (n *Normalizer) Transliterate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = n.translit.ToASCII(s)
	return strings.TrimSpace(strings.ToLower(s))
}

// Fold trims s, decomposes it, drops combining marks and lowercases the
// result.
//
//	Fold("  Björn ") == "bjorn"
func Fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}

	// Transformers carry state; build a fresh chain per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.TrimSpace(strings.ToLower(out))
}
