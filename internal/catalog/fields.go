package catalog

// fields.go defines the book fields an operator may edit directly.
//
// Edits go through an allow-list of typed setters. Anything not listed here
// (IDs, slug, author references, image) cannot be written through the
// generic edit path.

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrUnknownField is returned for field names outside the allow-list.
	ErrUnknownField = errors.New("unknown book field")

	// ErrInvalidFieldValue is returned when a value fails the field's checks.
	ErrInvalidFieldValue = errors.New("invalid field value")
)

// MaxTitleLength is the longest book title, in characters, storage accepts.
const MaxTitleLength = 200

// BookField names an editable book attribute.
type BookField string

const (
	FieldTitle           BookField = "title"
	FieldISBN            BookField = "isbn"
	FieldPageCount       BookField = "page_count"
	FieldBibliocommonsID BookField = "bibliocommons_id"
	FieldASIN            BookField = "asin"
)

type fieldSetter func(b *Book, value string) error

var bookFieldSetters = map[BookField]fieldSetter{
	FieldTitle: func(b *Book, v string) error {
		if v == "" {
			return fmt.Errorf("%w: title cannot be empty", ErrInvalidFieldValue)
		}
		if utf8.RuneCountInString(v) > MaxTitleLength {
			return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidFieldValue, MaxTitleLength)
		}
		b.Title = v
		return nil
	},
	FieldISBN: func(b *Book, v string) error {
		v = strings.ReplaceAll(v, "-", "")
		if v != "" && (len(v) != 10 && len(v) != 13) {
			return fmt.Errorf("%w: isbn must have 10 or 13 characters", ErrInvalidFieldValue)
		}
		b.ISBN = v
		return nil
	},
	FieldPageCount: func(b *Book, v string) error {
		if len(v) > 5 || strings.IndexFunc(v, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return fmt.Errorf("%w: page_count must be a number up to 5 digits", ErrInvalidFieldValue)
		}
		b.PageCount = v
		return nil
	},
	FieldBibliocommonsID: func(b *Book, v string) error {
		if len(v) > 20 {
			return fmt.Errorf("%w: bibliocommons_id exceeds 20 characters", ErrInvalidFieldValue)
		}
		b.BibliocommonsID = v
		return nil
	},
	FieldASIN: func(b *Book, v string) error {
		if len(v) > 20 {
			return fmt.Errorf("%w: asin exceeds 20 characters", ErrInvalidFieldValue)
		}
		b.ASIN = strings.ToUpper(v)
		return nil
	},
}

// ParseBookField maps an input name onto the allow-list.
func ParseBookField(name string) (BookField, error) {
	f := BookField(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := bookFieldSetters[f]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f, nil
}

// Apply sets the field on b after validating value. b is left untouched on error.
func (f BookField) Apply(b *Book, value string) error {
	set, ok := bookFieldSetters[f]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	next := *b
	if err := set(&next, strings.TrimSpace(value)); err != nil {
		return err
	}
	*b = next
	return nil
}

// EditableBookFields lists the allow-list in stable order.
func EditableBookFields() []BookField {
	out := make([]BookField, 0, len(bookFieldSetters))
	for f := range bookFieldSetters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Value reads the field from b.
func (f BookField) Value(b Book) string {
	switch f {
	case FieldTitle:
		return b.Title
	case FieldISBN:
		return b.ISBN
	case FieldPageCount:
		return b.PageCount
	case FieldBibliocommonsID:
		return b.BibliocommonsID
	case FieldASIN:
		return b.ASIN
	}
	return ""
}
