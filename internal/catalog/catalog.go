// Package catalog defines the award book catalog records shared by the
// ingestion pipeline, the storage layer and the web handlers.
package catalog

import (
	"fmt"
	"strings"
)

// PersonKind distinguishes the two person tables. Authors and illustrators
// share the same shape and lifecycle.
type PersonKind string

const (
	KindAuthor      PersonKind = "author"
	KindIllustrator PersonKind = "illustrator"
)

// Valid reports whether k is a known person kind.
func (k PersonKind) Valid() bool {
	return k == KindAuthor || k == KindIllustrator
}

// Person is an author or illustrator.
type Person struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName returns "First Last".
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PersonKey builds the lookup key used for case-insensitive person matching.
func PersonKey(first, last string) string {
	return strings.ToLower(strings.TrimSpace(first)) + "|" + strings.ToLower(strings.TrimSpace(last))
}

// Category is an award (e.g. "Caldecott"). Managed outside ingestion.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Slug        string `json:"slug"`
}

// AwardLevel is a placement tier (e.g. "Gold", "Honor"). Order sorts levels.
type AwardLevel struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

// Book is a catalog title. Slug is derived once at creation and never changes.
type Book struct {
	ID              int64  `json:"id"`
	Title           string `json:"title"`
	AuthorID        *int64 `json:"author_id,omitempty"`
	IllustratorID   *int64 `json:"illustrator_id,omitempty"`
	ISBN            string `json:"isbn,omitempty"`
	PageCount       string `json:"page_count,omitempty"`
	BibliocommonsID string `json:"bibliocommons_id,omitempty"`
	ASIN            string `json:"asin,omitempty"`
	Slug            string `json:"slug"`
	Image           string `json:"image,omitempty"`
}

// PersonID returns the book's reference for the given kind.
func (b Book) PersonID(kind PersonKind) *int64 {
	if kind == KindIllustrator {
		return b.IllustratorID
	}
	return b.AuthorID
}

// BookCategory records that a book received an award level in a category in
// a given year. Unique on (BookID, CategoryID, Year).
type BookCategory struct {
	ID           int64  `json:"id"`
	BookID       int64  `json:"book_id"`
	CategoryID   int64  `json:"category_id"`
	Year         int    `json:"year"`
	AwardLevelID *int64 `json:"award_level_id,omitempty"`
}

// Placement is the read model of a BookCategory joined with its book,
// author and award level.
type Placement struct {
	BookCategoryID int64  `json:"book_category_id"`
	BookID         int64  `json:"book_id"`
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	AuthorName     string `json:"author_name,omitempty"`
	Year           int    `json:"year"`
	AwardLevel     string `json:"award_level,omitempty"`
	AwardOrder     int    `json:"award_order"`
}

// String implements fmt.Stringer for log output.
func (p Placement) String() string {
	level := p.AwardLevel
	if level == "" {
		level = "No Award"
	}
	return fmt.Sprintf("%s (%s - %d)", p.Title, level, p.Year)
}
