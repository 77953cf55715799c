// Package store defines the persistence contract consumed by the ingestion
// pipeline and the web layer.
//
// Implementations live in subpackages: postgres for production and memstore
// for tests. Both honor the same transactional semantics: Store.WithTx
// commits when fn returns nil and rolls back otherwise, and Tx.Savepoint
// nests a rollback scope inside a running transaction.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
)

// ErrNotFound is returned when a lookup by id matches nothing.
var ErrNotFound = errors.New("record not found")

// Queries is the set of reads and writes available both on the store and
// inside a transaction.
type Queries interface {
	// People (authors and illustrators).
	ListPeople(ctx context.Context, kind catalog.PersonKind) ([]catalog.Person, error)
	FindPeopleByName(ctx context.Context, kind catalog.PersonKind, first, last string) ([]catalog.Person, error)
	CreatePerson(ctx context.Context, kind catalog.PersonKind, first, last string) (catalog.Person, error)
	GetPerson(ctx context.Context, kind catalog.PersonKind, id int64) (catalog.Person, error)
	DeletePerson(ctx context.Context, kind catalog.PersonKind, id int64) error
	ReassignBooks(ctx context.Context, kind catalog.PersonKind, fromID, toID int64) (int64, error)

	// Books.
	ListBooks(ctx context.Context) ([]catalog.Book, error)
	GetBook(ctx context.Context, id int64) (catalog.Book, error)
	FindBooksByTitle(ctx context.Context, title string) ([]catalog.Book, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	CreateBook(ctx context.Context, b *catalog.Book) error
	UpdateBook(ctx context.Context, b catalog.Book) error

	// Reference data.
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	ListAwardLevels(ctx context.Context) ([]catalog.AwardLevel, error)

	// Award placements.
	UpsertBookCategory(ctx context.Context, bc catalog.BookCategory) (catalog.BookCategory, bool, error)
	ListPlacements(ctx context.Context, categoryID int64) ([]catalog.Placement, error)
	CountBookCategories(ctx context.Context) (int64, error)

	// Audit log.
	InsertAuditEntry(ctx context.Context, e catalog.AuditEntry) error
	ListAuditEntries(ctx context.Context, f catalog.AuditFilter) ([]catalog.AuditEntry, error)
	PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error)
}

// Tx is a running transaction.
type Tx interface {
	Queries

	// Savepoint runs fn in a nested scope. If fn returns an error only the
	// work done inside fn is discarded and the error is returned.
	Savepoint(ctx context.Context, fn func(Tx) error) error
}

// Store is the root handle.
type Store interface {
	Queries

	// WithTx runs fn in a transaction, committing if fn returns nil.
	WithTx(ctx context.Context, fn func(Tx) error) error
}
