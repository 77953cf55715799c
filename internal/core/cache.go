package core

// cache.go holds the run-scoped entity cache.
//
// An EntityCache is built once per import from storage and mutated as the
// batch processor creates people and books, so later rows in the same run
// see earlier rows' creations. It is never the system of record and never
// outlives a run.
//
// Every mutation appends an undo step to a journal. When a batch or a
// savepoint rolls back, the processor rewinds the cache to the mark taken
// before the transaction so rolled-back ids are never handed out again.

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/normalize"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// lookup is the result of a cache lookup.
type lookup int

const (
	lookupMiss lookup = iota
	lookupHit
	lookupAmbiguous
)

type personIndex struct {
	byKey  map[string][]catalog.Person
	all    []catalog.Person
	pinned map[string]catalog.Person
}

// EntityCache indexes people, books and reference data for one import.
// It is not safe for concurrent use.
type EntityCache struct {
	people     map[catalog.PersonKind]*personIndex
	booksByKey map[string][]catalog.Book
	books      []catalog.Book
	bookPos    map[int64]int
	categories map[int64]catalog.Category
	levels     map[int64]catalog.AwardLevel

	journal []func()
}

// NewEntityCache returns an empty cache.
func NewEntityCache() *EntityCache {
	c := &EntityCache{
		people:     make(map[catalog.PersonKind]*personIndex, 2),
		booksByKey: make(map[string][]catalog.Book),
		bookPos:    make(map[int64]int),
		categories: make(map[int64]catalog.Category),
		levels:     make(map[int64]catalog.AwardLevel),
	}
	for _, kind := range []catalog.PersonKind{catalog.KindAuthor, catalog.KindIllustrator} {
		c.people[kind] = &personIndex{
			byKey:  make(map[string][]catalog.Person),
			pinned: make(map[string]catalog.Person),
		}
	}
	return c
}

// WarmCache loads every person, book, category and award level from q.
func WarmCache(ctx context.Context, q store.Queries) (*EntityCache, error) {
	c := NewEntityCache()

	for _, kind := range []catalog.PersonKind{catalog.KindAuthor, catalog.KindIllustrator} {
		people, err := q.ListPeople(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("warm %s cache: %w", kind, err)
		}
		for _, p := range people {
			c.addPerson(kind, p)
		}
	}

	books, err := q.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm book cache: %w", err)
	}
	for _, b := range books {
		c.putBook(b)
	}

	if err := c.loadReference(ctx, q); err != nil {
		return nil, err
	}

	// Warm-up is the baseline, not something to rewind.
	c.journal = nil
	return c, nil
}

func (c *EntityCache) loadReference(ctx context.Context, q store.Queries) error {
	cats, err := q.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	for _, cat := range cats {
		c.categories[cat.ID] = cat
	}

	levels, err := q.ListAwardLevels(ctx)
	if err != nil {
		return fmt.Errorf("load award levels: %w", err)
	}
	for _, l := range levels {
		c.levels[l.ID] = l
	}
	return nil
}

// Mark returns a position in the mutation journal.
func (c *EntityCache) Mark() int {
	return len(c.journal)
}

// Rewind undoes every mutation made after mark.
func (c *EntityCache) Rewind(mark int) {
	for i := len(c.journal) - 1; i >= mark; i-- {
		c.journal[i]()
	}
	c.journal = c.journal[:mark]
}

// LookupPerson searches the cache by compound key. A key pinned earlier in
// the run wins; otherwise a key holding several people is ambiguous.
func (c *EntityCache) LookupPerson(kind catalog.PersonKind, first, last string) (catalog.Person, lookup) {
	idx := c.people[kind]
	if idx == nil {
		return catalog.Person{}, lookupMiss
	}
	key := catalog.PersonKey(first, last)
	if p, ok := idx.pinned[key]; ok {
		return p, lookupHit
	}
	switch matches := idx.byKey[key]; len(matches) {
	case 0:
		return catalog.Person{}, lookupMiss
	case 1:
		return matches[0], lookupHit
	default:
		return catalog.Person{}, lookupAmbiguous
	}
}

// People returns the candidate set for linear scans.
func (c *EntityCache) People(kind catalog.PersonKind) []catalog.Person {
	if idx := c.people[kind]; idx != nil {
		return idx.all
	}
	return nil
}

// AddPerson registers a newly created person.
func (c *EntityCache) AddPerson(kind catalog.PersonKind, p catalog.Person) {
	c.addPerson(kind, p)
}

func (c *EntityCache) addPerson(kind catalog.PersonKind, p catalog.Person) {
	idx := c.people[kind]
	key := catalog.PersonKey(p.FirstName, p.LastName)

	prevKey, hadKey := idx.byKey[key]
	prevLen := len(idx.all)

	next := make([]catalog.Person, len(prevKey), len(prevKey)+1)
	copy(next, prevKey)
	idx.byKey[key] = append(next, p)
	idx.all = append(idx.all, p)

	c.journal = append(c.journal, func() {
		if hadKey {
			idx.byKey[key] = prevKey
		} else {
			delete(idx.byKey, key)
		}
		idx.all = idx.all[:prevLen]
	})
}

// Pin records the run's resolution of a raw name so later rows reuse it
// without consulting the resolver again.
func (c *EntityCache) Pin(kind catalog.PersonKind, first, last string, p catalog.Person) {
	idx := c.people[kind]
	key := catalog.PersonKey(first, last)
	prev, had := idx.pinned[key]
	idx.pinned[key] = p

	c.journal = append(c.journal, func() {
		if had {
			idx.pinned[key] = prev
		} else {
			delete(idx.pinned, key)
		}
	})
}

// bookKeys returns the exact and folded keys for a title.
func bookKeys(title string) []string {
	exact := strings.ToLower(strings.TrimSpace(title))
	folded := normalize.Fold(title)
	if folded == exact {
		return []string{exact}
	}
	return []string{exact, folded}
}

// LookupBook looks up by lowercased title, then by folded title.
func (c *EntityCache) LookupBook(title string) (catalog.Book, lookup) {
	ambiguous := false
	for _, key := range bookKeys(title) {
		switch matches := c.booksByKey[key]; len(matches) {
		case 0:
		case 1:
			return matches[0], lookupHit
		default:
			ambiguous = true
		}
	}
	if ambiguous {
		return catalog.Book{}, lookupAmbiguous
	}
	return catalog.Book{}, lookupMiss
}

// Books returns the candidate set for linear scans.
func (c *EntityCache) Books() []catalog.Book {
	return c.books
}

// PutBook registers a created book or replaces a cached one after a
// backfill.
func (c *EntityCache) PutBook(b catalog.Book) {
	c.putBook(b)
}

func (c *EntityCache) putBook(b catalog.Book) {
	undoList := c.putBookInList(b)

	keys := bookKeys(b.Title)
	prev := make([][]catalog.Book, len(keys))
	had := make([]bool, len(keys))
	for i, key := range keys {
		prev[i], had[i] = c.booksByKey[key]
		c.booksByKey[key] = replaceOrAppend(prev[i], b)
	}

	c.journal = append(c.journal, func() {
		undoList()
		for i, key := range keys {
			if had[i] {
				c.booksByKey[key] = prev[i]
			} else {
				delete(c.booksByKey, key)
			}
		}
	})
}

// putBookInList updates the scan list in place and returns its undo step.
func (c *EntityCache) putBookInList(b catalog.Book) func() {
	if pos, ok := c.bookPos[b.ID]; ok {
		old := c.books[pos]
		c.books[pos] = b
		return func() { c.books[pos] = old }
	}
	c.bookPos[b.ID] = len(c.books)
	c.books = append(c.books, b)
	return func() {
		c.books = c.books[:len(c.books)-1]
		delete(c.bookPos, b.ID)
	}
}

// replaceOrAppend returns a new slice with b replacing the entry of the
// same id, or appended. The input slice is never modified.
func replaceOrAppend(books []catalog.Book, b catalog.Book) []catalog.Book {
	next := make([]catalog.Book, len(books), len(books)+1)
	copy(next, books)
	for i := range next {
		if next[i].ID == b.ID {
			next[i] = b
			return next
		}
	}
	return append(next, b)
}

// Category returns the category with the given id.
func (c *EntityCache) Category(id int64) (catalog.Category, bool) {
	cat, ok := c.categories[id]
	return cat, ok
}

// AwardLevel returns the award level with the given id.
func (c *EntityCache) AwardLevel(id int64) (catalog.AwardLevel, bool) {
	l, ok := c.levels[id]
	return l, ok
}
