// Package memstore is an in-memory implementation of store.Store.
//
// Transactions copy the whole state on begin and swap it in on commit, so a
// rolled-back transaction or savepoint leaves no trace. Transactions are
// serialized by a single mutex.
package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

type bookCategoryKey struct {
	bookID     int64
	categoryID int64
	year       int
}

type state struct {
	nextID int64

	people        map[catalog.PersonKind]map[int64]catalog.Person
	books         map[int64]catalog.Book
	categories    map[int64]catalog.Category
	levels        map[int64]catalog.AwardLevel
	bookCats      map[int64]catalog.BookCategory
	bookCatsByKey map[bookCategoryKey]int64
	audit         []catalog.AuditEntry
}

func newState() *state {
	return &state{
		people: map[catalog.PersonKind]map[int64]catalog.Person{
			catalog.KindAuthor:      {},
			catalog.KindIllustrator: {},
		},
		books:         make(map[int64]catalog.Book),
		categories:    make(map[int64]catalog.Category),
		levels:        make(map[int64]catalog.AwardLevel),
		bookCats:      make(map[int64]catalog.BookCategory),
		bookCatsByKey: make(map[bookCategoryKey]int64),
	}
}

func (st *state) clone() *state {
	c := &state{
		nextID:        st.nextID,
		people:        make(map[catalog.PersonKind]map[int64]catalog.Person, len(st.people)),
		books:         make(map[int64]catalog.Book, len(st.books)),
		categories:    make(map[int64]catalog.Category, len(st.categories)),
		levels:        make(map[int64]catalog.AwardLevel, len(st.levels)),
		bookCats:      make(map[int64]catalog.BookCategory, len(st.bookCats)),
		bookCatsByKey: make(map[bookCategoryKey]int64, len(st.bookCatsByKey)),
	}
	for kind, m := range st.people {
		cm := make(map[int64]catalog.Person, len(m))
		for id, p := range m {
			cm[id] = p
		}
		c.people[kind] = cm
	}
	for id, b := range st.books {
		c.books[id] = b
	}
	for id, v := range st.categories {
		c.categories[id] = v
	}
	for id, v := range st.levels {
		c.levels[id] = v
	}
	for id, v := range st.bookCats {
		c.bookCats[id] = v
	}
	for k, v := range st.bookCatsByKey {
		c.bookCatsByKey[k] = v
	}
	c.audit = slices.Clone(st.audit)
	return c
}

func (st *state) id() int64 {
	st.nextID++
	return st.nextID
}

// Store is a process-local store.Store.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// AddCategory seeds a category. Categories are reference data and have no
// write path in store.Queries.
func (s *Store) AddCategory(c catalog.Category) catalog.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.st.id()
	} else if c.ID > s.st.nextID {
		s.st.nextID = c.ID
	}
	s.st.categories[c.ID] = c
	return c
}

// AddAwardLevel seeds an award level.
func (s *Store) AddAwardLevel(l catalog.AwardLevel) catalog.AwardLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.st.id()
	} else if l.ID > s.st.nextID {
		s.st.nextID = l.ID
	}
	s.st.levels[l.ID] = l
	return l
}

// WithTx implements store.Store.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{queries{st: s.st.clone()}}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.st = t.st
	return nil
}

func (s *Store) with(fn func(q queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(queries{st: s.st})
}

type tx struct {
	queries
}

// Savepoint implements store.Tx.
func (t *tx) Savepoint(ctx context.Context, fn func(store.Tx) error) error {
	nested := &tx{queries{st: t.st.clone()}}
	if err := fn(nested); err != nil {
		return err
	}
	t.st = nested.st
	return nil
}

// queries operates directly on a state. Callers hold the store lock.
type queries struct {
	st *state
}

func (q queries) peopleOf(kind catalog.PersonKind) (map[int64]catalog.Person, error) {
	m, ok := q.st.people[kind]
	if !ok {
		return nil, fmt.Errorf("unknown person kind %q", kind)
	}
	return m, nil
}

func (q queries) ListPeople(_ context.Context, kind catalog.PersonKind) ([]catalog.Person, error) {
	m, err := q.peopleOf(kind)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Person, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q queries) FindPeopleByName(ctx context.Context, kind catalog.PersonKind, first, last string) ([]catalog.Person, error) {
	all, err := q.ListPeople(ctx, kind)
	if err != nil {
		return nil, err
	}
	var out []catalog.Person
	for _, p := range all {
		if strings.ToLower(p.FirstName) == strings.ToLower(first) &&
			strings.ToLower(p.LastName) == strings.ToLower(last) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (q queries) CreatePerson(_ context.Context, kind catalog.PersonKind, first, last string) (catalog.Person, error) {
	m, err := q.peopleOf(kind)
	if err != nil {
		return catalog.Person{}, err
	}
	p := catalog.Person{ID: q.st.id(), FirstName: first, LastName: last}
	m[p.ID] = p
	return p, nil
}

func (q queries) GetPerson(_ context.Context, kind catalog.PersonKind, id int64) (catalog.Person, error) {
	m, err := q.peopleOf(kind)
	if err != nil {
		return catalog.Person{}, err
	}
	p, ok := m[id]
	if !ok {
		return catalog.Person{}, fmt.Errorf("%s %d: %w", kind, id, store.ErrNotFound)
	}
	return p, nil
}

func (q queries) DeletePerson(_ context.Context, kind catalog.PersonKind, id int64) error {
	m, err := q.peopleOf(kind)
	if err != nil {
		return err
	}
	if _, ok := m[id]; !ok {
		return fmt.Errorf("%s %d: %w", kind, id, store.ErrNotFound)
	}
	for _, b := range q.st.books {
		if ref := b.PersonID(kind); ref != nil && *ref == id {
			return fmt.Errorf("delete %s %d: violates foreign key constraint on books", kind, id)
		}
	}
	delete(m, id)
	return nil
}

func (q queries) ReassignBooks(_ context.Context, kind catalog.PersonKind, fromID, toID int64) (int64, error) {
	if _, err := q.peopleOf(kind); err != nil {
		return 0, err
	}
	var n int64
	for id, b := range q.st.books {
		ref := b.PersonID(kind)
		if ref == nil || *ref != fromID {
			continue
		}
		to := toID
		if kind == catalog.KindIllustrator {
			b.IllustratorID = &to
		} else {
			b.AuthorID = &to
		}
		q.st.books[id] = b
		n++
	}
	return n, nil
}

func (q queries) ListBooks(_ context.Context) ([]catalog.Book, error) {
	out := make([]catalog.Book, 0, len(q.st.books))
	for _, b := range q.st.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q queries) GetBook(_ context.Context, id int64) (catalog.Book, error) {
	b, ok := q.st.books[id]
	if !ok {
		return catalog.Book{}, fmt.Errorf("book %d: %w", id, store.ErrNotFound)
	}
	return b, nil
}

func (q queries) FindBooksByTitle(ctx context.Context, title string) ([]catalog.Book, error) {
	all, _ := q.ListBooks(ctx)
	var out []catalog.Book
	for _, b := range all {
		if strings.ToLower(b.Title) == strings.ToLower(title) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (q queries) SlugExists(_ context.Context, slug string) (bool, error) {
	for _, b := range q.st.books {
		if b.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (q queries) checkPersonRefs(b catalog.Book) error {
	if b.AuthorID != nil {
		if _, ok := q.st.people[catalog.KindAuthor][*b.AuthorID]; !ok {
			return fmt.Errorf("book %q: violates foreign key constraint on author %d", b.Title, *b.AuthorID)
		}
	}
	if b.IllustratorID != nil {
		if _, ok := q.st.people[catalog.KindIllustrator][*b.IllustratorID]; !ok {
			return fmt.Errorf("book %q: violates foreign key constraint on illustrator %d", b.Title, *b.IllustratorID)
		}
	}
	return nil
}

func (q queries) CreateBook(ctx context.Context, b *catalog.Book) error {
	if exists, _ := q.SlugExists(ctx, b.Slug); exists {
		return fmt.Errorf("create book: duplicate key value violates unique constraint on slug %q", b.Slug)
	}
	if err := q.checkPersonRefs(*b); err != nil {
		return err
	}
	b.ID = q.st.id()
	q.st.books[b.ID] = *b
	return nil
}

func (q queries) UpdateBook(_ context.Context, b catalog.Book) error {
	old, ok := q.st.books[b.ID]
	if !ok {
		return fmt.Errorf("book %d: %w", b.ID, store.ErrNotFound)
	}
	if err := q.checkPersonRefs(b); err != nil {
		return err
	}
	b.Slug = old.Slug
	q.st.books[b.ID] = b
	return nil
}

func (q queries) ListCategories(_ context.Context) ([]catalog.Category, error) {
	out := make([]catalog.Category, 0, len(q.st.categories))
	for _, c := range q.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (q queries) ListAwardLevels(_ context.Context) ([]catalog.AwardLevel, error) {
	out := make([]catalog.AwardLevel, 0, len(q.st.levels))
	for _, l := range q.st.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (q queries) UpsertBookCategory(_ context.Context, bc catalog.BookCategory) (catalog.BookCategory, bool, error) {
	if _, ok := q.st.books[bc.BookID]; !ok {
		return catalog.BookCategory{}, false, fmt.Errorf("book_category: violates foreign key constraint on book %d", bc.BookID)
	}
	if _, ok := q.st.categories[bc.CategoryID]; !ok {
		return catalog.BookCategory{}, false, fmt.Errorf("book_category: violates foreign key constraint on category %d", bc.CategoryID)
	}
	if bc.AwardLevelID != nil {
		if _, ok := q.st.levels[*bc.AwardLevelID]; !ok {
			return catalog.BookCategory{}, false, fmt.Errorf("book_category: violates foreign key constraint on award level %d", *bc.AwardLevelID)
		}
	}

	key := bookCategoryKey{bc.BookID, bc.CategoryID, bc.Year}
	if id, ok := q.st.bookCatsByKey[key]; ok {
		existing := q.st.bookCats[id]
		existing.AwardLevelID = bc.AwardLevelID
		q.st.bookCats[id] = existing
		return existing, false, nil
	}

	bc.ID = q.st.id()
	q.st.bookCats[bc.ID] = bc
	q.st.bookCatsByKey[key] = bc.ID
	return bc, true, nil
}

func (q queries) ListPlacements(_ context.Context, categoryID int64) ([]catalog.Placement, error) {
	var out []catalog.Placement
	for _, bc := range q.st.bookCats {
		if bc.CategoryID != categoryID {
			continue
		}
		b := q.st.books[bc.BookID]
		p := catalog.Placement{
			BookCategoryID: bc.ID,
			BookID:         b.ID,
			Title:          b.Title,
			Slug:           b.Slug,
			Year:           bc.Year,
		}
		if b.AuthorID != nil {
			p.AuthorName = q.st.people[catalog.KindAuthor][*b.AuthorID].FullName()
		}
		if bc.AwardLevelID != nil {
			l := q.st.levels[*bc.AwardLevelID]
			p.AwardLevel = l.Name
			p.AwardOrder = l.Order
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		if out[i].AwardOrder != out[j].AwardOrder {
			return out[i].AwardOrder < out[j].AwardOrder
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (q queries) CountBookCategories(_ context.Context) (int64, error) {
	return int64(len(q.st.bookCats)), nil
}

func (q queries) InsertAuditEntry(_ context.Context, e catalog.AuditEntry) error {
	if e.ID == "" {
		return fmt.Errorf("insert audit entry: missing id")
	}
	q.st.audit = append(q.st.audit, e)
	return nil
}

func (q queries) ListAuditEntries(_ context.Context, f catalog.AuditFilter) ([]catalog.AuditEntry, error) {
	var out []catalog.AuditEntry
	for i := len(q.st.audit) - 1; i >= 0; i-- {
		e := q.st.audit[i]
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (q queries) PurgeAuditEntries(_ context.Context, before time.Time) (int64, error) {
	kept := q.st.audit[:0:0]
	for _, e := range q.st.audit {
		if !e.CreatedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	n := int64(len(q.st.audit) - len(kept))
	q.st.audit = kept
	return n, nil
}
