package memstore

import (
	"context"
	"time"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
)

// Outside a transaction every call runs under the store lock against the
// committed state.

func (s *Store) ListPeople(ctx context.Context, kind catalog.PersonKind) (out []catalog.Person, err error) {
	err = s.with(func(q queries) error { out, err = q.ListPeople(ctx, kind); return err })
	return out, err
}

func (s *Store) FindPeopleByName(ctx context.Context, kind catalog.PersonKind, first, last string) (out []catalog.Person, err error) {
	err = s.with(func(q queries) error { out, err = q.FindPeopleByName(ctx, kind, first, last); return err })
	return out, err
}

func (s *Store) CreatePerson(ctx context.Context, kind catalog.PersonKind, first, last string) (p catalog.Person, err error) {
	err = s.with(func(q queries) error { p, err = q.CreatePerson(ctx, kind, first, last); return err })
	return p, err
}

func (s *Store) GetPerson(ctx context.Context, kind catalog.PersonKind, id int64) (p catalog.Person, err error) {
	err = s.with(func(q queries) error { p, err = q.GetPerson(ctx, kind, id); return err })
	return p, err
}

func (s *Store) DeletePerson(ctx context.Context, kind catalog.PersonKind, id int64) error {
	return s.with(func(q queries) error { return q.DeletePerson(ctx, kind, id) })
}

func (s *Store) ReassignBooks(ctx context.Context, kind catalog.PersonKind, fromID, toID int64) (n int64, err error) {
	err = s.with(func(q queries) error { n, err = q.ReassignBooks(ctx, kind, fromID, toID); return err })
	return n, err
}

func (s *Store) ListBooks(ctx context.Context) (out []catalog.Book, err error) {
	err = s.with(func(q queries) error { out, err = q.ListBooks(ctx); return err })
	return out, err
}

func (s *Store) GetBook(ctx context.Context, id int64) (b catalog.Book, err error) {
	err = s.with(func(q queries) error { b, err = q.GetBook(ctx, id); return err })
	return b, err
}

func (s *Store) FindBooksByTitle(ctx context.Context, title string) (out []catalog.Book, err error) {
	err = s.with(func(q queries) error { out, err = q.FindBooksByTitle(ctx, title); return err })
	return out, err
}

func (s *Store) SlugExists(ctx context.Context, slug string) (ok bool, err error) {
	err = s.with(func(q queries) error { ok, err = q.SlugExists(ctx, slug); return err })
	return ok, err
}

func (s *Store) CreateBook(ctx context.Context, b *catalog.Book) error {
	return s.with(func(q queries) error { return q.CreateBook(ctx, b) })
}

func (s *Store) UpdateBook(ctx context.Context, b catalog.Book) error {
	return s.with(func(q queries) error { return q.UpdateBook(ctx, b) })
}

func (s *Store) ListCategories(ctx context.Context) (out []catalog.Category, err error) {
	err = s.with(func(q queries) error { out, err = q.ListCategories(ctx); return err })
	return out, err
}

func (s *Store) ListAwardLevels(ctx context.Context) (out []catalog.AwardLevel, err error) {
	err = s.with(func(q queries) error { out, err = q.ListAwardLevels(ctx); return err })
	return out, err
}

func (s *Store) UpsertBookCategory(ctx context.Context, bc catalog.BookCategory) (out catalog.BookCategory, created bool, err error) {
	err = s.with(func(q queries) error { out, created, err = q.UpsertBookCategory(ctx, bc); return err })
	return out, created, err
}

func (s *Store) ListPlacements(ctx context.Context, categoryID int64) (out []catalog.Placement, err error) {
	err = s.with(func(q queries) error { out, err = q.ListPlacements(ctx, categoryID); return err })
	return out, err
}

func (s *Store) CountBookCategories(ctx context.Context) (n int64, err error) {
	err = s.with(func(q queries) error { n, err = q.CountBookCategories(ctx); return err })
	return n, err
}

func (s *Store) InsertAuditEntry(ctx context.Context, e catalog.AuditEntry) error {
	return s.with(func(q queries) error { return q.InsertAuditEntry(ctx, e) })
}

func (s *Store) ListAuditEntries(ctx context.Context, f catalog.AuditFilter) (out []catalog.AuditEntry, err error) {
	err = s.with(func(q queries) error { out, err = q.ListAuditEntries(ctx, f); return err })
	return out, err
}

func (s *Store) PurgeAuditEntries(ctx context.Context, before time.Time) (n int64, err error) {
	err = s.with(func(q queries) error { n, err = q.PurgeAuditEntries(ctx, before); return err })
	return n, err
}
