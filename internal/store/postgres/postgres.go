// Package postgres implements store.Store on a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store is the Postgres-backed store.
type Store struct {
	queries
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool}, pool: pool}
}

// PoolConfig tunes the connection pool. Zero values keep pgxpool defaults.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Open connects a pool to dsn and pings it.
func Open(ctx context.Context, dsn string, pc PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if pc.MaxConns > 0 {
		poolConfig.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		poolConfig.MinConns = pc.MinConns
	}
	if pc.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = pc.MaxConnLifetime
	}
	if pc.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = pc.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	slog.Info("connected to database",
		"host", poolConfig.ConnConfig.Host,
		"name", poolConfig.ConnConfig.Database,
	)
	return pool, nil
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx implements store.Store.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(ptx pgx.Tx) error {
		return fn(&tx{queries: queries{db: ptx}, ptx: ptx})
	})
}

// CreateCategory inserts a category. Categories are administered outside
// the ingestion path; this exists for fixtures and seeding.
func (s *Store) CreateCategory(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO categories (name, description, slug) VALUES ($1, $2, $3) RETURNING id`,
		c.Name, c.Description, c.Slug,
	).Scan(&c.ID)
	if err != nil {
		return catalog.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// CreateAwardLevel inserts an award level.
func (s *Store) CreateAwardLevel(ctx context.Context, l catalog.AwardLevel) (catalog.AwardLevel, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO award_levels (name, sort_order) VALUES ($1, $2) RETURNING id`,
		l.Name, l.Order,
	).Scan(&l.ID)
	if err != nil {
		return catalog.AwardLevel{}, fmt.Errorf("insert award level: %w", err)
	}
	return l, nil
}

type tx struct {
	queries
	ptx pgx.Tx
}

// Savepoint implements store.Tx. pgx maps a nested Begin onto
// SAVEPOINT / ROLLBACK TO SAVEPOINT / RELEASE SAVEPOINT.
func (t *tx) Savepoint(ctx context.Context, fn func(store.Tx) error) error {
	return pgx.BeginFunc(ctx, t.ptx, func(nested pgx.Tx) error {
		return fn(&tx{queries: queries{db: nested}, ptx: nested})
	})
}

type queries struct {
	db DBTX
}

func peopleTable(kind catalog.PersonKind) (string, error) {
	switch kind {
	case catalog.KindAuthor:
		return "authors", nil
	case catalog.KindIllustrator:
		return "illustrators", nil
	default:
		return "", fmt.Errorf("unknown person kind %q", kind)
	}
}

func bookPersonColumn(kind catalog.PersonKind) string {
	if kind == catalog.KindIllustrator {
		return "illustrator_id"
	}
	return "author_id"
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, store.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}

func scanPerson(row pgx.CollectableRow) (catalog.Person, error) {
	var p catalog.Person
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName)
	return p, err
}

func (q queries) ListPeople(ctx context.Context, kind catalog.PersonKind) ([]catalog.Person, error) {
	table, err := peopleTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx, `SELECT id, first_name, last_name FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return pgx.CollectRows(rows, scanPerson)
}

func (q queries) FindPeopleByName(ctx context.Context, kind catalog.PersonKind, first, last string) ([]catalog.Person, error) {
	table, err := peopleTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx,
		`SELECT id, first_name, last_name FROM `+table+`
		 WHERE lower(first_name) = lower($1) AND lower(last_name) = lower($2)
		 ORDER BY id`,
		first, last,
	)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", table, err)
	}
	return pgx.CollectRows(rows, scanPerson)
}

func (q queries) CreatePerson(ctx context.Context, kind catalog.PersonKind, first, last string) (catalog.Person, error) {
	table, err := peopleTable(kind)
	if err != nil {
		return catalog.Person{}, err
	}
	p := catalog.Person{FirstName: first, LastName: last}
	err = q.db.QueryRow(ctx,
		`INSERT INTO `+table+` (first_name, last_name) VALUES ($1, $2) RETURNING id`,
		first, last,
	).Scan(&p.ID)
	if err != nil {
		return catalog.Person{}, fmt.Errorf("insert %s: %w", table, err)
	}
	return p, nil
}

func (q queries) GetPerson(ctx context.Context, kind catalog.PersonKind, id int64) (catalog.Person, error) {
	table, err := peopleTable(kind)
	if err != nil {
		return catalog.Person{}, err
	}
	rows, err := q.db.Query(ctx, `SELECT id, first_name, last_name FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return catalog.Person{}, fmt.Errorf("get %s: %w", kind, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPerson)
	if err != nil {
		return catalog.Person{}, notFound(err, string(kind), id)
	}
	return p, nil
}

func (q queries) DeletePerson(ctx context.Context, kind catalog.PersonKind, id int64) error {
	table, err := peopleTable(kind)
	if err != nil {
		return err
	}
	tag, err := q.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, store.ErrNotFound)
	}
	return nil
}

func (q queries) ReassignBooks(ctx context.Context, kind catalog.PersonKind, fromID, toID int64) (int64, error) {
	if _, err := peopleTable(kind); err != nil {
		return 0, err
	}
	col := bookPersonColumn(kind)
	tag, err := q.db.Exec(ctx, `UPDATE books SET `+col+` = $2 WHERE `+col+` = $1`, fromID, toID)
	if err != nil {
		return 0, fmt.Errorf("reassign books from %s %d: %w", kind, fromID, err)
	}
	return tag.RowsAffected(), nil
}

const bookColumns = `id, title, author_id, illustrator_id, isbn, page_count, bibliocommons_id, asin, slug, image`

func scanBook(row pgx.CollectableRow) (catalog.Book, error) {
	var b catalog.Book
	err := row.Scan(&b.ID, &b.Title, &b.AuthorID, &b.IllustratorID, &b.ISBN,
		&b.PageCount, &b.BibliocommonsID, &b.ASIN, &b.Slug, &b.Image)
	return b, err
}

func (q queries) ListBooks(ctx context.Context) ([]catalog.Book, error) {
	rows, err := q.db.Query(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

func (q queries) GetBook(ctx context.Context, id int64) (catalog.Book, error) {
	rows, err := q.db.Query(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)
	if err != nil {
		return catalog.Book{}, fmt.Errorf("get book: %w", err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBook)
	if err != nil {
		return catalog.Book{}, notFound(err, "book", id)
	}
	return b, nil
}

func (q queries) FindBooksByTitle(ctx context.Context, title string) ([]catalog.Book, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+bookColumns+` FROM books WHERE lower(title) = lower($1) ORDER BY id`, title)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	return pgx.CollectRows(rows, scanBook)
}

func (q queries) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM books WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (q queries) CreateBook(ctx context.Context, b *catalog.Book) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO books (title, author_id, illustrator_id, isbn, page_count, bibliocommons_id, asin, slug, image)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		b.Title, b.AuthorID, b.IllustratorID, b.ISBN, b.PageCount, b.BibliocommonsID, b.ASIN, b.Slug, b.Image,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("insert book %q: %w", b.Title, err)
	}
	return nil
}

// UpdateBook writes every mutable column. The slug is never rewritten.
func (q queries) UpdateBook(ctx context.Context, b catalog.Book) error {
	tag, err := q.db.Exec(ctx,
		`UPDATE books SET title = $2, author_id = $3, illustrator_id = $4, isbn = $5,
		        page_count = $6, bibliocommons_id = $7, asin = $8, image = $9
		 WHERE id = $1`,
		b.ID, b.Title, b.AuthorID, b.IllustratorID, b.ISBN, b.PageCount, b.BibliocommonsID, b.ASIN, b.Image,
	)
	if err != nil {
		return fmt.Errorf("update book %d: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("book %d: %w", b.ID, store.ErrNotFound)
	}
	return nil
}

func (q queries) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, description, slug FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		var c catalog.Category
		err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Slug)
		return c, err
	})
}

func (q queries) ListAwardLevels(ctx context.Context) ([]catalog.AwardLevel, error) {
	rows, err := q.db.Query(ctx, `SELECT id, name, sort_order FROM award_levels ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list award levels: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.AwardLevel, error) {
		var l catalog.AwardLevel
		err := row.Scan(&l.ID, &l.Name, &l.Order)
		return l, err
	})
}

func levelParam(id *int64) pgtype.Int8 {
	if id == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *id, Valid: true}
}

// UpsertBookCategory inserts or updates the placement keyed on
// (book, category, year). xmax is zero only for freshly inserted tuples.
func (q queries) UpsertBookCategory(ctx context.Context, bc catalog.BookCategory) (catalog.BookCategory, bool, error) {
	var created bool
	err := q.db.QueryRow(ctx,
		`INSERT INTO book_categories (book_id, category_id, year, award_level_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (book_id, category_id, year)
		 DO UPDATE SET award_level_id = EXCLUDED.award_level_id
		 RETURNING id, (xmax = 0)`,
		bc.BookID, bc.CategoryID, bc.Year, levelParam(bc.AwardLevelID),
	).Scan(&bc.ID, &created)
	if err != nil {
		return catalog.BookCategory{}, false, fmt.Errorf("upsert book category: %w", err)
	}
	return bc, created, nil
}

func (q queries) ListPlacements(ctx context.Context, categoryID int64) ([]catalog.Placement, error) {
	rows, err := q.db.Query(ctx,
		`SELECT bc.id, b.id, b.title, b.slug,
		        COALESCE(trim(a.first_name || ' ' || a.last_name), ''),
		        bc.year, COALESCE(al.name, ''), COALESCE(al.sort_order, 0)
		 FROM book_categories bc
		 JOIN books b ON b.id = bc.book_id
		 LEFT JOIN authors a ON a.id = b.author_id
		 LEFT JOIN award_levels al ON al.id = bc.award_level_id
		 WHERE bc.category_id = $1
		 ORDER BY bc.year DESC, COALESCE(al.sort_order, 0), b.title`,
		categoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("list placements: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Placement, error) {
		var p catalog.Placement
		err := row.Scan(&p.BookCategoryID, &p.BookID, &p.Title, &p.Slug,
			&p.AuthorName, &p.Year, &p.AwardLevel, &p.AwardOrder)
		return p, err
	})
}

func (q queries) CountBookCategories(ctx context.Context) (int64, error) {
	var n int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM book_categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count book categories: %w", err)
	}
	return n, nil
}

func (q queries) InsertAuditEntry(ctx context.Context, e catalog.AuditEntry) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO audit_log (id, action, severity, subject, field, old_value, new_value,
		                        rows_affected, import_id, ip_address, user_agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID, string(e.Action), string(e.Severity), e.Subject, e.Field, e.OldValue, e.NewValue,
		e.RowsAffected, e.ImportID, e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (q queries) ListAuditEntries(ctx context.Context, f catalog.AuditFilter) ([]catalog.AuditEntry, error) {
	since := pgtype.Timestamptz{Time: f.Since, Valid: !f.Since.IsZero()}
	limit := pgtype.Int4{Int32: int32(f.Limit), Valid: f.Limit > 0}
	rows, err := q.db.Query(ctx,
		`SELECT id::text, action, severity, subject, field, old_value, new_value,
		        rows_affected, import_id, ip_address, user_agent, created_at
		 FROM audit_log
		 WHERE ($1 = '' OR action = $1)
		   AND ($2::timestamptz IS NULL OR created_at >= $2)
		 ORDER BY created_at DESC, id
		 LIMIT $3`,
		string(f.Action), since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.AuditEntry, error) {
		var e catalog.AuditEntry
		err := row.Scan(&e.ID, &e.Action, &e.Severity, &e.Subject, &e.Field, &e.OldValue, &e.NewValue,
			&e.RowsAffected, &e.ImportID, &e.IPAddress, &e.UserAgent, &e.CreatedAt)
		return e, err
	})
}

func (q queries) PurgeAuditEntries(ctx context.Context, before time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge audit entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
