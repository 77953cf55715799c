package core

// batch.go processes one chunk of rows as a transactional unit of work.
//
// A batch runs in three passes:
//  1. distinct authors are resolved or created once each and pinned in the cache
//  2. the same for illustrators
//  3. each row resolves or creates its book, backfills missing people, and
//     upserts the award placement
//
// In TxModeBatch the whole batch is atomic: a storage error anywhere rolls
// back every write and every row in the batch counts as an error. In
// TxModeRow each unit of work runs in a savepoint and a storage error
// discards only that unit. Row errors (bad cells, unknown reference ids,
// rejected ambiguous names) never write and never roll back siblings.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/metrics"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

// BatchRunner runs fn in a transaction scope that commits when fn returns
// nil. Store.WithTx and Tx.Savepoint both fit.
type BatchRunner func(ctx context.Context, fn func(store.Tx) error) error

// rowError marks a failure confined to one row.
type rowError struct{ err error }

func (e rowError) Error() string { return e.err.Error() }
func (e rowError) Unwrap() error { return e.err }

func rowErrorf(format string, args ...any) error {
	return rowError{fmt.Errorf(format, args...)}
}

// BatchProcessor applies batches of validated rows to the catalog.
type BatchProcessor struct {
	resolver *Resolver
	mode     TxMode
	dryRun   bool
	logger   *slog.Logger
}

// NewBatchProcessor returns a processor configured from opts. A nil logger
// uses slog.Default.
func NewBatchProcessor(resolver *Resolver, opts ImportOptions, logger *slog.Logger) *BatchProcessor {
	opts = opts.withDefaults()
	if resolver == nil {
		resolver = NewResolver(nil, opts.OnAmbiguous)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		resolver: resolver,
		mode:     opts.TxMode,
		dryRun:   opts.DryRun,
		logger:   logger,
	}
}

// batchState accumulates one attempt at a batch. It is discarded wholesale
// when the batch rolls back.
type batchState struct {
	rowErrs map[int]error
	failed  map[catalog.PersonKind]map[string]error
	success int
	created CreatedCounts
}

func newBatchState() *batchState {
	return &batchState{
		rowErrs: make(map[int]error),
		failed: map[catalog.PersonKind]map[string]error{
			catalog.KindAuthor:      {},
			catalog.KindIllustrator: {},
		},
	}
}

// Process runs rows through run. The cache is mutated in place and rewound
// if the batch rolls back. Process never returns an error: every failure
// is reported in the result.
func (bp *BatchProcessor) Process(ctx context.Context, run BatchRunner, cache *EntityCache, rows []Row) BatchResult {
	start := time.Now()
	mark := cache.Mark()
	st := newBatchState()

	err := run(ctx, func(tx store.Tx) error {
		return bp.process(ctx, tx, cache, rows, st)
	})
	if err != nil {
		cache.Rewind(mark)
		bp.logger.Error("batch rolled back", "rows", len(rows), "error", err)
		metrics.RecordRows(0, len(rows))
		metrics.RecordBatch("rolled_back", time.Since(start))
		return rolledBack(rows, st, err)
	}

	result := BatchResult{
		Success: st.success,
		Errors:  len(st.rowErrs),
		Created: st.created,
	}
	for _, row := range rows {
		if rerr, ok := st.rowErrs[row.Line]; ok {
			result.RowErrors = append(result.RowErrors, RowError{Row: row.Line, Title: row.Title, Reason: rerr.Error()})
		}
	}

	metrics.RecordRows(result.Success, result.Errors)
	if bp.dryRun {
		metrics.RecordBatch("dry_run", time.Since(start))
	} else {
		metrics.RecordBatch("committed", time.Since(start))
		metrics.RecordCreated(string(catalog.KindAuthor), st.created.Authors)
		metrics.RecordCreated(string(catalog.KindIllustrator), st.created.Illustrators)
		metrics.RecordCreated("book", st.created.Books)
		metrics.RecordCreated("placement", st.created.Placements)
	}
	return result
}

// rolledBack reports every row as failed, keeping row-specific reasons.
func rolledBack(rows []Row, st *batchState, cause error) BatchResult {
	result := BatchResult{Errors: len(rows), RolledBack: true}
	for _, row := range rows {
		reason := "batch rolled back: " + cause.Error()
		if rerr, ok := st.rowErrs[row.Line]; ok {
			reason = rerr.Error()
		}
		result.RowErrors = append(result.RowErrors, RowError{Row: row.Line, Title: row.Title, Reason: reason})
	}
	return result
}

func (bp *BatchProcessor) process(ctx context.Context, tx store.Tx, cache *EntityCache, rows []Row, st *batchState) error {
	var valid []Row
	for _, row := range rows {
		if err := rowProblem(row); err != nil {
			st.rowErrs[row.Line] = err
			continue
		}
		valid = append(valid, row)
	}

	for _, kind := range []catalog.PersonKind{catalog.KindAuthor, catalog.KindIllustrator} {
		if err := bp.resolvePeople(ctx, tx, cache, kind, valid, st); err != nil {
			return err
		}
	}

	for _, row := range valid {
		var counts CreatedCounts
		err := bp.scoped(ctx, tx, cache, func(q store.Tx) error {
			counts = CreatedCounts{}
			return bp.processRow(ctx, q, cache, row, st, &counts)
		})
		if err == nil {
			st.success++
			st.created.add(counts)
			continue
		}

		var re rowError
		if !errors.As(err, &re) && bp.mode == TxModeBatch {
			return fmt.Errorf("row %d: %w", row.Line, err)
		}
		bp.logger.Warn("row skipped", "row", row.Line, "title", row.Title, "error", err)
		st.rowErrs[row.Line] = err
	}
	return nil
}

// scoped runs fn in a savepoint in row mode and directly otherwise. The
// cache is rewound when a savepoint rolls back.
func (bp *BatchProcessor) scoped(ctx context.Context, tx store.Tx, cache *EntityCache, fn func(store.Tx) error) error {
	if bp.mode != TxModeRow {
		return fn(tx)
	}
	mark := cache.Mark()
	err := tx.Savepoint(ctx, fn)
	if err != nil {
		cache.Rewind(mark)
	}
	return err
}

// personName returns the row's name and cache key for kind; ok is false
// when the row has no such person.
func personName(row Row, kind catalog.PersonKind) (first, last, key string, ok bool) {
	if kind == catalog.KindIllustrator {
		return row.IllustratorFirst, row.IllustratorLast, row.IllustratorKey(), row.HasIllustrator()
	}
	return row.FirstName, row.LastName, row.AuthorKey(), true
}

// resolvePeople is passes one and two: every distinct name of kind is
// resolved or created exactly once.
func (bp *BatchProcessor) resolvePeople(ctx context.Context, tx store.Tx, cache *EntityCache, kind catalog.PersonKind, rows []Row, st *batchState) error {
	seen := make(map[string]bool)
	for _, row := range rows {
		first, last, key, ok := personName(row, kind)
		if !ok || seen[key] {
			continue
		}
		seen[key] = true

		var created bool
		err := bp.scoped(ctx, tx, cache, func(q store.Tx) error {
			var err error
			created, err = bp.ensurePerson(ctx, q, cache, kind, first, last)
			return err
		})
		if err == nil {
			if created {
				if kind == catalog.KindAuthor {
					st.created.Authors++
				} else {
					st.created.Illustrators++
				}
			}
			continue
		}

		var re rowError
		if !errors.As(err, &re) && bp.mode == TxModeBatch {
			return err
		}
		bp.logger.Warn("person not resolved", "kind", kind, "first_name", first, "last_name", last, "error", err)
		st.failed[kind][key] = err
	}
	return nil
}

// ensurePerson pins an existing or newly created person for the name.
func (bp *BatchProcessor) ensurePerson(ctx context.Context, q store.Tx, cache *EntityCache, kind catalog.PersonKind, first, last string) (bool, error) {
	if _, hit := cache.LookupPerson(kind, first, last); hit == lookupHit {
		return false, nil
	}

	m, err := bp.resolver.ResolvePerson(ctx, q, cache, kind, first, last)
	if errors.Is(err, ErrAmbiguousMatch) {
		return false, rowErrorf("%s %s %s: %w", kind, first, last, err)
	}
	if err != nil {
		return false, err
	}
	if m.Found {
		cache.Pin(kind, first, last, m.Value)
		return false, nil
	}

	p, err := q.CreatePerson(ctx, kind, first, last)
	if err != nil {
		return false, fmt.Errorf("create %s %q %q: %w", kind, first, last, err)
	}
	cache.AddPerson(kind, p)
	cache.Pin(kind, first, last, p)
	return true, nil
}

// personFor returns the row's person of kind pinned in passes one and two.
func personFor(cache *EntityCache, st *batchState, kind catalog.PersonKind, row Row) (catalog.Person, error) {
	first, last, key, _ := personName(row, kind)
	if err, failed := st.failed[kind][key]; failed {
		return catalog.Person{}, rowError{err}
	}
	p, hit := cache.LookupPerson(kind, first, last)
	if hit != lookupHit {
		return catalog.Person{}, rowErrorf("%s %s %s was not resolved", kind, first, last)
	}
	return p, nil
}

// processRow is pass three for a single row.
func (bp *BatchProcessor) processRow(ctx context.Context, q store.Tx, cache *EntityCache, row Row, st *batchState, counts *CreatedCounts) error {
	year, err := strconv.Atoi(row.Year)
	if err != nil {
		return rowErrorf("Year must be a valid number")
	}
	categoryID, _ := parseID(row.Category)
	if _, ok := cache.Category(categoryID); !ok {
		return rowErrorf("%w: %d", ErrUnknownCategory, categoryID)
	}
	levelID, _ := parseID(row.Level)
	if _, ok := cache.AwardLevel(levelID); !ok {
		return rowErrorf("%w: %d", ErrUnknownAwardLevel, levelID)
	}

	author, err := personFor(cache, st, catalog.KindAuthor, row)
	if err != nil {
		return err
	}
	var illustratorID *int64
	if row.HasIllustrator() {
		ill, err := personFor(cache, st, catalog.KindIllustrator, row)
		if err != nil {
			return err
		}
		illustratorID = &ill.ID
	}

	book, err := bp.ensureBook(ctx, q, cache, row.Title, &author.ID, illustratorID, counts)
	if err != nil {
		return err
	}

	_, created, err := q.UpsertBookCategory(ctx, catalog.BookCategory{
		BookID:       book.ID,
		CategoryID:   categoryID,
		Year:         year,
		AwardLevelID: &levelID,
	})
	if err != nil {
		return fmt.Errorf("upsert placement for book %d: %w", book.ID, err)
	}
	if created {
		counts.Placements++
	} else {
		counts.Updated++
	}
	return nil
}

// ensureBook finds the book for title or creates it, backfilling a missing
// author or illustrator on an existing book.
func (bp *BatchProcessor) ensureBook(ctx context.Context, q store.Tx, cache *EntityCache, title string, authorID, illustratorID *int64, counts *CreatedCounts) (catalog.Book, error) {
	book, hit := cache.LookupBook(title)
	if hit != lookupHit {
		m, err := bp.resolver.ResolveBook(ctx, q, cache, title)
		if errors.Is(err, ErrAmbiguousMatch) {
			return catalog.Book{}, rowErrorf("book %q: %w", title, err)
		}
		if err != nil {
			return catalog.Book{}, err
		}
		if !m.Found {
			return bp.createBook(ctx, q, cache, title, authorID, illustratorID, counts)
		}
		book = m.Value
	}

	changed := false
	if book.AuthorID == nil && authorID != nil {
		book.AuthorID = authorID
		changed = true
	}
	if book.IllustratorID == nil && illustratorID != nil {
		book.IllustratorID = illustratorID
		changed = true
	}
	if !changed {
		return book, nil
	}

	if err := q.UpdateBook(ctx, book); err != nil {
		return catalog.Book{}, fmt.Errorf("backfill book %d: %w", book.ID, err)
	}
	cache.PutBook(book)
	counts.Backfilled++
	return book, nil
}

func (bp *BatchProcessor) createBook(ctx context.Context, q store.Tx, cache *EntityCache, title string, authorID, illustratorID *int64, counts *CreatedCounts) (catalog.Book, error) {
	slug, err := UniqueSlug(ctx, q, BaseSlug(title))
	if err != nil {
		return catalog.Book{}, err
	}
	book := catalog.Book{
		Title:         title,
		AuthorID:      authorID,
		IllustratorID: illustratorID,
		Slug:          slug,
	}
	if err := q.CreateBook(ctx, &book); err != nil {
		return catalog.Book{}, fmt.Errorf("create book %q: %w", title, err)
	}
	cache.PutBook(book)
	counts.Books++
	return book, nil
}
