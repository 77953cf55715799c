package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/store"
	"github.com/JonMunkholm/awardshelf/internal/store/memstore"
)

const tsvHeader = "title\tfirst_name\tlast_name\tyear\tcategory\tlevel\tillustrator_first_name\tillustrator_last_name\n"

const owlMoonLine = "Owl Moon\tJane\tYolen\t1988\t3\t1\tJohn\tSchoenherr\n"

// newCatalog returns a store seeded with the Caldecott category (id 3)
// and two award levels (ids 1 and 2).
func newCatalog(t testing.TB) *memstore.Store {
	t.Helper()
	s := memstore.New()
	s.AddCategory(catalog.Category{ID: 3, Name: "Caldecott", Slug: "caldecott"})
	s.AddAwardLevel(catalog.AwardLevel{ID: 1, Name: "Winner", Order: 1})
	s.AddAwardLevel(catalog.AwardLevel{ID: 2, Name: "Honor", Order: 2})
	return s
}

// tsv joins data lines under the standard header.
func tsv(lines ...string) string {
	var b strings.Builder
	b.WriteString(tsvHeader)
	for _, l := range lines {
		b.WriteString(l)
		if !strings.HasSuffix(l, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func mustRows(t *testing.T, data string) []Row {
	t.Helper()
	table, err := ReadTable(strings.NewReader(data))
	require.NoError(t, err)
	return table.Rows
}

func mustCreatePerson(t testing.TB, s store.Store, kind catalog.PersonKind, first, last string) catalog.Person {
	t.Helper()
	var p catalog.Person
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		var err error
		p, err = tx.CreatePerson(context.Background(), kind, first, last)
		return err
	})
	require.NoError(t, err)
	return p
}

func mustCreateBook(t *testing.T, s store.Store, b catalog.Book) catalog.Book {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx store.Tx) error {
		return tx.CreateBook(context.Background(), &b)
	})
	require.NoError(t, err)
	return b
}

func mustWarm(t testing.TB, q store.Queries) *EntityCache {
	t.Helper()
	c, err := WarmCache(context.Background(), q)
	require.NoError(t, err)
	return c
}

var errInjected = errors.New("injected storage failure")

// faultyTx fails CreateBook for one title, in the transaction and in every
// savepoint nested under it.
type faultyTx struct {
	store.Tx
	failTitle string
}

func (f *faultyTx) CreateBook(ctx context.Context, b *catalog.Book) error {
	if b.Title == f.failTitle {
		return errInjected
	}
	return f.Tx.CreateBook(ctx, b)
}

func (f *faultyTx) Savepoint(ctx context.Context, fn func(store.Tx) error) error {
	return f.Tx.Savepoint(ctx, func(nested store.Tx) error {
		return fn(&faultyTx{Tx: nested, failTitle: f.failTitle})
	})
}

// faultyRunner wraps s.WithTx so CreateBook fails for failTitle.
func faultyRunner(s store.Store, failTitle string) BatchRunner {
	return func(ctx context.Context, fn func(store.Tx) error) error {
		return s.WithTx(ctx, func(tx store.Tx) error {
			return fn(&faultyTx{Tx: tx, failTitle: failTitle})
		})
	}
}
