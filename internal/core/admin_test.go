package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/store"
)

func TestConsolidatePeople(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	ctx := ContextWithIPAddress(context.Background(), "10.0.0.1")

	primary := mustCreatePerson(t, s, catalog.KindAuthor, "Jane", "Yolen")
	dup := mustCreatePerson(t, s, catalog.KindAuthor, "Jane", "Yolen ")
	mustCreateBook(t, s, catalog.Book{Title: "Owl Moon", Slug: "owl-moon", AuthorID: &dup.ID})
	mustCreateBook(t, s, catalog.Book{Title: "Greyling", Slug: "greyling", AuthorID: &dup.ID})
	mustCreateBook(t, s, catalog.Book{Title: "The Emperor and the Kite", Slug: "the-emperor-and-the-kite", AuthorID: &primary.ID})

	res, err := svc.ConsolidatePeople(ctx, catalog.KindAuthor, primary.ID, dup.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.BooksMoved)
	assert.Equal(t, primary.ID, res.Primary.ID)
	assert.Equal(t, dup.ID, res.Removed.ID)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	for _, b := range books {
		require.NotNil(t, b.AuthorID, b.Title)
		assert.Equal(t, primary.ID, *b.AuthorID, b.Title)
	}

	_, err = s.GetPerson(ctx, catalog.KindAuthor, dup.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestConsolidatePeople_Rejects(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	p := mustCreatePerson(t, s, catalog.KindIllustrator, "John", "Schoenherr")

	_, err := svc.ConsolidatePeople(ctx, catalog.KindIllustrator, p.ID, p.ID)
	assert.ErrorIs(t, err, ErrSamePerson)

	_, err = svc.ConsolidatePeople(ctx, catalog.KindIllustrator, p.ID, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.ConsolidatePeople(ctx, catalog.PersonKind("editor"), p.ID, 999)
	assert.Error(t, err)

	// The survivor is untouched by the failed attempts.
	got, err := s.GetPerson(ctx, catalog.KindIllustrator, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestUpdateBookField(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	book := mustCreateBook(t, s, catalog.Book{Title: "Owl Moon", Slug: "owl-moon"})

	got, err := svc.UpdateBookField(ctx, book.ID, "ISBN", "978-0-399-21457-0")
	require.NoError(t, err)
	assert.Equal(t, "9780399214570", got.ISBN)

	got, err = svc.UpdateBookField(ctx, book.ID, "title", "Owl Moon (Anniversary)")
	require.NoError(t, err)
	assert.Equal(t, "owl-moon", got.Slug, "slug is fixed at creation")

	stored, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestUpdateBookField_Errors(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	book := mustCreateBook(t, s, catalog.Book{Title: "Owl Moon", Slug: "owl-moon"})

	tests := []struct {
		name    string
		bookID  int64
		field   string
		value   string
		wantErr error
	}{
		{name: "slug is not editable", bookID: book.ID, field: "slug", value: "x", wantErr: catalog.ErrUnknownField},
		{name: "author reference is not editable", bookID: book.ID, field: "author_id", value: "1", wantErr: catalog.ErrUnknownField},
		{name: "empty title", bookID: book.ID, field: "title", value: "  ", wantErr: catalog.ErrInvalidFieldValue},
		{name: "page count not numeric", bookID: book.ID, field: "page_count", value: "thirty", wantErr: catalog.ErrInvalidFieldValue},
		{name: "missing book", bookID: 404, field: "asin", value: "B000", wantErr: store.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateBookField(ctx, tt.bookID, tt.field, tt.value)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	stored, err := s.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book, stored)
}

func TestUpdateBookField_RefreshesPlacements(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Import(ctx, "caldecott.tsv", strings.NewReader(tsv(owlMoonLine)), ImportOptions{})
	require.NoError(t, err)
	years, err := svc.Placements(ctx, 3)
	require.NoError(t, err)
	bookID := years[0].Placements[0].BookID

	_, err = svc.UpdateBookField(ctx, bookID, "title", "Owl Moon: 30th Anniversary")
	require.NoError(t, err)

	years, err = svc.Placements(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Owl Moon: 30th Anniversary", years[0].Placements[0].Title)

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestClientFields(t *testing.T) {
	assert.Empty(t, clientFields(context.Background()))

	ctx := ContextWithUserAgent(ContextWithIPAddress(context.Background(), "10.0.0.1"), "curl/8")
	assert.Equal(t, []any{"ip", "10.0.0.1", "user_agent", "curl/8"}, clientFields(ctx))
	assert.Equal(t, "10.0.0.1", GetIPAddressFromContext(ctx))
	assert.Equal(t, "curl/8", GetUserAgentFromContext(ctx))
}
