package core

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
)

func TestPreview_NewAndExisting(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	ctx := context.Background()
	yolen := mustCreatePerson(t, s, catalog.KindAuthor, "Jane", "Yolen")
	owl := mustCreateBook(t, s, catalog.Book{Title: "Owl Moon", Slug: "owl-moon", AuthorID: &yolen.ID})

	data := tsv(
		owlMoonLine,
		"Flotsam\tDavid\tWiesner\t2007\t3\t2\t\t",
		"Tuesday\tDavid\tWiesner\t1992\t3\t1\t\t",
		"Bad Year\tA\tB\tlater\t3\t1\t\t",
	)
	resp, err := svc.Preview(ctx, strings.NewReader(data), "")
	require.NoError(t, err)

	sum := resp.Summary
	assert.Equal(t, 4, sum.TotalRows)
	assert.Equal(t, 3, sum.ValidRows)
	assert.Equal(t, 1, sum.ErrorRows)
	assert.Equal(t, 1, sum.ExistingBooks)
	assert.Equal(t, 2, sum.NewBooks)
	assert.Equal(t, 1, sum.NewAuthors, "Wiesner is created once")
	assert.Equal(t, 1, sum.NewIllustrators)
	assert.Zero(t, sum.DuplicateInFile)

	require.Len(t, resp.RowSamples, 3)
	first := resp.RowSamples[0]
	assert.Equal(t, Resolution{Action: ResolveMatch, ID: owl.ID, Name: "Owl Moon", Strategy: StrategyExact}, first.Book)
	assert.Equal(t, ResolveMatch, first.Author.Action)
	require.NotNil(t, first.Illustrator)
	assert.Equal(t, ResolveCreate, first.Illustrator.Action)
	assert.Nil(t, resp.RowSamples[1].Illustrator)

	require.Len(t, resp.ErrorSamples, 1)
	assert.Equal(t, 4, resp.ErrorSamples[0].Line)
	assert.Equal(t, []string{"Row 4: Year must be a valid number"}, resp.ErrorSamples[0].Errors)

	// Nothing was written.
	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, books, 1)
}

func TestPreview_FoldedMatch(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	mustCreatePerson(t, s, catalog.KindAuthor, "Björn", "Sortland")

	resp, err := svc.Preview(context.Background(), strings.NewReader(tsv("Anna\tBjorn\tSortland\t2001\t3\t1\t\t")), "")
	require.NoError(t, err)
	require.Len(t, resp.RowSamples, 1)
	assert.Equal(t, ResolveMatch, resp.RowSamples[0].Author.Action)
	assert.Equal(t, StrategyFolded, resp.RowSamples[0].Author.Strategy)
}

func TestPreview_AmbiguityPolicy(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	mustCreatePerson(t, s, catalog.KindAuthor, "Pat", "Smith")
	mustCreatePerson(t, s, catalog.KindAuthor, "Pat", "Smith")
	data := tsv("Some Book\tPat\tSmith\t2001\t3\t1\t\t")

	tests := []struct {
		policy     AmbiguityPolicy
		wantAction string
		wantRows   int
		wantNew    int
	}{
		{PolicyCreateNew, ResolveAmbiguous, 1, 1},
		{PolicyRejectRow, ResolveReject, 1, 0},
		{PolicyPickFirst, ResolveMatch, 0, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			resp, err := svc.Preview(context.Background(), strings.NewReader(data), tt.policy)
			require.NoError(t, err)
			require.Len(t, resp.RowSamples, 1)
			assert.Equal(t, tt.wantAction, resp.RowSamples[0].Author.Action)
			assert.Equal(t, tt.wantRows, resp.Summary.AmbiguousRows)
			assert.Equal(t, tt.wantNew, resp.Summary.NewAuthors)
		})
	}

	_, err := svc.Preview(context.Background(), strings.NewReader(data), "guess")
	assert.Error(t, err)
}

func TestPreview_Duplicates(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	data := tsv(
		owlMoonLine,
		"owl moon\tJane\tYolen\t1988\t3\t2\t\t",
		"Owl Moon\tJane\tYolen\t1989\t3\t1\t\t",
	)

	resp, err := svc.Preview(context.Background(), strings.NewReader(data), "")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Summary.DuplicateInFile)
	require.Len(t, resp.DuplicateSamples, 1)
	assert.Equal(t, []int{1, 2}, resp.DuplicateSamples[0].LineNumbers)
	assert.Equal(t, 1, resp.Summary.NewBooks)
}

func TestPreview_Structural(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})

	resp, err := svc.Preview(context.Background(), strings.NewReader(""), "")
	require.NoError(t, err)
	assert.Equal(t, []string{MsgEmptyFile}, resp.Validation.Errors)
	assert.Zero(t, resp.Summary.TotalRows)

	resp, err = svc.Preview(context.Background(), strings.NewReader("title\tyear\nOwl Moon\t1988\n"), "")
	require.NoError(t, err)
	assert.False(t, resp.Validation.IsValid)
	assert.Equal(t, 1, resp.Summary.TotalRows)
	assert.Empty(t, resp.RowSamples)
}
