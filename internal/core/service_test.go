package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/store/memstore"
)

func newTestService(t *testing.T, cfg ServiceConfig) (*Service, *memstore.Store) {
	t.Helper()
	s := newCatalog(t)
	return NewService(s, cfg), s
}

func TestService_Import(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	res, err := svc.Import(ctx, "caldecott.tsv", strings.NewReader(tsv(owlMoonLine)), ImportOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ImportID)
	assert.Empty(t, res.Error)
	assert.Equal(t, 1, res.TotalRows)
	assert.Equal(t, 1, res.Success)
	assert.Zero(t, res.Errors)
	assert.Equal(t, CreatedCounts{Authors: 1, Illustrators: 1, Books: 1, Placements: 1}, res.Created)
	assert.Equal(t, ImportOptions{BatchSize: DefaultBatchSize, TxMode: TxModeBatch, OnAmbiguous: PolicyCreateNew}, res.Options)
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.IsValid)

	n, err := s.CountBookCategories(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	progress, err := svc.GetImportProgress(res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, progress.Phase)
	assert.Equal(t, 100, progress.Percent())
}

func TestService_Import_SkipsInvalidRows(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})

	res, err := svc.Import(context.Background(), "mixed.tsv", strings.NewReader(tsv(
		owlMoonLine,
		"Flotsam\tDavid\tWiesner\tlater\t3\t1\t\t",
	)), ImportOptions{})
	require.NoError(t, err)

	assert.Empty(t, res.Error)
	assert.False(t, res.Validation.IsValid)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.RowErrors, 1)
	assert.Equal(t, 2, res.RowErrors[0].Row)
}

func TestService_Import_StructuralFailure(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "empty file", data: "", want: MsgEmptyFile},
		{name: "missing columns", data: "title\tyear\nOwl Moon\t1988\n", want: "Missing required columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, s := newTestService(t, ServiceConfig{})

			res, err := svc.Import(context.Background(), "bad.tsv", strings.NewReader(tt.data), ImportOptions{})
			require.NoError(t, err)

			assert.Contains(t, res.Error, tt.want)
			require.NotNil(t, res.Validation)
			assert.False(t, res.Validation.IsValid)
			assert.Zero(t, res.Success)

			books, err := s.ListBooks(context.Background())
			require.NoError(t, err)
			assert.Empty(t, books)

			progress, err := svc.GetImportProgress(res.ImportID)
			require.NoError(t, err)
			assert.Equal(t, PhaseFailed, progress.Phase)
		})
	}
}

func TestService_DryRunLeavesStoreUntouched(t *testing.T) {
	svc, s := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	data := tsv(
		owlMoonLine,
		"Flotsam\tDavid\tWiesner\t2007\t3\t2\t\t",
		"Owl Moon\tJane\tYolen\t1988\t99\t1\t\t",
	)
	res, err := svc.Import(ctx, "dry.tsv", strings.NewReader(data), ImportOptions{DryRun: true, BatchSize: 2})
	require.NoError(t, err)

	// Counts describe what a real run would have done.
	assert.Empty(t, res.Error)
	assert.Equal(t, 2, res.Success)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, 2, res.Created.Books)
	assert.Equal(t, 2, res.Created.Authors)

	people, err := s.ListPeople(ctx, catalog.KindAuthor)
	require.NoError(t, err)
	assert.Empty(t, people)
	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
	n, err := s.CountBookCategories(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// A real run afterwards sees nothing from the dry run.
	committed, err := svc.Import(ctx, "real.tsv", strings.NewReader(data), ImportOptions{BatchSize: 2})
	require.NoError(t, err)
	assert.Equal(t, res.Created, committed.Created)
}

func TestService_StartImport(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})
	ctx := context.Background()

	id, err := svc.StartImport(ctx, "async.tsv", []byte(tsv(owlMoonLine)), ImportOptions{})
	require.NoError(t, err)

	ch, err := svc.SubscribeProgress(id)
	require.NoError(t, err)

	var last ImportProgress
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case p, ok := <-ch:
			if !ok {
				done = true
				break
			}
			last = p
		case <-timeout:
			t.Fatal("progress channel was never closed")
		}
	}
	assert.Equal(t, id, last.ImportID)

	res, err := svc.GetImportResult(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Success)
	assert.Zero(t, svc.Limiter().ActiveCount(), "slot released")

	// Subscribing after the end yields the final snapshot and a closed channel.
	ch, err = svc.SubscribeProgress(id)
	require.NoError(t, err)
	p := <-ch
	assert.Equal(t, PhaseComplete, p.Phase)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestService_StartImport_Busy(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{MaxConcurrent: 1})
	require.True(t, svc.Limiter().TryAcquire())
	defer svc.Limiter().Release()

	_, err := svc.StartImport(context.Background(), "busy.tsv", []byte(tsv(owlMoonLine)), ImportOptions{})
	assert.ErrorIs(t, err, ErrTooManyImports)
}

func TestService_Import_WaitTimesOut(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{MaxConcurrent: 1, MaxWait: 20 * time.Millisecond})
	require.True(t, svc.Limiter().TryAcquire())
	defer svc.Limiter().Release()

	_, err := svc.Import(context.Background(), "wait.tsv", strings.NewReader(tsv(owlMoonLine)), ImportOptions{})
	assert.ErrorIs(t, err, ErrTooManyImports)
}

func TestService_UnknownImport(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{})

	_, err := svc.GetImportProgress("missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
	_, err = svc.SubscribeProgress("missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
	_, err = svc.GetImportResult(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrImportNotFound)
}

func TestService_RecentImports(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{RecentLimit: 2})
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a.tsv", "b.tsv", "c.tsv"} {
		res, err := svc.Import(ctx, name, strings.NewReader(tsv(owlMoonLine)), ImportOptions{})
		require.NoError(t, err)
		ids = append(ids, res.ImportID)
	}

	recent := svc.RecentImports()
	require.Len(t, recent, 2)
	assert.Equal(t, "c.tsv", recent[0].FileName)
	assert.Equal(t, "b.tsv", recent[1].FileName)

	// Once the tracked entry expires the result is served from the recent list.
	svc.mu.Lock()
	delete(svc.imports, ids[2])
	svc.mu.Unlock()

	res, err := svc.GetImportResult(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, "c.tsv", res.FileName)
	p, err := svc.GetImportProgress(ids[2])
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, p.Phase)
}

func TestService_MergeOptions(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{Defaults: ImportOptions{BatchSize: 10, TxMode: TxModeRow, OnAmbiguous: PolicyPickFirst}})

	assert.Equal(t, ImportOptions{BatchSize: 10, TxMode: TxModeRow, OnAmbiguous: PolicyPickFirst}, svc.mergeOptions(ImportOptions{}))
	assert.Equal(t,
		ImportOptions{BatchSize: 5, TxMode: TxModeBatch, OnAmbiguous: PolicyPickFirst, DryRun: true},
		svc.mergeOptions(ImportOptions{BatchSize: 5, TxMode: TxModeBatch, DryRun: true}),
	)
}

func TestChunkRows(t *testing.T) {
	rows := make([]Row, 5)
	chunks := chunkRows(rows, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 1)
	assert.Empty(t, chunkRows(nil, 2))
}

func TestService_Retention(t *testing.T) {
	svc, _ := newTestService(t, ServiceConfig{Retention: 10 * time.Millisecond})

	res, err := svc.Import(context.Background(), "a.tsv", strings.NewReader(tsv(owlMoonLine)), ImportOptions{})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, tracked := svc.lookup(res.ImportID)
		return !tracked
	}, time.Second, 5*time.Millisecond)

	// Still answerable from the recent list.
	got, err := svc.GetImportResult(context.Background(), res.ImportID)
	require.NoError(t, err)
	assert.Equal(t, res.ImportID, got.ImportID)
}
