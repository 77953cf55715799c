package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
	"github.com/JonMunkholm/awardshelf/internal/normalize"
)

// ============================================================================
// Cell and Text Benchmarks
// ============================================================================

// BenchmarkCleanCell benchmarks the per-cell cleanup run on every TSV field.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"Owl Moon",
		"  Jane  ",
		`="1988"`,
		`=" 3 "`,
		"",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

// BenchmarkCleanCell_ExcelFormula benchmarks the spreadsheet-wrapped case.
func BenchmarkCleanCell_ExcelFormula(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CleanCell(`="1988"`)
	}
}

// BenchmarkFold benchmarks the diacritic-folding strategy. It runs for
// every cache insert and every lookup miss.
func BenchmarkFold(b *testing.B) {
	testCases := []string{"Jane Yolen", "Björn Sortland", "Émile Zola", "Le Café de Flore"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			normalize.Fold(tc)
		}
	}
}

// BenchmarkTransliterate benchmarks the last-resort ASCII strategy.
func BenchmarkTransliterate(b *testing.B) {
	n := normalize.New(nil)
	testCases := []string{"Jane Yolen", "Ngũgĩ wa Thiong'o", "Фёдор Достоевский", "北京"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			n.Transliterate(tc)
		}
	}
}

// BenchmarkBaseSlug benchmarks slug derivation for new books.
func BenchmarkBaseSlug(b *testing.B) {
	title := "The Man Who Walked Between the Towers: A Story of Courage and Wonder"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BaseSlug(title)
	}
}

// ============================================================================
// Parsing and Validation Benchmarks
// ============================================================================

// BenchmarkReadTable benchmarks TSV decoding of a small file.
func BenchmarkReadTable(b *testing.B) {
	data := generateTestTSV(100)

	b.ResetTimer()
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		if _, err := ReadTable(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkReadTable_Large benchmarks TSV decoding of a full catalog export.
func BenchmarkReadTable_Large(b *testing.B) {
	data := generateTestTSV(10000)

	b.ResetTimer()
	b.SetBytes(int64(len(data)))
	for i := 0; i < b.N; i++ {
		if _, err := ReadTable(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkValidate benchmarks header and row checks against reference data.
func BenchmarkValidate(b *testing.B) {
	s := newCatalog(b)
	v := NewValidator(s)
	data := generateTestTSV(1000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := v.Validate(ctx, bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Resolution Benchmarks
// ============================================================================

// BenchmarkResolvePerson_CacheHit benchmarks the exact-key fast path.
func BenchmarkResolvePerson_CacheHit(b *testing.B) {
	s := newCatalog(b)
	for i := 0; i < 500; i++ {
		mustCreatePerson(b, s, catalog.KindAuthor, "First", fmt.Sprintf("Last%d", i))
	}
	mustCreatePerson(b, s, catalog.KindAuthor, "Jane", "Yolen")
	cache := mustWarm(b, s)
	r := NewResolver(normalize.New(nil), PolicyCreateNew)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.ResolvePerson(ctx, s, cache, catalog.KindAuthor, "Jane", "Yolen"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkResolvePerson_Folded benchmarks a match found only after folding.
func BenchmarkResolvePerson_Folded(b *testing.B) {
	s := newCatalog(b)
	mustCreatePerson(b, s, catalog.KindAuthor, "Björn", "Sortland")
	cache := mustWarm(b, s)
	r := NewResolver(normalize.New(nil), PolicyCreateNew)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.ResolvePerson(ctx, s, cache, catalog.KindAuthor, "Bjorn", "Sortland"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkResolveBook_Miss benchmarks the full three-strategy miss.
func BenchmarkResolveBook_Miss(b *testing.B) {
	s := newCatalog(b)
	cache := mustWarm(b, s)
	r := NewResolver(normalize.New(nil), PolicyCreateNew)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := r.ResolveBook(ctx, s, cache, "A Title Nobody Has Seen"); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// End-to-End Benchmarks
// ============================================================================

// BenchmarkImport benchmarks a full import into a fresh in-memory store.
func BenchmarkImport(b *testing.B) {
	for _, mode := range []TxMode{TxModeBatch, TxModeRow} {
		b.Run(string(mode), func(b *testing.B) {
			data := generateTestTSV(500)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				b.StopTimer()
				svc := NewService(newCatalog(b), ServiceConfig{})
				b.StartTimer()

				res, err := svc.Import(ctx, "bench.tsv", bytes.NewReader(data), ImportOptions{TxMode: mode})
				if err != nil {
					b.Fatal(err)
				}
				if res.Error != "" {
					b.Fatal(res.Error)
				}
			}
		})
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

// BenchmarkCleanCellParallel benchmarks CleanCell under parallel load.
func BenchmarkCleanCellParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			CleanCell(`="1988"`)
		}
	})
}

// BenchmarkFoldParallel checks that Fold builds no shared transformer state.
func BenchmarkFoldParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			normalize.Fold("Björn Sortland")
		}
	})
}

// ============================================================================
// Helper Functions
// ============================================================================

// generateTestTSV generates award rows with the specified number of data
// rows. Every tenth author repeats so the resolver sees both hits and misses.
func generateTestTSV(rows int) []byte {
	var b strings.Builder
	b.WriteString(tsvHeader)

	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "Book %d\tAuthor\tNumber%d\t%d\t3\t%d\tIllus\tTrator%d\n",
			i, i%(rows/10+1), 1940+i%80, 1+i%2, i%7)
	}
	return []byte(b.String())
}
