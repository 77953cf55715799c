package main

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/awardshelf/internal/core"
)

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"-file", "winners.tsv", "-dry-run", "-batch-size", "50", "-tx-mode", "row"})
	require.NoError(t, err)
	assert.Equal(t, "winners.tsv", f.file)
	assert.True(t, f.dryRun)
	assert.Equal(t, 50, f.batchSize)
	assert.Equal(t, "row", f.txMode)

	_, err = parseFlags(nil)
	assert.ErrorContains(t, err, "-file is required")

	_, err = parseFlags([]string{"-file", "x.tsv", "-validate-only", "-dry-run"})
	assert.ErrorContains(t, err, "mutually exclusive")

	_, err = parseFlags([]string{"-file", "x.tsv", "-preview", "-dry-run"})
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, false, &core.ImportResult{
		TotalRows: 2,
		Success:   1,
		Errors:    1,
		Options:   core.ImportOptions{DryRun: true},
		Created:   core.CreatedCounts{Authors: 1, Books: 1, Placements: 1},
		RowErrors: []core.RowError{{Row: 2, Title: "Flotsam", Reason: "category does not exist: 99"}},
		Duration:  time.Second,
	})

	out := buf.String()
	assert.Contains(t, out, "dry run: nothing was saved")
	assert.Contains(t, out, "rows: 2 imported: 1 errors: 1")
	assert.Contains(t, out, "row 2 (Flotsam): category does not exist: 99")
}

func TestPrintReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, true, &core.ValidationReport{IsValid: false, Errors: []string{"Row 1: Year must be a valid number"}, TotalRows: 1})
	assert.JSONEq(t, `{"is_valid":false,"errors":["Row 1: Year must be a valid number"],"total_rows":1}`, buf.String())
}

func TestPrintPreview(t *testing.T) {
	var buf bytes.Buffer
	printPreview(&buf, false, &core.PreviewResponse{
		Validation: &core.ValidationReport{IsValid: true, Errors: []string{}, TotalRows: 3},
		Summary:    core.PreviewSummary{TotalRows: 3, ValidRows: 3, NewBooks: 2, ExistingBooks: 1, DuplicateInFile: 1},
		DuplicateSamples: []core.DuplicatePreview{
			{Title: "Owl Moon", Category: "3", Year: "1988", LineNumbers: []int{1, 2}},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "books: 2 new, 1 existing")
	assert.Contains(t, out, `duplicate "Owl Moon" (category 3, 1988) on rows [1 2]`)
}

func TestReportFailure(t *testing.T) {
	var buf bytes.Buffer
	code := reportFailure(&buf, "import", fmt.Errorf("acquire slot: %w", core.ErrTooManyImports))

	assert.Equal(t, 1, code)
	assert.Equal(t, "ingest: import failed: Another import is already running (Code: IMP002). "+
		"Please wait for it to finish and try again\n", buf.String())
}
