package core

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
)

func validate(t *testing.T, data string) *ValidationReport {
	t.Helper()
	report, err := NewValidator(newCatalog(t)).Validate(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	return report
}

func TestValidate_ValidFile(t *testing.T) {
	report := validate(t, "\uFEFF"+tsv(owlMoonLine, "Flotsam\tDavid\tWiesner\t2007\t3\t2\t\t"))

	assert.True(t, report.IsValid)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.TotalRows)
}

func TestValidate_Structural(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantError string
		wantRows  int
	}{
		{
			name:      "empty input",
			data:      "",
			wantError: MsgEmptyFile,
		},
		{
			name:      "blank lines only",
			data:      "\n\n",
			wantError: MsgEmptyFile,
		},
		{
			name:      "missing year column",
			data:      "title\tfirst_name\tlast_name\tcategory\tlevel\nOwl Moon\tJane\tYolen\t3\t1\n",
			wantError: "Missing required columns: year",
			wantRows:  1,
		},
		{
			name:      "several missing columns in declared order",
			data:      "level\ttitle\nx\ty\n",
			wantError: "Missing required columns: first_name, last_name, year, category",
			wantRows:  1,
		},
		{
			name:      "header only",
			data:      tsvHeader,
			wantError: MsgNoDataRows,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := validate(t, tt.data)
			assert.False(t, report.IsValid)
			assert.Equal(t, []string{tt.wantError}, report.Errors)
			assert.Equal(t, tt.wantRows, report.TotalRows)
		})
	}
}

func TestValidate_RowChecks(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "non-integer year",
			line: "Owl Moon\tJane\tYolen\tabc\t3\t1\t\t",
			want: []string{"Row 1: Year must be a valid number"},
		},
		{
			name: "year out of range",
			line: "Owl Moon\tJane\tYolen\t1700\t3\t1\t\t",
			want: []string{"Row 1: Invalid year '1700' (must be between 1800-2030)"},
		},
		{
			name: "missing fields accumulate",
			line: "\t\tYolen\t1988\t\t1\t\t",
			want: []string{
				"Row 1: Missing required field 'title'",
				"Row 1: Missing required field 'first_name'",
				"Row 1: Missing required field 'category'",
			},
		},
		{
			name: "unknown reference ids",
			line: "Owl Moon\tJane\tYolen\t1988\t99\t42\t\t",
			want: []string{
				"Row 1: Category ID 99 does not exist",
				"Row 1: Award Level ID 42 does not exist",
			},
		},
		{
			name: "non-numeric reference ids",
			line: "Owl Moon\tJane\tYolen\t1988\tgold\tx\t\t",
			want: []string{
				"Row 1: Category must be a valid number",
				"Row 1: Level must be a valid number",
			},
		},
		{
			name: "half an illustrator",
			line: "Owl Moon\tJane\tYolen\t1988\t3\t1\tJohn\t",
			want: []string{"Row 1: Both illustrator first and last name must be provided together or both left empty"},
		},
		{
			name: "title too long",
			line: strings.Repeat("é", catalog.MaxTitleLength+1) + "\tJane\tYolen\t1988\t3\t1\t\t",
			want: []string{"Row 1: Title exceeds 200 characters"},
		},
		{
			name: "title at the limit",
			line: strings.Repeat("é", catalog.MaxTitleLength) + "\tJane\tYolen\t1988\t3\t1\t\t",
		},
		{
			name: "excel wrapped cells are accepted",
			line: "Owl Moon\tJane\tYolen\t=\"1988\"\t=\"3\"\t=\"1\"\t\t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := validate(t, tsv(tt.line))
			assert.Equal(t, len(tt.want) == 0, report.IsValid)
			if len(tt.want) == 0 {
				assert.Empty(t, report.Errors)
				return
			}
			assert.Equal(t, tt.want, report.Errors)
		})
	}
}

func TestValidate_ReportsRowNumber(t *testing.T) {
	report := validate(t, tsv(owlMoonLine, owlMoonLine, "Owl Moon\tJane\tYolen\tnineteen\t3\t1\t\t"))

	assert.False(t, report.IsValid)
	assert.Equal(t, []string{"Row 3: Year must be a valid number"}, report.Errors)
	assert.Equal(t, 3, report.TotalRows)
}

func TestValidate_CapsErrors(t *testing.T) {
	lines := make([]string, 200)
	for i := range lines {
		lines[i] = fmt.Sprintf("Book %d\tA\tB\tbad\t3\t1\t\t", i)
	}

	report := validate(t, tsv(lines...))

	assert.False(t, report.IsValid)
	require.Len(t, report.Errors, MaxValidationErrors+1)
	assert.Equal(t, "Row 50: Year must be a valid number", report.Errors[MaxValidationErrors-1])
	assert.Equal(t, MsgTruncated, report.Errors[MaxValidationErrors])
}
