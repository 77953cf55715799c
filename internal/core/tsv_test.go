package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCell(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Owl Moon ", "Owl Moon"},
		{`="1988"`, "1988"},
		{`=" 3 "`, "3"},
		{`="`, `="`},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanCell(tt.in), tt.in)
	}
}

func TestReadTable(t *testing.T) {
	data := "\uFEFFTitle\tFIRST_NAME\tlast_name\tyear\tcategory\tlevel\n" +
		"Owl Moon\tJane\tYolen\t1988\t3\t1\n" +
		"Short\tOnly\n"

	table, err := ReadTable(strings.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, table.Header.Missing())
	require.Len(t, table.Rows, 2)

	assert.Equal(t, Row{
		Line: 1, Title: "Owl Moon", FirstName: "Jane", LastName: "Yolen",
		Year: "1988", Category: "3", Level: "1",
	}, table.Rows[0])
	assert.False(t, table.Rows[0].HasIllustrator())

	assert.Equal(t, 2, table.Rows[1].Line)
	assert.Equal(t, "Only", table.Rows[1].FirstName)
	assert.Empty(t, table.Rows[1].Year)
	assert.Equal(t, int64(len(data)), table.Bytes)
}

func TestReadTable_QuotesAreLiteral(t *testing.T) {
	data := "title\tfirst_name\tlast_name\tyear\tcategory\tlevel\tillustrator_first_name\tillustrator_last_name\n" +
		"\"Slowly, Slowly, Slowly,\" said the Sloth\tEric\tCarle\t2002\t3\t1\t\t\n" +
		"Owl Moon\tJane\tYolen\t1988\t3\t1\tJohn\tSchoenherr\n" +
		"Flotsam\tDavid\tWiesner\t2007\t3\t1\t\t\n"

	table, err := ReadTable(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)

	tests := []struct {
		title, last, year string
	}{
		{`"Slowly, Slowly, Slowly," said the Sloth`, "Carle", "2002"},
		{"Owl Moon", "Yolen", "1988"},
		{"Flotsam", "Wiesner", "2007"},
	}
	for i, tt := range tests {
		row := table.Rows[i]
		assert.Equal(t, i+1, row.Line)
		assert.Equal(t, tt.title, row.Title)
		assert.Equal(t, tt.last, row.LastName)
		assert.Equal(t, tt.year, row.Year)
		assert.Equal(t, "3", row.Category)
	}
	assert.Equal(t, "Schoenherr", table.Rows[1].IllustratorLast)
	assert.Empty(t, table.Rows[2].IllustratorFirst)
}

func TestReadTable_LineEndingsAndBlankLines(t *testing.T) {
	data := "\r\ntitle\tfirst_name\tlast_name\tyear\tcategory\tlevel\r\n" +
		"Owl Moon\tJane\tYolen\t1988\t3\t1\r\n" +
		"\r\n" +
		"Flotsam\tDavid\tWiesner\t2007\t3\t1"

	table, err := ReadTable(strings.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, table.Header.Missing())
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "1", table.Rows[0].Level)
	assert.Equal(t, 2, table.Rows[1].Line)
	assert.Equal(t, "1", table.Rows[1].Level)
}

func TestReadTable_LineTooLong(t *testing.T) {
	data := "title\tfirst_name\tlast_name\tyear\tcategory\tlevel\n" +
		strings.Repeat("x", MaxLineBytes+1) + "\n"

	_, err := ReadTable(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid tsv at row 1")
}

func TestReadTable_Empty(t *testing.T) {
	for _, in := range []string{"", "\n\n", "\uFEFF", "  \t \n"} {
		_, err := ReadTable(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrEmptyInput, "%q", in)
	}
}

func TestRowKeys(t *testing.T) {
	row := Row{FirstName: " Jane", LastName: "YOLEN", IllustratorFirst: "John", IllustratorLast: "Schoenherr"}
	assert.Equal(t, "jane|yolen", row.AuthorKey())
	assert.Equal(t, "john|schoenherr", row.IllustratorKey())
	assert.True(t, row.HasIllustrator())
}
