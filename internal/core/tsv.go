package core

// tsv.go decodes tab-separated upload files into rows.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JonMunkholm/awardshelf/internal/catalog"
)

// Column names recognized in the header row.
const (
	ColTitle            = "title"
	ColFirstName        = "first_name"
	ColLastName         = "last_name"
	ColYear             = "year"
	ColCategory         = "category"
	ColLevel            = "level"
	ColIllustratorFirst = "illustrator_first_name"
	ColIllustratorLast  = "illustrator_last_name"
)

// RequiredColumns must all appear in the header, in this reporting order.
var RequiredColumns = []string{ColTitle, ColFirstName, ColLastName, ColYear, ColCategory, ColLevel}

// HeaderIndex maps column names (lowercase) to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Keys are lowercased for case-insensitive matching.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// Missing returns the required columns absent from the index.
func (h HeaderIndex) Missing() []string {
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// CleanCell trims whitespace and removes the Excel text-formula wrapper
// (="...") that spreadsheet exports put around numeric-looking cells.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// Row is one data row with every cell cleaned. Line is the 1-based data
// row number.
type Row struct {
	Line             int
	Title            string
	FirstName        string
	LastName         string
	Year             string
	Category         string
	Level            string
	IllustratorFirst string
	IllustratorLast  string
}

// HasIllustrator reports whether both illustrator names are present.
func (r Row) HasIllustrator() bool {
	return r.IllustratorFirst != "" && r.IllustratorLast != ""
}

// AuthorKey is the cache key for the row's author.
func (r Row) AuthorKey() string {
	return catalog.PersonKey(r.FirstName, r.LastName)
}

// IllustratorKey is the cache key for the row's illustrator.
func (r Row) IllustratorKey() string {
	return catalog.PersonKey(r.IllustratorFirst, r.IllustratorLast)
}

// Table is a decoded upload: its header index and data rows.
type Table struct {
	Header HeaderIndex
	Rows   []Row
	// Bytes is the raw input size before decoding.
	Bytes int64
}

// ErrEmptyInput is returned by ReadTable when the input has no header row.
var ErrEmptyInput = errors.New("empty file")

// MaxLineBytes bounds a single physical line of an upload.
const MaxLineBytes = 1 << 20

// ReadTable decodes a tab-separated file. The first non-blank line is the
// header and every later non-blank line is one row. Quotes carry no meaning,
// so a title such as "Slowly, Slowly, Slowly," said the Sloth stays one cell.
// Rows shorter than the header read missing cells as empty.
func ReadTable(r io.Reader) (*Table, error) {
	counter := NewCountingReader(r)
	sc := bufio.NewScanner(NewDecodingReader(counter))
	sc.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)

	next := func() (string, bool) {
		for sc.Scan() {
			if line := sc.Text(); line != "" {
				return line, true
			}
		}
		return "", false
	}

	header, ok := next()
	if !ok {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("invalid tsv header: %w", err)
		}
		return nil, ErrEmptyInput
	}

	idx := MakeHeaderIndex(strings.Split(header, "\t"))
	if len(idx) == 1 {
		if _, blank := idx[""]; blank {
			return nil, ErrEmptyInput
		}
	}

	t := &Table{Header: idx}
	cell := func(rec []string, col string) string {
		pos, ok := idx[col]
		if !ok || pos >= len(rec) {
			return ""
		}
		return CleanCell(rec[pos])
	}

	line := 0
	for {
		text, ok := next()
		if !ok {
			break
		}
		line++
		rec := strings.Split(text, "\t")
		t.Rows = append(t.Rows, Row{
			Line:             line,
			Title:            cell(rec, ColTitle),
			FirstName:        cell(rec, ColFirstName),
			LastName:         cell(rec, ColLastName),
			Year:             cell(rec, ColYear),
			Category:         cell(rec, ColCategory),
			Level:            cell(rec, ColLevel),
			IllustratorFirst: cell(rec, ColIllustratorFirst),
			IllustratorLast:  cell(rec, ColIllustratorLast),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("invalid tsv at row %d: %w", line+1, err)
	}
	t.Bytes = counter.BytesRead
	return t, nil
}

// parseID parses a category or level id cell.
func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil
}
