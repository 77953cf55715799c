package core

// streaming.go normalizes raw upload bytes before TSV decoding.
//
// Spreadsheet exports on Windows often start with a UTF-8 byte-order mark
// and occasionally carry stray Latin-1 bytes. NewDecodingReader strips the
// BOM and replaces invalid sequences with U+FFFD on the fly, so the TSV
// reader only ever sees valid UTF-8.

import (
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NewDecodingReader wraps r with BOM stripping and UTF-8 sanitization.
func NewDecodingReader(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// CountingReader tracks bytes read for progress reporting.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}
