// Package tabular converts between raw CSV bytes and an ordered table of
// string rows.
//
// The header sequence is the schema of a table: Parse preserves it exactly as
// uploaded (after trimming) and Serialize writes columns in whatever order it
// is given, never in a row map's iteration order.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrMalformedInput is returned when bytes cannot be read as delimited text.
	ErrMalformedInput = errors.New("malformed csv input")

	// ErrSchemaMismatch is returned by Serialize when a row lacks a header key.
	ErrSchemaMismatch = errors.New("row does not match header schema")
)

// Row maps a header name to its trimmed cell value.
type Row map[string]string

// Table is a parsed CSV document.
type Table struct {
	Headers []string
	Rows    []Row
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Parse decodes CSV bytes into a Table.
//
// A leading UTF-8 BOM is dropped and invalid UTF-8 is replaced before the
// reader sees the data. Header names and cell values are trimmed. Rows shorter
// than the header line get "" for the missing cells; surplus cells are
// dropped. Blank header cells at the end of the header line, as spreadsheet
// exports leave behind, are dropped along with their column. Input with no
// header line, a NUL byte, or a repeated header name is rejected with
// ErrMalformedInput.
func Parse(data []byte) (*Table, error) {
	data = clean(data)

	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: input contains NUL bytes", ErrMalformedInput)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no header line", ErrMalformedInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	for len(header) > 0 && strings.TrimSpace(header[len(header)-1]) == "" {
		header = header[:len(header)-1]
	}
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: no header line", ErrMalformedInput)
	}

	headers := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := seen[h]; dup {
			return nil, fmt.Errorf("%w: duplicate header %q", ErrMalformedInput, h)
		}
		seen[h] = struct{}{}
		headers[i] = h
	}

	t := &Table{Headers: headers, Rows: []Row{}}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}

		row := make(Row, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// Serialize encodes rows as CSV using headers as the column order.
// Every row must carry a value for every header; keys not named in headers
// are ignored.
func Serialize(headers []string, rows []Row) ([]byte, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no headers", ErrSchemaMismatch)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(headers); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(headers))
	for i, row := range rows {
		for j, h := range headers {
			v, ok := row[h]
			if !ok {
				return nil, fmt.Errorf("%w: row %d missing %q", ErrSchemaMismatch, i+1, h)
			}
			record[j] = v
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
