// Package csvio reads the raw ISD, Transtats and airport reference CSV files
// and writes the cleaned and merged tables.
package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/couchcryptid/flight-weather-etl/internal/domain"
)

const bom = "\ufeff"

// header maps a column name to its position in a record.
type header map[string]int

// table iterates the rows of one CSV stream by column name.
type table struct {
	source string
	r      *csv.Reader
	cols   header
	row    int
	rec    []string
}

// newTable reads the header line and checks that every required column is present.
func newTable(r io.Reader, source string, required ...string) (*table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(bom)); err == nil && string(b) == bom {
		_, _ = br.Discard(len(bom))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	names, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &domain.SchemaError{Source: source, Column: required[0]}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", source, err)
	}

	cols := make(header, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, &domain.SchemaError{Source: source, Column: name}
		}
	}
	return &table{source: source, r: cr, cols: cols}, nil
}

// next advances to the next data row. It returns false at end of input.
func (t *table) next() (bool, error) {
	rec, err := t.r.Read()
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", t.source, err)
	}
	t.row++
	t.rec = rec
	return true, nil
}

// get returns the named cell of the current row, or "" when the row is short
// or the column is absent.
func (t *table) get(name string) string {
	i, ok := t.cols[name]
	if !ok || i >= len(t.rec) {
		return ""
	}
	return t.rec[i]
}

func (t *table) malformed(column string, err error) error {
	return &domain.MalformedFieldError{Row: t.row, Column: column, Value: t.get(column), Err: err}
}
