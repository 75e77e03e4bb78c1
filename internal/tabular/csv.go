// Package tabular reads CSV and XLSX tables whose columns are addressed by
// header name.
package tabular

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const bom = "\uFEFF"

// Header maps column names to positions. When a name repeats, the first
// column wins.
type Header struct {
	Names []string
	index map[string]int
}

// NewHeader builds a Header from the first record of a table. Names are
// trimmed and a leading byte order mark is removed.
func NewHeader(record []string) Header {
	h := Header{Names: make([]string, len(record)), index: make(map[string]int, len(record))}
	for i, name := range record {
		if i == 0 {
			name = strings.TrimPrefix(name, bom)
		}
		name = strings.TrimSpace(name)
		h.Names[i] = name
		if _, ok := h.index[name]; !ok {
			h.index[name] = i
		}
	}
	return h
}

// Has reports whether the table has the named column.
func (h Header) Has(name string) bool {
	_, ok := h.index[name]
	return ok
}

// First returns the first of names present in the header.
func (h Header) First(names ...string) (string, bool) {
	for _, n := range names {
		if h.Has(n) {
			return n, true
		}
	}
	return "", false
}

// Row is one data record of a table.
type Row struct {
	Header *Header
	Fields []string
	Line   int // 1-based data row number
}

// Get returns the trimmed value of the named column, or "" when the column is
// absent or the record is short.
func (r Row) Get(name string) string {
	i, ok := r.Header.index[name]
	if !ok || i >= len(r.Fields) {
		return ""
	}
	return strings.TrimSpace(r.Fields[i])
}

// Float parses the named column, returning NaN for empty or non-numeric text.
func (r Row) Float(name string) float64 {
	f, err := strconv.ParseFloat(r.Get(name), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// FloatPtr is Float with nil in place of NaN and infinities.
func (r Row) FloatPtr(name string) *float64 {
	f := r.Float(name)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// IntPtr parses an integral column. Values such as "2.0" are accepted.
func (r Row) IntPtr(name string) *int {
	f := r.Float(name)
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	n := int(f)
	return &n
}

// BoolPtr parses a flag column holding 0/1 or true/false.
func (r Row) BoolPtr(name string) *bool {
	s := strings.ToLower(r.Get(name))
	switch s {
	case "true", "t", "yes":
		b := true
		return &b
	case "false", "f", "no":
		b := false
		return &b
	}
	f := r.Float(name)
	if math.IsNaN(f) {
		return nil
	}
	b := f != 0
	return &b
}

// Each reads a headed table from r and calls fn for every data row. The
// table is CSV, or an XLSX workbook whose first sheet is read. It returns the
// header, or an error when the table cannot be parsed, the context is
// cancelled, or fn fails.
func Each(ctx context.Context, r io.Reader, fn func(Row) error) (Header, error) {
	br := bufio.NewReader(r)
	var records recordReader
	if magic, _ := br.Peek(len(zipMagic)); string(magic) == zipMagic {
		sheet, err := readSheet(br)
		if err != nil {
			return Header{}, err
		}
		records = sheet
	} else {
		reader := csv.NewReader(br)
		reader.FieldsPerRecord = -1 // allow variable fields
		reader.LazyQuotes = true
		records = reader
	}

	first, err := records.Read()
	if err == io.EOF {
		return Header{}, eris.New("tabular: empty table")
	}
	if err != nil {
		return Header{}, eris.Wrap(err, "tabular: read header")
	}
	header := NewHeader(first)

	for line := 1; ; line++ {
		if ctx.Err() != nil {
			return header, eris.Wrap(ctx.Err(), "tabular: context cancelled")
		}
		record, err := records.Read()
		if err == io.EOF {
			return header, nil
		}
		if err != nil {
			return header, eris.Wrapf(err, "tabular: read row %d", line)
		}
		if err := fn(Row{Header: &header, Fields: record, Line: line}); err != nil {
			return header, err
		}
	}
}
