// Package catalog reads and writes the whitespace-separated source table and
// appends the rejection columns to it.
package catalog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tphakala/sourcefilter/internal/errors"
)

// Table is an ASCII table: one header line of column names followed by rows
// of whitespace-separated values.
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = slices.Clone(row)
	}
	return out
}

// ReadTable parses a table. Lines starting with '#' and blank lines are
// skipped; values may be double-quoted.
func ReadTable(r io.Reader) (*Table, error) {
	var body strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Component("catalog").
			Category(errors.CategoryFileIO).
			Build()
	}

	cr := csv.NewReader(strings.NewReader(body.String()))
	cr.Comma = ' '
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	records, err := cr.ReadAll()
	if err != nil {
		return nil, schemaError(fmt.Sprintf("parse table: %v", err))
	}
	if len(records) == 0 {
		return nil, schemaError("table has no header line")
	}

	t := &Table{Columns: records[0], Rows: records[1:]}
	for i, name := range t.Columns {
		if name == "" {
			return nil, schemaError(fmt.Sprintf("column %d has an empty name", i))
		}
		if t.Index(name) != i {
			return nil, schemaError(fmt.Sprintf("duplicate column %q", name))
		}
	}
	return t, nil
}

// WriteTable writes t in the format ReadTable accepts.
func WriteTable(w io.Writer, t *Table) error {
	bw := bufio.NewWriter(w)
	writeRecord(bw, t.Columns)
	for _, row := range t.Rows {
		writeRecord(bw, row)
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(quoteField(f))
	}
	w.WriteByte('\n')
}

func quoteField(f string) string {
	if f != "" && !strings.ContainsAny(f, " \t\"#") {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}

func schemaError(reason string) error {
	return errors.New(fmt.Errorf("%w: %s", errors.ErrCatalogSchemaMismatch, reason)).
		Component("catalog").
		Category(errors.CategorySchema).
		Build()
}
