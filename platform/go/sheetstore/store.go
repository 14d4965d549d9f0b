// Package sheetstore adapts a remote spreadsheet into a generic record store.
// Tables are named sheets whose first row is a header defining field names;
// every cell value is a string. The backend offers no transactions, indexes,
// or versioning: concurrent overlapping writes are last-write-wins, and row
// positions obtained from a read become invalid after a concurrent delete on
// the same table.
package sheetstore

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the backing table is missing or unreachable.
var ErrUnavailable = errors.New("tabular store unavailable")

// Store is the minimal contract every repository builds on.
//
// Update and Delete address rows by their 1-based physical position within
// the sheet, including the header row (so the first data row is position 2).
// Callers must use a position obtained from a recent ReadAll.
type Store interface {
	ReadAll(ctx context.Context, table string) (Table, error)
	Append(ctx context.Context, table string, rows [][]string) error
	Update(ctx context.Context, table string, pos int, row []string) error
	Delete(ctx context.Context, table string, pos int) error
}

// Table is a snapshot of one sheet: the header row plus all data rows,
// each padded to the header width.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Record pairs a data row with the physical sheet position it was read from.
type Record struct {
	fields *FieldMap
	row    []string

	// Pos is the 1-based sheet row usable for Store.Update / Store.Delete.
	Pos int
}

// Records resolves the header once and wraps every data row.
func (t Table) Records() []Record {
	fields := NewFieldMap(t.Header)
	records := make([]Record, 0, len(t.Rows))
	for i, row := range t.Rows {
		records = append(records, Record{fields: fields, row: row, Pos: i + 2})
	}
	return records
}

// Get returns the value of the logical field, or "" when the header has no
// matching column. Missing fields never fail; see FieldMap.Missing.
func (r Record) Get(field string) string {
	if r.fields == nil {
		return ""
	}
	col, ok := r.fields.Column(field)
	if !ok || col >= len(r.row) {
		return ""
	}
	return r.row[col]
}

// Set writes the value into the record's backing row when the field has a
// matching column, reporting whether the write happened. Combined with Row
// it lets callers overwrite individual cells and write the row back without
// disturbing columns they do not understand.
func (r Record) Set(field, value string) bool {
	if r.fields == nil {
		return false
	}
	col, ok := r.fields.Column(field)
	if !ok || col >= len(r.row) {
		return false
	}
	r.row[col] = value
	return true
}

// Row exposes the backing row for a write-back via Store.Update.
func (r Record) Row() []string {
	return r.row
}

// Fields exposes the shared header resolution for this record's table.
func (r Record) Fields() *FieldMap {
	return r.fields
}

// BuildRow lays out logical field values in the table's physical column
// order. Fields without a matching column are dropped, columns without a
// value stay empty. This keeps appends correct when columns are added or
// reordered in the sheet.
func (t Table) BuildRow(values map[string]string) []string {
	fields := NewFieldMap(t.Header)
	row := make([]string, len(t.Header))
	for field, value := range values {
		if col, ok := fields.Column(field); ok {
			row[col] = value
		}
	}
	return row
}

// ParseBool interprets the backend's boolean serialization ("TRUE"/"FALSE",
// tolerating case and padding). Anything else is false.
func ParseBool(raw string) bool {
	switch trimFold(raw) {
	case "true":
		return true
	default:
		return false
	}
}

// FormatBool renders a boolean the way the backend stores it.
func FormatBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}
