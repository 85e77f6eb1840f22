// Package dataset provides the in-memory table passed between pipeline
// stages, plus ingestion of raw row records into daily demand observations.
//
// A Table is column-oriented: one date vector plus named numeric and text
// columns of equal length. Missing numeric values are represented as NaN,
// missing text values as the empty string. Stages never mutate their input
// table; they Clone and return a new one.
package dataset

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the canonical date format used at record boundaries.
const DateLayout = "2006-01-02"

// Table is a column-oriented, date-indexed data table.
type Table struct {
	dates   []time.Time
	numeric map[string][]float64
	text    map[string][]string

	// column insertion order, kept so feature matrices and stored records
	// are deterministic across runs
	numericOrder []string
	textOrder    []string
}

// NewTable creates a table indexed by the given dates.
func NewTable(dates []time.Time) *Table {
	d := make([]time.Time, len(dates))
	copy(d, dates)
	return &Table{
		dates:   d,
		numeric: make(map[string][]float64),
		text:    make(map[string][]string),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.dates)
}

// Dates returns the date vector. Callers must not modify it.
func (t *Table) Dates() []time.Time {
	return t.dates
}

// Date returns the date at row i.
func (t *Table) Date(i int) time.Time {
	return t.dates[i]
}

// SetDate replaces the date at row i.
func (t *Table) SetDate(i int, d time.Time) {
	t.dates[i] = d
}

// Numeric returns the named numeric column, or false if absent.
// Callers must not modify the returned slice; use SetNumeric.
func (t *Table) Numeric(name string) ([]float64, bool) {
	col, ok := t.numeric[name]
	return col, ok
}

// SetNumeric adds or replaces a numeric column. The column length must
// match the table's row count.
func (t *Table) SetNumeric(name string, values []float64) error {
	if len(values) != len(t.dates) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.dates))
	}
	if _, exists := t.numeric[name]; !exists {
		t.numericOrder = append(t.numericOrder, name)
	}
	t.numeric[name] = values
	return nil
}

// Text returns the named text column, or false if absent.
func (t *Table) Text(name string) ([]string, bool) {
	col, ok := t.text[name]
	return col, ok
}

// SetText adds or replaces a text column.
func (t *Table) SetText(name string, values []string) error {
	if len(values) != len(t.dates) {
		return fmt.Errorf("column %q has %d values, table has %d rows", name, len(values), len(t.dates))
	}
	if _, exists := t.text[name]; !exists {
		t.textOrder = append(t.textOrder, name)
	}
	t.text[name] = values
	return nil
}

// DropNumeric removes a numeric column if present.
func (t *Table) DropNumeric(name string) {
	if _, ok := t.numeric[name]; !ok {
		return
	}
	delete(t.numeric, name)
	for i, n := range t.numericOrder {
		if n == name {
			t.numericOrder = append(t.numericOrder[:i], t.numericOrder[i+1:]...)
			break
		}
	}
}

// DropText removes a text column if present.
func (t *Table) DropText(name string) {
	if _, ok := t.text[name]; !ok {
		return
	}
	delete(t.text, name)
	for i, n := range t.textOrder {
		if n == name {
			t.textOrder = append(t.textOrder[:i], t.textOrder[i+1:]...)
			break
		}
	}
}

// NumericColumns returns numeric column names in insertion order.
func (t *Table) NumericColumns() []string {
	out := make([]string, len(t.numericOrder))
	copy(out, t.numericOrder)
	return out
}

// TextColumns returns text column names in insertion order.
func (t *Table) TextColumns() []string {
	out := make([]string, len(t.textOrder))
	copy(out, t.textOrder)
	return out
}

// HasColumn reports whether any column (numeric or text) has this name.
func (t *Table) HasColumn(name string) bool {
	if _, ok := t.numeric[name]; ok {
		return true
	}
	_, ok := t.text[name]
	return ok
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := NewTable(t.dates)
	for _, name := range t.numericOrder {
		vals := make([]float64, len(t.numeric[name]))
		copy(vals, t.numeric[name])
		out.numeric[name] = vals
		out.numericOrder = append(out.numericOrder, name)
	}
	for _, name := range t.textOrder {
		vals := make([]string, len(t.text[name]))
		copy(vals, t.text[name])
		out.text[name] = vals
		out.textOrder = append(out.textOrder, name)
	}
	return out
}

// SortByDate reorders all rows by ascending date. The positional index is
// reset implicitly (slices are rebuilt in the new order).
func (t *Table) SortByDate() {
	idx := make([]int, len(t.dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return t.dates[idx[a]].Before(t.dates[idx[b]])
	})

	dates := make([]time.Time, len(t.dates))
	for i, j := range idx {
		dates[i] = t.dates[j]
	}
	t.dates = dates

	for name, col := range t.numeric {
		reordered := make([]float64, len(col))
		for i, j := range idx {
			reordered[i] = col[j]
		}
		t.numeric[name] = reordered
	}
	for name, col := range t.text {
		reordered := make([]string, len(col))
		for i, j := range idx {
			reordered[i] = col[j]
		}
		t.text[name] = reordered
	}
}

// Slice returns a deep copy of rows [i, j).
func (t *Table) Slice(i, j int) *Table {
	out := NewTable(t.dates[i:j])
	for _, name := range t.numericOrder {
		vals := make([]float64, j-i)
		copy(vals, t.numeric[name][i:j])
		out.numeric[name] = vals
		out.numericOrder = append(out.numericOrder, name)
	}
	for _, name := range t.textOrder {
		vals := make([]string, j-i)
		copy(vals, t.text[name][i:j])
		out.text[name] = vals
		out.textOrder = append(out.textOrder, name)
	}
	return out
}

// Record is a plain row-oriented representation of one table row, used at
// the storage and HTTP boundaries. Values are string (text columns),
// float64 (numeric columns) or the DateLayout-formatted date.
type Record map[string]any

// Records converts the table to row records. NaN numeric values are omitted
// from their rows so the records stay JSON-encodable.
func (t *Table) Records() []Record {
	out := make([]Record, t.Len())
	for i := range out {
		rec := Record{"date": t.dates[i].Format(DateLayout)}
		for _, name := range t.numericOrder {
			v := t.numeric[name][i]
			if !math.IsNaN(v) {
				rec[name] = v
			}
		}
		for _, name := range t.textOrder {
			if s := t.text[name][i]; s != "" {
				rec[name] = s
			}
		}
		out[i] = rec
	}
	return out
}
