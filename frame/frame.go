// Package frame holds the tabular data moved in and out of an index.
package frame

import (
	"errors"
	"fmt"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Frame is an ordered set of named columns with rows of arbitrary values.
// Missing cells are nil.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]any
}

// Empty returns a frame without columns. Columns are added by AppendRecord.
func Empty() *Frame {
	return &Frame{index: map[string]int{}}
}

func New(columns ...string) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		if strings.TrimSpace(c) == "" {
			return nil, errors.New("empty column name")
		}
		if _, ok := f.index[c]; ok {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		f.addColumn(c)
	}
	return f, nil
}

func (f *Frame) addColumn(name string) int {
	f.index[name] = len(f.columns)
	f.columns = append(f.columns, name)
	return len(f.columns) - 1
}

func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

func (f *Frame) Len() int {
	return len(f.rows)
}

func (f *Frame) HasColumn(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Row returns row i padded to the current column count.
func (f *Frame) Row(i int) []any {
	row := make([]any, len(f.columns))
	copy(row, f.rows[i])
	return row
}

// Get returns the cell of row i in column col, nil when either is unknown.
func (f *Frame) Get(i int, col string) any {
	c, ok := f.index[col]
	if !ok || i < 0 || i >= len(f.rows) || c >= len(f.rows[i]) {
		return nil
	}
	return f.rows[i][c]
}

func (f *Frame) Column(col string) []any {
	values := make([]any, len(f.rows))
	for i := range f.rows {
		values[i] = f.Get(i, col)
	}
	return values
}

// Append adds a row with one value per column.
func (f *Frame) Append(values ...any) error {
	if len(values) != len(f.columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.columns))
	}
	f.rows = append(f.rows, append([]any(nil), values...))
	return nil
}

// AppendRecord adds a row from a record. Unknown keys become new columns that
// are nil for all earlier rows.
func (f *Frame) AppendRecord(rec *orderedmap.OrderedMap[string, any]) {
	row := make([]any, len(f.columns), len(f.columns)+rec.Len())
	for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
		c, ok := f.index[pair.Key]
		if !ok {
			c = f.addColumn(pair.Key)
			row = append(row, nil)
		}
		row[c] = pair.Value
	}
	f.rows = append(f.rows, row)
}

// Record returns the non-nil cells of row i in column order.
func (f *Frame) Record(i int) *orderedmap.OrderedMap[string, any] {
	rec := orderedmap.New[string, any]()
	for c, name := range f.columns {
		if c >= len(f.rows[i]) || f.rows[i][c] == nil {
			continue
		}
		rec.Set(name, f.rows[i][c])
	}
	return rec
}

// Slice returns rows [from, to) sharing the row storage of f.
func (f *Frame) Slice(from, to int) *Frame {
	return &Frame{columns: f.columns, index: f.index, rows: f.rows[from:to]}
}

// Concat appends the rows of all frames in order. Columns are the union in
// order of first appearance.
func Concat(frames ...*Frame) *Frame {
	out := &Frame{index: map[string]int{}}
	for _, f := range frames {
		if f == nil {
			continue
		}
		for i := range f.rows {
			out.AppendRecord(f.Record(i))
		}
		for _, c := range f.columns {
			if _, ok := out.index[c]; !ok {
				out.addColumn(c)
			}
		}
	}
	return out
}

// Renamed returns a frame with the same rows and new column names.
func (f *Frame) Renamed(names []string) (*Frame, error) {
	if len(names) != len(f.columns) {
		return nil, fmt.Errorf("got %d names for %d columns", len(names), len(f.columns))
	}
	out := &Frame{index: make(map[string]int, len(names)), rows: f.rows}
	for _, n := range names {
		if _, ok := out.index[n]; ok {
			return nil, fmt.Errorf("duplicate column %q", n)
		}
		out.addColumn(n)
	}
	return out, nil
}
