package store

// table.go implements Table: a columnar ingestion boundary that produces
// Rows lazily — rows are materialised one at a time, and an error on one
// row does not affect others already yielded. Expressed with Go 1.23's
// range-over-func iterators (iter.Seq2), the idiomatic replacement for a
// hand-rolled "next" method.

import (
	"iter"
)

// ColumnSpec describes one component's full column across a Table: one
// cell per row, sharing a single component name.
type ColumnSpec struct {
	Component ComponentName
	Cells     []Cell // len(Cells) == Table row count, one cell per row
}

// TableInput is the columnar form Table is built from: entity paths, time
// points and instance counts are row-aligned parallel slices; components
// are supplied column-by-column.
type TableInput struct {
	EntityPaths   []EntityPath
	TimePoints    []TimePoint
	NumInstances  []int
	Columns       []ColumnSpec
	RowIDAllocator *RowIDAllocator
}

// Table is a batch of rows sharing a columnar layout, built once via
// NewTable and then walked lazily with Rows().
type Table struct {
	input TableInput
	n     int
}

// NewTable validates a TableInput's shape (all row-aligned slices share
// one length, and every column has exactly that many cells) and returns a
// Table ready for lazy row materialisation. allocator must be non-nil; the
// caller owns its lifetime (typically the Store's own allocator).
func NewTable(input TableInput) (*Table, error) {
	n := len(input.EntityPaths)
	if len(input.TimePoints) != n || len(input.NumInstances) != n {
		return nil, &TableShapeError{
			Reason: "entity_paths, time_points and num_instances must have equal length",
		}
	}
	for _, col := range input.Columns {
		if len(col.Cells) != n {
			return nil, &TableShapeError{
				Reason: "column " + string(col.Component) + " length does not match row count",
			}
		}
	}
	if input.RowIDAllocator == nil {
		input.RowIDAllocator = NewRowIDAllocator()
	}
	return &Table{input: input, n: n}, nil
}

// NumRows returns the number of rows the table will yield.
func (t *Table) NumRows() int { return t.n }

// Rows returns a lazy iterator over the table's rows, materialising each
// Row (and validating it, per NewRow) only as it is pulled. A validation
// error on one row is yielded alongside a zero Row and does not prevent
// later rows in the table from being yielded; the caller decides whether
// to keep iterating.
func (t *Table) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for i := 0; i < t.n; i++ {
			cells := make([]Cell, 0, len(t.input.Columns))
			for _, col := range t.input.Columns {
				cells = append(cells, col.Cells[i])
			}
			row, err := NewRow(
				t.input.RowIDAllocator.Next(),
				t.input.EntityPaths[i],
				t.input.TimePoints[i],
				t.input.NumInstances[i],
				cells,
			)
			if !yield(row, err) {
				return
			}
		}
	}
}

// TableShapeError reports a mismatch between a TableInput's row-aligned
// slice lengths.
type TableShapeError struct{ Reason string }

func (e *TableShapeError) Error() string { return "table: " + e.Reason }
