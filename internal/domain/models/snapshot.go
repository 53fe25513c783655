package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Snapshot is one tabular screener result: rows are instruments, columns are
// the requested fields. It is tagged with the dataset it belongs to and the
// time it was collected, and is immutable once persisted.
type Snapshot struct {
	Dataset     string    `json:"dataset"`
	CollectedAt time.Time `json:"collected_at"`
	TotalCount  int       `json:"total_count"`
	Columns     []string  `json:"columns"`
	Rows        [][]any   `json:"rows"`
}

// NumRows returns the number of rows.
func (s *Snapshot) NumRows() int { return len(s.Rows) }

// ColumnIndex returns the position of the named column, or -1.
func (s *Snapshot) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (s *Snapshot) HasColumn(name string) bool { return s.ColumnIndex(name) >= 0 }

// Floats extracts the named column as float64 values. Cells that are not
// numeric (or missing) become NaN.
func (s *Snapshot) Floats(name string) []float64 {
	idx := s.ColumnIndex(name)
	out := make([]float64, len(s.Rows))
	for i, row := range s.Rows {
		if idx < 0 || idx >= len(row) {
			out[i] = math.NaN()
			continue
		}
		out[i] = AsFloat(row[idx])
	}
	return out
}

// Strings extracts the named column rendered as strings. Missing cells
// become the empty string.
func (s *Snapshot) Strings(name string) []string {
	idx := s.ColumnIndex(name)
	out := make([]string, len(s.Rows))
	for i, row := range s.Rows {
		if idx < 0 || idx >= len(row) || row[idx] == nil {
			continue
		}
		out[i] = fmt.Sprintf("%v", row[idx])
	}
	return out
}

// AddColumn appends a column. The value count must match the row count.
func (s *Snapshot) AddColumn(name string, values []any) error {
	if len(values) != len(s.Rows) {
		return fmt.Errorf("column %s: %d values for %d rows", name, len(values), len(s.Rows))
	}
	s.Columns = append(s.Columns, name)
	for i := range s.Rows {
		s.Rows[i] = append(s.Rows[i], values[i])
	}
	return nil
}

// AddFloatColumn appends a float column, mapping NaN to nil cells.
func (s *Snapshot) AddFloatColumn(name string, values []float64) error {
	cells := make([]any, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		cells[i] = v
	}
	return s.AddColumn(name, cells)
}

// Clone returns a deep copy. Transform hooks operate on clones so that a
// failing hook never leaves a half-modified snapshot behind.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Dataset:     s.Dataset,
		CollectedAt: s.CollectedAt,
		TotalCount:  s.TotalCount,
		Columns:     append([]string(nil), s.Columns...),
		Rows:        make([][]any, len(s.Rows)),
	}
	for i, row := range s.Rows {
		c.Rows[i] = append([]any(nil), row...)
	}
	return c
}

// AsFloat converts a snapshot cell to float64, NaN when not numeric.
func AsFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(x, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

// Transform is a pure snapshot transformation applied between query execution
// and persistence. Transforms run in order; a failing transform fails the tick.
type Transform func(*Snapshot) (*Snapshot, error)

// Concat merges snapshots into one, in the given order. Column sets are
// unioned in first-seen order; cells absent in a source snapshot are nil.
// The result carries the dataset and collection time of the first snapshot.
func Concat(snaps []*Snapshot) *Snapshot {
	if len(snaps) == 0 {
		return &Snapshot{}
	}
	out := &Snapshot{
		Dataset:     snaps[0].Dataset,
		CollectedAt: snaps[0].CollectedAt,
	}
	colIdx := make(map[string]int)
	for _, s := range snaps {
		for _, c := range s.Columns {
			if _, ok := colIdx[c]; !ok {
				colIdx[c] = len(out.Columns)
				out.Columns = append(out.Columns, c)
			}
		}
	}
	for _, s := range snaps {
		out.TotalCount += s.TotalCount
		for _, row := range s.Rows {
			merged := make([]any, len(out.Columns))
			for i, c := range s.Columns {
				if i < len(row) {
					merged[colIdx[c]] = row[i]
				}
			}
			out.Rows = append(out.Rows, merged)
		}
	}
	return out
}
