package models

import (
	"math"
	"testing"
	"time"
)

func TestColumnLookup(t *testing.T) {
	s := &Snapshot{Columns: []string{"ticker", "close"}}
	if s.ColumnIndex("close") != 1 {
		t.Fatalf("index = %d, want 1", s.ColumnIndex("close"))
	}
	if s.ColumnIndex("volume") != -1 {
		t.Fatal("missing column must be -1")
	}
	if !s.HasColumn("ticker") || s.HasColumn("volume") {
		t.Fatal("HasColumn wrong")
	}
}

func TestFloats(t *testing.T) {
	s := &Snapshot{
		Columns: []string{"close"},
		Rows:    [][]any{{180.5}, {nil}, {"42.5"}, {"n/a"}},
	}
	vals := s.Floats("close")
	if vals[0] != 180.5 || vals[2] != 42.5 {
		t.Fatalf("floats = %v", vals)
	}
	if !math.IsNaN(vals[1]) || !math.IsNaN(vals[3]) {
		t.Fatalf("non-numeric cells = %v, want NaN", vals)
	}
}

func TestAddColumnLengthMismatch(t *testing.T) {
	s := &Snapshot{Columns: []string{"a"}, Rows: [][]any{{1.0}, {2.0}}}
	if err := s.AddColumn("b", []any{1.0}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestAddFloatColumnNaNBecomesNil(t *testing.T) {
	s := &Snapshot{Columns: []string{"a"}, Rows: [][]any{{1.0}, {2.0}}}
	if err := s.AddFloatColumn("b", []float64{math.NaN(), 5}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if s.Rows[0][1] != nil {
		t.Fatalf("NaN cell = %v, want nil", s.Rows[0][1])
	}
	if s.Rows[1][1] != 5.0 {
		t.Fatalf("cell = %v, want 5", s.Rows[1][1])
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := &Snapshot{
		Dataset: "stocks",
		Columns: []string{"close"},
		Rows:    [][]any{{1.0}},
	}
	c := s.Clone()
	c.Rows[0][0] = 99.0
	c.Columns[0] = "changed"
	if s.Rows[0][0] != 1.0 || s.Columns[0] != "close" {
		t.Fatal("clone shares memory with original")
	}
}

func TestConcatUnionsColumns(t *testing.T) {
	at := time.Date(2025, 8, 30, 10, 0, 0, 0, time.UTC)
	a := &Snapshot{
		Dataset:     "stocks",
		CollectedAt: at,
		TotalCount:  1,
		Columns:     []string{"ticker", "close"},
		Rows:        [][]any{{"AAPL", 180.5}},
	}
	b := &Snapshot{
		TotalCount: 1,
		Columns:    []string{"ticker", "volume"},
		Rows:       [][]any{{"MSFT", 1000.0}},
	}

	out := Concat([]*Snapshot{a, b})
	if out.Dataset != "stocks" || !out.CollectedAt.Equal(at) {
		t.Fatalf("identity = %s/%v", out.Dataset, out.CollectedAt)
	}
	if out.TotalCount != 2 || out.NumRows() != 2 {
		t.Fatalf("total=%d rows=%d", out.TotalCount, out.NumRows())
	}
	want := []string{"ticker", "close", "volume"}
	for i, c := range want {
		if out.Columns[i] != c {
			t.Fatalf("columns = %v, want %v", out.Columns, want)
		}
	}
	// Cells absent in a source snapshot are nil.
	if out.Rows[0][2] != nil || out.Rows[1][1] != nil {
		t.Fatalf("rows = %v", out.Rows)
	}
	if out.Rows[1][2] != 1000.0 {
		t.Fatalf("volume cell = %v", out.Rows[1][2])
	}
}

func TestConcatEmpty(t *testing.T) {
	out := Concat(nil)
	if out.NumRows() != 0 || len(out.Columns) != 0 {
		t.Fatalf("empty concat = %+v", out)
	}
}

func TestAsFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{180.5, 180.5},
		{float32(2), 2},
		{3, 3},
		{int64(4), 4},
		{"5.5", 5.5},
	}
	for _, tc := range cases {
		if got := AsFloat(tc.in); got != tc.want {
			t.Errorf("AsFloat(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if !math.IsNaN(AsFloat(nil)) || !math.IsNaN(AsFloat("text")) {
		t.Error("non-numeric input must be NaN")
	}
}
