package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
)

// recordingExec captures every query it receives.
type recordingExec struct {
	queries []*models.Query
	err     error
}

func (r *recordingExec) Execute(ctx context.Context, q *models.Query) (*models.Snapshot, error) {
	r.queries = append(r.queries, q.Clone())
	if r.err != nil {
		return nil, r.err
	}
	rows := make([][]any, len(q.Tickers))
	for i, t := range q.Tickers {
		rows[i] = []any{t}
	}
	return &models.Snapshot{
		TotalCount: len(rows),
		Columns:    append([]string{"ticker"}, q.Columns...),
		Rows:       rows,
	}, nil
}

func TestScanSymbolsExpandsShortNames(t *testing.T) {
	exec := &recordingExec{}
	s := NewMultiAssetScanner(exec, testLogger(t))

	_, err := s.ScanSymbols(context.Background(), []string{"SP500", "GOLD", "BINANCE:BTCUSDT"}, "daily", nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	q := exec.queries[0]
	want := []string{"SP:SPX", "TVC:GOLD", "BINANCE:BTCUSDT"}
	for i, sym := range want {
		if q.Tickers[i] != sym {
			t.Fatalf("tickers = %v, want %v", q.Tickers, want)
		}
	}
	if q.Market != "global" || q.Limit != 3 {
		t.Fatalf("market=%s limit=%d, want global/3", q.Market, q.Limit)
	}
}

func TestScanSymbolsDefaultColumns(t *testing.T) {
	exec := &recordingExec{}
	s := NewMultiAssetScanner(exec, testLogger(t))

	if _, err := s.ScanSymbols(context.Background(), []string{"EURUSD"}, "1hr", nil); err != nil {
		t.Fatalf("scan: %v", err)
	}
	q := exec.queries[0]
	if q.Columns[0] != "name" || q.Columns[1] != "description" {
		t.Fatalf("columns = %v", q.Columns)
	}
	found := false
	for _, c := range q.Columns {
		if c == "close|60" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("no hourly close in %v", q.Columns)
	}
}

func TestScanSymbolsExplicitColumns(t *testing.T) {
	exec := &recordingExec{}
	s := NewMultiAssetScanner(exec, testLogger(t))

	cols := []string{"close", "volume"}
	if _, err := s.ScanSymbols(context.Background(), []string{"GOLD"}, "daily", cols); err != nil {
		t.Fatalf("scan: %v", err)
	}
	q := exec.queries[0]
	if len(q.Columns) != 2 || q.Columns[0] != "close" {
		t.Fatalf("columns = %v, want %v", q.Columns, cols)
	}
}

func TestScanDefaults(t *testing.T) {
	cases := []struct {
		name string
		scan func(*MultiAssetScanner) (*models.Snapshot, error)
		want int
	}{
		{"forex", func(s *MultiAssetScanner) (*models.Snapshot, error) {
			return s.ScanForex(context.Background(), nil, "daily")
		}, 8},
		{"indices", func(s *MultiAssetScanner) (*models.Snapshot, error) {
			return s.ScanIndices(context.Background(), nil, "daily")
		}, 6},
		{"commodities", func(s *MultiAssetScanner) (*models.Snapshot, error) {
			return s.ScanCommodities(context.Background(), nil, "daily")
		}, 6},
		{"bonds", func(s *MultiAssetScanner) (*models.Snapshot, error) {
			return s.ScanBonds(context.Background(), nil, "daily")
		}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exec := &recordingExec{}
			s := NewMultiAssetScanner(exec, testLogger(t))
			snap, err := tc.scan(s)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			if snap.NumRows() != tc.want {
				t.Fatalf("rows = %d, want %d", snap.NumRows(), tc.want)
			}
		})
	}
}

func TestScanMultiTimeframe(t *testing.T) {
	exec := &recordingExec{}
	s := NewMultiAssetScanner(exec, testLogger(t))

	results, err := s.ScanMultiTimeframe(context.Background(), []string{"GOLD"}, []string{"1hr", "daily"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results["1hr"] == nil || results["daily"] == nil {
		t.Fatalf("missing timeframes: %v", results)
	}
}

func TestScanMultiTimeframeFailsWhole(t *testing.T) {
	exec := &recordingExec{err: errors.New("boom")}
	s := NewMultiAssetScanner(exec, testLogger(t))

	if _, err := s.ScanMultiTimeframe(context.Background(), []string{"GOLD"}, []string{"1hr", "daily"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestScanAllMarkets(t *testing.T) {
	exec := &recordingExec{}
	s := NewMultiAssetScanner(exec, testLogger(t))

	results := s.ScanAllMarkets(context.Background(), "daily")
	for _, market := range []string{"forex", "commodities", "indices", "bonds"} {
		res, ok := results[market]
		if !ok {
			t.Fatalf("missing market %s", market)
		}
		if res.Err != nil {
			t.Fatalf("%s failed: %v", market, res.Err)
		}
	}
}

func TestScanAllMarketsIndependentFailures(t *testing.T) {
	exec := &recordingExec{err: errors.New("boom")}
	s := NewMultiAssetScanner(exec, testLogger(t))

	results := s.ScanAllMarkets(context.Background(), "daily")
	if len(results) != 4 {
		t.Fatalf("results = %d, want 4", len(results))
	}
	for market, res := range results {
		if res.Err == nil {
			t.Fatalf("%s should have failed", market)
		}
	}
}
