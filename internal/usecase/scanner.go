package usecase

import (
	"context"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	drepo "github.com/jam2205/TradingView-Screener/internal/domain/repository"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
)

// MajorSymbols maps short names to full TradingView symbols.
var MajorSymbols = map[string]string{
	// Indices
	"SP500":       "SP:SPX",
	"NASDAQ":      "NASDAQ:NDX",
	"NASDAQ_COMP": "TVC:IXIC",
	"DOW":         "TVC:DJI",
	"YM30":        "CBOT_MINI:YM1!",
	"ES":          "CME_MINI:ES1!",
	"NQ":          "CME_MINI:NQ1!",

	// Commodities
	"GOLD":           "TVC:GOLD",
	"GOLD_FUTURES":   "COMEX:GC1!",
	"SILVER":         "TVC:SILVER",
	"SILVER_FUTURES": "COMEX:SI1!",
	"OIL":            "TVC:USOIL",
	"NATGAS":         "NYMEX:NG1!",

	// Forex majors
	"EURUSD": "FX_IDC:EURUSD",
	"GBPJPY": "FX_IDC:GBPJPY",
	"GBPUSD": "FX_IDC:GBPUSD",
	"USDJPY": "FX_IDC:USDJPY",
	"AUDUSD": "FX_IDC:AUDUSD",
	"USDCAD": "FX_IDC:USDCAD",
	"NZDUSD": "FX_IDC:NZDUSD",
	"EURGBP": "FX_IDC:EURGBP",
	"EURJPY": "FX_IDC:EURJPY",
	"AUDJPY": "FX_IDC:AUDJPY",

	// Bonds and the dollar index
	"US02Y": "TVC:US02Y",
	"US05Y": "TVC:US05Y",
	"US10Y": "TVC:US10Y",
	"US30Y": "TVC:US30Y",
	"DX":    "TVC:DXY",
}

// MultiAssetScanner scans bonds, commodities, indices and forex across
// timeframes. It is a thin composition over the query executor.
type MultiAssetScanner struct {
	exec   drepo.QueryExecutor
	logger *applogger.Logger
}

func NewMultiAssetScanner(exec drepo.QueryExecutor, logger *applogger.Logger) *MultiAssetScanner {
	return &MultiAssetScanner{exec: exec, logger: logger}
}

// ScanSymbols scans specific symbols on one timeframe. Short names from
// MajorSymbols are expanded; anything else passes through verbatim. A nil
// columns slice selects the default field set for the timeframe.
func (s *MultiAssetScanner) ScanSymbols(ctx context.Context, symbols []string, timeframe string, columns []string) (*models.Snapshot, error) {
	tf := drepo.NormalizeTimeframe(timeframe)

	full := make([]string, len(symbols))
	for i, sym := range symbols {
		if expanded, ok := MajorSymbols[sym]; ok {
			full[i] = expanded
			continue
		}
		full[i] = sym
	}

	if columns == nil {
		columns = defaultScanColumns(tf)
	}

	q := &models.Query{
		Market:  "global",
		Tickers: full,
		Columns: columns,
		Limit:   len(full),
	}

	s.logger.Info("scanning symbols",
		applogger.Int("symbols", len(full)),
		applogger.String("timeframe", string(tf)),
	)
	return s.exec.Execute(ctx, q)
}

// ScanForex scans forex pairs; nil selects the major pairs.
func (s *MultiAssetScanner) ScanForex(ctx context.Context, pairs []string, timeframe string) (*models.Snapshot, error) {
	if pairs == nil {
		pairs = []string{"EURUSD", "GBPUSD", "USDJPY", "GBPJPY", "AUDUSD", "USDCAD", "EURJPY", "AUDJPY"}
	}
	return s.ScanSymbols(ctx, pairs, timeframe, nil)
}

// ScanIndices scans market indices; nil selects the majors.
func (s *MultiAssetScanner) ScanIndices(ctx context.Context, indices []string, timeframe string) (*models.Snapshot, error) {
	if indices == nil {
		indices = []string{"SP500", "NASDAQ", "DOW", "YM30", "ES", "NQ"}
	}
	return s.ScanSymbols(ctx, indices, timeframe, nil)
}

// ScanCommodities scans metals and energy; nil selects the majors.
func (s *MultiAssetScanner) ScanCommodities(ctx context.Context, commodities []string, timeframe string) (*models.Snapshot, error) {
	if commodities == nil {
		commodities = []string{"GOLD", "GOLD_FUTURES", "SILVER", "SILVER_FUTURES", "OIL", "NATGAS"}
	}
	return s.ScanSymbols(ctx, commodities, timeframe, nil)
}

// ScanBonds scans US treasuries and the dollar index; nil selects the majors.
func (s *MultiAssetScanner) ScanBonds(ctx context.Context, bonds []string, timeframe string) (*models.Snapshot, error) {
	if bonds == nil {
		bonds = []string{"US02Y", "US05Y", "US10Y", "US30Y", "DX"}
	}
	return s.ScanSymbols(ctx, bonds, timeframe, nil)
}

// ScanMultiTimeframe scans the same symbols across several timeframes and
// returns a snapshot per timeframe. A failing timeframe fails the whole scan.
func (s *MultiAssetScanner) ScanMultiTimeframe(ctx context.Context, symbols []string, timeframes []string) (map[string]*models.Snapshot, error) {
	if timeframes == nil {
		timeframes = []string{"5min", "15min", "1hr", "4hr", "daily", "weekly", "monthly"}
	}
	results := make(map[string]*models.Snapshot, len(timeframes))
	for _, tf := range timeframes {
		snap, err := s.ScanSymbols(ctx, symbols, tf, nil)
		if err != nil {
			return nil, err
		}
		results[tf] = snap
	}
	return results, nil
}

// ScanAllMarkets scans forex, commodities, indices and bonds on one timeframe.
// Markets fail independently; a failed market is reported as a batch error.
func (s *MultiAssetScanner) ScanAllMarkets(ctx context.Context, timeframe string) map[string]models.BatchResult {
	scans := []struct {
		name string
		fn   func(context.Context, []string, string) (*models.Snapshot, error)
	}{
		{"forex", s.ScanForex},
		{"commodities", s.ScanCommodities},
		{"indices", s.ScanIndices},
		{"bonds", s.ScanBonds},
	}

	results := make(map[string]models.BatchResult, len(scans))
	for _, scan := range scans {
		snap, err := scan.fn(ctx, nil, timeframe)
		if err != nil {
			s.logger.Warn("market scan failed",
				applogger.String("market", scan.name),
				applogger.Error(err),
			)
			results[scan.name] = models.BatchResult{Err: err}
			continue
		}
		results[scan.name] = models.BatchResult{Snapshot: snap}
	}
	return results
}

func defaultScanColumns(tf drepo.Timeframe) []string {
	fields := []string{
		"close", "open", "high", "low", "volume", "change",
		"RSI", "MACD.macd", "MACD.signal",
		"EMA5", "EMA20", "EMA50", "EMA200",
	}
	columns := []string{"name", "description"}
	for _, f := range fields {
		columns = append(columns, tf.Suffix(f))
	}
	return columns
}
