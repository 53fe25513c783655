// Package features builds derived columns on top of collected snapshots:
// returns, momentum, volume ratios, volatility and binary technical flags,
// plus normalization and cleaning steps for downstream model training.
// Every builder returns a models.Transform so pipelines compose as hook
// chains on the collector.
package features

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
)

// Returns adds percentage returns of the price column over the given periods
// as "<col>_return_<p>". Nil periods selects 1, 5, 10 and 20.
func Returns(priceColumn string, periods []int) models.Transform {
	if periods == nil {
		periods = []int{1, 5, 10, 20}
	}
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		prices := snap.Floats(priceColumn)
		for _, p := range periods {
			shifted := shift(prices, p)
			out := make([]float64, len(prices))
			for i := range prices {
				out[i] = (prices[i]/shifted[i] - 1) * 100
			}
			name := fmt.Sprintf("%s_return_%d", priceColumn, p)
			if err := snap.AddFloatColumn(name, out); err != nil {
				return nil, err
			}
		}
		return snap, nil
	}
}

// LogReturns adds log returns over the given periods as
// "<col>_log_return_<p>". Log returns are additive across periods, which
// makes them the better input for model features.
func LogReturns(priceColumn string, periods []int) models.Transform {
	if periods == nil {
		periods = []int{1, 5, 10, 20}
	}
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		prices := snap.Floats(priceColumn)
		for _, p := range periods {
			shifted := shift(prices, p)
			out := make([]float64, len(prices))
			for i := range prices {
				out[i] = math.Log(prices[i]/shifted[i]) * 100
			}
			name := fmt.Sprintf("%s_log_return_%d", priceColumn, p)
			if err := snap.AddFloatColumn(name, out); err != nil {
				return nil, err
			}
		}
		return snap, nil
	}
}

// Momentum adds rolling means "<col>_ma_<w>" and the price deviation from
// them "<col>_momentum_<w>" in percent. Nil windows selects 5, 10, 20, 50.
func Momentum(priceColumn string, windows []int) models.Transform {
	if windows == nil {
		windows = []int{5, 10, 20, 50}
	}
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		prices := snap.Floats(priceColumn)
		for _, w := range windows {
			ma := rollingMean(prices, w)
			momentum := make([]float64, len(prices))
			for i := range prices {
				momentum[i] = (prices[i]/ma[i] - 1) * 100
			}
			if err := snap.AddFloatColumn(fmt.Sprintf("%s_ma_%d", priceColumn, w), ma); err != nil {
				return nil, err
			}
			if err := snap.AddFloatColumn(fmt.Sprintf("%s_momentum_%d", priceColumn, w), momentum); err != nil {
				return nil, err
			}
		}
		return snap, nil
	}
}

// VolumeFeatures adds rolling average volume "<col>_avg_<w>" and relative
// volume "<col>_relative_<w>". Nil windows selects 5, 10, 20.
func VolumeFeatures(volumeColumn string, windows []int) models.Transform {
	if windows == nil {
		windows = []int{5, 10, 20}
	}
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		volumes := snap.Floats(volumeColumn)
		for _, w := range windows {
			avg := rollingMean(volumes, w)
			rel := make([]float64, len(volumes))
			for i := range volumes {
				rel[i] = volumes[i] / avg[i]
			}
			if err := snap.AddFloatColumn(fmt.Sprintf("%s_avg_%d", volumeColumn, w), avg); err != nil {
				return nil, err
			}
			if err := snap.AddFloatColumn(fmt.Sprintf("%s_relative_%d", volumeColumn, w), rel); err != nil {
				return nil, err
			}
		}
		return snap, nil
	}
}

// Volatility adds the rolling standard deviation of one-period log returns
// as "<col>_volatility_<w>" in percent. Nil windows selects 5, 10, 20.
func Volatility(priceColumn string, windows []int) models.Transform {
	if windows == nil {
		windows = []int{5, 10, 20}
	}
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		prices := snap.Floats(priceColumn)
		shifted := shift(prices, 1)
		returns := make([]float64, len(prices))
		for i := range prices {
			returns[i] = math.Log(prices[i] / shifted[i])
		}
		for _, w := range windows {
			std := rollingStd(returns, w)
			for i := range std {
				std[i] *= 100
			}
			name := fmt.Sprintf("%s_volatility_%d", priceColumn, w)
			if err := snap.AddFloatColumn(name, std); err != nil {
				return nil, err
			}
		}
		return snap, nil
	}
}

// TechnicalFlags adds binary indicator columns: price above the 20-bar mean,
// volume above its 20-bar mean, RSI overbought/oversold and MACD crossover.
// RSI and MACD flags are only added when those columns are present.
func TechnicalFlags(priceColumn, volumeColumn string) models.Transform {
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		if snap.HasColumn(priceColumn) {
			prices := snap.Floats(priceColumn)
			ma20 := rollingMean(prices, 20)
			if err := snap.AddFloatColumn("price_above_ma20", flagGreater(prices, ma20)); err != nil {
				return nil, err
			}
		}
		if snap.HasColumn(volumeColumn) {
			volumes := snap.Floats(volumeColumn)
			avg20 := rollingMean(volumes, 20)
			if err := snap.AddFloatColumn("volume_above_avg", flagGreater(volumes, avg20)); err != nil {
				return nil, err
			}
		}
		if snap.HasColumn("RSI") {
			rsi := snap.Floats("RSI")
			overbought := make([]float64, len(rsi))
			oversold := make([]float64, len(rsi))
			for i, v := range rsi {
				overbought[i] = boolFlag(v > 70)
				oversold[i] = boolFlag(v < 30)
			}
			if err := snap.AddFloatColumn("rsi_overbought", overbought); err != nil {
				return nil, err
			}
			if err := snap.AddFloatColumn("rsi_oversold", oversold); err != nil {
				return nil, err
			}
		}
		if snap.HasColumn("MACD.macd") && snap.HasColumn("MACD.signal") {
			macd := snap.Floats("MACD.macd")
			signal := snap.Floats("MACD.signal")
			if err := snap.AddFloatColumn("macd_bullish", flagGreater(macd, signal)); err != nil {
				return nil, err
			}
		}
		return snap, nil
	}
}

// NormMethod selects the scaling applied by Normalize.
type NormMethod string

const (
	NormStandard NormMethod = "standard" // z-score
	NormMinMax   NormMethod = "minmax"   // scale to [0, 1]
	NormRobust   NormMethod = "robust"   // median and IQR
)

// defaultNormExclude lists substrings of column names that never get scaled.
var defaultNormExclude = []string{"ticker", "name", "timestamp", "target"}

// Normalize adds a "<col>_norm" column per selected column. Nil columns
// selects every numeric column except those matching defaultNormExclude.
// Columns with zero spread are skipped rather than divided by zero.
func Normalize(columns []string, method NormMethod) models.Transform {
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		cols := columns
		if cols == nil {
			for _, c := range numericColumns(snap) {
				if matchesAny(c, defaultNormExclude) {
					continue
				}
				cols = append(cols, c)
			}
		}
		for _, c := range cols {
			vals := snap.Floats(c)
			finite := filterFinite(vals)
			if len(finite) == 0 {
				continue
			}
			var center, spread float64
			switch method {
			case NormStandard:
				center = stat.Mean(finite, nil)
				spread = stat.StdDev(finite, nil)
			case NormMinMax:
				lo, hi := minMax(finite)
				center, spread = lo, hi-lo
			case NormRobust:
				sort.Float64s(finite)
				center = stat.Quantile(0.5, stat.Empirical, finite, nil)
				q25 := stat.Quantile(0.25, stat.Empirical, finite, nil)
				q75 := stat.Quantile(0.75, stat.Empirical, finite, nil)
				spread = q75 - q25
			default:
				return nil, fmt.Errorf("unknown normalization method %q", method)
			}
			if !(spread > 0) {
				continue
			}
			out := make([]float64, len(vals))
			for i, v := range vals {
				out[i] = (v - center) / spread
			}
			if err := snap.AddFloatColumn(c+"_norm", out); err != nil {
				return nil, err
			}
		}
		return snap, nil
	}
}

// Lagged adds "<col>_lag_<n>" columns for time-series models. Nil lags
// selects 1, 2, 3 and 5.
func Lagged(columns []string, lags []int) models.Transform {
	if lags == nil {
		lags = []int{1, 2, 3, 5}
	}
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		for _, c := range columns {
			vals := snap.Floats(c)
			for _, lag := range lags {
				name := fmt.Sprintf("%s_lag_%d", c, lag)
				if err := snap.AddFloatColumn(name, shift(vals, lag)); err != nil {
					return nil, err
				}
			}
		}
		return snap, nil
	}
}

// FillStrategy selects how FillMissing treats empty cells.
type FillStrategy string

const (
	FillDrop    FillStrategy = "drop"
	FillForward FillStrategy = "ffill"
	FillBack    FillStrategy = "bfill"
	FillMean    FillStrategy = "mean"
	FillMedian  FillStrategy = "median"
	FillZero    FillStrategy = "zero"
)

// FillMissing resolves nil cells. FillDrop first removes columns whose
// missing ratio exceeds threshold, then drops rows that still have gaps.
// FillMean and FillMedian only touch numeric columns; the rest fill every
// nil cell.
func FillMissing(strategy FillStrategy, threshold float64) models.Transform {
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		padRows(snap)
		switch strategy {
		case FillDrop:
			dropSparseColumns(snap, threshold)
			kept := snap.Rows[:0]
			for _, row := range snap.Rows {
				complete := true
				for _, cell := range row {
					if cell == nil {
						complete = false
						break
					}
				}
				if complete {
					kept = append(kept, row)
				}
			}
			snap.Rows = kept
		case FillForward:
			for col := range snap.Columns {
				var last any
				for _, row := range snap.Rows {
					if row[col] != nil {
						last = row[col]
						continue
					}
					row[col] = last
				}
			}
		case FillBack:
			for col := range snap.Columns {
				var next any
				for i := len(snap.Rows) - 1; i >= 0; i-- {
					if snap.Rows[i][col] != nil {
						next = snap.Rows[i][col]
						continue
					}
					snap.Rows[i][col] = next
				}
			}
		case FillMean, FillMedian:
			for _, name := range numericColumns(snap) {
				finite := filterFinite(snap.Floats(name))
				if len(finite) == 0 {
					continue
				}
				var fill float64
				if strategy == FillMean {
					fill = stat.Mean(finite, nil)
				} else {
					sort.Float64s(finite)
					fill = stat.Quantile(0.5, stat.Empirical, finite, nil)
				}
				col := snap.ColumnIndex(name)
				for _, row := range snap.Rows {
					if row[col] == nil {
						row[col] = fill
					}
				}
			}
		case FillZero:
			for _, row := range snap.Rows {
				for i, cell := range row {
					if cell == nil {
						row[i] = float64(0)
					}
				}
			}
		default:
			return nil, fmt.Errorf("unknown missing-value strategy %q", strategy)
		}
		return snap, nil
	}
}

// OutlierMethod selects the detection rule used by RemoveOutliers.
type OutlierMethod string

const (
	OutlierIQR    OutlierMethod = "iqr"
	OutlierZScore OutlierMethod = "zscore"
)

// RemoveOutliers drops rows whose value in any checked column falls outside
// the detection bounds. Nil columns selects every numeric column. The
// threshold is the IQR multiplier for OutlierIQR and the maximum absolute
// z-score for OutlierZScore. Rows with missing values in a checked column
// are dropped as well.
func RemoveOutliers(columns []string, method OutlierMethod, threshold float64) models.Transform {
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		cols := columns
		if cols == nil {
			cols = numericColumns(snap)
		}
		keep := make([]bool, len(snap.Rows))
		for i := range keep {
			keep[i] = true
		}
		for _, c := range cols {
			vals := snap.Floats(c)
			finite := filterFinite(vals)
			if len(finite) == 0 {
				continue
			}
			var lower, upper float64
			switch method {
			case OutlierIQR:
				sort.Float64s(finite)
				q25 := stat.Quantile(0.25, stat.Empirical, finite, nil)
				q75 := stat.Quantile(0.75, stat.Empirical, finite, nil)
				iqr := q75 - q25
				lower, upper = q25-threshold*iqr, q75+threshold*iqr
			case OutlierZScore:
				mean := stat.Mean(finite, nil)
				std := stat.StdDev(finite, nil)
				if !(std > 0) {
					continue
				}
				lower, upper = mean-threshold*std, mean+threshold*std
			default:
				return nil, fmt.Errorf("unknown outlier method %q", method)
			}
			for i, v := range vals {
				if math.IsNaN(v) || v < lower || v > upper {
					keep[i] = false
				}
			}
		}
		kept := snap.Rows[:0]
		for i, row := range snap.Rows {
			if keep[i] {
				kept = append(kept, row)
			}
		}
		snap.Rows = kept
		return snap, nil
	}
}

// TargetType selects what TargetVariable predicts.
type TargetType string

const (
	TargetReturn    TargetType = "return"    // forward percentage return
	TargetDirection TargetType = "direction" // 1 when the forward return beats the threshold
	TargetClass     TargetType = "class"     // 0 down, 1 neutral, 2 up at +/-2%
)

// TargetVariable adds a "target" column computed from the price periods
// rows ahead. Trailing rows without a forward price get nil targets.
func TargetVariable(priceColumn string, targetType TargetType, periods int, threshold float64) models.Transform {
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		prices := snap.Floats(priceColumn)
		future := shift(prices, -periods)
		out := make([]float64, len(prices))
		for i := range prices {
			ret := (future[i]/prices[i] - 1) * 100
			switch targetType {
			case TargetReturn:
				out[i] = ret
			case TargetDirection:
				if math.IsNaN(ret) {
					out[i] = math.NaN()
					continue
				}
				out[i] = boolFlag(ret > threshold)
			case TargetClass:
				switch {
				case math.IsNaN(ret):
					out[i] = math.NaN()
				case ret < -2:
					out[i] = 0
				case ret > 2:
					out[i] = 2
				default:
					out[i] = 1
				}
			default:
				return nil, fmt.Errorf("unknown target type %q", targetType)
			}
		}
		return snap, snap.AddFloatColumn("target", out)
	}
}

// Chain runs transforms left to right, stopping at the first failure.
func Chain(transforms ...models.Transform) models.Transform {
	return func(snap *models.Snapshot) (*models.Snapshot, error) {
		var err error
		for _, t := range transforms {
			if snap, err = t(snap); err != nil {
				return nil, err
			}
		}
		return snap, nil
	}
}

func shift(vals []float64, n int) []float64 {
	out := make([]float64, len(vals))
	for i := range out {
		j := i - n
		if j < 0 || j >= len(vals) {
			out[i] = math.NaN()
			continue
		}
		out[i] = vals[j]
	}
	return out
}

// rollingMean mirrors a rolling mean with min_periods equal to the window:
// positions before the window fills, or windows containing a gap, are NaN.
func rollingMean(vals []float64, window int) []float64 {
	return rolling(vals, window, func(w []float64) float64 { return stat.Mean(w, nil) })
}

func rollingStd(vals []float64, window int) []float64 {
	return rolling(vals, window, func(w []float64) float64 { return stat.StdDev(w, nil) })
}

func rolling(vals []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if window <= 1 || i < window-1 {
			out[i] = math.NaN()
			continue
		}
		w := vals[i-window+1 : i+1]
		clean := true
		for _, v := range w {
			if math.IsNaN(v) {
				clean = false
				break
			}
		}
		if !clean {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(w)
	}
	return out
}

func flagGreater(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = boolFlag(a[i] > b[i])
	}
	return out
}

func boolFlag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func filterFinite(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func minMax(vals []float64) (float64, float64) {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// numericColumns lists columns where at least one cell parses as a number.
func numericColumns(snap *models.Snapshot) []string {
	var out []string
	for _, c := range snap.Columns {
		for _, v := range snap.Floats(c) {
			if !math.IsNaN(v) {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func matchesAny(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// padRows widens short rows with nil cells so every row spans the header.
// Snapshots decoded from external payloads can arrive ragged.
func padRows(snap *models.Snapshot) {
	for i, row := range snap.Rows {
		for len(row) < len(snap.Columns) {
			row = append(row, nil)
		}
		snap.Rows[i] = row
	}
}

func dropSparseColumns(snap *models.Snapshot, threshold float64) {
	if len(snap.Rows) == 0 {
		return
	}
	var keep []int
	for col := range snap.Columns {
		missing := 0
		for _, row := range snap.Rows {
			if col >= len(row) || row[col] == nil {
				missing++
			}
		}
		if float64(missing)/float64(len(snap.Rows)) <= threshold {
			keep = append(keep, col)
		}
	}
	if len(keep) == len(snap.Columns) {
		return
	}
	cols := make([]string, len(keep))
	for i, c := range keep {
		cols[i] = snap.Columns[c]
	}
	for r, row := range snap.Rows {
		next := make([]any, len(keep))
		for i, c := range keep {
			if c < len(row) {
				next[i] = row[c]
			}
		}
		snap.Rows[r] = next
	}
	snap.Columns = cols
}
