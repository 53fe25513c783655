package features

import (
	"errors"
	"math"
	"testing"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
)

func priceSnapshot(prices ...float64) *models.Snapshot {
	rows := make([][]any, len(prices))
	for i, p := range prices {
		rows[i] = []any{p}
	}
	return &models.Snapshot{Columns: []string{"close"}, Rows: rows}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestReturns(t *testing.T) {
	snap := priceSnapshot(100, 110, 121)
	out, err := Returns("close", []int{1})(snap)
	if err != nil {
		t.Fatalf("returns: %v", err)
	}
	vals := out.Floats("close_return_1")
	if !math.IsNaN(vals[0]) {
		t.Fatalf("first return = %v, want NaN", vals[0])
	}
	if !almostEqual(vals[1], 10) || !almostEqual(vals[2], 10) {
		t.Fatalf("returns = %v, want [NaN 10 10]", vals)
	}
}

func TestLogReturns(t *testing.T) {
	snap := priceSnapshot(100, 110)
	out, err := LogReturns("close", []int{1})(snap)
	if err != nil {
		t.Fatalf("log returns: %v", err)
	}
	vals := out.Floats("close_log_return_1")
	want := math.Log(1.1) * 100
	if !almostEqual(vals[1], want) {
		t.Fatalf("log return = %v, want %v", vals[1], want)
	}
}

func TestMomentum(t *testing.T) {
	snap := priceSnapshot(100, 110, 120)
	out, err := Momentum("close", []int{2})(snap)
	if err != nil {
		t.Fatalf("momentum: %v", err)
	}
	ma := out.Floats("close_ma_2")
	if !math.IsNaN(ma[0]) || !almostEqual(ma[1], 105) || !almostEqual(ma[2], 115) {
		t.Fatalf("ma = %v, want [NaN 105 115]", ma)
	}
	mom := out.Floats("close_momentum_2")
	if !almostEqual(mom[1], (110.0/105-1)*100) {
		t.Fatalf("momentum = %v", mom)
	}
}

func TestVolumeFeatures(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"volume"},
		Rows:    [][]any{{100.0}, {200.0}, {600.0}},
	}
	out, err := VolumeFeatures("volume", []int{2})(snap)
	if err != nil {
		t.Fatalf("volume: %v", err)
	}
	avg := out.Floats("volume_avg_2")
	if !almostEqual(avg[1], 150) || !almostEqual(avg[2], 400) {
		t.Fatalf("avg = %v, want [NaN 150 400]", avg)
	}
	rel := out.Floats("volume_relative_2")
	if !almostEqual(rel[2], 1.5) {
		t.Fatalf("relative = %v, want 1.5 at [2]", rel)
	}
}

func TestVolatilityConstantGrowth(t *testing.T) {
	// Constant growth has zero return variance.
	snap := priceSnapshot(100, 110, 121, 133.1)
	out, err := Volatility("close", []int{2})(snap)
	if err != nil {
		t.Fatalf("volatility: %v", err)
	}
	vals := out.Floats("close_volatility_2")
	if !almostEqual(vals[3], 0) {
		t.Fatalf("volatility = %v, want 0 at [3]", vals)
	}
}

func TestTechnicalFlags(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"RSI", "MACD.macd", "MACD.signal"},
		Rows: [][]any{
			{80.0, 1.0, 0.5},
			{50.0, -1.0, 0.5},
			{20.0, 2.0, 2.0},
		},
	}
	out, err := TechnicalFlags("close", "volume")(snap)
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	overbought := out.Floats("rsi_overbought")
	oversold := out.Floats("rsi_oversold")
	bullish := out.Floats("macd_bullish")
	if overbought[0] != 1 || overbought[1] != 0 || overbought[2] != 0 {
		t.Fatalf("overbought = %v", overbought)
	}
	if oversold[0] != 0 || oversold[2] != 1 {
		t.Fatalf("oversold = %v", oversold)
	}
	if bullish[0] != 1 || bullish[1] != 0 || bullish[2] != 0 {
		t.Fatalf("bullish = %v", bullish)
	}
}

func TestNormalizeStandard(t *testing.T) {
	snap := priceSnapshot(1, 2, 3)
	out, err := Normalize([]string{"close"}, NormStandard)(snap)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	vals := out.Floats("close_norm")
	if !almostEqual(vals[0], -1) || !almostEqual(vals[1], 0) || !almostEqual(vals[2], 1) {
		t.Fatalf("norm = %v, want [-1 0 1]", vals)
	}
}

func TestNormalizeMinMax(t *testing.T) {
	snap := priceSnapshot(10, 20, 30)
	out, err := Normalize([]string{"close"}, NormMinMax)(snap)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	vals := out.Floats("close_norm")
	if !almostEqual(vals[0], 0) || !almostEqual(vals[1], 0.5) || !almostEqual(vals[2], 1) {
		t.Fatalf("norm = %v, want [0 0.5 1]", vals)
	}
}

func TestNormalizeSkipsZeroSpread(t *testing.T) {
	snap := priceSnapshot(5, 5, 5)
	out, err := Normalize([]string{"close"}, NormStandard)(snap)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.HasColumn("close_norm") {
		t.Fatal("constant column must not be normalized")
	}
}

func TestNormalizeExcludesProtectedColumns(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"close", "target"},
		Rows:    [][]any{{1.0, 0.0}, {2.0, 1.0}, {3.0, 0.0}},
	}
	out, err := Normalize(nil, NormStandard)(snap)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !out.HasColumn("close_norm") {
		t.Fatal("close should be normalized")
	}
	if out.HasColumn("target_norm") {
		t.Fatal("target must never be normalized")
	}
}

func TestNormalizeUnknownMethod(t *testing.T) {
	if _, err := Normalize([]string{"close"}, "wat")(priceSnapshot(1, 2)); err == nil {
		t.Fatal("expected error")
	}
}

func TestLagged(t *testing.T) {
	snap := priceSnapshot(1, 2, 3)
	out, err := Lagged([]string{"close"}, []int{1})(snap)
	if err != nil {
		t.Fatalf("lagged: %v", err)
	}
	vals := out.Floats("close_lag_1")
	if !math.IsNaN(vals[0]) || !almostEqual(vals[1], 1) || !almostEqual(vals[2], 2) {
		t.Fatalf("lag = %v, want [NaN 1 2]", vals)
	}
}

func TestFillMissingShortRows(t *testing.T) {
	// A row narrower than the header is treated as missing trailing cells,
	// never indexed past its end.
	snap := &models.Snapshot{
		Columns: []string{"ticker", "close", "volume"},
		Rows: [][]any{
			{"A", 1.0, 10.0},
			{"B", 2.0},
			{"C", 3.0, 30.0},
		},
	}
	out, err := FillMissing(FillForward, 0)(snap)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if len(out.Rows[1]) != 3 {
		t.Fatalf("row width = %d, want 3", len(out.Rows[1]))
	}
	vols := out.Floats("volume")
	if !almostEqual(vols[1], 10) {
		t.Fatalf("volume = %v, want short row filled from previous", vols)
	}
}

func TestFillMissingDropShortRows(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"ticker", "close", "volume"},
		Rows: [][]any{
			{"A", 1.0, 10.0},
			{"B", 2.0},
		},
	}
	out, err := FillMissing(FillDrop, 0.9)(snap)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if out.NumRows() != 1 {
		t.Fatalf("rows = %d, want the short row dropped", out.NumRows())
	}
}

func TestFillMissingForward(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"close"},
		Rows:    [][]any{{1.0}, {nil}, {3.0}, {nil}},
	}
	out, err := FillMissing(FillForward, 0)(snap)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	vals := out.Floats("close")
	want := []float64{1, 1, 3, 3}
	for i, w := range want {
		if !almostEqual(vals[i], w) {
			t.Fatalf("ffill = %v, want %v", vals, want)
		}
	}
}

func TestFillMissingBack(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"close"},
		Rows:    [][]any{{nil}, {2.0}, {nil}, {4.0}},
	}
	out, err := FillMissing(FillBack, 0)(snap)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	vals := out.Floats("close")
	want := []float64{2, 2, 4, 4}
	for i, w := range want {
		if !almostEqual(vals[i], w) {
			t.Fatalf("bfill = %v, want %v", vals, want)
		}
	}
}

func TestFillMissingMean(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"close"},
		Rows:    [][]any{{1.0}, {nil}, {3.0}},
	}
	out, err := FillMissing(FillMean, 0)(snap)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if vals := out.Floats("close"); !almostEqual(vals[1], 2) {
		t.Fatalf("mean fill = %v, want 2 at [1]", vals)
	}
}

func TestFillMissingZero(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"close"},
		Rows:    [][]any{{nil}, {2.0}},
	}
	out, err := FillMissing(FillZero, 0)(snap)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if vals := out.Floats("close"); !almostEqual(vals[0], 0) {
		t.Fatalf("zero fill = %v", vals)
	}
}

func TestFillMissingDrop(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"close", "sparse"},
		Rows: [][]any{
			{1.0, nil},
			{nil, nil},
			{3.0, 9.0},
		},
	}
	out, err := FillMissing(FillDrop, 0.5)(snap)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	// "sparse" is 2/3 missing and gets dropped, then the row with the
	// remaining gap goes too.
	if out.HasColumn("sparse") {
		t.Fatal("sparse column should be dropped")
	}
	if out.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", out.NumRows())
	}
}

func TestRemoveOutliersZScore(t *testing.T) {
	snap := priceSnapshot(1, 2, 3, 4, 5, 6, 7, 8, 9, 100)
	out, err := RemoveOutliers([]string{"close"}, OutlierZScore, 2)(snap)
	if err != nil {
		t.Fatalf("outliers: %v", err)
	}
	if out.NumRows() != 9 {
		t.Fatalf("rows = %d, want 9", out.NumRows())
	}
	for _, v := range out.Floats("close") {
		if v > 9 {
			t.Fatalf("outlier survived: %v", v)
		}
	}
}

func TestRemoveOutliersDropsMissing(t *testing.T) {
	snap := &models.Snapshot{
		Columns: []string{"close"},
		Rows:    [][]any{{1.0}, {nil}, {2.0}, {3.0}},
	}
	out, err := RemoveOutliers([]string{"close"}, OutlierIQR, 1.5)(snap)
	if err != nil {
		t.Fatalf("outliers: %v", err)
	}
	if out.NumRows() != 3 {
		t.Fatalf("rows = %d, want 3", out.NumRows())
	}
}

func TestTargetVariableDirection(t *testing.T) {
	snap := priceSnapshot(100, 110, 100)
	out, err := TargetVariable("close", TargetDirection, 1, 0)(snap)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	vals := out.Floats("target")
	if vals[0] != 1 || vals[1] != 0 {
		t.Fatalf("target = %v, want [1 0 NaN]", vals)
	}
	if !math.IsNaN(vals[2]) {
		t.Fatalf("trailing target = %v, want NaN", vals[2])
	}
}

func TestTargetVariableReturn(t *testing.T) {
	snap := priceSnapshot(100, 110)
	out, err := TargetVariable("close", TargetReturn, 1, 0)(snap)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	if vals := out.Floats("target"); !almostEqual(vals[0], 10) {
		t.Fatalf("target = %v, want 10 at [0]", vals)
	}
}

func TestTargetVariableClass(t *testing.T) {
	snap := priceSnapshot(100, 110, 107, 106)
	out, err := TargetVariable("close", TargetClass, 1, 0)(snap)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	vals := out.Floats("target")
	// +10% up, -2.7% down, -0.9% neutral.
	if vals[0] != 2 || vals[1] != 0 || vals[2] != 1 {
		t.Fatalf("target = %v, want [2 0 1 NaN]", vals)
	}
}

func TestChainOrderAndAbort(t *testing.T) {
	var order []string
	step := func(name string, fail bool) models.Transform {
		return func(s *models.Snapshot) (*models.Snapshot, error) {
			order = append(order, name)
			if fail {
				return nil, errors.New(name + " failed")
			}
			return s, nil
		}
	}
	_, err := Chain(step("a", false), step("b", true), step("c", false))(priceSnapshot(1))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("order = %v, want [a b]", order)
	}
}

func TestPreprocessPipeline(t *testing.T) {
	rows := make([][]any, 60)
	price := 100.0
	for i := range rows {
		price *= 1 + 0.01*float64(i%5-2)
		rows[i] = []any{price, 1000.0 + float64(i*10)}
	}
	snap := &models.Snapshot{Columns: []string{"close", "volume"}, Rows: rows}

	out, err := Preprocess(DefaultPreprocessOptions())(snap)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if !out.HasColumn("target") {
		t.Fatal("target column missing")
	}
	if !out.HasColumn("close_return_1") {
		t.Fatal("return features missing")
	}
	if out.NumRows() == 0 {
		t.Fatal("pipeline dropped every row")
	}
}
