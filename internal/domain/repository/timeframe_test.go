package repository

import "testing"

func TestNormalizeTimeframe(t *testing.T) {
	cases := []struct {
		in   string
		want Timeframe
	}{
		{"5min", TF5m},
		{"5m", TF5m},
		{"15min", TF15m},
		{"1hr", TF1h},
		{"1h", TF1h},
		{"60", TF1h},
		{"4hr", TF4h},
		{"daily", TFDaily},
		{"DAILY", TFDaily},
		{"1D", TFDaily},
		{"weekly", TFWeekly},
		{"monthly", TFMonthly},
		{"", TFDaily},
		{"made-up", TFDaily},
	}
	for _, tc := range cases {
		if got := NormalizeTimeframe(tc.in); got != tc.want {
			t.Errorf("NormalizeTimeframe(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTimeframeSuffix(t *testing.T) {
	if got := TF1h.Suffix("close"); got != "close|60" {
		t.Fatalf("suffix = %q, want close|60", got)
	}
	if got := TFDaily.Suffix("RSI"); got != "RSI|1D" {
		t.Fatalf("suffix = %q, want RSI|1D", got)
	}
}
