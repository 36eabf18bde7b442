package exchange

import (
	"testing"
	"time"

	"candlebot/internal/market"
)

func TestTimeframeMinutes(t *testing.T) {
	cases := map[string]int{
		"1m": 1, "5m": 5, "15m": 15, "1h": 60, "4h": 240, "1d": 1440,
	}
	for timeframe, want := range cases {
		got, err := timeframeMinutes(timeframe)
		if err != nil {
			t.Errorf("timeframeMinutes(%q) returned error: %v", timeframe, err)
		}
		if got != want {
			t.Errorf("timeframeMinutes(%q) = %d, want %d", timeframe, got, want)
		}
	}

	if _, err := timeframeMinutes("3w"); err == nil {
		t.Error("expected error for unsupported timeframe")
	}
}

func TestDedupe_DropsOverlappingCandles(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := market.Series{
		{Time: ts, Close: 1},
		{Time: ts.Add(time.Hour), Close: 2},
		{Time: ts, Close: 1},
		{Time: ts.Add(2 * time.Hour), Close: 3},
	}

	out := dedupe(series)
	if len(out) != 3 {
		t.Fatalf("expected 3 unique candles, got %d", len(out))
	}
	seen := make(map[int64]bool)
	for _, candle := range out {
		key := candle.Time.UnixMilli()
		if seen[key] {
			t.Fatalf("duplicate timestamp survived dedupe: %s", candle.Time)
		}
		seen[key] = true
	}
}

func TestNewOHLCVPipeline_Validation(t *testing.T) {
	if _, err := NewOHLCVPipeline(nil, "1h", 60, nil); err == nil {
		t.Error("expected error for nil client")
	}
	if _, err := NewOHLCVPipeline(&Client{}, "3w", 60, nil); err == nil {
		t.Error("expected error for unsupported timeframe")
	}
	if _, err := NewOHLCVPipeline(&Client{}, "1h", 0, nil); err == nil {
		t.Error("expected error for non-positive window")
	}
}
