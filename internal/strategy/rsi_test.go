package strategy

import (
	"context"
	"testing"
	"time"

	"candlebot/internal/execution"
	"candlebot/internal/ledger"
	"candlebot/internal/market"
)

func TestNewRSI_ValidatesThresholds(t *testing.T) {
	if _, err := NewRSI(nil, 65, 35, 60, nil); err == nil {
		t.Error("expected error when lower >= higher")
	}
	if _, err := NewRSI(nil, 35, 65, 0, nil); err == nil {
		t.Error("expected error for non-positive warmup")
	}
	if _, err := NewRSI(nil, 35, 65, 60, nil); err != nil {
		t.Errorf("valid arguments rejected: %v", err)
	}
}

func TestRSIExecute_SkipsShortWindow(t *testing.T) {
	strat, state := makeRSIStrategy(t, 0, 1000)

	window := makeWindow(t, constantSeries(rsiPeriod+1, 100))
	if err := strat.Execute(context.Background(), window); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if state.NumberOfTransactions != 0 {
		t.Errorf("short window must not trade, got %d transactions", state.NumberOfTransactions)
	}
}

func TestRSIExecute_BuysOnDownwardCross(t *testing.T) {
	strat, state := makeRSIStrategy(t, 0, 1000)

	// 14 根等幅上涨把 RSI 推到 100, 随后第 k 根等幅下跌时
	// RSI = 100*(13/14)^k: k=14 为 35.43, k=15 为 32.90,
	// 窗口最后两步恰好自上而下穿越下轨 35。
	closes := rampSeries(100, 10, 15)
	closes = append(closes, rampSeries(closes[len(closes)-1]-10, -10, 15)...)
	window := makeWindow(t, closes)
	strat.Client().SetCurrentCandle(window.Last())

	if err := strat.Execute(context.Background(), window); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if state.NumberOfTransactions != 1 {
		t.Fatalf("expected exactly one buy, got %d transactions", state.NumberOfTransactions)
	}
	if state.QuoteAvailable != 0 {
		t.Errorf("buy must spend all available quote, got %f", state.QuoteAvailable)
	}
	if state.BaseAvailable <= 0 {
		t.Errorf("expected acquired base, got %f", state.BaseAvailable)
	}
}

func TestRSIExecute_SellsOnUpwardCross(t *testing.T) {
	strat, state := makeRSIStrategy(t, 1, 0)

	// 对称构造: 14 根下跌后第 k 根上涨的 RSI = 100*(1-(13/14)^k),
	// k=14 为 64.57, k=15 为 67.10, 自下而上穿越上轨 65。
	closes := rampSeries(400, -10, 15)
	closes = append(closes, rampSeries(closes[len(closes)-1]+10, 10, 15)...)
	window := makeWindow(t, closes)
	strat.Client().SetCurrentCandle(window.Last())

	if err := strat.Execute(context.Background(), window); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if state.NumberOfTransactions != 1 {
		t.Fatalf("expected exactly one sell, got %d transactions", state.NumberOfTransactions)
	}
	if state.BaseAvailable != 0 {
		t.Errorf("sell must liquidate all available base, got %f", state.BaseAvailable)
	}
	if state.QuoteAvailable <= 0 {
		t.Errorf("expected quote proceeds, got %f", state.QuoteAvailable)
	}
}

func TestRSIExecute_NoBalanceNoOrder(t *testing.T) {
	// 买入信号但没有可用计价资产
	strat, state := makeRSIStrategy(t, 0, 0)

	closes := rampSeries(100, 10, 15)
	closes = append(closes, rampSeries(closes[len(closes)-1]-10, -10, 15)...)
	window := makeWindow(t, closes)

	if err := strat.Execute(context.Background(), window); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if state.NumberOfTransactions != 0 {
		t.Errorf("no balance must mean no order, got %d transactions", state.NumberOfTransactions)
	}
}

func makeRSIStrategy(t *testing.T, totalBase, totalQuote float64) (*RSI, *ledger.Ledger) {
	t.Helper()

	state := ledger.New("BTC", totalBase, totalQuote)
	exec := execution.NewSimulated(state, 0.0015, 0.0025, nil)
	strat, err := NewRSI(exec, 35, 65, 60, nil)
	if err != nil {
		t.Fatalf("NewRSI returned error: %v", err)
	}
	return strat, state
}

// makeWindow 把收盘价序列包装成K线窗口。
func makeWindow(t *testing.T, closes []float64) market.Series {
	t.Helper()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	window := make(market.Series, 0, len(closes))
	for i, close := range closes {
		window = append(window, market.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   close,
			High:   close,
			Low:    close,
			Close:  close,
			Volume: 10,
		})
	}
	return window
}

func constantSeries(n int, value float64) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = value
	}
	return series
}

func rampSeries(start, step float64, n int) []float64 {
	series := make([]float64, n)
	for i := range series {
		series[i] = start + float64(i)*step
	}
	return series
}
