package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"candlebot/internal/execution"
	"candlebot/internal/ledger"
	"candlebot/internal/market"
	"candlebot/internal/strategy"
)

func TestDriverRun_RejectsNonSimulatedClient(t *testing.T) {
	probe := &probeStrategy{Core: strategy.NewCore(&stubClient{state: ledger.New("BTC", 0, 1000)}), warmupMinutes: 60}

	driver, err := NewDriver(probe, nil)
	if err != nil {
		t.Fatalf("NewDriver returned error: %v", err)
	}

	_, err = driver.Run(context.Background(), makeSeries(10))
	if !errors.Is(err, ErrInvalidExecutor) {
		t.Fatalf("expected ErrInvalidExecutor, got %v", err)
	}
}

func TestDriverRun_RejectsShortSeries(t *testing.T) {
	driver, probe := makeDriver(t, 60*24)

	_, err := driver.Run(context.Background(), makeSeries(5))
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}

	_, err = driver.Run(context.Background(), market.Series{})
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory for empty series, got %v", err)
	}

	if probe.steps != 0 {
		t.Errorf("strategy must not run on rejected input")
	}
}

func TestDriverRun_SkipsWarmupAndRecordsRows(t *testing.T) {
	driver, probe := makeDriver(t, 120)
	series := makeSeries(10)

	result, err := driver.Run(context.Background(), series)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// 预热 120 分钟, 首两根被跳过
	if len(result.Rows) != 8 {
		t.Fatalf("expected 8 rows, got %d", len(result.Rows))
	}
	if probe.steps != 8 {
		t.Errorf("expected 8 strategy steps, got %d", probe.steps)
	}
	if !result.StartCandle.Time.Equal(series[2].Time) {
		t.Errorf("expected simulation to start at third candle, got %s", result.StartCandle.Time)
	}
	if result.StartValue != 1000 {
		t.Errorf("expected start value 1000, got %f", result.StartValue)
	}
	for i, row := range result.Rows {
		if !row.Time.Equal(series[i+2].Time) {
			t.Errorf("row %d time mismatch: got %s want %s", i, row.Time, series[i+2].Time)
		}
	}
}

func TestDriverRun_WindowNeverContainsFuture(t *testing.T) {
	driver, probe := makeDriver(t, 120)
	series := makeSeries(10)

	if _, err := driver.Run(context.Background(), series); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(probe.windows) != 8 {
		t.Fatalf("expected 8 captured windows, got %d", len(probe.windows))
	}
	for i, window := range probe.windows {
		if len(window) == 0 {
			t.Fatalf("window %d is empty", i)
		}
		current := series[i+2].Time
		for _, candle := range window {
			if candle.Time.After(current) {
				t.Fatalf("window %d leaks future candle %s past %s", i, candle.Time, current)
			}
		}
		if !window[len(window)-1].Time.Equal(current) {
			t.Errorf("window %d right edge must be the current candle", i)
		}
	}
}

func TestDriverRun_PropagatesStrategyFailure(t *testing.T) {
	driver, probe := makeDriver(t, 120)
	probe.failAfter = 3

	_, err := driver.Run(context.Background(), makeSeries(10))
	if err == nil || !errors.Is(err, errProbeFailure) {
		t.Fatalf("expected wrapped probe failure, got %v", err)
	}
	if probe.steps != 3 {
		t.Errorf("expected run to stop at failing step, got %d steps", probe.steps)
	}
}

var errProbeFailure = errors.New("probe failure")

// probeStrategy 记录驱动传入的分析窗口, 供断言使用。
type probeStrategy struct {
	strategy.Core

	warmupMinutes int
	windows       []market.Series
	steps         int
	failAfter     int
}

func (p *probeStrategy) Name() string { return "probe" }

func (p *probeStrategy) WarmupMinutes() int { return p.warmupMinutes }

func (p *probeStrategy) Params() map[string]float64 { return nil }

func (p *probeStrategy) Execute(ctx context.Context, window market.Series) error {
	p.steps++
	p.windows = append(p.windows, window)
	if p.failAfter > 0 && p.steps >= p.failAfter {
		return errProbeFailure
	}
	return nil
}

func makeDriver(t *testing.T, warmupMinutes int) (*Driver, *probeStrategy) {
	t.Helper()

	state := ledger.New("BTC", 0, 1000)
	exec := execution.NewSimulated(state, 0.0015, 0.0025, nil)
	probe := &probeStrategy{Core: strategy.NewCore(exec), warmupMinutes: warmupMinutes}

	driver, err := NewDriver(probe, nil)
	if err != nil {
		t.Fatalf("NewDriver returned error: %v", err)
	}
	return driver, probe
}

func makeSeries(n int) market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(market.Series, 0, n)
	for i := 0; i < n; i++ {
		series = append(series, market.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   20000,
			High:   20500,
			Low:    19500,
			Close:  20200,
			Volume: 10,
		})
	}
	return series
}

// stubClient 实现执行接口但不是模拟撮合引擎。
type stubClient struct {
	state *ledger.Ledger
}

func (c *stubClient) PlaceLimitBuyOrder(base string, limitPrice, amountInQuote float64) (*ledger.Order, error) {
	return nil, nil
}

func (c *stubClient) PlaceLimitSellOrder(base string, limitPrice, amountInBase float64) (*ledger.Order, error) {
	return nil, nil
}

func (c *stubClient) PlaceMarketBuyOrder(base string, amountInQuote float64) (*ledger.Order, error) {
	return nil, nil
}

func (c *stubClient) PlaceMarketSellOrder(base string, amountInBase float64) (*ledger.Order, error) {
	return nil, nil
}

func (c *stubClient) CancelOrder(order *ledger.Order) error { return nil }

func (c *stubClient) GetOrderInfo(order *ledger.Order) (*ledger.Order, error) { return nil, nil }

func (c *stubClient) SetCurrentCandle(candle market.Candle) {}

func (c *stubClient) UpdateState() error { return nil }

func (c *stubClient) State() *ledger.Ledger { return c.state }
