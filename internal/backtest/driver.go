package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"candlebot/internal/execution"
	"candlebot/internal/market"
	"candlebot/internal/strategy"
)

var (
	// ErrInvalidExecutor 表示回测挂载了非模拟执行客户端。
	ErrInvalidExecutor = errors.New("backtest: strategy is not attached to a simulated execution client")
	// ErrInsufficientHistory 表示序列跨度短于策略声明的分析窗口。
	ErrInsufficientHistory = errors.New("backtest: series shorter than required analysis window")
)

// Result 汇总回测结果。
type Result struct {
	Rows        []Row
	Metrics     Metrics
	StartValue  float64
	FinalValue  float64
	StartCandle market.Candle
}

// Driver 按时间顺序回放历史序列：每根K线先更新撮合参照并对账，
// 再触发策略决策，最后落一行绩效。分析窗口是以当前K线结束的
// 尾随切片，结构上保证不包含未来数据。
type Driver struct {
	strat  strategy.Strategy
	logger *zap.Logger
}

// NewDriver 创建回测驱动。
func NewDriver(strat strategy.Strategy, logger *zap.Logger) (*Driver, error) {
	if strat == nil {
		return nil, errors.New("backtest: strategy 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{strat: strat, logger: logger}, nil
}

// Run 执行完整回测。失败时账本保持不变量一致，调用方可安全恢复。
func (d *Driver) Run(ctx context.Context, series market.Series) (Result, error) {
	simClient, ok := d.strat.Client().(*execution.Simulated)
	if !ok {
		return Result{}, ErrInvalidExecutor
	}

	if len(series) == 0 {
		return Result{}, fmt.Errorf("%w: 序列为空", ErrInsufficientHistory)
	}
	if err := series.Validate(); err != nil {
		return Result{}, err
	}

	warmup := time.Duration(d.strat.WarmupMinutes()) * time.Minute
	if series.SpanMinutes() < float64(d.strat.WarmupMinutes()) {
		return Result{}, fmt.Errorf("%w: 跨度 %.0f 分钟, 需要 %d 分钟",
			ErrInsufficientHistory, series.SpanMinutes(), d.strat.WarmupMinutes())
	}

	startTime := series[0].Time.Add(warmup)
	simulation := make(market.Series, 0, len(series))
	for _, candle := range series {
		if !candle.Time.Before(startTime) {
			simulation = append(simulation, candle)
		}
	}
	if len(simulation) == 0 {
		return Result{}, fmt.Errorf("%w: 预热后无可回放K线", ErrInsufficientHistory)
	}

	state := d.strat.State()
	startCandle := simulation[0]
	startValue := state.TotalValueInQuote(startCandle.Open)

	d.logger.Info("回测开始",
		zap.String("base", state.Base),
		zap.Time("start", startCandle.Time),
		zap.Time("end", simulation[len(simulation)-1].Time),
		zap.Int("candles", len(simulation)),
		zap.Float64("start_value_in_quote", startValue),
	)

	rows := make([]Row, 0, len(simulation))
	for _, candle := range simulation {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		// 窗口右沿是当前K线时间，杜绝前视
		window := series.Window(candle.Time.Add(-warmup), candle.Time)

		simClient.SetCurrentCandle(candle)
		if err := strategy.Run(ctx, d.strat, window); err != nil {
			return Result{}, fmt.Errorf("backtest: 策略步骤失败于 %s: %w", candle.Time.Format(time.RFC3339), err)
		}

		rows = append(rows, Snapshot(candle, startCandle, state, startValue))
	}

	stepMinutes := 60.0
	if len(simulation) > 1 {
		stepMinutes = simulation[1].Time.Sub(simulation[0].Time).Minutes()
	}

	result := Result{
		Rows:        rows,
		Metrics:     calculateMetrics(rows, stepMinutes),
		StartValue:  startValue,
		FinalValue:  state.TotalValueInQuote(simulation[len(simulation)-1].Open),
		StartCandle: startCandle,
	}

	d.logger.Info("回测完成",
		zap.Int("rows", len(result.Rows)),
		zap.Float64("total_return", result.Metrics.TotalReturn),
		zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
		zap.Int("transactions", state.NumberOfTransactions),
	)

	return result, nil
}
