package strategy

import (
	"context"
	"fmt"

	talib "github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"candlebot/internal/execution"
	"candlebot/internal/market"
)

const rsiPeriod = 14

// RSI 是基于相对强弱指标的反转策略：RSI 下穿下轨时全仓买入，
// 上穿上轨时全仓卖出，均为市价单。
type RSI struct {
	Core

	lowerThreshold  float64
	higherThreshold float64
	warmupMinutes   int
	logger          *zap.Logger
}

// NewRSI 创建RSI策略。warmupMinutes 决定回测与实盘的分析窗口长度。
func NewRSI(exec execution.Client, lowerThreshold, higherThreshold float64, warmupMinutes int, logger *zap.Logger) (*RSI, error) {
	if lowerThreshold >= higherThreshold {
		return nil, fmt.Errorf("strategy: RSI下轨 %.2f 必须小于上轨 %.2f", lowerThreshold, higherThreshold)
	}
	if warmupMinutes <= 0 {
		return nil, fmt.Errorf("strategy: 分析窗口必须为正, 收到 %d", warmupMinutes)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RSI{
		Core:            NewCore(exec),
		lowerThreshold:  lowerThreshold,
		higherThreshold: higherThreshold,
		warmupMinutes:   warmupMinutes,
		logger:          logger,
	}, nil
}

// Name 实现 Strategy。
func (s *RSI) Name() string {
	return "rsi"
}

// WarmupMinutes 实现 Strategy。
func (s *RSI) WarmupMinutes() int {
	return s.warmupMinutes
}

// Params 实现 Strategy。
func (s *RSI) Params() map[string]float64 {
	return map[string]float64{
		"lower_threshold":  s.lowerThreshold,
		"higher_threshold": s.higherThreshold,
		"warmup_minutes":   float64(s.warmupMinutes),
	}
}

// Execute 在RSI穿越阈值时全仓换向。窗口不足以计算RSI时跳过本步。
func (s *RSI) Execute(ctx context.Context, window market.Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(window) <= rsiPeriod+1 {
		return nil
	}

	rsi := talib.Rsi(window.Closes(), rsiPeriod)
	current := rsi[len(rsi)-1]
	previous := rsi[len(rsi)-2]

	state := s.State()

	isBuySignal := previous > s.lowerThreshold && current < s.lowerThreshold
	if isBuySignal && state.QuoteAvailable > 0 {
		order, err := s.Client().PlaceMarketBuyOrder(state.Base, state.QuoteAvailable)
		if err != nil {
			return err
		}
		s.logger.Info("RSI买入信号",
			zap.Float64("rsi", current),
			zap.String("order_id", order.OrderID),
		)
		return nil
	}

	isSellSignal := previous < s.higherThreshold && current > s.higherThreshold
	if isSellSignal && state.BaseAvailable > 0 {
		order, err := s.Client().PlaceMarketSellOrder(state.Base, state.BaseAvailable)
		if err != nil {
			return err
		}
		s.logger.Info("RSI卖出信号",
			zap.Float64("rsi", current),
			zap.String("order_id", order.OrderID),
		)
	}

	return nil
}
