package ai

import (
	"context"
	"fmt"

	talib "github.com/markcheno/go-talib"
	"go.uber.org/zap"

	"candlebot/internal/execution"
	"candlebot/internal/market"
	"candlebot/internal/strategy"
)

const (
	rsiPeriod    = 14
	recentCloses = 24
)

// Strategy 把每根K线汇总成市场快照交给大模型决策，按返回的
// 动作全仓市价换向。低于信心阈值的决策按 HOLD 处理。
type Strategy struct {
	strategy.Core

	decider       Decider
	warmupMinutes int
	minConfidence float64
	logger        *zap.Logger
}

var _ strategy.Strategy = (*Strategy)(nil)

// NewStrategy 创建AI决策策略。
func NewStrategy(exec execution.Client, decider Decider, warmupMinutes int, minConfidence float64, logger *zap.Logger) (*Strategy, error) {
	if decider == nil {
		return nil, fmt.Errorf("ai: decider 不能为空")
	}
	if warmupMinutes <= 0 {
		return nil, fmt.Errorf("ai: 分析窗口必须为正, 收到 %d", warmupMinutes)
	}
	if minConfidence < 0 || minConfidence > 1 {
		return nil, fmt.Errorf("ai: 信心阈值必须在 [0,1] 区间, 收到 %f", minConfidence)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{
		Core:          strategy.NewCore(exec),
		decider:       decider,
		warmupMinutes: warmupMinutes,
		minConfidence: minConfidence,
		logger:        logger,
	}, nil
}

// Name 实现 Strategy。
func (s *Strategy) Name() string {
	return "ai"
}

// WarmupMinutes 实现 Strategy。
func (s *Strategy) WarmupMinutes() int {
	return s.warmupMinutes
}

// Params 实现 Strategy。
func (s *Strategy) Params() map[string]float64 {
	return map[string]float64{
		"warmup_minutes": float64(s.warmupMinutes),
		"min_confidence": s.minConfidence,
	}
}

// Execute 请求一次模型决策并执行。窗口不足以计算RSI时跳过本步。
func (s *Strategy) Execute(ctx context.Context, window market.Series) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(window) <= rsiPeriod+1 {
		return nil
	}

	state := s.State()
	closes := window.Closes()
	rsi := talib.Rsi(closes, rsiPeriod)

	recent := closes
	if len(recent) > recentCloses {
		recent = recent[len(recent)-recentCloses:]
	}

	snapshot := Snapshot{
		Base:           state.Base,
		LastClose:      closes[len(closes)-1],
		RSI:            rsi[len(rsi)-1],
		RecentCloses:   recent,
		BaseAvailable:  state.BaseAvailable,
		QuoteAvailable: state.QuoteAvailable,
		OpenOrders:     len(state.OpenOrders()),
	}

	decision, err := s.decider.GenerateDecision(ctx, snapshot)
	if err != nil {
		return err
	}

	if decision.Confidence < s.minConfidence {
		s.logger.Info("决策信心不足, 保持不动",
			zap.String("action", decision.NormalizedAction()),
			zap.Float64("confidence", decision.Confidence),
		)
		return nil
	}

	switch decision.NormalizedAction() {
	case "BUY":
		if state.QuoteAvailable <= 0 {
			return nil
		}
		order, err := s.Client().PlaceMarketBuyOrder(state.Base, state.QuoteAvailable)
		if err != nil {
			return err
		}
		s.logger.Info("AI买入",
			zap.Float64("confidence", decision.Confidence),
			zap.String("order_id", order.OrderID),
		)
	case "SELL":
		if state.BaseAvailable <= 0 {
			return nil
		}
		order, err := s.Client().PlaceMarketSellOrder(state.Base, state.BaseAvailable)
		if err != nil {
			return err
		}
		s.logger.Info("AI卖出",
			zap.Float64("confidence", decision.Confidence),
			zap.String("order_id", order.OrderID),
		)
	}

	return nil
}
