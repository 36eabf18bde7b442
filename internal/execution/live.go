package execution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"candlebot/internal/ledger"
	"candlebot/internal/market"
)

// gateway 收窄实盘客户端对交易所包装层的依赖，便于注入模拟实现。
type gateway interface {
	CreateLimitOrder(ctx context.Context, side string, amount, price float64) (string, error)
	CreateMarketOrder(ctx context.Context, side string, amount float64) (string, float64, error)
	CancelOrder(ctx context.Context, orderID string) error
	FetchOrderStatus(ctx context.Context, orderID string) (string, error)
}

// Live 将订单转发给真实交易所并把结果镜像进同一个账本。
// 超时与重试约束由交易所包装层（internal/exchange）承担，
// 本层只为每次调用设定截止时间。
type Live struct {
	state          *ledger.Ledger
	gw             gateway
	feeLimitOrder  float64
	feeMarketOrder float64
	callTimeout    time.Duration
	candle         market.Candle
	logger         *zap.Logger
}

// NewLive 创建实盘执行客户端。
func NewLive(state *ledger.Ledger, gw gateway, feeLimitOrder, feeMarketOrder float64, logger *zap.Logger) *Live {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Live{
		state:          state,
		gw:             gw,
		feeLimitOrder:  feeLimitOrder,
		feeMarketOrder: feeMarketOrder,
		callTimeout:    15 * time.Second,
		logger:         logger,
	}
}

// State 返回底层账本。
func (l *Live) State() *ledger.Ledger {
	return l.state
}

// SetCurrentCandle 记录最新K线。实盘成交由交易所决定，该K线仅作参考。
func (l *Live) SetCurrentCandle(candle market.Candle) {
	l.candle = candle
}

// PlaceLimitBuyOrder 提交限价买单并在账本中冻结对应计价资产。
func (l *Live) PlaceLimitBuyOrder(base string, limitPrice, amountInQuote float64) (*ledger.Order, error) {
	if limitPrice <= 0 {
		return nil, fmt.Errorf("execution: 限价必须为正, 收到 %.8f", limitPrice)
	}
	if amountInQuote <= 0 || amountInQuote > l.state.QuoteAvailable {
		return nil, fmt.Errorf("%w: 需要 %.8f quote, 可用 %.8f", ErrInsufficientBalance, amountInQuote, l.state.QuoteAvailable)
	}

	ctx, cancel := l.callContext()
	defer cancel()

	orderID, err := l.gw.CreateLimitOrder(ctx, string(ledger.SideBuy), amountInQuote/limitPrice, limitPrice)
	if err != nil {
		return nil, fmt.Errorf("execution: 提交限价买单失败: %w", err)
	}

	order := &ledger.Order{
		OrderID:     orderID,
		Market:      base,
		Side:        ledger.SideBuy,
		Type:        ledger.TypeLimit,
		LimitPrice:  limitPrice,
		OnHold:      amountInQuote,
		Status:      ledger.StatusOpen,
		TimeCreated: time.Now().UTC(),
	}
	if err := l.state.AddOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// PlaceLimitSellOrder 提交限价卖单并在账本中冻结对应基础资产。
func (l *Live) PlaceLimitSellOrder(base string, limitPrice, amountInBase float64) (*ledger.Order, error) {
	if limitPrice <= 0 {
		return nil, fmt.Errorf("execution: 限价必须为正, 收到 %.8f", limitPrice)
	}
	if amountInBase <= 0 || amountInBase > l.state.BaseAvailable {
		return nil, fmt.Errorf("%w: 需要 %.8f base, 可用 %.8f", ErrInsufficientBalance, amountInBase, l.state.BaseAvailable)
	}

	ctx, cancel := l.callContext()
	defer cancel()

	orderID, err := l.gw.CreateLimitOrder(ctx, string(ledger.SideSell), amountInBase, limitPrice)
	if err != nil {
		return nil, fmt.Errorf("execution: 提交限价卖单失败: %w", err)
	}

	order := &ledger.Order{
		OrderID:     orderID,
		Market:      base,
		Side:        ledger.SideSell,
		Type:        ledger.TypeLimit,
		LimitPrice:  limitPrice,
		OnHold:      amountInBase,
		Status:      ledger.StatusOpen,
		TimeCreated: time.Now().UTC(),
	}
	if err := l.state.AddOrder(order); err != nil {
		return nil, err
	}
	return order, nil
}

// PlaceMarketBuyOrder 提交市价买单，按交易所回报均价落账。
func (l *Live) PlaceMarketBuyOrder(base string, amountInQuote float64) (*ledger.Order, error) {
	if amountInQuote <= 0 || amountInQuote > l.state.QuoteAvailable {
		return nil, fmt.Errorf("%w: 需要 %.8f quote, 可用 %.8f", ErrInsufficientBalance, amountInQuote, l.state.QuoteAvailable)
	}

	ctx, cancel := l.callContext()
	defer cancel()

	price := l.candle.Open
	if price <= 0 {
		price = l.candle.Close
	}
	if price <= 0 {
		return nil, ErrNoCurrentCandle
	}

	orderID, average, err := l.gw.CreateMarketOrder(ctx, string(ledger.SideBuy), amountInQuote/price)
	if err != nil {
		return nil, fmt.Errorf("execution: 提交市价买单失败: %w", err)
	}
	if average > 0 {
		price = average
	}

	acquired := amountInQuote / price * (1 - l.feeMarketOrder)

	order := &ledger.Order{
		OrderID:     orderID,
		Market:      base,
		Side:        ledger.SideBuy,
		Type:        ledger.TypeMarket,
		OnHold:      amountInQuote,
		Status:      ledger.StatusFilled,
		TimeCreated: time.Now().UTC(),
		IsTaker:     true,
	}

	l.state.TotalQuote -= amountInQuote
	l.state.QuoteAvailable -= amountInQuote
	l.state.TotalBase += acquired
	l.state.BaseAvailable += acquired
	l.state.FilledOrders = append(l.state.FilledOrders, order)
	l.state.Orders = append(l.state.Orders, order)
	l.state.NumberOfTransactions++

	return order, nil
}

// PlaceMarketSellOrder 提交市价卖单，按交易所回报均价落账。
func (l *Live) PlaceMarketSellOrder(base string, amountInBase float64) (*ledger.Order, error) {
	if amountInBase <= 0 || amountInBase > l.state.BaseAvailable {
		return nil, fmt.Errorf("%w: 需要 %.8f base, 可用 %.8f", ErrInsufficientBalance, amountInBase, l.state.BaseAvailable)
	}

	ctx, cancel := l.callContext()
	defer cancel()

	orderID, average, err := l.gw.CreateMarketOrder(ctx, string(ledger.SideSell), amountInBase)
	if err != nil {
		return nil, fmt.Errorf("execution: 提交市价卖单失败: %w", err)
	}

	price := average
	if price <= 0 {
		price = l.candle.Open
	}
	if price <= 0 {
		return nil, ErrNoCurrentCandle
	}

	acquired := amountInBase * price * (1 - l.feeMarketOrder)

	order := &ledger.Order{
		OrderID:     orderID,
		Market:      base,
		Side:        ledger.SideSell,
		Type:        ledger.TypeMarket,
		OnHold:      amountInBase,
		Status:      ledger.StatusFilled,
		TimeCreated: time.Now().UTC(),
		IsTaker:     true,
	}

	l.state.TotalBase -= amountInBase
	l.state.BaseAvailable -= amountInBase
	l.state.TotalQuote += acquired
	l.state.QuoteAvailable += acquired
	l.state.FilledOrders = append(l.state.FilledOrders, order)
	l.state.Orders = append(l.state.Orders, order)
	l.state.NumberOfTransactions++

	return order, nil
}

// CancelOrder 向交易所撤单，成功后在账本中解冻并标记取消。
func (l *Live) CancelOrder(order *ledger.Order) error {
	if order == nil {
		return ErrOrderNotFound
	}
	stored, ok := l.state.FindOrder(order.OrderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, order.OrderID)
	}
	if !stored.IsOpen() {
		return fmt.Errorf("%w: 订单 %s 状态为 %s", ErrOrderNotCancellable, stored.OrderID, stored.Status)
	}

	ctx, cancel := l.callContext()
	defer cancel()

	if err := l.gw.CancelOrder(ctx, stored.OrderID); err != nil {
		return fmt.Errorf("execution: 交易所撤单失败: %w", err)
	}

	switch stored.Side {
	case ledger.SideBuy:
		l.state.BuyOrders = removeOrder(l.state.BuyOrders, stored)
		l.state.QuoteAvailable += stored.OnHold
	case ledger.SideSell:
		l.state.SellOrders = removeOrder(l.state.SellOrders, stored)
		l.state.BaseAvailable += stored.OnHold
	}

	stored.Status = ledger.StatusCancelled
	l.state.CancelledOrders = append(l.state.CancelledOrders, stored)
	return nil
}

// GetOrderInfo 按ID返回账本中的最新记录。
func (l *Live) GetOrderInfo(order *ledger.Order) (*ledger.Order, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	stored, ok := l.state.FindOrder(order.OrderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, order.OrderID)
	}
	return stored, nil
}

// UpdateState 轮询交易所侧订单状态，把已成交的开放限价单镜像进账本。
func (l *Live) UpdateState() error {
	for _, order := range l.state.Orders {
		if !order.IsOpen() {
			continue
		}

		ctx, cancel := l.callContext()
		status, err := l.gw.FetchOrderStatus(ctx, order.OrderID)
		cancel()
		if err != nil {
			return fmt.Errorf("execution: 查询订单 %s 状态失败: %w", order.OrderID, err)
		}

		if status != "closed" && status != "filled" {
			continue
		}

		switch order.Side {
		case ledger.SideBuy:
			acquired := order.OnHold / order.LimitPrice * (1 - l.feeLimitOrder)
			l.state.BuyOrders = removeOrder(l.state.BuyOrders, order)
			l.state.TotalQuote -= order.OnHold
			l.state.TotalBase += acquired
			l.state.BaseAvailable += acquired
		case ledger.SideSell:
			acquired := order.OnHold * order.LimitPrice * (1 - l.feeLimitOrder)
			l.state.SellOrders = removeOrder(l.state.SellOrders, order)
			l.state.TotalBase -= order.OnHold
			l.state.TotalQuote += acquired
			l.state.QuoteAvailable += acquired
		}

		order.Status = ledger.StatusFilled
		l.state.FilledOrders = append(l.state.FilledOrders, order)
		l.state.NumberOfTransactions++

		l.logger.Info("实盘限价单成交",
			zap.String("order_id", order.OrderID),
			zap.String("side", string(order.Side)),
			zap.Float64("limit_price", order.LimitPrice),
		)
	}

	return nil
}

func (l *Live) callContext() (context.Context, context.CancelFunc) {
	timeout := l.callTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}
