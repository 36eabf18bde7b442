package execution

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"candlebot/internal/ledger"
	"candlebot/internal/market"
)

// Simulated 是确定性的内存撮合引擎：它从离散K线还原交易所的
// 成交语义并独占维护账本。费用规则：成交价值按订单类型收取
// 客户端级费率（限价 feeLimitOrder，市价 feeMarketOrder），
// Order.IsTaker 仅作记录，不参与计算。
type Simulated struct {
	state          *ledger.Ledger
	feeLimitOrder  float64
	feeMarketOrder float64

	candle    market.Candle
	hasCandle bool

	logger *zap.Logger
}

// NewSimulated 创建模拟执行客户端。
func NewSimulated(state *ledger.Ledger, feeLimitOrder, feeMarketOrder float64, logger *zap.Logger) *Simulated {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulated{
		state:          state,
		feeLimitOrder:  feeLimitOrder,
		feeMarketOrder: feeMarketOrder,
		logger:         logger,
	}
}

// State 返回底层账本。
func (s *Simulated) State() *ledger.Ledger {
	return s.state
}

// SetCurrentCandle 替换下一次 UpdateState 与市价单使用的参照K线。
func (s *Simulated) SetCurrentCandle(candle market.Candle) {
	s.candle = candle
	s.hasCandle = true
}

// PlaceLimitBuyOrder 冻结 amountInQuote 并登记开放买单，冻结与插入原子完成。
func (s *Simulated) PlaceLimitBuyOrder(base string, limitPrice, amountInQuote float64) (*ledger.Order, error) {
	if limitPrice <= 0 {
		return nil, fmt.Errorf("execution: 限价必须为正, 收到 %.8f", limitPrice)
	}
	if amountInQuote <= 0 {
		return nil, fmt.Errorf("%w: 买入金额必须为正", ErrInsufficientBalance)
	}
	if amountInQuote > s.state.QuoteAvailable {
		return nil, fmt.Errorf("%w: 需要 %.8f quote, 可用 %.8f", ErrInsufficientBalance, amountInQuote, s.state.QuoteAvailable)
	}

	order := s.newOrder(base, ledger.SideBuy, ledger.TypeLimit, limitPrice, amountInQuote)
	if err := s.state.AddOrder(order); err != nil {
		return nil, err
	}

	s.logger.Debug("限价买单已登记",
		zap.String("order_id", order.OrderID),
		zap.Float64("limit_price", limitPrice),
		zap.Float64("on_hold", amountInQuote),
	)
	return order, nil
}

// PlaceLimitSellOrder 为 PlaceLimitBuyOrder 在基础资产上的对称操作。
func (s *Simulated) PlaceLimitSellOrder(base string, limitPrice, amountInBase float64) (*ledger.Order, error) {
	if limitPrice <= 0 {
		return nil, fmt.Errorf("execution: 限价必须为正, 收到 %.8f", limitPrice)
	}
	if amountInBase <= 0 {
		return nil, fmt.Errorf("%w: 卖出数量必须为正", ErrInsufficientBalance)
	}
	if amountInBase > s.state.BaseAvailable {
		return nil, fmt.Errorf("%w: 需要 %.8f base, 可用 %.8f", ErrInsufficientBalance, amountInBase, s.state.BaseAvailable)
	}

	order := s.newOrder(base, ledger.SideSell, ledger.TypeLimit, limitPrice, amountInBase)
	if err := s.state.AddOrder(order); err != nil {
		return nil, err
	}

	s.logger.Debug("限价卖单已登记",
		zap.String("order_id", order.OrderID),
		zap.Float64("limit_price", limitPrice),
		zap.Float64("on_hold", amountInBase),
	)
	return order, nil
}

// PlaceMarketBuyOrder 以当前K线开盘价立即成交，费用从获得的基础资产中扣除。
func (s *Simulated) PlaceMarketBuyOrder(base string, amountInQuote float64) (*ledger.Order, error) {
	if !s.hasCandle {
		return nil, ErrNoCurrentCandle
	}
	if amountInQuote <= 0 {
		return nil, fmt.Errorf("%w: 买入金额必须为正", ErrInsufficientBalance)
	}
	if amountInQuote > s.state.QuoteAvailable {
		return nil, fmt.Errorf("%w: 需要 %.8f quote, 可用 %.8f", ErrInsufficientBalance, amountInQuote, s.state.QuoteAvailable)
	}

	price := s.candle.Open
	acquired := amountInQuote / price * (1 - s.feeMarketOrder)

	order := s.newOrder(base, ledger.SideBuy, ledger.TypeMarket, 0, amountInQuote)
	order.Status = ledger.StatusFilled

	// 成交直接落账，绕过开放集合
	s.state.TotalQuote -= amountInQuote
	s.state.QuoteAvailable -= amountInQuote
	s.state.TotalBase += acquired
	s.state.BaseAvailable += acquired
	s.state.FilledOrders = append(s.state.FilledOrders, order)
	s.state.Orders = append(s.state.Orders, order)
	s.state.NumberOfTransactions++

	s.logger.Debug("市价买单已成交",
		zap.String("order_id", order.OrderID),
		zap.Float64("price", price),
		zap.Float64("acquired_base", acquired),
	)
	return order, nil
}

// PlaceMarketSellOrder 以当前K线开盘价立即成交，费用从获得的计价资产中扣除。
func (s *Simulated) PlaceMarketSellOrder(base string, amountInBase float64) (*ledger.Order, error) {
	if !s.hasCandle {
		return nil, ErrNoCurrentCandle
	}
	if amountInBase <= 0 {
		return nil, fmt.Errorf("%w: 卖出数量必须为正", ErrInsufficientBalance)
	}
	if amountInBase > s.state.BaseAvailable {
		return nil, fmt.Errorf("%w: 需要 %.8f base, 可用 %.8f", ErrInsufficientBalance, amountInBase, s.state.BaseAvailable)
	}

	price := s.candle.Open
	acquired := amountInBase * price * (1 - s.feeMarketOrder)

	order := s.newOrder(base, ledger.SideSell, ledger.TypeMarket, 0, amountInBase)
	order.Status = ledger.StatusFilled

	s.state.TotalBase -= amountInBase
	s.state.BaseAvailable -= amountInBase
	s.state.TotalQuote += acquired
	s.state.QuoteAvailable += acquired
	s.state.FilledOrders = append(s.state.FilledOrders, order)
	s.state.Orders = append(s.state.Orders, order)
	s.state.NumberOfTransactions++

	s.logger.Debug("市价卖单已成交",
		zap.String("order_id", order.OrderID),
		zap.Float64("price", price),
		zap.Float64("acquired_quote", acquired),
	)
	return order, nil
}

// CancelOrder 将开放订单移出开放集合，按原额解冻余额并标记取消。
func (s *Simulated) CancelOrder(order *ledger.Order) error {
	if order == nil {
		return ErrOrderNotFound
	}

	stored, ok := s.state.FindOrder(order.OrderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, order.OrderID)
	}
	if !stored.IsOpen() {
		return fmt.Errorf("%w: 订单 %s 状态为 %s", ErrOrderNotCancellable, stored.OrderID, stored.Status)
	}

	switch stored.Side {
	case ledger.SideBuy:
		s.state.BuyOrders = removeOrder(s.state.BuyOrders, stored)
		s.state.QuoteAvailable += stored.OnHold
	case ledger.SideSell:
		s.state.SellOrders = removeOrder(s.state.SellOrders, stored)
		s.state.BaseAvailable += stored.OnHold
	}

	stored.Status = ledger.StatusCancelled
	s.state.CancelledOrders = append(s.state.CancelledOrders, stored)

	s.logger.Debug("订单已取消",
		zap.String("order_id", stored.OrderID),
		zap.Float64("released", stored.OnHold),
	)
	return nil
}

// GetOrderInfo 按ID解析订单，调用方即便拿着过期句柄也能看到最新状态。
func (s *Simulated) GetOrderInfo(order *ledger.Order) (*ledger.Order, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	stored, ok := s.state.FindOrder(order.OrderID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, order.OrderID)
	}
	return stored, nil
}

// UpdateState 按当前K线对账：沿只增订单索引（即创建时间升序）遍历
// 仍开放的订单，买单在 Low ≤ 限价时成交，卖单在 High ≥ 限价时成交；
// 未满足条件的订单保持原样，等待后续K线。K线与订单集合不变时重复
// 调用不会产生新的成交。
func (s *Simulated) UpdateState() error {
	if !s.hasCandle {
		return nil
	}

	for _, order := range s.state.Orders {
		if !order.IsOpen() {
			continue
		}

		switch order.Side {
		case ledger.SideBuy:
			if s.candle.Low > order.LimitPrice {
				continue
			}
			acquired := order.OnHold / order.LimitPrice * (1 - s.feeLimitOrder)
			s.state.BuyOrders = removeOrder(s.state.BuyOrders, order)
			s.state.TotalQuote -= order.OnHold
			s.state.TotalBase += acquired
			s.state.BaseAvailable += acquired
		case ledger.SideSell:
			if s.candle.High < order.LimitPrice {
				continue
			}
			acquired := order.OnHold * order.LimitPrice * (1 - s.feeLimitOrder)
			s.state.SellOrders = removeOrder(s.state.SellOrders, order)
			s.state.TotalBase -= order.OnHold
			s.state.TotalQuote += acquired
			s.state.QuoteAvailable += acquired
		}

		order.Status = ledger.StatusFilled
		s.state.FilledOrders = append(s.state.FilledOrders, order)
		s.state.NumberOfTransactions++

		s.logger.Debug("限价单成交",
			zap.String("order_id", order.OrderID),
			zap.String("side", string(order.Side)),
			zap.Float64("limit_price", order.LimitPrice),
		)
	}

	return nil
}

func (s *Simulated) newOrder(base string, side ledger.OrderSide, orderType ledger.OrderType, limitPrice, onHold float64) *ledger.Order {
	return &ledger.Order{
		OrderID:     uuid.NewString(),
		Market:      base,
		Side:        side,
		Type:        orderType,
		LimitPrice:  limitPrice,
		OnHold:      onHold,
		Status:      ledger.StatusOpen,
		TimeCreated: time.Now().UTC(),
		IsTaker:     orderType == ledger.TypeMarket,
	}
}

func removeOrder(orders []*ledger.Order, target *ledger.Order) []*ledger.Order {
	for i, order := range orders {
		if order.OrderID == target.OrderID {
			return append(orders[:i], orders[i+1:]...)
		}
	}
	return orders
}
