package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInsufficientBalance 表示下单或注入订单的金额超过可用余额。
	ErrInsufficientBalance = errors.New("ledger: insufficient available balance")
)

// Ledger 维护单个 base/quote 交易对的权威余额与订单集合。
// 它是被动容器：除 AddOrder 注入已有挂单外，所有状态迁移都由执行客户端驱动，
// 不变量 QuoteAvailable + Σ OnHold(开放买单) == TotalQuote（base/卖单对称）
// 在每次操作前后都必须成立。
type Ledger struct {
	Base string `json:"base"`

	TotalBase      float64 `json:"total_base"`
	TotalQuote     float64 `json:"total_quote"`
	BaseAvailable  float64 `json:"base_available"`
	QuoteAvailable float64 `json:"quote_available"`

	// BuyOrders/SellOrders 只含开放订单且按方向不相交；
	// Orders 为全部历史订单的只增集合，按创建顺序排列。
	BuyOrders       []*Order `json:"-"`
	SellOrders      []*Order `json:"-"`
	FilledOrders    []*Order `json:"-"`
	CancelledOrders []*Order `json:"-"`
	Orders          []*Order `json:"orders"`

	NumberOfTransactions int `json:"number_of_transactions"`
}

// New 创建全新账本，可用余额等于总余额。
func New(base string, totalBase, totalQuote float64) *Ledger {
	return &Ledger{
		Base:           base,
		TotalBase:      totalBase,
		TotalQuote:     totalQuote,
		BaseAvailable:  totalBase,
		QuoteAvailable: totalQuote,
	}
}

// AddOrder 将预先构建的开放订单注入账本：插入对应的开放集合与订单索引，
// 并从相应可用余额中冻结 OnHold。用于在新会话中恢复既有挂单，
// 不经过撮合引擎。
func (l *Ledger) AddOrder(order *Order) error {
	if order == nil {
		return errors.New("ledger: order 不能为空")
	}
	if !order.IsOpen() {
		return fmt.Errorf("ledger: 只能注入开放订单, 当前状态 %s", order.Status)
	}

	switch order.Side {
	case SideBuy:
		if order.OnHold > l.QuoteAvailable {
			return fmt.Errorf("%w: 需要冻结 %.8f quote, 可用 %.8f", ErrInsufficientBalance, order.OnHold, l.QuoteAvailable)
		}
		l.QuoteAvailable -= order.OnHold
		l.BuyOrders = append(l.BuyOrders, order)
	case SideSell:
		if order.OnHold > l.BaseAvailable {
			return fmt.Errorf("%w: 需要冻结 %.8f base, 可用 %.8f", ErrInsufficientBalance, order.OnHold, l.BaseAvailable)
		}
		l.BaseAvailable -= order.OnHold
		l.SellOrders = append(l.SellOrders, order)
	default:
		return fmt.Errorf("ledger: 未知订单方向 %q", order.Side)
	}

	l.Orders = append(l.Orders, order)
	return nil
}

// OpenOrders 返回开放买单与卖单的并集。
func (l *Ledger) OpenOrders() []*Order {
	open := make([]*Order, 0, len(l.BuyOrders)+len(l.SellOrders))
	open = append(open, l.BuyOrders...)
	open = append(open, l.SellOrders...)
	return open
}

// FindOrder 按ID在订单索引中查找，返回账本持有的最新记录。
func (l *Ledger) FindOrder(orderID string) (*Order, bool) {
	for _, order := range l.Orders {
		if order.OrderID == orderID {
			return order, true
		}
	}
	return nil, false
}

// TotalValueInQuote 以给定价格折算账本总价值，纯函数。
func (l *Ledger) TotalValueInQuote(price float64) float64 {
	return l.TotalQuote + l.TotalBase*price
}

// UnmarshalJSON 从持久化形态恢复账本：开放/成交/取消集合
// 不单独存储，按订单状态从只增索引中重建，保持指针同一性。
func (l *Ledger) UnmarshalJSON(data []byte) error {
	type persisted Ledger
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}

	*l = Ledger(p)
	l.BuyOrders = nil
	l.SellOrders = nil
	l.FilledOrders = nil
	l.CancelledOrders = nil

	for _, order := range l.Orders {
		switch order.Status {
		case StatusOpen:
			if order.Side == SideBuy {
				l.BuyOrders = append(l.BuyOrders, order)
			} else {
				l.SellOrders = append(l.SellOrders, order)
			}
		case StatusFilled:
			l.FilledOrders = append(l.FilledOrders, order)
		case StatusCancelled:
			l.CancelledOrders = append(l.CancelledOrders, order)
		default:
			return fmt.Errorf("ledger: 持久化订单 %s 状态未知 %q", order.OrderID, order.Status)
		}
	}

	return nil
}
