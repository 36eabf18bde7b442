package ledger

import "time"

// OrderSide 表示订单方向。
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType 区分限价单与市价单。
type OrderType string

const (
	TypeLimit  OrderType = "limit"
	TypeMarket OrderType = "market"
)

// OrderStatus 表示订单生命周期状态，filled 与 cancelled 为终态。
type OrderStatus string

const (
	StatusOpen      OrderStatus = "open"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
)

// Order 为不可变的下单意图记录，唯一可变字段是 Status，
// 且只允许 open→filled 或 open→cancelled 两种迁移。
// OnHold 在创建时锁定：买单冻结计价资产，卖单冻结基础资产。
type Order struct {
	OrderID     string      `json:"order_id"`
	Market      string      `json:"market"`
	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	LimitPrice  float64     `json:"limit_price,omitempty"`
	OnHold      float64     `json:"on_hold"`
	Status      OrderStatus `json:"status"`
	TimeCreated time.Time   `json:"time_created"`
	IsTaker     bool        `json:"is_taker"`
}

// IsOpen 判断订单是否仍处于开放状态。
func (o *Order) IsOpen() bool {
	return o.Status == StatusOpen
}
