package execution

import (
	"candlebot/internal/ledger"
	"candlebot/internal/market"
)

// Client 抽象订单执行能力，模拟与实盘实现共用同一接口，
// 策略代码只依赖该接口，后端选择在构造期完成。
type Client interface {
	// PlaceLimitBuyOrder 以计价资产金额挂限价买单。
	PlaceLimitBuyOrder(base string, limitPrice, amountInQuote float64) (*ledger.Order, error)
	// PlaceLimitSellOrder 以基础资产数量挂限价卖单。
	PlaceLimitSellOrder(base string, limitPrice, amountInBase float64) (*ledger.Order, error)
	// PlaceMarketBuyOrder 以计价资产金额立即买入。
	PlaceMarketBuyOrder(base string, amountInQuote float64) (*ledger.Order, error)
	// PlaceMarketSellOrder 以基础资产数量立即卖出。
	PlaceMarketSellOrder(base string, amountInBase float64) (*ledger.Order, error)
	// CancelOrder 取消仍处于开放状态的订单并解冻余额。
	CancelOrder(order *ledger.Order) error
	// GetOrderInfo 按ID返回账本中存储的最新订单记录。
	GetOrderInfo(order *ledger.Order) (*ledger.Order, error)
	// SetCurrentCandle 更新撮合参照K线，本身不触发任何订单变化。
	SetCurrentCandle(candle market.Candle)
	// UpdateState 按新K线对全部开放订单做一次对账。
	UpdateState() error
	// State 暴露底层账本，供策略与绩效记录只读访问。
	State() *ledger.Ledger
}

var (
	_ Client = (*Simulated)(nil)
	_ Client = (*Live)(nil)
)
