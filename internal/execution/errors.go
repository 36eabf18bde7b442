package execution

import (
	"errors"

	"candlebot/internal/ledger"
)

var (
	// ErrInsufficientBalance 表示下单金额超过可用余额。
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	// ErrOrderNotCancellable 表示对非开放订单发起取消。
	ErrOrderNotCancellable = errors.New("execution: order is not cancellable")
	// ErrOrderNotFound 表示订单ID在账本索引中不存在。
	ErrOrderNotFound = errors.New("execution: order not found")
	// ErrNoCurrentCandle 表示尚未设置撮合参照K线。
	ErrNoCurrentCandle = errors.New("execution: no current candle set")
)
