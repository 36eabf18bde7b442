package exchange

import (
	"context"
	"errors"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态，调用方应跳过本步而非重试。
	ErrMaintenance = errors.New("exchange: on maintenance")
)

// isRetryableType 判断 ccxt 错误类别是否值得指数退避重试。
func isRetryableType(err *ccxt.Error) bool {
	switch err.Type {
	case ccxt.NetworkErrorErrType,
		ccxt.RequestTimeoutErrType,
		ccxt.ExchangeNotAvailableErrType,
		ccxt.RateLimitExceededErrType,
		ccxt.DDoSProtectionErrType,
		ccxt.BadResponseErrType,
		ccxt.NullResponseErrType:
		return true
	default:
		return false
	}
}

// IsRetryable 判断错误是否为瞬时故障。上下文取消与维护状态永不重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrMaintenance) {
		return false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		return isRetryableType(ccxtErr)
	}

	return false
}
