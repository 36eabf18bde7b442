package backtest

import (
	"time"

	"candlebot/internal/ledger"
	"candlebot/internal/market"
)

// Row 为每根回测K线落一行绩效快照。
type Row struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`

	TotalValueInQuote    float64 `json:"total_value_in_quote"`
	ReturnSinceStart     float64 `json:"return_since_start"`
	BenchmarkReturn      float64 `json:"benchmark_return"`
	TotalBase            float64 `json:"total_base"`
	TotalQuote           float64 `json:"total_quote"`
	BaseAvailable        float64 `json:"base_available"`
	QuoteAvailable       float64 `json:"quote_available"`
	OpenOrders           int     `json:"open_orders"`
	NumberOfTransactions int     `json:"number_of_transactions"`
}

// Snapshot 把账本与当前K线折算成一行绩效记录。纯函数：
// 无隐藏状态，相同输入可重复调用。估值使用K线开盘价。
func Snapshot(candle, startCandle market.Candle, state *ledger.Ledger, startValueInQuote float64) Row {
	currentValue := state.TotalValueInQuote(candle.Open)

	returnSinceStart := 0.0
	if startValueInQuote > 0 {
		returnSinceStart = currentValue/startValueInQuote - 1
	}

	// 基准为从起点K线持有基础资产不动的收益
	benchmarkReturn := 0.0
	if startCandle.Open > 0 {
		benchmarkReturn = candle.Open/startCandle.Open - 1
	}

	return Row{
		Time:                 candle.Time,
		Open:                 candle.Open,
		High:                 candle.High,
		Low:                  candle.Low,
		Close:                candle.Close,
		Volume:               candle.Volume,
		TotalValueInQuote:    currentValue,
		ReturnSinceStart:     returnSinceStart,
		BenchmarkReturn:      benchmarkReturn,
		TotalBase:            state.TotalBase,
		TotalQuote:           state.TotalQuote,
		BaseAvailable:        state.BaseAvailable,
		QuoteAvailable:       state.QuoteAvailable,
		OpenOrders:           len(state.OpenOrders()),
		NumberOfTransactions: state.NumberOfTransactions,
	}
}
