package market

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingColumn 表示输入数据缺少必需的列。
	ErrMissingColumn = errors.New("market: missing required column")
	// ErrInvalidColumnType 表示列的值无法解析为期望的类型。
	ErrInvalidColumnType = errors.New("market: invalid column type")
)

// Candle 代表单根K线。
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series 为按时间升序排列的K线序列。
type Series []Candle

// Validate 校验序列时间列有效且非递减。
func (s Series) Validate() error {
	for i, candle := range s {
		if candle.Time.IsZero() {
			return fmt.Errorf("%w: 第%d行 time 无效", ErrInvalidColumnType, i)
		}
		if i > 0 && candle.Time.Before(s[i-1].Time) {
			return fmt.Errorf("%w: 第%d行 time 早于前一行", ErrInvalidColumnType, i)
		}
	}
	return nil
}

// SpanMinutes 返回序列首尾之间的分钟数。
func (s Series) SpanMinutes() float64 {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Time.Sub(s[0].Time).Minutes()
}

// Window 返回时间位于 [from, to] 闭区间内的子序列。
func (s Series) Window(from, to time.Time) Series {
	window := make(Series, 0, len(s))
	for _, candle := range s {
		if candle.Time.Before(from) || candle.Time.After(to) {
			continue
		}
		window = append(window, candle)
	}
	return window
}

// Closes 拆出收盘价序列，便于指标计算。
func (s Series) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, candle := range s {
		closes[i] = candle.Close
	}
	return closes
}

// Last 返回序列最后一根K线，若为空则返回零值。
func (s Series) Last() Candle {
	if len(s) == 0 {
		return Candle{}
	}
	return s[len(s)-1]
}
