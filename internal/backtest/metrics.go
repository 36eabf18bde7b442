package backtest

import "math"

const minutesPerYear = 60 * 24 * 365

// Metrics 记录回测绩效指标。
type Metrics struct {
	TotalReturn float64
	MaxDrawdown float64
	SharpeRatio float64
}

func calculateMetrics(rows []Row, stepMinutes float64) Metrics {
	if len(rows) == 0 {
		return Metrics{}
	}

	equity := make([]float64, len(rows))
	for i, row := range rows {
		equity[i] = row.TotalValueInQuote
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			returns = append(returns, equity[i]/equity[i-1]-1)
		}
	}

	totalReturn := 0.0
	if equity[0] > 0 {
		totalReturn = equity[len(equity)-1]/equity[0] - 1
	}

	return Metrics{
		TotalReturn: totalReturn,
		MaxDrawdown: computeDrawdown(equity),
		SharpeRatio: computeSharpe(returns, stepMinutes),
	}
}

func computeDrawdown(equity []float64) float64 {
	var peak float64
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		dd := (v - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return math.Abs(maxDD)
}

func computeSharpe(returns []float64, stepMinutes float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	if len(returns) > 1 {
		variance /= float64(len(returns) - 1)
	}

	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}

	// 按K线间隔换算年化
	if stepMinutes <= 0 {
		stepMinutes = 60
	}
	annualFactor := math.Sqrt(minutesPerYear / stepMinutes)
	return (mean / std) * annualFactor
}
