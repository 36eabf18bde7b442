package exchange

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"candlebot/internal/market"
)

// 单次 FetchOHLCV 的最大K线条数，超过窗口时分页拉取。
const pageLimit = 1000

// OHLCVPipeline 从交易所拉取策略分析窗口所需的K线序列，
// 实现 market.Pipeline。窗口超过单页限制时并发分页获取。
type OHLCVPipeline struct {
	client        *Client
	timeframe     string
	windowMinutes int
	logger        *zap.Logger
}

// NewOHLCVPipeline 创建实盘数据管道。
func NewOHLCVPipeline(client *Client, timeframe string, windowMinutes int, logger *zap.Logger) (*OHLCVPipeline, error) {
	if client == nil {
		return nil, fmt.Errorf("exchange: client 不能为空")
	}
	if _, err := timeframeMinutes(timeframe); err != nil {
		return nil, err
	}
	if windowMinutes <= 0 {
		return nil, fmt.Errorf("exchange: 窗口分钟数必须为正, 收到 %d", windowMinutes)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OHLCVPipeline{
		client:        client,
		timeframe:     timeframe,
		windowMinutes: windowMinutes,
		logger:        logger,
	}, nil
}

// Run 拉取覆盖整个分析窗口的K线，按时间升序返回。
func (p *OHLCVPipeline) Run(ctx context.Context) (market.Series, error) {
	tfMinutes, err := timeframeMinutes(p.timeframe)
	if err != nil {
		return nil, err
	}

	needed := p.windowMinutes/tfMinutes + 1
	pages := (needed + pageLimit - 1) / pageLimit

	now := time.Now().UTC()
	windowStart := now.Add(-time.Duration(p.windowMinutes) * time.Minute)
	pageSpan := time.Duration(pageLimit*tfMinutes) * time.Minute

	results := make([]market.Series, pages)
	group, groupCtx := errgroup.WithContext(ctx)

	for i := 0; i < pages; i++ {
		i := i
		group.Go(func() error {
			since := windowStart.Add(time.Duration(i) * pageSpan)
			candles, err := p.client.FetchCandles(groupCtx, p.timeframe, since.UnixMilli(), pageLimit)
			if err != nil {
				return err
			}
			results[i] = candles
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	var series market.Series
	for _, page := range results {
		series = append(series, page...)
	}

	// 分页边界可能重叠，按时间去重后排序
	series = dedupe(series)
	sort.Slice(series, func(a, b int) bool {
		return series[a].Time.Before(series[b].Time)
	})

	if err := series.Validate(); err != nil {
		return nil, err
	}

	p.logger.Debug("实盘K线窗口拉取完成",
		zap.String("symbol", p.client.Symbol()),
		zap.String("timeframe", p.timeframe),
		zap.Int("candles", len(series)),
	)

	return series, nil
}

func dedupe(series market.Series) market.Series {
	seen := make(map[int64]struct{}, len(series))
	out := series[:0]
	for _, candle := range series {
		key := candle.Time.UnixMilli()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, candle)
	}
	return out
}

func timeframeMinutes(timeframe string) (int, error) {
	switch timeframe {
	case "1m":
		return 1, nil
	case "5m":
		return 5, nil
	case "15m":
		return 15, nil
	case "1h":
		return 60, nil
	case "4h":
		return 240, nil
	case "1d":
		return 60 * 24, nil
	default:
		return 0, fmt.Errorf("exchange: 不支持的时间周期 %q", timeframe)
	}
}
