package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"candlebot/internal/config"
	"candlebot/internal/market"
)

// Client 负责与交易所现货接口交互并实现重试机制。
type Client struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange *ccxt.Binance
	symbol   string

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 构造 Binance 现货客户端。
func NewClient(cfg config.ExchangeConfig, symbol string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "spot",
		},
	}

	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}

	ex := ccxt.NewBinance(userConfig)
	if cfg.UseSandbox {
		ex.SetSandboxMode(true)
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
		symbol:   symbol,
	}, nil
}

// Symbol 返回交易对符号。
func (c *Client) Symbol() string {
	return c.symbol
}

// FetchCandles 获取指定周期的K线数据，since 为毫秒时间戳，0 表示取最新。
func (c *Client) FetchCandles(ctx context.Context, timeframe string, since int64, limit int64) (market.Series, error) {
	if limit <= 0 {
		limit = 1
	}

	var raw []ccxt.OHLCV

	err := c.callWithRetry(ctx, fmt.Sprintf("fetch_ohlcv_%s", timeframe), func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		opts := []ccxt.FetchOHLCVOptions{
			ccxt.WithFetchOHLCVTimeframe(timeframe),
			ccxt.WithFetchOHLCVLimit(limit),
		}
		if since > 0 {
			opts = append(opts, ccxt.WithFetchOHLCVSince(since))
		}

		result, err := c.exchange.FetchOHLCV(c.symbol, opts...)
		if err != nil {
			return err
		}

		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	candles := make(market.Series, 0, len(raw))
	for _, item := range raw {
		candles = append(candles, market.Candle{
			Time:   time.UnixMilli(item.Timestamp).UTC(),
			Open:   item.Open,
			High:   item.High,
			Low:    item.Low,
			Close:  item.Close,
			Volume: item.Volume,
		})
	}

	return candles, nil
}

// CreateLimitOrder 提交限价单并返回交易所订单ID。
func (c *Client) CreateLimitOrder(ctx context.Context, side string, amount, price float64) (string, error) {
	var orderID string
	err := c.callWithRetry(ctx, "create_limit_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		order, err := c.exchange.CreateLimitOrder(c.symbol, side, amount, price)
		if err != nil {
			return err
		}
		orderID = derefString(order.Id)
		return nil
	})
	if err != nil {
		return "", err
	}
	return orderID, nil
}

// CreateMarketOrder 提交市价单，返回订单ID与成交均价。
func (c *Client) CreateMarketOrder(ctx context.Context, side string, amount float64) (string, float64, error) {
	var orderID string
	var average float64
	err := c.callWithRetry(ctx, "create_market_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		order, err := c.exchange.CreateMarketOrder(c.symbol, side, amount)
		if err != nil {
			return err
		}
		orderID = derefString(order.Id)
		average = derefFloat(order.Average)
		if average == 0 {
			average = derefFloat(order.Price)
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}
	return orderID, average, nil
}

// CancelOrder 撤销指定订单。
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	return c.callWithRetry(ctx, "cancel_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		_, err := c.exchange.CancelOrder(orderID, ccxt.WithCancelOrderSymbol(c.symbol))
		return err
	})
}

// FetchOrderStatus 查询交易所侧订单状态。
func (c *Client) FetchOrderStatus(ctx context.Context, orderID string) (string, error) {
	var status string
	err := c.callWithRetry(ctx, "fetch_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		order, err := c.exchange.FetchOrder(orderID, ccxt.WithFetchOrderSymbol(c.symbol))
		if err != nil {
			return err
		}
		status = derefString(order.Status)
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	if c.marketsLoaded {
		return nil
	}

	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.exchange.LoadMarkets()
		return err
	})
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载", zap.String("symbol", c.symbol))
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := c.classifyError(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			c.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= c.cfg.Retry.MaxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (c *Client) classifyError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		if ccxtErr.Type == ccxt.OnMaintenanceErrType {
			message := strings.TrimSpace(ccxtErr.Message)
			if message == "" {
				message = "exchange under maintenance"
			}
			return fmt.Errorf("%w: %s", ErrMaintenance, message), false
		}
		return err, isRetryableType(ccxtErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return err, true
	}

	return err, false
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
