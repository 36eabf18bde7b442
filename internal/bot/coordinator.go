package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"candlebot/internal/config"
	"candlebot/internal/exchange"
	"candlebot/internal/execution"
	"candlebot/internal/market"
	"candlebot/internal/strategy"
)

// AssetHandling 控制停机时的资产处置方式。
type AssetHandling string

const (
	// AssetQuoteOnly 停机前把全部基础资产市价卖出，只留计价资产。
	AssetQuoteOnly AssetHandling = "quote_only"
	// AssetBaseOnly 停机前把全部计价资产市价买入，只留基础资产。
	AssetBaseOnly AssetHandling = "base_only"
	// AssetIgnore 停机时不做任何资产处置。
	AssetIgnore AssetHandling = "ignore"
)

// StrategyFactory 按持久化参数重建策略，执行客户端由协调器先行构建。
type StrategyFactory func(record Record, exec execution.Client, logger *zap.Logger) (strategy.Strategy, error)

// Coordinator 驱动持久化策略的单步运行与状态迁移：每一步
// 读取策略、重建执行客户端、拉取数据、运行一步、写回。任何传播
// 上来的失败都会把槽位迁往 paused，同时仍然落盘已变更的账本——
// 账本余额不变量在失败点保持成立，暂停的机器人可以安全恢复或人工清算。
type Coordinator struct {
	strategies  StrategyRepository
	credentials CredentialsRepository
	pipeline    market.Pipeline
	exchangeCfg config.ExchangeConfig
	fees        config.FeesConfig
	factories   map[string]StrategyFactory
	logger      *zap.Logger
}

// NewCoordinator 创建部署协调器。
func NewCoordinator(
	strategies StrategyRepository,
	credentials CredentialsRepository,
	pipeline market.Pipeline,
	exchangeCfg config.ExchangeConfig,
	fees config.FeesConfig,
	logger *zap.Logger,
) (*Coordinator, error) {
	if strategies == nil {
		return nil, fmt.Errorf("bot: strategy repository 不能为空")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("bot: data pipeline 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		strategies:  strategies,
		credentials: credentials,
		pipeline:    pipeline,
		exchangeCfg: exchangeCfg,
		fees:        fees,
		factories:   make(map[string]StrategyFactory),
		logger:      logger,
	}, nil
}

// RegisterStrategy 注册策略重建工厂。
func (c *Coordinator) RegisterStrategy(name string, factory StrategyFactory) {
	c.factories[name] = factory
}

// RunStep 执行持久化策略的一步决策并写回。
func (c *Coordinator) RunStep(ctx context.Context, key Key, status Status) error {
	record, err := c.strategies.Read(ctx, key, status)
	if err != nil {
		return err
	}

	strat, err := c.rebuild(key, record)
	if err != nil {
		return err
	}

	data, err := c.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		strat.Client().SetCurrentCandle(data.Last())
	}

	if stepErr := strategy.Run(ctx, strat, data); stepErr != nil {
		// 失败也要落盘已变更的账本，再迁往 paused
		record.State = strat.State()
		if storeErr := c.strategies.Store(ctx, key, status, record); storeErr != nil {
			c.logger.Error("失败后落盘账本失败", zap.Error(storeErr))
		}
		if pauseErr := c.strategies.ChangeStatus(ctx, key, status, StatusPaused); pauseErr != nil {
			c.logger.Error("迁移至 paused 失败", zap.Error(pauseErr))
		}
		return fmt.Errorf("bot: 策略步骤失败: %w", stepErr)
	}

	record.State = strat.State()
	return c.strategies.Store(ctx, key, status, record)
}

// Stop 撤销全部挂单、按配置处置资产并把槽位迁往 stopped。
func (c *Coordinator) Stop(ctx context.Context, key Key, status Status, handling AssetHandling) error {
	if status == StatusStopped {
		return nil
	}

	record, err := c.strategies.Read(ctx, key, status)
	if err != nil {
		return err
	}

	strat, err := c.rebuild(key, record)
	if err != nil {
		return err
	}

	client := strat.Client()
	state := strat.State()

	// 清算用市价单需要最新K线作为撮合参照
	data, err := c.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		client.SetCurrentCandle(data.Last())
	}

	shutdown := func() error {
		for _, open := range state.OpenOrders() {
			if err := client.CancelOrder(open); err != nil {
				return err
			}
		}
		switch handling {
		case AssetBaseOnly:
			if state.QuoteAvailable > 0 {
				if _, err := client.PlaceMarketBuyOrder(state.Base, state.QuoteAvailable); err != nil {
					return err
				}
			}
		case AssetQuoteOnly:
			if state.BaseAvailable > 0 {
				if _, err := client.PlaceMarketSellOrder(state.Base, state.BaseAvailable); err != nil {
					return err
				}
			}
		case AssetIgnore:
		default:
			return fmt.Errorf("bot: 未知的资产处置方式 %q", handling)
		}
		return nil
	}

	if stopErr := shutdown(); stopErr != nil {
		record.State = state
		if storeErr := c.strategies.Store(ctx, key, status, record); storeErr != nil {
			c.logger.Error("失败后落盘账本失败", zap.Error(storeErr))
		}
		if pauseErr := c.strategies.ChangeStatus(ctx, key, status, StatusPaused); pauseErr != nil {
			c.logger.Error("迁移至 paused 失败", zap.Error(pauseErr))
		}
		return fmt.Errorf("bot: 停机失败: %w", stopErr)
	}

	record.State = state
	if err := c.strategies.Store(ctx, key, status, record); err != nil {
		return err
	}
	return c.strategies.ChangeStatus(ctx, key, status, StatusStopped)
}

// rebuild 围绕持久化账本重建执行客户端与策略实例。
func (c *Coordinator) rebuild(key Key, record Record) (strategy.Strategy, error) {
	factory, ok := c.factories[record.Strategy]
	if !ok {
		return nil, fmt.Errorf("bot: 未注册的策略类型 %q", record.Strategy)
	}
	if record.State == nil {
		return nil, fmt.Errorf("bot: 持久化记录缺少账本")
	}

	var exec execution.Client
	if key.Exchange == "backtest" {
		exec = execution.NewSimulated(record.State, c.fees.LimitOrder, c.fees.MarketOrder, c.logger)
	} else {
		cfg := c.exchangeCfg
		if c.credentials != nil {
			apiKey, err := c.credentials.APIKey(key.PersonID, key.Exchange)
			if err != nil {
				return nil, err
			}
			apiSecret, err := c.credentials.APISecret(key.PersonID, key.Exchange)
			if err != nil {
				return nil, err
			}
			cfg.APIKey = apiKey
			cfg.APISecret = apiSecret
		}

		client, err := exchange.NewClient(cfg, cfg.Market, c.logger)
		if err != nil {
			return nil, fmt.Errorf("bot: 初始化交易所客户端失败: %w", err)
		}
		exec = execution.NewLive(record.State, client, c.fees.LimitOrder, c.fees.MarketOrder, c.logger)
	}

	return factory(record, exec, c.logger)
}
