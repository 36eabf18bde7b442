package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"candlebot/internal/ai"
	"candlebot/internal/backtest"
	"candlebot/internal/bot"
	"candlebot/internal/config"
	"candlebot/internal/exchange"
	"candlebot/internal/execution"
	"candlebot/internal/ledger"
	"candlebot/internal/log"
	"candlebot/internal/market"
	"candlebot/internal/store"
	"candlebot/internal/strategy"
)

func main() {
	var (
		configPath string
		mode       string
		csvPath    string
	)
	flag.StringVar(&configPath, "config", "", "配置文件路径，默认使用 configs/config.yaml")
	flag.StringVar(&mode, "mode", "backtest", "运行模式: backtest | run | stop")
	flag.StringVar(&csvPath, "csv", "", "回测用K线CSV路径，覆盖配置中的 backtest.csv_path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if csvPath != "" {
		cfg.Backtest.CSVPath = csvPath
	}

	logger, err := log.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	sqliteStore, err := store.NewSQLite(cfg.Database)
	if err != nil {
		logger.Error("初始化数据库失败", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if closeErr := sqliteStore.Close(); closeErr != nil {
			logger.Warn("关闭数据库失败", zap.Error(closeErr))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case "backtest":
		err = runBacktest(ctx, cfg, sqliteStore, logger)
	case "run":
		err = runStep(ctx, cfg, sqliteStore, logger)
	case "stop":
		err = stopBot(ctx, cfg, sqliteStore, logger)
	default:
		err = fmt.Errorf("未知运行模式 %q", mode)
	}
	if err != nil {
		logger.Error("系统运行异常", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("系统已安全退出")
}

// runBacktest 用历史K线跑一轮完整模拟并落库绩效。
func runBacktest(ctx context.Context, cfg *config.Config, sqliteStore *store.Store, logger *zap.Logger) error {
	series, err := market.NewCSVPipeline(cfg.Backtest.CSVPath).Run(ctx)
	if err != nil {
		return err
	}

	state := ledger.New(cfg.Backtest.Base, cfg.Backtest.TotalBase, cfg.Backtest.TotalQuote)
	exec := execution.NewSimulated(state, cfg.Fees.LimitOrder, cfg.Fees.MarketOrder, logger)

	strat, err := buildStrategy(cfg, exec, logger)
	if err != nil {
		return err
	}

	driver, err := backtest.NewDriver(strat, logger)
	if err != nil {
		return err
	}

	result, err := driver.Run(ctx, series)
	if err != nil {
		return err
	}

	perfRepo, err := store.NewPerformanceRepository(sqliteStore, logger)
	if err != nil {
		return err
	}
	runID, err := perfRepo.SaveRun(ctx, cfg.Bot.BotID, strat.Name(), result)
	if err != nil {
		return err
	}

	logger.Info("回测完成",
		zap.Int64("run_id", runID),
		zap.String("strategy", strat.Name()),
		zap.Float64("start_value", result.StartValue),
		zap.Float64("final_value", result.FinalValue),
		zap.Float64("total_return", result.Metrics.TotalReturn),
		zap.Float64("max_drawdown", result.Metrics.MaxDrawdown),
		zap.Float64("sharpe_ratio", result.Metrics.SharpeRatio),
		zap.Int("transactions", state.NumberOfTransactions),
	)
	return nil
}

// runStep 恢复持久化策略并执行一步实盘决策。
func runStep(ctx context.Context, cfg *config.Config, sqliteStore *store.Store, logger *zap.Logger) error {
	coordinator, key, err := buildCoordinator(cfg, sqliteStore, logger)
	if err != nil {
		return err
	}
	return coordinator.RunStep(ctx, key, bot.StatusActive)
}

// stopBot 停机：撤单、按配置处置资产、迁往 stopped。
func stopBot(ctx context.Context, cfg *config.Config, sqliteStore *store.Store, logger *zap.Logger) error {
	coordinator, key, err := buildCoordinator(cfg, sqliteStore, logger)
	if err != nil {
		return err
	}
	return coordinator.Stop(ctx, key, bot.StatusActive, bot.AssetHandling(cfg.Bot.AssetHandling))
}

func buildCoordinator(cfg *config.Config, sqliteStore *store.Store, logger *zap.Logger) (*bot.Coordinator, bot.Key, error) {
	key := bot.Key{
		PersonID: cfg.Bot.PersonID,
		Exchange: cfg.Exchange.Name,
		BotID:    cfg.Bot.BotID,
	}

	client, err := exchange.NewClient(cfg.Exchange, cfg.Exchange.Market, logger)
	if err != nil {
		return nil, key, err
	}
	pipeline, err := exchange.NewOHLCVPipeline(client, cfg.Exchange.Timeframe, cfg.Strategy.WarmupMinutes, logger)
	if err != nil {
		return nil, key, err
	}

	strategies, err := bot.NewSQLiteStrategyRepository(sqliteStore, logger)
	if err != nil {
		return nil, key, err
	}

	coordinator, err := bot.NewCoordinator(
		strategies,
		bot.EnvCredentialsRepository{},
		pipeline,
		cfg.Exchange,
		cfg.Fees,
		logger,
	)
	if err != nil {
		return nil, key, err
	}

	coordinator.RegisterStrategy("rsi", func(record bot.Record, exec execution.Client, logger *zap.Logger) (strategy.Strategy, error) {
		return strategy.NewRSI(
			exec,
			record.Params["lower_threshold"],
			record.Params["higher_threshold"],
			record.WarmupMinutes,
			logger,
		)
	})
	coordinator.RegisterStrategy("ai", func(record bot.Record, exec execution.Client, logger *zap.Logger) (strategy.Strategy, error) {
		decider, err := ai.NewClient(cfg.AI, logger)
		if err != nil {
			return nil, err
		}
		return ai.NewStrategy(exec, decider, record.WarmupMinutes, record.Params["min_confidence"], logger)
	})

	return coordinator, key, nil
}

// buildStrategy 按配置实例化策略，用于回测模式。
func buildStrategy(cfg *config.Config, exec execution.Client, logger *zap.Logger) (strategy.Strategy, error) {
	switch cfg.Strategy.Name {
	case "rsi":
		return strategy.NewRSI(
			exec,
			cfg.Strategy.LowerThreshold,
			cfg.Strategy.HigherThreshold,
			cfg.Strategy.WarmupMinutes,
			logger,
		)
	case "ai":
		decider, err := ai.NewClient(cfg.AI, logger)
		if err != nil {
			return nil, err
		}
		return ai.NewStrategy(exec, decider, cfg.Strategy.WarmupMinutes, 0.5, logger)
	default:
		return nil, fmt.Errorf("未知策略类型 %q", cfg.Strategy.Name)
	}
}
