package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Fees     FeesConfig     `mapstructure:"fees"`
	Strategy StrategyConfig `mapstructure:"strategy"`
	AI       AIConfig       `mapstructure:"ai"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Bot      BotConfig      `mapstructure:"bot"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述交易所连接信息。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	Market     string      `mapstructure:"market"`
	Timeframe  string      `mapstructure:"timeframe"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// FeesConfig 描述执行客户端的费率模型：按订单类型区分限价/市价费率。
type FeesConfig struct {
	LimitOrder  float64 `mapstructure:"limit_order"`
	MarketOrder float64 `mapstructure:"market_order"`
}

// StrategyConfig 选择策略实现与其参数。
type StrategyConfig struct {
	Name            string  `mapstructure:"name"`
	WarmupMinutes   int     `mapstructure:"warmup_minutes"`
	LowerThreshold  float64 `mapstructure:"lower_threshold"`
	HigherThreshold float64 `mapstructure:"higher_threshold"`
}

// AIConfig 描述大模型决策策略的调用参数。
type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BacktestConfig 控制回测输入与初始账本。
type BacktestConfig struct {
	CSVPath    string  `mapstructure:"csv_path"`
	Base       string  `mapstructure:"base"`
	TotalBase  float64 `mapstructure:"total_base"`
	TotalQuote float64 `mapstructure:"total_quote"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// BotConfig 标识部署协调器的策略槽位。
type BotConfig struct {
	PersonID      string `mapstructure:"person_id"`
	BotID         string `mapstructure:"bot_id"`
	AssetHandling string `mapstructure:"asset_handling"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Market == "" {
		err = multierr.Append(err, errors.New("exchange.market 不能为空"))
	}
	if c.Exchange.Timeframe == "" {
		err = multierr.Append(err, errors.New("exchange.timeframe 不能为空"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if c.Fees.LimitOrder < 0 || c.Fees.LimitOrder >= 1 {
		err = multierr.Append(err, errors.New("fees.limit_order 必须位于[0,1)"))
	}
	if c.Fees.MarketOrder < 0 || c.Fees.MarketOrder >= 1 {
		err = multierr.Append(err, errors.New("fees.market_order 必须位于[0,1)"))
	}
	if c.Strategy.Name == "" {
		err = multierr.Append(err, errors.New("strategy.name 不能为空"))
	}
	if c.Strategy.WarmupMinutes <= 0 {
		err = multierr.Append(err, errors.New("strategy.warmup_minutes 必须大于0"))
	}
	if strings.EqualFold(c.Strategy.Name, "rsi") {
		if c.Strategy.LowerThreshold <= 0 || c.Strategy.LowerThreshold >= 100 {
			err = multierr.Append(err, errors.New("strategy.lower_threshold 必须位于(0,100)"))
		}
		if c.Strategy.HigherThreshold <= 0 || c.Strategy.HigherThreshold >= 100 {
			err = multierr.Append(err, errors.New("strategy.higher_threshold 必须位于(0,100)"))
		}
		if c.Strategy.LowerThreshold >= c.Strategy.HigherThreshold {
			err = multierr.Append(err, errors.New("strategy.lower_threshold 必须小于 higher_threshold"))
		}
	}
	if strings.EqualFold(c.Strategy.Name, "ai") {
		if c.AI.APIKey == "" {
			err = multierr.Append(err, errors.New("ai.api_key 不能为空"))
		}
		if c.AI.Model == "" {
			err = multierr.Append(err, errors.New("ai.model 不能为空"))
		}
		if c.AI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("ai.timeout 必须大于0"))
		}
	}
	if c.Backtest.Base == "" {
		err = multierr.Append(err, errors.New("backtest.base 不能为空"))
	}
	if c.Backtest.TotalBase < 0 || c.Backtest.TotalQuote < 0 {
		err = multierr.Append(err, errors.New("backtest 初始余额不能为负"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Bot.PersonID == "" || c.Bot.BotID == "" {
		err = multierr.Append(err, errors.New("bot.person_id 与 bot.bot_id 不能为空"))
	}
	switch c.Bot.AssetHandling {
	case "quote_only", "base_only", "ignore":
	default:
		err = multierr.Append(err, errors.New("bot.asset_handling 必须是 quote_only/base_only/ignore 之一"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
