package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantMsg string
	}{
		{
			"missing market",
			func(c *Config) { c.Exchange.Market = "" },
			"exchange.market",
		},
		{
			"fee out of range",
			func(c *Config) { c.Fees.MarketOrder = 1 },
			"fees.market_order",
		},
		{
			"rsi thresholds inverted",
			func(c *Config) { c.Strategy.LowerThreshold = 70 },
			"lower_threshold",
		},
		{
			"ai strategy needs api key",
			func(c *Config) { c.Strategy.Name = "ai" },
			"ai.api_key",
		},
		{
			"bad asset handling",
			func(c *Config) { c.Bot.AssetHandling = "liquidate" },
			"asset_handling",
		},
		{
			"retry delays inverted",
			func(c *Config) { c.Exchange.Retry.MinDelay = 10 * time.Second },
			"min_delay",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tc.wantMsg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		App: AppConfig{Environment: "development"},
		Exchange: ExchangeConfig{
			Name:      "binance",
			Market:    "BTC/EUR",
			Timeframe: "1h",
			Retry: RetryConfig{
				MaxAttempts: 5,
				MinDelay:    500 * time.Millisecond,
				MaxDelay:    5 * time.Second,
			},
		},
		Fees: FeesConfig{LimitOrder: 0.0015, MarketOrder: 0.0025},
		Strategy: StrategyConfig{
			Name:            "rsi",
			WarmupMinutes:   60 * 24 * 30,
			LowerThreshold:  35,
			HigherThreshold: 65,
		},
		AI: AIConfig{Model: "gpt-4.1", Timeout: 15 * time.Second},
		Backtest: BacktestConfig{
			CSVPath:    "data/candles.csv",
			Base:       "BTC",
			TotalQuote: 1000,
		},
		Database: DatabaseConfig{
			Path:            "data/candlebot.db",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxLifetime: time.Hour,
		},
		Logging: LoggingConfig{
			Level:            "info",
			Encoding:         "console",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
		Bot: BotConfig{PersonID: "local", BotID: "bot-1", AssetHandling: "ignore"},
	}
}
