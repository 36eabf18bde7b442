package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"candlebot/internal/config"
	"candlebot/internal/execution"
	"candlebot/internal/ledger"
	"candlebot/internal/market"
	"candlebot/internal/strategy"
)

func TestCoordinatorRunStep_PersistsLedger(t *testing.T) {
	coordinator, repo := makeCoordinator(t, nil)
	ctx := context.Background()
	key := Key{PersonID: "alice", Exchange: "backtest", BotID: "bot-1"}

	seedRecord(t, repo, key, StatusActive)

	if err := coordinator.RunStep(ctx, key, StatusActive); err != nil {
		t.Fatalf("RunStep returned error: %v", err)
	}

	loaded, err := repo.Read(ctx, key, StatusActive)
	if err != nil {
		t.Fatalf("record must stay active after a clean step, got %v", err)
	}
	// 策略买入一次后计价资产清零
	if loaded.State.QuoteAvailable != 0 {
		t.Errorf("expected mutated ledger persisted, quote available %f", loaded.State.QuoteAvailable)
	}
	if loaded.State.NumberOfTransactions != 1 {
		t.Errorf("expected 1 transaction persisted, got %d", loaded.State.NumberOfTransactions)
	}
}

func TestCoordinatorRunStep_PausesOnStrategyFailure(t *testing.T) {
	stepErr := errors.New("exchange exploded")
	coordinator, repo := makeCoordinator(t, stepErr)
	ctx := context.Background()
	key := Key{PersonID: "alice", Exchange: "backtest", BotID: "bot-1"}

	seedRecord(t, repo, key, StatusActive)

	err := coordinator.RunStep(ctx, key, StatusActive)
	if err == nil || !errors.Is(err, stepErr) {
		t.Fatalf("expected propagated step failure, got %v", err)
	}

	if _, err := repo.Read(ctx, key, StatusActive); !errors.Is(err, ErrStrategyNotFound) {
		t.Errorf("record must no longer be active, got %v", err)
	}
	loaded, err := repo.Read(ctx, key, StatusPaused)
	if err != nil {
		t.Fatalf("record must be paused after failure, got %v", err)
	}
	if loaded.State == nil || loaded.State.TotalQuote != 1000 {
		t.Errorf("ledger must survive the failure, got %+v", loaded.State)
	}
}

func TestCoordinatorRunStep_UnknownStrategy(t *testing.T) {
	coordinator, repo := makeCoordinator(t, nil)
	ctx := context.Background()
	key := Key{PersonID: "alice", Exchange: "backtest", BotID: "bot-1"}

	record := Record{Strategy: "unknown", WarmupMinutes: 60, State: ledger.New("BTC", 0, 1000)}
	if err := repo.Store(ctx, key, StatusActive, record); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	if err := coordinator.RunStep(ctx, key, StatusActive); err == nil {
		t.Fatal("expected error for unregistered strategy")
	}
}

func TestCoordinatorStop_LiquidatesToQuote(t *testing.T) {
	coordinator, repo := makeCoordinator(t, nil)
	ctx := context.Background()
	key := Key{PersonID: "alice", Exchange: "backtest", BotID: "bot-1"}

	state := ledger.New("BTC", 1, 0)
	record := Record{Strategy: "step", WarmupMinutes: 60, State: state}
	if err := repo.Store(ctx, key, StatusActive, record); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	if err := coordinator.Stop(ctx, key, StatusActive, AssetQuoteOnly); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	loaded, err := repo.Read(ctx, key, StatusStopped)
	if err != nil {
		t.Fatalf("record must be stopped, got %v", err)
	}
	if loaded.State.BaseAvailable != 0 {
		t.Errorf("expected base liquidated, got %f", loaded.State.BaseAvailable)
	}
	if loaded.State.QuoteAvailable <= 0 {
		t.Errorf("expected quote proceeds, got %f", loaded.State.QuoteAvailable)
	}
}

func TestCoordinatorStop_CancelsOpenOrders(t *testing.T) {
	coordinator, repo := makeCoordinator(t, nil)
	ctx := context.Background()
	key := Key{PersonID: "alice", Exchange: "backtest", BotID: "bot-1"}

	state := ledger.New("BTC", 0, 1000)
	if err := state.AddOrder(&ledger.Order{
		OrderID:     "open-1",
		Market:      "BTC",
		Side:        ledger.SideBuy,
		Type:        ledger.TypeLimit,
		LimitPrice:  18000,
		OnHold:      400,
		Status:      ledger.StatusOpen,
		TimeCreated: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("AddOrder returned error: %v", err)
	}

	record := Record{Strategy: "step", WarmupMinutes: 60, State: state}
	if err := repo.Store(ctx, key, StatusActive, record); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	if err := coordinator.Stop(ctx, key, StatusActive, AssetIgnore); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}

	loaded, err := repo.Read(ctx, key, StatusStopped)
	if err != nil {
		t.Fatalf("record must be stopped, got %v", err)
	}
	if len(loaded.State.OpenOrders()) != 0 {
		t.Errorf("expected open orders cancelled")
	}
	if loaded.State.QuoteAvailable != 1000 {
		t.Errorf("expected reservation released, got %f", loaded.State.QuoteAvailable)
	}
}

// stepStrategy 每步把可用计价资产全部市价买入, 或按注入的错误失败。
type stepStrategy struct {
	strategy.Core

	warmupMinutes int
	failWith      error
}

func (s *stepStrategy) Name() string { return "step" }

func (s *stepStrategy) WarmupMinutes() int { return s.warmupMinutes }

func (s *stepStrategy) Params() map[string]float64 { return nil }

func (s *stepStrategy) Execute(ctx context.Context, window market.Series) error {
	if s.failWith != nil {
		return s.failWith
	}
	state := s.State()
	if state.QuoteAvailable > 0 {
		if _, err := s.Client().PlaceMarketBuyOrder(state.Base, state.QuoteAvailable); err != nil {
			return err
		}
	}
	return nil
}

type staticPipeline struct {
	series market.Series
}

func (p staticPipeline) Run(ctx context.Context) (market.Series, error) {
	return p.series, nil
}

func makeCoordinator(t *testing.T, failWith error) (*Coordinator, *SQLiteStrategyRepository) {
	t.Helper()

	repo := makeRepository(t)

	series := market.Series{{
		Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:   20000,
		High:   20500,
		Low:    19500,
		Close:  20200,
		Volume: 10,
	}}

	coordinator, err := NewCoordinator(
		repo,
		nil,
		staticPipeline{series: series},
		config.ExchangeConfig{},
		config.FeesConfig{LimitOrder: 0.0015, MarketOrder: 0.0025},
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewCoordinator returned error: %v", err)
	}

	coordinator.RegisterStrategy("step", func(record Record, exec execution.Client, logger *zap.Logger) (strategy.Strategy, error) {
		return &stepStrategy{
			Core:          strategy.NewCore(exec),
			warmupMinutes: record.WarmupMinutes,
			failWith:      failWith,
		}, nil
	})

	return coordinator, repo
}

func seedRecord(t *testing.T, repo *SQLiteStrategyRepository, key Key, status Status) {
	t.Helper()

	record := Record{Strategy: "step", WarmupMinutes: 60, State: ledger.New("BTC", 0, 1000)}
	if err := repo.Store(context.Background(), key, status, record); err != nil {
		t.Fatalf("seed Store returned error: %v", err)
	}
}
