package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"candlebot/internal/execution"
	"candlebot/internal/ledger"
	"candlebot/internal/market"
)

func TestDecisionValidate(t *testing.T) {
	valid := Decision{Action: "buy", Confidence: 0.8, Reasoning: "rsi oversold"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid decision rejected: %v", err)
	}
	if valid.NormalizedAction() != "BUY" {
		t.Errorf("unexpected normalized action: %s", valid.NormalizedAction())
	}

	cases := []struct {
		name     string
		decision Decision
	}{
		{"empty action", Decision{Confidence: 0.5, Reasoning: "x"}},
		{"unknown action", Decision{Action: "SHORT", Confidence: 0.5, Reasoning: "x"}},
		{"confidence too high", Decision{Action: "HOLD", Confidence: 1.5, Reasoning: "x"}},
		{"missing reasoning", Decision{Action: "HOLD", Confidence: 0.5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.decision.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseDecision_ExtractsEmbeddedJSON(t *testing.T) {
	content := "根据分析:\n{\"action\": \"SELL\", \"confidence\": 0.7, \"reasoning\": \"overbought\"}\n以上。"

	decision, err := parseDecision(content)
	if err != nil {
		t.Fatalf("parseDecision returned error: %v", err)
	}
	if decision.NormalizedAction() != "SELL" || decision.Confidence != 0.7 {
		t.Errorf("unexpected decision: %+v", decision)
	}

	if _, err := parseDecision("no json here"); err == nil {
		t.Error("expected error for content without JSON")
	}
}

func TestStrategyExecute_ActsOnDecision(t *testing.T) {
	cases := []struct {
		name             string
		decision         Decision
		wantTransactions int
	}{
		{"buy", Decision{Action: "BUY", Confidence: 0.9, Reasoning: "x"}, 1},
		{"hold", Decision{Action: "HOLD", Confidence: 0.9, Reasoning: "x"}, 0},
		{"below confidence threshold", Decision{Action: "BUY", Confidence: 0.3, Reasoning: "x"}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			strat, state := makeAIStrategy(t, &fakeDecider{decision: tc.decision})

			window := makeWindow(20)
			strat.Client().SetCurrentCandle(window.Last())

			if err := strat.Execute(context.Background(), window); err != nil {
				t.Fatalf("Execute returned error: %v", err)
			}
			if state.NumberOfTransactions != tc.wantTransactions {
				t.Errorf("expected %d transactions, got %d", tc.wantTransactions, state.NumberOfTransactions)
			}
		})
	}
}

func TestStrategyExecute_PropagatesDeciderFailure(t *testing.T) {
	deciderErr := errors.New("model unavailable")
	strat, _ := makeAIStrategy(t, &fakeDecider{err: deciderErr})

	err := strat.Execute(context.Background(), makeWindow(20))
	if !errors.Is(err, deciderErr) {
		t.Fatalf("expected decider failure, got %v", err)
	}
}

func TestStrategyExecute_SkipsShortWindow(t *testing.T) {
	decider := &fakeDecider{decision: Decision{Action: "BUY", Confidence: 0.9, Reasoning: "x"}}
	strat, state := makeAIStrategy(t, decider)

	if err := strat.Execute(context.Background(), makeWindow(rsiPeriod+1)); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if decider.calls != 0 {
		t.Errorf("short window must not reach the model, got %d calls", decider.calls)
	}
	if state.NumberOfTransactions != 0 {
		t.Errorf("short window must not trade")
	}
}

func TestStrategyExecute_SnapshotCarriesBalances(t *testing.T) {
	decider := &fakeDecider{decision: Decision{Action: "HOLD", Confidence: 0.9, Reasoning: "x"}}
	strat, _ := makeAIStrategy(t, decider)

	window := makeWindow(40)
	if err := strat.Execute(context.Background(), window); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	snapshot := decider.lastSnapshot
	if snapshot.Base != "BTC" || snapshot.QuoteAvailable != 1000 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
	if snapshot.LastClose != window.Last().Close {
		t.Errorf("snapshot must carry the latest close, got %f", snapshot.LastClose)
	}
	if len(snapshot.RecentCloses) != recentCloses {
		t.Errorf("expected %d recent closes, got %d", recentCloses, len(snapshot.RecentCloses))
	}
}

type fakeDecider struct {
	decision     Decision
	err          error
	calls        int
	lastSnapshot Snapshot
}

func (d *fakeDecider) GenerateDecision(ctx context.Context, snapshot Snapshot) (Decision, error) {
	d.calls++
	d.lastSnapshot = snapshot
	if d.err != nil {
		return Decision{}, d.err
	}
	return d.decision, nil
}

func makeAIStrategy(t *testing.T, decider Decider) (*Strategy, *ledger.Ledger) {
	t.Helper()

	state := ledger.New("BTC", 0, 1000)
	exec := execution.NewSimulated(state, 0.0015, 0.0025, nil)
	strat, err := NewStrategy(exec, decider, 60, 0.5, nil)
	if err != nil {
		t.Fatalf("NewStrategy returned error: %v", err)
	}
	return strat, state
}

func makeWindow(n int) market.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	window := make(market.Series, 0, n)
	for i := 0; i < n; i++ {
		price := 20000 + float64(i)*10
		window = append(window, market.Candle{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price + 50,
			Low:    price - 50,
			Close:  price,
			Volume: 10,
		})
	}
	return window
}
