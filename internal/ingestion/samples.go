package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"optionforge/internal/domain"
	"optionforge/internal/storage"
)

// SampleStrategies returns the demo strategies seeded into a fresh install.
func SampleStrategies() []*domain.Strategy {
	return []*domain.Strategy{
		{
			Name:        "SPY Short Straddle",
			Description: "A classic short volatility strategy. Sell an at-the-money call and put with the same expiration.",
			Definition: domain.StrategyDefinition{
				UnderlyingTicker: "SPY",
				Legs: []domain.Leg{
					{Type: domain.OptionTypeCall, Action: domain.ActionSell, Quantity: 1, TargetDelta: domain.Float(0.5), DTE: 45},
					{Type: domain.OptionTypePut, Action: domain.ActionSell, Quantity: 1, TargetDelta: domain.Float(-0.5), DTE: 45},
				},
				EntryRules: domain.EntryRules{TimeOfDay: "10:00", DaysOfWeek: []int{1, 2, 3, 4, 5}},
				ExitRules: domain.ExitRules{
					ProfitTargetPct: domain.Float(50),
					StopLossPct:     domain.Float(100),
					DTEToExit:       domain.Int(21),
				},
			},
		},
		{
			Name:        "QQQ Iron Condor",
			Description: "A defined-risk, neutral strategy. Sells an out-of-the-money put spread and call spread.",
			Definition: domain.StrategyDefinition{
				UnderlyingTicker: "QQQ",
				Legs: []domain.Leg{
					{Type: domain.OptionTypePut, Action: domain.ActionSell, Quantity: 1, TargetDelta: domain.Float(-0.10), DTE: 45},
					{Type: domain.OptionTypePut, Action: domain.ActionBuy, Quantity: 1, TargetDelta: domain.Float(-0.05), DTE: 45},
					{Type: domain.OptionTypeCall, Action: domain.ActionSell, Quantity: 1, TargetDelta: domain.Float(0.10), DTE: 45},
					{Type: domain.OptionTypeCall, Action: domain.ActionBuy, Quantity: 1, TargetDelta: domain.Float(0.05), DTE: 45},
				},
				EntryRules: domain.EntryRules{IVRankMin: domain.Float(30)},
				ExitRules: domain.ExitRules{
					ProfitTargetPct: domain.Float(50),
					StopLossPct:     domain.Float(100),
					DTEToExit:       domain.Int(10),
				},
			},
		},
		{
			Name:        "SPY Bull Call Spread",
			Description: "A defined-risk, bullish strategy. Buy a call and sell a higher-strike call to finance it.",
			Definition: domain.StrategyDefinition{
				UnderlyingTicker: "SPY",
				Legs: []domain.Leg{
					{Type: domain.OptionTypeCall, Action: domain.ActionBuy, Quantity: 1, TargetDelta: domain.Float(0.7), DTE: 60},
					{Type: domain.OptionTypeCall, Action: domain.ActionSell, Quantity: 1, TargetDelta: domain.Float(0.4), DTE: 60},
				},
				EntryRules: domain.EntryRules{MovingAverageCross: &domain.MovingAverageCross{Short: 20, Long: 50}},
				ExitRules: domain.ExitRules{
					ProfitTargetPct: domain.Float(100),
					StopLossPct:     domain.Float(50),
				},
			},
		},
	}
}

// SeedStrategies inserts the sample strategies that do not exist yet and
// returns how many were created.
func SeedStrategies(ctx context.Context, store storage.StrategyStore, logger *log.Logger) (int, error) {
	if logger == nil {
		logger = log.Default()
	}
	created := 0
	for _, st := range SampleStrategies() {
		err := store.Insert(ctx, st)
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.Printf("Strategy %q already exists", st.Name)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %q: %w", st.Name, err)
		}
		created++
		logger.Printf("Created strategy %q (id=%d)", st.Name, st.ID)
	}
	return created, nil
}
