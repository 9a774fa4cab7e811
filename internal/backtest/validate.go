package backtest

import (
	"math"

	"optionforge/internal/domain"
)

// Validate checks a strategy definition and returns an *InvalidStrategyError
// describing the first problem found.
func Validate(def domain.StrategyDefinition) error {
	if def.UnderlyingTicker == "" {
		return invalidf("underlying ticker is required")
	}
	if len(def.Legs) == 0 {
		return invalidf("strategy has no legs")
	}
	for i, leg := range def.Legs {
		if err := validateLeg(i, leg); err != nil {
			return err
		}
	}

	for _, wd := range def.EntryRules.DaysOfWeek {
		if wd < 1 || wd > 7 {
			return invalidf("days_of_week: %d is not an ISO weekday", wd)
		}
	}
	if v := def.EntryRules.IVRankMin; v != nil && (*v < 0 || *v > 100) {
		return invalidf("iv_rank_min must be within 0..100")
	}
	if def.EntryRules.IVRankLookbackDays < 0 {
		return invalidf("iv_rank_lookback_days must not be negative")
	}
	if mac := def.EntryRules.MovingAverageCross; mac != nil {
		if mac.Short <= 0 || mac.Long <= 0 || mac.Short >= mac.Long {
			return invalidf("moving_average_cross requires 0 < short < long")
		}
	}

	ex := def.ExitRules
	if ex.ProfitTargetPct != nil && *ex.ProfitTargetPct <= 0 {
		return invalidf("profit_target_pct must be positive")
	}
	if ex.StopLossPct != nil && *ex.StopLossPct <= 0 {
		return invalidf("stop_loss_pct must be positive")
	}
	if ex.DTEToExit != nil && *ex.DTEToExit < 0 {
		return invalidf("dte_to_exit must not be negative")
	}
	if ex.MaxHoldDays != nil && *ex.MaxHoldDays <= 0 {
		return invalidf("max_hold_days must be positive")
	}

	s := def.Settings
	if s.ContractMultiplier != nil && *s.ContractMultiplier <= 0 {
		return invalidf("contract_multiplier must be positive")
	}
	if s.InitialCapital != nil && *s.InitialCapital <= 0 {
		return invalidf("initial_capital must be positive")
	}
	if s.RiskFreeRate != nil && (math.IsNaN(*s.RiskFreeRate) || *s.RiskFreeRate <= -1) {
		return invalidf("risk_free_rate must be greater than -1")
	}
	if s.CommissionPerContract < 0 || s.SlippagePct < 0 || s.SlippagePct >= 1 {
		return invalidf("commission and slippage must be non-negative, slippage below 1")
	}
	return nil
}

func validateLeg(i int, leg domain.Leg) error {
	if !leg.Type.Valid() {
		return invalidf("leg %d: unsupported option type %q", i, leg.Type)
	}
	if leg.Action != domain.ActionBuy && leg.Action != domain.ActionSell {
		return invalidf("leg %d: unsupported action %q", i, leg.Action)
	}
	if leg.Quantity <= 0 {
		return invalidf("leg %d: quantity must be positive", i)
	}
	if leg.Criterion() == domain.CriterionNone {
		return invalidf("leg %d: exactly one of delta, strike_offset or strike is required", i)
	}
	if leg.TargetDelta != nil && (*leg.TargetDelta < -1 || *leg.TargetDelta > 1) {
		return invalidf("leg %d: delta must be within -1..1", i)
	}
	if leg.Strike != nil && *leg.Strike <= 0 {
		return invalidf("leg %d: strike must be positive", i)
	}
	if leg.DTE < 0 {
		return invalidf("leg %d: dte must not be negative", i)
	}
	if leg.Tolerance() < 0 {
		return invalidf("leg %d: dte_tolerance must not be negative", i)
	}
	return nil
}

func validateRange(start, end domain.Date) error {
	if start.IsZero() || end.IsZero() {
		return invalidf("start and end dates are required")
	}
	if end.Before(start) {
		return invalidf("end date %s is before start date %s", end, start)
	}
	return nil
}
