package backtest

import (
	"math"

	"optionforge/internal/domain"
	"optionforge/internal/pricing"
)

// entryGate evaluates EntryRules against the history observed so far in a run.
type entryGate struct {
	rules  domain.EntryRules
	rate   float64
	ivs    []float64 // at-the-money IV per day, where available
	closes []float64 // underlying price per day, where available
	today  struct {
		iv    float64
		hasIV bool
	}
}

func newEntryGate(rules domain.EntryRules, rate float64) *entryGate {
	return &entryGate{rules: rules, rate: rate}
}

// observe records the day's underlying price and ATM IV.
// Must be called once per day before allows.
func (g *entryGate) observe(day *chainDay, spot float64, hasSpot bool) {
	g.today.hasIV = false
	if !hasSpot {
		return
	}
	g.closes = append(g.closes, spot)
	if g.rules.IVRankMin == nil {
		return
	}
	if iv, ok := atmIV(day, spot, g.rate); ok {
		g.ivs = append(g.ivs, iv)
		g.today.iv, g.today.hasIV = iv, true
	}
}

// allows reports whether every configured entry rule passes on date.
func (g *entryGate) allows(date domain.Date) bool {
	if len(g.rules.DaysOfWeek) > 0 && !containsInt(g.rules.DaysOfWeek, date.ISOWeekday()) {
		return false
	}
	if g.rules.IVRankMin != nil {
		if !g.today.hasIV {
			return false
		}
		rank, ok := ivRank(g.ivs, g.rules.Lookback())
		if !ok || rank < *g.rules.IVRankMin {
			return false
		}
	}
	if mac := g.rules.MovingAverageCross; mac != nil {
		short, ok1 := sma(g.closes, mac.Short)
		long, ok2 := sma(g.closes, mac.Long)
		if !ok1 || !ok2 || short <= long {
			return false
		}
	}
	return true
}

// ivRank returns where the latest IV sits in the min..max range of the last
// lookback observations, 0..100. Undefined with fewer than 2 observations or
// a flat range.
func ivRank(ivs []float64, lookback int) (float64, bool) {
	if len(ivs) > lookback {
		ivs = ivs[len(ivs)-lookback:]
	}
	if len(ivs) < 2 {
		return 0, false
	}
	lo, hi := ivs[0], ivs[0]
	for _, v := range ivs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return 0, false
	}
	return (ivs[len(ivs)-1] - lo) / (hi - lo) * 100, true
}

// sma is the simple moving average of the last n values.
func sma(values []float64, n int) (float64, bool) {
	if n <= 0 || len(values) < n {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n), true
}

// atmIV averages the call and put IV at the strike nearest spot on the
// nearest expiration after the trading day. Quotes without a reported IV are
// solved from their mid.
func atmIV(day *chainDay, spot, rate float64) (float64, bool) {
	var expiry domain.Date
	for _, q := range day.quotes {
		if q.DTE() <= 0 {
			continue
		}
		if expiry.IsZero() || q.Expiration.Before(expiry) {
			expiry = q.Expiration
		}
	}
	if expiry.IsZero() {
		return 0, false
	}

	bestDist := math.Inf(1)
	var atm []*domain.OptionQuote
	for _, q := range day.quotes {
		if q.Expiration != expiry {
			continue
		}
		d := math.Abs(q.Strike - spot)
		switch {
		case d < bestDist-1e-9:
			bestDist = d
			atm = []*domain.OptionQuote{q}
		case math.Abs(d-bestDist) <= 1e-9 && len(atm) > 0 && atm[0].Strike == q.Strike:
			atm = append(atm, q)
		}
	}

	sum, n := 0.0, 0
	for _, q := range atm {
		iv := q.ImpliedVolatility
		if iv <= 0 {
			mid, ok := q.Mid()
			if !ok {
				continue
			}
			solved, err := pricing.ImpliedVolatility(mid, spot, q.Strike, pricing.YearsBetween(q.Date, q.Expiration), rate, q.Type)
			if err != nil {
				continue
			}
			iv = solved
		}
		sum += iv
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// exitReason returns the first exit rule that fires for a trade, or "".
// pnlPct is the trade P&L relative to the absolute entry premium; minDTE is
// the smallest remaining DTE among open legs; held is calendar days since entry.
func exitReason(rules domain.ExitRules, pnlPct float64, hasPct bool, minDTE, held int) string {
	if hasPct && rules.ProfitTargetPct != nil && pnlPct >= *rules.ProfitTargetPct {
		return domain.ExitReasonProfitTarget
	}
	if hasPct && rules.StopLossPct != nil && pnlPct <= -*rules.StopLossPct {
		return domain.ExitReasonStopLoss
	}
	if rules.DTEToExit != nil && minDTE <= *rules.DTEToExit {
		return domain.ExitReasonDTE
	}
	if rules.MaxHoldDays != nil && held >= *rules.MaxHoldDays {
		return domain.ExitReasonMaxHold
	}
	return ""
}
