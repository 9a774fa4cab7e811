package backtest

import (
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"optionforge/internal/domain"
	"optionforge/internal/idhash"
	"optionforge/internal/pricing"
	"optionforge/internal/selector"
)

// mark is a candidate price for an open position on one day.
// ok is false when no source could price the position; price then carries
// the previous mark.
type mark struct {
	price  float64
	source domain.MarkSource
	ok     bool
}

// simulation walks one run through the trading calendar.
// It owns the run's portfolio and P&L accumulator and is never shared.
type simulation struct {
	def    domain.StrategyDefinition
	rate   float64
	cm     costModel
	gate   *entryGate
	book   *portfolio
	logger *log.Logger

	equity  decimal.Decimal
	points  []domain.PnLPoint
	stats   domain.MarkStats
	skipped int // entry attempts with no matching contract
	seq     int // trades opened so far
}

func newSimulation(def domain.StrategyDefinition, logger *log.Logger) *simulation {
	cm := newCostModel(def.Settings)
	return &simulation{
		def:    def,
		rate:   def.Settings.Rate(),
		cm:     cm,
		gate:   newEntryGate(def.EntryRules, def.Settings.Rate()),
		book:   newPortfolio(cm),
		logger: logger,
		equity: decimal.NewFromFloat(def.Settings.Capital()),
	}
}

// step simulates one trading day:
//  1. settle positions at or past expiration
//  2. price every open position (quote mid, else model)
//  3. close trades whose exit rules fire
//  4. open missing legs when entry rules pass (or a roll is pending)
//  5. book mark-to-market for positions still open
func (s *simulation) step(day *chainDay, spot float64, hasSpot bool) error {
	s.gate.observe(day, spot, hasSpot)

	pnl, expired := s.settleExpired(day, spot, hasSpot)

	marks := make(map[*domain.Position]mark)
	modeled := 0
	for _, t := range s.book.trades {
		for _, pos := range t.remaining() {
			m := s.markPosition(day, pos, spot, hasSpot)
			marks[pos] = m
			switch {
			case !m.ok:
				s.stats.Skipped++
			case m.source == domain.MarkSourceModel:
				s.stats.Modeled++
				modeled++
			default:
				s.stats.Quoted++
			}
		}
	}

	roll := expired && s.def.ExitRules.Roll
	for _, t := range append([]*openTrade(nil), s.book.trades...) {
		reason := s.exitFor(day, t, marks)
		if reason == "" {
			continue
		}
		pnl = pnl.Add(s.closeTrade(day, t, marks, reason))
		if s.def.ExitRules.Roll {
			roll = true
		}
	}

	entered, err := s.enter(day, spot, hasSpot, roll)
	if err != nil {
		return err
	}
	pnl = pnl.Add(entered)

	for pos, m := range marks {
		if pos.Closed || !m.ok {
			continue
		}
		pnl = pnl.Add(s.cm.change(pos.LastMark, m.price, pos.Quantity))
		pos.LastMark = m.price
		pos.LastMarkDate = day.date
		pos.MarkSource = m.source
	}

	s.equity = s.equity.Add(pnl)
	s.points = append(s.points, domain.PnLPoint{
		Date:         day.date,
		PnL:          pnl.InexactFloat64(),
		Equity:       s.equity.InexactFloat64(),
		ModeledMarks: modeled,
	})
	return nil
}

// settleExpired closes positions whose expiration is on or before the day at
// intrinsic value. Without an underlying price the day's quote is used, and
// failing that the last mark. Reports whether any trade fully closed.
func (s *simulation) settleExpired(day *chainDay, spot float64, hasSpot bool) (decimal.Decimal, bool) {
	pnl := decimal.Zero
	closedTrades := len(s.book.closed)

	for _, t := range append([]*openTrade(nil), s.book.trades...) {
		for _, pos := range t.remaining() {
			if pos.Contract.Expiration.After(day.date) {
				continue
			}
			fill := exitFill{price: pos.LastMark, date: day.date, source: pos.MarkSource}
			if hasSpot {
				fill.price = pricing.Intrinsic(spot, pos.Contract.Strike, pos.Contract.Type)
				fill.source = domain.MarkSourceIntrinsic
			} else if q, ok := day.byContract[pos.Contract]; ok {
				if mid, ok := q.Mid(); ok {
					fill.price, fill.source = mid, domain.MarkSourceQuote
				}
			}
			pnl = pnl.Add(s.cm.change(pos.LastMark, fill.price, pos.Quantity))
			s.book.closePosition(t, pos, fill, decimal.Zero, domain.ExitReasonExpiration)
		}
	}
	return pnl, len(s.book.closed) > closedTrades
}

// markPosition prices pos from the day's quote, falling back to Black-Scholes with
// the position's last known IV. A model failure (pricing.ErrInvalidInput)
// skips the mark for the day and keeps the previous one.
func (s *simulation) markPosition(day *chainDay, pos *domain.Position, spot float64, hasSpot bool) mark {
	if q, ok := day.byContract[pos.Contract]; ok {
		mid, hasMid := q.Mid()
		s.rememberIV(pos, q, mid, hasMid, spot, hasSpot)
		if hasMid {
			return mark{price: mid, source: domain.MarkSourceQuote, ok: true}
		}
	}

	if !hasSpot {
		spot = 0
	}
	price, err := pricing.Price(spot, pos.Contract.Strike, pricing.YearsBetween(day.date, pos.Contract.Expiration),
		s.rate, pos.LastIV, pos.Contract.Type)
	if err != nil {
		if !errors.Is(err, pricing.ErrInvalidInput) {
			s.logger.Printf("%s: unexpected pricing error for %s: %v", day.date, pos.Contract, err)
		} else {
			s.logger.Printf("%s: no mark for %s, carrying %.4f: %v", day.date, pos.Contract, pos.LastMark, err)
		}
		return mark{price: pos.LastMark, source: pos.MarkSource}
	}
	return mark{price: price, source: domain.MarkSourceModel, ok: true}
}

func (s *simulation) rememberIV(pos *domain.Position, q *domain.OptionQuote, mid float64, hasMid bool, spot float64, hasSpot bool) {
	if q.ImpliedVolatility > 0 {
		pos.LastIV = q.ImpliedVolatility
		return
	}
	if !hasMid || !hasSpot {
		return
	}
	iv, err := pricing.ImpliedVolatility(mid, spot, q.Strike, pricing.YearsBetween(q.Date, q.Expiration), s.rate, q.Type)
	if err == nil {
		pos.LastIV = iv
	}
}

// exitFor evaluates exit rules on a trade's current value.
func (s *simulation) exitFor(day *chainDay, t *openTrade, marks map[*domain.Position]mark) string {
	entry, current := decimal.Zero, decimal.Zero
	minDTE := -1
	for _, pos := range t.positions {
		entry = entry.Add(s.cm.value(pos.EntryPrice, pos.Quantity))
		if pos.Closed {
			current = current.Add(s.cm.value(t.exits[pos].price, pos.Quantity))
			continue
		}
		current = current.Add(s.cm.value(marks[pos].price, pos.Quantity))
		if dte := day.date.DaysUntil(pos.Contract.Expiration); minDTE < 0 || dte < minDTE {
			minDTE = dte
		}
	}

	basis := entry.Abs()
	pnlPct, hasPct := 0.0, !basis.IsZero()
	if hasPct {
		pnlPct = current.Sub(entry).Div(basis).Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	return exitReason(s.def.ExitRules, pnlPct, hasPct, minDTE, t.entryDate.DaysUntil(day.date))
}

// closeTrade closes all open positions of t at today's marks with slippage
// and commission, returning the day's P&L contribution.
func (s *simulation) closeTrade(day *chainDay, t *openTrade, marks map[*domain.Position]mark, reason string) decimal.Decimal {
	pnl := decimal.Zero
	for _, pos := range t.remaining() {
		m := marks[pos]
		price := s.cm.fill(m.price, pos.Quantity, false)
		fees := s.cm.fees(pos.Quantity)
		pnl = pnl.Add(s.cm.change(pos.LastMark, price, pos.Quantity)).Sub(fees)
		s.book.closePosition(t, pos, exitFill{price: price, date: day.date, source: m.source}, fees, reason)
	}
	s.logger.Printf("%s: closed trade %s (%s)", day.date, t.id[:12], reason)
	return pnl
}

// enter opens every leg not currently held. All legs must find a contract or
// nothing is opened. roll bypasses entry rules.
func (s *simulation) enter(day *chainDay, spot float64, hasSpot, roll bool) (decimal.Decimal, error) {
	if !roll {
		if !s.book.flat() && !s.def.EntryRules.AllowAdditionalEntries {
			return decimal.Zero, nil
		}
		if !s.gate.allows(day.date) {
			return decimal.Zero, nil
		}
	}

	var legs []int
	for i := range s.def.Legs {
		if !s.book.holds(i) {
			legs = append(legs, i)
		}
	}
	if len(legs) == 0 {
		return decimal.Zero, nil
	}

	if !hasSpot {
		spot = 0
	}
	sel := selector.New(spot, s.rate)
	chain := day.tradable()
	picks := make([]*domain.OptionQuote, len(legs))
	contracts := make([]domain.ContractKey, len(legs))
	for j, i := range legs {
		q, ok := sel.Select(s.def.Legs[i], chain)
		if ok {
			_, ok = q.Mid()
		}
		if !ok {
			s.skipped++
			s.logger.Printf("%s: no contract for leg %d, entry skipped", day.date, i)
			return decimal.Zero, nil
		}
		picks[j] = q
		contracts[j] = q.Contract()
	}

	t := &openTrade{
		id:        idhash.ComputeTradeID(s.def.UnderlyingTicker, day.date, s.seq, contracts),
		entryDate: day.date,
		costs:     decimal.Zero,
	}
	s.seq++

	pnl := decimal.Zero
	for j, i := range legs {
		q := picks[j]
		mid, _ := q.Mid()
		qty := s.def.Legs[i].SignedQuantity()
		price := s.cm.fill(mid, qty, true)
		fees := s.cm.fees(qty)

		pos := &domain.Position{
			PositionID:   idhash.ComputePositionID(t.id, i, q.Contract()),
			TradeID:      t.id,
			LegIndex:     i,
			Contract:     q.Contract(),
			Quantity:     qty,
			EntryPrice:   price,
			EntryDate:    day.date,
			EntryCost:    fees.InexactFloat64(),
			LastMark:     mid,
			LastMarkDate: day.date,
			MarkSource:   domain.MarkSourceQuote,
		}
		s.rememberIV(pos, q, mid, true, spot, hasSpot)
		t.positions = append(t.positions, pos)
		t.costs = t.costs.Add(fees)
		pnl = pnl.Add(s.cm.change(price, mid, qty)).Sub(fees)
		s.stats.Quoted++
	}

	if err := s.book.open(t); err != nil {
		return decimal.Zero, fmt.Errorf("open trade on %s: %w", day.date, err)
	}
	s.logger.Printf("%s: opened trade %s with %d leg(s)", day.date, t.id[:12], len(t.positions))
	return pnl, nil
}
