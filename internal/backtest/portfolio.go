package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"optionforge/internal/domain"
)

// openTrade groups the positions opened together by one entry.
type openTrade struct {
	id        string
	entryDate domain.Date
	positions []*domain.Position
	exits     map[*domain.Position]exitFill
	costs     decimal.Decimal
}

type exitFill struct {
	price  float64
	date   domain.Date
	source domain.MarkSource
}

// remaining returns positions that are still open.
func (t *openTrade) remaining() []*domain.Position {
	var out []*domain.Position
	for _, p := range t.positions {
		if !p.Closed {
			out = append(out, p)
		}
	}
	return out
}

// portfolio holds the positions of a single run.
// At most one open position exists per leg index.
type portfolio struct {
	trades []*openTrade
	held   map[int]*domain.Position
	closed []domain.TradeRecord
	cm     costModel
}

func newPortfolio(cm costModel) *portfolio {
	return &portfolio{held: make(map[int]*domain.Position), cm: cm}
}

func (p *portfolio) flat() bool { return len(p.held) == 0 }

func (p *portfolio) holds(leg int) bool {
	_, ok := p.held[leg]
	return ok
}

// open registers a new trade. Each position's leg must not be held.
func (p *portfolio) open(t *openTrade) error {
	for _, pos := range t.positions {
		if p.holds(pos.LegIndex) {
			return fmt.Errorf("leg %d already held by position %s", pos.LegIndex, p.held[pos.LegIndex].PositionID)
		}
	}
	for _, pos := range t.positions {
		p.held[pos.LegIndex] = pos
	}
	t.exits = make(map[*domain.Position]exitFill)
	p.trades = append(p.trades, t)
	return nil
}

// closePosition marks pos closed at price and frees its leg. When the last
// position of its trade closes, the trade is moved to the closed history.
func (p *portfolio) closePosition(t *openTrade, pos *domain.Position, fill exitFill, fees decimal.Decimal, reason string) {
	pos.Closed = true
	t.exits[pos] = fill
	t.costs = t.costs.Add(fees)
	delete(p.held, pos.LegIndex)

	if len(t.remaining()) > 0 {
		return
	}
	p.closed = append(p.closed, p.record(t, fill.date, reason))
	for i, open := range p.trades {
		if open == t {
			p.trades = append(p.trades[:i], p.trades[i+1:]...)
			break
		}
	}
}

func (p *portfolio) record(t *openTrade, exitDate domain.Date, reason string) domain.TradeRecord {
	entry := decimal.Zero
	exit := decimal.Zero
	legs := make([]domain.LegFill, len(t.positions))
	for i, pos := range t.positions {
		fill := t.exits[pos]
		entry = entry.Add(p.cm.value(pos.EntryPrice, pos.Quantity))
		exit = exit.Add(p.cm.value(fill.price, pos.Quantity))
		legs[i] = domain.LegFill{
			LegIndex:   pos.LegIndex,
			Contract:   pos.Contract.String(),
			Quantity:   pos.Quantity,
			EntryPrice: pos.EntryPrice,
			ExitPrice:  fill.price,
			ExitMark:   string(fill.source),
		}
	}
	return domain.TradeRecord{
		TradeID:      t.id,
		EntryDate:    t.entryDate,
		ExitDate:     exitDate,
		ExitReason:   reason,
		EntryPremium: entry.Round(2).InexactFloat64(),
		ExitPremium:  exit.Round(2).InexactFloat64(),
		Costs:        t.costs.Round(2).InexactFloat64(),
		RealizedPnL:  exit.Sub(entry).Sub(t.costs).Round(2).InexactFloat64(),
		HoldDays:     t.entryDate.DaysUntil(exitDate),
		Legs:         legs,
	}
}
