// Package selector picks the listed option contract that best matches a strategy leg.
package selector

import (
	"math"
	"sort"

	"optionforge/internal/domain"
	"optionforge/internal/pricing"
)

// tieEpsilon is the distance under which two candidates are considered equal.
const tieEpsilon = 1e-9

// Selector chooses contracts from the chain of a single trading day.
// Spot is the underlying price estimate used as the at-the-money reference
// and for model deltas; Spot <= 0 means unknown.
type Selector struct {
	Spot         float64
	RiskFreeRate float64
}

// New creates a selector for one trading day.
func New(spot, riskFreeRate float64) *Selector {
	return &Selector{Spot: spot, RiskFreeRate: riskFreeRate}
}

// Select returns the quote matching leg, or false when nothing in chain
// satisfies the leg's type and DTE tolerance.
//
// Delta legs take the quote whose delta is closest to the target. Ties go to
// the strike nearest the money, then the DTE nearest the target, then the
// lower strike. Strike legs take the expiration whose DTE is nearest the
// target (earlier on ties) and the listed strike nearest the requested one
// (lower on ties).
func (s *Selector) Select(leg domain.Leg, chain []*domain.OptionQuote) (*domain.OptionQuote, bool) {
	eligible := s.eligible(leg, chain)
	if len(eligible) == 0 {
		return nil, false
	}

	switch leg.Criterion() {
	case domain.CriterionDelta:
		return s.byDelta(leg, eligible)
	case domain.CriterionStrikeOffset:
		atm, ok := s.atmStrike(nearestExpiration(leg, eligible))
		if !ok {
			return nil, false
		}
		return byStrike(leg, eligible, atm+*leg.StrikeOffset)
	case domain.CriterionStrike:
		return byStrike(leg, eligible, *leg.Strike)
	}
	return nil, false
}

// eligible filters chain to the leg's type and DTE window.
func (s *Selector) eligible(leg domain.Leg, chain []*domain.OptionQuote) []*domain.OptionQuote {
	tol := leg.Tolerance()
	var out []*domain.OptionQuote
	for _, q := range chain {
		if q.Type != leg.Type {
			continue
		}
		if abs(q.DTE()-leg.DTE) > tol {
			continue
		}
		out = append(out, q)
	}
	return out
}

type deltaCandidate struct {
	quote     *domain.OptionQuote
	deltaDist float64
	atmDist   float64
	dteDist   int
}

func (s *Selector) byDelta(leg domain.Leg, eligible []*domain.OptionQuote) (*domain.OptionQuote, bool) {
	target := *leg.TargetDelta
	var best *deltaCandidate
	for _, q := range eligible {
		delta, ok := s.QuoteDelta(q)
		if !ok {
			continue
		}
		c := &deltaCandidate{
			quote:     q,
			deltaDist: math.Abs(delta - target),
			atmDist:   s.atmDistance(q.Strike),
			dteDist:   abs(q.DTE() - leg.DTE),
		}
		if best == nil || c.better(best) {
			best = c
		}
	}
	if best == nil {
		return nil, false
	}
	return best.quote, true
}

func (c *deltaCandidate) better(o *deltaCandidate) bool {
	if d := c.deltaDist - o.deltaDist; math.Abs(d) > tieEpsilon {
		return d < 0
	}
	if d := c.atmDist - o.atmDist; math.Abs(d) > tieEpsilon {
		return d < 0
	}
	if c.dteDist != o.dteDist {
		return c.dteDist < o.dteDist
	}
	return c.quote.Strike < o.quote.Strike
}

// QuoteDelta returns the quote's own delta, or a model delta from its implied
// volatility (solved from the mid when the quote reports none).
func (s *Selector) QuoteDelta(q *domain.OptionQuote) (float64, bool) {
	if q.Delta != nil {
		return *q.Delta, true
	}
	if s.Spot <= 0 {
		return 0, false
	}
	t := pricing.YearsBetween(q.Date, q.Expiration)
	sigma := q.ImpliedVolatility
	if sigma <= 0 {
		mid, ok := q.Mid()
		if !ok {
			return 0, false
		}
		iv, err := pricing.ImpliedVolatility(mid, s.Spot, q.Strike, t, s.RiskFreeRate, q.Type)
		if err != nil {
			return 0, false
		}
		sigma = iv
	}
	delta, err := pricing.Delta(s.Spot, q.Strike, t, s.RiskFreeRate, sigma, q.Type)
	if err != nil {
		return 0, false
	}
	return delta, true
}

// atmDistance is |strike - spot|; with no spot every strike is equally far.
func (s *Selector) atmDistance(strike float64) float64 {
	if s.Spot <= 0 {
		return 0
	}
	return math.Abs(strike - s.Spot)
}

// atmStrike returns the listed strike nearest spot, lower on ties.
func (s *Selector) atmStrike(quotes []*domain.OptionQuote) (float64, bool) {
	if s.Spot <= 0 || len(quotes) == 0 {
		return 0, false
	}
	strike, _ := nearestStrike(quotes, s.Spot)
	return strike, true
}

// nearestExpiration keeps the quotes of the expiration whose DTE is nearest
// the leg target, the earlier expiration on ties.
func nearestExpiration(leg domain.Leg, eligible []*domain.OptionQuote) []*domain.OptionQuote {
	var best domain.Date
	bestDist := -1
	for _, q := range eligible {
		d := abs(q.DTE() - leg.DTE)
		if bestDist < 0 || d < bestDist || (d == bestDist && q.Expiration.Before(best)) {
			best, bestDist = q.Expiration, d
		}
	}
	var out []*domain.OptionQuote
	for _, q := range eligible {
		if q.Expiration == best {
			out = append(out, q)
		}
	}
	return out
}

func byStrike(leg domain.Leg, eligible []*domain.OptionQuote, target float64) (*domain.OptionQuote, bool) {
	quotes := nearestExpiration(leg, eligible)
	if len(quotes) == 0 {
		return nil, false
	}
	_, q := nearestStrike(quotes, target)
	return q, true
}

// nearestStrike returns the listed strike closest to target, lower on ties.
func nearestStrike(quotes []*domain.OptionQuote, target float64) (float64, *domain.OptionQuote) {
	sorted := make([]*domain.OptionQuote, len(quotes))
	copy(sorted, quotes)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Strike < sorted[j].Strike })

	best := sorted[0]
	for _, q := range sorted[1:] {
		if math.Abs(q.Strike-target) < math.Abs(best.Strike-target)-tieEpsilon {
			best = q
		}
	}
	return best.Strike, best
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
