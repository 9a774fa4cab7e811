package backtest

import (
	"math"
	"sort"

	"optionforge/internal/domain"
)

// chainDay is the option chain of one trading day.
type chainDay struct {
	date       domain.Date
	quotes     []*domain.OptionQuote
	byContract map[domain.ContractKey]*domain.OptionQuote
}

// buildCalendar groups quotes into ascending trading days. Quotes for other
// tickers or outside [start, end] are ignored; a later duplicate of the same
// contract on the same day replaces the earlier one.
func buildCalendar(quotes []*domain.OptionQuote, ticker string, start, end domain.Date) []*chainDay {
	byDate := make(map[domain.Date]*chainDay)
	for _, q := range quotes {
		if q == nil || q.UnderlyingTicker != ticker {
			continue
		}
		if q.Date.Before(start) || q.Date.After(end) {
			continue
		}
		day, ok := byDate[q.Date]
		if !ok {
			day = &chainDay{date: q.Date, byContract: make(map[domain.ContractKey]*domain.OptionQuote)}
			byDate[q.Date] = day
		}
		key := q.Contract()
		if _, dup := day.byContract[key]; !dup {
			day.quotes = append(day.quotes, q)
		} else {
			for i, existing := range day.quotes {
				if existing.Contract() == key {
					day.quotes[i] = q
				}
			}
		}
		day.byContract[key] = q
	}

	days := make([]*chainDay, 0, len(byDate))
	for _, d := range byDate {
		sort.SliceStable(d.quotes, func(i, j int) bool {
			a, b := d.quotes[i], d.quotes[j]
			if c := a.Expiration.Compare(b.Expiration); c != 0 {
				return c < 0
			}
			if a.Strike != b.Strike {
				return a.Strike < b.Strike
			}
			return a.Type < b.Type
		})
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date.Before(days[j].date) })
	return days
}

// tradable returns the quotes that expire after the trading day.
func (d *chainDay) tradable() []*domain.OptionQuote {
	out := make([]*domain.OptionQuote, 0, len(d.quotes))
	for _, q := range d.quotes {
		if q.DTE() > 0 {
			out = append(out, q)
		}
	}
	return out
}

// parityPairs is the number of near-the-money strikes averaged by impliedSpot.
const parityPairs = 3

// impliedSpot estimates the underlying close from put-call parity on the
// nearest expiration that lists both sides of a strike:
// S = C - P + K*exp(-rT). The median over the strikes with the smallest
// |C - P| is returned.
func (d *chainDay) impliedSpot(rate float64) (float64, bool) {
	type side struct{ call, put float64 }
	byExpiry := make(map[domain.Date]map[float64]*side)
	var expirations []domain.Date

	for _, q := range d.quotes {
		if q.DTE() < 0 {
			continue
		}
		mid, ok := q.Mid()
		if !ok {
			continue
		}
		strikes, ok := byExpiry[q.Expiration]
		if !ok {
			strikes = make(map[float64]*side)
			byExpiry[q.Expiration] = strikes
			expirations = append(expirations, q.Expiration)
		}
		s, ok := strikes[q.Strike]
		if !ok {
			s = &side{}
			strikes[q.Strike] = s
		}
		if q.Type == domain.OptionTypeCall {
			s.call = mid
		} else {
			s.put = mid
		}
	}
	sort.Slice(expirations, func(i, j int) bool { return expirations[i].Before(expirations[j]) })

	type pair struct{ spot, gap float64 }
	for _, exp := range expirations {
		t := float64(d.date.DaysUntil(exp)) / 365.0
		var pairs []pair
		for strike, s := range byExpiry[exp] {
			if s.call <= 0 || s.put <= 0 {
				continue
			}
			spot := s.call - s.put + strike*math.Exp(-rate*t)
			if spot <= 0 {
				continue
			}
			pairs = append(pairs, pair{spot: spot, gap: math.Abs(s.call - s.put)})
		}
		if len(pairs) == 0 {
			continue
		}
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i].gap != pairs[j].gap {
				return pairs[i].gap < pairs[j].gap
			}
			return pairs[i].spot < pairs[j].spot
		})
		if len(pairs) > parityPairs {
			pairs = pairs[:parityPairs]
		}
		spots := make([]float64, len(pairs))
		for i, p := range pairs {
			spots[i] = p.spot
		}
		sort.Float64s(spots)
		return median(spots), true
	}
	return 0, false
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
