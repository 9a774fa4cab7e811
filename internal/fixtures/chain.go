// Package fixtures generates deterministic synthetic option chains priced with
// Black-Scholes, for demos, local development and tests.
package fixtures

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"optionforge/internal/domain"
	"optionforge/internal/pricing"
)

// ChainParams describes a synthetic underlying and its listed options.
type ChainParams struct {
	Ticker       string
	Start        domain.Date
	TradingDays  int     // weekdays to generate
	Spot         float64 // underlying close on Start
	DailyDrift   float64 // deterministic trend per trading day, fraction
	WaveAmp      float64 // amplitude of the sinusoidal component, fraction
	WavePeriod   int     // trading days per wave cycle
	Volatility   float64 // ATM implied volatility
	Skew         float64 // extra IV per unit of |log moneyness|
	RiskFreeRate float64
	StrikeStep   float64
	StrikeCount  int     // strikes listed on each side of ATM
	MaxDTE       int     // longest listed expiration in calendar days
	Spread       float64 // bid/ask width as a fraction of mid
	WithGreeks   bool    // fill delta/gamma/theta/vega
}

// DefaultChainParams returns parameters resembling a liquid index ETF.
func DefaultChainParams(ticker string, start domain.Date, tradingDays int) ChainParams {
	return ChainParams{
		Ticker:       ticker,
		Start:        start,
		TradingDays:  tradingDays,
		Spot:         450,
		DailyDrift:   0.0003,
		WaveAmp:      0.04,
		WavePeriod:   40,
		Volatility:   0.18,
		Skew:         0.25,
		RiskFreeRate: 0.02,
		StrikeStep:   5,
		StrikeCount:  12,
		MaxDTE:       70,
		Spread:       0.04,
		WithGreeks:   true,
	}
}

// TradingDates returns the weekdays starting at p.Start.
func TradingDates(p ChainParams) []domain.Date {
	dates := make([]domain.Date, 0, p.TradingDays)
	for d := p.Start; len(dates) < p.TradingDays; d = d.AddDays(1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

// Closes returns the underlying close for every trading date.
func Closes(p ChainParams) map[domain.Date]float64 {
	out := make(map[domain.Date]float64, p.TradingDays)
	for i, d := range TradingDates(p) {
		out[d] = spotAt(p, i)
	}
	return out
}

func spotAt(p ChainParams, i int) float64 {
	s := p.Spot * math.Pow(1+p.DailyDrift, float64(i))
	if p.WavePeriod > 0 {
		s *= 1 + p.WaveAmp*math.Sin(2*math.Pi*float64(i)/float64(p.WavePeriod))
	}
	return roundCents(s)
}

// GenerateChain returns quotes for every trading date, ordered by date,
// expiration, strike and type. Expirations are Fridays up to MaxDTE away.
func GenerateChain(p ChainParams) []*domain.OptionQuote {
	var quotes []*domain.OptionQuote
	for i, date := range TradingDates(p) {
		spot := spotAt(p, i)
		atm := math.Round(spot/p.StrikeStep) * p.StrikeStep
		for _, exp := range fridays(date, p.MaxDTE) {
			t := pricing.YearsBetween(date, exp)
			for k := -p.StrikeCount; k <= p.StrikeCount; k++ {
				strike := atm + float64(k)*p.StrikeStep
				if strike <= 0 {
					continue
				}
				iv := p.Volatility + p.Skew*math.Abs(math.Log(strike/spot))
				for _, typ := range []domain.OptionType{domain.OptionTypeCall, domain.OptionTypePut} {
					if q, ok := quote(p, date, exp, strike, typ, spot, t, iv); ok {
						quotes = append(quotes, q)
					}
				}
			}
		}
	}
	return quotes
}

func quote(p ChainParams, date, exp domain.Date, strike float64, typ domain.OptionType, spot, t, iv float64) (*domain.OptionQuote, bool) {
	mid, err := pricing.Price(spot, strike, t, p.RiskFreeRate, iv, typ)
	if err != nil || mid < 0.01 {
		return nil, false
	}
	half := mid * p.Spread / 2
	q := &domain.OptionQuote{
		Date:              date,
		UnderlyingTicker:  p.Ticker,
		Expiration:        exp,
		Strike:            strike,
		Type:              typ,
		Bid:               roundCents(math.Max(mid-half, 0.01)),
		Ask:               roundCents(mid + half),
		Last:              roundCents(mid),
		Volume:            int64(1000 / (1 + math.Abs(strike-spot))),
		OpenInterest:      int64(5000 / (1 + math.Abs(strike-spot)/p.StrikeStep)),
		ImpliedVolatility: math.Round(iv*1e4) / 1e4,
	}
	if p.WithGreeks && t > 0 {
		g, err := pricing.ComputeGreeks(spot, strike, t, p.RiskFreeRate, iv)
		if err == nil {
			delta, theta := g.DeltaCall, g.ThetaCall
			if typ == domain.OptionTypePut {
				delta, theta = g.DeltaPut, g.ThetaPut
			}
			q.Delta = round4(delta)
			q.Gamma = round4(g.Gamma)
			q.Theta = round4(theta)
			q.Vega = round4(g.Vega)
		}
	}
	return q, true
}

// fridays lists Friday expirations from date (inclusive) up to maxDTE days out.
func fridays(date domain.Date, maxDTE int) []domain.Date {
	var out []domain.Date
	d := date
	for d.Weekday() != time.Friday {
		d = d.AddDays(1)
	}
	for ; date.DaysUntil(d) <= maxDTE; d = d.AddDays(7) {
		out = append(out, d)
	}
	return out
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func round4(v float64) *float64 {
	r := decimal.NewFromFloat(v).Round(4).InexactFloat64()
	return &r
}
