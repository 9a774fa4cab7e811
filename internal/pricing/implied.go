package pricing

import (
	"errors"
	"fmt"
	"math"

	"optionforge/internal/domain"
)

// ErrNoConvergence is returned when no volatility reproduces the target price.
var ErrNoConvergence = errors.New("implied volatility did not converge")

const (
	ivTolerance = 1e-8
	ivMaxIter   = 100
	ivLow       = 1e-4
	ivHigh      = 5.0
)

// ImpliedVolatility solves Price(sigma) = price. It starts with Newton-Raphson
// from 20% and falls back to bisection on [0.0001, 5] when vega vanishes or
// the iterate leaves the bracket.
func ImpliedVolatility(price, spot, strike, t, r float64, typ domain.OptionType) (float64, error) {
	if err := checkSpotStrike(spot, strike); err != nil {
		return 0, err
	}
	if !typ.Valid() {
		return 0, fmt.Errorf("%w: option type %q", ErrInvalidInput, typ)
	}
	if t <= 0 || !finite(price, t, r) || price <= 0 {
		return 0, fmt.Errorf("%w: price %v at t %v", ErrInvalidInput, price, t)
	}

	lower, upper := bounds(spot, strike, t, r, typ)
	if price <= lower || price >= upper {
		return 0, fmt.Errorf("%w: price %v outside (%v, %v)", ErrNoConvergence, price, lower, upper)
	}

	sigma := 0.2
	for i := 0; i < ivMaxIter; i++ {
		p, err := Price(spot, strike, t, r, sigma, typ)
		if err != nil {
			break
		}
		diff := p - price
		if math.Abs(diff) < ivTolerance {
			return sigma, nil
		}
		vega := spot * normPDF(d1Only(spot, strike, t, r, sigma)) * math.Sqrt(t)
		if vega < 1e-10 {
			break
		}
		next := sigma - diff/vega
		if next <= ivLow || next >= ivHigh {
			break
		}
		sigma = next
	}
	return bisect(price, spot, strike, t, r, typ)
}

func bisect(price, spot, strike, t, r float64, typ domain.OptionType) (float64, error) {
	lo, hi := ivLow, ivHigh
	pLo, err := Price(spot, strike, t, r, lo, typ)
	if err != nil {
		return 0, err
	}
	pHi, err := Price(spot, strike, t, r, hi, typ)
	if err != nil {
		return 0, err
	}
	if price < pLo || price > pHi {
		return 0, fmt.Errorf("%w: price %v not bracketed by [%v, %v]", ErrNoConvergence, price, pLo, pHi)
	}
	for i := 0; i < 200; i++ {
		mid := (lo + hi) / 2
		p, err := Price(spot, strike, t, r, mid, typ)
		if err != nil {
			return 0, err
		}
		if math.Abs(p-price) < ivTolerance || hi-lo < ivTolerance {
			return mid, nil
		}
		if p < price {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, nil
}

// bounds returns the no-arbitrage price range of a European option.
func bounds(spot, strike, t, r float64, typ domain.OptionType) (float64, float64) {
	pvStrike := strike * math.Exp(-r*t)
	if typ == domain.OptionTypeCall {
		return math.Max(spot-pvStrike, 0), spot
	}
	return math.Max(pvStrike-spot, 0), pvStrike
}

func d1Only(spot, strike, t, r, sigma float64) float64 {
	d1, _ := d1d2(spot, strike, t, r, sigma, sigma*math.Sqrt(t))
	return d1
}
