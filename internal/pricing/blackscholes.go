// Package pricing implements Black-Scholes valuation, Greeks and implied volatility
// for European options. All functions are pure.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"optionforge/internal/domain"
)

// ErrInvalidInput is returned for non-positive spot or strike, non-positive volatility
// outside the expiry case, unknown option types and non-finite inputs.
var ErrInvalidInput = errors.New("invalid pricing input")

// minStdDev is the smallest sigma*sqrt(t) treated as a live option.
const minStdDev = 1e-12

// DaysPerYear converts calendar days to years for time to expiry.
const DaysPerYear = 365.0

// Greeks holds Black-Scholes sensitivities for a call/put pair.
// Theta is per calendar day, Vega per one volatility point.
type Greeks struct {
	DeltaCall float64 `json:"delta_call"`
	DeltaPut  float64 `json:"delta_put"`
	Gamma     float64 `json:"gamma"`
	ThetaCall float64 `json:"theta_call"`
	ThetaPut  float64 `json:"theta_put"`
	Vega      float64 `json:"vega"`
}

// YearsBetween returns the time to expiry in years from calendar days.
func YearsBetween(from, to domain.Date) float64 {
	return float64(from.DaysUntil(to)) / DaysPerYear
}

// Price returns the Black-Scholes value of a European option.
// t is in years, r and sigma are annualized decimals.
// When t <= 0 (or sigma*sqrt(t) underflows) the intrinsic value is returned.
func Price(spot, strike, t, r, sigma float64, typ domain.OptionType) (float64, error) {
	if err := checkSpotStrike(spot, strike); err != nil {
		return 0, err
	}
	if !typ.Valid() {
		return 0, fmt.Errorf("%w: option type %q", ErrInvalidInput, typ)
	}
	if t <= 0 {
		return Intrinsic(spot, strike, typ), nil
	}
	if !finite(t, r, sigma) {
		return 0, fmt.Errorf("%w: non-finite t, r or sigma", ErrInvalidInput)
	}
	if sigma <= 0 {
		return 0, fmt.Errorf("%w: volatility %v", ErrInvalidInput, sigma)
	}
	sd := sigma * math.Sqrt(t)
	if sd < minStdDev {
		return Intrinsic(spot, strike, typ), nil
	}

	d1, d2 := d1d2(spot, strike, t, r, sigma, sd)
	df := math.Exp(-r * t)
	if typ == domain.OptionTypeCall {
		return spot*normCDF(d1) - strike*df*normCDF(d2), nil
	}
	return strike*df*normCDF(-d2) - spot*normCDF(-d1), nil
}

// ComputeGreeks returns the sensitivities of a call and a put with identical terms.
func ComputeGreeks(spot, strike, t, r, sigma float64) (Greeks, error) {
	if err := checkSpotStrike(spot, strike); err != nil {
		return Greeks{}, err
	}
	if t <= 0 || (sigma > 0 && sigma*math.Sqrt(t) < minStdDev) {
		return expiryGreeks(spot, strike), nil
	}
	if !finite(t, r, sigma) {
		return Greeks{}, fmt.Errorf("%w: non-finite t, r or sigma", ErrInvalidInput)
	}
	if sigma <= 0 {
		return Greeks{}, fmt.Errorf("%w: volatility %v", ErrInvalidInput, sigma)
	}

	sqrtT := math.Sqrt(t)
	sd := sigma * sqrtT
	d1, d2 := d1d2(spot, strike, t, r, sigma, sd)
	df := math.Exp(-r * t)
	pdf := normPDF(d1)

	// annual theta: -S*pdf*sigma/(2*sqrtT) -/+ r*K*df*N(+-d2)
	decay := -spot * pdf * sigma / (2 * sqrtT)
	thetaCall := decay - r*strike*df*normCDF(d2)
	thetaPut := decay + r*strike*df*normCDF(-d2)

	return Greeks{
		DeltaCall: normCDF(d1),
		DeltaPut:  normCDF(d1) - 1,
		Gamma:     pdf / (spot * sd),
		ThetaCall: thetaCall / DaysPerYear,
		ThetaPut:  thetaPut / DaysPerYear,
		Vega:      spot * pdf * sqrtT * 0.01,
	}, nil
}

// Delta returns the delta of one side.
func Delta(spot, strike, t, r, sigma float64, typ domain.OptionType) (float64, error) {
	if !typ.Valid() {
		return 0, fmt.Errorf("%w: option type %q", ErrInvalidInput, typ)
	}
	g, err := ComputeGreeks(spot, strike, t, r, sigma)
	if err != nil {
		return 0, err
	}
	if typ == domain.OptionTypeCall {
		return g.DeltaCall, nil
	}
	return g.DeltaPut, nil
}

// Intrinsic returns the exercise value of an option at spot.
func Intrinsic(spot, strike float64, typ domain.OptionType) float64 {
	if typ == domain.OptionTypeCall {
		return math.Max(spot-strike, 0)
	}
	return math.Max(strike-spot, 0)
}

func expiryGreeks(spot, strike float64) Greeks {
	var g Greeks
	if spot > strike {
		g.DeltaCall = 1
	}
	if spot < strike {
		g.DeltaPut = -1
	}
	return g
}

func d1d2(spot, strike, t, r, sigma, sd float64) (float64, float64) {
	d1 := (math.Log(spot/strike) + (r+0.5*sigma*sigma)*t) / sd
	return d1, d1 - sd
}

func checkSpotStrike(spot, strike float64) error {
	if !finite(spot, strike) {
		return fmt.Errorf("%w: non-finite spot or strike", ErrInvalidInput)
	}
	if spot <= 0 {
		return fmt.Errorf("%w: spot %v", ErrInvalidInput, spot)
	}
	if strike <= 0 {
		return fmt.Errorf("%w: strike %v", ErrInvalidInput, strike)
	}
	return nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}
