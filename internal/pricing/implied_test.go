package pricing

import (
	"errors"
	"math"
	"testing"

	"optionforge/internal/domain"
)

func TestImpliedVolatility_RoundTrip(t *testing.T) {
	tests := []struct {
		spot, strike, texp, r, sigma float64
		typ                          domain.OptionType
	}{
		{100, 100, 1, 0.05, 0.2, domain.OptionTypeCall},
		{100, 90, 0.1, 0.02, 0.45, domain.OptionTypePut},
		{450, 500, 45.0 / 365, 0.02, 0.15, domain.OptionTypeCall},
		{30, 20, 0.5, 0.01, 1.2, domain.OptionTypeCall},
		{100, 110, 2, 0.03, 0.25, domain.OptionTypePut},
	}
	for _, tt := range tests {
		price, err := Price(tt.spot, tt.strike, tt.texp, tt.r, tt.sigma, tt.typ)
		if err != nil {
			t.Fatalf("price: %v", err)
		}
		got, err := ImpliedVolatility(price, tt.spot, tt.strike, tt.texp, tt.r, tt.typ)
		if err != nil {
			t.Fatalf("implied vol for %+v: %v", tt, err)
		}
		if math.Abs(got-tt.sigma) > 1e-5 {
			t.Errorf("%+v: expected sigma %v, got %v", tt, tt.sigma, got)
		}
	}
}

func TestImpliedVolatility_OutsideArbitrageBounds(t *testing.T) {
	// a call can never be worth more than the underlying
	_, err := ImpliedVolatility(101, 100, 100, 1, 0.05, domain.OptionTypeCall)
	if !errors.Is(err, ErrNoConvergence) {
		t.Errorf("expected ErrNoConvergence, got %v", err)
	}
}

func TestImpliedVolatility_InvalidInput(t *testing.T) {
	if _, err := ImpliedVolatility(5, 100, 100, 0, 0.05, domain.OptionTypeCall); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput at expiry, got %v", err)
	}
	if _, err := ImpliedVolatility(0, 100, 100, 1, 0.05, domain.OptionTypeCall); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero price, got %v", err)
	}
}
