package metrics

import (
	"math"

	"github.com/shopspring/decimal"
)

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.10 = 10th percentile).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// computeReturns returns simple daily returns of an equity curve.
// A return following a zero equity is 0.
func computeReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	returns := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev == 0 {
			continue
		}
		returns[i-1] = equity[i]/prev - 1
	}
	return returns
}

// computeMaxDrawdown returns the most negative (equity - peak) / peak.
// Points where the running peak is not positive are ignored.
// Equity must be in chronological order.
func computeMaxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return 0
	}

	peak := equity[0]
	maxDrawdown := 0.0

	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if peak <= 0 {
			continue
		}
		drawdown := (e - peak) / peak
		if drawdown < maxDrawdown {
			maxDrawdown = drawdown
		}
	}
	return maxDrawdown
}

// round2 rounds half away from zero to 2 decimal places.
// Infinities are clamped to the largest finite float, NaN becomes 0.
func round2(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// pct converts a fraction to a rounded percentage.
func pct(v float64) float64 {
	return round2(v * 100)
}
