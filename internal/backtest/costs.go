package backtest

import (
	"github.com/shopspring/decimal"

	"optionforge/internal/domain"
)

// costModel converts quote mids into fills and computes cash amounts.
// Amounts are accumulated in decimal so that daily P&L sums exactly.
type costModel struct {
	multiplier decimal.Decimal
	commission decimal.Decimal // per contract
	slippage   decimal.Decimal // fraction of mid
}

func newCostModel(s domain.Settings) costModel {
	return costModel{
		multiplier: decimal.NewFromFloat(s.Multiplier()),
		commission: decimal.NewFromFloat(s.CommissionPerContract),
		slippage:   decimal.NewFromFloat(s.SlippagePct),
	}
}

// fill returns the execution price for trading qty contracts at mid.
// Buyers pay mid*(1+slippage), sellers receive mid*(1-slippage).
// opening is false when the trade closes an existing position of size qty.
func (c costModel) fill(mid float64, qty int, opening bool) float64 {
	buying := qty > 0
	if !opening {
		buying = !buying
	}
	m := decimal.NewFromFloat(mid)
	if buying {
		return m.Mul(decimal.NewFromInt(1).Add(c.slippage)).InexactFloat64()
	}
	return m.Mul(decimal.NewFromInt(1).Sub(c.slippage)).InexactFloat64()
}

// fees returns the commission for qty contracts.
func (c costModel) fees(qty int) decimal.Decimal {
	if qty < 0 {
		qty = -qty
	}
	return c.commission.Mul(decimal.NewFromInt(int64(qty)))
}

// value returns price * qty * multiplier.
func (c costModel) value(price float64, qty int) decimal.Decimal {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(int64(qty))).Mul(c.multiplier)
}

// change returns (to - from) * qty * multiplier.
func (c costModel) change(from, to float64, qty int) decimal.Decimal {
	return c.value(to, qty).Sub(c.value(from, qty))
}
