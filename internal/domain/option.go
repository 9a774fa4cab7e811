package domain

import (
	"fmt"
	"strconv"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	OptionTypeCall OptionType = "call"
	OptionTypePut  OptionType = "put"
)

// Valid reports whether t is a known option type.
func (t OptionType) Valid() bool {
	return t == OptionTypeCall || t == OptionTypePut
}

// ContractKey identifies a listed option contract.
type ContractKey struct {
	UnderlyingTicker string
	Expiration       Date
	Strike           float64
	Type             OptionType
}

func (k ContractKey) String() string {
	return fmt.Sprintf("%s %s %s %s", k.UnderlyingTicker, k.Expiration,
		strconv.FormatFloat(k.Strike, 'f', -1, 64), k.Type)
}

// QuoteKey is the uniqueness key of an OptionQuote.
type QuoteKey struct {
	Date Date
	ContractKey
}

// OptionQuote is one end-of-day observation of one option contract.
// Corresponds to option_quotes table.
type OptionQuote struct {
	Date              Date       `json:"date"`
	UnderlyingTicker  string     `json:"underlying_ticker"`
	Expiration        Date       `json:"expiration_date"`
	Strike            float64    `json:"strike_price"`
	Type              OptionType `json:"option_type"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	Last              float64    `json:"last_price"`
	Volume            int64      `json:"volume"`
	OpenInterest      int64      `json:"open_interest"`
	ImpliedVolatility float64    `json:"implied_volatility"` // 0 when not reported
	Delta             *float64   `json:"delta,omitempty"`
	Gamma             *float64   `json:"gamma,omitempty"`
	Theta             *float64   `json:"theta,omitempty"`
	Vega              *float64   `json:"vega,omitempty"`
}

// Contract returns the contract this quote belongs to.
func (q *OptionQuote) Contract() ContractKey {
	return ContractKey{
		UnderlyingTicker: q.UnderlyingTicker,
		Expiration:       q.Expiration,
		Strike:           q.Strike,
		Type:             q.Type,
	}
}

// Key returns the uniqueness key of the quote.
func (q *OptionQuote) Key() QuoteKey {
	return QuoteKey{Date: q.Date, ContractKey: q.Contract()}
}

// DTE returns calendar days from the quote date to expiration.
func (q *OptionQuote) DTE() int {
	return q.Date.DaysUntil(q.Expiration)
}

// Mid returns the bid/ask midpoint, falling back to the last trade.
// ok is false when neither is usable.
func (q *OptionQuote) Mid() (price float64, ok bool) {
	if q.Bid > 0 && q.Ask > 0 && q.Ask >= q.Bid {
		return (q.Bid + q.Ask) / 2, true
	}
	if q.Last > 0 {
		return q.Last, true
	}
	return 0, false
}

// Validate checks the fields required for storage.
func (q *OptionQuote) Validate() error {
	switch {
	case q.UnderlyingTicker == "":
		return fmt.Errorf("underlying ticker is required")
	case q.Date.IsZero() || q.Expiration.IsZero():
		return fmt.Errorf("%s: date and expiration are required", q.UnderlyingTicker)
	case !q.Type.Valid():
		return fmt.Errorf("%s: unknown option type %q", q.UnderlyingTicker, q.Type)
	case q.Strike <= 0:
		return fmt.Errorf("%s: strike must be positive", q.UnderlyingTicker)
	case q.Bid < 0 || q.Ask < 0 || q.Last < 0:
		return fmt.Errorf("%s: negative price", q.UnderlyingTicker)
	}
	return nil
}

// Clone returns a deep copy of q.
func (q *OptionQuote) Clone() *OptionQuote {
	c := *q
	c.Delta = cloneFloat(q.Delta)
	c.Gamma = cloneFloat(q.Gamma)
	c.Theta = cloneFloat(q.Theta)
	c.Vega = cloneFloat(q.Vega)
	return &c
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// UnderlyingClose is an observed end-of-day price of an underlying.
// Corresponds to underlying_closes table.
type UnderlyingClose struct {
	Ticker string  `json:"ticker"`
	Date   Date    `json:"date"`
	Close  float64 `json:"close"`
}
