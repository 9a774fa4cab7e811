package domain

// MarkSource records where a position's most recent mark came from.
type MarkSource string

const (
	MarkSourceQuote MarkSource = "quote" // observed bid/ask mid or last trade
	MarkSourceModel MarkSource = "model" // Black-Scholes fallback
	// MarkSourceIntrinsic is exercise value at expiration, from the day's underlying price.
	MarkSourceIntrinsic MarkSource = "intrinsic"
)

// Position is an open or closed holding of one contract for one leg.
type Position struct {
	PositionID   string      // deterministic hash
	TradeID      string      // owning trade
	LegIndex     int         // index into StrategyDefinition.Legs
	Contract     ContractKey // held contract
	Quantity     int         // signed: positive long, negative short
	EntryPrice   float64     // fill price per share, slippage applied
	EntryDate    Date        // trade date of the fill
	EntryCost    float64     // commission paid on entry
	LastMark     float64     // price already reflected in equity
	LastMarkDate Date        // date of LastMark
	MarkSource   MarkSource  // source of LastMark
	LastIV       float64     // last known implied volatility, 0 if none
	Closed       bool
}

// TradeRecord is a closed multi-leg trade with full execution details.
// Corresponds to trade_records table.
type TradeRecord struct {
	TradeID      string    `json:"trade_id"`
	EntryDate    Date      `json:"entry_date"`
	ExitDate     Date      `json:"exit_date"`
	ExitReason   string    `json:"exit_reason"`
	EntryPremium float64   `json:"entry_premium"` // net debit (+) or credit (-), multiplier applied
	ExitPremium  float64   `json:"exit_premium"`
	Costs        float64   `json:"costs"` // commissions
	RealizedPnL  float64   `json:"realized_pnl"`
	HoldDays     int       `json:"hold_days"`
	Legs         []LegFill `json:"legs"`
}

// LegFill is one leg of a TradeRecord.
type LegFill struct {
	LegIndex   int     `json:"leg_index"`
	Contract   string  `json:"contract"`
	Quantity   int     `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	ExitMark   string  `json:"exit_mark"` // quote | model | intrinsic
}

// Exit reason codes
const (
	ExitReasonProfitTarget = "PROFIT_TARGET"
	ExitReasonStopLoss     = "STOP_LOSS"
	ExitReasonDTE          = "DTE_EXIT"
	ExitReasonMaxHold      = "MAX_HOLD"
	ExitReasonExpiration   = "EXPIRATION"
)
