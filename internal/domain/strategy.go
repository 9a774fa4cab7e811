package domain

import "time"

// Action is the side of a leg.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Default strategy settings applied when a definition leaves them unset.
const (
	DefaultDTETolerance       = 7
	DefaultRiskFreeRate       = 0.02
	DefaultContractMultiplier = 100.0
	DefaultInitialCapital     = 100000.0
	DefaultIVRankLookbackDays = 252
)

// Criterion names how a leg picks its contract.
type Criterion int

const (
	CriterionNone Criterion = iota
	CriterionDelta
	CriterionStrikeOffset
	CriterionStrike
)

// Leg describes one option position within a strategy.
// Exactly one of TargetDelta, StrikeOffset or Strike is set.
type Leg struct {
	Type         OptionType `json:"type" yaml:"type"`
	Action       Action     `json:"action" yaml:"action"`
	Quantity     int        `json:"quantity" yaml:"quantity"`
	TargetDelta  *float64   `json:"delta,omitempty" yaml:"delta,omitempty"`
	StrikeOffset *float64   `json:"strike_offset,omitempty" yaml:"strike_offset,omitempty"`
	Strike       *float64   `json:"strike,omitempty" yaml:"strike,omitempty"`
	DTE          int        `json:"dte" yaml:"dte"`
	DTETolerance *int       `json:"dte_tolerance,omitempty" yaml:"dte_tolerance,omitempty"`
}

// Sign returns +1 for long legs and -1 for short legs.
func (l Leg) Sign() int {
	if l.Action == ActionSell {
		return -1
	}
	return 1
}

// SignedQuantity returns the position size carried by the portfolio.
func (l Leg) SignedQuantity() int {
	return l.Sign() * l.Quantity
}

// Tolerance returns the accepted DTE deviation.
func (l Leg) Tolerance() int {
	if l.DTETolerance == nil {
		return DefaultDTETolerance
	}
	return *l.DTETolerance
}

// Criterion reports which selection criterion the leg uses.
// CriterionNone is returned when zero or several are set.
func (l Leg) Criterion() Criterion {
	n := 0
	c := CriterionNone
	if l.TargetDelta != nil {
		n++
		c = CriterionDelta
	}
	if l.StrikeOffset != nil {
		n++
		c = CriterionStrikeOffset
	}
	if l.Strike != nil {
		n++
		c = CriterionStrike
	}
	if n != 1 {
		return CriterionNone
	}
	return c
}

// MovingAverageCross requires the short SMA of the underlying to be above the long SMA.
type MovingAverageCross struct {
	Short int `json:"short" yaml:"short"`
	Long  int `json:"long" yaml:"long"`
}

// EntryRules gate position opening. All configured rules must pass.
type EntryRules struct {
	DaysOfWeek             []int               `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty"` // ISO, 1=Mon..7=Sun
	IVRankMin              *float64            `json:"iv_rank_min,omitempty" yaml:"iv_rank_min,omitempty"`
	IVRankLookbackDays     int                 `json:"iv_rank_lookback_days,omitempty" yaml:"iv_rank_lookback_days,omitempty"`
	MovingAverageCross     *MovingAverageCross `json:"moving_average_cross,omitempty" yaml:"moving_average_cross,omitempty"`
	AllowAdditionalEntries bool                `json:"allow_additional_entries,omitempty" yaml:"allow_additional_entries,omitempty"`
	TimeOfDay              string              `json:"time_of_day,omitempty" yaml:"time_of_day,omitempty"` // accepted, end-of-day data ignores it
}

// Lookback returns the IV rank window in observations.
func (r EntryRules) Lookback() int {
	if r.IVRankLookbackDays <= 0 {
		return DefaultIVRankLookbackDays
	}
	return r.IVRankLookbackDays
}

// ExitRules close open trades. The first rule that fires wins.
type ExitRules struct {
	ProfitTargetPct *float64 `json:"profit_target_pct,omitempty" yaml:"profit_target_pct,omitempty"`
	StopLossPct     *float64 `json:"stop_loss_pct,omitempty" yaml:"stop_loss_pct,omitempty"`
	DTEToExit       *int     `json:"dte_to_exit,omitempty" yaml:"dte_to_exit,omitempty"`
	MaxHoldDays     *int     `json:"max_hold_days,omitempty" yaml:"max_hold_days,omitempty"`
	Roll            bool     `json:"roll,omitempty" yaml:"roll,omitempty"`
}

// Settings holds run-level parameters.
type Settings struct {
	RiskFreeRate          *float64 `json:"risk_free_rate,omitempty" yaml:"risk_free_rate,omitempty"`
	ContractMultiplier    *float64 `json:"contract_multiplier,omitempty" yaml:"contract_multiplier,omitempty"`
	InitialCapital        *float64 `json:"initial_capital,omitempty" yaml:"initial_capital,omitempty"`
	CommissionPerContract float64  `json:"commission_per_contract,omitempty" yaml:"commission_per_contract,omitempty"`
	SlippagePct           float64  `json:"slippage_pct,omitempty" yaml:"slippage_pct,omitempty"` // fraction of mid
}

func (s Settings) Rate() float64 {
	if s.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *s.RiskFreeRate
}

func (s Settings) Multiplier() float64 {
	if s.ContractMultiplier == nil {
		return DefaultContractMultiplier
	}
	return *s.ContractMultiplier
}

func (s Settings) Capital() float64 {
	if s.InitialCapital == nil {
		return DefaultInitialCapital
	}
	return *s.InitialCapital
}

// WithDefaults fills unset fields from d.
func (s Settings) WithDefaults(d Settings) Settings {
	if s.RiskFreeRate == nil {
		s.RiskFreeRate = cloneFloat(d.RiskFreeRate)
	}
	if s.ContractMultiplier == nil {
		s.ContractMultiplier = cloneFloat(d.ContractMultiplier)
	}
	if s.InitialCapital == nil {
		s.InitialCapital = cloneFloat(d.InitialCapital)
	}
	if s.CommissionPerContract == 0 {
		s.CommissionPerContract = d.CommissionPerContract
	}
	if s.SlippagePct == 0 {
		s.SlippagePct = d.SlippagePct
	}
	return s
}

// StrategyDefinition is the declarative description of a strategy.
// The engine never mutates a definition it is given.
type StrategyDefinition struct {
	UnderlyingTicker string     `json:"underlying_ticker" yaml:"underlying_ticker"`
	Legs             []Leg      `json:"legs" yaml:"legs"`
	EntryRules       EntryRules `json:"entry_rules" yaml:"entry_rules"`
	ExitRules        ExitRules  `json:"exit_rules" yaml:"exit_rules"`
	Settings         Settings   `json:"settings" yaml:"settings"`
}

// Clone returns a deep copy of d.
func (d StrategyDefinition) Clone() StrategyDefinition {
	c := d
	c.Legs = make([]Leg, len(d.Legs))
	for i, l := range d.Legs {
		l.TargetDelta = cloneFloat(l.TargetDelta)
		l.StrikeOffset = cloneFloat(l.StrikeOffset)
		l.Strike = cloneFloat(l.Strike)
		l.DTETolerance = cloneInt(l.DTETolerance)
		c.Legs[i] = l
	}
	if d.EntryRules.DaysOfWeek != nil {
		c.EntryRules.DaysOfWeek = append([]int(nil), d.EntryRules.DaysOfWeek...)
	}
	c.EntryRules.IVRankMin = cloneFloat(d.EntryRules.IVRankMin)
	if d.EntryRules.MovingAverageCross != nil {
		mac := *d.EntryRules.MovingAverageCross
		c.EntryRules.MovingAverageCross = &mac
	}
	c.ExitRules.ProfitTargetPct = cloneFloat(d.ExitRules.ProfitTargetPct)
	c.ExitRules.StopLossPct = cloneFloat(d.ExitRules.StopLossPct)
	c.ExitRules.DTEToExit = cloneInt(d.ExitRules.DTEToExit)
	c.ExitRules.MaxHoldDays = cloneInt(d.ExitRules.MaxHoldDays)
	c.Settings.RiskFreeRate = cloneFloat(d.Settings.RiskFreeRate)
	c.Settings.ContractMultiplier = cloneFloat(d.Settings.ContractMultiplier)
	c.Settings.InitialCapital = cloneFloat(d.Settings.InitialCapital)
	return c
}

// Strategy is a named, persisted StrategyDefinition.
// Corresponds to strategies table.
type Strategy struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Definition  StrategyDefinition `json:"definition"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Float returns a pointer to v, for building definitions in code.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
