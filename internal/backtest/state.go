package backtest

// State is a step of the per-run state machine.
type State string

const (
	StateInitializing     State = "INITIALIZING"
	StateFetchingData     State = "FETCHING_DATA"
	StateSimulating       State = "SIMULATING"
	StateComputingMetrics State = "COMPUTING_METRICS"
	StateDone             State = "DONE"
	StateFailed           State = "FAILED"
)

// StateFunc observes state transitions of a run.
type StateFunc func(State)
