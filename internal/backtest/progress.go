package backtest

import (
	"log"
)

// ProgressFunc receives a completion percentage (0-100) and a short status.
// It is called synchronously from the run and must not block.
type ProgressFunc func(pct int, msg string)

// Progress milestones.
const (
	progressStart      = 0
	progressFetchStart = 5
	progressFetchDone  = 20
	progressSimStart   = 30
	progressSimEnd     = 80
	progressComplete   = 100
)

// progressReporter keeps reported percentages non-decreasing and isolates the
// run from callback panics.
type progressReporter struct {
	fn     ProgressFunc
	last   int
	logger *log.Logger
}

func newProgressReporter(fn ProgressFunc, logger *log.Logger) *progressReporter {
	return &progressReporter{fn: fn, last: -1, logger: logger}
}

func (p *progressReporter) report(pct int, msg string) {
	if pct < p.last {
		pct = p.last
	}
	if pct > 100 {
		pct = 100
	}
	p.last = pct
	if p.fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("progress callback panicked at %d%%: %v", pct, r)
		}
	}()
	p.fn(pct, msg)
}

// simulating reports per-day progress between the simulation milestones,
// only when the integer percentage advances.
func (p *progressReporter) simulating(done, total int, msg string) {
	if total <= 0 {
		return
	}
	pct := progressSimStart + (progressSimEnd-progressSimStart)*done/total
	if pct <= p.last {
		return
	}
	p.report(pct, msg)
}
