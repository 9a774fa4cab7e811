package dispatcher

import (
	"context"
	"log"
	"sync"
	"time"

	"optionforge/internal/storage"
)

// progressWriteTimeout bounds a single progress write to the run store.
const progressWriteTimeout = 5 * time.Second

// progressWriter persists run progress off the simulation goroutine.
// Updates arriving while a write is in flight are coalesced so only the
// latest value is written next.
type progressWriter struct {
	runs   storage.BacktestRunStore
	runID  string
	logger *log.Logger

	mu    sync.Mutex
	pct   int
	msg   string
	dirty bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newProgressWriter(ctx context.Context, runs storage.BacktestRunStore, runID string, logger *log.Logger) *progressWriter {
	w := &progressWriter{
		runs:   runs,
		runID:  runID,
		logger: logger,
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.loop(ctx)
	return w
}

// set records the latest progress and never blocks on the store.
func (w *progressWriter) set(pct int, msg string) {
	w.mu.Lock()
	w.pct, w.msg, w.dirty = pct, msg, true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// close flushes the pending value and waits for the writer to exit.
func (w *progressWriter) close() {
	close(w.stop)
	<-w.done
}

func (w *progressWriter) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.flush(ctx)
		case <-w.stop:
			w.flush(ctx)
			return
		}
	}
}

func (w *progressWriter) flush(ctx context.Context) {
	w.mu.Lock()
	if !w.dirty {
		w.mu.Unlock()
		return
	}
	pct, msg := w.pct, w.msg
	w.dirty = false
	w.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, progressWriteTimeout)
	defer cancel()
	if err := w.runs.UpdateProgress(writeCtx, w.runID, pct, msg); err != nil {
		w.logger.Printf("Run %s: update progress: %v", w.runID, err)
	}
}
