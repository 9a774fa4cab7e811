package dispatcher

import (
	"sync"

	"optionforge/internal/domain"
)

// subscriberBuffer is the number of updates held for a slow subscriber.
const subscriberBuffer = 32

// Progress is one update of a run pushed to subscribers.
type Progress struct {
	RunID     string           `json:"run_id"`
	Status    domain.RunStatus `json:"status"`
	State     string           `json:"state,omitempty"`
	Pct       int              `json:"progress_pct"`
	Message   string           `json:"message,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Terminal reports whether no further updates follow.
func (p Progress) Terminal() bool {
	return p.Status.Terminal()
}

// hub fans progress out to subscribers of each run.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan Progress // run_id -> subscriber id -> channel
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan Progress)}
}

func (h *hub) subscribe(runID string) (<-chan Progress, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Progress, subscriberBuffer)
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[int]chan Progress)
	}
	h.subs[runID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[runID][id]; ok {
			delete(h.subs[runID], id)
			if len(h.subs[runID]) == 0 {
				delete(h.subs, runID)
			}
			close(c)
		}
	}
	return ch, cancel
}

// publish sends p without blocking; full subscribers miss the update.
func (h *hub) publish(p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[p.RunID] {
		select {
		case ch <- p:
		default:
		}
	}
}

// finish delivers the terminal update and closes every subscriber of the run.
// The terminal update replaces the oldest buffered one when the buffer is full.
func (h *hub) finish(p Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[p.RunID] {
		select {
		case ch <- p:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
		close(ch)
	}
	delete(h.subs, p.RunID)
}
