package service

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	OutcomePending   = "pending"
	OutcomeConverged = "converged"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
)

// ConvergenceEvent is pushed to stream subscribers when a watch finishes.
type ConvergenceEvent struct {
	WatchID      string    `json:"watch_id"`
	PollID       uint64    `json:"poll_id"`
	Chain        string    `json:"chain"`
	Creator      string    `json:"creator"`
	Outcome      string    `json:"outcome"`
	AttemptsMade int       `json:"attempts_made"`
	MaxAttempts  int       `json:"max_attempts"`
	Message      string    `json:"message,omitempty"`
	At           time.Time `json:"at"`
}

// EventHub fans convergence events out to subscribers. Slow subscribers
// lose events; Publish never blocks.
type EventHub struct {
	mu      sync.RWMutex
	subs    map[chan ConvergenceEvent]struct{}
	dropped uint64
}

func NewEventHub() *EventHub {
	return &EventHub{subs: map[chan ConvergenceEvent]struct{}{}}
}

func (h *EventHub) Subscribe(buf int) (<-chan ConvergenceEvent, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan ConvergenceEvent, buf)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *EventHub) Publish(ev ConvergenceEvent) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			atomic.AddUint64(&h.dropped, 1)
		}
	}
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *EventHub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}
