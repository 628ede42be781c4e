package reconcile

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollkeeper/internal/poll"
)

const (
	DefaultInitialDelay = 5 * time.Second
	DefaultInterval     = 5 * time.Second
	DefaultMaxAttempts  = 12
)

var ErrWatcherClosed = errors.New("convergence watcher is closed")

// Clock is injected so tests can drive the retry schedule.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Target names the poll to wait for. Match narrows convergence to a record
// state; a nil Match waits for presence only. ID is generated when empty.
type Target struct {
	ID      string
	PollID  uint64
	Chain   string
	Creator string
	Match   func(poll.Record) bool
}

// PendingConvergence is the state of one outstanding watch.
type PendingConvergence struct {
	ID           string        `json:"id"`
	PollID       uint64        `json:"poll_id"`
	Chain        string        `json:"chain"`
	Creator      string        `json:"creator"`
	StartedAt    time.Time     `json:"started_at"`
	AttemptsMade int           `json:"attempts_made"`
	MaxAttempts  int           `json:"max_attempts"`
	Interval     time.Duration `json:"interval"`
}

type Callback func(PendingConvergence)

type CancelHandle struct {
	ID     string
	Chain  string
	PollID uint64
	w      *Watcher
}

// Cancel stops the watch without invoking either callback. Cancelling an
// already finished or replaced watch is a no-op.
func (h CancelHandle) Cancel() {
	if h.w == nil {
		return
	}
	h.w.cancel(watchKey{chain: h.Chain, pollID: h.PollID}, h.ID)
}

// Poll ids restart at zero on every chain scope.
type watchKey struct {
	chain  string
	pollID uint64
}

type watch struct {
	state  PendingConvergence
	target Target
	cancel context.CancelFunc
}

// Watcher re-queries the indexer after a state-changing transaction until
// the poll shows up or the attempt budget runs out. At most one watch per
// poll per chain is live; a new Await for the same poll replaces the old one.
type Watcher struct {
	Indexer      IndexerQuery
	Logger       *zap.Logger
	Clock        Clock
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int

	mu      sync.Mutex
	watches map[watchKey]*watch
	closed  bool
	wg      sync.WaitGroup
}

// Await starts a watch. Exactly one of onConverged or onTimeout runs, on
// the watcher goroutine, unless the watch is cancelled or replaced first.
func (w *Watcher) Await(ctx context.Context, t Target, onConverged, onTimeout Callback) (CancelHandle, error) {
	t.Creator = poll.NormalizeCreator(t.Creator)
	t.Chain = strings.ToLower(strings.TrimSpace(t.Chain))
	key := watchKey{chain: t.Chain, pollID: t.PollID}
	clock := w.clock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return CancelHandle{}, ErrWatcherClosed
	}
	if w.watches == nil {
		w.watches = make(map[watchKey]*watch)
	}
	if prev, ok := w.watches[key]; ok {
		prev.cancel()
		delete(w.watches, key)
	}
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	wctx, cancel := context.WithCancel(ctx)
	cur := &watch{
		state: PendingConvergence{
			ID:          id,
			PollID:      t.PollID,
			Chain:       t.Chain,
			Creator:     t.Creator,
			StartedAt:   clock.Now(),
			MaxAttempts: w.maxAttempts(),
			Interval:    w.interval(),
		},
		target: t,
		cancel: cancel,
	}
	w.watches[key] = cur
	w.wg.Add(1)
	w.mu.Unlock()

	go w.run(wctx, cur, onConverged, onTimeout)
	return CancelHandle{ID: cur.state.ID, Chain: t.Chain, PollID: t.PollID, w: w}, nil
}

func (w *Watcher) run(ctx context.Context, cur *watch, onConverged, onTimeout Callback) {
	defer w.wg.Done()
	defer cur.cancel()
	clock := w.clock()

	delay := w.initialDelay()
	for attempt := 1; attempt <= cur.state.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-clock.After(delay):
		}
		delay = cur.state.Interval

		found := w.check(ctx, cur)
		w.mu.Lock()
		cur.state.AttemptsMade = attempt
		w.mu.Unlock()
		if found {
			w.finish(ctx, cur, onConverged)
			return
		}
	}
	w.finish(ctx, cur, onTimeout)
}

// finish fires cb only if the watch is still the live entry for its poll.
// Removal happens under the lock, which is what makes cancel and finish
// mutually exclusive.
func (w *Watcher) finish(ctx context.Context, cur *watch, cb Callback) {
	w.mu.Lock()
	key := cur.key()
	live := ctx.Err() == nil && w.watches[key] == cur
	if live {
		delete(w.watches, key)
	}
	state := cur.state
	w.mu.Unlock()
	if !live {
		return
	}
	if w.Logger != nil {
		w.Logger.Info("convergence watch finished",
			zap.Uint64("poll_id", state.PollID),
			zap.Int("attempts", state.AttemptsMade),
			zap.Int("max_attempts", state.MaxAttempts),
		)
	}
	if cb != nil {
		cb(state)
	}
}

func (w *Watcher) check(ctx context.Context, cur *watch) bool {
	if w.Indexer == nil {
		return false
	}
	items, err := w.Indexer.PollsByCreator(ctx, cur.target.Chain, cur.target.Creator, DefaultIndexerLimit)
	if err != nil {
		if ctx.Err() == nil && w.Logger != nil {
			w.Logger.Warn("convergence check failed", zap.Uint64("poll_id", cur.target.PollID), zap.Error(err))
		}
		return false
	}
	for _, it := range items {
		if it.ID != cur.target.PollID {
			continue
		}
		if cur.target.Match == nil || cur.target.Match(it) {
			return true
		}
	}
	return false
}

func (w *Watcher) cancel(key watchKey, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur, ok := w.watches[key]
	if !ok || cur.state.ID != id {
		return
	}
	cur.cancel()
	delete(w.watches, key)
}

func (cur *watch) key() watchKey {
	return watchKey{chain: cur.state.Chain, pollID: cur.state.PollID}
}

// Pending returns a snapshot of live watches.
func (w *Watcher) Pending() []PendingConvergence {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]PendingConvergence, 0, len(w.watches))
	for _, cur := range w.watches {
		out = append(out, cur.state)
	}
	return out
}

// Close cancels every watch, without callbacks, and waits for the
// goroutines to exit. Await fails afterwards.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	for id, cur := range w.watches {
		cur.cancel()
		delete(w.watches, id)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

// Budget is the number of checks each watch gets.
func (w *Watcher) Budget() int {
	return w.maxAttempts()
}

func (w *Watcher) clock() Clock {
	if w.Clock == nil {
		return realClock{}
	}
	return w.Clock
}

func (w *Watcher) initialDelay() time.Duration {
	if w.InitialDelay <= 0 {
		return DefaultInitialDelay
	}
	return w.InitialDelay
}

func (w *Watcher) interval() time.Duration {
	if w.Interval <= 0 {
		return DefaultInterval
	}
	return w.Interval
}

func (w *Watcher) maxAttempts() int {
	if w.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return w.MaxAttempts
}
