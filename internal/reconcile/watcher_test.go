package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollkeeper/internal/poll"
)

// instantClock fires every timer immediately and records the requested delays.
type instantClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *instantClock) Now() time.Time { return time.Unix(1_700_000_000, 0) }

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

// blockingClock never fires, for cancellation tests.
type blockingClock struct{}

func (blockingClock) Now() time.Time                       { return time.Time{} }
func (blockingClock) After(time.Duration) <-chan time.Time { return make(chan time.Time) }

type outcome struct {
	mu        sync.Mutex
	converged []PendingConvergence
	timedOut  []PendingConvergence
	done      chan struct{}
}

func newOutcome() *outcome { return &outcome{done: make(chan struct{}, 4)} }

func (o *outcome) onConverged(p PendingConvergence) {
	o.mu.Lock()
	o.converged = append(o.converged, p)
	o.mu.Unlock()
	o.done <- struct{}{}
}

func (o *outcome) onTimeout(p PendingConvergence) {
	o.mu.Lock()
	o.timedOut = append(o.timedOut, p)
	o.mu.Unlock()
	o.done <- struct{}{}
}

func (o *outcome) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("watch did not finish")
	}
}

func TestWatcherTimesOutAfterMaxAttempts(t *testing.T) {
	idx := &fakeIndexer{}
	clock := &instantClock{}
	w := &Watcher{Indexer: idx, Clock: clock}
	defer w.Close()

	o := newOutcome()
	_, err := w.Await(context.Background(), Target{PollID: 42, Chain: "base", Creator: creator}, o.onConverged, o.onTimeout)
	require.NoError(t, err)
	o.wait(t)

	assert.Empty(t, o.converged)
	require.Len(t, o.timedOut, 1)
	assert.Equal(t, DefaultMaxAttempts, o.timedOut[0].AttemptsMade)
	assert.Equal(t, DefaultMaxAttempts, idx.callCount())
	assert.Empty(t, w.Pending())

	clock.mu.Lock()
	defer clock.mu.Unlock()
	require.Len(t, clock.delays, DefaultMaxAttempts)
	for _, d := range clock.delays {
		assert.Equal(t, 5*time.Second, d)
	}
}

// A closed poll lags in the indexer: the ledger already shows it, the
// indexer picks it up on the third check and the watch stops there.
func TestWatcherConvergesAndStops(t *testing.T) {
	closed := rec(42, 100, "")
	closed.Status = poll.StatusClosed
	idx := &fakeIndexer{items: []poll.Record{closed}, appearAfter: 3}
	w := &Watcher{Indexer: idx, Clock: &instantClock{}}
	defer w.Close()

	o := newOutcome()
	_, err := w.Await(context.Background(), Target{
		PollID:  42,
		Chain:   "base",
		Creator: creator,
		Match:   func(r poll.Record) bool { return r.Status == poll.StatusClosed },
	}, o.onConverged, o.onTimeout)
	require.NoError(t, err)
	o.wait(t)

	require.Len(t, o.converged, 1)
	assert.Empty(t, o.timedOut)
	assert.Equal(t, 3, o.converged[0].AttemptsMade)
	assert.Equal(t, 3, idx.callCount())
}

func TestWatcherCancelSuppressesCallbacks(t *testing.T) {
	w := &Watcher{Indexer: &fakeIndexer{}, Clock: blockingClock{}}

	o := newOutcome()
	h, err := w.Await(context.Background(), Target{PollID: 1, Creator: creator}, o.onConverged, o.onTimeout)
	require.NoError(t, err)
	require.Len(t, w.Pending(), 1)

	h.Cancel()
	h.Cancel()
	assert.Empty(t, w.Pending())
	w.Close()
	assert.Empty(t, o.converged)
	assert.Empty(t, o.timedOut)
}

func TestWatcherReplacesWatchForSamePoll(t *testing.T) {
	w := &Watcher{Indexer: &fakeIndexer{}, Clock: blockingClock{}}

	o := newOutcome()
	first, err := w.Await(context.Background(), Target{PollID: 7, Creator: creator}, o.onConverged, o.onTimeout)
	require.NoError(t, err)
	second, err := w.Await(context.Background(), Target{PollID: 7, Creator: creator}, o.onConverged, o.onTimeout)
	require.NoError(t, err)

	pending := w.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
	assert.NotEqual(t, first.ID, second.ID)

	// The stale handle must not cancel its replacement.
	first.Cancel()
	assert.Len(t, w.Pending(), 1)

	w.Close()
	assert.Empty(t, w.Pending())
	_, err = w.Await(context.Background(), Target{PollID: 8}, nil, nil)
	assert.ErrorIs(t, err, ErrWatcherClosed)
}

func TestWatcherKeepsSamePollIDOnOtherChains(t *testing.T) {
	w := &Watcher{Indexer: &fakeIndexer{}, Clock: blockingClock{}}
	defer w.Close()

	o := newOutcome()
	onBase, err := w.Await(context.Background(), Target{PollID: 42, Chain: "base", Creator: creator}, o.onConverged, o.onTimeout)
	require.NoError(t, err)
	_, err = w.Await(context.Background(), Target{PollID: 42, Chain: "Polygon", Creator: creator}, o.onConverged, o.onTimeout)
	require.NoError(t, err)

	pending := w.Pending()
	require.Len(t, pending, 2)
	chains := []string{pending[0].Chain, pending[1].Chain}
	assert.ElementsMatch(t, []string{"base", "polygon"}, chains)

	onBase.Cancel()
	pending = w.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "polygon", pending[0].Chain)
}
