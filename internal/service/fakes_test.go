package service

import (
	"context"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"pollkeeper/internal/models"
	"pollkeeper/internal/poll"
	"pollkeeper/internal/reconcile"
	"pollkeeper/internal/repository"
)

type memRepo struct {
	mu        sync.Mutex
	settings  map[string]models.SystemSetting
	snapshots map[string]models.PollSnapshot
	states    map[string]models.SyncState
	watches   map[string]models.ConvergenceWatch
}

func newMemRepo() *memRepo {
	return &memRepo{
		settings:  map[string]models.SystemSetting{},
		snapshots: map[string]models.PollSnapshot{},
		states:    map[string]models.SyncState{},
		watches:   map[string]models.ConvergenceWatch{},
	}
}

var _ repository.Repository = (*memRepo)(nil)

func (m *memRepo) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func (m *memRepo) UpsertPollSnapshotsTx(ctx context.Context, tx *gorm.DB, items []models.PollSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		m.snapshots[it.Chain+"/"+strings.TrimSpace(it.Creator)+"/"+itoa(it.PollID)] = it
	}
	return nil
}

func (m *memRepo) ListPollSnapshots(ctx context.Context, params repository.ListPollSnapshotsParams) ([]models.PollSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PollSnapshot
	for _, it := range m.snapshots {
		if params.Chain != "" && it.Chain != params.Chain {
			continue
		}
		if params.Creator != "" && it.Creator != params.Creator {
			continue
		}
		if params.RequiresAction != nil && it.RequiresAction != *params.RequiresAction {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PollID > out[j].PollID })
	return out, nil
}

func (m *memRepo) CountPollSnapshots(ctx context.Context, params repository.ListPollSnapshotsParams) (int64, error) {
	items, err := m.ListPollSnapshots(ctx, params)
	return int64(len(items)), err
}

func (m *memRepo) GetSyncState(ctx context.Context, scope string) (*models.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[scope]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *memRepo) SaveSyncStateTx(ctx context.Context, tx *gorm.DB, state *models.SyncState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.Scope] = *state
	return nil
}

func (m *memRepo) ListSyncStates(ctx context.Context) ([]models.SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SyncState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out, nil
}

func (m *memRepo) InsertConvergenceWatch(ctx context.Context, item *models.ConvergenceWatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watches[item.ID] = *item
	return nil
}

func (m *memRepo) FinishConvergenceWatch(ctx context.Context, id string, outcome string, attempts int, finishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[id]
	if !ok {
		return nil
	}
	w.Outcome = outcome
	w.AttemptsMade = attempts
	w.FinishedAt = &finishedAt
	m.watches[id] = w
	return nil
}

func (m *memRepo) ListConvergenceWatches(ctx context.Context, params repository.ListConvergenceWatchesParams) ([]models.ConvergenceWatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ConvergenceWatch
	for _, w := range m.watches {
		if params.PollID != nil && w.PollID != *params.PollID {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (m *memRepo) watch(id string) models.ConvergenceWatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watches[id]
}

func (m *memRepo) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[item.Key] = *item
	return nil
}

func (m *memRepo) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.settings[key]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (m *memRepo) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.SystemSetting, 0, len(m.settings))
	for _, it := range m.settings {
		out = append(out, it)
	}
	return out, nil
}

type fakeReconciler struct {
	mu    sync.Mutex
	res   reconcile.Result
	err   error
	calls int
}

func (f *fakeReconciler) Reconcile(ctx context.Context, creator, chain string) (reconcile.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return reconcile.Result{}, f.err
	}
	r := f.res
	r.Creator, r.Chain = creator, chain
	return r, nil
}

func (f *fakeReconciler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func itoa(v uint64) string { return strconv.FormatUint(v, 10) }

func bigInt(v int64) *big.Int { return big.NewInt(v) }

func testRecord(id uint64, status poll.Status, mode poll.DistributionMode, funding int64) poll.Record {
	r := poll.Record{
		ID:               id,
		Question:         "q",
		Options:          []string{"a", "b"},
		Votes:            []uint64{1, 2},
		EndTime:          int64(1_700_000_000 + id),
		Creator:          "0xabc",
		FundingType:      poll.FundingSelf,
		Status:           status,
		DistributionMode: mode,
	}
	r.TotalFunding = bigInt(funding)
	return r
}
