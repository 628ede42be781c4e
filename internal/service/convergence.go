package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pollkeeper/internal/apperr"
	"pollkeeper/internal/models"
	"pollkeeper/internal/observability"
	"pollkeeper/internal/poll"
	"pollkeeper/internal/reconcile"
	"pollkeeper/internal/repository"
)

// ConvergenceService starts indexer watches after state-changing
// transactions and fans the outcome out: audit row, fresh sync, cache
// invalidation and a stream event.
type ConvergenceService struct {
	Watcher  *reconcile.Watcher
	Repo     repository.ConvergenceRepository
	Sync     *PollSyncService
	Hub      *EventHub
	Settings *SystemSettingsService
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	// BaseCtx outlives the request that started the watch.
	BaseCtx context.Context

	mu      sync.Mutex
	handles map[watchKey]reconcile.CancelHandle
}

// watchKey scopes a poll id to its chain; every chain numbers polls from zero.
type watchKey struct {
	chain  string
	pollID uint64
}

func keyOf(chain string, pollID uint64) watchKey {
	return watchKey{chain: strings.ToLower(strings.TrimSpace(chain)), pollID: pollID}
}

type StartWatchRequest struct {
	PollID  uint64 `json:"poll_id"`
	Chain   string `json:"chain" binding:"required"`
	Creator string `json:"creator" binding:"required"`
	// Optional target state; presence alone converges when both are nil.
	ExpectStatus *poll.Status `json:"expect_status,omitempty"`
	ExpectActive *bool        `json:"expect_active,omitempty"`
}

func (r StartWatchRequest) match() func(poll.Record) bool {
	if r.ExpectStatus == nil && r.ExpectActive == nil {
		return nil
	}
	status, active := r.ExpectStatus, r.ExpectActive
	return func(rec poll.Record) bool {
		if status != nil && rec.Status != *status {
			return false
		}
		if active != nil && rec.IsActive != *active {
			return false
		}
		return true
	}
}

func (s *ConvergenceService) Start(ctx context.Context, req StartWatchRequest) (reconcile.PendingConvergence, error) {
	if s == nil || s.Watcher == nil {
		return reconcile.PendingConvergence{}, errors.New("convergence watcher not configured")
	}
	req.Chain = strings.ToLower(strings.TrimSpace(req.Chain))
	req.Creator = poll.NormalizeCreator(req.Creator)
	if req.Chain == "" || req.Creator == "" {
		return reconcile.PendingConvergence{}, errors.New("chain and creator are required")
	}
	base := s.BaseCtx
	if base == nil {
		base = context.Background()
	}

	// The audit row exists before the watch can finish.
	id := uuid.NewString()
	started := time.Now().UTC()
	if s.Repo != nil {
		row := &models.ConvergenceWatch{
			ID:          id,
			PollID:      req.PollID,
			Chain:       req.Chain,
			Creator:     req.Creator,
			Outcome:     OutcomePending,
			MaxAttempts: s.Watcher.Budget(),
			StartedAt:   started,
		}
		if err := s.Repo.InsertConvergenceWatch(ctx, row); err != nil {
			s.logWarn("insert convergence watch failed", err, zap.Uint64("poll_id", req.PollID))
		}
	}

	target := reconcile.Target{ID: id, PollID: req.PollID, Chain: req.Chain, Creator: req.Creator, Match: req.match()}
	h, err := s.Watcher.Await(base, target, s.onConverged, s.onTimeout)
	if err != nil {
		s.finishRow(ctx, id, OutcomeCancelled, 0)
		return reconcile.PendingConvergence{}, err
	}

	s.mu.Lock()
	if s.handles == nil {
		s.handles = map[watchKey]reconcile.CancelHandle{}
	}
	key := keyOf(req.Chain, req.PollID)
	if prev, ok := s.handles[key]; ok && prev.ID != h.ID {
		s.finishRow(ctx, prev.ID, OutcomeCancelled, 0)
		delete(s.handles, key)
	}
	// Holding mu keeps release from running between lookup and store.
	state, live := s.lookup(h.ID)
	if live {
		s.handles[key] = h
	}
	s.mu.Unlock()

	s.Metrics.RecordConvergence("", len(s.Watcher.Pending()))
	if !live {
		state = reconcile.PendingConvergence{
			ID:          h.ID,
			PollID:      req.PollID,
			Chain:       req.Chain,
			Creator:     req.Creator,
			StartedAt:   started,
			MaxAttempts: s.Watcher.Budget(),
		}
	}
	return state, nil
}

// Cancel stops the live watch for a poll on a chain. It reports false when
// none exists.
func (s *ConvergenceService) Cancel(ctx context.Context, chain string, pollID uint64) bool {
	if s == nil {
		return false
	}
	key := keyOf(chain, pollID)
	s.mu.Lock()
	h, ok := s.handles[key]
	delete(s.handles, key)
	s.mu.Unlock()
	if !ok {
		return false
	}
	_, live := s.lookup(h.ID)
	h.Cancel()
	if live {
		s.finishRow(ctx, h.ID, OutcomeCancelled, 0)
		s.Metrics.RecordConvergence(OutcomeCancelled, len(s.Watcher.Pending()))
	}
	return live
}

func (s *ConvergenceService) Pending() []reconcile.PendingConvergence {
	if s == nil || s.Watcher == nil {
		return nil
	}
	return s.Watcher.Pending()
}

func (s *ConvergenceService) History(ctx context.Context, params repository.ListConvergenceWatchesParams) ([]models.ConvergenceWatch, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("repo unavailable")
	}
	return s.Repo.ListConvergenceWatches(ctx, params)
}

func (s *ConvergenceService) onConverged(p reconcile.PendingConvergence) {
	ctx := s.ctx()
	s.release(p)
	s.finishRow(ctx, p.ID, OutcomeConverged, p.AttemptsMade)
	if s.Sync != nil {
		s.Sync.Invalidate(ctx, p.Creator, p.Chain)
		if _, err := s.Sync.Sync(ctx, p.Creator, p.Chain); err != nil {
			s.logWarn("post-convergence sync failed", err, zap.Uint64("poll_id", p.PollID))
		}
	}
	s.publish(p, OutcomeConverged, "")
}

func (s *ConvergenceService) onTimeout(p reconcile.PendingConvergence) {
	ctx := s.ctx()
	s.release(p)
	s.finishRow(ctx, p.ID, OutcomeTimeout, p.AttemptsMade)
	err := apperr.New(apperr.KindConvergenceTimeout, "await_convergence", "indexer has not caught up; it may take a few more minutes").WithPoll(p.PollID)
	if s.Logger != nil {
		s.Logger.Info("convergence timed out",
			zap.Uint64("poll_id", p.PollID),
			zap.String("creator", p.Creator),
			zap.Int("attempts", p.AttemptsMade),
		)
	}
	s.publish(p, OutcomeTimeout, err.Error())
}

func (s *ConvergenceService) publish(p reconcile.PendingConvergence, outcome, msg string) {
	s.Metrics.RecordConvergence(outcome, len(s.Watcher.Pending()))
	if !s.Settings.IsEnabled(s.ctx(), FeatureConvergenceStream, true) {
		return
	}
	s.Hub.Publish(ConvergenceEvent{
		WatchID:      p.ID,
		PollID:       p.PollID,
		Chain:        p.Chain,
		Creator:      p.Creator,
		Outcome:      outcome,
		AttemptsMade: p.AttemptsMade,
		MaxAttempts:  p.MaxAttempts,
		Message:      msg,
		At:           time.Now().UTC(),
	})
}

func (s *ConvergenceService) release(p reconcile.PendingConvergence) {
	s.mu.Lock()
	key := keyOf(p.Chain, p.PollID)
	if h, ok := s.handles[key]; ok && h.ID == p.ID {
		delete(s.handles, key)
	}
	s.mu.Unlock()
}

func (s *ConvergenceService) lookup(id string) (reconcile.PendingConvergence, bool) {
	for _, p := range s.Watcher.Pending() {
		if p.ID == id {
			return p, true
		}
	}
	return reconcile.PendingConvergence{}, false
}

func (s *ConvergenceService) finishRow(ctx context.Context, id, outcome string, attempts int) {
	if s.Repo == nil {
		return
	}
	if err := s.Repo.FinishConvergenceWatch(ctx, id, outcome, attempts, time.Now().UTC()); err != nil {
		s.logWarn("finish convergence watch failed", err, zap.String("watch_id", id), zap.String("outcome", outcome))
	}
}

func (s *ConvergenceService) ctx() context.Context {
	if s.BaseCtx != nil && s.BaseCtx.Err() == nil {
		return s.BaseCtx
	}
	return context.Background()
}

func (s *ConvergenceService) logWarn(msg string, err error, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, append(fields, zap.Error(err))...)
}
