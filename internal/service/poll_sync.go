package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"pollkeeper/internal/cache"
	"pollkeeper/internal/config"
	"pollkeeper/internal/distribution"
	"pollkeeper/internal/models"
	"pollkeeper/internal/observability"
	"pollkeeper/internal/poll"
	"pollkeeper/internal/reconcile"
	"pollkeeper/internal/repository"
)

type Reconciler interface {
	Reconcile(ctx context.Context, creator, chain string) (reconcile.Result, error)
}

// PollSyncService runs reconcile cycles and keeps the last view of each
// creator persisted and cached.
type PollSyncService struct {
	Reconciler Reconciler
	Repo       repository.SnapshotRepository
	Cache      cache.Store
	CacheTTL   time.Duration
	Settings   *SystemSettingsService
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Tracked    []config.TrackedCreator
}

type SyncResult struct {
	Result  reconcile.Result     `json:"result"`
	Pending distribution.Summary `json:"pending"`
	Saved   int                  `json:"saved"`
}

type syncStats struct {
	IndexerCount    int   `json:"indexer_count"`
	LedgerOnlyCount int   `json:"ledger_only_count"`
	PendingCount    int   `json:"pending_count"`
	Degraded        bool  `json:"degraded"`
	DurationMs      int64 `json:"duration_ms"`
}

func SyncScope(chain, creator string) string {
	return "reconcile:" + strings.ToLower(strings.TrimSpace(chain)) + ":" + poll.NormalizeCreator(creator)
}

// Sync reconciles, classifies and persists one creator's polls. Persistence
// failures are logged; the fresh view is still returned.
func (s *PollSyncService) Sync(ctx context.Context, creator, chain string) (SyncResult, error) {
	if s == nil || s.Reconciler == nil {
		return SyncResult{}, errors.New("reconciler not configured")
	}
	creator = poll.NormalizeCreator(creator)
	chain = strings.ToLower(strings.TrimSpace(chain))
	start := time.Now()
	res, err := s.Reconciler.Reconcile(ctx, creator, chain)
	s.Metrics.RecordReconcile(chain, time.Since(start), err)
	if err != nil {
		s.saveFailure(ctx, chain, creator, err)
		return SyncResult{}, err
	}

	summary := distribution.Classify(res.Records)
	out := SyncResult{Result: res, Pending: summary}
	s.Metrics.RecordCoverage(chain, res.Coverage.IndexerCount, res.Coverage.LedgerOnlyCount, res.Degraded, summary.PendingCount)

	saved, err := s.persist(ctx, chain, creator, res, time.Since(start), summary)
	if err != nil {
		s.logWarn("persist snapshot failed", err, zap.String("creator", creator), zap.String("chain", chain))
	}
	out.Saved = saved

	if s.cacheEnabled(ctx) {
		if err := cache.SetJSON(ctx, s.Cache, cache.ResultKey(chain, creator), res, s.CacheTTL); err != nil {
			s.logWarn("cache result failed", err, zap.String("creator", creator))
		}
	}
	return out, nil
}

// View serves the cached view when allowed, reconciling on a miss.
func (s *PollSyncService) View(ctx context.Context, creator, chain string, fresh bool) (reconcile.Result, bool, error) {
	if !fresh && s.cacheEnabled(ctx) {
		cached, ok, err := cache.GetJSON[reconcile.Result](ctx, s.Cache, cache.ResultKey(chain, creator))
		if err != nil {
			s.logWarn("cache lookup failed", err, zap.String("creator", creator))
		}
		s.Metrics.RecordCacheLookup(ok)
		if ok {
			return cached, true, nil
		}
	}
	out, err := s.Sync(ctx, creator, chain)
	if err != nil {
		return reconcile.Result{}, false, err
	}
	return out.Result, false, nil
}

// PendingReport adds the distribution protocol of each pending poll.
type PendingReport struct {
	distribution.Summary
	Protocols map[uint64]distribution.Protocol `json:"protocols"`
}

// Pending classifies the current view of a creator.
func (s *PollSyncService) Pending(ctx context.Context, creator, chain string) (PendingReport, error) {
	res, _, err := s.View(ctx, creator, chain, false)
	if err != nil {
		return PendingReport{}, err
	}
	out := PendingReport{
		Summary:   distribution.Classify(res.Records),
		Protocols: map[uint64]distribution.Protocol{},
	}
	for _, id := range out.PendingIDs {
		if rec, ok := res.Find(id); ok {
			out.Protocols[id] = distribution.ProtocolFor(rec)
		}
	}
	return out, nil
}

func (s *PollSyncService) Invalidate(ctx context.Context, creator, chain string) {
	if s == nil || s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, cache.ResultKey(chain, creator)); err != nil {
		s.logWarn("cache invalidate failed", err, zap.String("creator", creator))
	}
}

// RunTracked syncs every configured creator. It is the cron job body.
func (s *PollSyncService) RunTracked(ctx context.Context) {
	if s == nil {
		return
	}
	if !s.Settings.IsEnabled(ctx, FeatureTrackedSync, true) {
		return
	}
	for _, tc := range s.Tracked {
		if ctx.Err() != nil {
			return
		}
		out, err := s.Sync(ctx, tc.Creator, tc.Chain)
		if err != nil {
			s.logWarn("tracked sync failed", err, zap.String("creator", tc.Creator), zap.String("chain", tc.Chain))
			continue
		}
		if s.Logger != nil {
			s.Logger.Info("tracked sync ok",
				zap.String("creator", tc.Creator),
				zap.String("chain", tc.Chain),
				zap.Int("records", len(out.Result.Records)),
				zap.Int("pending", out.Pending.PendingCount),
				zap.Bool("degraded", out.Result.Degraded),
			)
		}
	}
}

func (s *PollSyncService) Snapshots(ctx context.Context, params repository.ListPollSnapshotsParams) ([]models.PollSnapshot, int64, error) {
	if s == nil || s.Repo == nil {
		return nil, 0, errors.New("repo unavailable")
	}
	items, err := s.Repo.ListPollSnapshots(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.CountPollSnapshots(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *PollSyncService) SyncStates(ctx context.Context) ([]models.SyncState, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("repo unavailable")
	}
	return s.Repo.ListSyncStates(ctx)
}

func (s *PollSyncService) persist(ctx context.Context, chain, creator string, res reconcile.Result, took time.Duration, summary distribution.Summary) (int, error) {
	if s.Repo == nil {
		return 0, nil
	}
	now := time.Now().UTC()
	pending := make(map[uint64]struct{}, len(summary.PendingIDs))
	for _, id := range summary.PendingIDs {
		pending[id] = struct{}{}
	}
	rows := make([]models.PollSnapshot, 0, len(res.Records))
	var highest *uint64
	for _, rec := range res.Records {
		_, requires := pending[rec.ID]
		row, err := snapshotFromRecord(chain, rec, res.IsLedgerOnly(rec.ID), requires, now)
		if err != nil {
			s.logWarn("skip snapshot", err, zap.Uint64("poll_id", rec.ID))
			continue
		}
		rows = append(rows, row)
		if highest == nil || rec.ID > *highest {
			id := rec.ID
			highest = &id
		}
	}

	stats, _ := json.Marshal(syncStats{
		IndexerCount:    res.Coverage.IndexerCount,
		LedgerOnlyCount: res.Coverage.LedgerOnlyCount,
		PendingCount:    summary.PendingCount,
		Degraded:        res.Degraded,
		DurationMs:      took.Milliseconds(),
	})
	state := &models.SyncState{
		Scope:         SyncScope(chain, creator),
		LastSuccessAt: &now,
		LastAttemptAt: &now,
		Degraded:      res.Degraded,
		StatsJSON:     datatypes.JSON(stats),
	}
	if highest != nil {
		cursor := strconv.FormatUint(*highest, 10)
		state.Cursor = &cursor
	}
	if res.IndexerErr != nil {
		msg := res.IndexerErr.Error()
		state.LastError = &msg
	}

	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.Repo.UpsertPollSnapshotsTx(ctx, tx, rows); err != nil {
			return err
		}
		return s.Repo.SaveSyncStateTx(ctx, tx, state)
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *PollSyncService) saveFailure(ctx context.Context, chain, creator string, cause error) {
	if s.Repo == nil {
		return
	}
	scope := SyncScope(chain, creator)
	prev, err := s.Repo.GetSyncState(ctx, scope)
	if err != nil {
		s.logWarn("load sync state failed", err, zap.String("scope", scope))
		return
	}
	now := time.Now().UTC()
	msg := cause.Error()
	state := &models.SyncState{Scope: scope, LastAttemptAt: &now, LastError: &msg}
	if prev != nil {
		state.Cursor = prev.Cursor
		state.LastSuccessAt = prev.LastSuccessAt
		state.Degraded = prev.Degraded
		state.StatsJSON = prev.StatsJSON
	}
	if err := s.Repo.SaveSyncStateTx(ctx, nil, state); err != nil {
		s.logWarn("save sync state failed", err, zap.String("scope", scope))
	}
}

func (s *PollSyncService) cacheEnabled(ctx context.Context) bool {
	return s.Cache != nil && s.Settings.IsEnabled(ctx, FeatureResultCache, true)
}

func snapshotFromRecord(chain string, rec poll.Record, ledgerOnly, requiresAction bool, now time.Time) (models.PollSnapshot, error) {
	options, err := json.Marshal(rec.Options)
	if err != nil {
		return models.PollSnapshot{}, err
	}
	votes, err := json.Marshal(rec.Votes)
	if err != nil {
		return models.PollSnapshot{}, err
	}
	funding := "0"
	if rec.TotalFunding != nil {
		funding = rec.TotalFunding.String()
	}
	source := poll.SourceIndexer
	if ledgerOnly {
		source = poll.SourceLedger
	}
	if !rec.DistributionMode.Valid() || !rec.FundingType.Valid() || !rec.Status.Valid() || !rec.VotingType.Valid() {
		return models.PollSnapshot{}, fmt.Errorf("poll %d: enum out of range", rec.ID)
	}
	return models.PollSnapshot{
		Chain:            chain,
		PollID:           rec.ID,
		Creator:          poll.NormalizeCreator(rec.Creator),
		Question:         rec.Question,
		Options:          datatypes.JSON(options),
		Votes:            datatypes.JSON(votes),
		EndTime:          rec.EndTime,
		IsActive:         rec.IsActive,
		TotalFunding:     funding,
		FundingToken:     rec.FundingToken.Symbol,
		FundingTokenAddr: rec.FundingToken.Address,
		DistributionMode: rec.DistributionMode.String(),
		FundingType:      rec.FundingType.String(),
		Status:           rec.Status.String(),
		VotingType:       rec.VotingType.String(),
		TotalVotesBought: rec.TotalVotesBought,
		VoterCount:       rec.VoterCount,
		Source:           source.String(),
		RequiresAction:   requiresAction,
		PollCreatedAt:    rec.CreatedAt,
		ReconciledAt:     now,
	}, nil
}

func (s *PollSyncService) logWarn(msg string, err error, fields ...zap.Field) {
	if s == nil || s.Logger == nil {
		return
	}
	s.Logger.Warn(msg, append(fields, zap.Error(err))...)
}
