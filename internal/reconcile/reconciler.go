// Package reconcile merges the eventually-consistent indexer feed with
// authoritative ledger reads into one poll list, and watches the indexer
// after a state-changing transaction until it catches up.
package reconcile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pollkeeper/internal/apperr"
	"pollkeeper/internal/poll"
)

const (
	DefaultLedgerWindow = 100
	DefaultIndexerLimit = 1000
)

// IndexerQuery is the cheap, paginated, eventually-consistent source.
type IndexerQuery interface {
	PollsByCreator(ctx context.Context, chain, creator string, limit int) ([]poll.Record, error)
}

// LedgerBatchRead is the authoritative source. Poll ids are sequential from
// zero; PollCount is the next id to be assigned.
type LedgerBatchRead interface {
	PollCount(ctx context.Context, chain string) (uint64, error)
	GetPolls(ctx context.Context, chain string, ids []uint64) ([]poll.Record, error)
}

type Reconciler struct {
	Indexer IndexerQuery
	Ledger  LedgerBatchRead
	Logger  *zap.Logger

	// LedgerWindow caps ledger reads to the most recent N poll ids.
	LedgerWindow int
	IndexerLimit int
}

// Reconcile fetches both sources concurrently and merges once both settle.
// An indexer failure degrades the result; a ledger failure is returned as
// LedgerUnavailable since nothing else can stand in for it.
func (r *Reconciler) Reconcile(ctx context.Context, creator, chain string) (Result, error) {
	creator = poll.NormalizeCreator(creator)
	chain = strings.ToLower(strings.TrimSpace(chain))
	if creator == "" {
		return Result{}, fmt.Errorf("creator is required")
	}

	var (
		indexed, ledgered   []poll.Record
		indexerErr, ledgErr error
		g                   errgroup.Group
	)
	g.Go(func() error {
		indexed, indexerErr = r.fetchIndexer(ctx, chain, creator)
		return nil
	})
	g.Go(func() error {
		ledgered, ledgErr = r.fetchLedger(ctx, chain, creator)
		return nil
	})
	_ = g.Wait()

	if ledgErr != nil {
		return Result{}, apperr.Wrap(apperr.KindLedgerUnavailable, "reconcile", ledgErr)
	}
	if indexerErr != nil {
		indexerErr = apperr.Wrap(apperr.KindIndexerUnavailable, "reconcile", indexerErr)
		r.logWarn("indexer fetch failed, using ledger fallback", indexerErr,
			zap.String("creator", creator),
			zap.String("chain", chain),
		)
		indexed = nil
	}

	res := Merge(indexed, indexerErr, ledgered)
	res.Creator = creator
	res.Chain = chain
	if res.Degraded && r.Logger != nil {
		r.Logger.Info("reconcile degraded",
			zap.String("creator", creator),
			zap.String("chain", chain),
			zap.Int("ledger_records", res.LedgerFetched),
			zap.Int("indexer_records", res.IndexerFetched),
		)
	}
	return res, nil
}

func (r *Reconciler) fetchIndexer(ctx context.Context, chain, creator string) ([]poll.Record, error) {
	if r.Indexer == nil {
		return nil, fmt.Errorf("indexer is not configured")
	}
	limit := r.IndexerLimit
	if limit <= 0 {
		limit = DefaultIndexerLimit
	}
	items, err := r.Indexer.PollsByCreator(ctx, chain, creator, limit)
	if err != nil {
		return nil, err
	}
	return r.keepValid(items, creator, poll.SourceIndexer), nil
}

func (r *Reconciler) fetchLedger(ctx context.Context, chain, creator string) ([]poll.Record, error) {
	if r.Ledger == nil {
		return nil, fmt.Errorf("ledger is not configured")
	}
	count, err := r.Ledger.PollCount(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("poll count: %w", err)
	}
	ids := WindowIDs(count, r.window())
	if len(ids) == 0 {
		return nil, nil
	}
	items, err := r.Ledger.GetPolls(ctx, chain, ids)
	if err != nil {
		return nil, fmt.Errorf("get polls: %w", err)
	}
	return r.keepValid(items, creator, poll.SourceLedger), nil
}

func (r *Reconciler) window() int {
	if r.LedgerWindow <= 0 {
		return DefaultLedgerWindow
	}
	return r.LedgerWindow
}

// keepValid drops records of other creators and records that break the
// poll invariants.
func (r *Reconciler) keepValid(items []poll.Record, creator string, src poll.Source) []poll.Record {
	out := make([]poll.Record, 0, len(items))
	for _, it := range items {
		if poll.NormalizeCreator(it.Creator) != creator {
			continue
		}
		if err := it.Validate(); err != nil {
			r.logWarn("dropping invalid poll record", err, zap.String("source", src.String()), zap.Uint64("poll_id", it.ID))
			continue
		}
		out = append(out, it)
	}
	return out
}

// WindowIDs returns the most recent n poll ids below count, newest first.
func WindowIDs(count uint64, n int) []uint64 {
	if count == 0 || n <= 0 {
		return nil
	}
	size := uint64(n)
	if size > count {
		size = count
	}
	ids := make([]uint64, 0, size)
	for id := count; id > count-size; id-- {
		ids = append(ids, id-1)
	}
	return ids
}

func (r *Reconciler) logWarn(msg string, err error, fields ...zap.Field) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Warn(msg, append(fields, zap.Error(err))...)
}
