package reconcile

import (
	"sort"

	"pollkeeper/internal/poll"
)

type Coverage struct {
	IndexerCount    int `json:"indexer_count"`
	LedgerOnlyCount int `json:"ledger_only_count"`
}

// Result is rebuilt from both source fetches on every cycle and never
// mutated in place.
type Result struct {
	Creator  string        `json:"creator"`
	Chain    string        `json:"chain"`
	Records  []poll.Record `json:"records"`
	Coverage Coverage      `json:"source_coverage"`
	Degraded bool          `json:"is_indexer_degraded"`
	// LedgerOnly lists polls the indexer has not caught up with, newest first.
	LedgerOnly []uint64 `json:"ledger_only_ids"`

	// Raw fetch outcomes, kept so IsDegraded can be recomputed.
	IndexerFetched int   `json:"indexer_fetched"`
	LedgerFetched  int   `json:"ledger_fetched"`
	IndexerErr     error `json:"-"`
}

// IsDegraded is true when the indexer errored or came back empty while the
// ledger returned at least one record. Callers should then show that the
// view is running on fallback data.
func IsDegraded(r Result) bool {
	indexerMissing := r.IndexerErr != nil || r.IndexerFetched == 0
	return indexerMissing && r.LedgerFetched > 0
}

// Merge builds the unified view: ledger records go in first, then indexer
// records overwrite by poll id. The indexer wins whenever both have a poll,
// regardless of which copy looks newer. Output is sorted by end time
// descending, ties by poll id descending.
func Merge(indexer []poll.Record, indexerErr error, ledger []poll.Record) Result {
	byID := make(map[uint64]poll.SourceRecord, len(indexer)+len(ledger))
	for _, r := range ledger {
		byID[r.ID] = poll.SourceRecord{Record: r, Source: poll.SourceLedger}
	}
	for _, r := range indexer {
		byID[r.ID] = poll.SourceRecord{Record: r, Source: poll.SourceIndexer}
	}

	res := Result{
		Records:        make([]poll.Record, 0, len(byID)),
		LedgerOnly:     []uint64{},
		IndexerFetched: len(indexer),
		LedgerFetched:  len(ledger),
		IndexerErr:     indexerErr,
	}
	for _, sr := range byID {
		switch sr.Source {
		case poll.SourceIndexer:
			res.Coverage.IndexerCount++
		case poll.SourceLedger:
			res.Coverage.LedgerOnlyCount++
			res.LedgerOnly = append(res.LedgerOnly, sr.Record.ID)
		}
		res.Records = append(res.Records, sr.Record)
	}
	sort.Slice(res.Records, func(i, j int) bool {
		a, b := res.Records[i], res.Records[j]
		if a.EndTime != b.EndTime {
			return a.EndTime > b.EndTime
		}
		return a.ID > b.ID
	})
	sort.Slice(res.LedgerOnly, func(i, j int) bool { return res.LedgerOnly[i] > res.LedgerOnly[j] })
	res.Degraded = IsDegraded(res)
	return res
}

func (r Result) IsLedgerOnly(id uint64) bool {
	for _, v := range r.LedgerOnly {
		if v == id {
			return true
		}
	}
	return false
}

// Find returns the record with the given id, if present.
func (r Result) Find(id uint64) (poll.Record, bool) {
	for _, rec := range r.Records {
		if rec.ID == id {
			return rec, true
		}
	}
	return poll.Record{}, false
}
