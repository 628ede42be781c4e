// Package poll defines the unified poll record produced by reconciliation and
// the closed enums the ledger encodes as small integers.
package poll

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"pollkeeper/internal/token"
)

// Record is the unified view of one poll. ID is the merge key across sources.
type Record struct {
	ID               uint64           `json:"poll_id"`
	Question         string           `json:"question"`
	Options          []string         `json:"options"`
	Votes            []uint64         `json:"votes"`
	EndTime          int64            `json:"end_time"`
	IsActive         bool             `json:"is_active"`
	Creator          string           `json:"creator"`
	TotalFunding     *big.Int         `json:"total_funding"`
	FundingToken     token.Descriptor `json:"funding_token"`
	DistributionMode DistributionMode `json:"distribution_mode"`
	FundingType      FundingType      `json:"funding_type"`
	Status           Status           `json:"status"`
	VotingType       VotingType       `json:"voting_type"`
	TotalVotesBought uint64           `json:"total_votes_bought"`
	CreatedAt        int64            `json:"created_at"`

	// Derived by the indexer only; the ledger does not expose it cheaply.
	VoterCount uint64 `json:"voter_count"`
}

func (r Record) Funding() token.Amount {
	return token.NewAmount(r.TotalFunding, r.FundingToken.Decimals)
}

func (r Record) TotalVotes() uint64 {
	var n uint64
	for _, v := range r.Votes {
		n += v
	}
	return n
}

type recordFields Record

// recordWire carries amounts as strings; 18-decimal totals do not fit a
// JSON number without losing precision.
type recordWire struct {
	recordFields
	TotalFunding        string `json:"total_funding"`
	TotalFundingDisplay string `json:"total_funding_display,omitempty"`
	TotalVotes          uint64 `json:"total_votes"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	w := recordWire{recordFields: recordFields(r), TotalVotes: r.TotalVotes()}
	if r.TotalFunding != nil {
		w.TotalFunding = r.TotalFunding.String()
		w.TotalFundingDisplay = r.Funding().String()
	}
	return json.Marshal(w)
}

func (r *Record) UnmarshalJSON(b []byte) error {
	var w recordWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*r = Record(w.recordFields)
	r.TotalFunding = nil
	if w.TotalFunding != "" {
		v, ok := new(big.Int).SetString(w.TotalFunding, 10)
		if !ok {
			return fmt.Errorf("poll %d: invalid total_funding %q", r.ID, w.TotalFunding)
		}
		r.TotalFunding = v
	}
	return nil
}

func (r Record) Validate() error {
	var errs []error
	if len(r.Votes) != len(r.Options) {
		errs = append(errs, fmt.Errorf("votes/options length mismatch: %d != %d", len(r.Votes), len(r.Options)))
	}
	if r.TotalFunding != nil && r.TotalFunding.Sign() < 0 {
		errs = append(errs, errors.New("negative total funding"))
	}
	if r.FundingType == FundingNone && r.TotalFunding != nil && r.TotalFunding.Sign() != 0 {
		errs = append(errs, errors.New("funding type NONE with non-zero funding"))
	}
	if !r.DistributionMode.Valid() || !r.FundingType.Valid() || !r.Status.Valid() || !r.VotingType.Valid() {
		errs = append(errs, errors.New("enum out of range"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("poll %d: %w", r.ID, errors.Join(errs...))
}

// NormalizeCreator lowercases and trims an address the way the indexer keys it.
func NormalizeCreator(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

type Source uint8

const (
	SourceLedger Source = iota + 1
	SourceIndexer
)

func (s Source) String() string {
	switch s {
	case SourceLedger:
		return "LEDGER"
	case SourceIndexer:
		return "INDEXER"
	default:
		return "UNKNOWN"
	}
}

// SourceRecord annotates a Record with its provenance. It never leaves the
// reconciler's merge step.
type SourceRecord struct {
	Record
	Source Source
}
