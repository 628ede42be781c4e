// Package distribution decides, without network access, which polls still
// need their creator to distribute rewards.
package distribution

import (
	"pollkeeper/internal/poll"
)

type Protocol string

const (
	ProtocolNone      Protocol = "none"
	ProtocolPull      Protocol = "pull"
	ProtocolPush      Protocol = "push"
	ProtocolAutomated Protocol = "automated"
)

type Summary struct {
	PendingCount int      `json:"pending_count"`
	PendingIDs   []uint64 `json:"pending_ids"`
}

// RequiresAction reports whether the creator must act on the poll: it is
// awaiting claims, or it has ended with funds under a manual distribution mode.
func RequiresAction(r poll.Record) bool {
	if r.Status == poll.StatusForClaiming {
		return true
	}
	if r.Status == poll.StatusActive {
		return false
	}
	if r.TotalFunding == nil || r.TotalFunding.Sign() <= 0 {
		return false
	}
	switch r.DistributionMode {
	case poll.ManualPull, poll.ManualPush:
		return true
	case poll.Automated:
		return false
	default:
		return false
	}
}

// ProtocolFor returns the distribution protocol that applies to the poll's
// rewards. Unfunded polls have nothing to distribute.
func ProtocolFor(r poll.Record) Protocol {
	if r.FundingType == poll.FundingNone || r.TotalFunding == nil || r.TotalFunding.Sign() <= 0 {
		return ProtocolNone
	}
	switch r.DistributionMode {
	case poll.ManualPull:
		return ProtocolPull
	case poll.ManualPush:
		return ProtocolPush
	case poll.Automated:
		return ProtocolAutomated
	default:
		return ProtocolNone
	}
}

// Classify partitions records into pending and not pending. PendingIDs keeps
// input order.
func Classify(records []poll.Record) Summary {
	out := Summary{PendingIDs: []uint64{}}
	for _, r := range records {
		if RequiresAction(r) {
			out.PendingIDs = append(out.PendingIDs, r.ID)
		}
	}
	out.PendingCount = len(out.PendingIDs)
	return out
}
