// Package quadratic prices vote purchases on quadratic polls. The n-th vote a
// voter ever buys on a poll costs n*n smallest units of the voting token, so a
// batch of k votes on top of m owned costs S(m+k) - S(m) with
// S(n) = n(n+1)(2n+1)/6.
//
// Arithmetic is done in 256-bit unsigned integers, the ledger's word size.
// Any intermediate overflow rejects the quote instead of wrapping.
package quadratic

import (
	"math/big"

	"github.com/holiman/uint256"

	"pollkeeper/internal/apperr"
	"pollkeeper/internal/poll"
)

// MaxBreakdownSteps bounds QuoteIncrementalCosts; the per-vote breakdown is a
// display aid and is not meant for bulk purchases.
const MaxBreakdownSteps = 10_000

var (
	one = uint256.NewInt(1)
	two = uint256.NewInt(2)
	six = uint256.NewInt(6)
)

// QuoteCost returns the exact cost of buying requested votes when owned are
// already held.
func QuoteCost(owned, requested uint64) (*uint256.Int, error) {
	if requested == 0 {
		return nil, apperr.New(apperr.KindInvalidVoteCount, "quote_cost", "votes requested must be positive")
	}
	return QuoteCostWide(uint256.NewInt(owned), uint256.NewInt(requested))
}

// QuoteCostWide is QuoteCost over 256-bit inputs.
func QuoteCostWide(owned, requested *uint256.Int) (*uint256.Int, error) {
	if owned == nil || requested == nil || requested.IsZero() {
		return nil, apperr.New(apperr.KindInvalidVoteCount, "quote_cost", "votes requested must be positive")
	}
	total, overflow := new(uint256.Int).AddOverflow(owned, requested)
	if overflow {
		return nil, overflowErr("owned+requested")
	}
	hi, err := SumOfSquares(total)
	if err != nil {
		return nil, err
	}
	lo, err := SumOfSquares(owned)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Sub(hi, lo), nil
}

// SumOfSquares returns 1² + 2² + ... + n².
func SumOfSquares(n *uint256.Int) (*uint256.Int, error) {
	if n.IsZero() {
		return new(uint256.Int), nil
	}
	n1, overflow := new(uint256.Int).AddOverflow(n, one)
	if overflow {
		return nil, overflowErr("n+1")
	}
	twoN, overflow := new(uint256.Int).MulOverflow(n, two)
	if overflow {
		return nil, overflowErr("2n")
	}
	twoN1, overflow := new(uint256.Int).AddOverflow(twoN, one)
	if overflow {
		return nil, overflowErr("2n+1")
	}
	prod, overflow := new(uint256.Int).MulOverflow(n, n1)
	if overflow {
		return nil, overflowErr("n(n+1)")
	}
	prod, overflow = prod.MulOverflow(prod, twoN1)
	if overflow {
		return nil, overflowErr("n(n+1)(2n+1)")
	}
	return prod.Div(prod, six), nil
}

// QuoteIncrementalCosts breaks a purchase into the price of each vote in the
// batch. The entries sum exactly to QuoteCost(owned, requested).
func QuoteIncrementalCosts(owned, requested uint64) ([]*uint256.Int, error) {
	if requested == 0 {
		return nil, apperr.New(apperr.KindInvalidVoteCount, "quote_breakdown", "votes requested must be positive")
	}
	if requested > MaxBreakdownSteps {
		return nil, apperr.New(apperr.KindInvalidVoteCount, "quote_breakdown", "too many votes for a per-vote breakdown")
	}
	out := make([]*uint256.Int, 0, requested)
	n := uint256.NewInt(owned)
	for i := uint64(0); i < requested; i++ {
		var overflow bool
		n, overflow = new(uint256.Int).AddOverflow(n, one)
		if overflow {
			return nil, overflowErr("vote index")
		}
		sq, overflow := new(uint256.Int).MulOverflow(n, n)
		if overflow {
			return nil, overflowErr("vote index squared")
		}
		out = append(out, sq)
	}
	return out, nil
}

// VoteCostQuote is a derived, never-persisted price for a vote purchase.
type VoteCostQuote struct {
	PollID            uint64
	OptionIndex       int
	VotesAlreadyOwned uint64
	VotesRequested    uint64
	TotalCost         *uint256.Int
}

// TotalCostBig returns the cost as a big.Int for token amount math.
func (q VoteCostQuote) TotalCostBig() *big.Int {
	if q.TotalCost == nil {
		return new(big.Int)
	}
	return q.TotalCost.ToBig()
}

// Quote prices a purchase against a specific poll, checking that the poll
// uses quadratic voting and that the option exists.
func Quote(r poll.Record, optionIndex int, owned, requested uint64) (VoteCostQuote, error) {
	if r.VotingType != poll.VotingQuadratic {
		return VoteCostQuote{}, apperr.New(apperr.KindInvalidVoteCount, "quote", "poll does not use quadratic voting").WithPoll(r.ID)
	}
	if optionIndex < 0 || optionIndex >= len(r.Options) {
		return VoteCostQuote{}, apperr.New(apperr.KindInvalidVoteCount, "quote", "option index out of range").WithPoll(r.ID)
	}
	cost, err := QuoteCost(owned, requested)
	if err != nil {
		if e, ok := err.(*apperr.Error); ok {
			e.WithPoll(r.ID)
		}
		return VoteCostQuote{}, err
	}
	return VoteCostQuote{
		PollID:            r.ID,
		OptionIndex:       optionIndex,
		VotesAlreadyOwned: owned,
		VotesRequested:    requested,
		TotalCost:         cost,
	}, nil
}

func overflowErr(step string) error {
	return apperr.New(apperr.KindCostOverflow, "quote_cost", "uint256 overflow at "+step)
}
