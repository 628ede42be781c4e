// Package funding plans "fund this poll" and "buy these votes" flows across
// the native asset (single transfer) and ERC20-style tokens (authorize, then
// transfer). Planning is pure; Orchestrator adds the ledger reads and step
// sequencing around it.
package funding

import (
	"math/big"

	"pollkeeper/internal/apperr"
	"pollkeeper/internal/token"
)

type Purpose string

const (
	PurposeFund     Purpose = "fund"
	PurposeBuyVotes Purpose = "buy_votes"
)

type PlanKind string

const (
	AuthorizeThenTransfer PlanKind = "AUTHORIZE_THEN_TRANSFER"
	TransferOnly          PlanKind = "TRANSFER_ONLY"
)

type StepKind string

const (
	StepAuthorize StepKind = "authorize"
	StepTransfer  StepKind = "transfer"
)

// Intent is derived fresh on every amount or token change and never cached
// across token switches.
type Intent struct {
	PollID  uint64
	Chain   string
	Owner   string
	Spender string
	Token   token.Descriptor
	Purpose Purpose

	// Amount is the decimal string as the user entered it. Empty for vote
	// purchases, whose amount comes from the cost engine.
	Amount string

	RequestedUnits        *big.Int
	CurrentAllowance      *big.Int
	CurrentBalance        *big.Int
	RequiresAuthorization bool

	OptionIndex int
	Votes       uint64
}

type Step struct {
	Kind        StepKind
	PollID      uint64
	Token       token.Descriptor
	Spender     string
	Amount      *big.Int
	Purpose     Purpose
	OptionIndex int
	Votes       uint64
}

type Plan struct {
	Kind  PlanKind
	Steps []Step
}

// NormalizeAmount parses a user-entered amount into smallest units.
func NormalizeAmount(amount string, decimals uint8) (*big.Int, error) {
	return token.ParseUnits(amount, decimals)
}

// NeedsAuthorization is always false for the native asset. For tokens it is
// true when the allowance is unknown or below the requested amount.
func NeedsAuthorization(tok token.Descriptor, requested, allowance *big.Int) bool {
	if tok.Native {
		return false
	}
	if allowance == nil {
		return true
	}
	if requested == nil {
		return false
	}
	return allowance.Cmp(requested) < 0
}

// HasSufficientBalance compares after rebasing both sides to a common
// precision, so an 18-decimal balance is never compared raw against a
// 6-decimal request.
func HasSufficientBalance(tok token.Descriptor, requested, balance token.Amount) bool {
	req, _ := requested.Rebase(tok.Decimals)
	if req.Cmp(requested) != 0 {
		// requested carries precision the token cannot represent
		return false
	}
	return balance.Cmp(requested) >= 0
}

// PlanFundingFlow orders the steps for an intent. Authorization need is
// recomputed from the intent's amounts rather than trusted from the flag.
func PlanFundingFlow(in Intent) (Plan, error) {
	if in.RequestedUnits == nil || in.RequestedUnits.Sign() <= 0 {
		return Plan{}, apperr.New(apperr.KindInvalidAmount, "plan_funding", "amount must be positive").WithToken(in.Token.Symbol, in.Chain).WithPoll(in.PollID)
	}
	transfer := Step{
		Kind:        StepTransfer,
		PollID:      in.PollID,
		Token:       in.Token,
		Spender:     in.Spender,
		Amount:      new(big.Int).Set(in.RequestedUnits),
		Purpose:     in.Purpose,
		OptionIndex: in.OptionIndex,
		Votes:       in.Votes,
	}
	if !NeedsAuthorization(in.Token, in.RequestedUnits, in.CurrentAllowance) {
		return Plan{Kind: TransferOnly, Steps: []Step{transfer}}, nil
	}
	authorize := Step{
		Kind:    StepAuthorize,
		PollID:  in.PollID,
		Token:   in.Token,
		Spender: in.Spender,
		Amount:  new(big.Int).Set(in.RequestedUnits),
		Purpose: in.Purpose,
	}
	return Plan{Kind: AuthorizeThenTransfer, Steps: []Step{authorize, transfer}}, nil
}

// MaxFundable is the largest amount a wallet can commit. On the native asset
// a fixed reserve is held back so the follow-up transaction can pay gas.
func MaxFundable(tok token.Descriptor, balance, reserve *big.Int) *big.Int {
	if balance == nil || balance.Sign() <= 0 {
		return new(big.Int)
	}
	if !tok.Native || reserve == nil {
		return new(big.Int).Set(balance)
	}
	out := new(big.Int).Sub(balance, reserve)
	if out.Sign() < 0 {
		return new(big.Int)
	}
	return out
}
