// Package apperr holds the error taxonomy shared by the reconciliation and
// economics packages. Every surfaced error carries a Kind plus enough context
// (poll, token, chain) for a caller to render a specific message.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindInvalidAmount            Kind = "invalid_amount"
	KindInsufficientBalance      Kind = "insufficient_balance"
	KindTokenNotSupportedOnChain Kind = "token_not_supported_on_chain"
	KindInvalidVoteCount         Kind = "invalid_vote_count"
	KindCostOverflow             Kind = "cost_overflow"
	KindIndexerUnavailable       Kind = "indexer_unavailable"
	KindLedgerUnavailable        Kind = "ledger_unavailable"
	KindConvergenceTimeout       Kind = "convergence_timeout"
	KindInvalidAddress           Kind = "invalid_address"
	KindChainNotConfigured       Kind = "chain_not_configured"
)

// Sentinels for errors.Is matching by kind.
var (
	InvalidAmount            = &Error{Kind: KindInvalidAmount}
	InsufficientBalance      = &Error{Kind: KindInsufficientBalance}
	TokenNotSupportedOnChain = &Error{Kind: KindTokenNotSupportedOnChain}
	InvalidVoteCount         = &Error{Kind: KindInvalidVoteCount}
	CostOverflow             = &Error{Kind: KindCostOverflow}
	IndexerUnavailable       = &Error{Kind: KindIndexerUnavailable}
	LedgerUnavailable        = &Error{Kind: KindLedgerUnavailable}
	ConvergenceTimeout       = &Error{Kind: KindConvergenceTimeout}
	InvalidAddress           = &Error{Kind: KindInvalidAddress}
	ChainNotConfigured       = &Error{Kind: KindChainNotConfigured}
)

type Error struct {
	Kind   Kind
	Op     string
	PollID *uint64
	Token  string
	Chain  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.PollID != nil {
		fmt.Fprintf(&b, " poll=%d", *e.PollID)
	}
	if e.Token != "" {
		b.WriteString(" token=")
		b.WriteString(e.Token)
	}
	if e.Chain != "" {
		b.WriteString(" chain=")
		b.WriteString(e.Chain)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so the package sentinels work
// with errors.Is regardless of the attached context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, op, detail string) *Error {
	return &Error{Kind: kind, Op: op, Detail: detail}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) WithPoll(id uint64) *Error {
	e.PollID = &id
	return e
}

func (e *Error) WithToken(symbol, chain string) *Error {
	e.Token = symbol
	e.Chain = chain
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
