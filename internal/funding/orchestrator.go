package funding

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"pollkeeper/internal/apperr"
	"pollkeeper/internal/poll"
	"pollkeeper/internal/quadratic"
	"pollkeeper/internal/token"
)

// BalanceReader and AllowanceReader are point-in-time ledger reads in
// smallest units.
type BalanceReader interface {
	Balance(ctx context.Context, chain, owner string, tok token.Descriptor) (*big.Int, error)
}

type AllowanceReader interface {
	Allowance(ctx context.Context, chain, owner, spender string, tok token.Descriptor) (*big.Int, error)
}

// TransactionSubmitter fires transactions against the ledger. Implementations
// live with the wallet; this package only sequences calls.
type TransactionSubmitter interface {
	Authorize(ctx context.Context, tok token.Descriptor, spender string, amount *big.Int) (txHash string, err error)
	Transfer(ctx context.Context, step Step) (txHash string, err error)
}

type Orchestrator struct {
	Tokens     *token.Registry
	Balances   BalanceReader
	Allowances AllowanceReader
	// Spenders maps chain scope to the poll contract address approved as spender.
	Spenders map[string]string
	// GasReserve is the native-asset amount held back by MaxFundable, e.g. "0.01".
	GasReserve string
	Logger     *zap.Logger
}

// PrepareFunding validates the amount and token mapping before any I/O, then
// reads balance and allowance to build a fresh intent.
func (o *Orchestrator) PrepareFunding(ctx context.Context, chain, owner string, pollID uint64, symbol, amount string) (Intent, error) {
	ownerAddr, err := normalizeOwner("prepare_funding", owner)
	if err != nil {
		return Intent{}, err
	}
	tok, err := o.Tokens.Lookup(chain, symbol)
	if err != nil {
		return Intent{}, err
	}
	units, err := NormalizeAmount(amount, tok.Decimals)
	if err != nil {
		if e, ok := err.(*apperr.Error); ok {
			e.WithToken(tok.Symbol, chain).WithPoll(pollID)
		}
		return Intent{}, err
	}
	in := Intent{
		PollID:         pollID,
		Chain:          chain,
		Owner:          ownerAddr,
		Token:          tok,
		Purpose:        PurposeFund,
		Amount:         strings.TrimSpace(amount),
		RequestedUnits: units,
	}
	return o.complete(ctx, in)
}

// PrepareVotePurchase prices the purchase with the quadratic engine and builds
// an intent paying that exact cost in the poll's funding token.
func (o *Orchestrator) PrepareVotePurchase(ctx context.Context, chain, owner string, r poll.Record, optionIndex int, owned, requested uint64) (Intent, quadratic.VoteCostQuote, error) {
	ownerAddr, err := normalizeOwner("prepare_vote_purchase", owner)
	if err != nil {
		return Intent{}, quadratic.VoteCostQuote{}, err
	}
	q, err := quadratic.Quote(r, optionIndex, owned, requested)
	if err != nil {
		return Intent{}, quadratic.VoteCostQuote{}, err
	}
	tok, err := o.resolvePollToken(chain, r)
	if err != nil {
		return Intent{}, q, err
	}
	in := Intent{
		PollID:         r.ID,
		Chain:          chain,
		Owner:          ownerAddr,
		Token:          tok,
		Purpose:        PurposeBuyVotes,
		RequestedUnits: q.TotalCostBig(),
		OptionIndex:    optionIndex,
		Votes:          requested,
	}
	in, err = o.complete(ctx, in)
	return in, q, err
}

func (o *Orchestrator) resolvePollToken(chain string, r poll.Record) (token.Descriptor, error) {
	if r.FundingToken.Native {
		if d, ok := o.Tokens.Native(chain); ok {
			return d, nil
		}
	} else if d, ok := o.Tokens.LookupAddress(chain, r.FundingToken.Address); ok {
		return d, nil
	}
	return token.Descriptor{}, apperr.New(apperr.KindTokenNotSupportedOnChain, "resolve_poll_token", "").
		WithToken(r.FundingToken.Symbol, chain).WithPoll(r.ID)
}

func (o *Orchestrator) complete(ctx context.Context, in Intent) (Intent, error) {
	spender, err := o.spender(in.Chain)
	if err != nil {
		return Intent{}, err
	}
	in.Spender = spender

	balance, err := o.Balances.Balance(ctx, in.Chain, in.Owner, in.Token)
	if err != nil {
		return Intent{}, apperr.Wrap(apperr.KindLedgerUnavailable, "read_balance", err).WithToken(in.Token.Symbol, in.Chain)
	}
	in.CurrentBalance = balance

	if !in.Token.Native {
		allowance, err := o.Allowances.Allowance(ctx, in.Chain, in.Owner, spender, in.Token)
		if err != nil {
			return Intent{}, apperr.Wrap(apperr.KindLedgerUnavailable, "read_allowance", err).WithToken(in.Token.Symbol, in.Chain)
		}
		in.CurrentAllowance = allowance
	}
	in.RequiresAuthorization = NeedsAuthorization(in.Token, in.RequestedUnits, in.CurrentAllowance)

	requested := token.NewAmount(in.RequestedUnits, in.Token.Decimals)
	if !HasSufficientBalance(in.Token, requested, token.NewAmount(balance, in.Token.Decimals)) {
		return in, apperr.New(apperr.KindInsufficientBalance, "check_balance",
			fmt.Sprintf("need %s, have %s", requested.String(), token.FormatUnits(balance, in.Token.Decimals))).
			WithToken(in.Token.Symbol, in.Chain).WithPoll(in.PollID)
	}
	return in, nil
}

func (o *Orchestrator) spender(chain string) (string, error) {
	addr := strings.TrimSpace(o.Spenders[strings.ToLower(strings.TrimSpace(chain))])
	if addr == "" {
		return "", apperr.New(apperr.KindChainNotConfigured, "resolve_spender", "no poll contract for chain").WithToken("", chain)
	}
	return strings.ToLower(addr), nil
}

// normalizeOwner rejects malformed wallet addresses before any ledger read.
func normalizeOwner(op, owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if !common.IsHexAddress(owner) {
		return "", apperr.New(apperr.KindInvalidAddress, op, fmt.Sprintf("owner %q is not a hex address", owner))
	}
	return poll.NormalizeCreator(owner), nil
}

// MaxFundable reads the owner's balance and applies the native gas reserve.
func (o *Orchestrator) MaxFundable(ctx context.Context, chain, owner, symbol string) (token.Amount, error) {
	ownerAddr, err := normalizeOwner("max_fundable", owner)
	if err != nil {
		return token.Amount{}, err
	}
	tok, err := o.Tokens.Lookup(chain, symbol)
	if err != nil {
		return token.Amount{}, err
	}
	balance, err := o.Balances.Balance(ctx, chain, ownerAddr, tok)
	if err != nil {
		return token.Amount{}, apperr.Wrap(apperr.KindLedgerUnavailable, "read_balance", err).WithToken(tok.Symbol, chain)
	}
	var reserve *big.Int
	if tok.Native && strings.TrimSpace(o.GasReserve) != "" {
		reserve, err = token.ParseUnits(o.GasReserve, tok.Decimals)
		if err != nil {
			return token.Amount{}, fmt.Errorf("gas reserve: %w", err)
		}
	}
	return token.NewAmount(MaxFundable(tok, balance, reserve), tok.Decimals), nil
}

type StepResult struct {
	Kind   StepKind `json:"kind"`
	TxHash string   `json:"tx_hash"`
}

// Execute runs plan steps in order. A failed authorization stops the flow
// before any transfer is attempted.
func (o *Orchestrator) Execute(ctx context.Context, plan Plan, sub TransactionSubmitter) ([]StepResult, error) {
	if sub == nil {
		return nil, fmt.Errorf("transaction submitter is nil")
	}
	results := make([]StepResult, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		var (
			hash string
			err  error
		)
		switch step.Kind {
		case StepAuthorize:
			hash, err = sub.Authorize(ctx, step.Token, step.Spender, step.Amount)
		case StepTransfer:
			hash, err = sub.Transfer(ctx, step)
		default:
			err = fmt.Errorf("unknown step kind %q", step.Kind)
		}
		if err != nil {
			o.logWarn("funding step failed", err,
				zap.Int("step", i),
				zap.String("kind", string(step.Kind)),
				zap.Uint64("poll_id", step.PollID),
				zap.String("token", step.Token.Symbol),
			)
			return results, fmt.Errorf("step %d (%s): %w", i, step.Kind, err)
		}
		results = append(results, StepResult{Kind: step.Kind, TxHash: hash})
		if o.Logger != nil {
			o.Logger.Info("funding step submitted",
				zap.String("kind", string(step.Kind)),
				zap.Uint64("poll_id", step.PollID),
				zap.String("tx_hash", hash),
			)
		}
	}
	return results, nil
}

func (o *Orchestrator) logWarn(msg string, err error, fields ...zap.Field) {
	if o == nil || o.Logger == nil {
		return
	}
	o.Logger.Warn(msg, append(fields, zap.Error(err))...)
}
