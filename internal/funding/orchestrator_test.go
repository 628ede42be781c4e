package funding

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollkeeper/internal/apperr"
	"pollkeeper/internal/poll"
	"pollkeeper/internal/token"
)

const (
	owner      = "0x00000000000000000000000000000000000000dd"
	mixedOwner = "0x00000000000000000000000000000000000000Dd"
)

type fakeLedger struct {
	balance    *big.Int
	allowance  *big.Int
	err        error
	balanceHit int
}

func (f *fakeLedger) Balance(ctx context.Context, chain, owner string, tok token.Descriptor) (*big.Int, error) {
	f.balanceHit++
	return f.balance, f.err
}

func (f *fakeLedger) Allowance(ctx context.Context, chain, owner, spender string, tok token.Descriptor) (*big.Int, error) {
	return f.allowance, f.err
}

type fakeSubmitter struct {
	calls        []StepKind
	authorizeErr error
}

func (f *fakeSubmitter) Authorize(ctx context.Context, tok token.Descriptor, spender string, amount *big.Int) (string, error) {
	f.calls = append(f.calls, StepAuthorize)
	if f.authorizeErr != nil {
		return "", f.authorizeErr
	}
	return "0xauth", nil
}

func (f *fakeSubmitter) Transfer(ctx context.Context, step Step) (string, error) {
	f.calls = append(f.calls, StepTransfer)
	return "0xtransfer", nil
}

func newOrchestrator(t *testing.T, l *fakeLedger) *Orchestrator {
	t.Helper()
	reg := token.NewRegistry()
	require.NoError(t, reg.Register("base", token.Descriptor{Symbol: "ETH", Decimals: 18, Native: true}))
	require.NoError(t, reg.Register("base", token.Descriptor{Symbol: "USDC", Decimals: 6, Address: "0xUSDC"}))
	return &Orchestrator{
		Tokens:     reg,
		Balances:   l,
		Allowances: l,
		Spenders:   map[string]string{"base": "0xPOLL"},
		GasReserve: "0.01",
	}
}

func TestPrepareFundingERC20NeedsAuthorization(t *testing.T) {
	l := &fakeLedger{balance: big.NewInt(2_000_000), allowance: big.NewInt(100)}
	o := newOrchestrator(t, l)

	in, err := o.PrepareFunding(context.Background(), "base", mixedOwner, 42, "usdc", "0.5")
	require.NoError(t, err)
	assert.Equal(t, "500000", in.RequestedUnits.String())
	assert.True(t, in.RequiresAuthorization)
	assert.Equal(t, "0xpoll", in.Spender)
	assert.Equal(t, owner, in.Owner)

	plan, err := PlanFundingFlow(in)
	require.NoError(t, err)
	assert.Equal(t, AuthorizeThenTransfer, plan.Kind)
}

func TestPrepareFundingValidatesBeforeIO(t *testing.T) {
	l := &fakeLedger{balance: big.NewInt(1)}
	o := newOrchestrator(t, l)

	_, err := o.PrepareFunding(context.Background(), "base", owner, 1, "USDC", "0.0000001")
	assert.True(t, errors.Is(err, apperr.InvalidAmount))

	_, err = o.PrepareFunding(context.Background(), "celo", owner, 1, "USDC", "1")
	assert.True(t, errors.Is(err, apperr.TokenNotSupportedOnChain))

	_, err = o.PrepareFunding(context.Background(), "base", "0xowner", 1, "USDC", "1")
	assert.True(t, errors.Is(err, apperr.InvalidAddress))

	_, err = o.MaxFundable(context.Background(), "base", "not-an-address", "ETH")
	assert.True(t, errors.Is(err, apperr.InvalidAddress))

	assert.Equal(t, 0, l.balanceHit)
}

func TestPrepareFundingWithoutPollContract(t *testing.T) {
	l := &fakeLedger{balance: big.NewInt(1_000_000)}
	o := newOrchestrator(t, l)
	require.NoError(t, o.Tokens.Register("celo", token.Descriptor{Symbol: "CELO", Decimals: 18, Native: true}))

	_, err := o.PrepareFunding(context.Background(), "celo", owner, 1, "CELO", "0.1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ChainNotConfigured))
	assert.Equal(t, apperr.KindChainNotConfigured, apperr.KindOf(err))
}

func TestPrepareFundingInsufficientBalance(t *testing.T) {
	l := &fakeLedger{balance: big.NewInt(499_999), allowance: big.NewInt(0)}
	o := newOrchestrator(t, l)

	_, err := o.PrepareFunding(context.Background(), "base", owner, 42, "USDC", "0.5")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.InsufficientBalance))
}

func TestPrepareFundingLedgerFailure(t *testing.T) {
	l := &fakeLedger{err: errors.New("rpc down")}
	o := newOrchestrator(t, l)

	_, err := o.PrepareFunding(context.Background(), "base", owner, 42, "ETH", "1")
	assert.True(t, errors.Is(err, apperr.LedgerUnavailable))
}

func TestPrepareVotePurchaseUsesQuadraticCost(t *testing.T) {
	l := &fakeLedger{balance: big.NewInt(1_000), allowance: big.NewInt(1_000)}
	o := newOrchestrator(t, l)
	r := poll.Record{
		ID:           5,
		Options:      []string{"a", "b"},
		Votes:        []uint64{0, 0},
		VotingType:   poll.VotingQuadratic,
		FundingToken: token.Descriptor{Symbol: "USDC", Decimals: 6, Address: "0xusdc"},
	}

	in, q, err := o.PrepareVotePurchase(context.Background(), "base", owner, r, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), q.TotalCost.Uint64())
	assert.Equal(t, "25", in.RequestedUnits.String())
	assert.False(t, in.RequiresAuthorization)
	assert.Equal(t, PurposeBuyVotes, in.Purpose)
	assert.Equal(t, uint64(2), in.Votes)
}

func TestMaxFundableNative(t *testing.T) {
	bal, err := token.ParseUnits("0.5", 18)
	require.NoError(t, err)
	o := newOrchestrator(t, &fakeLedger{balance: bal})

	got, err := o.MaxFundable(context.Background(), "base", owner, "ETH")
	require.NoError(t, err)
	assert.Equal(t, "0.49", got.String())
}

func TestExecuteSequencesSteps(t *testing.T) {
	o := newOrchestrator(t, &fakeLedger{})
	plan := Plan{Kind: AuthorizeThenTransfer, Steps: []Step{{Kind: StepAuthorize}, {Kind: StepTransfer}}}

	sub := &fakeSubmitter{}
	res, err := o.Execute(context.Background(), plan, sub)
	require.NoError(t, err)
	assert.Equal(t, []StepKind{StepAuthorize, StepTransfer}, sub.calls)
	require.Len(t, res, 2)
	assert.Equal(t, "0xtransfer", res[1].TxHash)

	failing := &fakeSubmitter{authorizeErr: errors.New("user rejected")}
	res, err = o.Execute(context.Background(), plan, failing)
	require.Error(t, err)
	assert.Empty(t, res)
	assert.Equal(t, []StepKind{StepAuthorize}, failing.calls)
}
