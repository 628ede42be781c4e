package ledger

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollkeeper/internal/poll"
	"pollkeeper/internal/reconcile"
	"pollkeeper/internal/token"
)

var (
	pollContract = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	usdcAddr     = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	creatorAddr  = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	ownerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000dd")
)

type fakeBackend struct {
	count     int64
	badPoll   uint64
	revertAll bool
	balances  map[common.Address]*big.Int
	calls     atomic.Int32
}

func (f *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return f.balances[account], nil
}

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.calls.Add(1)
	selector, args := msg.Data[:4], msg.Data[4:]
	switch {
	case bytes.Equal(selector, pollABI.Methods["pollCount"].ID):
		return pollABI.Methods["pollCount"].Outputs.Pack(big.NewInt(f.count))
	case bytes.Equal(selector, pollABI.Methods["getPoll"].ID):
		if f.revertAll {
			return nil, errors.New("connection reset")
		}
		in, err := pollABI.Methods["getPoll"].Inputs.Unpack(args)
		if err != nil {
			return nil, err
		}
		id := in[0].(*big.Int).Uint64()
		status := uint8(1)
		if id == f.badPoll {
			status = 9
		}
		return pollABI.Methods["getPoll"].Outputs.Pack(
			new(big.Int).SetUint64(id),
			"question",
			[]string{"yes", "no"},
			[]*big.Int{big.NewInt(2), big.NewInt(1)},
			big.NewInt(1_700_000_000+int64(id)),
			false,
			creatorAddr,
			big.NewInt(5_000_000),
			usdcAddr,
			uint8(0),
			uint8(1),
			status,
			uint8(1),
			big.NewInt(3),
			big.NewInt(1_690_000_000),
		)
	case bytes.Equal(selector, tokenABI.Methods["balanceOf"].ID):
		return tokenABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(1_234))
	case bytes.Equal(selector, tokenABI.Methods["allowance"].ID):
		return tokenABI.Methods["allowance"].Outputs.Pack(big.NewInt(77))
	}
	return nil, errors.New("execution reverted")
}

func newPool(t *testing.T, b *fakeBackend) *Pool {
	t.Helper()
	reg := token.NewRegistry()
	require.NoError(t, reg.Register("base", token.Descriptor{Symbol: "ETH", Decimals: 18, Native: true}))
	require.NoError(t, reg.Register("base", token.Descriptor{Symbol: "USDC", Decimals: 6, Address: usdcAddr.Hex()}))
	return NewPool(reg, 2, nil, Chain{Name: "Base", Backend: b, PollContract: pollContract})
}

func TestPollCountAndGetPolls(t *testing.T) {
	b := &fakeBackend{count: 3, badPoll: 99}
	p := newPool(t, b)

	n, err := p.PollCount(context.Background(), "base")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	recs, err := p.GetPolls(context.Background(), "base", []uint64{2, 1, 0})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, uint64(2), recs[0].ID)
	assert.Equal(t, uint64(0), recs[2].ID)

	r := recs[0]
	assert.Equal(t, []uint64{2, 1}, r.Votes)
	assert.Equal(t, poll.NormalizeCreator(creatorAddr.Hex()), r.Creator)
	assert.Equal(t, "USDC", r.FundingToken.Symbol)
	assert.Equal(t, poll.FundingSelf, r.FundingType)
	assert.Equal(t, poll.StatusClosed, r.Status)
	assert.Equal(t, poll.VotingQuadratic, r.VotingType)
	assert.Equal(t, "5000000", r.TotalFunding.String())
	assert.NoError(t, r.Validate())
}

func TestGetPollsSkipsUndecodablePoll(t *testing.T) {
	p := newPool(t, &fakeBackend{count: 3, badPoll: 1})
	recs, err := p.GetPolls(context.Background(), "base", []uint64{2, 1, 0})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(2), recs[0].ID)
	assert.Equal(t, uint64(0), recs[1].ID)
}

func TestGetPollsFailsOnTransportError(t *testing.T) {
	p := newPool(t, &fakeBackend{count: 2, badPoll: 99, revertAll: true})
	_, err := p.GetPolls(context.Background(), "base", []uint64{1, 0})
	require.Error(t, err)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, errMalformedPoll)
}

type downIndexer struct{}

func (downIndexer) PollsByCreator(ctx context.Context, chain, creator string, limit int) ([]poll.Record, error) {
	return nil, errors.New("indexer down")
}

// One unknown status in the window must not hide the creator's other polls.
func TestReconcileFallsBackPastUndecodablePoll(t *testing.T) {
	p := newPool(t, &fakeBackend{count: 5, badPoll: 0})
	r := &reconcile.Reconciler{Indexer: downIndexer{}, Ledger: p}

	res, err := r.Reconcile(context.Background(), creatorAddr.Hex(), "base")
	require.NoError(t, err)
	assert.Len(t, res.Records, 4)
	assert.True(t, res.Degraded)
	_, found := res.Find(0)
	assert.False(t, found)
}

func TestBalanceAndAllowance(t *testing.T) {
	b := &fakeBackend{balances: map[common.Address]*big.Int{ownerAddr: big.NewInt(42)}}
	p := newPool(t, b)
	eth, err := p.tokens.Lookup("base", "ETH")
	require.NoError(t, err)
	usdc, err := p.tokens.Lookup("base", "USDC")
	require.NoError(t, err)

	bal, err := p.Balance(context.Background(), "base", ownerAddr.Hex(), eth)
	require.NoError(t, err)
	assert.Equal(t, int64(42), bal.Int64())
	assert.Equal(t, int32(0), b.calls.Load())

	bal, err = p.Balance(context.Background(), "base", ownerAddr.Hex(), usdc)
	require.NoError(t, err)
	assert.Equal(t, int64(1_234), bal.Int64())

	allowance, err := p.Allowance(context.Background(), "base", ownerAddr.Hex(), pollContract.Hex(), usdc)
	require.NoError(t, err)
	assert.Equal(t, int64(77), allowance.Int64())

	allowance, err = p.Allowance(context.Background(), "base", ownerAddr.Hex(), pollContract.Hex(), eth)
	require.NoError(t, err)
	assert.Nil(t, allowance)

	_, err = p.Balance(context.Background(), "celo", ownerAddr.Hex(), eth)
	assert.ErrorContains(t, err, "no ledger configured")

	spender, ok := p.Spender("BASE")
	require.True(t, ok)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", spender)
}
