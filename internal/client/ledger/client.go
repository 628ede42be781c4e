// Package ledger reads poll state and token balances straight from the
// chain through JSON-RPC.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pollkeeper/internal/poll"
	"pollkeeper/internal/token"
)

const defaultReadConcurrency = 8

// errMalformedPoll marks a poll the contract returned but this client cannot
// decode. GetPolls skips such polls; transport errors still fail the read.
var errMalformedPoll = errors.New("malformed poll")

// Backend is the subset of ethclient.Client the ledger reads need.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Chain binds one chain scope to its RPC backend and poll contract.
type Chain struct {
	Name         string
	Backend      Backend
	PollContract common.Address
}

// Pool routes reads to the right chain. It implements the reconciler's
// ledger source and the funding balance/allowance readers.
type Pool struct {
	chains      map[string]Chain
	tokens      *token.Registry
	concurrency int
	logger      *zap.Logger
	closers     []func()
}

type Endpoint struct {
	Chain        string
	RPCURL       string
	PollContract string
}

func NewPool(tokens *token.Registry, concurrency int, logger *zap.Logger, chains ...Chain) *Pool {
	if concurrency <= 0 {
		concurrency = defaultReadConcurrency
	}
	p := &Pool{
		chains:      make(map[string]Chain, len(chains)),
		tokens:      tokens,
		concurrency: concurrency,
		logger:      logger,
	}
	for _, c := range chains {
		c.Name = normalizeChain(c.Name)
		p.chains[c.Name] = c
	}
	return p
}

// Dial opens one ethclient per endpoint.
func Dial(ctx context.Context, tokens *token.Registry, concurrency int, logger *zap.Logger, endpoints []Endpoint) (*Pool, error) {
	p := NewPool(tokens, concurrency, logger)
	for _, ep := range endpoints {
		if !common.IsHexAddress(ep.PollContract) {
			p.Close()
			return nil, fmt.Errorf("chain %s: invalid poll contract %q", ep.Chain, ep.PollContract)
		}
		client, err := ethclient.DialContext(ctx, ep.RPCURL)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("chain %s: dial rpc: %w", ep.Chain, err)
		}
		p.closers = append(p.closers, client.Close)
		name := normalizeChain(ep.Chain)
		p.chains[name] = Chain{Name: name, Backend: client, PollContract: common.HexToAddress(ep.PollContract)}
	}
	return p, nil
}

func (p *Pool) Close() {
	for _, c := range p.closers {
		c()
	}
	p.closers = nil
}

func (p *Pool) chain(name string) (Chain, error) {
	c, ok := p.chains[normalizeChain(name)]
	if !ok {
		return Chain{}, fmt.Errorf("no ledger configured for chain %q", name)
	}
	return c, nil
}

func (p *Pool) call(ctx context.Context, c Chain, to common.Address, data []byte) ([]byte, error) {
	out, err := c.Backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", to.Hex(), err)
	}
	return out, nil
}

func (p *Pool) PollCount(ctx context.Context, chain string) (uint64, error) {
	c, err := p.chain(chain)
	if err != nil {
		return 0, err
	}
	data, err := pollABI.Pack("pollCount")
	if err != nil {
		return 0, err
	}
	out, err := p.call(ctx, c, c.PollContract, data)
	if err != nil {
		return 0, err
	}
	n, err := unpackUint(pollABI.Unpack("pollCount", out))
	if err != nil {
		return 0, fmt.Errorf("pollCount: %w", err)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("pollCount %s overflows uint64", n)
	}
	return n.Uint64(), nil
}

// GetPolls reads polls in parallel and returns them in the order of ids.
// Polls that fail to decode are logged and left out.
func (p *Pool) GetPolls(ctx context.Context, chain string, ids []uint64) ([]poll.Record, error) {
	c, err := p.chain(chain)
	if err != nil {
		return nil, err
	}
	out := make([]poll.Record, len(ids))
	ok := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			rec, err := p.getPoll(gctx, c, id)
			if errors.Is(err, errMalformedPoll) {
				if p.logger != nil {
					p.logger.Warn("skipping undecodable ledger poll",
						zap.String("chain", c.Name),
						zap.Uint64("poll_id", id),
						zap.Error(err),
					)
				}
				return nil
			}
			if err != nil {
				return fmt.Errorf("getPoll(%d): %w", id, err)
			}
			out[i], ok[i] = rec, true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	kept := out[:0]
	for i, rec := range out {
		if ok[i] {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

func (p *Pool) getPoll(ctx context.Context, c Chain, id uint64) (poll.Record, error) {
	data, err := pollABI.Pack("getPoll", new(big.Int).SetUint64(id))
	if err != nil {
		return poll.Record{}, err
	}
	out, err := p.call(ctx, c, c.PollContract, data)
	if err != nil {
		return poll.Record{}, err
	}
	var raw rawPoll
	if err := pollABI.UnpackIntoInterface(&raw, "getPoll", out); err != nil {
		return poll.Record{}, fmt.Errorf("%w: decode: %v", errMalformedPoll, err)
	}
	rec, err := p.toRecord(c.Name, raw)
	if err != nil {
		return poll.Record{}, fmt.Errorf("%w: %v", errMalformedPoll, err)
	}
	return rec, nil
}

func (p *Pool) toRecord(chain string, raw rawPoll) (poll.Record, error) {
	var errs []error
	r := poll.Record{
		ID:               bigToUint64(raw.Id, &errs),
		Question:         raw.Question,
		Options:          raw.Options,
		Votes:            make([]uint64, len(raw.Votes)),
		EndTime:          int64(bigToUint64(raw.EndTime, &errs)),
		IsActive:         raw.IsActive,
		Creator:          poll.NormalizeCreator(raw.Creator.Hex()),
		TotalFunding:     raw.TotalFunding,
		TotalVotesBought: bigToUint64(raw.TotalVotesBought, &errs),
		CreatedAt:        int64(bigToUint64(raw.CreatedAt, &errs)),
	}
	for i, v := range raw.Votes {
		r.Votes[i] = bigToUint64(v, &errs)
	}
	r.FundingToken = p.resolveToken(chain, raw.FundingToken)

	var err error
	if r.DistributionMode, err = poll.DistributionModeFromUint(uint64(raw.DistributionMode)); err != nil {
		errs = append(errs, err)
	}
	if r.FundingType, err = poll.FundingTypeFromUint(uint64(raw.FundingType)); err != nil {
		errs = append(errs, err)
	}
	if r.Status, err = poll.StatusFromUint(uint64(raw.Status)); err != nil {
		errs = append(errs, err)
	}
	if r.VotingType, err = poll.VotingTypeFromUint(uint64(raw.VotingType)); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return r, errors.Join(errs...)
	}
	return r, nil
}

func (p *Pool) resolveToken(chain string, addr common.Address) token.Descriptor {
	hex := strings.ToLower(addr.Hex())
	if addr == (common.Address{}) {
		hex = ""
	}
	if p.tokens != nil {
		if d, ok := p.tokens.LookupAddress(chain, hex); ok {
			return d
		}
	}
	if hex == "" {
		return token.Descriptor{Native: true, Decimals: 18}
	}
	if p.logger != nil {
		p.logger.Debug("unregistered funding token", zap.String("chain", chain), zap.String("address", hex))
	}
	return token.Descriptor{Address: hex, Decimals: 18}
}

// Balance returns the native balance or the ERC20 balanceOf.
func (p *Pool) Balance(ctx context.Context, chain, owner string, tok token.Descriptor) (*big.Int, error) {
	c, err := p.chain(chain)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := hexAddress("owner", owner)
	if err != nil {
		return nil, err
	}
	if tok.Native {
		return c.Backend.BalanceAt(ctx, ownerAddr, nil)
	}
	tokenAddr, err := hexAddress("token", tok.Address)
	if err != nil {
		return nil, err
	}
	data, err := tokenABI.Pack("balanceOf", ownerAddr)
	if err != nil {
		return nil, err
	}
	out, err := p.call(ctx, c, tokenAddr, data)
	if err != nil {
		return nil, err
	}
	return unpackUint(tokenABI.Unpack("balanceOf", out))
}

func (p *Pool) Allowance(ctx context.Context, chain, owner, spender string, tok token.Descriptor) (*big.Int, error) {
	if tok.Native {
		return nil, nil
	}
	c, err := p.chain(chain)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := hexAddress("owner", owner)
	if err != nil {
		return nil, err
	}
	spenderAddr, err := hexAddress("spender", spender)
	if err != nil {
		return nil, err
	}
	tokenAddr, err := hexAddress("token", tok.Address)
	if err != nil {
		return nil, err
	}
	data, err := tokenABI.Pack("allowance", ownerAddr, spenderAddr)
	if err != nil {
		return nil, err
	}
	out, err := p.call(ctx, c, tokenAddr, data)
	if err != nil {
		return nil, err
	}
	return unpackUint(tokenABI.Unpack("allowance", out))
}

// Spender returns the poll contract of a chain, the address users approve.
func (p *Pool) Spender(chain string) (string, bool) {
	c, err := p.chain(chain)
	if err != nil {
		return "", false
	}
	return strings.ToLower(c.PollContract.Hex()), true
}

func unpackUint(values []interface{}, err error) (*big.Int, error) {
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("expected 1 output, got %d", len(values))
	}
	n, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", values[0])
	}
	return n, nil
}

func bigToUint64(n *big.Int, errs *[]error) uint64 {
	if n == nil {
		return 0
	}
	if !n.IsUint64() {
		*errs = append(*errs, fmt.Errorf("value %s overflows uint64", n))
		return 0
	}
	return n.Uint64()
}

func hexAddress(what, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", what, s)
	}
	return common.HexToAddress(s), nil
}

func normalizeChain(chain string) string {
	return strings.ToLower(strings.TrimSpace(chain))
}
