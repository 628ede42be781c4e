package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const pollContractABI = `[
  {"type":"function","name":"pollCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getPoll","stateMutability":"view","inputs":[{"name":"pollId","type":"uint256"}],"outputs":[
    {"name":"id","type":"uint256"},
    {"name":"question","type":"string"},
    {"name":"options","type":"string[]"},
    {"name":"votes","type":"uint256[]"},
    {"name":"endTime","type":"uint256"},
    {"name":"isActive","type":"bool"},
    {"name":"creator","type":"address"},
    {"name":"totalFunding","type":"uint256"},
    {"name":"fundingToken","type":"address"},
    {"name":"distributionMode","type":"uint8"},
    {"name":"fundingType","type":"uint8"},
    {"name":"status","type":"uint8"},
    {"name":"votingType","type":"uint8"},
    {"name":"totalVotesBought","type":"uint256"},
    {"name":"createdAt","type":"uint256"}
  ]}
]`

const erc20ABI = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	pollABI  = mustParseABI(pollContractABI)
	tokenABI = mustParseABI(erc20ABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// rawPoll mirrors the flat getPoll outputs; field names follow the ABI
// output names in camel case.
type rawPoll struct {
	Id               *big.Int
	Question         string
	Options          []string
	Votes            []*big.Int
	EndTime          *big.Int
	IsActive         bool
	Creator          common.Address
	TotalFunding     *big.Int
	FundingToken     common.Address
	DistributionMode uint8
	FundingType      uint8
	Status           uint8
	VotingType       uint8
	TotalVotesBought *big.Int
	CreatedAt        *big.Int
}
