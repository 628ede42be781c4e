package indexer

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pollkeeper/internal/poll"
	"pollkeeper/internal/token"
)

const pollsByCreatorQuery = `query PollsByCreator($creator: String!, $first: Int!, $skip: Int!) {
  polls(where: {creator: $creator}, first: $first, skip: $skip, orderBy: pollId, orderDirection: desc) {
    pollId
    question
    options
    votes
    endTime
    isActive
    creator
    totalFunding
    fundingToken
    distributionMode
    fundingType
    status
    votingType
    totalVotesBought
    createdAt
    voterCount
  }
}`

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type pollsResponse struct {
	Data struct {
		Polls []pollRow `json:"polls"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// BigInt scalars arrive as strings; enums may arrive as labels or as the
// raw contract integers depending on the subgraph build.
type pollRow struct {
	PollID           string          `json:"pollId"`
	Question         string          `json:"question"`
	Options          []string        `json:"options"`
	Votes            []string        `json:"votes"`
	EndTime          string          `json:"endTime"`
	IsActive         bool            `json:"isActive"`
	Creator          string          `json:"creator"`
	TotalFunding     string          `json:"totalFunding"`
	FundingToken     string          `json:"fundingToken"`
	DistributionMode json.RawMessage `json:"distributionMode"`
	FundingType      json.RawMessage `json:"fundingType"`
	Status           json.RawMessage `json:"status"`
	VotingType       json.RawMessage `json:"votingType"`
	TotalVotesBought string          `json:"totalVotesBought"`
	CreatedAt        string          `json:"createdAt"`
	VoterCount       string          `json:"voterCount"`
}

func (row pollRow) toRecord(chain string, tokens *token.Registry) (poll.Record, error) {
	var (
		r   poll.Record
		err error
	)
	if r.ID, err = parseUint(row.PollID); err != nil {
		return r, fmt.Errorf("pollId: %w", err)
	}
	r.Question = row.Question
	r.Options = row.Options
	r.Votes = make([]uint64, len(row.Votes))
	for i, v := range row.Votes {
		if r.Votes[i], err = parseUint(v); err != nil {
			return r, fmt.Errorf("votes[%d]: %w", i, err)
		}
	}
	endTime, err := parseUint(row.EndTime)
	if err != nil {
		return r, fmt.Errorf("endTime: %w", err)
	}
	r.EndTime = int64(endTime)
	createdAt, err := parseUint(row.CreatedAt)
	if err != nil {
		return r, fmt.Errorf("createdAt: %w", err)
	}
	r.CreatedAt = int64(createdAt)
	r.IsActive = row.IsActive
	r.Creator = poll.NormalizeCreator(row.Creator)

	funding, err := decimal.NewFromString(defaultZero(row.TotalFunding))
	if err != nil || !funding.IsInteger() {
		return r, fmt.Errorf("totalFunding %q is not an integer", row.TotalFunding)
	}
	r.TotalFunding = funding.BigInt()
	r.FundingToken = resolveToken(chain, row.FundingToken, tokens)

	if r.TotalVotesBought, err = parseUint(row.TotalVotesBought); err != nil {
		return r, fmt.Errorf("totalVotesBought: %w", err)
	}
	if r.VoterCount, err = parseUint(row.VoterCount); err != nil {
		return r, fmt.Errorf("voterCount: %w", err)
	}

	if err := decodeEnum(row.DistributionMode, func(s string) error {
		v, err := poll.ParseDistributionMode(s)
		r.DistributionMode = v
		return err
	}, func(n uint64) error {
		v, err := poll.DistributionModeFromUint(n)
		r.DistributionMode = v
		return err
	}); err != nil {
		return r, fmt.Errorf("distributionMode: %w", err)
	}
	if err := decodeEnum(row.FundingType, func(s string) error {
		v, err := poll.ParseFundingType(s)
		r.FundingType = v
		return err
	}, func(n uint64) error {
		v, err := poll.FundingTypeFromUint(n)
		r.FundingType = v
		return err
	}); err != nil {
		return r, fmt.Errorf("fundingType: %w", err)
	}
	if err := decodeEnum(row.Status, func(s string) error {
		v, err := poll.ParseStatus(s)
		r.Status = v
		return err
	}, func(n uint64) error {
		v, err := poll.StatusFromUint(n)
		r.Status = v
		return err
	}); err != nil {
		return r, fmt.Errorf("status: %w", err)
	}
	if err := decodeEnum(row.VotingType, func(s string) error {
		v, err := poll.ParseVotingType(s)
		r.VotingType = v
		return err
	}, func(n uint64) error {
		v, err := poll.VotingTypeFromUint(n)
		r.VotingType = v
		return err
	}); err != nil {
		return r, fmt.Errorf("votingType: %w", err)
	}
	return r, nil
}

func resolveToken(chain, address string, tokens *token.Registry) token.Descriptor {
	if tokens != nil {
		if d, ok := tokens.LookupAddress(chain, address); ok {
			return d
		}
	}
	addr := strings.ToLower(strings.TrimSpace(address))
	if addr == "" || addr == token.ZeroAddress {
		return token.Descriptor{Native: true, Decimals: 18}
	}
	return token.Descriptor{Address: addr, Decimals: 18}
}

func decodeEnum(raw json.RawMessage, byLabel func(string) error, byNumber func(uint64) error) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("missing value")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseUint(s, 10, 8); err == nil {
			return byNumber(n)
		}
		return byLabel(s)
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("unsupported value %s", string(raw))
	}
	return byNumber(n)
}

func parseUint(s string) (uint64, error) {
	return strconv.ParseUint(defaultZero(s), 10, 64)
}

func defaultZero(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "0"
	}
	return s
}
