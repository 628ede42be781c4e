package quadratic

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollkeeper/internal/apperr"
	"pollkeeper/internal/poll"
)

func TestQuoteCostKnownValues(t *testing.T) {
	tests := []struct {
		owned, requested uint64
		want             uint64
	}{
		{0, 1, 1},
		{0, 2, 5},
		{0, 3, 14},
		{2, 2, 25},
		{3, 1, 16},
		{10, 5, 121 + 144 + 169 + 196 + 225},
	}
	for _, tt := range tests {
		got, err := QuoteCost(tt.owned, tt.requested)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Uint64(), "QuoteCost(%d,%d)", tt.owned, tt.requested)
	}
}

func bigSumOfSquares(n *big.Int) *big.Int {
	n1 := new(big.Int).Add(n, big.NewInt(1))
	twoN1 := new(big.Int).Add(new(big.Int).Lsh(n, 1), big.NewInt(1))
	out := new(big.Int).Mul(n, n1)
	out.Mul(out, twoN1)
	return out.Quo(out, big.NewInt(6))
}

func TestQuoteCostMatchesClosedFormAndBruteForce(t *testing.T) {
	for m := uint64(0); m <= 40; m++ {
		for k := uint64(1); k <= 40; k++ {
			got, err := QuoteCost(m, k)
			require.NoError(t, err)

			var brute uint64
			for i := m + 1; i <= m+k; i++ {
				brute += i * i
			}
			assert.Equal(t, brute, got.Uint64(), "m=%d k=%d", m, k)

			closed := new(big.Int).Sub(
				bigSumOfSquares(new(big.Int).SetUint64(m+k)),
				bigSumOfSquares(new(big.Int).SetUint64(m)),
			)
			assert.Equal(t, 0, closed.Cmp(got.ToBig()))
		}
	}
}

func TestQuoteCostLargeInputsStayExact(t *testing.T) {
	got, err := QuoteCost(math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)

	m := new(big.Int).SetUint64(math.MaxUint64)
	want := new(big.Int).Sub(bigSumOfSquares(new(big.Int).Add(m, m)), bigSumOfSquares(m))
	assert.Equal(t, 0, want.Cmp(got.ToBig()))
}

func TestQuoteCostRejectsNonPositive(t *testing.T) {
	_, err := QuoteCost(5, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.InvalidVoteCount))
}

func TestQuoteCostWideFailsClosedOnOverflow(t *testing.T) {
	owned := new(uint256.Int).Lsh(uint256.NewInt(1), 100)
	_, err := QuoteCostWide(owned, uint256.NewInt(1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.CostOverflow))

	max := new(uint256.Int).SetAllOne()
	_, err = QuoteCostWide(max, uint256.NewInt(1))
	assert.True(t, errors.Is(err, apperr.CostOverflow))
}

func TestQuoteIncrementalCostsSumsToTotal(t *testing.T) {
	for _, tc := range [][2]uint64{{0, 1}, {0, 7}, {3, 4}, {99, 50}} {
		parts, err := QuoteIncrementalCosts(tc[0], tc[1])
		require.NoError(t, err)
		require.Len(t, parts, int(tc[1]))
		assert.Equal(t, (tc[0]+1)*(tc[0]+1), parts[0].Uint64())

		sum := new(uint256.Int)
		for _, part := range parts {
			sum.Add(sum, part)
		}
		total, err := QuoteCost(tc[0], tc[1])
		require.NoError(t, err)
		assert.True(t, sum.Eq(total), "owned=%d requested=%d", tc[0], tc[1])
	}

	_, err := QuoteIncrementalCosts(0, MaxBreakdownSteps+1)
	assert.True(t, errors.Is(err, apperr.InvalidVoteCount))
}

func TestQuoteAgainstPoll(t *testing.T) {
	r := poll.Record{ID: 9, Options: []string{"yes", "no"}, Votes: []uint64{0, 0}, VotingType: poll.VotingQuadratic}

	q, err := Quote(r, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), q.TotalCost.Uint64())
	assert.Equal(t, int64(25), q.TotalCostBig().Int64())

	_, err = Quote(r, 2, 0, 1)
	assert.True(t, errors.Is(err, apperr.InvalidVoteCount))

	r.VotingType = poll.VotingLinear
	_, err = Quote(r, 0, 0, 1)
	assert.True(t, errors.Is(err, apperr.InvalidVoteCount))
}
