package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := New(KindInvalidAmount, "parse", "negative").WithToken("USDC", "base")
	wrapped := fmt.Errorf("plan: %w", err)

	assert.True(t, errors.Is(wrapped, InvalidAmount))
	assert.False(t, errors.Is(wrapped, InsufficientBalance))
	assert.Equal(t, KindInvalidAmount, KindOf(wrapped))
}

func TestErrorMessageCarriesContext(t *testing.T) {
	err := Wrap(KindLedgerUnavailable, "reconcile", errors.New("dial tcp: refused")).WithPoll(42)
	msg := err.Error()
	require.Contains(t, msg, "reconcile")
	require.Contains(t, msg, "poll=42")
	require.Contains(t, msg, "dial tcp: refused")
	require.ErrorContains(t, errors.Unwrap(err), "refused")
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}
