package token

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pollkeeper/internal/apperr"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("Base", Descriptor{Symbol: "eth", Decimals: 18, Native: true}))
	require.NoError(t, r.Register("base", Descriptor{Symbol: "USDC", Decimals: 6, Address: "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"}))

	d, err := r.Lookup("BASE", "usdc")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d.Decimals)
	assert.Equal(t, "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913", d.Address)

	byAddr, ok := r.LookupAddress("base", "0x833589FCD6EDB6E08F4C7C32D4F71B54BDA02913")
	require.True(t, ok)
	assert.Equal(t, "USDC", byAddr.Symbol)

	native, ok := r.LookupAddress("base", ZeroAddress)
	require.True(t, ok)
	assert.True(t, native.Native)
}

func TestRegistryUnknownToken(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("base", Descriptor{Symbol: "USDC", Decimals: 6, Address: "0xabc"}))

	_, err := r.Lookup("celo", "USDC")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.TokenNotSupportedOnChain))

	var e *apperr.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "celo", e.Chain)
	assert.Equal(t, "USDC", e.Token)
}

func TestRegistryRejectsTokenWithoutAddress(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("base", Descriptor{Symbol: "USDC", Decimals: 6}))
}
