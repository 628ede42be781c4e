// Package token models funding tokens and decimal-aware amounts. All amount
// math is done on smallest-unit integers; decimal.Decimal is only used at the
// string boundary.
package token

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"pollkeeper/internal/apperr"
)

// Descriptor identifies a funding token on one chain scope.
type Descriptor struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Native   bool   `json:"is_native"`
	// Address is the lowercased contract address; empty for the native asset.
	Address string `json:"address,omitempty"`
}

// Registry maps chain scope -> symbol -> Descriptor.
type Registry struct {
	mu      sync.RWMutex
	byChain map[string]map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{byChain: map[string]map[string]Descriptor{}}
}

func (r *Registry) Register(chain string, d Descriptor) error {
	chain = normalizeChain(chain)
	sym := normalizeSymbol(d.Symbol)
	if chain == "" || sym == "" {
		return fmt.Errorf("token registry: chain and symbol are required")
	}
	addr := strings.ToLower(strings.TrimSpace(d.Address))
	if !d.Native && addr == "" {
		return fmt.Errorf("token registry: %s on %s has no address", sym, chain)
	}
	if d.Native {
		addr = ""
	}
	d.Symbol = sym
	d.Address = addr

	r.mu.Lock()
	defer r.mu.Unlock()
	tokens, ok := r.byChain[chain]
	if !ok {
		tokens = map[string]Descriptor{}
		r.byChain[chain] = tokens
	}
	tokens[sym] = d
	return nil
}

// Lookup fails with TokenNotSupportedOnChain when the symbol has no mapping
// for the chain scope.
func (r *Registry) Lookup(chain, symbol string) (Descriptor, error) {
	chain = normalizeChain(chain)
	sym := normalizeSymbol(symbol)
	r.mu.RLock()
	d, ok := r.byChain[chain][sym]
	r.mu.RUnlock()
	if !ok {
		return Descriptor{}, apperr.New(apperr.KindTokenNotSupportedOnChain, "token_lookup", "").WithToken(sym, chain)
	}
	return d, nil
}

// LookupAddress resolves a contract address (or the zero/empty address for
// the native asset) to its descriptor.
func (r *Registry) LookupAddress(chain, address string) (Descriptor, bool) {
	chain = normalizeChain(chain)
	addr := strings.ToLower(strings.TrimSpace(address))
	native := addr == "" || addr == ZeroAddress
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.byChain[chain] {
		if native && d.Native {
			return d, true
		}
		if !native && d.Address == addr {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Native returns the native asset descriptor of a chain scope.
func (r *Registry) Native(chain string) (Descriptor, bool) {
	return r.LookupAddress(chain, "")
}

func (r *Registry) Chains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byChain))
	for c := range r.byChain {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

const ZeroAddress = "0x0000000000000000000000000000000000000000"

func normalizeChain(chain string) string {
	return strings.ToLower(strings.TrimSpace(chain))
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
