// Package token holds the stablecoin registry: typed token metadata, minor
// unit conversion, and the chain to contract address map consumed by the
// policy engine and the chain executor port.
package token

import (
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"sardis/errs"
)

// Metadata describes a supported stable token.
type Metadata struct {
	Symbol      string
	Decimals    int32
	Issuer      string
	PegCurrency string
	PegRatio    decimal.Decimal
	// Contracts maps a chain name to the token contract address on that chain.
	Contracts map[string]string
}

// Registry maps token symbols to their metadata. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]Metadata
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{tokens: make(map[string]Metadata)}
}

// Default returns a registry seeded with the launch token set.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Metadata{
		Symbol:      "USDC",
		Decimals:    6,
		Issuer:      "circle",
		PegCurrency: "USD",
		PegRatio:    decimal.NewFromInt(1),
		Contracts: map[string]string{
			"base":     "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			"ethereum": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			"polygon":  "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		},
	})
	r.Register(Metadata{
		Symbol:      "EURC",
		Decimals:    6,
		Issuer:      "circle",
		PegCurrency: "EUR",
		PegRatio:    decimal.NewFromInt(1),
		Contracts: map[string]string{
			"base":     "0x60a3E35Cc302bFA44Cb288Bc5a4F316Fdb1adb42",
			"ethereum": "0x1aBaEA1f7C830bD89Acc67eC4af516284b1bC33c",
		},
	})
	r.Register(Metadata{
		Symbol:      "PYUSD",
		Decimals:    6,
		Issuer:      "paxos",
		PegCurrency: "USD",
		PegRatio:    decimal.NewFromInt(1),
		Contracts: map[string]string{
			"ethereum": "0x6c3ea9036406852006290770BEdFcAbA0e23A0e8",
		},
	})
	return r
}

// Register adds or replaces a token entry. Symbols are canonicalised to upper
// case; chain names to lower case.
func (r *Registry) Register(meta Metadata) {
	symbol := canonicalSymbol(meta.Symbol)
	contracts := make(map[string]string, len(meta.Contracts))
	for chain, addr := range meta.Contracts {
		contracts[strings.ToLower(strings.TrimSpace(chain))] = strings.TrimSpace(addr)
	}
	meta.Symbol = symbol
	meta.Contracts = contracts
	r.mu.Lock()
	r.tokens[symbol] = meta
	r.mu.Unlock()
}

// Get resolves a token symbol to its metadata.
func (r *Registry) Get(symbol string) (Metadata, error) {
	r.mu.RLock()
	meta, ok := r.tokens[canonicalSymbol(symbol)]
	r.mu.RUnlock()
	if !ok {
		return Metadata{}, errs.Newf(errs.CodeValidation, "invalid token %q", symbol).WithDetail("reason", "invalid_token")
	}
	return meta, nil
}

// Symbols returns the registered token symbols in no particular order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tokens))
	for symbol := range r.tokens {
		out = append(out, symbol)
	}
	return out
}

// TokensOnChain lists the tokens deployed on the given chain.
func (r *Registry) TokensOnChain(chain string) []Metadata {
	chain = strings.ToLower(strings.TrimSpace(chain))
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.tokens))
	for _, meta := range r.tokens {
		if _, ok := meta.Contracts[chain]; ok {
			out = append(out, meta)
		}
	}
	return out
}

// Normalize converts a minor-unit amount to its exact decimal representation.
func (r *Registry) Normalize(symbol string, minor int64) (decimal.Decimal, error) {
	meta, err := r.Get(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(minor, -meta.Decimals), nil
}

// ToMinor converts a decimal amount to minor units. Amounts carrying more
// precision than the token's declared decimals are rejected rather than
// truncated.
func (r *Registry) ToMinor(symbol string, amount decimal.Decimal) (int64, error) {
	meta, err := r.Get(symbol)
	if err != nil {
		return 0, err
	}
	scaled := amount.Shift(meta.Decimals)
	if !scaled.IsInteger() {
		return 0, errs.Newf(errs.CodeValidation, "amount %s exceeds %s precision of %d decimals", amount, meta.Symbol, meta.Decimals)
	}
	if scaled.IsNegative() {
		return 0, errs.Validation("amount must be non-negative")
	}
	if !scaled.BigInt().IsInt64() {
		return 0, errs.Validation("amount overflows minor units")
	}
	return scaled.IntPart(), nil
}

// ContractAddress resolves the token contract on the requested chain.
func (r *Registry) ContractAddress(symbol, chain string) (string, error) {
	meta, err := r.Get(symbol)
	if err != nil {
		return "", err
	}
	addr, ok := meta.Contracts[strings.ToLower(strings.TrimSpace(chain))]
	if !ok {
		return "", errs.Newf(errs.CodeValidation, "token %s not deployed on chain %q", meta.Symbol, chain).WithDetail("reason", "unsupported_chain")
	}
	return addr, nil
}

func canonicalSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
