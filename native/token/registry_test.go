package token

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRoundTrip(t *testing.T) {
	reg := Default()

	amount, err := reg.Normalize("usdc", 1_000_000)
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.NewFromInt(1)), "got %s", amount)

	minor, err := reg.ToMinor("USDC", decimal.RequireFromString("12.345678"))
	require.NoError(t, err)
	require.Equal(t, int64(12_345_678), minor)
}

func TestToMinorRejectsExcessPrecision(t *testing.T) {
	reg := Default()
	_, err := reg.ToMinor("USDC", decimal.RequireFromString("1.0000001"))
	require.Error(t, err)
}

func TestToMinorRejectsNegative(t *testing.T) {
	reg := Default()
	_, err := reg.ToMinor("USDC", decimal.RequireFromString("-5"))
	require.Error(t, err)
}

func TestUnknownToken(t *testing.T) {
	reg := Default()
	_, err := reg.Get("DOGE")
	require.Error(t, err)
	_, err = reg.Normalize("DOGE", 1)
	require.Error(t, err)
}

func TestContractAddress(t *testing.T) {
	reg := Default()

	addr, err := reg.ContractAddress("USDC", "Base")
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	_, err = reg.ContractAddress("PYUSD", "base")
	require.Error(t, err, "PYUSD has no base deployment")
}

func TestTokensOnChain(t *testing.T) {
	reg := Default()
	base := reg.TokensOnChain("base")
	symbols := make([]string, 0, len(base))
	for _, meta := range base {
		symbols = append(symbols, meta.Symbol)
	}
	require.Contains(t, symbols, "USDC")
	require.Contains(t, symbols, "EURC")
	require.NotContains(t, symbols, "PYUSD")
}
