package payments

import (
	"encoding/hex"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestTransferCalldata(t *testing.T) {
	to := ethcommon.HexToAddress("0x2222222222222222222222222222222222222222")
	data := TransferCalldata(to, big.NewInt(250_000_000))

	require.Len(t, data, 68)
	require.Equal(t, "a9059cbb", hex.EncodeToString(data[:4]))
	require.Equal(t, to.Bytes(), data[4+12:4+32])
	require.Equal(t, big.NewInt(250_000_000), new(big.Int).SetBytes(data[36:]))
}
