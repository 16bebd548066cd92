package payments

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"sardis/errs"
	"sardis/native/mandate"
	"sardis/native/token"
)

// transferSelector is the 4-byte selector of transfer(address,uint256).
var transferSelector = ethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

type evmChain struct {
	client  *ethclient.Client
	chainID *big.Int
}

// EVMExecutor dispatches stablecoin transfers through JSON-RPC nodes. One
// client per chain; the custody key signs locally. Production deployments
// front this with an external signer instead of a raw key.
type EVMExecutor struct {
	chains map[string]evmChain
	tokens *token.Registry
	key    *ecdsa.PrivateKey
	from   ethcommon.Address
}

// NewEVMExecutor dials every configured RPC endpoint and resolves its chain
// id. keyHex is the hex-encoded custody key, with or without a 0x prefix.
func NewEVMExecutor(ctx context.Context, rpcURLs map[string]string, tokens *token.Registry, keyHex string) (*EVMExecutor, error) {
	if len(rpcURLs) == 0 {
		return nil, errs.Validation("no chain rpc endpoints configured")
	}
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, errs.Wrap(errs.CodeValidation, "parse custody key", err)
	}
	exec := &EVMExecutor{
		chains: make(map[string]evmChain, len(rpcURLs)),
		tokens: tokens,
		key:    key,
		from:   ethcrypto.PubkeyToAddress(key.PublicKey),
	}
	for chain, url := range rpcURLs {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, errs.Wrap(errs.CodeUpstreamUnavailable, fmt.Sprintf("dial %s rpc", chain), err)
		}
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.CodeUpstreamUnavailable, fmt.Sprintf("resolve %s chain id", chain), err)
		}
		exec.chains[strings.ToLower(strings.TrimSpace(chain))] = evmChain{client: client, chainID: chainID}
	}
	return exec, nil
}

// ExecuteTransfer submits an ERC-20 transfer for the payment mandate and
// returns the transaction hash without waiting for inclusion.
func (e *EVMExecutor) ExecuteTransfer(ctx context.Context, p *mandate.PaymentMandate) (*ExecutionReceipt, error) {
	chainName := strings.ToLower(strings.TrimSpace(p.Chain))
	chain, ok := e.chains[chainName]
	if !ok {
		return nil, errs.Validation("unsupported chain " + p.Chain)
	}
	contractHex, err := e.tokens.ContractAddress(p.Token, chainName)
	if err != nil {
		return nil, err
	}
	if !ethcommon.IsHexAddress(p.Destination) {
		return nil, errs.Validation("destination is not a valid address")
	}
	contract := ethcommon.HexToAddress(contractHex)
	data := TransferCalldata(ethcommon.HexToAddress(p.Destination), big.NewInt(p.AmountMinor))

	nonce, err := chain.client.PendingNonceAt(ctx, e.from)
	if err != nil {
		return nil, errs.Wrap(errs.CodeUpstreamUnavailable, "fetch nonce", err)
	}
	gasPrice, err := chain.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.CodeUpstreamUnavailable, "suggest gas price", err)
	}
	gasLimit, err := chain.client.EstimateGas(ctx, ethereum.CallMsg{
		From: e.from,
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return nil, errs.Wrap(errs.CodeTransactionFailed, "estimate gas", err)
	}

	tx := ethtypes.NewTransaction(nonce, contract, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chain.chainID), e.key)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "sign transaction", err)
	}
	if err := chain.client.SendTransaction(ctx, signed); err != nil {
		return nil, errs.Wrap(errs.CodeTransactionFailed, "broadcast transaction", err)
	}
	return &ExecutionReceipt{
		TxHash:      signed.Hash().Hex(),
		GasUsed:     gasLimit,
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// EstimateGas asks the node for the cost of a representative transfer
// against the first token contract deployed on the chain.
func (e *EVMExecutor) EstimateGas(ctx context.Context, chainName string) (uint64, error) {
	name := strings.ToLower(strings.TrimSpace(chainName))
	chain, ok := e.chains[name]
	if !ok {
		return 0, errs.Validation("unsupported chain " + chainName)
	}
	var contract *ethcommon.Address
	for _, meta := range e.tokens.TokensOnChain(name) {
		if hexAddr, err := e.tokens.ContractAddress(meta.Symbol, name); err == nil {
			addr := ethcommon.HexToAddress(hexAddr)
			contract = &addr
			break
		}
	}
	data := TransferCalldata(e.from, big.NewInt(1))
	gas, err := chain.client.EstimateGas(ctx, ethereum.CallMsg{From: e.from, To: contract, Data: data})
	if err != nil {
		return 0, errs.Wrap(errs.CodeUpstreamUnavailable, "estimate gas", err)
	}
	return gas, nil
}

// SupportedChains lists the dialled chains in stable order.
func (e *EVMExecutor) SupportedChains() []string {
	out := make([]string, 0, len(e.chains))
	for name := range e.chains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TransferCalldata ABI-encodes transfer(to, amount).
func TransferCalldata(to ethcommon.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, ethcommon.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, ethcommon.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}
