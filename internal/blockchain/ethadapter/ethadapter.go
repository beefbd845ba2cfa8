// Package ethadapter implements the blockchain.Adapter contract over
// Ethereum-family RPC endpoints, adapted from the teacher's EthereumAdapter
// (src/chainadapter/ethereum/adapter.go) down to the relay's narrower
// send/query/address-resolution surface — no fee estimation or local
// signing, since messages are embedded in a transaction's input data and
// signing is delegated back to the account holder via
// blockchain.Adapter.RequestSignature.
package ethadapter

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/whiteflagprotocol/wfrelay/internal/blockchain"
	"github.com/whiteflagprotocol/wfrelay/internal/metrics"
)

// Adapter implements blockchain.Adapter over go-ethereum's JSON-RPC client.
type Adapter struct {
	name    string
	client  *ethclient.Client
	chainID *big.Int
	Metrics metrics.RelayMetrics
}

var _ blockchain.Adapter = (*Adapter)(nil)

// New dials an Ethereum JSON-RPC endpoint and returns a ready adapter.
func New(ctx context.Context, name, rpcURL string) (*Adapter, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, blockchain.NewRetryableError(blockchain.ErrCodeRPCUnavailable, "dial ethereum rpc", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, blockchain.NewRetryableError(blockchain.ErrCodeRPCTimeout, "query chain id", err)
	}
	return &Adapter{name: name, client: client, chainID: chainID, Metrics: &metrics.NoOpMetrics{}}, nil
}

// record times an RPC call and feeds the result into Metrics, defaulting to
// a no-op recorder if the caller never set one.
func (a *Adapter) record(method string, start time.Time, err error) {
	if a.Metrics == nil {
		return
	}
	a.Metrics.RecordRPCCall(method, time.Since(start), err == nil)
}

func (a *Adapter) Name() string { return a.name }

// SendMessage broadcasts an already-built transaction that carries the
// Whiteflag message as calldata. Signing happens upstream of this adapter;
// this method accepts the raw, fully-signed transaction bytes in encoded and
// does not build or sign anything itself.
func (a *Adapter) SendMessage(ctx context.Context, encoded []byte, from, to string) (string, uint64, error) {
	start := time.Now()
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(encoded); err != nil {
		a.record("eth_sendRawTransaction", start, err)
		return "", 0, blockchain.NewNonRetryableError(blockchain.ErrCodeInvalidAddress, "invalid signed transaction", err)
	}
	err := a.client.SendTransaction(ctx, tx)
	a.record("eth_sendRawTransaction", start, err)
	if err != nil {
		return "", 0, blockchain.NewRetryableError(blockchain.ErrCodeRPCUnavailable, "broadcast transaction", err)
	}
	return tx.Hash().Hex(), 0, nil
}

func (a *Adapter) GetMessage(ctx context.Context, txHash string) ([]byte, uint64, error) {
	start := time.Now()
	tx, isPending, err := a.client.TransactionByHash(ctx, common.HexToHash(txHash))
	a.record("eth_getTransactionByHash", start, err)
	if err != nil {
		return nil, 0, blockchain.NewNonRetryableError(blockchain.ErrCodeTxNotFound, "transaction not found", err)
	}
	var blockNumber uint64
	if !isPending {
		receipt, err := a.client.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			blockNumber = receipt.BlockNumber.Uint64()
		}
	}
	return tx.Data(), blockNumber, nil
}

// RequestSignature is not implemented by this adapter: signing is the
// account holder's responsibility in the reference deployment (spec §4.7
// delegates tx-side signing to the blockchain adapter, which in turn
// delegates to a wallet out of scope for this core).
func (a *Adapter) RequestSignature(ctx context.Context, address string, payload []byte) (string, error) {
	return "", blockchain.ErrNotImplemented(a.name + ":RequestSignature")
}

func (a *Adapter) RequestKeys(ctx context.Context, pubKeyHex string) ([]byte, error) {
	return nil, blockchain.ErrNotImplemented(a.name + ":RequestKeys")
}

// GetBinaryAddress strips the "0x" prefix and returns the 20 raw address
// bytes used as HKDF info.
func (a *Adapter) GetBinaryAddress(ctx context.Context, address string) ([]byte, error) {
	if !common.IsHexAddress(address) {
		return nil, blockchain.NewNonRetryableError(blockchain.ErrCodeInvalidAddress, fmt.Sprintf("invalid ethereum address %q", address), nil)
	}
	return common.HexToAddress(address).Bytes(), nil
}

func (a *Adapter) HighestBlock(ctx context.Context) (uint64, error) {
	start := time.Now()
	height, err := a.client.BlockNumber(ctx)
	a.record("eth_blockNumber", start, err)
	if err != nil {
		return 0, blockchain.NewRetryableError(blockchain.ErrCodeRPCTimeout, "query block number", err)
	}
	return height, nil
}

func (a *Adapter) CreateAccount(ctx context.Context, secret []byte) (string, error) {
	return "", blockchain.ErrNotImplemented(a.name + ":CreateAccount")
}

func (a *Adapter) DeleteAccount(ctx context.Context, address string) error {
	return blockchain.ErrNotImplemented(a.name + ":DeleteAccount")
}
