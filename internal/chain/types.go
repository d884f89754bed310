// Package chain holds the Ethereum-facing plumbing: an owned RPC client,
// receipt polling, and the platform-signed transaction submitter.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Backend is the subset of the Ethereum RPC surface the orchestrator uses.
// *ethclient.Client satisfies it; tests substitute a function-backed mock.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionByHash(ctx context.Context, txHash common.Hash) (*gethtypes.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// CallIntent describes one pending on-chain action. A nil To means contract
// deployment and Data then carries creation bytecode plus constructor args.
// Intents are built, submitted and discarded within a single orchestration
// step; they are never persisted.
type CallIntent struct {
	To    *common.Address
	Data  []byte
	Value *big.Int
}

// Outcome is the result of a confirmed submission.
type Outcome struct {
	Success         bool
	TxHash          common.Hash
	GasUsed         uint64
	BlockNumber     uint64
	ContractAddress common.Address
	RevertReason    string
}

func outcomeFromReceipt(r *gethtypes.Receipt) *Outcome {
	o := &Outcome{
		Success:         r.Status == gethtypes.ReceiptStatusSuccessful,
		TxHash:          r.TxHash,
		GasUsed:         r.GasUsed,
		ContractAddress: r.ContractAddress,
	}
	if r.BlockNumber != nil {
		o.BlockNumber = r.BlockNumber.Uint64()
	}
	return o
}
