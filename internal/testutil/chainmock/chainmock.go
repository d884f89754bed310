// Package chainmock provides function-backed mocks for the Ethereum-facing
// interfaces, in the same style as loanmock.
package chainmock

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/contract"
)

var errUnimplemented = errors.New("chainmock: method not implemented")

// Backend mocks chain.Backend.
type Backend struct {
	PendingNonceAtFn     func(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPriceFn    func(ctx context.Context) (*big.Int, error)
	EstimateGasFn        func(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContractFn       func(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransactionFn    func(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionByHashFn  func(ctx context.Context, txHash common.Hash) (*gethtypes.Transaction, bool, error)
	TransactionReceiptFn func(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumberFn     func(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	BalanceAtFn          func(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

var _ chain.Backend = (*Backend)(nil)

func (m *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if m.PendingNonceAtFn != nil {
		return m.PendingNonceAtFn(ctx, account)
	}
	return 0, nil
}

func (m *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if m.SuggestGasPriceFn != nil {
		return m.SuggestGasPriceFn(ctx)
	}
	return big.NewInt(1_000_000_000), nil
}

func (m *Backend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if m.EstimateGasFn != nil {
		return m.EstimateGasFn(ctx, msg)
	}
	return 21000, nil
}

func (m *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if m.CallContractFn != nil {
		return m.CallContractFn(ctx, msg, blockNumber)
	}
	return nil, errUnimplemented
}

func (m *Backend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	if m.SendTransactionFn != nil {
		return m.SendTransactionFn(ctx, tx)
	}
	return nil
}

// Unset, the transaction is reported as known but still pending, so receipt
// waits run to their deadline instead of classifying it as dropped.
func (m *Backend) TransactionByHash(ctx context.Context, txHash common.Hash) (*gethtypes.Transaction, bool, error) {
	if m.TransactionByHashFn != nil {
		return m.TransactionByHashFn(ctx, txHash)
	}
	return nil, true, nil
}

func (m *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	if m.TransactionReceiptFn != nil {
		return m.TransactionReceiptFn(ctx, txHash)
	}
	return nil, ethereum.NotFound
}

func (m *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	if m.HeaderByNumberFn != nil {
		return m.HeaderByNumberFn(ctx, number)
	}
	return nil, errUnimplemented
}

func (m *Backend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	if m.BalanceAtFn != nil {
		return m.BalanceAtFn(ctx, account, blockNumber)
	}
	return nil, errUnimplemented
}

// Submitter mocks the orchestrator's TxSubmitter.
type Submitter struct {
	SubmitFn    func(ctx context.Context, intent chain.CallIntent) (*chain.Outcome, error)
	SubmitRawFn func(ctx context.Context, signedHex string) (*chain.Outcome, error)
	FromAddr    common.Address
}

func (m *Submitter) Submit(ctx context.Context, intent chain.CallIntent) (*chain.Outcome, error) {
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, intent)
	}
	return nil, errUnimplemented
}

func (m *Submitter) SubmitRaw(ctx context.Context, signedHex string) (*chain.Outcome, error) {
	if m.SubmitRawFn != nil {
		return m.SubmitRawFn(ctx, signedHex)
	}
	return nil, errUnimplemented
}

func (m *Submitter) From() common.Address { return m.FromAddr }

// Deployer mocks the orchestrator's ContractDeployer.
type Deployer struct {
	DeployFn func(ctx context.Context, p contract.DeployParams) (*chain.Outcome, error)
}

func (m *Deployer) Deploy(ctx context.Context, p contract.DeployParams) (*chain.Outcome, error) {
	if m.DeployFn != nil {
		return m.DeployFn(ctx, p)
	}
	return nil, errUnimplemented
}

// Reader mocks the orchestrator's ContractReader. Zero values report an
// untouched contract; set the Fn fields to override.
type Reader struct {
	IsDisbursedFn          func(ctx context.Context, target common.Address) (bool, error)
	IsRepaidFn             func(ctx context.Context, target common.Address) (bool, error)
	IsLiquidatedFn         func(ctx context.Context, target common.Address) (bool, error)
	IsCollateralProvidedFn func(ctx context.Context, target common.Address) (bool, error)
	LoanEndTimeFn          func(ctx context.Context, target common.Address) (uint64, error)
}

func (m *Reader) IsDisbursed(ctx context.Context, target common.Address) (bool, error) {
	if m.IsDisbursedFn != nil {
		return m.IsDisbursedFn(ctx, target)
	}
	return false, nil
}

func (m *Reader) IsRepaid(ctx context.Context, target common.Address) (bool, error) {
	if m.IsRepaidFn != nil {
		return m.IsRepaidFn(ctx, target)
	}
	return false, nil
}

func (m *Reader) IsLiquidated(ctx context.Context, target common.Address) (bool, error) {
	if m.IsLiquidatedFn != nil {
		return m.IsLiquidatedFn(ctx, target)
	}
	return false, nil
}

func (m *Reader) IsCollateralProvided(ctx context.Context, target common.Address) (bool, error) {
	if m.IsCollateralProvidedFn != nil {
		return m.IsCollateralProvidedFn(ctx, target)
	}
	return false, nil
}

func (m *Reader) LoanEndTime(ctx context.Context, target common.Address) (uint64, error) {
	if m.LoanEndTimeFn != nil {
		return m.LoanEndTimeFn(ctx, target)
	}
	return 0, nil
}

// Receipts mocks the orchestrator's ReceiptSource.
type Receipts struct {
	TransactionReceiptFn func(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

func (m *Receipts) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	if m.TransactionReceiptFn != nil {
		return m.TransactionReceiptFn(ctx, txHash)
	}
	return nil, ethereum.NotFound
}
