package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrChainUnavailable: no usable RPC connection. Fatal to the current
	// request, retryable later.
	ErrChainUnavailable = errors.New("blockchain connection not available")

	// ErrChainCall: a read-only contract invocation failed at the node.
	ErrChainCall = errors.New("contract call failed")

	// ErrTxNotFound: the node no longer knows the transaction.
	ErrTxNotFound = errors.New("transaction not found on chain")

	// Match targets for the typed errors below.
	ErrWouldRevert         = errors.New("transaction would revert")
	ErrTransactionReverted = errors.New("transaction reverted on-chain")
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")
)

// WouldRevertError is returned when pre-broadcast simulation predicts failure.
// Nothing was broadcast and no chain resources were consumed.
type WouldRevertError struct {
	Reason string
}

func (e *WouldRevertError) Error() string {
	if e.Reason == "" {
		return ErrWouldRevert.Error()
	}
	return fmt.Sprintf("transaction would revert: %s", e.Reason)
}

func (e *WouldRevertError) Is(target error) bool { return target == ErrWouldRevert }

// RevertedError is returned when a broadcast transaction confirmed with a
// failed status. The hash is kept so the gas loss stays traceable even though
// the intended effect did not happen.
type RevertedError struct {
	TxHash common.Hash
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted on-chain", e.TxHash.Hex())
}

func (e *RevertedError) Is(target error) bool { return target == ErrTransactionReverted }

// ConfirmationTimeoutError means the outcome is unknown: the transaction was
// broadcast but not yet mined when the wait cut off. It may still confirm
// later; callers must go through reconciliation, never treat it as failure.
type ConfirmationTimeoutError struct {
	TxHash common.Hash
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed before timeout", e.TxHash.Hex())
}

func (e *ConfirmationTimeoutError) Is(target error) bool { return target == ErrConfirmationTimeout }
