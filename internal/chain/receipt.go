package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// Consecutive polls on which the node knows neither a receipt nor the
// transaction itself before it is treated as dropped from the pool. A couple
// of unknown polls right after broadcast are normal propagation lag.
const unknownPollLimit = 3

// WaitForReceipt polls for the receipt of txHash until it is mined or timeout
// elapses. The timeout is a soft cutoff on the caller's wait, not a
// cancellation of the transaction itself. A transaction the node stops
// knowing altogether is reported as ErrTxNotFound, distinct from a timeout
// where the transaction is still pending.
func WaitForReceipt(ctx context.Context, b Backend, txHash common.Hash, timeout, poll time.Duration) (*Outcome, error) {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(poll)
	defer tick.Stop()

	unknown := 0
	for {
		// ethereum.NotFound while pending is expected; transient node trouble
		// also just keeps polling until the deadline.
		r, err := b.TransactionReceipt(ctx, txHash)
		if err == nil && r != nil {
			return outcomeFromReceipt(r), nil
		}
		if errors.Is(err, ethereum.NotFound) {
			if _, _, lookupErr := b.TransactionByHash(ctx, txHash); errors.Is(lookupErr, ethereum.NotFound) {
				unknown++
				if unknown >= unknownPollLimit {
					return nil, fmt.Errorf("%w: %s", ErrTxNotFound, txHash.Hex())
				}
			} else {
				unknown = 0
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, &ConfirmationTimeoutError{TxHash: txHash}
		case <-tick.C:
		}
	}
}

// BroadcastRaw submits a transaction that was signed by an external party
// (borrower or lender); the platform never sees their keys.
func BroadcastRaw(ctx context.Context, b Backend, signedHex string) (common.Hash, error) {
	s := strings.TrimSpace(signedHex)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("decode signed transaction: %w", err)
	}
	tx := new(gethtypes.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("parse signed transaction: %w", err)
	}
	if err := b.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("broadcast: %w", err)
	}
	return tx.Hash(), nil
}
