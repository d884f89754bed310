package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"lendingchain-backend/internal/chain"
)

// Reader exposes the P2PLoan view functions used for preconditions and
// reconciliation. All errors wrap chain.ErrChainCall so callers can treat
// view unavailability as a retryable chain fault.
type Reader struct {
	backend chain.Backend
}

func NewReader(b chain.Backend) *Reader {
	return &Reader{backend: b}
}

func (r *Reader) call(ctx context.Context, target common.Address, method string) ([]interface{}, error) {
	data, err := P2PLoanABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		// Keep the node error in the chain so an unavailable connection still
		// matches chain.ErrChainUnavailable at the handler.
		return nil, fmt.Errorf("%w: %s: %w", chain.ErrChainCall, method, err)
	}
	vals, err := P2PLoanABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", chain.ErrChainCall, method, err)
	}
	return vals, nil
}

func (r *Reader) boolView(ctx context.Context, target common.Address, method string) (bool, error) {
	vals, err := r.call(ctx, target, method)
	if err != nil {
		return false, err
	}
	v, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s: unexpected result type", chain.ErrChainCall, method)
	}
	return v, nil
}

func (r *Reader) uintView(ctx context.Context, target common.Address, method string) (*big.Int, error) {
	vals, err := r.call(ctx, target, method)
	if err != nil {
		return nil, err
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: %s: unexpected result type", chain.ErrChainCall, method)
	}
	return v, nil
}

func (r *Reader) IsDisbursed(ctx context.Context, target common.Address) (bool, error) {
	return r.boolView(ctx, target, "isDisbursed")
}

func (r *Reader) IsRepaid(ctx context.Context, target common.Address) (bool, error) {
	return r.boolView(ctx, target, "isRepaid")
}

func (r *Reader) IsLiquidated(ctx context.Context, target common.Address) (bool, error) {
	return r.boolView(ctx, target, "isLiquidated")
}

func (r *Reader) IsCollateralProvided(ctx context.Context, target common.Address) (bool, error) {
	return r.boolView(ctx, target, "isCollateralProvided")
}

// LoanEndTime is the unix timestamp after which liquidation becomes legal;
// zero while the loan is not yet disbursed.
func (r *Reader) LoanEndTime(ctx context.Context, target common.Address) (uint64, error) {
	v, err := r.uintView(ctx, target, "loanEndTime")
	if err != nil {
		return 0, err
	}
	return v.Uint64(), nil
}

func (r *Reader) AmountDue(ctx context.Context, target common.Address) (*big.Int, error) {
	return r.uintView(ctx, target, "calculateAmountDue")
}

// TokenBalance reads an ERC-20 balance plus its display metadata.
func (r *Reader) TokenBalance(ctx context.Context, token, holder common.Address) (balance *big.Int, decimals uint8, symbol string, err error) {
	callERC20 := func(method string, args ...interface{}) ([]interface{}, error) {
		data, packErr := ERC20ABI.Pack(method, args...)
		if packErr != nil {
			return nil, fmt.Errorf("pack %s: %w", method, packErr)
		}
		out, callErr := r.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if callErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", chain.ErrChainCall, method, callErr)
		}
		return ERC20ABI.Unpack(method, out)
	}

	vals, err := callERC20("balanceOf", holder)
	if err != nil {
		return nil, 0, "", err
	}
	balance, _ = vals[0].(*big.Int)

	if vals, err = callERC20("decimals"); err != nil {
		return nil, 0, "", err
	}
	decimals, _ = vals[0].(uint8)

	if vals, err = callERC20("symbol"); err != nil {
		return nil, 0, "", err
	}
	symbol, _ = vals[0].(string)
	return balance, decimals, symbol, nil
}
