package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/domain/loan"
)

func minedStepReceipt(f *fixture) {
	f.receipts.TransactionReceiptFn = func(_ context.Context, h common.Hash) (*gethtypes.Receipt, error) {
		return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, TxHash: h}, nil
	}
}

// A funding whose confirmation wait timed out must stay recoverable: the
// retry cannot be a resubmission (the contract is already funded, so the node
// predicts a revert), it has to apply the mined transaction instead.
func TestAdoptStep_FundingAfterTimeout(t *testing.T) {
	l := approvedLoan(1)
	l.Status = loan.StatusCollateralProvided
	f := newFixture(l)
	f.reader.IsCollateralProvidedFn = func(context.Context, common.Address) (bool, error) {
		return true, nil
	}
	f.submitter.SubmitFn = func(context.Context, chain.CallIntent) (*chain.Outcome, error) {
		return nil, &chain.ConfirmationTimeoutError{TxHash: stepHash}
	}

	_, err := f.uc.Fund(context.Background(), 1)
	if !errors.Is(err, chain.ErrConfirmationTimeout) {
		t.Fatalf("want timeout surfaced, got %v", err)
	}
	if got := f.loan(1); got.Status != loan.StatusCollateralProvided || got.DisbursementTxHash != nil {
		t.Fatal("timed-out funding must leave the record untouched")
	}

	// The transaction mines later; the contract now reports disbursed.
	minedStepReceipt(f)
	endTime := uint64(time.Now().Add(365 * 24 * time.Hour).Unix())
	f.reader.IsDisbursedFn = func(context.Context, common.Address) (bool, error) { return true, nil }
	f.reader.LoanEndTimeFn = func(context.Context, common.Address) (uint64, error) { return endTime, nil }

	dto, err := f.uc.AdoptStep(context.Background(), 1, stepHash.Hex())
	if err != nil {
		t.Fatalf("adopt step: %v", err)
	}
	if dto.Status != loan.StatusActive {
		t.Fatalf("status: %s", dto.Status)
	}
	stored := f.loan(1)
	if stored.DisbursementTxHash == nil || *stored.DisbursementTxHash != stepHash.Hex() {
		t.Fatal("disbursement hash not adopted")
	}
	if stored.EndDate == nil || !stored.EndDate.Equal(time.Unix(int64(endTime), 0).UTC()) {
		t.Fatalf("end date must come from the on-chain clock, got %v", stored.EndDate)
	}

	// A second adoption has nothing left to apply.
	if _, err := f.uc.AdoptStep(context.Background(), 1, stepHash.Hex()); !errors.Is(err, loan.ErrPreconditionFailed) {
		t.Fatalf("re-adopt: want ErrPreconditionFailed, got %v", err)
	}
}

func TestAdoptStep_Collateral(t *testing.T) {
	f := newFixture(approvedLoan(1))
	minedStepReceipt(f)
	f.reader.IsCollateralProvidedFn = func(context.Context, common.Address) (bool, error) {
		return true, nil
	}

	dto, err := f.uc.AdoptStep(context.Background(), 1, stepHash.Hex())
	if err != nil {
		t.Fatalf("adopt step: %v", err)
	}
	if dto.Status != loan.StatusCollateralProvided {
		t.Fatalf("status: %s", dto.Status)
	}
	if l := f.loan(1); l.CollateralTxHash == nil || *l.CollateralTxHash != stepHash.Hex() {
		t.Fatal("collateral hash not adopted")
	}
}

func TestAdoptStep_Repayment(t *testing.T) {
	l := approvedLoan(1)
	l.Status = loan.StatusActive
	f := newFixture(l)
	minedStepReceipt(f)
	f.reader.IsRepaidFn = func(context.Context, common.Address) (bool, error) { return true, nil }

	dto, err := f.uc.AdoptStep(context.Background(), 1, stepHash.Hex())
	if err != nil {
		t.Fatalf("adopt step: %v", err)
	}
	if dto.Status != loan.StatusRepaid {
		t.Fatalf("status: %s", dto.Status)
	}
	stored := f.loan(1)
	if !stored.RepaidAmount.Equal(decimal.RequireFromString("1050")) {
		t.Fatalf("repaid amount: %s", stored.RepaidAmount)
	}
	if stored.RepaymentTxHash == nil || stored.LastRepaymentDate == nil {
		t.Fatal("repayment bookkeeping incomplete")
	}
}

func TestAdoptStep_Liquidation(t *testing.T) {
	l := approvedLoan(1)
	l.Status = loan.StatusOverdue
	f := newFixture(l)
	minedStepReceipt(f)
	f.reader.IsLiquidatedFn = func(context.Context, common.Address) (bool, error) { return true, nil }

	dto, err := f.uc.AdoptStep(context.Background(), 1, stepHash.Hex())
	if err != nil {
		t.Fatalf("adopt step: %v", err)
	}
	if dto.Status != loan.StatusLiquidated {
		t.Fatalf("status: %s", dto.Status)
	}
	if l := f.loan(1); l.LiquidationTxHash == nil || *l.LiquidationTxHash != stepHash.Hex() {
		t.Fatal("liquidation hash not adopted")
	}
}

func TestAdoptStep_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("contract does not confirm any step", func(t *testing.T) {
		f := newFixture(approvedLoan(1))
		minedStepReceipt(f)
		if _, err := f.uc.AdoptStep(ctx, 1, stepHash.Hex()); !errors.Is(err, loan.ErrPreconditionFailed) {
			t.Fatalf("want ErrPreconditionFailed, got %v", err)
		}
		if f.loan(1).Status != loan.StatusApproved {
			t.Fatal("record must stay untouched")
		}
	})

	t.Run("invalid hash", func(t *testing.T) {
		f := newFixture(approvedLoan(1))
		if _, err := f.uc.AdoptStep(ctx, 1, "0xnope"); !errors.Is(err, loan.ErrPreconditionFailed) {
			t.Fatalf("want ErrPreconditionFailed, got %v", err)
		}
	})

	t.Run("no contract deployed", func(t *testing.T) {
		f := newFixture(pendingLoan(1))
		if _, err := f.uc.AdoptStep(ctx, 1, stepHash.Hex()); !errors.Is(err, loan.ErrPreconditionFailed) {
			t.Fatalf("want ErrPreconditionFailed, got %v", err)
		}
	})

	t.Run("receipt not found", func(t *testing.T) {
		f := newFixture(approvedLoan(1))
		f.receipts.TransactionReceiptFn = func(context.Context, common.Hash) (*gethtypes.Receipt, error) {
			return nil, ethereum.NotFound
		}
		if _, err := f.uc.AdoptStep(ctx, 1, stepHash.Hex()); !errors.Is(err, chain.ErrTxNotFound) {
			t.Fatalf("want ErrTxNotFound, got %v", err)
		}
	})

	t.Run("reverted step", func(t *testing.T) {
		f := newFixture(approvedLoan(1))
		f.receipts.TransactionReceiptFn = func(_ context.Context, h common.Hash) (*gethtypes.Receipt, error) {
			return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusFailed, TxHash: h}, nil
		}
		if _, err := f.uc.AdoptStep(ctx, 1, stepHash.Hex()); !errors.Is(err, chain.ErrTransactionReverted) {
			t.Fatalf("want reverted, got %v", err)
		}
		if f.loan(1).Status != loan.StatusApproved {
			t.Fatal("record must stay untouched")
		}
	})

	t.Run("terminal status", func(t *testing.T) {
		l := approvedLoan(1)
		l.Status = loan.StatusRepaid
		f := newFixture(l)
		minedStepReceipt(f)
		if _, err := f.uc.AdoptStep(ctx, 1, stepHash.Hex()); !errors.Is(err, loan.ErrIllegalTransition) {
			t.Fatalf("want ErrIllegalTransition, got %v", err)
		}
	})
}
