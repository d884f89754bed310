package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/domain/loan"
)

func TestReconcile_NoContract(t *testing.T) {
	ctx := context.Background()

	t.Run("pending is consistent", func(t *testing.T) {
		f := newFixture(pendingLoan(1))
		res, err := f.uc.Reconcile(ctx, 1)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if !res.Consistent || len(res.Divergences) != 0 {
			t.Fatalf("want consistent, got %+v", res)
		}
		if res.OnChain != nil {
			t.Fatal("no on-chain snapshot expected without a contract")
		}
		if res.ReportID == "" {
			t.Fatal("report id missing")
		}
	})

	t.Run("active without contract diverges", func(t *testing.T) {
		l := pendingLoan(1)
		l.Status = loan.StatusActive
		f := newFixture(l)
		res, err := f.uc.Reconcile(ctx, 1)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Consistent || len(res.Divergences) == 0 {
			t.Fatalf("want divergence, got %+v", res)
		}
	})
}

func TestReconcile_ConsistentActiveLoan(t *testing.T) {
	l := approvedLoan(1)
	l.Status = loan.StatusActive
	f := newFixture(l)
	f.reader.IsDisbursedFn = func(context.Context, common.Address) (bool, error) { return true, nil }
	f.reader.IsCollateralProvidedFn = func(context.Context, common.Address) (bool, error) { return true, nil }
	f.reader.LoanEndTimeFn = func(context.Context, common.Address) (uint64, error) { return 1_800_000_000, nil }

	res, err := f.uc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !res.Consistent {
		t.Fatalf("want consistent, got %v", res.Divergences)
	}
	if res.OnChain == nil || !res.OnChain.Disbursed || res.OnChain.EndTime != 1_800_000_000 {
		t.Fatalf("on-chain snapshot wrong: %+v", res.OnChain)
	}
	if res.ContractAddress != contractHex {
		t.Fatalf("contract address: %s", res.ContractAddress)
	}
}

func TestReconcile_SurfacesDivergence(t *testing.T) {
	ctx := context.Background()

	t.Run("chain repaid, local active", func(t *testing.T) {
		l := approvedLoan(1)
		l.Status = loan.StatusActive
		f := newFixture(l)
		f.reader.IsDisbursedFn = func(context.Context, common.Address) (bool, error) { return true, nil }
		f.reader.IsRepaidFn = func(context.Context, common.Address) (bool, error) { return true, nil }

		res, err := f.uc.Reconcile(ctx, 1)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Consistent || len(res.Divergences) != 1 {
			t.Fatalf("want exactly one divergence, got %v", res.Divergences)
		}
		// divergence is reported, never auto-corrected
		if f.loan(1).Status != loan.StatusActive {
			t.Fatal("reconcile must not mutate the loan")
		}
	})

	t.Run("local active, chain not disbursed", func(t *testing.T) {
		l := approvedLoan(1)
		l.Status = loan.StatusActive
		f := newFixture(l)

		res, err := f.uc.Reconcile(ctx, 1)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Consistent {
			t.Fatal("want divergence")
		}
	})

	t.Run("collateral on chain, local still approved", func(t *testing.T) {
		f := newFixture(approvedLoan(1))
		f.reader.IsCollateralProvidedFn = func(context.Context, common.Address) (bool, error) { return true, nil }

		res, err := f.uc.Reconcile(ctx, 1)
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if res.Consistent {
			t.Fatal("want divergence")
		}
	})
}

func TestReconcile_ViewFailureIsRetryable(t *testing.T) {
	f := newFixture(approvedLoan(1))
	f.reader.IsDisbursedFn = func(context.Context, common.Address) (bool, error) {
		return false, fmt.Errorf("%w: isDisbursed: node busy", chain.ErrChainCall)
	}

	if _, err := f.uc.Reconcile(context.Background(), 1); !errors.Is(err, chain.ErrChainCall) {
		t.Fatalf("want chain error, got %v", err)
	}
}

func TestReconcile_UnknownLoan(t *testing.T) {
	f := newFixture()
	if _, err := f.uc.Reconcile(context.Background(), 9); !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
