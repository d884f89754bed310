package loan

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domain "lendingchain-backend/internal/domain/loan"
)

// Usecase is the intake surface: loan requests enter here in pending and are
// only ever moved forward by the orchestrator afterwards.
type Usecase struct{ repo domain.Repository }

func NewUsecase(r domain.Repository) *Usecase { return &Usecase{repo: r} }

type CreateLoanInput struct {
	BorrowerAddress string          `json:"borrower_address"`
	Amount          decimal.Decimal `json:"amount"`
	DurationMonths  uint32          `json:"duration_months"`
	Purpose         string          `json:"purpose"`
	// Optional per-loan overrides of the platform asset defaults.
	LoanAssetAddress       string `json:"loan_asset_address"`
	CollateralAssetAddress string `json:"collateral_asset_address"`
}

func (u *Usecase) Create(ctx context.Context, in CreateLoanInput) (*domain.Loan, error) {
	if !common.IsHexAddress(in.BorrowerAddress) {
		return nil, fmt.Errorf("%w: invalid borrower wallet address", domain.ErrPreconditionFailed)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrPreconditionFailed)
	}
	if in.DurationMonths == 0 {
		return nil, fmt.Errorf("%w: duration must be at least one month", domain.ErrPreconditionFailed)
	}
	for _, a := range []string{in.LoanAssetAddress, in.CollateralAssetAddress} {
		if a != "" && !common.IsHexAddress(a) {
			return nil, fmt.Errorf("%w: invalid asset address", domain.ErrPreconditionFailed)
		}
	}

	borrower := common.HexToAddress(in.BorrowerAddress).Hex()

	// Block if the borrower already has a pending request.
	pending, err := u.repo.GetPendingByBorrower(ctx, borrower)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: borrower %s already has a pending loan #%d",
			domain.ErrPreconditionFailed, borrower, pending.ID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	l := &domain.Loan{
		BorrowerAddress: borrower,
		Amount:          in.Amount.Round(2),
		DurationMonths:  in.DurationMonths,
		Purpose:         in.Purpose,
		Status:          domain.StatusPending,
	}
	if in.LoanAssetAddress != "" {
		a := common.HexToAddress(in.LoanAssetAddress).Hex()
		l.LoanAssetAddress = &a
	}
	if in.CollateralAssetAddress != "" {
		a := common.HexToAddress(in.CollateralAssetAddress).Hex()
		l.CollateralAssetAddress = &a
	}

	if err := u.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (u *Usecase) Get(ctx context.Context, id uint64) (*domain.Loan, error) {
	l, err := u.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// List returns all loans, or only the borrower's when an address is given.
func (u *Usecase) List(ctx context.Context, borrowerAddress string) ([]domain.Loan, error) {
	if borrowerAddress == "" {
		return u.repo.List(ctx)
	}
	if !common.IsHexAddress(borrowerAddress) {
		return nil, fmt.Errorf("%w: invalid borrower wallet address", domain.ErrPreconditionFailed)
	}
	return u.repo.ListByBorrower(ctx, common.HexToAddress(borrowerAddress).Hex())
}
