package uowmock

import (
	"context"
	"errors"

	"lendingchain-backend/internal/domain/loan"
	"lendingchain-backend/internal/domain/uow"
	"lendingchain-backend/internal/testutil/loanmock"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn     func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinLoanTxFn func(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error
}

func New() *UoW { return &UoW{} }

func (m *UoW) Reset() { *m = UoW{} }

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinLoanTx(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error {
	if m.WithinLoanTxFn != nil {
		return m.WithinLoanTxFn(ctx, loanID, fn)
	}
	return errUnimplemented
}

// Passthrough wires a UoW straight to an in-memory repo: the transaction body
// runs immediately against repo, and WithinLoanTx resolves the loan through
// repo.GetByIDForUpdate (or GetByID when the ForUpdate fn is unset).
func Passthrough(repo *loanmock.Repo) *UoW {
	return &UoW{
		WithinTxFn: func(ctx context.Context, fn func(r uow.Repos) error) error {
			return fn(uow.Repos{Loans: repo})
		},
		WithinLoanTxFn: func(ctx context.Context, loanID uint64, fn func(r uow.Repos, l *loan.Loan) error) error {
			get := repo.GetByIDForUpdateFn
			if get == nil {
				get = repo.GetByIDFn
			}
			l, err := get(ctx, loanID)
			if err != nil {
				return err
			}
			return fn(uow.Repos{Loans: repo}, l)
		},
	}
}
