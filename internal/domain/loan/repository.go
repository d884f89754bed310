package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByID(ctx context.Context, id uint64) (*Loan, error)
	// GetByIDForUpdate locks the row for the duration of the surrounding
	// transaction. Only meaningful inside a unit of work.
	GetByIDForUpdate(ctx context.Context, id uint64) (*Loan, error)
	GetPendingByBorrower(ctx context.Context, borrowerAddress string) (*Loan, error)
	ListByBorrower(ctx context.Context, borrowerAddress string) ([]Loan, error)
	List(ctx context.Context) ([]Loan, error)
	Save(ctx context.Context, l *Loan) error
}
