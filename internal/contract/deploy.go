package contract

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/domain/loan"
)

// txSubmitter is the slice of the chain submitter the deployer needs.
type txSubmitter interface {
	Submit(ctx context.Context, intent chain.CallIntent) (*chain.Outcome, error)
}

// DeployParams carries the constructor inputs for one loan's contract
// instance, still in business units; conversion happens here.
type DeployParams struct {
	Lender          common.Address
	Borrower        common.Address
	LoanAsset       common.Address
	CollateralAsset common.Address
	Amount          decimal.Decimal
	InterestRate    decimal.Decimal
	DurationMonths  uint32
}

// Deployer builds and submits the constructor transaction for a loan's
// dedicated P2PLoan instance.
type Deployer struct {
	submitter txSubmitter
	bytecode  []byte
	ratio     decimal.Decimal
}

func NewDeployer(s txSubmitter, bytecode []byte, collateralRatio decimal.Decimal) *Deployer {
	return &Deployer{submitter: s, bytecode: bytecode, ratio: collateralRatio}
}

// Deploy submits the constructor transaction and returns the outcome, whose
// ContractAddress is the new instance. The caller persists the address before
// any further on-chain operation proceeds.
func (d *Deployer) Deploy(ctx context.Context, p DeployParams) (*chain.Outcome, error) {
	if len(d.bytecode) == 0 {
		return nil, fmt.Errorf("%w: contract bytecode not configured", loan.ErrPreconditionFailed)
	}

	loanWei := ToSmallestUnit(p.Amount)
	collateralWei := ToSmallestUnit(CollateralFor(p.Amount, d.ratio))

	args, err := P2PLoanABI.Pack("",
		p.Lender,
		p.Borrower,
		loanWei,
		collateralWei,
		RateBasisPoints(p.InterestRate),
		DurationSeconds(p.DurationMonths),
		p.LoanAsset,
		p.CollateralAsset,
	)
	if err != nil {
		return nil, fmt.Errorf("pack constructor args: %w", err)
	}

	data := make([]byte, 0, len(d.bytecode)+len(args))
	data = append(data, d.bytecode...)
	data = append(data, args...)

	return d.submitter.Submit(ctx, chain.CallIntent{To: nil, Data: data})
}
