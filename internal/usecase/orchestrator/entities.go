package orchestrator

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/contract"
	"lendingchain-backend/internal/domain/loan"
)

// TxSubmitter is the platform-signed (and raw pass-through) submission
// surface. Implemented by *chain.Submitter.
type TxSubmitter interface {
	Submit(ctx context.Context, intent chain.CallIntent) (*chain.Outcome, error)
	SubmitRaw(ctx context.Context, signedHex string) (*chain.Outcome, error)
	From() common.Address
}

// ContractDeployer deploys one P2PLoan instance. Implemented by
// *contract.Deployer.
type ContractDeployer interface {
	Deploy(ctx context.Context, p contract.DeployParams) (*chain.Outcome, error)
}

// ContractReader is the view surface consulted for preconditions and
// reconciliation. Implemented by *contract.Reader.
type ContractReader interface {
	IsDisbursed(ctx context.Context, target common.Address) (bool, error)
	IsRepaid(ctx context.Context, target common.Address) (bool, error)
	IsLiquidated(ctx context.Context, target common.Address) (bool, error)
	IsCollateralProvided(ctx context.Context, target common.Address) (bool, error)
	LoanEndTime(ctx context.Context, target common.Address) (uint64, error)
}

// ReceiptSource fetches receipts for already-broadcast transactions, used
// when adopting a deployment that confirmed after its wait timed out.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

type ApproveInput struct {
	LoanID uint64
	// Optional; the platform treasury acts as lender of record when empty.
	LenderAddress string
	InterestRate  decimal.Decimal
	ApprovedBy    string
}

type SignedTxInput struct {
	LoanID      uint64
	SignedTxHex string
}

// LoanDTO is the projection returned to the request-handling layer. TxHash
// carries the hash of the on-chain step just performed, when there was one.
type LoanDTO struct {
	ID              uint64          `json:"id"`
	BorrowerAddress string          `json:"borrower_address"`
	LenderAddress   *string         `json:"lender_address,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	DurationMonths  uint32          `json:"duration_months"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	Purpose         string          `json:"purpose,omitempty"`
	Status          loan.Status     `json:"status"`

	ContractAddress        *string `json:"contract_address,omitempty"`
	LoanAssetAddress       *string `json:"loan_asset_address,omitempty"`
	CollateralAssetAddress *string `json:"collateral_asset_address,omitempty"`

	DeploymentTxHash   *string `json:"deployment_tx_hash,omitempty"`
	CollateralTxHash   *string `json:"collateral_tx_hash,omitempty"`
	DisbursementTxHash *string `json:"disbursement_tx_hash,omitempty"`
	RepaymentTxHash    *string `json:"repayment_tx_hash,omitempty"`
	LiquidationTxHash  *string `json:"liquidation_tx_hash,omitempty"`

	RepaidAmount      decimal.Decimal `json:"repaid_amount"`
	LastRepaymentDate *time.Time      `json:"last_repayment_date,omitempty"`
	ApprovedDate      *time.Time      `json:"approved_date,omitempty"`
	DisbursementDate  *time.Time      `json:"disbursement_date,omitempty"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`

	TxHash   string   `json:"tx_hash,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func toDTO(l *loan.Loan) *LoanDTO {
	return &LoanDTO{
		ID:                     l.ID,
		BorrowerAddress:        l.BorrowerAddress,
		LenderAddress:          l.LenderAddress,
		Amount:                 l.Amount,
		DurationMonths:         l.DurationMonths,
		InterestRate:           l.InterestRate,
		Purpose:                l.Purpose,
		Status:                 l.Status,
		ContractAddress:        l.ContractAddress,
		LoanAssetAddress:       l.LoanAssetAddress,
		CollateralAssetAddress: l.CollateralAssetAddress,
		DeploymentTxHash:       l.DeploymentTxHash,
		CollateralTxHash:       l.CollateralTxHash,
		DisbursementTxHash:     l.DisbursementTxHash,
		RepaymentTxHash:        l.RepaymentTxHash,
		LiquidationTxHash:      l.LiquidationTxHash,
		RepaidAmount:           l.RepaidAmount,
		LastRepaymentDate:      l.LastRepaymentDate,
		ApprovedDate:           l.ApprovedDate,
		DisbursementDate:       l.DisbursementDate,
		EndDate:                l.EndDate,
		CreatedAt:              l.CreatedAt,
	}
}
