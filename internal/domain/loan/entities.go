package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending            Status = "pending"
	StatusApproved           Status = "approved"
	StatusCollateralProvided Status = "collateral_provided"
	StatusActive             Status = "active"
	StatusOverdue            Status = "overdue"
	StatusRepaid             Status = "repaid"
	StatusRejected           Status = "rejected"
	StatusLiquidated         Status = "liquidated"
)

// Loan is the off-chain system of record for one peer-to-peer loan. Once the
// loan leaves pending, exactly one P2PLoan contract instance backs it on-chain;
// the tx-hash columns are audit pointers back to the chain and each one is
// written at most once.
type Loan struct {
	ID uint64 `gorm:"primaryKey;column:id" json:"id"`

	BorrowerAddress string  `gorm:"size:42;index:idx_loans_borrower" json:"borrower_address"`
	LenderAddress   *string `gorm:"size:42" json:"lender_address,omitempty"`

	Amount         decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	DurationMonths uint32          `json:"duration_months"`
	InterestRate   decimal.Decimal `gorm:"type:decimal(5,2);default:0" json:"interest_rate"`
	Purpose        string          `gorm:"type:text" json:"purpose"`

	Status Status `gorm:"size:30;default:'pending'" json:"status"`

	// On-chain linkage. Asset addresses are frozen per loan at deployment time;
	// they may differ from the platform defaults.
	ContractAddress        *string `gorm:"size:42;uniqueIndex" json:"contract_address,omitempty"`
	LoanAssetAddress       *string `gorm:"size:42" json:"loan_asset_address,omitempty"`
	CollateralAssetAddress *string `gorm:"size:42" json:"collateral_asset_address,omitempty"`

	DeploymentTxHash   *string `gorm:"size:66;uniqueIndex" json:"deployment_tx_hash,omitempty"`
	CollateralTxHash   *string `gorm:"size:66;uniqueIndex" json:"collateral_tx_hash,omitempty"`
	DisbursementTxHash *string `gorm:"size:66;uniqueIndex" json:"disbursement_tx_hash,omitempty"`
	RepaymentTxHash    *string `gorm:"size:66;uniqueIndex" json:"repayment_tx_hash,omitempty"`
	LiquidationTxHash  *string `gorm:"size:66;uniqueIndex" json:"liquidation_tx_hash,omitempty"`

	RepaidAmount      decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"repaid_amount"`
	LastRepaymentDate *time.Time      `json:"last_repayment_date,omitempty"`

	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	ApprovedBy       *string    `gorm:"size:64" json:"approved_by,omitempty"`
	ApprovedDate     *time.Time `json:"approved_date,omitempty"`
	DisbursementDate *time.Time `json:"disbursement_date,omitempty"`
	EndDate          *time.Time `json:"end_date,omitempty"`
}

func (Loan) TableName() string { return "loans" }

// transitions is the full set of legal status moves. Anything else is an
// illegal transition, including re-running an already completed step.
var transitions = map[Status][]Status{
	StatusPending:            {StatusApproved, StatusRejected},
	StatusApproved:           {StatusCollateralProvided, StatusActive},
	StatusCollateralProvided: {StatusActive},
	StatusActive:             {StatusOverdue, StatusRepaid, StatusLiquidated},
	StatusOverdue:            {StatusRepaid, StatusLiquidated},
}

// CanTransition reports whether moving the loan to target is legal from its
// current status.
func (l *Loan) CanTransition(target Status) bool {
	for _, s := range transitions[l.Status] {
		if s == target {
			return true
		}
	}
	return false
}

// EnsureTransition returns ErrIllegalTransition unless the move is legal.
func (l *Loan) EnsureTransition(target Status) error {
	if !l.CanTransition(target) {
		return ErrIllegalTransition
	}
	return nil
}

func (l *Loan) HasContract() bool { return l.ContractAddress != nil && *l.ContractAddress != "" }

// ComputeEndDate derives the contractual end of the loan from the disbursement
// moment plus the agreed duration in calendar months.
func ComputeEndDate(disbursed time.Time, months uint32) time.Time {
	return disbursed.AddDate(0, int(months), 0)
}
