package orchestrator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"lendingchain-backend/internal/domain/loan"
	"lendingchain-backend/pkg/id"
)

// OnChainState is the snapshot of the contract's view functions taken for one
// reconciliation pass.
type OnChainState struct {
	Disbursed          bool   `json:"disbursed"`
	Repaid             bool   `json:"repaid"`
	Liquidated         bool   `json:"liquidated"`
	CollateralProvided bool   `json:"collateral_provided"`
	EndTime            uint64 `json:"end_time"`
}

// ReconciliationResult reports divergence between the two ledgers. Divergence
// is surfaced, never auto-corrected: whether the chain or the local record is
// ahead depends on which operation raced which, and that context lives with
// the operator. Delayed confirmations are applied through AdoptDeployment and
// AdoptStep, driven by these reports.
type ReconciliationResult struct {
	ReportID        string        `json:"report_id"`
	LoanID          uint64        `json:"loan_id"`
	LocalStatus     loan.Status   `json:"local_status"`
	ContractAddress string        `json:"contract_address,omitempty"`
	OnChain         *OnChainState `json:"on_chain,omitempty"`
	Divergences     []string      `json:"divergences,omitempty"`
	Consistent      bool          `json:"consistent"`
}

// Reconcile cross-checks the local loan record against the contract's view
// functions. View unavailability is returned as an error so the pass can be
// retried, rather than producing a report from partial data.
func (u *Usecase) Reconcile(ctx context.Context, loanID uint64) (*ReconciliationResult, error) {
	l, err := u.load(ctx, loanID)
	if err != nil {
		return nil, err
	}

	res := &ReconciliationResult{
		ReportID:    id.NewID32(),
		LoanID:      l.ID,
		LocalStatus: l.Status,
	}

	if !l.HasContract() {
		switch l.Status {
		case loan.StatusPending, loan.StatusRejected:
			res.Consistent = true
		default:
			res.Divergences = append(res.Divergences,
				fmt.Sprintf("status %s recorded with no contract address", l.Status))
		}
		return res, nil
	}
	res.ContractAddress = *l.ContractAddress
	target := common.HexToAddress(*l.ContractAddress)

	st := &OnChainState{}
	if st.Disbursed, err = u.reader.IsDisbursed(ctx, target); err != nil {
		return nil, err
	}
	if st.Repaid, err = u.reader.IsRepaid(ctx, target); err != nil {
		return nil, err
	}
	if st.Liquidated, err = u.reader.IsLiquidated(ctx, target); err != nil {
		return nil, err
	}
	if st.CollateralProvided, err = u.reader.IsCollateralProvided(ctx, target); err != nil {
		return nil, err
	}
	if st.EndTime, err = u.reader.LoanEndTime(ctx, target); err != nil {
		return nil, err
	}
	res.OnChain = st

	diverge := func(format string, args ...interface{}) {
		res.Divergences = append(res.Divergences, fmt.Sprintf(format, args...))
	}

	localDisbursed := l.Status == loan.StatusActive || l.Status == loan.StatusOverdue ||
		l.Status == loan.StatusRepaid || l.Status == loan.StatusLiquidated

	if st.Repaid && l.Status != loan.StatusRepaid {
		diverge("contract reports repaid but local status is %s", l.Status)
	}
	if !st.Repaid && l.Status == loan.StatusRepaid {
		diverge("local status is repaid but contract reports unpaid")
	}
	if st.Liquidated && l.Status != loan.StatusLiquidated {
		diverge("contract reports liquidated but local status is %s", l.Status)
	}
	if !st.Liquidated && l.Status == loan.StatusLiquidated {
		diverge("local status is liquidated but contract reports otherwise")
	}
	if st.Disbursed && !localDisbursed {
		diverge("contract reports disbursed but local status is %s", l.Status)
	}
	if !st.Disbursed && localDisbursed {
		diverge("local status is %s but contract reports not disbursed", l.Status)
	}
	if st.CollateralProvided && l.Status == loan.StatusApproved {
		diverge("contract reports collateral provided but local status is still approved")
	}

	res.Consistent = len(res.Divergences) == 0
	return res, nil
}
