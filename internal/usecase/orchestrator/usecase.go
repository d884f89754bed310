// Package orchestrator moves a loan through its lifecycle, one on-chain step
// at a time: validate the transition locally, perform the chain operation,
// then commit the new local status only after the chain reported success.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/contract"
	"lendingchain-backend/internal/domain/loan"
	"lendingchain-backend/internal/domain/uow"
	"lendingchain-backend/pkg/keylock"
)

type Config struct {
	// Platform defaults for deployments; a loan's own asset overrides win.
	DefaultLoanAsset       string
	DefaultCollateralAsset string
}

type Usecase struct {
	repo      loan.Repository
	uow       uow.UnitOfWork
	locks     *keylock.Table
	submitter TxSubmitter
	deployer  ContractDeployer
	reader    ContractReader
	receipts  ReceiptSource
	cfg       Config

	now func() time.Time
}

func NewUsecase(repo loan.Repository, tx uow.UnitOfWork, submitter TxSubmitter, deployer ContractDeployer, reader ContractReader, receipts ReceiptSource, cfg Config) *Usecase {
	return &Usecase{
		repo:      repo,
		uow:       tx,
		locks:     keylock.New(),
		submitter: submitter,
		deployer:  deployer,
		reader:    reader,
		receipts:  receipts,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var reTxHash = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

func (u *Usecase) load(ctx context.Context, id uint64) (*loan.Loan, error) {
	l, err := u.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, loan.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

func parseAddress(s, what string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: missing or invalid %s", loan.ErrPreconditionFailed, what)
	}
	return common.HexToAddress(s), nil
}

// assetFor resolves a per-loan asset override against the platform default.
func assetFor(override *string, fallback, what string) (common.Address, error) {
	if override != nil && *override != "" {
		return parseAddress(*override, what)
	}
	return parseAddress(fallback, what)
}

// Approve deploys the loan's contract instance and, only once deployment
// confirmed, moves pending → approved. On any deployment failure (predicted
// revert, confirmed revert, timeout) the loan record is left untouched in
// pending; a timed-out deployment is later adoptable through AdoptDeployment.
func (u *Usecase) Approve(ctx context.Context, in ApproveInput) (*LoanDTO, error) {
	unlock := u.locks.Lock(in.LoanID)
	defer unlock()

	l, err := u.load(ctx, in.LoanID)
	if err != nil {
		return nil, err
	}
	if l.Status != loan.StatusPending || l.HasContract() || l.DeploymentTxHash != nil {
		return nil, loan.ErrIllegalTransition
	}
	// Zero-interest loans are valid; only a negative rate is rejected.
	if in.InterestRate.Sign() < 0 {
		return nil, fmt.Errorf("%w: interest rate must not be negative", loan.ErrPreconditionFailed)
	}
	borrower, err := parseAddress(l.BorrowerAddress, "borrower wallet address")
	if err != nil {
		return nil, err
	}
	lender := u.submitter.From()
	if in.LenderAddress != "" {
		if lender, err = parseAddress(in.LenderAddress, "lender wallet address"); err != nil {
			return nil, err
		}
	}
	loanAsset, err := assetFor(l.LoanAssetAddress, u.cfg.DefaultLoanAsset, "loan asset address")
	if err != nil {
		return nil, err
	}
	collateralAsset, err := assetFor(l.CollateralAssetAddress, u.cfg.DefaultCollateralAsset, "collateral asset address")
	if err != nil {
		return nil, err
	}

	outcome, err := u.deployer.Deploy(ctx, contract.DeployParams{
		Lender:          lender,
		Borrower:        borrower,
		LoanAsset:       loanAsset,
		CollateralAsset: collateralAsset,
		Amount:          l.Amount,
		InterestRate:    in.InterestRate,
		DurationMonths:  l.DurationMonths,
	})
	if err != nil {
		return nil, err
	}

	var dto *LoanDTO
	err = u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, locked *loan.Loan) error {
		if locked.Status != loan.StatusPending || locked.HasContract() {
			return loan.ErrIllegalTransition
		}
		now := u.now()
		addr := outcome.ContractAddress.Hex()
		hash := outcome.TxHash.Hex()
		lenderHex := lender.Hex()
		loanAssetHex := loanAsset.Hex()
		collateralAssetHex := collateralAsset.Hex()

		locked.Status = loan.StatusApproved
		locked.ContractAddress = &addr
		locked.DeploymentTxHash = &hash
		locked.LenderAddress = &lenderHex
		locked.InterestRate = in.InterestRate
		locked.LoanAssetAddress = &loanAssetHex
		locked.CollateralAssetAddress = &collateralAssetHex
		locked.ApprovedDate = &now
		if in.ApprovedBy != "" {
			locked.ApprovedBy = &in.ApprovedBy
		}
		if err := r.Loans.Save(ctx, locked); err != nil {
			return err
		}
		dto = toDTO(locked)
		return nil
	})
	if err != nil {
		// The contract exists on-chain but the local record does not know it
		// yet; reconciliation picks this up via the deployment hash.
		return nil, fmt.Errorf("deployment %s confirmed but local commit failed: %w", outcome.TxHash.Hex(), err)
	}
	dto.TxHash = outcome.TxHash.Hex()
	return dto, nil
}

// Reject moves pending → rejected. Purely local, no chain interaction.
func (u *Usecase) Reject(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	unlock := u.locks.Lock(loanID)
	defer unlock()

	var dto *LoanDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, locked *loan.Loan) error {
		if err := locked.EnsureTransition(loan.StatusRejected); err != nil {
			return err
		}
		locked.Status = loan.StatusRejected
		if err := r.Loans.Save(ctx, locked); err != nil {
			return err
		}
		dto = toDTO(locked)
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, loan.ErrNotFound
		}
		return nil, err
	}
	return dto, nil
}

// RecordCollateral broadcasts the borrower-signed provideCollateral
// transaction and moves approved → collateral_provided once it confirms.
func (u *Usecase) RecordCollateral(ctx context.Context, in SignedTxInput) (*LoanDTO, error) {
	unlock := u.locks.Lock(in.LoanID)
	defer unlock()

	l, err := u.load(ctx, in.LoanID)
	if err != nil {
		return nil, err
	}
	if l.Status != loan.StatusApproved || l.CollateralTxHash != nil {
		return nil, loan.ErrIllegalTransition
	}
	target, err := parseAddress(deref(l.ContractAddress), "contract address")
	if err != nil {
		return nil, err
	}

	outcome, err := u.submitter.SubmitRaw(ctx, in.SignedTxHex)
	if err != nil {
		return nil, err
	}

	var warnings []string
	provided, verr := u.reader.IsCollateralProvided(ctx, target)
	switch {
	case verr != nil:
		// The receipt is the primary signal; the view check is best-effort
		// after confirmation.
		warnings = append(warnings, fmt.Sprintf("collateral view unavailable after confirmation: %v", verr))
	case !provided:
		return nil, fmt.Errorf("%w: transaction %s confirmed but the contract still reports no collateral",
			loan.ErrPreconditionFailed, outcome.TxHash.Hex())
	}

	dto, err := u.commitTxStep(ctx, in.LoanID, outcome, func(locked *loan.Loan, hash string) error {
		if locked.Status != loan.StatusApproved || locked.CollateralTxHash != nil {
			return loan.ErrIllegalTransition
		}
		locked.Status = loan.StatusCollateralProvided
		locked.CollateralTxHash = &hash
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto.Warnings = warnings
	return dto, nil
}

// Fund submits the platform-signed fundLoan transaction, attaching the loan
// principal, and moves approved|collateral_provided → active once confirmed.
// The on-chain collateral check is mandatory: a definite false rejects the
// request before any transaction is produced.
func (u *Usecase) Fund(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	unlock := u.locks.Lock(loanID)
	defer unlock()

	l, err := u.load(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if (l.Status != loan.StatusApproved && l.Status != loan.StatusCollateralProvided) || l.DisbursementTxHash != nil {
		return nil, loan.ErrIllegalTransition
	}
	target, err := parseAddress(deref(l.ContractAddress), "contract address")
	if err != nil {
		return nil, err
	}

	var warnings []string
	provided, verr := u.reader.IsCollateralProvided(ctx, target)
	switch {
	case verr == nil && !provided:
		return nil, fmt.Errorf("%w: collateral has not been provided on-chain", loan.ErrPreconditionFailed)
	case verr != nil && l.Status == loan.StatusCollateralProvided:
		// Local record already saw the collateral confirm; proceed on that
		// basis but surface the failed on-chain check.
		warnings = append(warnings, fmt.Sprintf("on-chain collateral check unavailable, proceeding on recorded collateral transaction: %v", verr))
	case verr != nil:
		return nil, verr
	}

	data, err := contract.P2PLoanABI.Pack("fundLoan")
	if err != nil {
		return nil, fmt.Errorf("pack fundLoan: %w", err)
	}
	outcome, err := u.submitter.Submit(ctx, chain.CallIntent{
		To:    &target,
		Data:  data,
		Value: contract.ToSmallestUnit(l.Amount),
	})
	if err != nil {
		return nil, err
	}

	dto, err := u.commitTxStep(ctx, loanID, outcome, func(locked *loan.Loan, hash string) error {
		if err := locked.EnsureTransition(loan.StatusActive); err != nil {
			return err
		}
		if locked.DisbursementTxHash != nil {
			return loan.ErrIllegalTransition
		}
		now := u.now()
		end := loan.ComputeEndDate(now, locked.DurationMonths)
		locked.Status = loan.StatusActive
		locked.DisbursementTxHash = &hash
		locked.DisbursementDate = &now
		locked.EndDate = &end
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto.Warnings = warnings
	return dto, nil
}

// Repay broadcasts the borrower-signed repayLoan transaction and moves
// active|overdue → repaid once it confirms and the contract agrees.
func (u *Usecase) Repay(ctx context.Context, in SignedTxInput) (*LoanDTO, error) {
	unlock := u.locks.Lock(in.LoanID)
	defer unlock()

	l, err := u.load(ctx, in.LoanID)
	if err != nil {
		return nil, err
	}
	if !l.CanTransition(loan.StatusRepaid) || l.RepaymentTxHash != nil {
		return nil, loan.ErrIllegalTransition
	}
	target, err := parseAddress(deref(l.ContractAddress), "contract address")
	if err != nil {
		return nil, err
	}

	outcome, err := u.submitter.SubmitRaw(ctx, in.SignedTxHex)
	if err != nil {
		return nil, err
	}

	var warnings []string
	repaid, verr := u.reader.IsRepaid(ctx, target)
	switch {
	case verr != nil:
		warnings = append(warnings, fmt.Sprintf("repayment view unavailable after confirmation: %v", verr))
	case !repaid:
		return nil, fmt.Errorf("%w: transaction %s confirmed but the contract still reports the loan unpaid",
			loan.ErrPreconditionFailed, outcome.TxHash.Hex())
	}

	due := amountDue(l.Amount, l.InterestRate)
	dto, err := u.commitTxStep(ctx, in.LoanID, outcome, func(locked *loan.Loan, hash string) error {
		if err := locked.EnsureTransition(loan.StatusRepaid); err != nil {
			return err
		}
		if locked.RepaymentTxHash != nil {
			return loan.ErrIllegalTransition
		}
		now := u.now()
		locked.Status = loan.StatusRepaid
		locked.RepaymentTxHash = &hash
		locked.LastRepaymentDate = &now
		locked.RepaidAmount = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto.Warnings = warnings
	return dto, nil
}

// Liquidate seizes the collateral after the on-chain loan term elapsed. The
// on-chain end-time is authoritative; its unavailability is a retryable
// failure, never a fallback onto the locally recorded end date.
func (u *Usecase) Liquidate(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	unlock := u.locks.Lock(loanID)
	defer unlock()

	l, err := u.load(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !l.CanTransition(loan.StatusLiquidated) || l.LiquidationTxHash != nil {
		return nil, loan.ErrIllegalTransition
	}
	target, err := parseAddress(deref(l.ContractAddress), "contract address")
	if err != nil {
		return nil, err
	}

	endTime, err := u.reader.LoanEndTime(ctx, target)
	if err != nil {
		return nil, err
	}
	if endTime == 0 {
		return nil, fmt.Errorf("%w: loan has no on-chain disbursement to liquidate against", loan.ErrPreconditionFailed)
	}
	if uint64(u.now().Unix()) <= endTime {
		return nil, fmt.Errorf("%w: loan end time has not elapsed", loan.ErrPreconditionFailed)
	}
	repaid, err := u.reader.IsRepaid(ctx, target)
	if err != nil {
		return nil, err
	}
	if repaid {
		return nil, fmt.Errorf("%w: loan is already repaid on-chain", loan.ErrPreconditionFailed)
	}
	liquidated, err := u.reader.IsLiquidated(ctx, target)
	if err != nil {
		return nil, err
	}
	if liquidated {
		return nil, fmt.Errorf("%w: collateral is already liquidated on-chain", loan.ErrPreconditionFailed)
	}

	data, err := contract.P2PLoanABI.Pack("liquidateCollateral")
	if err != nil {
		return nil, fmt.Errorf("pack liquidateCollateral: %w", err)
	}
	outcome, err := u.submitter.Submit(ctx, chain.CallIntent{To: &target, Data: data})
	if err != nil {
		return nil, err
	}

	return u.commitTxStep(ctx, loanID, outcome, func(locked *loan.Loan, hash string) error {
		if err := locked.EnsureTransition(loan.StatusLiquidated); err != nil {
			return err
		}
		if locked.LiquidationTxHash != nil {
			return loan.ErrIllegalTransition
		}
		locked.Status = loan.StatusLiquidated
		locked.LiquidationTxHash = &hash
		return nil
	})
}

// MarkOverdue moves active → overdue once the recorded end date has passed.
// Local bookkeeping only; liquidation still re-checks the chain.
func (u *Usecase) MarkOverdue(ctx context.Context, loanID uint64) (*LoanDTO, error) {
	unlock := u.locks.Lock(loanID)
	defer unlock()

	var dto *LoanDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, locked *loan.Loan) error {
		if locked.Status != loan.StatusActive {
			return loan.ErrIllegalTransition
		}
		if locked.EndDate == nil || u.now().Before(*locked.EndDate) {
			return fmt.Errorf("%w: loan end date has not passed", loan.ErrPreconditionFailed)
		}
		locked.Status = loan.StatusOverdue
		if err := r.Loans.Save(ctx, locked); err != nil {
			return err
		}
		dto = toDTO(locked)
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, loan.ErrNotFound
		}
		return nil, err
	}
	return dto, nil
}

// AdoptDeployment applies a deployment that confirmed after its original
// wait timed out. The loan must still be pending with no contract recorded,
// so adoption can happen at most once.
func (u *Usecase) AdoptDeployment(ctx context.Context, loanID uint64, txHashHex string) (*LoanDTO, error) {
	unlock := u.locks.Lock(loanID)
	defer unlock()

	if !reTxHash.MatchString(txHashHex) {
		return nil, fmt.Errorf("%w: invalid transaction hash", loan.ErrPreconditionFailed)
	}

	l, err := u.load(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if l.Status != loan.StatusPending || l.HasContract() {
		return nil, loan.ErrIllegalTransition
	}

	hash := common.HexToHash(txHashHex)
	receipt, err := u.receipts.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("%w: %s", chain.ErrTxNotFound, txHashHex)
		}
		return nil, fmt.Errorf("%w: fetch receipt: %v", chain.ErrChainCall, err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, &chain.RevertedError{TxHash: hash}
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: transaction did not create a contract", loan.ErrPreconditionFailed)
	}

	var dto *LoanDTO
	err = u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, locked *loan.Loan) error {
		if locked.Status != loan.StatusPending || locked.HasContract() {
			return loan.ErrIllegalTransition
		}
		now := u.now()
		addr := receipt.ContractAddress.Hex()
		h := hash.Hex()
		locked.Status = loan.StatusApproved
		locked.ContractAddress = &addr
		locked.DeploymentTxHash = &h
		locked.ApprovedDate = &now
		if err := r.Loans.Save(ctx, locked); err != nil {
			return err
		}
		dto = toDTO(locked)
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto.TxHash = hash.Hex()
	return dto, nil
}

// AdoptStep applies a lifecycle step whose transaction confirmed after the
// original wait timed out. Re-running the operation cannot work then: the
// contract already holds the step's effect, so a resubmission is predicted to
// revert (or, for a raw transaction, rejected on a spent nonce). Instead the
// receipt is verified and the contract's own views decide which step landed;
// the matching hash field must still be unset, so each step is adopted at
// most once.
func (u *Usecase) AdoptStep(ctx context.Context, loanID uint64, txHashHex string) (*LoanDTO, error) {
	unlock := u.locks.Lock(loanID)
	defer unlock()

	if !reTxHash.MatchString(txHashHex) {
		return nil, fmt.Errorf("%w: invalid transaction hash", loan.ErrPreconditionFailed)
	}

	l, err := u.load(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !l.HasContract() {
		return nil, fmt.Errorf("%w: loan has no contract; a pending deployment is adopted through AdoptDeployment", loan.ErrPreconditionFailed)
	}
	target, err := parseAddress(*l.ContractAddress, "contract address")
	if err != nil {
		return nil, err
	}

	hash := common.HexToHash(txHashHex)
	receipt, err := u.receipts.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("%w: %s", chain.ErrTxNotFound, txHashHex)
		}
		return nil, fmt.Errorf("%w: fetch receipt: %v", chain.ErrChainCall, err)
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, &chain.RevertedError{TxHash: hash}
	}

	apply, err := u.stepToAdopt(ctx, l, target)
	if err != nil {
		return nil, err
	}
	return u.commitTxStep(ctx, loanID, &chain.Outcome{Success: true, TxHash: hash}, apply)
}

// stepToAdopt selects the furthest confirmed-but-unrecorded step for the
// loan's current status, consulting the contract views.
func (u *Usecase) stepToAdopt(ctx context.Context, l *loan.Loan, target common.Address) (func(locked *loan.Loan, hash string) error, error) {
	switch l.Status {
	case loan.StatusApproved, loan.StatusCollateralProvided:
		disbursed, err := u.reader.IsDisbursed(ctx, target)
		if err != nil {
			return nil, err
		}
		if disbursed && l.DisbursementTxHash == nil {
			endTime, err := u.reader.LoanEndTime(ctx, target)
			if err != nil {
				return nil, err
			}
			return func(locked *loan.Loan, hash string) error {
				if (locked.Status != loan.StatusApproved && locked.Status != loan.StatusCollateralProvided) || locked.DisbursementTxHash != nil {
					return loan.ErrIllegalTransition
				}
				now := u.now()
				// The on-chain clock started at the mined block, so its end
				// time beats one recomputed from the adoption moment.
				end := loan.ComputeEndDate(now, locked.DurationMonths)
				if endTime != 0 {
					end = time.Unix(int64(endTime), 0).UTC()
				}
				locked.Status = loan.StatusActive
				locked.DisbursementTxHash = &hash
				locked.DisbursementDate = &now
				locked.EndDate = &end
				return nil
			}, nil
		}
		if l.Status == loan.StatusApproved && l.CollateralTxHash == nil {
			provided, err := u.reader.IsCollateralProvided(ctx, target)
			if err != nil {
				return nil, err
			}
			if provided {
				return func(locked *loan.Loan, hash string) error {
					if locked.Status != loan.StatusApproved || locked.CollateralTxHash != nil {
						return loan.ErrIllegalTransition
					}
					locked.Status = loan.StatusCollateralProvided
					locked.CollateralTxHash = &hash
					return nil
				}, nil
			}
		}
	case loan.StatusActive, loan.StatusOverdue:
		repaid, err := u.reader.IsRepaid(ctx, target)
		if err != nil {
			return nil, err
		}
		if repaid && l.RepaymentTxHash == nil {
			due := amountDue(l.Amount, l.InterestRate)
			return func(locked *loan.Loan, hash string) error {
				if err := locked.EnsureTransition(loan.StatusRepaid); err != nil {
					return err
				}
				if locked.RepaymentTxHash != nil {
					return loan.ErrIllegalTransition
				}
				now := u.now()
				locked.Status = loan.StatusRepaid
				locked.RepaymentTxHash = &hash
				locked.LastRepaymentDate = &now
				locked.RepaidAmount = due
				return nil
			}, nil
		}
		liquidated, err := u.reader.IsLiquidated(ctx, target)
		if err != nil {
			return nil, err
		}
		if liquidated && l.LiquidationTxHash == nil {
			return func(locked *loan.Loan, hash string) error {
				if err := locked.EnsureTransition(loan.StatusLiquidated); err != nil {
					return err
				}
				if locked.LiquidationTxHash != nil {
					return loan.ErrIllegalTransition
				}
				locked.Status = loan.StatusLiquidated
				locked.LiquidationTxHash = &hash
				return nil
			}, nil
		}
	default:
		return nil, loan.ErrIllegalTransition
	}
	return nil, fmt.Errorf("%w: contract state does not confirm an unrecorded step", loan.ErrPreconditionFailed)
}

// commitTxStep runs the row-locked commit for a confirmed on-chain step and
// stamps the performed transaction hash on the returned projection.
func (u *Usecase) commitTxStep(ctx context.Context, loanID uint64, outcome *chain.Outcome, apply func(locked *loan.Loan, hash string) error) (*LoanDTO, error) {
	hash := outcome.TxHash.Hex()
	var dto *LoanDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, locked *loan.Loan) error {
		if err := apply(locked, hash); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, locked); err != nil {
			return err
		}
		dto = toDTO(locked)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transaction %s confirmed but local commit failed: %w", hash, err)
	}
	dto.TxHash = hash
	return dto, nil
}

// amountDue is the flat local bookkeeping figure: principal plus annual
// interest, matching the contract's calculateAmountDue convention.
func amountDue(principal, rate decimal.Decimal) decimal.Decimal {
	return principal.Add(principal.Mul(rate).Div(decimal.NewFromInt(100))).Round(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
