package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/contract"
	domain "lendingchain-backend/internal/domain/loan"
	"lendingchain-backend/internal/testutil/chainmock"
	"lendingchain-backend/internal/testutil/loanmock"
	"lendingchain-backend/internal/testutil/uowmock"
	"lendingchain-backend/internal/usecase/orchestrator"
)

const (
	testBorrower = "0x2222222222222222222222222222222222222222"
	testContract = "0x5555555555555555555555555555555555555555"
	testAsset    = "0x3333333333333333333333333333333333333333"
)

var testDeployHash = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000aa")

type orchFixture struct {
	deployer *chainmock.Deployer
	reader   *chainmock.Reader
	receipts *chainmock.Receipts
	handler  *OrchestratorHandler
}

// newOrchEcho wires a one-loan repository through the real orchestrator
// usecase so the handler tests exercise the actual error mapping.
func newOrchEcho(t *testing.T, l *domain.Loan) (*echo.Echo, *orchFixture) {
	t.Helper()
	repo := &loanmock.Repo{
		GetByIDFn: func(_ context.Context, id uint64) (*domain.Loan, error) {
			if l == nil || id != l.ID {
				return nil, gorm.ErrRecordNotFound
			}
			cp := *l
			return &cp, nil
		},
		SaveFn: func(_ context.Context, saved *domain.Loan) error {
			cp := *saved
			*l = cp
			return nil
		},
	}
	f := &orchFixture{
		deployer: &chainmock.Deployer{},
		reader:   &chainmock.Reader{},
		receipts: &chainmock.Receipts{},
	}
	uc := orchestrator.NewUsecase(repo, uowmock.Passthrough(repo),
		&chainmock.Submitter{FromAddr: common.HexToAddress("0x7777777777777777777777777777777777777777")},
		f.deployer, f.reader, f.receipts,
		orchestrator.Config{DefaultLoanAsset: testAsset, DefaultCollateralAsset: testAsset})
	f.handler = NewOrchestratorHandler(uc)

	e := newEcho()
	e.POST("/loans/:loan_id/approve", f.handler.ApproveLoan)
	e.POST("/loans/:loan_id/reject", f.handler.RejectLoan)
	e.POST("/loans/:loan_id/adopt-deployment", f.handler.AdoptDeployment)
	e.POST("/loans/:loan_id/adopt-step", f.handler.AdoptStep)
	return e, f
}

func pendingTestLoan() *domain.Loan {
	return &domain.Loan{
		ID:              1,
		BorrowerAddress: testBorrower,
		Amount:          decimal.NewFromInt(1000),
		DurationMonths:  12,
		Status:          domain.StatusPending,
	}
}

const approveBody = `{"interest_rate":"5","approved_by":"ops"}`

func TestApproveLoan_OK(t *testing.T) {
	e, f := newOrchEcho(t, pendingTestLoan())
	f.deployer.DeployFn = func(context.Context, contract.DeployParams) (*chain.Outcome, error) {
		return &chain.Outcome{
			Success:         true,
			TxHash:          testDeployHash,
			ContractAddress: common.HexToAddress(testContract),
		}, nil
	}

	rec := doJSON(e, http.MethodPost, "/loans/1/approve", approveBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var dto orchestrator.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Status != domain.StatusApproved || dto.TxHash != testDeployHash.Hex() {
		t.Fatalf("unexpected dto: %+v", dto)
	}
}

func TestApproveLoan_ErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		deployErr error
		want      int
	}{
		{"would revert", &chain.WouldRevertError{Reason: "bad params"}, http.StatusUnprocessableEntity},
		{"reverted on-chain", &chain.RevertedError{TxHash: testDeployHash}, http.StatusBadGateway},
		{"chain unavailable", chain.ErrChainUnavailable, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, f := newOrchEcho(t, pendingTestLoan())
			f.deployer.DeployFn = func(context.Context, contract.DeployParams) (*chain.Outcome, error) {
				return nil, c.deployErr
			}
			rec := doJSON(e, http.MethodPost, "/loans/1/approve", approveBody)
			if rec.Code != c.want {
				t.Fatalf("status: want %d, got %d (%s)", c.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestApproveLoan_TimeoutIsAcceptedWithHash(t *testing.T) {
	e, f := newOrchEcho(t, pendingTestLoan())
	f.deployer.DeployFn = func(context.Context, contract.DeployParams) (*chain.Outcome, error) {
		return nil, &chain.ConfirmationTimeoutError{TxHash: testDeployHash}
	}

	rec := doJSON(e, http.MethodPost, "/loans/1/approve", approveBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: want 202, got %d (%s)", rec.Code, rec.Body.String())
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Pending || resp.TxHash != testDeployHash.Hex() {
		t.Fatalf("timeout response must carry pending marker and hash: %+v", resp)
	}
}

func TestApproveLoan_ConflictAndNotFound(t *testing.T) {
	l := pendingTestLoan()
	l.Status = domain.StatusActive
	e, _ := newOrchEcho(t, l)

	if rec := doJSON(e, http.MethodPost, "/loans/1/approve", approveBody); rec.Code != http.StatusConflict {
		t.Fatalf("active loan: want 409, got %d", rec.Code)
	}
	if rec := doJSON(e, http.MethodPost, "/loans/42/approve", approveBody); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown loan: want 404, got %d", rec.Code)
	}
}

func TestAdoptDeployment_Validation(t *testing.T) {
	e, _ := newOrchEcho(t, pendingTestLoan())

	rec := doJSON(e, http.MethodPost, "/loans/1/adopt-deployment", `{"tx_hash":"nope"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: want 422, got %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !containsFieldMsg(resp.Details, "TxHash", "transaction hash") {
		t.Fatalf("missing detail: %+v", resp.Details)
	}
}

var testStepHash = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000000000bb")

func activeTestLoan() *domain.Loan {
	l := pendingTestLoan()
	addr := testContract
	l.Status = domain.StatusActive
	l.ContractAddress = &addr
	l.InterestRate = decimal.NewFromInt(5)
	return l
}

func TestAdoptStep_RepaymentAdopted(t *testing.T) {
	e, f := newOrchEcho(t, activeTestLoan())
	f.receipts.TransactionReceiptFn = func(_ context.Context, h common.Hash) (*gethtypes.Receipt, error) {
		return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, TxHash: h}, nil
	}
	f.reader.IsRepaidFn = func(context.Context, common.Address) (bool, error) { return true, nil }

	rec := doJSON(e, http.MethodPost, "/loans/1/adopt-step", `{"tx_hash":"`+testStepHash.Hex()+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var dto orchestrator.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dto.Status != domain.StatusRepaid {
		t.Fatalf("status: %s", dto.Status)
	}
}

func TestAdoptStep_NothingToAdopt(t *testing.T) {
	e, f := newOrchEcho(t, activeTestLoan())
	f.receipts.TransactionReceiptFn = func(_ context.Context, h common.Hash) (*gethtypes.Receipt, error) {
		return &gethtypes.Receipt{Status: gethtypes.ReceiptStatusSuccessful, TxHash: h}, nil
	}

	// The default contract views report no settled step.
	rec := doJSON(e, http.MethodPost, "/loans/1/adopt-step", `{"tx_hash":"`+testStepHash.Hex()+`"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: want 422, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestRejectLoan(t *testing.T) {
	e, _ := newOrchEcho(t, pendingTestLoan())

	rec := doJSON(e, http.MethodPost, "/loans/1/reject", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	// already rejected now
	if rec := doJSON(e, http.MethodPost, "/loans/1/reject", ""); rec.Code != http.StatusConflict {
		t.Fatalf("double reject: want 409, got %d", rec.Code)
	}
}
