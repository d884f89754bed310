package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"lendingchain-backend/internal/usecase/orchestrator"
)

// OrchestratorHandler exposes the lifecycle steps that touch the chain.
type OrchestratorHandler struct{ uc *orchestrator.Usecase }

func NewOrchestratorHandler(uc *orchestrator.Usecase) *OrchestratorHandler {
	return &OrchestratorHandler{uc: uc}
}

type approveLoanReq struct {
	LenderAddress string          `json:"lender_address" validate:"omitempty,ethaddr"`
	InterestRate  decimal.Decimal `json:"interest_rate"  validate:"required"`
	ApprovedBy    string          `json:"approved_by"    validate:"required,max=100"`
}

func (h *OrchestratorHandler) ApproveLoan(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	var req approveLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Approve(c.Request().Context(), orchestrator.ApproveInput{
		LoanID:        id,
		LenderAddress: req.LenderAddress,
		InterestRate:  req.InterestRate,
		ApprovedBy:    req.ApprovedBy,
	})
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *OrchestratorHandler) RejectLoan(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	dto, err := h.uc.Reject(c.Request().Context(), id)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type signedTxReq struct {
	SignedTx string `json:"signed_tx" validate:"required,rawtx"`
}

func (h *OrchestratorHandler) ProvideCollateral(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	var req signedTxReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.RecordCollateral(c.Request().Context(), orchestrator.SignedTxInput{
		LoanID:      id,
		SignedTxHex: req.SignedTx,
	})
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *OrchestratorHandler) FundLoan(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	dto, err := h.uc.Fund(c.Request().Context(), id)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *OrchestratorHandler) RepayLoan(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	var req signedTxReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Repay(c.Request().Context(), orchestrator.SignedTxInput{
		LoanID:      id,
		SignedTxHex: req.SignedTx,
	})
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *OrchestratorHandler) LiquidateLoan(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	dto, err := h.uc.Liquidate(c.Request().Context(), id)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *OrchestratorHandler) MarkOverdue(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	dto, err := h.uc.MarkOverdue(c.Request().Context(), id)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

type adoptTxReq struct {
	TxHash string `json:"tx_hash" validate:"required,txhash"`
}

// AdoptDeployment finishes an approval whose deployment confirmed after the
// wait timed out. The hash comes from the earlier 202 response.
func (h *OrchestratorHandler) AdoptDeployment(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	var req adoptTxReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.AdoptDeployment(c.Request().Context(), id, req.TxHash)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

// AdoptStep applies a lifecycle step (collateral, funding, repayment,
// liquidation) whose transaction confirmed after the wait timed out. The hash
// comes from the earlier 202 response; the contract's views decide which step
// it was.
func (h *OrchestratorHandler) AdoptStep(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	var req adoptTxReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.AdoptStep(c.Request().Context(), id, req.TxHash)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *OrchestratorHandler) ReconcileLoan(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	res, err := h.uc.Reconcile(c.Request().Context(), id)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
