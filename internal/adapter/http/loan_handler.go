package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"lendingchain-backend/internal/usecase/loan"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type createLoanReq struct {
	BorrowerAddress        string          `json:"borrower_address"         validate:"required,ethaddr"`
	Amount                 decimal.Decimal `json:"amount"                   validate:"required"`
	DurationMonths         uint32          `json:"duration_months"          validate:"required,gte=1,lte=360"`
	Purpose                string          `json:"purpose"                  validate:"max=500"`
	LoanAssetAddress       string          `json:"loan_asset_address"       validate:"omitempty,ethaddr"`
	CollateralAssetAddress string          `json:"collateral_asset_address" validate:"omitempty,ethaddr"`
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	l, err := h.uc.Create(c.Request().Context(), loan.CreateLoanInput(req))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	id, err := parseLoanID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid loan id"})
	}
	l, err := h.uc.Get(c.Request().Context(), id)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *LoanHandler) ListLoans(c echo.Context) error {
	loans, err := h.uc.List(c.Request().Context(), c.QueryParam("borrower"))
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"loans": loans, "count": len(loans)})
}

func parseLoanID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("loan_id"), 10, 64)
}
