package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"lendingchain-backend/internal/chain"
	loanDomain "lendingchain-backend/internal/domain/loan"
)

// ChainPinger reports whether the RPC endpoint is reachable.
type ChainPinger interface {
	Ping(ctx context.Context) error
}

type Handler struct{ pinger ChainPinger }

func NewHandler(p ChainPinger) *Handler { return &Handler{pinger: p} }

func (h *Handler) Health(c echo.Context) error {
	out := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			out["chain"] = "unreachable"
		} else {
			out["chain"] = "ok"
		}
	}
	return c.JSON(http.StatusOK, out)
}

// writeDomainError maps usecase errors onto HTTP codes. The one unusual case
// is the confirmation timeout: the transaction may still land, so the
// response is 202 with the hash and a pending marker rather than an error
// status that would invite a blind retry.
func writeDomainError(c echo.Context, err error) error {
	var (
		wouldRevert *chain.WouldRevertError
		reverted    *chain.RevertedError
		timedOut    *chain.ConfirmationTimeoutError
	)
	switch {
	case errors.Is(err, loanDomain.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "loan not found"})
	case errors.Is(err, loanDomain.ErrIllegalTransition):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.As(err, &timedOut):
		return c.JSON(http.StatusAccepted, ErrorResponse{
			Error:   err.Error(),
			TxHash:  timedOut.TxHash.Hex(),
			Pending: true,
		})
	case errors.As(err, &wouldRevert):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, loanDomain.ErrPreconditionFailed):
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
	case errors.Is(err, chain.ErrChainUnavailable):
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, chain.ErrTxNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.As(err, &reverted):
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:  err.Error(),
			TxHash: reverted.TxHash.Hex(),
		})
	case errors.Is(err, chain.ErrChainCall):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
