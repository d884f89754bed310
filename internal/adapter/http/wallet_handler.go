package http

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/contract"
)

type WalletHandler struct {
	backend chain.Backend
	reader  *contract.Reader
}

func NewWalletHandler(b chain.Backend, r *contract.Reader) *WalletHandler {
	return &WalletHandler{backend: b, reader: r}
}

func (h *WalletHandler) NativeBalance(c echo.Context) error {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid wallet address"})
	}
	addr := common.HexToAddress(raw)
	wei, err := h.backend.BalanceAt(c.Request().Context(), addr, nil)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"address":     addr.Hex(),
		"balance_wei": wei.String(),
		"balance_eth": decimal.NewFromBigInt(wei, -18).String(),
	})
}

func (h *WalletHandler) TokenBalance(c echo.Context) error {
	rawAddr, rawToken := c.Param("address"), c.Param("token")
	if !common.IsHexAddress(rawAddr) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid wallet address"})
	}
	if !common.IsHexAddress(rawToken) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid token address"})
	}
	addr, token := common.HexToAddress(rawAddr), common.HexToAddress(rawToken)

	raw, decimals, symbol, err := h.reader.TokenBalance(c.Request().Context(), token, addr)
	if err != nil {
		return writeDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"address":     addr.Hex(),
		"token":       token.Hex(),
		"symbol":      symbol,
		"decimals":    decimals,
		"balance_raw": raw.String(),
		"balance":     decimal.NewFromBigInt(raw, -int32(decimals)).String(),
	})
}
