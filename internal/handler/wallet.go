package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/monitor-ad-exchange/internal/repository"
	"github.com/iliyamo/monitor-ad-exchange/internal/service"
)

// WalletHandler exposes the ledger: balance, statement history, the
// administrative top-up and the per-user metrics snapshot.
type WalletHandler struct {
	Wallet  *service.WalletService
	Metrics *repository.MetricsRepo
}

func NewWalletHandler(ws *service.WalletService, metrics *repository.MetricsRepo) *WalletHandler {
	if ws == nil || metrics == nil {
		panic("nil dependency passed to NewWalletHandler")
	}
	return &WalletHandler{Wallet: ws, Metrics: metrics}
}

type topUpReq struct {
	UserID        uint64 `json:"user_id"`
	AmountKopecks int64  `json:"amount_kopecks"`
	Description   string `json:"description"`
}

// Balance returns the caller's current balance.
func (h *WalletHandler) Balance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	balance, err := h.Wallet.Balance(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"balance_kopecks": balance})
}

// History returns a page of the caller's ledger entries, newest first.
func (h *WalletHandler) History(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, offset := pageParams(c)
	entries, err := h.Wallet.History(c.Request().Context(), uid, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

// TopUp posts an administrative credit to a user's ledger. Restricted
// to ADMINISTRATOR/ACCOUNTANT by route middleware; the engine enforces
// it again.
func (h *WalletHandler) TopUp(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req topUpReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	entry, err := h.Wallet.TopUp(c.Request().Context(), actor, req.UserID, req.AmountKopecks, req.Description)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, entry)
}

// MetricsSnapshot returns the caller's dashboard counters.
func (h *WalletHandler) MetricsSnapshot(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	m, err := h.Metrics.MetricsFor(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, m)
}
