package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
	"github.com/iliyamo/monitor-ad-exchange/internal/repository"
	"github.com/iliyamo/monitor-ad-exchange/internal/service"
)

// BidHandler exposes the bid lifecycle endpoints. All mutations go
// through the engine; listings read directly from the repository and
// never include hidden fan-out sub-bids.
type BidHandler struct {
	Bids *service.BidService
	Repo *repository.BidRepo
}

func NewBidHandler(bs *service.BidService, repo *repository.BidRepo) *BidHandler {
	if bs == nil || repo == nil {
		panic("nil dependency passed to NewBidHandler")
	}
	return &BidHandler{Bids: bs, Repo: repo}
}

type createBidReq struct {
	PlaylistID     uint64     `json:"playlist_id"`
	MonitorIDs     []uint64   `json:"monitor_ids"`
	DateWhen       *time.Time `json:"date_when"`
	DateBefore     *time.Time `json:"date_before"`
	PlaylistChange bool       `json:"playlist_change"`
}

type updateBidReq struct {
	Approved       *string `json:"approved"`
	Status         *string `json:"status"`
	Hide           *bool   `json:"hide"`
	PlaylistChange *bool   `json:"playlist_change"`
}

// Create places one bid per requested monitor, all-or-nothing.
func (h *BidHandler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	in := service.CreateBidInput{
		PlaylistID:     req.PlaylistID,
		MonitorIDs:     req.MonitorIDs,
		DateBefore:     req.DateBefore,
		PlaylistChange: req.PlaylistChange,
	}
	if req.DateWhen != nil {
		in.DateWhen = *req.DateWhen
	}
	bids, err := h.Bids.Create(c.Request().Context(), actor, in)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"bids": bids})
}

// Update applies a partial update: approval decisions, status changes,
// hide flag, playlist change mode.
func (h *BidHandler) Update(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bid id"})
	}
	var req updateBidReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	in := service.UpdateBidInput{
		Hide:           req.Hide,
		PlaylistChange: req.PlaylistChange,
	}
	if req.Approved != nil {
		a := model.BidApproved(*req.Approved)
		switch a {
		case model.ApprovedNotProcessed, model.ApprovedAllowed, model.ApprovedDenied:
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid approved value"})
		}
		in.Approved = &a
	}
	if req.Status != nil {
		s := model.BidStatus(*req.Status)
		switch s {
		case model.BidOK, model.BidWaiting:
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status value"})
		}
		in.Status = &s
	}
	bid, err := h.Bids.Update(c.Request().Context(), actor, id, in)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, bid)
}

// Delete removes a bid and its fan-out sub-bids.
func (h *BidHandler) Delete(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bid id"})
	}
	affected, err := h.Bids.Delete(c.Request().Context(), actor, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": affected})
}

// Get returns one bid. Hidden sub-bids are only visible to their
// parties.
func (h *BidHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid bid id"})
	}
	bid, err := h.Repo.Get(c.Request().Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "bid not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	role, _ := c.Get("role").(string)
	party := bid.SellerID == uid || bid.UserID == uid || (bid.BuyerID != nil && *bid.BuyerID == uid)
	if !party && role != model.RoleAdministrator {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "bid not found"})
	}
	return c.JSON(http.StatusOK, bid)
}

// ListOutgoing returns the bids the caller placed.
func (h *BidHandler) ListOutgoing(c echo.Context) error {
	return h.list(c, h.Repo.ListOutgoing)
}

// ListIncoming returns the bids targeting the caller's monitors.
func (h *BidHandler) ListIncoming(c echo.Context) error {
	return h.list(c, h.Repo.ListIncoming)
}

// ListPending returns the caller's approval queue, oldest first.
func (h *BidHandler) ListPending(c echo.Context) error {
	return h.list(c, h.Repo.ListPending)
}

func (h *BidHandler) list(c echo.Context, query func(ctx context.Context, userID uint64, limit, offset int) ([]model.Bid, error)) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	limit, offset := pageParams(c)
	bids, err := query(c.Request().Context(), uid, limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bids": bids})
}
