package handler

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
	"github.com/iliyamo/monitor-ad-exchange/internal/repository"
	"github.com/iliyamo/monitor-ad-exchange/internal/service"
)

// MonitorHandler exposes the monitor topology endpoints: owner CRUD,
// device status reports, favorites and the public catalogue.
type MonitorHandler struct {
	Monitors *service.MonitorService
	Repo     *repository.MonitorRepo
}

func NewMonitorHandler(ms *service.MonitorService, repo *repository.MonitorRepo) *MonitorHandler {
	if ms == nil || repo == nil {
		panic("nil dependency passed to NewMonitorHandler")
	}
	return &MonitorHandler{Monitors: ms, Repo: repo}
}

type createMonitorReq struct {
	Name        string             `json:"name"`
	Multiple    string             `json:"multiple"`
	Width       *uint32            `json:"width"`
	Height      *uint32            `json:"height"`
	Price1s     int64              `json:"price_1s"`
	MinWarranty int64              `json:"min_warranty"`
	Cells       []service.CellSpec `json:"cells"`
}

type updateMonitorReq struct {
	Name        *string             `json:"name"`
	Multiple    *string             `json:"multiple"`
	Width       *uint32             `json:"width"`
	Height      *uint32             `json:"height"`
	Price1s     *int64              `json:"price_1s"`
	MinWarranty *int64              `json:"min_warranty"`
	Cells       *[]service.CellSpec `json:"cells"`
}

type statusReq struct {
	Status string `json:"status"` // online | offline
}

// Create registers a monitor for the authenticated owner.
func (h *MonitorHandler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createMonitorReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	m, err := h.Monitors.Create(c.Request().Context(), actor, service.CreateMonitorInput{
		Name:        req.Name,
		Multiple:    model.MonitorMultiple(req.Multiple),
		Width:       req.Width,
		Height:      req.Height,
		Price1s:     req.Price1s,
		MinWarranty: req.MinWarranty,
		Cells:       req.Cells,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Update applies a partial update, including group cell rearrangement.
func (h *MonitorHandler) Update(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid monitor id"})
	}
	var req updateMonitorReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	patch := service.MonitorPatch{
		Name:        req.Name,
		Width:       req.Width,
		Height:      req.Height,
		Price1s:     req.Price1s,
		MinWarranty: req.MinWarranty,
	}
	if req.Multiple != nil {
		mm := model.MonitorMultiple(*req.Multiple)
		patch.Multiple = &mm
	}
	var cells []service.CellSpec
	if req.Cells != nil {
		cells = *req.Cells
		if cells == nil {
			cells = []service.CellSpec{}
		}
	}
	m, err := h.Monitors.Update(c.Request().Context(), actor, id, patch, cells)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Status applies an online/offline report for a monitor. Device agents
// and owners both use this endpoint.
func (h *MonitorHandler) Status(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid monitor id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Monitors.Status(c.Request().Context(), actor, id, model.MonitorStatus(req.Status)); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a monitor, detaching group cells first.
func (h *MonitorHandler) Delete(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid monitor id"})
	}
	affected, err := h.Monitors.Delete(c.Request().Context(), actor, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": affected})
}

// ListMine returns the authenticated owner's monitors.
func (h *MonitorHandler) ListMine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	monitors, err := h.Repo.ListByOwner(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"monitors": monitors})
}

// Get returns one monitor by id.
func (h *MonitorHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid monitor id"})
	}
	m, err := h.Repo.Get(c.Request().Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "monitor not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, m)
}

// Search is the public advertiser-facing catalogue. Responses are
// cached by the cache middleware keyed on the query string.
func (h *MonitorHandler) Search(c echo.Context) error {
	limit, offset := pageParams(c)
	maxPrice, _ := strconv.ParseInt(c.QueryParam("max_price_1s"), 10, 64)
	f := repository.MonitorFilter{
		Query:      c.QueryParam("q"),
		OnlineOnly: c.QueryParam("online") == "true",
		MaxPrice1s: maxPrice,
		Limit:      limit,
		Offset:     offset,
	}
	monitors, err := h.Repo.Search(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"monitors": monitors})
}

// Favorite marks a monitor as a favorite of the caller.
func (h *MonitorHandler) Favorite(c echo.Context) error {
	return h.setFavorite(c, true)
}

// Unfavorite removes the caller's favorite mark.
func (h *MonitorHandler) Unfavorite(c echo.Context) error {
	return h.setFavorite(c, false)
}

func (h *MonitorHandler) setFavorite(c echo.Context, flag bool) error {
	actor, err := actorFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid monitor id"})
	}
	if err := h.Monitors.Favorite(c.Request().Context(), actor, id, flag); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListFavorites returns the caller's favorite monitors.
func (h *MonitorHandler) ListFavorites(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	monitors, err := h.Repo.ListFavorites(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"monitors": monitors})
}
