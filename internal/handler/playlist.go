package handler

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/monitor-ad-exchange/internal/model"
	"github.com/iliyamo/monitor-ad-exchange/internal/repository"
)

// PlaylistHandler exposes playlist CRUD. Item changes recompute the
// cached total duration, which the bid charge formula depends on.
type PlaylistHandler struct {
	Repo *repository.PlaylistRepo
}

func NewPlaylistHandler(repo *repository.PlaylistRepo) *PlaylistHandler {
	if repo == nil {
		panic("nil repository passed to NewPlaylistHandler")
	}
	return &PlaylistHandler{Repo: repo}
}

type playlistReq struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type playlistItemReq struct {
	Name        string `json:"name"`
	DurationSec int64  `json:"duration_sec"`
}

// Create adds an empty playlist for the caller.
func (h *PlaylistHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req playlistReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	p := &model.Playlist{OwnerID: uid, Name: req.Name, Description: req.Description}
	if err := h.Repo.Create(c.Request().Context(), p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create playlist failed"})
	}
	return c.JSON(http.StatusCreated, p)
}

// List returns the caller's playlists.
func (h *PlaylistHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	playlists, err := h.Repo.ListByOwner(c.Request().Context(), uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"playlists": playlists})
}

// Get returns one playlist with its items.
func (h *PlaylistHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid playlist id"})
	}
	p, err := h.Repo.Get(c.Request().Context(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "playlist not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	items, err := h.Repo.Items(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"playlist": p, "items": items})
}

// Update renames a playlist.
func (h *PlaylistHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid playlist id"})
	}
	var req playlistReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name required"})
	}
	err = h.Repo.Rename(c.Request().Context(), id, uid, req.Name, req.Description)
	switch err {
	case nil:
		return c.NoContent(http.StatusNoContent)
	case sql.ErrNoRows:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "playlist not found"})
	case repository.ErrForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update playlist failed"})
	}
}

// ReplaceItems swaps the item list; positions follow array order.
func (h *PlaylistHandler) ReplaceItems(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid playlist id"})
	}
	var reqs []playlistItemReq
	if err := c.Bind(&reqs); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	items := make([]model.PlaylistItem, 0, len(reqs))
	for _, it := range reqs {
		if strings.TrimSpace(it.Name) == "" || it.DurationSec <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "each item needs a name and a positive duration"})
		}
		items = append(items, model.PlaylistItem{Name: it.Name, DurationSec: it.DurationSec})
	}
	err = h.Repo.ReplaceItems(c.Request().Context(), id, uid, items)
	switch err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"items": items})
	case sql.ErrNoRows:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "playlist not found"})
	case repository.ErrForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "replace items failed"})
	}
}

// Delete removes a playlist that nothing references anymore.
func (h *PlaylistHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid playlist id"})
	}
	err = h.Repo.Delete(c.Request().Context(), id, uid)
	switch err {
	case nil:
		return c.NoContent(http.StatusNoContent)
	case sql.ErrNoRows:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "playlist not found"})
	case repository.ErrForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case repository.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": "playlist is still in use"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete playlist failed"})
	}
}
