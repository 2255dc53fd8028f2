package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/monitor-ad-exchange/internal/broadcast"
)

// WSHandler upgrades authenticated clients onto the realtime hub.
type WSHandler struct {
	Hub *broadcast.Hub
}

func NewWSHandler(hub *broadcast.Hub) *WSHandler {
	if hub == nil {
		panic("nil hub passed to NewWSHandler")
	}
	return &WSHandler{Hub: hub}
}

// Connect upgrades the request to a websocket and serves it until the
// client disconnects. Clients send subscribe/unsubscribe messages to
// follow individual monitors; user-scoped events arrive automatically.
func (h *WSHandler) Connect(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return h.Hub.ServeWS(c, uid)
}
