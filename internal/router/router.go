// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/monitor-ad-exchange/internal/handler"
	"github.com/iliyamo/monitor-ad-exchange/internal/middleware"
	"github.com/iliyamo/monitor-ad-exchange/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth; /v1/me requires a
// valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// Logout accepts either a refresh token in the body or a bearer
	// token (revoking all sessions); it applies no JWT middleware.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated catalogue endpoints. The
// cache middleware is applied here only: catalogue responses are safe
// to share between anonymous clients.
func RegisterPublic(e *echo.Echo, m *handler.MonitorHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/catalogue/monitors", m.Search, cache)
	e.GET("/v1/catalogue/monitors/:id", m.Get, cache)
}

// RegisterOwner registers seller-scoped endpoints under /v1. All routes
// require a valid JWT and the OWNER role (administrators pass too).
func RegisterOwner(e *echo.Echo, m *handler.MonitorHandler, p *handler.PlaylistHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner, model.RoleAdministrator),
	)

	// ---- Monitors ----
	g.POST("/monitors", m.Create)
	g.GET("/monitors", m.ListMine)
	g.PUT("/monitors/:id", m.Update)
	g.PATCH("/monitors/:id", m.Update)
	g.POST("/monitors/:id/status", m.Status)
	g.DELETE("/monitors/:id", m.Delete)

	// ---- Playlists ----
	g.POST("/playlists", p.Create)
	g.GET("/playlists", p.List)
	g.GET("/playlists/:id", p.Get)
	g.PUT("/playlists/:id", p.Update)
	g.PATCH("/playlists/:id", p.Update)
	g.PUT("/playlists/:id/items", p.ReplaceItems)
	g.DELETE("/playlists/:id", p.Delete)
}

// RegisterBids registers the bid lifecycle and favorites endpoints for
// every authenticated role; ownership rules live in the engine.
func RegisterBids(e *echo.Echo, b *handler.BidHandler, m *handler.MonitorHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleOwner, model.RoleAdvertiser, model.RoleAdministrator, model.RoleAccountant),
	)

	g.POST("/bids", b.Create)
	g.GET("/bids/outgoing", b.ListOutgoing)
	g.GET("/bids/incoming", b.ListIncoming)
	g.GET("/bids/pending", b.ListPending)
	g.GET("/bids/:id", b.Get)
	g.PUT("/bids/:id", b.Update)
	g.PATCH("/bids/:id", b.Update)
	g.DELETE("/bids/:id", b.Delete)

	g.GET("/favorites", m.ListFavorites)
	g.PUT("/monitors/:id/favorite", m.Favorite)
	g.DELETE("/monitors/:id/favorite", m.Unfavorite)
}

// RegisterWallet registers ledger endpoints. Balance/history/metrics are
// per-user; top-up is restricted to back-office roles.
func RegisterWallet(e *echo.Echo, w *handler.WalletHandler, jwtSecret string) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	g.GET("/wallet/balance", w.Balance)
	g.GET("/wallet/history", w.History)
	g.GET("/metrics/me", w.MetricsSnapshot)

	admin := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdministrator, model.RoleAccountant),
	)
	admin.POST("/wallet/topup", w.TopUp)
}

// RegisterWS registers the realtime endpoint.
func RegisterWS(e *echo.Echo, ws *handler.WSHandler, jwtSecret string) {
	e.GET("/v1/ws", ws.Connect, middleware.JWTAuth(jwtSecret))
}
