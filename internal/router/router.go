package router // wires HTTP routes to handlers and middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slot-booking/internal/config"
	"github.com/iliyamo/slot-booking/internal/handler"
	"github.com/iliyamo/slot-booking/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication:
// the health check and the public availability listing.  The list
// endpoint sits behind the Redis response cache, so repeated
// availability queries are served without touching MySQL.
func RegisterRoutes(e *echo.Echo, s *handler.SlotHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	e.GET("/v1/slots", s.List, middleware.NewRedisCache(cacheCfg, rdb))
}

// RegisterAuth registers the authentication endpoints under /v1/auth
// and the token-protected /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterSlots registers the booking endpoints.  Booking and
// cancellation require any authenticated user; slot creation and
// deletion are restricted to admins.
func RegisterSlots(e *echo.Echo, s *handler.SlotHandler, jwtSecret string) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN", "CUSTOMER"))

	auth.POST("/slots/:id/book", s.Book)
	auth.DELETE("/slots/:id/book", s.Cancel)
	auth.GET("/my-bookings", s.MyBookings)

	admin := e.Group("/v1")
	admin.Use(middleware.JWTAuth(jwtSecret))
	admin.Use(middleware.RequireRole("ADMIN"))

	admin.POST("/slots", s.Create)
	admin.DELETE("/slots/:id", s.Delete)
}
