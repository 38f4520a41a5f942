// File: internal/modules/auth/handler/routes.go
package handler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes 挂载认证相关路由。
// authMW 是令牌验证中间件，只有 /profile 需要。
func RegisterRoutes(e *echo.Echo, h *AuthHandler, authMW echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	api := e.Group("/api/v1")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.GET("/profile", h.Profile, authMW)
}
