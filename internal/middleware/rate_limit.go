package middleware

import (
	"identity-gateway/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware 限流中间件
// 按客户端 IP 限流，保护上游身份提供方不被打爆
func RateLimitMiddleware(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	config := middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(ratePerSecond),
			Burst: burst,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			// 使用客户端 IP 作为标识符
			return c.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return xerrors.FromCode(xerrors.CodeRateLimited).
				WithService("echo-middleware", "rate_limiter").
				WithMetadata("client_ip", context.RealIP())
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return xerrors.FromCode(xerrors.CodeRateLimited).
				WithService("echo-middleware", "rate_limiter").
				WithMetadata("client_ip", identifier)
		},
	}

	return middleware.RateLimiterWithConfig(config)
}
