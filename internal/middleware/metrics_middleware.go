package middleware

import (
	"time"

	"identity-gateway/internal/pkg/metrics"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware HTTP 指标采集中间件
// 按路由模板（而非实际路径）打标签，避免标签基数爆炸
func MetricsMiddleware(m *metrics.HTTPMetrics) echo.MiddlewareFunc {
	if m == nil {
		m = metrics.DefaultHTTPMetrics
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// 健康检查与指标端点不采集
			if metrics.IsHealthCheckEndpoint(c.Request().URL.Path) {
				return next(c)
			}

			start := time.Now()
			m.IncInProgress()
			defer m.DecInProgress()

			err := next(c)

			route := metrics.NormalizeRoute(c.Path())
			m.RecordRequest(route, c.Request().Method, c.Response().Status, time.Since(start))

			return err
		}
	}
}
