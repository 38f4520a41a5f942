package middleware

import (
	"strings"
	"time"

	"identity-gateway/internal/pkg/ctxkey"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/trace"

	"github.com/labstack/echo/v4"
)

// LoggingConfig 日志配置
type LoggingConfig struct {
	// SkipPaths 跳过日志记录的路径
	SkipPaths []string

	// DetailedLog 是否记录详细日志（请求头等）
	DetailedLog bool

	// SensitiveHeaders 需要脱敏的 Header
	SensitiveHeaders []string
}

// DefaultLoggingConfig 默认日志配置
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SkipPaths: []string{
			"/health",
			"/metrics",
			"/favicon.ico",
		},
		DetailedLog: false,
		SensitiveHeaders: []string{
			"Authorization",
			"Cookie",
			"X-Api-Key",
		},
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware(logger log.Logger) echo.MiddlewareFunc {
	return LoggingMiddlewareWithConfig(logger, DefaultLoggingConfig())
}

// LoggingMiddlewareWithConfig 带配置的日志中间件
// 注意: 永远不记录请求体。注册请求体里有明文密码和照片字节。
func LoggingMiddlewareWithConfig(logger log.Logger, config *LoggingConfig) echo.MiddlewareFunc {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// 检查是否跳过
			if shouldSkip(c.Request().URL.Path, config.SkipPaths) {
				return next(c)
			}

			start := time.Now()
			ctx := c.Request().Context()

			// 获取 traceID
			traceID := trace.GetTraceID(ctx)

			// 基础日志字段
			baseFields := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"client_ip", c.RealIP(),
				"trace_id", traceID,
			}

			// 详细日志
			if config.DetailedLog {
				baseFields = append(baseFields,
					"user_agent", c.Request().UserAgent(),
				)

				// 记录请求头（脱敏）
				if headers := sanitizeHeaders(c.Request().Header, config.SensitiveHeaders); len(headers) > 0 {
					baseFields = append(baseFields, "headers", headers)
				}
			}

			// 记录请求开始
			logger.InfoContext(ctx, "请求开始", baseFields...)

			// 执行下一个处理器
			err := next(c)

			// 计算处理时间
			duration := time.Since(start)
			statusCode := c.Response().Status

			// 响应日志字段
			responseFields := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status_code", statusCode,
				"duration_ms", duration.Milliseconds(),
				"response_size", c.Response().Size,
				"trace_id", traceID,
			}

			// 获取已验证的用户标识（如果存在）
			if subjectID := ctxkey.GetString(c.Request().Context(), ctxkey.SubjectID); subjectID != "" {
				responseFields = append(responseFields, "subject_id", subjectID)
			}

			// 记录请求完成
			if err != nil {
				responseFields = append(responseFields, "error", err)
				logger.ErrorContext(ctx, "请求处理出错", responseFields...)
			} else {
				// 根据状态码选择日志级别
				switch {
				case statusCode >= 500:
					logger.ErrorContext(ctx, "请求完成（服务器错误）", responseFields...)
				case statusCode >= 400:
					logger.WarnContext(ctx, "请求完成（客户端错误）", responseFields...)
				default:
					logger.InfoContext(ctx, "请求完成", responseFields...)
				}
			}

			return err
		}
	}
}

// shouldSkip 检查是否应该跳过日志记录
func shouldSkip(path string, skipPaths []string) bool {
	for _, skipPath := range skipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// sanitizeHeaders 脱敏敏感 Header
func sanitizeHeaders(headers map[string][]string, sensitiveHeaders []string) map[string]string {
	result := make(map[string]string)
	for k, v := range headers {
		if len(v) == 0 {
			continue
		}

		// 检查是否是敏感 header
		isSensitive := false
		for _, sensitive := range sensitiveHeaders {
			if strings.EqualFold(k, sensitive) {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			result[k] = "***REDACTED***"
		} else {
			result[k] = v[0]
		}
	}
	return result
}
