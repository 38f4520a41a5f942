package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"identity-gateway/internal/pkg/ctxkey"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/response"
	"identity-gateway/internal/pkg/xerrors"
)

// TokenVerifier 令牌验证接口（在消费端定义）
// 实现方：auth 模块的 IDTokenVerifier
type TokenVerifier interface {
	// Verify 验证令牌并返回其指向的用户标识
	Verify(ctx context.Context, token string) (subjectID string, err error)
}

// AuthMiddleware 认证中间件 - 解析 Authorization 头并验证 Bearer 令牌
// 头部格式错误时直接拒绝，不会产生任何上游调用
func AuthMiddleware(verifier TokenVerifier, respWriter response.Writer, logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			token, appErr := ExtractBearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if appErr != nil {
				logger.WarnContext(ctx, "认证失败: Authorization 头缺失或格式错误")
				return respWriter.WriteError(ctx, c.Response().Writer, appErr)
			}

			subjectID, err := verifier.Verify(ctx, token)
			if err != nil {
				return respWriter.WriteError(ctx, c.Response().Writer, err)
			}

			// 将用户标识注入到 Context（使用统一的 ctxkey）
			ctx = ctxkey.WithValue(ctx, ctxkey.SubjectID, subjectID)
			c.SetRequest(c.Request().WithContext(ctx))

			// 也设置到 Echo Context，便于 handler 直接访问
			c.Set(string(ctxkey.SubjectID), subjectID)

			logger.DebugContext(ctx, "令牌验证成功", "subject_id", subjectID)

			return next(c)
		}
	}
}

// ExtractBearerToken 严格解析 "Bearer <token>" 格式的 Authorization 头。
// 缺失、空 scheme、非 Bearer scheme、空 token 都视为格式错误。
func ExtractBearerToken(header string) (string, *xerrors.AppError) {
	if header == "" {
		return "", xerrors.NewMissingAuthHeaderError()
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", xerrors.NewMissingAuthHeaderError().
			WithMetadata("reason", "scheme_not_bearer")
	}

	token := header[len(prefix):]
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", xerrors.NewMissingAuthHeaderError().
			WithMetadata("reason", "malformed_token_part")
	}

	return token, nil
}

// GetSubjectID 从 Echo Context 中获取当前已验证的用户标识
func GetSubjectID(c echo.Context) (string, error) {
	subjectID, ok := c.Get(string(ctxkey.SubjectID)).(string)
	if !ok || subjectID == "" {
		return "", xerrors.FromCode(xerrors.CodeInvalidToken).
			WithService("middleware", "auth")
	}
	return subjectID, nil
}
