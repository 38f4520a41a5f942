// File: internal/pkg/xerrors/provider_mapping.go
package xerrors

import (
	"log/slog"
	"strings"
)

// providerErrMapping 是身份提供方 REST 错误码到我们自定义错误码的映射。
// 提供方在 400 响应体的 error.message 中返回这类大写下划线风格的错误标识。
// 可根据需要持续补充。
var providerErrMapping = map[string]ErrorCode{
	// --- 注册流程 ---
	"EMAIL_EXISTS":          CodeEmailExists,
	"INVALID_EMAIL":         CodeInvalidParams,
	"WEAK_PASSWORD":         CodeInvalidParams,
	"MISSING_PASSWORD":      CodeInvalidParams,
	"OPERATION_NOT_ALLOWED": CodeProviderError,

	// --- 登录流程 ---
	// 以下全部折叠为同一凭据错误：对外不暴露"邮箱是否存在"。
	"EMAIL_NOT_FOUND":           CodeInvalidCredentials,
	"INVALID_PASSWORD":          CodeInvalidCredentials,
	"INVALID_LOGIN_CREDENTIALS": CodeInvalidCredentials,
	"USER_DISABLED":             CodeInvalidCredentials,

	// --- 令牌/账号 ---
	"INVALID_ID_TOKEN": CodeInvalidToken,
	"TOKEN_EXPIRED":    CodeTokenExpired,
	"USER_NOT_FOUND":   CodeAccountNotFound,

	// --- 限流/配额 ---
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeProviderError,
	"QUOTA_EXCEEDED":              CodeProviderError,
}

// TranslateProviderError 根据提供方返回的错误标识得到业务错误码。
// 提供方常在标识后携带冒号说明（如 "WEAK_PASSWORD : ..."），先截断再匹配。
func TranslateProviderError(providerMessage string) ErrorCode {
	key := providerMessage
	if idx := strings.IndexAny(key, " :"); idx >= 0 {
		key = key[:idx]
	}
	key = strings.TrimSpace(key)

	if code, ok := providerErrMapping[key]; ok {
		return code
	}

	// 找不到映射时返回通用的提供方错误，并记录日志便于后续补充映射表
	slog.Warn("unmapped provider error", "provider_message", providerMessage)
	return CodeProviderError
}

// NewProviderErrorFromMessage 将提供方错误标识翻译为 AppError。
// 原始标识只进元数据，对外文案取自 codeMessages。
func NewProviderErrorFromMessage(operation, providerMessage string, originalErr error) *AppError {
	appErr := FromCode(TranslateProviderError(providerMessage))
	if originalErr != nil {
		appErr.Err = originalErr
	}
	return appErr.
		WithMetadata("provider_operation", operation).
		WithMetadata("provider_message", providerMessage)
}
