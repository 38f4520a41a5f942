// File: internal/pkg/xerrors/codes.go
package xerrors

import "fmt"

// ErrorCode 错误码类型（类型安全）
type ErrorCode int

// IsValid 检查错误码是否在预定义列表中
func (c ErrorCode) IsValid() bool {
	_, exists := codeMessages[c]
	return exists
}

// String 返回错误码的字符串表示
func (c ErrorCode) String() string {
	if msg, ok := codeMessages[c]; ok {
		return fmt.Sprintf("%d (%s)", c, msg)
	}
	return fmt.Sprintf("%d (undefined)", c)
}

// Message 返回错误码对应的对外消息
func (c ErrorCode) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return "Something went wrong"
}

// ToInt 转换为 int（用于 JSON 序列化等场景）
func (c ErrorCode) ToInt() int {
	return int(c)
}

// -----------------------------------------------------------------------------
// 业务错误码统一定义
// 按领域分段，便于管理。
// -----------------------------------------------------------------------------
const (
	// 1xxxxx: 通用错误码
	CodeSuccess        ErrorCode = 100000 // 操作成功
	CodeInternalError  ErrorCode = 100001 // 内部服务错误
	CodeInvalidParams  ErrorCode = 100002 // 参数错误
	CodeInvalidRequest ErrorCode = 100003 // 请求格式错误
	CodeRateLimited    ErrorCode = 100004 // 请求过于频繁
	CodeRouteNotFound  ErrorCode = 100005 // 路由不存在

	// 2xxxxx: 认证相关错误码
	CodeInvalidCredentials ErrorCode = 200001 // 邮箱或密码错误
	CodeInvalidToken       ErrorCode = 200002 // 无效令牌
	CodeTokenExpired       ErrorCode = 200003 // 令牌过期
	CodeMissingAuthHeader  ErrorCode = 200004 // Authorization 头缺失或格式错误

	// 4xxxxx: 账号相关错误码
	CodeEmailExists     ErrorCode = 400001 // 邮箱已被注册
	CodeAccountNotFound ErrorCode = 400002 // 账号不存在

	// 6xxxxx: 头像上传校验错误码
	CodePhotoTooLarge     ErrorCode = 600001 // 头像超过大小限制
	CodePhotoBadExtension ErrorCode = 600002 // 头像扩展名不被允许

	// 7xxxxx: 外部服务错误码
	CodeProviderError   ErrorCode = 700001 // 身份提供方错误
	CodeProviderTimeout ErrorCode = 700002 // 身份提供方超时/不可达
	CodeStorageError    ErrorCode = 700003 // 对象存储错误
)

// -----------------------------------------------------------------------------
// 错误消息映射
// 这些文案就是 API 对外返回的 message，不允许携带上游原始错误细节。
// -----------------------------------------------------------------------------
var codeMessages = map[ErrorCode]string{
	CodeSuccess:        "success",
	CodeInternalError:  "Something went wrong",
	CodeInvalidParams:  "Invalid request payload",
	CodeInvalidRequest: "Invalid request payload",
	CodeRateLimited:    "Too many requests",
	CodeRouteNotFound:  "Resource not found",

	CodeInvalidCredentials: "Invalid email or password",
	CodeInvalidToken:       "Invalid token",
	CodeTokenExpired:       "Token expired",
	CodeMissingAuthHeader:  "Invalid authorization header format",

	CodeEmailExists:     "Email already registered",
	CodeAccountNotFound: "User not found",

	CodePhotoTooLarge:     "the photo size must be less than 1MB",
	CodePhotoBadExtension: "Only .jpg and .png files are allowed",

	CodeProviderError:   "Authentication service unavailable",
	CodeProviderTimeout: "Authentication service unavailable",
	CodeStorageError:    "Storage service unavailable",
}

// GetHTTPStatus 根据业务错误码获取HTTP状态码
// 注意: 重复注册按产品约定返回 400 而不是 409。
func GetHTTPStatus(code ErrorCode) int {
	switch {
	case code == CodeSuccess:
		return 200
	case code >= 200000 && code < 300000:
		return 401
	case code == CodeEmailExists:
		return 400
	case code == CodeAccountNotFound || code == CodeRouteNotFound:
		return 404
	case code == CodeInvalidParams || code == CodeInvalidRequest:
		return 400
	case code == CodeRateLimited:
		return 429
	case code >= 600000 && code < 700000:
		return 400
	case code >= 700000 && code < 800000:
		return 500
	default:
		return 500
	}
}

// 辅助函数
// getCategoryByCode 根据错误码获取分类
func getCategoryByCode(code ErrorCode) string {
	switch {
	case code >= 100000 && code < 200000:
		return "system"
	case code >= 200000 && code < 300000:
		return "authentication"
	case code >= 400000 && code < 500000:
		return "account"
	case code >= 600000 && code < 700000:
		return "validation"
	case code >= 700000 && code < 800000:
		return "external"
	default:
		return "unknown"
	}
}

// getLevelByCode 根据错误码获取级别
func getLevelByCode(code ErrorCode) ErrorLevel {
	switch {
	case code == CodeSuccess:
		return LevelInfo
	case code >= 100002 && code <= 100005:
		return LevelWarn
	case code >= 600000 && code < 700000:
		return LevelWarn
	case code >= 700000:
		return LevelCritical
	default:
		return LevelError
	}
}

// isRetryableByCode 根据错误码判断是否可重试
func isRetryableByCode(code ErrorCode) bool {
	retryableCodes := map[ErrorCode]bool{
		CodeInternalError:   true,
		CodeProviderError:   true,
		CodeProviderTimeout: true,
		CodeStorageError:    true,
	}
	return retryableCodes[code]
}
