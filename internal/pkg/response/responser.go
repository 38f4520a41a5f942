// File: internal/pkg/response/responser.go
package response

import (
	"context"
	"encoding/json"
	"net/http"

	"identity-gateway/internal/pkg/ctxkey"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/xerrors"
)

// Envelope 是所有 API 响应的公共外壳。
// 成功响应把它内嵌到具体的响应结构体里（error=false），
// 失败响应则只由外壳本身构成（error=true + 对外文案）。
type Envelope struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// OK 构造成功外壳
func OK(message string) Envelope {
	return Envelope{Error: false, Message: message}
}

// Fail 构造失败外壳
func Fail(message string) Envelope {
	return Envelope{Error: true, Message: message}
}

// Writer 统一的响应写出接口，便于 handler 层测试时替换
type Writer interface {
	// WriteJSON 按给定状态码原样写出 data
	WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error
	// WriteError 把任意 error 规范化为 AppError 后写出失败外壳
	WriteError(ctx context.Context, w http.ResponseWriter, err error) error
}

// ResponseHandler Writer 的标准实现，带结构化日志
type ResponseHandler struct {
	logger  log.Logger
	service string
}

// NewResponseHandler 创建响应处理器。service 用于错误日志归属标记。
func NewResponseHandler(logger log.Logger, service string) *ResponseHandler {
	return &ResponseHandler{logger: logger, service: service}
}

// WriteJSON 实现 Writer
func (h *ResponseHandler) WriteJSON(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	w.Header().Set(echoHeaderContentType, mimeApplicationJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// header 已写出，只能记日志
		h.logger.ErrorContext(ctx, "写入 JSON 响应失败", "error", err, "service", h.service)
		return err
	}
	return nil
}

// WriteError 实现 Writer。
// 非 AppError 一律按内部错误处理，对外文案固定，细节只进日志。
func (h *ResponseHandler) WriteError(ctx context.Context, w http.ResponseWriter, err error) error {
	appErr := xerrors.AsAppError(err)
	if traceID := ctxkey.GetString(ctx, ctxkey.TraceID); traceID != "" {
		appErr = appErr.WithTraceID(traceID)
	}

	logAttrs := []any{
		"code", appErr.Code.ToInt(),
		"service", h.service,
		"error", appErr,
	}
	if appErr.IsCritical() {
		h.logger.ErrorContext(ctx, "请求处理失败", logAttrs...)
	} else {
		h.logger.WarnContext(ctx, "请求处理失败", logAttrs...)
	}

	status := xerrors.GetHTTPStatus(appErr.Code)
	return h.WriteJSON(ctx, w, Fail(appErr.Message), status)
}

const (
	echoHeaderContentType = "Content-Type"
	mimeApplicationJSON   = "application/json; charset=UTF-8"
)
