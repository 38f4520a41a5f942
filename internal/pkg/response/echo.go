// File: internal/pkg/response/echo.go
package response

import (
	"net/http"

	"identity-gateway/internal/pkg/xerrors"

	"github.com/labstack/echo/v4"
)

// Echo 框架适配器 - 简化 Echo Handler 中的响应处理

// EchoOK Echo 200 成功响应。data 需内嵌 Envelope
func EchoOK(c echo.Context, h Writer, data any) error {
	return h.WriteJSON(c.Request().Context(), c.Response().Writer, data, http.StatusOK)
}

// EchoCreated Echo 201 成功响应
func EchoCreated(c echo.Context, h Writer, data any) error {
	return h.WriteJSON(c.Request().Context(), c.Response().Writer, data, http.StatusCreated)
}

// EchoError Echo 错误响应
func EchoError(c echo.Context, h Writer, err error) error {
	return h.WriteError(c.Request().Context(), c.Response().Writer, err)
}

// EchoValidationError Echo 参数校验失败响应
func EchoValidationError(c echo.Context, h Writer, field, message string) error {
	err := xerrors.NewValidationError(field, message)
	return h.WriteError(c.Request().Context(), c.Response().Writer, err)
}

// EchoJSON Echo 直接按状态码返回 JSON 响应
func EchoJSON(c echo.Context, h Writer, data any, statusCode int) error {
	return h.WriteJSON(c.Request().Context(), c.Response().Writer, data, statusCode)
}
