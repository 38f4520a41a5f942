// File: internal/modules/auth/handler/auth_handler.go
package handler

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"identity-gateway/internal/middleware"
	"identity-gateway/internal/modules/auth/service"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/response"
	"identity-gateway/internal/pkg/xerrors"
)

// AuthHandler 注册/登录/资料查询的 HTTP 处理器
type AuthHandler struct {
	svc        *service.AuthService
	respWriter response.Writer
	logger     log.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *service.AuthService, respWriter response.Writer, logger log.Logger) *AuthHandler {
	return &AuthHandler{
		svc:        svc,
		respWriter: respWriter,
		logger:     logger,
	}
}

// -----------------------------------------------------------------------------
// 请求/响应结构
// -----------------------------------------------------------------------------

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// registerForm 注册表单 (multipart)。photo 文件单独读取。
type registerForm struct {
	Name     string `form:"name" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,account_password"`
}

// loginResultPayload 对外的登录结果。userId 是派生标识，不是提供方原始 ID。
type loginResultPayload struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	Token    string `json:"token"`
	PhotoURL string `json:"photoUrl"`
	SignedIn bool   `json:"signedIn"`
}

type registerResponse struct {
	response.Envelope
	LoginResult *loginResultPayload `json:"loginResult,omitempty"`
}

type loginResponse struct {
	response.Envelope
	LoginResult loginResultPayload `json:"loginResult"`
}

type profileResponse struct {
	response.Envelope
	ProfileResult profileResultPayload `json:"profileResult"`
}

// profileResultPayload 缺失字段输出空字符串，从不输出 null
type profileResultPayload struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoUrl"`
}

func toLoginPayload(r *service.LoginResult) loginResultPayload {
	return loginResultPayload{
		UserID:   r.UserID,
		Name:     r.Name,
		Token:    r.Token,
		PhotoURL: r.PhotoURL,
		SignedIn: r.SignedIn,
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// Register 处理注册请求 (multipart/form 表单: name, email, password, 可选 photo)
func (h *AuthHandler) Register(c echo.Context) error {
	var form registerForm
	if err := c.Bind(&form); err != nil {
		return response.EchoValidationError(c, h.respWriter, "form",
			"name, email and password are required")
	}
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)

	if err := c.Validate(&form); err != nil {
		return response.EchoValidationError(c, h.respWriter, "form",
			"name, a valid email and a password of at least 6 characters are required")
	}

	params := service.RegisterParams{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
	}

	photo, err := readPhoto(c)
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	params.Photo = photo

	result, serr := h.svc.Register(c.Request().Context(), params)
	if serr != nil {
		return response.EchoError(c, h.respWriter, serr)
	}

	resp := registerResponse{Envelope: response.OK(result.Message)}
	if result.Login != nil {
		payload := toLoginPayload(result.Login)
		resp.LoginResult = &payload
	}
	return response.EchoCreated(c, h.respWriter, resp)
}

// Login 处理登录请求 (JSON: email, password)
// 此端点没有 400 分支：请求体不合法和凭据错误一样都是 401，
// 避免给探测者任何额外信号。
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return response.EchoError(c, h.respWriter,
			xerrors.NewInvalidCredentialsError("malformed request body"))
	}
	// 校验失败同样折叠为 401，不提供额外信号
	if err := c.Validate(&req); err != nil {
		return response.EchoError(c, h.respWriter,
			xerrors.NewInvalidCredentialsError("invalid credential shape"))
	}

	result, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}

	return response.EchoOK(c, h.respWriter, loginResponse{
		Envelope:    response.OK("success"),
		LoginResult: toLoginPayload(result),
	})
}

// Profile 返回当前令牌主体的资料。令牌验证由 AuthMiddleware 完成。
func (h *AuthHandler) Profile(c echo.Context) error {
	subjectID, err := middleware.GetSubjectID(c)
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}

	result, serr := h.svc.GetProfile(c.Request().Context(), subjectID)
	if serr != nil {
		return response.EchoError(c, h.respWriter, serr)
	}

	return response.EchoOK(c, h.respWriter, profileResponse{
		Envelope: response.OK("success"),
		ProfileResult: profileResultPayload{
			Name:     result.Name,
			PhotoURL: result.PhotoURL,
		},
	})
}

// Health 健康检查
func (h *AuthHandler) Health(c echo.Context) error {
	return response.EchoJSON(c, h.respWriter, map[string]any{
		"error":   false,
		"message": "Authentication API is running",
		"status":  "healthy",
	}, http.StatusOK)
}

// readPhoto 从表单中读取可选的头像文件。
// 文件超过大小上限时提前截断读取，具体校验交给 service 层。
func readPhoto(c echo.Context) (*service.PhotoUpload, error) {
	fileHeader, err := c.FormFile("photo")
	if err != nil {
		// 没带照片是合法请求
		return nil, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, xerrors.NewValidationError("photo", "unable to read photo upload")
	}
	defer file.Close()

	data, err := readLimited(file)
	if err != nil {
		return nil, xerrors.NewValidationError("photo", "unable to read photo upload")
	}

	return &service.PhotoUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// readLimited 最多读 1MiB+1 字节。多出的一个字节足以让 service 判定超限，
// 不必把任意大的上传整个吞进内存。
func readLimited(file multipart.File) ([]byte, error) {
	const limit = 1<<20 + 1
	return io.ReadAll(io.LimitReader(file, limit))
}
