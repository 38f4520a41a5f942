// File: internal/modules/auth/client/identity_client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"identity-gateway/internal/modules/auth/service"
	"identity-gateway/internal/pkg/config"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/metrics"
	"identity-gateway/internal/pkg/xerrors"
)

// IdentityClient 身份提供方 REST 客户端，实现 service.IdentityProvider。
// 公开端点（密码验证、注册）与管理端点（账号查询/更新）可以是不同 base URL。
type IdentityClient struct {
	baseURL  string
	adminURL string
	apiKey   string
	timeout  time.Duration

	httpClient *http.Client
	signer     *CustomTokenSigner
	logger     log.Logger
	metrics    *metrics.AuthMetrics
}

// NewIdentityClient 创建身份提供方客户端
func NewIdentityClient(cfg *config.Config, signer *CustomTokenSigner, logger log.Logger) *IdentityClient {
	return &IdentityClient{
		baseURL:    cfg.IdentityBaseURL,
		adminURL:   cfg.IdentityAdminURL,
		apiKey:     cfg.IdentityAPIKey,
		timeout:    cfg.ProviderTimeout,
		httpClient: &http.Client{},
		signer:     signer,
		logger:     logger,
		metrics:    metrics.DefaultAuthMetrics,
	}
}

// SetHTTPClient 替换底层 HTTP 客户端（测试用）
func (c *IdentityClient) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// -----------------------------------------------------------------------------
// 提供方 wire 结构
// -----------------------------------------------------------------------------

type providerErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type accountPayload struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	Disabled    bool   `json:"disabled"`
}

type lookupResponse struct {
	Users []accountPayload `json:"users"`
}

type signUpRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DisplayName       string `json:"displayName,omitempty"`
	PhotoURL          string `json:"photoUrl,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signUpResponse struct {
	LocalID string `json:"localId"`
	Email   string `json:"email"`
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type updateRequest struct {
	LocalID     string  `json:"localId"`
	DisplayName *string `json:"displayName,omitempty"`
	PhotoURL    *string `json:"photoUrl,omitempty"`
}

func (p accountPayload) toAccount() *service.Account {
	return &service.Account{
		ID:          p.LocalID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		PhotoURL:    p.PhotoURL,
		Disabled:    p.Disabled,
	}
}

// -----------------------------------------------------------------------------
// service.IdentityProvider 实现
// -----------------------------------------------------------------------------

// FindByEmail 按邮箱查账号。查不到不是错误。
func (c *IdentityClient) FindByEmail(ctx context.Context, email string) (*service.Account, bool, error) {
	var out lookupResponse
	err := c.post(ctx, c.adminURL, "accounts:lookup", map[string]any{"email": []string{email}}, &out)
	if err != nil {
		// 提供方把"查无此人"也报成错误码，这里还原为 NotFound
		if appErr := xerrors.AsAppError(err); appErr.Code == xerrors.CodeAccountNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	if len(out.Users) == 0 {
		return nil, false, nil
	}
	return out.Users[0].toAccount(), true, nil
}

// CreateAccount 创建账号
func (c *IdentityClient) CreateAccount(ctx context.Context, params service.CreateAccountParams) (*service.Account, error) {
	req := signUpRequest{
		Email:             params.Email,
		Password:          params.Password,
		DisplayName:       params.DisplayName,
		PhotoURL:          params.PhotoURL,
		ReturnSecureToken: false,
	}

	var out signUpResponse
	if err := c.post(ctx, c.baseURL, "accounts:signUp", req, &out); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "提供方创建账号成功", "provider_id", out.LocalID)

	return &service.Account{
		ID:          out.LocalID,
		Email:       out.Email,
		DisplayName: params.DisplayName,
		PhotoURL:    params.PhotoURL,
	}, nil
}

// GetAccount 按内部标识查账号
func (c *IdentityClient) GetAccount(ctx context.Context, id string) (*service.Account, error) {
	var out lookupResponse
	if err := c.post(ctx, c.adminURL, "accounts:lookup", map[string]any{"localId": []string{id}}, &out); err != nil {
		return nil, err
	}

	if len(out.Users) == 0 {
		return nil, xerrors.FromCode(xerrors.CodeAccountNotFound).
			WithService("identity_client", "GetAccount").
			WithMetadata("provider_id", id)
	}
	return out.Users[0].toAccount(), nil
}

// UpdateAccount 更新账号资料字段
func (c *IdentityClient) UpdateAccount(ctx context.Context, id string, params service.UpdateAccountParams) error {
	req := updateRequest{
		LocalID:     id,
		DisplayName: params.DisplayName,
		PhotoURL:    params.PhotoURL,
	}

	var out accountPayload
	return c.post(ctx, c.adminURL, "accounts:update", req, &out)
}

// VerifyPassword 密码验证。
// 提供方的各种拒绝原因（密码错/邮箱不存在/账号停用）由错误映射表
// 统一折叠为 InvalidCredentials，邮箱是否存在不会泄露给调用方。
func (c *IdentityClient) VerifyPassword(ctx context.Context, email, password string) (*service.PasswordGrant, error) {
	req := signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}

	var out signInResponse
	if err := c.post(ctx, c.baseURL, "accounts:signInWithPassword", req, &out); err != nil {
		return nil, err
	}

	expiresIn := time.Hour
	if secs, err := strconv.Atoi(out.ExpiresIn); err == nil && secs > 0 {
		expiresIn = time.Duration(secs) * time.Second
	}

	return &service.PasswordGrant{
		SubjectID:    out.LocalID,
		IDToken:      out.IDToken,
		RefreshToken: out.RefreshToken,
		ExpiresIn:    expiresIn,
	}, nil
}

// CreateCustomToken 签发管理端自定义令牌。不经过提供方网络调用，
// 用服务账号私钥本地签名。
func (c *IdentityClient) CreateCustomToken(ctx context.Context, id string) (string, error) {
	if c.signer == nil {
		return "", xerrors.NewProviderError("CreateCustomToken",
			errors.New("custom token signer not configured"))
	}

	token, err := c.signer.Sign(id)
	if err != nil {
		return "", xerrors.NewProviderError("CreateCustomToken", err)
	}

	c.metrics.IncProviderCall("identity", "CreateCustomToken", "ok")
	return token, nil
}

// -----------------------------------------------------------------------------
// HTTP 基础设施
// -----------------------------------------------------------------------------

// post 发起一次带超时的提供方调用，处理错误翻译与指标上报。
func (c *IdentityClient) post(ctx context.Context, base, endpoint string, payload any, out any) error {
	start := time.Now()
	appErr := c.doPost(ctx, base, endpoint, payload, out)

	// 接口统一走普通 error，避免非 nil 接口包着 nil 指针
	result := "ok"
	var callErr error
	if appErr != nil {
		result = "error"
		callErr = appErr
	}
	c.metrics.IncProviderCall("identity", endpoint, result)
	log.LogProviderCall(ctx, "identity", endpoint, time.Since(start).Milliseconds(), callErr)

	return callErr
}

func (c *IdentityClient) doPost(ctx context.Context, base, endpoint string, payload any, out any) *xerrors.AppError {
	body, err := json.Marshal(payload)
	if err != nil {
		return xerrors.NewProviderError(endpoint, err)
	}

	// 每次外部调用都带独立超时，慢提供方不能拖死请求
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/%s?key=%s", base, endpoint, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return xerrors.NewProviderError(endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return xerrors.NewProviderTimeoutError(endpoint, err)
		}
		return xerrors.NewProviderTimeoutError(endpoint, err).
			WithMetadata("reason", "unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.NewProviderError(endpoint, err)
	}

	if resp.StatusCode >= 400 {
		var errBody providerErrorBody
		_ = json.Unmarshal(respBody, &errBody)

		c.logger.WarnContext(ctx, "提供方返回错误",
			"endpoint", endpoint,
			"status_code", resp.StatusCode,
			"provider_message", errBody.Error.Message,
		)
		return xerrors.NewProviderErrorFromMessage(endpoint, errBody.Error.Message, nil).
			WithMetadata("status_code", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return xerrors.NewProviderError(endpoint, err)
		}
	}
	return nil
}

// isTimeout 判断传输层错误是否为超时
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
