// File: internal/modules/auth/service/auth_service.go
package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"identity-gateway/internal/pkg/config"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/metrics"
	"identity-gateway/internal/pkg/xerrors"
)

const (
	// maxPhotoBytes 头像大小上限 (1 MiB)
	maxPhotoBytes = 1 << 20

	// photoKeyPrefix 头像在对象存储中的固定命名空间
	photoKeyPrefix = "profile_photos/"
)

// 对外文案。注册成功的 message 固定，照片降级时追加说明。
const (
	msgUserCreated        = "User Created"
	msgUserCreatedNoPhoto = "User Created, but photo upload failed"
)

// PhotoUpload 注册时附带的头像
type PhotoUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RegisterParams 注册参数
type RegisterParams struct {
	Name     string
	Email    string
	Password string
	Photo    *PhotoUpload
}

// LoginResult 登录结果，userId 是对外派生标识
type LoginResult struct {
	UserID   string
	Name     string
	Token    string
	PhotoURL string
	SignedIn bool
}

// RegisterResult 注册结果。Login 仅在自动登录开启且成功时非 nil。
type RegisterResult struct {
	Message string
	Login   *LoginResult
}

// ProfileResult 个人资料。缺失字段规范化为空字符串。
type ProfileResult struct {
	Name     string
	PhotoURL string
}

// AuthService 编排身份提供方与对象存储的调用，并做结果规范化
type AuthService struct {
	identity IdentityProvider
	storage  StorageProvider

	photoFailureMode config.PhotoFailureMode
	autoSignin       bool

	logger  log.Logger
	metrics *metrics.AuthMetrics
}

// NewAuthService 创建认证服务。provider 依赖在进程启动时注入且只读。
func NewAuthService(identity IdentityProvider, storage StorageProvider, cfg *config.Config, logger log.Logger) *AuthService {
	return &AuthService{
		identity:         identity,
		storage:          storage,
		photoFailureMode: cfg.PhotoFailureMode,
		autoSignin:       cfg.RegisterAutoSignin,
		logger:           logger,
		metrics:          metrics.DefaultAuthMetrics,
	}
}

// FormatUserID 把提供方内部标识派生为对外 userId。
// 规则固定: "user-" + 内部标识前 10 个字符（不足 10 个则取全部）。
func FormatUserID(providerID string) string {
	if len(providerID) > 10 {
		providerID = providerID[:10]
	}
	return "user-" + providerID
}

// Register 注册新账号。
// 调用顺序: 查重 -> 头像校验/上传 -> 创建账号 -> (可选)自动登录。
// 头像校验失败时账号不会被创建，重复提交同一请求可以成功。
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	start := time.Now()

	result, err := s.register(ctx, params)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.IncRegistration(outcome)
	s.metrics.ObserveOperation("register", outcome, time.Since(start))

	return result, err
}

func (s *AuthService) register(ctx context.Context, params RegisterParams) (*RegisterResult, error) {
	// 1. 查重。"没找到"是新用户的正常路径。
	_, found, err := s.identity.FindByEmail(ctx, params.Email)
	if err != nil {
		return nil, err
	}
	if found {
		s.logger.InfoContext(ctx, "注册被拒绝: 邮箱已存在")
		return nil, xerrors.NewDuplicateAccountError(params.Email)
	}

	// 2. 头像处理。校验必须在任何上传之前完成。
	photoURL := ""
	photoDegraded := false
	if params.Photo != nil {
		ext, verr := validatePhoto(params.Photo)
		if verr != nil {
			s.metrics.IncPhotoUpload("rejected")
			return nil, verr
		}

		key := photoKeyPrefix + uuid.NewString() + ext
		url, uerr := s.storage.Upload(ctx, key, params.Photo.Data, params.Photo.ContentType)
		if uerr != nil {
			s.metrics.IncPhotoUpload("failed")
			if s.photoFailureMode == config.PhotoFailureAbort {
				// 中止策略: 此时账号尚未创建，无需回滚
				return nil, uerr
			}
			// 降级策略: 继续注册，响应文案提示照片未保存
			s.logger.WarnContext(ctx, "头像上传失败，降级为无头像注册", "error", uerr)
			photoDegraded = true
		} else {
			s.metrics.IncPhotoUpload("success")
			photoURL = url
		}
	}

	// 3. 创建账号
	acct, err := s.identity.CreateAccount(ctx, CreateAccountParams{
		Email:       params.Email,
		Password:    params.Password,
		DisplayName: params.Name,
		PhotoURL:    photoURL,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "账号创建成功", "provider_id", acct.ID)

	message := msgUserCreated
	if photoDegraded {
		message = msgUserCreatedNoPhoto
	}
	result := &RegisterResult{Message: message}

	// 4. 自动登录（可配置）。失败不影响注册结果。
	if s.autoSignin {
		result.Login = s.signinAfterRegister(ctx, acct, params, photoURL)
	}

	return result, nil
}

// signinAfterRegister 注册后立即签发令牌，免去客户端的二次往返。
// 优先走密码验证（与登录同一信任级别）；提供方侧写入尚未可见时
// 回退到管理端自定义令牌。两者都失败只记日志。
func (s *AuthService) signinAfterRegister(ctx context.Context, acct *Account, params RegisterParams, photoURL string) *LoginResult {
	token := ""

	grant, err := s.identity.VerifyPassword(ctx, params.Email, params.Password)
	if err == nil {
		token = grant.IDToken
	} else {
		s.logger.WarnContext(ctx, "注册后密码验证失败，回退到自定义令牌", "error", err)
		custom, cerr := s.identity.CreateCustomToken(ctx, acct.ID)
		if cerr != nil {
			s.logger.WarnContext(ctx, "注册后签发自定义令牌失败", "error", cerr)
			return nil
		}
		token = custom
	}

	return &LoginResult{
		UserID:   FormatUserID(acct.ID),
		Name:     params.Name,
		Token:    token,
		PhotoURL: photoURL,
		SignedIn: true,
	}
}

// Login 密码登录。
// 凭据必须经过提供方的密码验证端点，不允许只按邮箱查账号。
// 所有凭据类失败（密码错/邮箱不存在/账号停用）对外是同一个结果。
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	start := time.Now()

	result, err := s.login(ctx, email, password)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.ObserveOperation("login", outcome, time.Since(start))

	return result, err
}

func (s *AuthService) login(ctx context.Context, email, password string) (*LoginResult, error) {
	// 1. 密码验证。提供方的各种拒绝原因在 client 层已折叠为 InvalidCredentials。
	grant, err := s.identity.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}

	// 2. 管理端查询资料字段
	acct, err := s.identity.GetAccount(ctx, grant.SubjectID)
	if err != nil {
		// 发放凭据和查询之间账号被删: 登录只有 200/401/500 三种出口，
		// 而且不能通过 404 泄露账号是否存在
		if appErr := xerrors.AsAppError(err); appErr.Code == xerrors.CodeAccountNotFound {
			return nil, xerrors.NewInvalidCredentialsError("account vanished after grant")
		}
		return nil, err
	}

	// 3. 返回密码验证签发的令牌，不另造管理端令牌
	return &LoginResult{
		UserID:   FormatUserID(acct.ID),
		Name:     acct.DisplayName,
		Token:    grant.IDToken,
		PhotoURL: acct.PhotoURL,
		SignedIn: true,
	}, nil
}

// GetProfile 按已验证的令牌主体查询资料。
// 令牌验证由上游中间件完成，这里只拿 subjectID 查账号。
func (s *AuthService) GetProfile(ctx context.Context, subjectID string) (*ProfileResult, error) {
	start := time.Now()

	result, err := s.getProfile(ctx, subjectID)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.ObserveOperation("profile", outcome, time.Since(start))

	return result, err
}

func (s *AuthService) getProfile(ctx context.Context, subjectID string) (*ProfileResult, error) {
	acct, err := s.identity.GetAccount(ctx, subjectID)
	if err != nil {
		// 令牌验过但账号已不存在: 对调用方来说这个令牌已经无效
		if appErr := xerrors.AsAppError(err); appErr.Code == xerrors.CodeAccountNotFound {
			return nil, xerrors.NewInvalidTokenError("account no longer exists")
		}
		return nil, err
	}

	return &ProfileResult{
		Name:     acct.DisplayName,
		PhotoURL: acct.PhotoURL,
	}, nil
}

// validatePhoto 校验头像载荷。必须在任何上传调用之前执行。
// 返回规范化后的小写扩展名（含点）。
func validatePhoto(photo *PhotoUpload) (string, *xerrors.AppError) {
	if len(photo.Data) > maxPhotoBytes {
		return "", xerrors.NewPhotoTooLargeError(len(photo.Data))
	}

	ext := strings.ToLower(filepath.Ext(photo.Filename))
	if ext != ".jpg" && ext != ".png" {
		return "", xerrors.NewPhotoBadExtensionError(ext)
	}

	return ext, nil
}
