package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
)

// PhotoFailureMode 注册时照片上传失败的处理策略
type PhotoFailureMode string

const (
	// PhotoFailureDegrade 降级：照片上传失败仍然创建账号，响应文案提示照片未保存
	PhotoFailureDegrade PhotoFailureMode = "degrade"
	// PhotoFailureAbort 中止：照片上传失败则整个注册失败，不创建账号
	PhotoFailureAbort PhotoFailureMode = "abort"
)

// Config 网关全部运行配置，启动时一次性从环境变量加载
type Config struct {
	// HTTP 服务
	Port            string
	ShutdownTimeout time.Duration

	// 身份提供方
	IdentityBaseURL  string // REST 登录/凭据接口
	IdentityAdminURL string // 账号管理接口
	IdentityAPIKey   string
	IdentityCertsURL string // ID Token 验签公钥(JWKS 风格证书表)
	IdentityIssuer   string // ID Token 预期签发方
	IdentityAudience string // ID Token 预期受众
	ProviderTimeout  time.Duration

	// 自定义令牌签发(服务账号私钥)
	ServiceAccountEmail   string
	ServiceAccountKeyPath string

	// 对象存储
	StorageBaseURL   string // 上传端点
	StorageBucket    string
	StoragePublicURL string // 公开访问前缀
	StorageTimeout   time.Duration

	// 业务开关
	PhotoFailureMode   PhotoFailureMode
	RegisterAutoSignin bool

	// 限流
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load 加载配置。先尝试读取 .env（本地开发用，不存在则忽略），再读环境变量。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            GetEnvOrDefault("PORT", "8080"),
		ShutdownTimeout: GetDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),

		IdentityBaseURL:  MustGetEnv("IDENTITY_BASE_URL"),
		IdentityAdminURL: GetEnvOrDefault("IDENTITY_ADMIN_URL", ""),
		IdentityAPIKey:   MustGetEnv("IDENTITY_API_KEY"),
		IdentityCertsURL: GetEnvOrDefault("IDENTITY_CERTS_URL", ""),
		IdentityIssuer:   GetEnvOrDefault("IDENTITY_ISSUER", ""),
		IdentityAudience: GetEnvOrDefault("IDENTITY_AUDIENCE", ""),
		ProviderTimeout:  GetDurationOrDefault("PROVIDER_TIMEOUT", 5*time.Second),

		ServiceAccountEmail:   GetEnvOrDefault("SERVICE_ACCOUNT_EMAIL", ""),
		ServiceAccountKeyPath: GetEnvOrDefault("SERVICE_ACCOUNT_KEY_PATH", ""),

		StorageBaseURL:   GetEnvOrDefault("STORAGE_BASE_URL", ""),
		StorageBucket:    GetEnvOrDefault("STORAGE_BUCKET", ""),
		StoragePublicURL: GetEnvOrDefault("STORAGE_PUBLIC_URL", ""),
		StorageTimeout:   GetDurationOrDefault("STORAGE_TIMEOUT", 10*time.Second),

		PhotoFailureMode:   PhotoFailureMode(GetEnvOrDefault("PHOTO_FAILURE_MODE", string(PhotoFailureDegrade))),
		RegisterAutoSignin: GetBoolOrDefault("REGISTER_AUTO_SIGNIN", true),

		RateLimitPerSecond: 20,
		RateLimitBurst:     40,
	}

	// IdentityAdminURL 缺省复用 IdentityBaseURL
	if cfg.IdentityAdminURL == "" {
		cfg.IdentityAdminURL = cfg.IdentityBaseURL
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.PhotoFailureMode {
	case PhotoFailureDegrade, PhotoFailureAbort:
	default:
		return fmt.Errorf("PHOTO_FAILURE_MODE 取值非法: %q (允许 degrade/abort)", c.PhotoFailureMode)
	}
	return nil
}

// ForLog 返回可安全打印的配置视图
func (c *Config) ForLog() map[string]any {
	return SanitizeConfigForLog(map[string]any{
		"port":                 c.Port,
		"identity_base_url":    c.IdentityBaseURL,
		"identity_admin_url":   c.IdentityAdminURL,
		"identity_api_key":     c.IdentityAPIKey,
		"storage_bucket":       c.StorageBucket,
		"photo_failure_mode":   string(c.PhotoFailureMode),
		"register_auto_signin": c.RegisterAutoSignin,
	})
}
