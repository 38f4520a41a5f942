// File: internal/modules/auth/service/provider.go
package service

import (
	"context"
	"time"
)

// Account 身份提供方侧的账号视图
type Account struct {
	ID          string // 提供方内部唯一标识
	Email       string
	DisplayName string
	PhotoURL    string
	Disabled    bool
}

// CreateAccountParams 创建账号参数
type CreateAccountParams struct {
	Email       string
	Password    string
	DisplayName string
	PhotoURL    string
}

// UpdateAccountParams 更新账号参数。nil 字段表示不修改。
type UpdateAccountParams struct {
	DisplayName *string
	PhotoURL    *string
}

// PasswordGrant 密码验证成功后提供方签发的凭据
type PasswordGrant struct {
	SubjectID    string // 提供方内部唯一标识
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// IdentityProvider 身份提供方抽象。
// FindByEmail 用三值返回区分"没找到"和"查询失败"：
// 没找到对注册流程来说是正常路径，不是错误。
type IdentityProvider interface {
	FindByEmail(ctx context.Context, email string) (acct *Account, found bool, err error)
	CreateAccount(ctx context.Context, params CreateAccountParams) (*Account, error)
	GetAccount(ctx context.Context, id string) (*Account, error)
	UpdateAccount(ctx context.Context, id string, params UpdateAccountParams) error
	VerifyPassword(ctx context.Context, email, password string) (*PasswordGrant, error)
	CreateCustomToken(ctx context.Context, id string) (string, error)
}

// StorageProvider 对象存储抽象
type StorageProvider interface {
	// Upload 上传对象并返回可公开访问的 URL
	Upload(ctx context.Context, key string, data []byte, contentType string) (publicURL string, err error)
}
