// File: internal/modules/auth/client/custom_token.go
package client

import (
	"crypto/rsa"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// customTokenAudience 自定义令牌的固定受众，提供方侧按此校验
const customTokenAudience = "identity-gateway/custom-token"

// customTokenTTL 自定义令牌有效期
const customTokenTTL = time.Hour

// CustomTokenSigner 用服务账号私钥签发自定义令牌
type CustomTokenSigner struct {
	serviceAccountEmail string
	privateKey          *rsa.PrivateKey
}

// NewCustomTokenSigner 从 PEM 私钥文件创建签名器
func NewCustomTokenSigner(serviceAccountEmail, keyPath string) (*CustomTokenSigner, error) {
	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("读取服务账号私钥失败: %w", err)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("解析服务账号私钥失败: %w", err)
	}

	return &CustomTokenSigner{
		serviceAccountEmail: serviceAccountEmail,
		privateKey:          key,
	}, nil
}

// Sign 为指定用户签发自定义令牌 (RS256)
func (s *CustomTokenSigner) Sign(subjectID string) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"iss": s.serviceAccountEmail,
		"sub": s.serviceAccountEmail,
		"aud": customTokenAudience,
		"uid": subjectID,
		"iat": now.Unix(),
		"exp": now.Add(customTokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("签发自定义令牌失败: %w", err)
	}
	return signed, nil
}
