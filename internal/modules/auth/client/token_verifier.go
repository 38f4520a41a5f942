// File: internal/modules/auth/client/token_verifier.go
package client

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"identity-gateway/internal/pkg/config"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/xerrors"
)

// certCacheTTL 公钥证书表的缓存时长。
// 提供方会轮换签名密钥，按 kid 命中不到时也会强制刷新。
const certCacheTTL = time.Hour

// IDTokenVerifier 验证提供方签发的 ID 令牌 (RS256)。
// 公钥证书表从提供方的 certs 端点拉取并缓存。
// 实现 middleware.TokenVerifier。
type IDTokenVerifier struct {
	certsURL string
	issuer   string
	audience string

	httpClient *http.Client
	logger     log.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// NewIDTokenVerifier 创建 ID 令牌验证器
func NewIDTokenVerifier(cfg *config.Config, logger log.Logger) *IDTokenVerifier {
	return &IDTokenVerifier{
		certsURL:   cfg.IdentityCertsURL,
		issuer:     cfg.IdentityIssuer,
		audience:   cfg.IdentityAudience,
		httpClient: &http.Client{Timeout: cfg.ProviderTimeout},
		logger:     logger,
	}
}

// Verify 验证令牌并返回其主体标识。
// 过期与无效是两种不同的失败原因，分开上报。
func (v *IDTokenVerifier) Verify(ctx context.Context, tokenString string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.publicKey(ctx, kid)
	}, opts...)

	if err != nil {
		// 拿不到验签公钥是提供方故障，不是令牌的问题
		var appErr *xerrors.AppError
		if errors.As(err, &appErr) &&
			(appErr.Code == xerrors.CodeProviderTimeout || appErr.Code == xerrors.CodeProviderError) {
			v.logger.ErrorContext(ctx, "签名证书不可用，无法验证令牌", "error", err)
			return "", appErr
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			v.logger.InfoContext(ctx, "令牌已过期")
			return "", xerrors.NewTokenExpiredError()
		}
		v.logger.WarnContext(ctx, "令牌验证失败", "error", err)
		return "", xerrors.NewInvalidTokenError(err.Error())
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", xerrors.NewInvalidTokenError("missing subject claim")
	}
	return subject, nil
}

// publicKey 按 kid 取公钥，缓存过期或 kid 未知时刷新证书表
func (v *IDTokenVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.fetchedAt) < certCacheTTL
	v.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if err := v.refreshKeys(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key id %q", kid)
	}
	return key, nil
}

// refreshKeys 拉取并解析提供方的证书表 (kid -> PEM X.509 证书)。
// 证书端点不可用属于提供方故障，错误带上对应的错误码向上传递。
func (v *IDTokenVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return xerrors.NewProviderError("FetchSigningCerts", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return xerrors.NewProviderTimeoutError("FetchSigningCerts", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return xerrors.NewProviderError("FetchSigningCerts",
			fmt.Errorf("签名证书端点返回 %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.NewProviderError("FetchSigningCerts", err)
	}

	var certs map[string]string
	if err := json.Unmarshal(body, &certs); err != nil {
		return xerrors.NewProviderError("FetchSigningCerts",
			fmt.Errorf("解析签名证书表失败: %w", err))
	}

	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, certPEM := range certs {
		key, err := parseRSAPublicKeyFromCert([]byte(certPEM))
		if err != nil {
			v.logger.WarnContext(ctx, "跳过无法解析的签名证书", "kid", kid, "error", err)
			continue
		}
		keys[kid] = key
	}
	if len(keys) == 0 {
		return xerrors.NewProviderError("FetchSigningCerts", errors.New("签名证书表为空"))
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()

	v.logger.InfoContext(ctx, "签名证书表已刷新", "key_count", len(keys))
	return nil
}

// parseRSAPublicKeyFromCert 从 PEM 编码的 X.509 证书中取出 RSA 公钥
func parseRSAPublicKeyFromCert(certPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, errors.New("not a PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, err
	}

	key, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("certificate does not carry an RSA key")
	}
	return key, nil
}
