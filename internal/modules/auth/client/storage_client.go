// File: internal/modules/auth/client/storage_client.go
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"identity-gateway/internal/pkg/config"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/metrics"
	"identity-gateway/internal/pkg/xerrors"
)

// StorageClient 对象存储 REST 客户端，实现 service.StorageProvider。
// 上传即公开：返回的 URL 无需签名即可访问。
type StorageClient struct {
	baseURL   string
	bucket    string
	publicURL string
	timeout   time.Duration

	httpClient *http.Client
	logger     log.Logger
	metrics    *metrics.AuthMetrics
}

// NewStorageClient 创建对象存储客户端
func NewStorageClient(cfg *config.Config, logger log.Logger) *StorageClient {
	return &StorageClient{
		baseURL:    cfg.StorageBaseURL,
		bucket:     cfg.StorageBucket,
		publicURL:  cfg.StoragePublicURL,
		timeout:    cfg.StorageTimeout,
		httpClient: &http.Client{},
		logger:     logger,
		metrics:    metrics.DefaultAuthMetrics,
	}
}

// SetHTTPClient 替换底层 HTTP 客户端（测试用）
func (c *StorageClient) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Upload 上传对象并返回公开访问 URL
func (c *StorageClient) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	start := time.Now()
	publicURL, appErr := c.doUpload(ctx, key, data, contentType)

	// 接口统一走普通 error，避免非 nil 接口包着 nil 指针
	result := "ok"
	var callErr error
	if appErr != nil {
		result = "error"
		callErr = appErr
	}
	c.metrics.IncProviderCall("storage", "Upload", result)
	log.LogProviderCall(ctx, "storage", "Upload", time.Since(start).Milliseconds(), callErr)

	if callErr != nil {
		return "", callErr
	}
	return publicURL, nil
}

func (c *StorageClient) doUpload(ctx context.Context, key string, data []byte, contentType string) (string, *xerrors.AppError) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	uploadURL := fmt.Sprintf("%s/b/%s/o?name=%s", c.baseURL, c.bucket, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", xerrors.NewStorageError("Upload", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", xerrors.NewStorageError("Upload", err).
			WithMetadata("key", key)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.WarnContext(ctx, "对象存储返回错误",
			"status_code", resp.StatusCode,
			"key", key,
			"body", string(body),
		)
		return "", xerrors.NewStorageError("Upload", fmt.Errorf("storage returned %d", resp.StatusCode)).
			WithMetadata("status_code", resp.StatusCode).
			WithMetadata("key", key)
	}

	c.logger.InfoContext(ctx, "对象上传成功", "key", key, "size_bytes", len(data))
	return c.objectPublicURL(key), nil
}

// objectPublicURL 拼接对象的公开访问 URL
func (c *StorageClient) objectPublicURL(key string) string {
	base := strings.TrimRight(c.publicURL, "/")
	return fmt.Sprintf("%s/%s/%s", base, c.bucket, key)
}
