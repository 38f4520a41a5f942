// File: cmd/gateway/main.go
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	custommiddleware "identity-gateway/internal/middleware"
	"identity-gateway/internal/modules/auth/client"
	"identity-gateway/internal/modules/auth/handler"
	"identity-gateway/internal/modules/auth/service"
	"identity-gateway/internal/pkg/config"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/metrics"
	"identity-gateway/internal/pkg/response"
	"identity-gateway/internal/pkg/security"
	"identity-gateway/internal/pkg/trace"
	"identity-gateway/internal/pkg/validator"
)

func main() {
	// --- 1. 初始化 ---
	// 在程序的最开始初始化日志系统
	environment := config.GetEnvOrDefault("ENVIRONMENT", "development")
	logLevel := slog.LevelDebug
	if environment == "production" {
		logLevel = slog.LevelInfo
	}
	log.Init(logLevel, environment)

	cfg, err := config.Load()
	if err != nil {
		log.Error("配置加载失败", err)
		os.Exit(1)
	}
	log.Info("配置加载完成", "config", cfg.ForLog())

	logger := log.GetLogger()

	// --- 2. 依赖注入 (DI) ---
	// 服务账号签名器是可选的：没配置时自定义令牌回退路径不可用
	var signer *client.CustomTokenSigner
	if cfg.ServiceAccountKeyPath != "" {
		signer, err = client.NewCustomTokenSigner(cfg.ServiceAccountEmail, cfg.ServiceAccountKeyPath)
		if err != nil {
			log.Error("服务账号私钥加载失败", err)
			os.Exit(1)
		}
	}

	identityClient := client.NewIdentityClient(cfg, signer, logger)
	storageClient := client.NewStorageClient(cfg, logger)
	tokenVerifier := client.NewIDTokenVerifier(cfg, logger)

	authService := service.NewAuthService(identityClient, storageClient, cfg, logger)

	respWriter := response.NewResponseHandler(logger, "identity-gateway")
	authHandler := handler.NewAuthHandler(authService, respWriter, logger)

	// --- 3. 路由和中间件 ---
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	// TraceID 在最外层，这样内层的日志才能带上 trace_id
	e.Use(trace.Middleware())
	e.Use(custommiddleware.RecoveryMiddleware(respWriter, logger))
	e.Use(custommiddleware.ErrorMiddleware(respWriter, logger))
	e.Use(custommiddleware.LoggingMiddleware(logger))
	e.Use(custommiddleware.MetricsMiddleware(metrics.DefaultHTTPMetrics))
	e.Use(custommiddleware.RateLimitMiddleware(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	e.Use(security.CORSMiddleware())
	e.Use(security.SecurityHeadersMiddleware())

	authMW := custommiddleware.AuthMiddleware(tokenVerifier, respWriter, logger)
	handler.RegisterRoutes(e, authHandler, authMW)

	e.GET("/metrics", metrics.EchoHandler())

	// --- 4. 启动与优雅停机 ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Identity gateway is starting...", "address", ":"+cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		log.Info("收到停止信号，开始优雅停机")
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Identity gateway exited with error", err)
		os.Exit(1)
	}
	log.Info("Identity gateway stopped")
}
