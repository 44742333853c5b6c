// internal/app/app.go
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Corphon/ShortsStudio/internal/api"
	"github.com/Corphon/ShortsStudio/internal/config"
	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
	"github.com/Corphon/ShortsStudio/internal/llm"
	"github.com/Corphon/ShortsStudio/internal/services"
	"github.com/Corphon/ShortsStudio/internal/utils"

	// 注册 Gemini 提供者
	_ "github.com/Corphon/ShortsStudio/internal/llm/providers/google"
)

// ShutdownTimeout 优雅关闭的等待时间
const ShutdownTimeout = 30 * time.Second

// App 持有服务进程的全部组件
type App struct {
	logger   *utils.Logger
	provider llm.Provider
	hub      *api.WebSocketManager
	server   *http.Server

	closeOnce sync.Once
}

// BuildProvider 按配置创建并初始化模型提供者
func BuildProvider(cfg *config.Config) (llm.Provider, error) {
	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig())
	if err != nil {
		return nil, apperrors.WrapError(err, "初始化LLM提供者失败", apperrors.ErrorTypeUpstream)
	}
	return provider, nil
}

// BuildGateway 创建网关，供服务端和命令行共用
func BuildGateway(cfg *config.Config, provider llm.Provider, logger *utils.Logger, metrics *utils.MetricsCollector) (*services.Gateway, error) {
	return services.NewGateway(provider, services.GatewayOptions{
		ScriptModel:       cfg.ScriptModel,
		ImageModel:        cfg.ImageModel,
		ScriptTemperature: cfg.ScriptTemperature,
		Metrics:           metrics,
		Logger:            logger,
	})
}

// New 按配置创建应用
func New(cfg *config.Config, logger *utils.Logger) (*App, error) {
	provider, err := BuildProvider(cfg)
	if err != nil {
		return nil, err
	}
	app, err := NewWithProvider(cfg, logger, provider)
	if err != nil {
		provider.Close()
		return nil, err
	}
	return app, nil
}

// NewWithProvider 使用已初始化的提供者创建应用
func NewWithProvider(cfg *config.Config, logger *utils.Logger, provider llm.Provider) (*App, error) {
	if logger == nil {
		logger = utils.GetLogger()
	}
	metrics := utils.NewMetricsCollector()

	gateway, err := BuildGateway(cfg, provider, logger, metrics)
	if err != nil {
		return nil, err
	}

	hub := api.NewWebSocketManager(logger)
	sessions := services.NewSessionService(gateway, services.SessionServiceOptions{
		TTL:       cfg.SessionTTL,
		Publisher: hub,
		Metrics:   metrics,
		Logger:    logger,
	})

	handler := api.NewHandler(sessions, gateway, hub, metrics, logger, api.HandlerOptions{
		MaxUploadBytes: cfg.MaxUploadBytes,
		AllowedOrigins: cfg.CORSOrigins,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
		StaticDir:   cfg.StaticDir,
		DebugMode:   cfg.DebugMode,
	})

	hub.Start()
	logger.Info("Application initialized", map[string]interface{}{
		"provider":     provider.GetName(),
		"script_model": cfg.ScriptModel,
		"image_model":  cfg.ImageModel,
		"session_ttl":  cfg.SessionTTL.String(),
	})

	return &App{
		logger:   logger,
		provider: provider,
		hub:      hub,
		server: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Serve 在配置的端口上提供服务，直到 Shutdown 被调用
func (a *App) Serve() error {
	l, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return err
	}
	return a.ServeListener(l)
}

// ServeListener 在已有的监听器上提供服务
func (a *App) ServeListener(l net.Listener) error {
	a.logger.Info("HTTP server listening", map[string]interface{}{"addr": l.Addr().String()})
	if err := a.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止接收新请求，等待进行中的请求结束后释放资源
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if closeErr := a.Close(); err == nil {
		err = closeErr
	}
	return err
}

// Close 释放推送连接和模型客户端，可重复调用
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.hub.Stop()
		err = a.provider.Close()
		a.logger.Info("Application closed", nil)
	})
	return err
}
