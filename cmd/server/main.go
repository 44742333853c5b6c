// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Corphon/ShortsStudio/internal/app"
	"github.com/Corphon/ShortsStudio/internal/config"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

func main() {
	logger := utils.GetLogger()
	defer logger.Sync()

	// 1. 加载配置，缺少 API Key 时直接退出
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			logger.Fatal("Gemini API key is required", map[string]interface{}{"error": err})
		}
		logger.Fatal("Failed to load configuration", map[string]interface{}{"error": err})
	}
	if cfg.DebugMode {
		logger.SetLogLevel(utils.DEBUG)
	}

	// 2. 日志文件
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "server.log")); err != nil {
		logger.Warn("Log file unavailable, console only", map[string]interface{}{"error": err})
	}

	// 3. 组装服务
	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize application", map[string]interface{}{"error": err})
	}

	logger.Info("ShortsStudio server starting", map[string]interface{}{
		"port":       cfg.Port,
		"debug_mode": cfg.DebugMode,
	})

	setupGracefulShutdown(application, logger)
}

// 优雅关闭函数
func setupGracefulShutdown(application *app.App, logger *utils.Logger) {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- application.Serve()
	}()

	// 等待中断信号以进行优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		application.Close()
		if err != nil {
			logger.Fatal("HTTP server failed", map[string]interface{}{"error": err})
		}
		return
	case sig := <-quit:
		logger.Info("Shutting down server", map[string]interface{}{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shut down", map[string]interface{}{"error": err})
		return
	}
	logger.Info("Server stopped gracefully", nil)
}
