// internal/api/router.go
package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// RouterOptions 路由配置
type RouterOptions struct {
	CORSOrigins []string
	StaticDir   string
	DebugMode   bool
}

// NewRouter 配置HTTP路由
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	if opts.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogMiddleware(h.Logger, h.Metrics))
	r.Use(CORSMiddleware(opts.CORSOrigins))

	// 前端静态文件，目录不存在时跳过
	if opts.StaticDir != "" {
		if info, err := os.Stat(opts.StaticDir); err == nil && info.IsDir() {
			r.Static("/static", opts.StaticDir)
			r.GET("/", func(c *gin.Context) {
				c.Redirect(http.StatusFound, "/static/")
			})
		}
	}

	// WebSocket 支持
	r.GET("/ws/sessions/:id", h.SessionWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/languages", h.Languages)
		api.GET("/metrics", h.GetMetrics)

		// 会话
		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.CreateSession)
			sessions.GET("/:id", h.GetSession)
			sessions.DELETE("/:id", h.DeleteSession)
			sessions.POST("/:id/script", h.GenerateScript)
			sessions.POST("/:id/segments/:segment_id/image", h.GenerateSegmentImage)
			sessions.POST("/:id/images", h.GenerateAllImages)
			sessions.POST("/:id/edit", h.EditSessionImage)
		}

		// 无状态图片接口
		images := api.Group("/images")
		{
			images.POST("/generate", h.GenerateImage)
			images.POST("/edit", h.EditImage)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		h.Response.NotFound(c, ErrorNotFound, "route not found")
	})

	return r
}
