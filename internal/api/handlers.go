// internal/api/handlers.go
package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
	"github.com/Corphon/ShortsStudio/internal/models"
	"github.com/Corphon/ShortsStudio/internal/services"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

// multipart 表单除文件外的额外开销
const multipartOverhead = 1 << 20

// Handler 处理API请求
type Handler struct {
	Sessions *services.SessionService // 会话服务
	Gateway  *services.Gateway        // 无状态生成
	Hub      *WebSocketManager        // 会话事件推送
	Metrics  *utils.MetricsCollector
	Logger   *utils.Logger
	Response *ResponseHelper // 响应助手

	maxUploadBytes int64
	upgrader       websocket.Upgrader
}

// HandlerOptions 处理器配置
type HandlerOptions struct {
	MaxUploadBytes int64
	AllowedOrigins []string
}

// ScriptGenerationRequest 生成脚本的请求体
type ScriptGenerationRequest struct {
	Topic         string   `json:"topic"`
	Language      string   `json:"language"`
	TalkingPoints []string `json:"talking_points"`
}

// ImageGenerationRequest 无状态生成图片的请求体
type ImageGenerationRequest struct {
	Prompt string `json:"prompt"`
}

// ImageResult 无状态图片接口的返回值
type ImageResult struct {
	ImageURL string `json:"image_url"`
	MIMEType string `json:"mime_type"`
}

// segmentView 段落加上旁白的高亮切分
type segmentView struct {
	models.ScriptSegment
	Highlights []services.TextSpan `json:"highlights"`
}

// sessionView 返回给前端的会话视图
type sessionView struct {
	*models.Session
	Segments []segmentView `json:"segments"`
}

// NewHandler 创建API处理器
func NewHandler(
	sessions *services.SessionService,
	gateway *services.Gateway,
	hub *WebSocketManager,
	metrics *utils.MetricsCollector,
	logger *utils.Logger,
	opts HandlerOptions) *Handler {

	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if logger == nil {
		logger = utils.GetLogger()
	}
	if metrics == nil {
		metrics = utils.NewMetricsCollector()
	}

	return &Handler{
		Sessions:       sessions,
		Gateway:        gateway,
		Hub:            hub,
		Metrics:        metrics,
		Logger:         logger,
		Response:       NewResponseHelper(),
		maxUploadBytes: opts.MaxUploadBytes,
		upgrader:       newUpgrader(opts.AllowedOrigins),
	}
}

func newSessionView(session *models.Session) sessionView {
	view := sessionView{
		Session:  session,
		Segments: make([]segmentView, 0, len(session.Segments)),
	}
	for _, seg := range session.Segments {
		view.Segments = append(view.Segments, segmentView{
			ScriptSegment: seg,
			Highlights:    services.PlanHighlights(seg.NarrationText, seg.Citations),
		})
	}
	return view
}

// ========================================
// 系统信息
// ========================================

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	// 计数不含当前请求
	h.Response.Success(c, gin.H{
		"status":          "ok",
		"ready":           true,
		"provider":        h.Gateway.ProviderName(),
		"time":            time.Now().Format(time.RFC3339),
		"active_sessions": h.Metrics.GetGaugeValue("sessions_active"),
		"requests_served": h.Metrics.GetCounterValue("api_requests_total"),
	})
}

// Languages 支持的脚本语言
func (h *Handler) Languages(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"default":   models.DefaultLanguage,
		"languages": models.SupportedLanguages,
	})
}

// GetMetrics 指标快照
func (h *Handler) GetMetrics(c *gin.Context) {
	snapshot := h.Metrics.GetMetrics()
	h.Response.Success(c, gin.H{
		"metrics":   snapshot,
		"websocket": h.Hub.GetStatus(),
	})
}

// ========================================
// 会话
// ========================================

// CreateSession 创建新的创作会话
func (h *Handler) CreateSession(c *gin.Context) {
	session := h.Sessions.CreateSession()
	h.Response.Created(c, newSessionView(session))
}

// GetSession 获取会话快照
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.Sessions.GetSession(c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, newSessionView(session))
}

// DeleteSession 删除会话
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.Sessions.DeleteSession(c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, nil, "session deleted")
}

// GenerateScript 为会话生成新脚本，旧脚本被整体替换
func (h *Handler) GenerateScript(c *gin.Context) {
	var req ScriptGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body")
		return
	}
	if req.Language != "" && !models.IsSupportedLanguage(req.Language) {
		h.Response.Error(c, http.StatusBadRequest, ErrorLanguageUnsupported, "unsupported language", req.Language)
		return
	}

	session, err := h.Sessions.GenerateScript(c.Request.Context(), c.Param("id"), services.ScriptRequest{
		Topic:         req.Topic,
		Language:      req.Language,
		TalkingPoints: req.TalkingPoints,
	})
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, newSessionView(session))
}

// GenerateSegmentImage 为单个段落生成配图
func (h *Handler) GenerateSegmentImage(c *gin.Context) {
	segment, err := h.Sessions.GenerateSegmentImage(c.Request.Context(), c.Param("id"), c.Param("segment_id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, segmentView{
		ScriptSegment: *segment,
		Highlights:    services.PlanHighlights(segment.NarrationText, segment.Citations),
	})
}

// GenerateAllImages 为所有缺少配图的段落生成图片
func (h *Handler) GenerateAllImages(c *gin.Context) {
	results, err := h.Sessions.GenerateAllImages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"results": results})
}

// EditSessionImage 上传图片和编辑指令，结果记录在会话中
func (h *Handler) EditSessionImage(c *gin.Context) {
	instruction, data, mimeType, ok := h.readEditForm(c)
	if !ok {
		return
	}

	attempt, err := h.Sessions.EditImage(c.Request.Context(), c.Param("id"), instruction, data, mimeType)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, attempt)
}

// ========================================
// 无状态接口
// ========================================

// GenerateImage 按描述直接生成图片
func (h *Handler) GenerateImage(c *gin.Context) {
	var req ImageGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid request body")
		return
	}

	image, err := h.Gateway.GenerateImage(c.Request.Context(), req.Prompt)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, ImageResult{ImageURL: image.DataURI(), MIMEType: image.MIMEType})
}

// EditImage 按指令编辑上传的图片，不记录会话
func (h *Handler) EditImage(c *gin.Context) {
	instruction, data, mimeType, ok := h.readEditForm(c)
	if !ok {
		return
	}

	image, err := h.Gateway.EditImage(c.Request.Context(), instruction, data, mimeType)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, ImageResult{ImageURL: image.DataURI(), MIMEType: image.MIMEType})
}

// readEditForm 读取 multipart 表单中的 image 和 instruction
// 缺少图片时返回空数据，由编辑流程给出统一的校验提示
func (h *Handler) readEditForm(c *gin.Context) (instruction string, data []byte, mimeType string, ok bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	file, err := c.FormFile("image")
	switch {
	case err == nil:
	case errors.Is(err, http.ErrMissingFile):
		return c.PostForm("instruction"), nil, "", true
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Response.Error(c, http.StatusRequestEntityTooLarge, ErrorFileTooLarge, "uploaded image is too large")
			return "", nil, "", false
		}
		h.Response.BadRequest(c, "invalid multipart form")
		return "", nil, "", false
	}

	if file.Size > h.maxUploadBytes {
		h.Response.Error(c, http.StatusRequestEntityTooLarge, ErrorFileTooLarge, "uploaded image is too large")
		return "", nil, "", false
	}

	f, err := file.Open()
	if err != nil {
		h.Response.FromError(c, apperrors.WrapError(err, "failed to open upload", apperrors.ErrorTypeError))
		return "", nil, "", false
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, h.maxUploadBytes))
	if err != nil {
		h.Response.FromError(c, apperrors.WrapError(err, "failed to read upload", apperrors.ErrorTypeError))
		return "", nil, "", false
	}

	return c.PostForm("instruction"), data, file.Header.Get("Content-Type"), true
}
