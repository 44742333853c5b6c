// internal/services/gateway.go
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	apperrors "github.com/Corphon/ShortsStudio/internal/errors"
	"github.com/Corphon/ShortsStudio/internal/llm"
	"github.com/Corphon/ShortsStudio/internal/models"
	"github.com/Corphon/ShortsStudio/internal/utils"
)

// 用户输入缺失时的提示
const (
	msgTopicRequired      = "Please enter a topic for your script."
	msgVisualIdeaRequired = "Please provide an idea for the image."
	msgEditInputRequired  = "Please upload an image and provide an editing instruction."
	msgUnsupportedImage   = "The uploaded file is not a supported image."
)

// GatewayOptions 网关配置
type GatewayOptions struct {
	ScriptModel       string
	ImageModel        string
	ScriptTemperature float32 // 只作用于脚本生成
	Metrics           *utils.MetricsCollector
	Logger            *utils.Logger
}

// Gateway 对后端模型的三种调用：脚本、图片生成、图片编辑
// 每次调用只发一次请求，不重试
type Gateway struct {
	provider          llm.Provider
	scriptModel       string
	imageModel        string
	scriptTemperature float32
	metrics           *utils.MetricsCollector
	logger            *utils.Logger
}

// ScriptRequest 脚本生成参数
type ScriptRequest struct {
	Topic         string   `json:"topic"`
	Language      string   `json:"language"`
	TalkingPoints []string `json:"talking_points,omitempty"`
}

// Normalize 去掉首尾空白并补全默认语言，主题为空时返回校验错误
func (r ScriptRequest) Normalize() (ScriptRequest, error) {
	out := ScriptRequest{
		Topic:         strings.TrimSpace(r.Topic),
		Language:      strings.TrimSpace(r.Language),
		TalkingPoints: cleanTalkingPoints(r.TalkingPoints),
	}
	if out.Topic == "" {
		return ScriptRequest{}, apperrors.NewValidationError(msgTopicRequired, nil)
	}
	if out.Language == "" {
		out.Language = models.DefaultLanguage
	}
	return out, nil
}

// NewGateway 创建网关
func NewGateway(provider llm.Provider, opts GatewayOptions) (*Gateway, error) {
	if provider == nil {
		return nil, errors.New("llm provider is required")
	}
	if opts.Logger == nil {
		opts.Logger = utils.GetLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = utils.NewMetricsCollector()
	}
	return &Gateway{
		provider:          provider,
		scriptModel:       opts.ScriptModel,
		imageModel:        opts.ImageModel,
		scriptTemperature: opts.ScriptTemperature,
		metrics:           opts.Metrics,
		logger:            opts.Logger,
	}, nil
}

// ProviderName 当前后端名称
func (g *Gateway) ProviderName() string {
	return g.provider.GetName()
}

// GenerateScript 生成带搜索依据的短视频脚本
func (g *Gateway) GenerateScript(ctx context.Context, req ScriptRequest) (segments []models.ScriptSegment, err error) {
	req, err = req.Normalize()
	if err != nil {
		return nil, err
	}
	topic, language := req.Topic, req.Language

	prompt, err := buildScriptPrompt(topic, language, req.TalkingPoints)
	if err != nil {
		return nil, apperrors.NewGenerationError(apperrors.ErrScriptGeneration, err)
	}

	start := time.Now()
	defer func() { g.record("generate_script", err, start) }()

	resp, err := g.provider.GenerateContent(ctx, llm.ContentRequest{
		Model:        g.scriptModel,
		Parts:        []llm.Part{{Text: prompt}},
		EnableSearch: true,
		Temperature:  g.scriptTemperature,
	})
	if err != nil {
		g.logger.Error("Script generation call failed", map[string]interface{}{
			"topic":    topic,
			"language": language,
			"error":    err,
		})
		return nil, apperrors.NewGenerationError(apperrors.ErrScriptGeneration, err)
	}

	parts, err := decodeScriptParts(ParseFencedJSON(resp.Text, g.logger))
	if err != nil {
		g.logger.Error("Script response has invalid structure", map[string]interface{}{
			"topic":         topic,
			"finish_reason": resp.FinishReason,
			"error":         err,
		})
		return nil, apperrors.NewGenerationError(apperrors.ErrScriptGeneration, err)
	}

	narrations := make([]string, len(parts))
	for i, p := range parts {
		narrations[i] = p.Script
	}
	citations := AttachGrounding(narrations, resp.Grounding)

	segments = make([]models.ScriptSegment, len(parts))
	for i, p := range parts {
		segments[i] = models.ScriptSegment{
			ID:            uuid.NewString(),
			Label:         p.Part,
			NarrationText: p.Script,
			VisualIdea:    p.MemeIdea,
			Citations:     citations[i],
		}
	}

	g.logger.Info("Script generated", map[string]interface{}{
		"topic":           topic,
		"language":        language,
		"segments":        len(segments),
		"grounding_total": len(resp.Grounding),
		"model":           resp.ModelName,
		"provider":        resp.ProviderName,
	})
	return segments, nil
}

// GenerateImage 按画面创意生成一张梗图
func (g *Gateway) GenerateImage(ctx context.Context, visualIdea string) (image models.ImageHandle, err error) {
	visualIdea = strings.TrimSpace(visualIdea)
	if visualIdea == "" {
		return models.ImageHandle{}, apperrors.NewValidationError(msgVisualIdeaRequired, nil)
	}

	start := time.Now()
	defer func() { g.record("generate_image", err, start) }()

	resp, err := g.provider.GenerateContent(ctx, llm.ContentRequest{
		Model:      g.imageModel,
		Parts:      []llm.Part{{Text: buildImagePrompt(visualIdea)}},
		Modalities: []string{llm.ModalityImage},
	})
	if err != nil {
		g.logger.Error("Image generation call failed", map[string]interface{}{"error": err})
		return models.ImageHandle{}, apperrors.NewGenerationError(apperrors.ErrImageGeneration, err)
	}

	inline, ok := resp.FirstInline()
	if !ok {
		g.logger.Error("Image generation returned no image", map[string]interface{}{
			"finish_reason": resp.FinishReason,
			"model":         resp.ModelName,
		})
		return models.ImageHandle{}, apperrors.NewGenerationError(apperrors.ErrImageGeneration, nil)
	}
	return models.NewImageHandle(inline.MIMEType, inline.Data), nil
}

// EditImage 按指令编辑用户上传的图片
// sourceMIME 为空时根据内容识别
func (g *Gateway) EditImage(ctx context.Context, instruction string, source []byte, sourceMIME string) (image models.ImageHandle, err error) {
	mimeType, err := ValidateEditInput(instruction, source, sourceMIME)
	if err != nil {
		return models.ImageHandle{}, err
	}
	instruction = strings.TrimSpace(instruction)

	start := time.Now()
	defer func() { g.record("edit_image", err, start) }()

	resp, err := g.provider.GenerateContent(ctx, llm.ContentRequest{
		Model: g.imageModel,
		Parts: []llm.Part{
			{Inline: &llm.InlineData{MIMEType: mimeType, Data: source}},
			{Text: instruction},
		},
		Modalities: []string{llm.ModalityImage},
	})
	if err != nil {
		g.logger.Error("Image edit call failed", map[string]interface{}{"error": err})
		return models.ImageHandle{}, apperrors.NewGenerationError(apperrors.ErrImageEditing, err)
	}

	inline, ok := resp.FirstInline()
	if !ok {
		g.logger.Error("Image edit returned no image", map[string]interface{}{
			"finish_reason": resp.FinishReason,
			"model":         resp.ModelName,
		})
		return models.ImageHandle{}, apperrors.NewGenerationError(apperrors.ErrImageEditing, nil)
	}
	return models.NewImageHandle(inline.MIMEType, inline.Data), nil
}

// ValidateEditInput 检查编辑输入并返回图片 MIME 类型
func ValidateEditInput(instruction string, source []byte, sourceMIME string) (string, error) {
	if strings.TrimSpace(instruction) == "" || len(source) == 0 {
		return "", apperrors.NewValidationError(msgEditInputRequired, nil)
	}

	mimeType := strings.TrimSpace(sourceMIME)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(source).String()
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", apperrors.NewValidationError(msgUnsupportedImage, nil)
	}
	return mimeType, nil
}

func (g *Gateway) record(operation string, err error, start time.Time) {
	g.metrics.RecordGatewayCall(operation, err == nil, time.Since(start))
}

func cleanTalkingPoints(points []string) []string {
	var out []string
	for _, p := range points {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
