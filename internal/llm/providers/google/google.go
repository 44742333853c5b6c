// internal/llm/providers/google/google.go
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Corphon/ShortsStudio/internal/llm"
	"github.com/Corphon/ShortsStudio/internal/models"
)

const defaultModel = "gemini-2.5-flash"

func init() {
	llm.Register("google", func() llm.Provider {
		return &Provider{}
	})
}

// ContentGenerator 是 *genai.Models 中用到的部分
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Provider 基于 google.golang.org/genai 的 Gemini 提供者
type Provider struct {
	defaultModel string
	models       ContentGenerator
}

// newWithGenerator 使用现成的生成器构造提供者
func newWithGenerator(gen ContentGenerator, model string) *Provider {
	if model == "" {
		model = defaultModel
	}
	return &Provider{defaultModel: model, models: gen}
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey, exists := config["api_key"]
	if !exists || apiKey == "" {
		return errors.New("google_api密钥未提供")
	}

	p.defaultModel = defaultModel
	if model := config["default_model"]; model != "" {
		p.defaultModel = model
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL := config["base_url"]; baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return fmt.Errorf("创建 genai 客户端失败: %w", err)
	}
	p.models = client.Models
	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

// Close genai 客户端没有需要释放的连接
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) GenerateContent(ctx context.Context, req llm.ContentRequest) (*llm.ContentResponse, error) {
	if p.models == nil {
		return nil, errors.New("google gemini 提供者未初始化")
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, part := range req.Parts {
		switch {
		case part.Inline != nil:
			parts = append(parts, genai.NewPartFromBytes(part.Inline.Data, part.Inline.MIMEType))
		case part.Text != "":
			parts = append(parts, genai.NewPartFromText(part.Text))
		}
	}
	if len(parts) == 0 {
		return nil, errors.New("请求内容为空")
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := p.models.GenerateContent(ctx, model, contents, buildConfig(req))
	if err != nil {
		return nil, fmt.Errorf("google gemini API错误: %w", err)
	}

	out := convertResponse(resp)
	out.ModelName = model
	out.ProviderName = p.GetName()
	return out, nil
}

func buildConfig(req llm.ContentRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.EnableSearch {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if len(req.Modalities) > 0 {
		cfg.ResponseModalities = append([]string(nil), req.Modalities...)
	}
	return cfg
}

// convertResponse 只读取第一个候选
func convertResponse(resp *genai.GenerateContentResponse) *llm.ContentResponse {
	out := &llm.ContentResponse{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return out
	}

	cand := resp.Candidates[0]
	out.FinishReason = string(cand.FinishReason)

	if cand.Content != nil {
		var text strings.Builder
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			if part.Text != "" {
				text.WriteString(part.Text)
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				out.Inline = append(out.Inline, llm.InlineData{
					MIMEType: part.InlineData.MIMEType,
					Data:     part.InlineData.Data,
				})
			}
		}
		out.Text = text.String()
	}

	out.Grounding = groundingEntries(cand.GroundingMetadata)
	return out
}

// groundingEntries 每个 support 的片段文本与其引用的每个 web 来源组成一条依据
// 没有 web 来源或下标越界的 chunk 跳过
func groundingEntries(meta *genai.GroundingMetadata) []llm.GroundingEntry {
	if meta == nil {
		return nil
	}

	var entries []llm.GroundingEntry
	for _, support := range meta.GroundingSupports {
		if support == nil || support.Segment == nil || support.Segment.Text == "" {
			continue
		}
		for _, idx := range support.GroundingChunkIndices {
			if idx < 0 || int(idx) >= len(meta.GroundingChunks) {
				continue
			}
			chunk := meta.GroundingChunks[idx]
			if chunk == nil || chunk.Web == nil {
				continue
			}
			entries = append(entries, llm.GroundingEntry{
				Text: support.Segment.Text,
				Source: models.SourceRef{
					Title: chunk.Web.Title,
					URI:   chunk.Web.URI,
				},
			})
		}
	}
	return entries
}
