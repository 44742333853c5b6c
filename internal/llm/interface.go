// internal/llm/interface.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Corphon/ShortsStudio/internal/models"
)

// 错误定义
var ErrUnknownProvider = errors.New("未知的AI提供者")

// ModalityImage 只要求图片输出
const ModalityImage = "IMAGE"

// InlineData 内联二进制数据（图片等）
type InlineData struct {
	MIMEType string
	Data     []byte
}

// Part 请求内容的一部分，Text 与 Inline 二选一
type Part struct {
	Text   string
	Inline *InlineData
}

// ContentRequest 单次生成请求
type ContentRequest struct {
	Model        string
	Parts        []Part
	EnableSearch bool     // 启用搜索增强
	Modalities   []string // 为空时由后端决定
	Temperature  float32  // 0 表示使用后端默认值
}

// GroundingEntry 搜索增强返回的一条依据：一段文本及其来源
type GroundingEntry struct {
	Text   string
	Source models.SourceRef
}

// ContentResponse 生成结果
type ContentResponse struct {
	Text         string
	Inline       []InlineData
	Grounding    []GroundingEntry
	FinishReason string
	ModelName    string
	ProviderName string
}

// FirstInline 返回第一个内联数据
func (r *ContentResponse) FirstInline() (InlineData, bool) {
	if r == nil {
		return InlineData{}, false
	}
	for _, inline := range r.Inline {
		if len(inline.Data) > 0 {
			return inline, true
		}
	}
	return InlineData{}, false
}

// Provider 定义所有后端提供者必须实现的接口
type Provider interface {
	// 初始化提供者，传入配置
	Initialize(config map[string]string) error

	// 获取提供者名称
	GetName() string

	// 单次请求/响应，不做重试
	GenerateContent(ctx context.Context, req ContentRequest) (*ContentResponse, error)

	// 释放底层资源
	Close() error
}

// ProviderFactory 提供者工厂函数
type ProviderFactory func() Provider

var (
	providers   = make(map[string]ProviderFactory)
	providersMu sync.RWMutex
)

// Register 注册提供者工厂
func Register(name string, factory ProviderFactory) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = factory
}

// GetProvider 创建并初始化指定名称的提供者实例
func GetProvider(name string, config map[string]string) (Provider, error) {
	providersMu.RLock()
	factory, exists := providers[name]
	providersMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s (可用: %s)", ErrUnknownProvider, name, strings.Join(ListProviders(), ", "))
	}

	provider := factory()
	if err := provider.Initialize(config); err != nil {
		return nil, err
	}
	return provider, nil
}

// ListProviders 返回所有已注册的提供者名称
func ListProviders() []string {
	providersMu.RLock()
	defer providersMu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
