// internal/llm/llmtest/fake.go
// Package llmtest 提供测试用的 llm.Provider 实现
package llmtest

import (
	"context"
	"sync"

	"github.com/Corphon/ShortsStudio/internal/llm"
)

// FakeProvider 记录请求并返回预设结果
// Handler 不为空时优先使用 Handler
type FakeProvider struct {
	Response *llm.ContentResponse
	Err      error
	Handler  func(ctx context.Context, req llm.ContentRequest) (*llm.ContentResponse, error)

	mu       sync.Mutex
	requests []llm.ContentRequest
	closed   bool
}

// Initialize 实现 llm.Provider
func (f *FakeProvider) Initialize(map[string]string) error { return nil }

// GetName 实现 llm.Provider
func (f *FakeProvider) GetName() string { return "fake" }

// GenerateContent 实现 llm.Provider
func (f *FakeProvider) GenerateContent(ctx context.Context, req llm.ContentRequest) (*llm.ContentResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	handler, resp, err := f.Handler, f.Response, f.Err
	f.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &llm.ContentResponse{}, nil
	}
	out := *resp
	return &out, nil
}

// Close 实现 llm.Provider
func (f *FakeProvider) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Requests 返回收到的全部请求
func (f *FakeProvider) Requests() []llm.ContentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ContentRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Closed 是否已调用 Close
func (f *FakeProvider) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// ImageResponse 构造只含一张图片的响应
func ImageResponse(mimeType string, data []byte) *llm.ContentResponse {
	return &llm.ContentResponse{
		Inline: []llm.InlineData{{MIMEType: mimeType, Data: data}},
	}
}
