package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"
)

// FallbackEmbeddingProvider 按序尝试多个 Embedding 供应商。
// 首选供应商失败后依次切换到备选供应商，全部失败时返回最后一个错误。
type FallbackEmbeddingProvider struct {
	providers []EmbeddingProvider
}

// NewFallbackEmbeddingProvider 创建按序回退的 Embedding 供应商。
// providers 顺序即优先级，至少需要一个供应商。
func NewFallbackEmbeddingProvider(providers ...EmbeddingProvider) (*FallbackEmbeddingProvider, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("fallback provider requires at least one provider")
	}
	return &FallbackEmbeddingProvider{providers: providers}, nil
}

// Embed 为多个文本生成向量嵌入，失败时按序回退。
func (f *FallbackEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for i, p := range f.providers {
		result, err := p.Embed(ctx, texts)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if i < len(f.providers)-1 {
			logger.Warnw("embedding provider failed, falling back",
				"provider", p.Name(),
				"next", f.providers[i+1].Name(),
				"error", err.Error(),
			)
		}
		// 上下文取消时不再尝试后续供应商
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("all embedding providers failed: %w", lastErr)
}

// EmbedSingle 为单个文本生成向量嵌入，失败时按序回退。
func (f *FallbackEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("未返回向量嵌入")
	}
	return embeddings[0], nil
}

// Name 返回供应商名称。
func (f *FallbackEmbeddingProvider) Name() string {
	names := make([]string, len(f.providers))
	for i, p := range f.providers {
		names[i] = p.Name()
	}
	return "fallback(" + strings.Join(names, ",") + ")"
}

var _ EmbeddingProvider = (*FallbackEmbeddingProvider)(nil)
