package resilience

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/propintel/pkg/llm"
)

// ResilientEmbeddingProvider 带重试和熔断的 Embedding Provider 包装器。
type ResilientEmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	cb       *CircuitBreaker
}

// NewResilientEmbeddingProvider 创建带韧性功能的 Embedding Provider。
func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, retryConfig *RetryConfig, cbConfig *CircuitBreakerConfig) *ResilientEmbeddingProvider {
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if cbConfig == nil {
		cbConfig = DefaultCircuitBreakerConfig()
	}
	if retryConfig.RetryableErrors == nil {
		retryConfig.RetryableErrors = IsRetryableError
	}

	return &ResilientEmbeddingProvider{
		provider: provider,
		retry:    retryConfig,
		cb:       NewCircuitBreaker(cbConfig),
	}
}

// Embed 为多个文本生成向量嵌入（带重试和熔断）。
func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var result [][]float32
	var err error

	err = RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		result, err = r.provider.Embed(ctx, texts)
		return err
	})

	return result, err
}

// EmbedSingle 为单个文本生成向量嵌入（带重试和熔断）。
func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	var result []float32
	var err error

	err = RetryWithCircuitBreaker(ctx, r.retry, r.cb, func() error {
		result, err = r.provider.EmbedSingle(ctx, text)
		return err
	})

	return result, err
}

// Name 返回供应商名称。
func (r *ResilientEmbeddingProvider) Name() string {
	return r.provider.Name() + "-resilient"
}

// CircuitBreaker 获取熔断器实例（用于监控）。
func (r *ResilientEmbeddingProvider) CircuitBreaker() *CircuitBreaker {
	return r.cb
}

var _ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)

// IsRetryableError 判断错误是否可重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// 熔断器打开与上下文取消不可重试
	if errors.Is(err, ErrCircuitBreakerOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// 网络超时可重试
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("network timeout, retryable", "error", err.Error())
		return true
	}

	// DNS 和连接级错误可重试
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	// 服务端暂时性 HTTP 状态可重试
	errMsg := err.Error()
	for _, marker := range []string{
		"status code 5", "状态码 5",
		"status code 429", "状态码 429", "rate limit",
		"status code 408", "状态码 408",
		"EOF", "connection reset",
	} {
		if strings.Contains(errMsg, marker) {
			logger.Debugw("transient error, retryable", "error", errMsg)
			return true
		}
	}

	return false
}
