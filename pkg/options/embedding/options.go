// Package embedding provides embedding provider configuration options.
package embedding

import (
	"fmt"
	"time"

	"github.com/kart-io/propintel/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options 定义嵌入供应商配置。
type Options struct {
	// Provider 供应商名称（ollama, openai）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（OpenAI 需要）。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的嵌入模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// FallbackProvider 备用供应商名称，主供应商失败时切换，空则不启用。
	FallbackProvider string `json:"fallback-provider" mapstructure:"fallback-provider"`

	// FallbackBaseURL 备用供应商的 API 基础地址。
	FallbackBaseURL string `json:"fallback-base-url" mapstructure:"fallback-base-url"`

	// FallbackModel 备用供应商使用的模型名称，空则沿用主模型。
	FallbackModel string `json:"fallback-model" mapstructure:"fallback-model"`
}

// NewOptions 创建默认嵌入供应商配置。
func NewOptions() *Options {
	return &Options{
		Provider:   "ollama",
		BaseURL:    "http://localhost:11434",
		Model:      "nomic-embed-text",
		Timeout:    120 * time.Second,
		MaxRetries: 3,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *Options) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"embed_model":  o.Model,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
	}
}

// FallbackConfigMap 转换备用供应商配置，未启用时返回 nil。
func (o *Options) FallbackConfigMap() map[string]any {
	if o.FallbackProvider == "" {
		return nil
	}
	model := o.FallbackModel
	if model == "" {
		model = o.Model
	}
	return map[string]any{
		"base_url":    o.FallbackBaseURL,
		"embed_model": model,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
	}
}

// AddFlags adds flags for embedding provider options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Provider, options.Join(prefixes...)+"embedding.provider", o.Provider, "Embedding provider (ollama, openai).")
	fs.StringVar(&o.BaseURL, options.Join(prefixes...)+"embedding.base-url", o.BaseURL, "Embedding API base URL.")
	fs.StringVar(&o.APIKey, options.Join(prefixes...)+"embedding.api-key", o.APIKey, "Embedding API key.")
	fs.StringVar(&o.Model, options.Join(prefixes...)+"embedding.model", o.Model, "Embedding model name.")
	fs.DurationVar(&o.Timeout, options.Join(prefixes...)+"embedding.timeout", o.Timeout, "Embedding request timeout.")
	fs.IntVar(&o.MaxRetries, options.Join(prefixes...)+"embedding.max-retries", o.MaxRetries, "Embedding maximum number of retries.")
	fs.StringVar(&o.Organization, options.Join(prefixes...)+"embedding.organization", o.Organization, "Embedding organization ID (optional).")
	fs.StringVar(&o.FallbackProvider, options.Join(prefixes...)+"embedding.fallback-provider", o.FallbackProvider, "Fallback embedding provider, empty to disable.")
	fs.StringVar(&o.FallbackBaseURL, options.Join(prefixes...)+"embedding.fallback-base-url", o.FallbackBaseURL, "Fallback embedding API base URL.")
	fs.StringVar(&o.FallbackModel, options.Join(prefixes...)+"embedding.fallback-model", o.FallbackModel, "Fallback embedding model name, defaults to the primary model.")
}

// Validate validates the embedding provider options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("base-url is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	// OpenAI 供应商需要 API key
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("api-key is required for openai provider"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	if o.FallbackProvider != "" && o.FallbackBaseURL == "" {
		errs = append(errs, fmt.Errorf("fallback-base-url is required when fallback-provider is set"))
	}
	return errs
}

// Complete completes the embedding provider options with defaults.
func (o *Options) Complete() error {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	return nil
}
