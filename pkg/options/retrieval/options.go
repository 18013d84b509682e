// Package retrieval provides retrieval pipeline configuration options.
package retrieval

import (
	"fmt"

	"github.com/kart-io/propintel/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// 支持的排序策略。
var validStrategies = map[string]bool{
	"relevance": true,
	"diversity": true,
	"coverage":  true,
	"mmr":       true,
	"hybrid":    true,
}

// Options contains retrieval pipeline configuration.
type Options struct {
	// Collection 默认 Milvus 集合名称。
	Collection string `json:"collection" mapstructure:"collection"`

	// TopK 默认返回的结果数量。
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinScore 结果最低相似度分数阈值。
	MinScore float64 `json:"min-score" mapstructure:"min-score"`

	// Strategy 默认排序策略（relevance|diversity|coverage|mmr|hybrid）。
	Strategy string `json:"strategy" mapstructure:"strategy"`

	// MaxVariants 查询扩展生成的最大变体数量。
	MaxVariants int `json:"max-variants" mapstructure:"max-variants"`

	// EmbeddingDim 嵌入向量维度。
	EmbeddingDim int `json:"embedding-dim" mapstructure:"embedding-dim"`

	// BatchConcurrency 批量检索的并发上限。
	BatchConcurrency int `json:"batch-concurrency" mapstructure:"batch-concurrency"`

	// EnableValidation 是否对检索结果启用答案校验。
	EnableValidation bool `json:"enable-validation" mapstructure:"enable-validation"`

	// AutoRoute 是否按查询内容自动路由到公司或项目集合。
	AutoRoute bool `json:"auto-route" mapstructure:"auto-route"`

	// CompanyCollection 自动路由的公司信息集合。
	CompanyCollection string `json:"company-collection" mapstructure:"company-collection"`

	// ProjectCollection 自动路由的项目信息集合。
	ProjectCollection string `json:"project-collection" mapstructure:"project-collection"`

	// CompanyNames 用于精确路由的公司名称列表。
	CompanyNames []string `json:"company-names" mapstructure:"company-names"`

	// ProjectNames 用于精确路由的项目名称列表。
	ProjectNames []string `json:"project-names" mapstructure:"project-names"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Collection:        "property_chunks",
		TopK:              5,
		MinScore:          0.1,
		Strategy:          "hybrid",
		MaxVariants:       3,
		EmbeddingDim:      768, // nomic-embed-text dimension
		BatchConcurrency:  4,
		EnableValidation:  true,
		AutoRoute:         true,
		CompanyCollection: "property_companies",
		ProjectCollection: "property_projects",
	}
}

// AddFlags adds flags for retrieval options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Collection, options.Join(prefixes...)+"retrieval.collection", o.Collection, "Default Milvus collection name.")
	fs.IntVar(&o.TopK, options.Join(prefixes...)+"retrieval.top-k", o.TopK, "Default number of results to return.")
	fs.Float64Var(&o.MinScore, options.Join(prefixes...)+"retrieval.min-score", o.MinScore, "Minimum similarity score threshold.")
	fs.StringVar(&o.Strategy, options.Join(prefixes...)+"retrieval.strategy", o.Strategy, "Default ranking strategy (relevance|diversity|coverage|mmr|hybrid).")
	fs.IntVar(&o.MaxVariants, options.Join(prefixes...)+"retrieval.max-variants", o.MaxVariants, "Maximum number of query variants for expansion.")
	fs.IntVar(&o.EmbeddingDim, options.Join(prefixes...)+"retrieval.embedding-dim", o.EmbeddingDim, "Embedding vector dimension.")
	fs.IntVar(&o.BatchConcurrency, options.Join(prefixes...)+"retrieval.batch-concurrency", o.BatchConcurrency, "Concurrency limit for batch retrieval.")
	fs.BoolVar(&o.EnableValidation, options.Join(prefixes...)+"retrieval.enable-validation", o.EnableValidation, "Enable answer validation for retrieval results.")
	fs.BoolVar(&o.AutoRoute, options.Join(prefixes...)+"retrieval.auto-route", o.AutoRoute, "Route queries to the company or project collection automatically.")
	fs.StringVar(&o.CompanyCollection, options.Join(prefixes...)+"retrieval.company-collection", o.CompanyCollection, "Collection for company information queries.")
	fs.StringVar(&o.ProjectCollection, options.Join(prefixes...)+"retrieval.project-collection", o.ProjectCollection, "Collection for project information queries.")
	fs.StringSliceVar(&o.CompanyNames, options.Join(prefixes...)+"retrieval.company-names", o.CompanyNames, "Company names for exact routing matches.")
	fs.StringSliceVar(&o.ProjectNames, options.Join(prefixes...)+"retrieval.project-names", o.ProjectNames, "Project names for exact routing matches.")
}

// Validate validates the retrieval options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Collection == "" {
		errs = append(errs, fmt.Errorf("retrieval.collection is required"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top-k must be positive"))
	}
	if o.MinScore < 0 || o.MinScore > 1 {
		errs = append(errs, fmt.Errorf("retrieval.min-score must be in [0, 1]"))
	}
	if !validStrategies[o.Strategy] {
		errs = append(errs, fmt.Errorf("retrieval.strategy %q is not supported", o.Strategy))
	}
	if o.MaxVariants < 0 {
		errs = append(errs, fmt.Errorf("retrieval.max-variants must be non-negative"))
	}
	if o.EmbeddingDim <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.embedding-dim must be positive"))
	}
	if o.BatchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.batch-concurrency must be positive"))
	}
	if o.AutoRoute {
		if o.CompanyCollection == "" {
			errs = append(errs, fmt.Errorf("retrieval.company-collection is required when auto-route is enabled"))
		}
		if o.ProjectCollection == "" {
			errs = append(errs, fmt.Errorf("retrieval.project-collection is required when auto-route is enabled"))
		}
	}
	return errs
}

// Complete completes the retrieval options with defaults.
func (o *Options) Complete() error {
	if o.Strategy == "" {
		o.Strategy = "hybrid"
	}
	return nil
}
