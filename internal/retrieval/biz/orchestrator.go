package biz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/propintel/internal/model"
	"github.com/kart-io/propintel/internal/retrieval/metrics"
	"github.com/kart-io/propintel/internal/retrieval/store"
	"github.com/kart-io/propintel/pkg/errors"
	"github.com/kart-io/propintel/pkg/pool"
)

// OrchestratorConfig 编排器配置。
type OrchestratorConfig struct {
	// TopK 默认返回的结果数量。
	TopK int
	// MinScore 默认的最低复合得分阈值。
	MinScore float64
	// Strategy 默认排序策略。
	Strategy string
	// AutoRoute 是否按查询内容自动选择集合。
	AutoRoute bool
}

// DefaultOrchestratorConfig 返回默认的编排器配置。
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		TopK:      5,
		MinScore:  0.1,
		Strategy:  string(StrategyHybrid),
		AutoRoute: true,
	}
}

// RetrieveOptions 单次检索的可调参数。
type RetrieveOptions struct {
	// TopK 返回的结果数量，0 取默认。
	TopK int
	// Strategy 排序策略名称，空取默认。
	Strategy string
	// UseExpansion 是否启用同义词扩展。
	UseExpansion bool
	// UseMultiQuery 是否启用多变体检索。
	UseMultiQuery bool
	// Hybrid 是否启用语义加关键词的混合检索。
	Hybrid bool
	// KeywordWeight 混合检索中关键词得分的权重。
	KeywordWeight float64
	// Collection 指定集合，空则自动路由。
	Collection string
	// Section 章节过滤覆盖，空则采用处理器建议。
	Section string
	// Source 来源过滤。
	Source string
	// RequiredSections 结果必须属于的章节集合。
	RequiredSections []string
	// MinScore 最低复合得分，nil 取默认。
	MinScore *float64
	// MMRLambda MMR 策略的相关性权重。
	MMRLambda *float64
	// HybridWeights hybrid 策略的子得分权重。
	HybridWeights *HybridWeights
	// SkipCache 跳过查询缓存。
	SkipCache bool
}

// DefaultRetrieveOptions 返回默认的检索选项：同义词扩展开启。
func DefaultRetrieveOptions() *RetrieveOptions {
	return &RetrieveOptions{UseExpansion: true}
}

// fingerprint 生成选项的稳定指纹，作为缓存键的一部分。
func (o *RetrieveOptions) fingerprint() string {
	minScore := -1.0
	if o.MinScore != nil {
		minScore = *o.MinScore
	}
	lambda := -1.0
	if o.MMRLambda != nil {
		lambda = *o.MMRLambda
	}
	weights := ""
	if o.HybridWeights != nil {
		weights = fmt.Sprintf("%.3f/%.3f/%.3f",
			o.HybridWeights.Relevance, o.HybridWeights.Diversity, o.HybridWeights.Coverage)
	}
	return fmt.Sprintf("k=%d|s=%s|e=%t|m=%t|h=%t|kw=%.3f|c=%s|sec=%s|src=%s|req=%v|min=%.3f|l=%.3f|w=%s",
		o.TopK, o.Strategy, o.UseExpansion, o.UseMultiQuery, o.Hybrid, o.KeywordWeight,
		o.Collection, o.Section, o.Source, o.RequiredSections, minScore, lambda, weights)
}

// RetrievalResponse 一次检索的完整响应。
type RetrievalResponse struct {
	Query             *model.Query          `json:"query"`
	Results           []*model.RankedResult `json:"results"`
	Count             int                   `json:"count"`
	Collection        string                `json:"collection"`
	RoutingConfidence float64               `json:"routing_confidence,omitempty"`
	Strategy          string                `json:"strategy"`
	ElapsedMS         int64                 `json:"elapsed_ms"`
	Cached            bool                  `json:"cached"`
}

// BatchResult 批量检索的单项结果，失败只影响自身。
type BatchResult struct {
	Query    string             `json:"query"`
	Response *RetrievalResponse `json:"response,omitempty"`
	Err      error              `json:"-"`
}

// PipelineStats 编排器的运行统计。
// 批量模式下多个查询并发执行，所有更新必须原子完成。
type PipelineStats struct {
	total          atomic.Uint64
	succeeded      atomic.Uint64
	failed         atomic.Uint64
	totalLatencyMS atomic.Int64
}

// StatsSnapshot 某一时刻的统计快照。
type StatsSnapshot struct {
	Total        uint64  `json:"total"`
	Succeeded    uint64  `json:"succeeded"`
	Failed       uint64  `json:"failed"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

func (s *PipelineStats) record(elapsed time.Duration, err error) {
	s.total.Add(1)
	if err != nil {
		s.failed.Add(1)
	} else {
		s.succeeded.Add(1)
	}
	s.totalLatencyMS.Add(elapsed.Milliseconds())
}

// Snapshot 读取当前统计。
func (s *PipelineStats) Snapshot() StatsSnapshot {
	snapshot := StatsSnapshot{
		Total:     s.total.Load(),
		Succeeded: s.succeeded.Load(),
		Failed:    s.failed.Load(),
	}
	if snapshot.Total > 0 {
		snapshot.AvgLatencyMS = float64(s.totalLatencyMS.Load()) / float64(snapshot.Total)
	}
	return snapshot
}

// Reset 清零统计。重置是显式操作，不会自动发生。
func (s *PipelineStats) Reset() {
	s.total.Store(0)
	s.succeeded.Store(0)
	s.failed.Store(0)
	s.totalLatencyMS.Store(0)
}

// Orchestrator 把查询处理、检索、排序、过滤串联成完整流水线。
type Orchestrator struct {
	processor *Processor
	retriever *Retriever
	ranker    *Ranker
	validator *Validator
	router    *CollectionRouter
	cache     *QueryCache
	config    *OrchestratorConfig
	stats     *PipelineStats
	metrics   *metrics.PipelineMetrics
}

// NewOrchestrator 创建检索编排器实例。cache 允许为 nil。
func NewOrchestrator(
	processor *Processor,
	retriever *Retriever,
	ranker *Ranker,
	validator *Validator,
	router *CollectionRouter,
	cache *QueryCache,
	config *OrchestratorConfig,
) *Orchestrator {
	if config == nil {
		config = DefaultOrchestratorConfig()
	}
	return &Orchestrator{
		processor: processor,
		retriever: retriever,
		ranker:    ranker,
		validator: validator,
		router:    router,
		cache:     cache,
		config:    config,
		stats:     &PipelineStats{},
		metrics:   metrics.GetPipelineMetrics(),
	}
}

// Retrieve 执行完整的检索流水线。
func (o *Orchestrator) Retrieve(ctx context.Context, raw string, opts *RetrieveOptions) (*RetrievalResponse, error) {
	start := time.Now()
	if opts == nil {
		opts = DefaultRetrieveOptions()
	}

	response, cacheHit, err := o.retrieve(ctx, raw, opts)
	elapsed := time.Since(start)
	o.stats.record(elapsed, err)
	o.metrics.RecordQuery(cacheHit, err)
	if err != nil {
		logger.Warnw("检索流水线失败", "query", raw, "error", err.Error())
		return nil, err
	}

	response.ElapsedMS = elapsed.Milliseconds()
	logger.Infow("retrieval complete",
		"type", response.Query.Type,
		"strategy", response.Strategy,
		"results", response.Count,
		"collection", response.Collection,
		"cached", response.Cached,
		"elapsed_ms", response.ElapsedMS,
	)
	return response, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, raw string, opts *RetrieveOptions) (*RetrievalResponse, bool, error) {
	// 1. 查询处理。空查询在这里拿到 generic 空 Query，由检索器拒绝。
	q := o.processor.Process(raw)
	if q.Cleaned == "" {
		return nil, false, errors.ErrInvalidQuery
	}
	// 扩展关闭时丢弃同义词变体，多变体检索随之退化为单查询路径。
	if !opts.UseExpansion {
		q.Variants = nil
	}

	strategy, err := ParseStrategy(o.strategyName(opts))
	if err != nil {
		return nil, false, err
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = o.config.TopK
	}

	// 2. 缓存查找。键覆盖查询文本和全部检索参数。
	fingerprint := opts.fingerprint()
	if o.cache != nil && !opts.SkipCache {
		if cached, ok := o.cache.Get(ctx, q.Cleaned, fingerprint); ok {
			cached.Cached = true
			return cached, true, nil
		}
	}

	// 3. 集合路由。显式指定的集合优先于自动路由。
	collection := opts.Collection
	routingConfidence := 0.0
	if collection == "" && o.config.AutoRoute && o.router != nil {
		decision := o.router.RouteWithConfidence(q.Cleaned)
		collection = decision.Collection
		routingConfidence = decision.Confidence
	}

	// 4. 检索。显式过滤优先于处理器建议的章节。
	filter := o.buildFilter(q, opts)
	candidates, err := o.runRetrieval(ctx, q, topK, collection, filter, opts)
	if err != nil {
		return nil, false, err
	}

	// 5. 排序与阈值过滤。
	ranked := o.ranker.Rank(candidates, q, strategy, &RankOptions{
		MMRLambda: opts.MMRLambda,
		Weights:   opts.HybridWeights,
	})
	minScore := o.config.MinScore
	if opts.MinScore != nil {
		minScore = *opts.MinScore
	}
	results := o.ranker.Filter(ranked, &FilterCriteria{
		MinScore:         minScore,
		MaxResults:       topK,
		RequiredSections: opts.RequiredSections,
	})

	response := &RetrievalResponse{
		Query:             q,
		Results:           results,
		Count:             len(results),
		Collection:        collection,
		RoutingConfidence: routingConfidence,
		Strategy:          string(strategy),
	}
	if o.cache != nil && !opts.SkipCache {
		o.cacheSet(q.Cleaned, fingerprint, response)
	}
	return response, false, nil
}

// cacheSet 缓存写入走后台池，不阻塞响应返回；池不可用时同步降级。
// 写入用独立上下文，请求结束后的取消不影响缓存落盘。
func (o *Orchestrator) cacheSet(query, fingerprint string, response *RetrievalResponse) {
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		o.cache.Set(ctx, query, fingerprint, response)
	}
	if err := pool.SubmitToType(pool.BackgroundPool, task); err != nil {
		task()
	}
}

// runRetrieval 按选项选择单查询、多变体或混合检索路径。
func (o *Orchestrator) runRetrieval(ctx context.Context, q *model.Query, topK int, collection string, filter *store.FilterSpec, opts *RetrieveOptions) ([]*model.Candidate, error) {
	if opts.Hybrid {
		return o.retriever.RetrieveHybrid(ctx, q, topK, opts.KeywordWeight, collection, filter)
	}
	if opts.UseMultiQuery && len(q.Variants) > 0 {
		queries := o.processor.MultiQueries(q, 3)
		return o.retriever.RetrieveMulti(ctx, queries, topK, topK*2, collection, filter)
	}
	// 多取一倍候选给排序阶段留出重排空间，最终截断由过滤器完成。
	return o.retriever.Retrieve(ctx, q, topK*2, collection, filter)
}

// buildFilter 合并显式过滤与处理器建议，显式值优先。
func (o *Orchestrator) buildFilter(q *model.Query, opts *RetrieveOptions) *store.FilterSpec {
	section := opts.Section
	if section == "" {
		section = q.SuggestedSection
	}
	if section == "" && opts.Source == "" {
		return nil
	}
	return &store.FilterSpec{Section: section, Source: opts.Source}
}

func (o *Orchestrator) strategyName(opts *RetrieveOptions) string {
	if opts.Strategy != "" {
		return opts.Strategy
	}
	return o.config.Strategy
}

// RetrieveSimple 低延迟模式：不扩展、不路由混合，仅按相关性排序。
func (o *Orchestrator) RetrieveSimple(ctx context.Context, raw string, topK int) (*RetrievalResponse, error) {
	return o.Retrieve(ctx, raw, &RetrieveOptions{
		TopK:     topK,
		Strategy: string(StrategyRelevance),
	})
}

// RetrieveByType 按显式指定的查询类型检索，类型映射到章节过滤。
func (o *Orchestrator) RetrieveByType(ctx context.Context, raw string, queryType model.QueryType, topK int) (*RetrievalResponse, error) {
	return o.Retrieve(ctx, raw, &RetrieveOptions{
		TopK:     topK,
		Strategy: string(StrategyRelevance),
		Section:  sectionByType[queryType],
	})
}

// BatchRetrieve 并发处理多条查询，单条失败不中断其他查询。
// 结果顺序与输入一致。
func (o *Orchestrator) BatchRetrieve(ctx context.Context, queries []string, opts *RetrieveOptions) []*BatchResult {
	results := make([]*BatchResult, len(queries))
	if len(queries) == 0 {
		return results
	}
	o.metrics.RecordBatch(len(queries))

	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			response, err := o.Retrieve(ctx, query, opts)
			results[i] = &BatchResult{Query: query, Response: response, Err: err}
		}
		// 池不可用时降级为同步执行，批量语义不变。
		if err := pool.SubmitToType(pool.RetrievalPool, task); err != nil {
			task()
		}
	}
	wg.Wait()
	return results
}

// ValidateAnswer 用检索证据校验生成的答案。
// 未配置校验器时返回不通过的报告，不计入校验统计。
func (o *Orchestrator) ValidateAnswer(answer string, response *RetrievalResponse) *model.ValidationReport {
	if o.validator == nil {
		return &model.ValidationReport{Issues: []string{"validator not configured"}}
	}

	var evidence []*model.Chunk
	var q *model.Query
	if response != nil {
		q = response.Query
		for _, res := range response.Results {
			chunk := res.Chunk
			evidence = append(evidence, &chunk)
		}
	}
	report := o.validator.Validate(answer, evidence, q)
	o.metrics.RecordValidation(report.Valid)
	return report
}

// Stats 返回编排器统计快照。
func (o *Orchestrator) Stats() StatsSnapshot {
	return o.stats.Snapshot()
}

// ResetStats 显式清零统计。
func (o *Orchestrator) ResetStats() {
	o.stats.Reset()
}
