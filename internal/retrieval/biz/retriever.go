package biz

import (
	"context"
	"sort"
	"time"

	"github.com/kart-io/logger"
	"github.com/kart-io/propintel/internal/model"
	"github.com/kart-io/propintel/internal/pkg/textutil"
	"github.com/kart-io/propintel/internal/retrieval/metrics"
	"github.com/kart-io/propintel/internal/retrieval/store"
	"github.com/kart-io/propintel/pkg/errors"
	"github.com/kart-io/propintel/pkg/llm"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// Collection 默认检索的集合名称。
	Collection string
	// TopK 默认返回的候选数量。
	TopK int
}

// Retriever 针对向量库执行相似度检索，负责打分归一与候选去重。
// 向量库不可用与零命中是两种结果：前者返回错误，后者返回空列表。
type Retriever struct {
	store    store.VectorStore
	embedder llm.EmbeddingProvider
	config   *RetrieverConfig
	metrics  *metrics.PipelineMetrics
}

// NewRetriever 创建检索器实例。
func NewRetriever(vectorStore store.VectorStore, embedder llm.EmbeddingProvider, config *RetrieverConfig) *Retriever {
	if config == nil {
		config = &RetrieverConfig{TopK: 5}
	}
	if config.TopK <= 0 {
		config.TopK = 5
	}
	return &Retriever{
		store:    vectorStore,
		embedder: embedder,
		config:   config,
		metrics:  metrics.GetPipelineMetrics(),
	}
}

// Retrieve 执行单查询检索。
// 空查询在任何 embed 或向量库调用之前即被拒绝。
func (r *Retriever) Retrieve(ctx context.Context, q *model.Query, topK int, collection string, filter *store.FilterSpec) ([]*model.Candidate, error) {
	if q == nil || q.Cleaned == "" {
		return nil, errors.ErrInvalidQuery
	}
	if topK <= 0 {
		topK = r.config.TopK
	}
	if collection == "" {
		collection = r.config.Collection
	}

	embedding, err := r.embed(ctx, q.Cleaned)
	if err != nil {
		return nil, err
	}
	return r.search(ctx, collection, embedding, topK, filter)
}

// RetrieveMulti 用多条查询变体检索并合并结果。
// 相同 chunk 被多条变体命中时只保留得分最高的一条，合并后截断到 limit。
func (r *Retriever) RetrieveMulti(ctx context.Context, queries []string, topKPerQuery, limit int, collection string, filter *store.FilterSpec) ([]*model.Candidate, error) {
	if len(queries) == 0 {
		return nil, errors.ErrInvalidQuery
	}
	for _, q := range queries {
		if q == "" {
			return nil, errors.ErrInvalidQuery
		}
	}
	if topKPerQuery <= 0 {
		topKPerQuery = r.config.TopK
	}
	if limit <= 0 {
		limit = r.config.TopK
	}
	if collection == "" {
		collection = r.config.Collection
	}

	var merged []*model.Candidate
	for _, query := range queries {
		embedding, err := r.embed(ctx, query)
		if err != nil {
			return nil, err
		}
		candidates, err := r.search(ctx, collection, embedding, topKPerQuery, filter)
		if err != nil {
			return nil, err
		}
		// 记录命中来源变体。去重保留最优候选，来源随之保留。
		for _, c := range candidates {
			c.Variant = query
		}
		merged = append(merged, candidates...)
	}

	deduped := dedupeCandidates(merged)
	sortCandidates(deduped)
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}

	logger.Debugw("multi-query retrieval merged",
		"queries", len(queries), "raw", len(merged), "unique", len(deduped))
	return deduped, nil
}

// RetrieveHybrid 混合检索：语义得分与关键词重叠得分按权重线性组合。
// keywordWeight 取 [0, 1]，两个子得分在组合前都落在 [0, 1] 区间。
func (r *Retriever) RetrieveHybrid(ctx context.Context, q *model.Query, topK int, keywordWeight float64, collection string, filter *store.FilterSpec) ([]*model.Candidate, error) {
	if q == nil || q.Cleaned == "" {
		return nil, errors.ErrInvalidQuery
	}
	if keywordWeight < 0 || keywordWeight > 1 {
		return nil, errors.ErrInvalidParam.WithMessage("keyword weight must be in [0, 1]")
	}
	if topK <= 0 {
		topK = r.config.TopK
	}

	// 多取一倍候选，混合打分后再截断，避免关键词信号被 topK 截断埋没。
	candidates, err := r.Retrieve(ctx, q, topK*2, collection, filter)
	if err != nil {
		return nil, err
	}

	// 关键词子得分单独保留，组合后的 Score 仍可追溯两个来源。
	for _, c := range candidates {
		c.KeywordScore = textutil.JaccardSimilarity(q.Cleaned, c.Chunk.Content)
		c.Score = keywordWeight*c.KeywordScore + (1-keywordWeight)*c.Score
	}
	sortCandidates(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// embed 生成查询向量，失败映射为嵌入服务不可用。
func (r *Retriever) embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	embedding, err := r.embedder.EmbedSingle(ctx, text)
	r.metrics.RecordEmbedding(time.Since(start), err)
	if err != nil {
		logger.Warnw("查询向量生成失败", "error", err.Error())
		return nil, errors.ErrEmbeddingUnavailable.WithCause(err)
	}
	return embedding, nil
}

// search 执行向量库检索并把距离归一为 [0, 1] 的相似度得分。
func (r *Retriever) search(ctx context.Context, collection string, embedding []float32, topK int, filter *store.FilterSpec) ([]*model.Candidate, error) {
	start := time.Now()
	hits, err := r.store.Search(ctx, collection, embedding, topK, filter)
	r.metrics.RecordRetrieval(time.Since(start), len(hits), err)
	if err != nil {
		return nil, err
	}

	candidates := make([]*model.Candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, &model.Candidate{
			Chunk:    hit.Chunk,
			Distance: hit.Distance,
			// 距离越小相似度越高，1/(1+d) 把任意非负距离压缩到 (0, 1]。
			Score: 1.0 / (1.0 + hit.Distance),
		})
	}
	return candidates, nil
}

// dedupeCandidates 按 chunk ID 去重，保留得分最高的候选。
// 输出保持首次出现的顺序，后续排序的平级关系因此可复现。
func dedupeCandidates(candidates []*model.Candidate) []*model.Candidate {
	best := make(map[string]*model.Candidate, len(candidates))
	var order []string

	for _, c := range candidates {
		id := c.Chunk.ID
		existing, ok := best[id]
		if !ok {
			best[id] = c
			order = append(order, id)
			continue
		}
		if c.Score > existing.Score {
			best[id] = c
		}
	}

	deduped := make([]*model.Candidate, 0, len(order))
	for _, id := range order {
		deduped = append(deduped, best[id])
	}
	return deduped
}

// sortCandidates 按得分降序稳定排序。
func sortCandidates(candidates []*model.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}
