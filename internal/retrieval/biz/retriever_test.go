package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/propintel/internal/model"
	"github.com/kart-io/propintel/internal/retrieval/store"
	apierrors "github.com/kart-io/propintel/pkg/errors"
)

// === Mock 实现 ===

// mockEmbedder 模拟 EmbeddingProvider，记录调用次数。
type mockEmbedder struct {
	calls    int
	embedErr error
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls += len(texts)
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{0.1, 0.2, 0.3}
	}
	return embeddings, nil
}

func (m *mockEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) Name() string { return "mock" }

// mockStore 模拟 VectorStore，按查询序号返回预置命中。
type mockStore struct {
	calls          int
	hits           []*store.SearchHit
	hitsByCall     [][]*store.SearchHit
	searchErr      error
	lastFilter     *store.FilterSpec
	lastCollection string
}

func (m *mockStore) CreateCollection(ctx context.Context, config *store.CollectionConfig) error {
	return nil
}

func (m *mockStore) Insert(ctx context.Context, collection string, chunks []*model.Chunk, embeddings [][]float32) ([]string, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) Search(ctx context.Context, collection string, embedding []float32, topK int, filter *store.FilterSpec) ([]*store.SearchHit, error) {
	call := m.calls
	m.calls++
	m.lastFilter = filter
	m.lastCollection = collection
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	hits := m.hits
	if m.hitsByCall != nil && call < len(m.hitsByCall) {
		hits = m.hitsByCall[call]
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *mockStore) GetStats(ctx context.Context, collection string) (int64, error) {
	return int64(len(m.hits)), nil
}

func (m *mockStore) Close(ctx context.Context) error { return nil }

var _ store.VectorStore = (*mockStore)(nil)

func hit(id, content, section string, distance float64) *store.SearchHit {
	return &store.SearchHit{
		Chunk:    model.Chunk{ID: id, Content: content, Section: section},
		Distance: distance,
	}
}

// === 测试用例 ===

func TestRetriever_Retrieve(t *testing.T) {
	embedder := &mockEmbedder{}
	vectorStore := &mockStore{hits: []*store.SearchHit{
		hit("c1", "specializations and services", model.SectionCompanyInfo, 0.2),
		hit("c2", "contact details", model.SectionContactDetails, 0.8),
	}}
	r := NewRetriever(vectorStore, embedder, &RetrieverConfig{Collection: "companies", TopK: 5})

	q := NewProcessor(nil).Process("what services are offered")
	candidates, err := r.Retrieve(context.Background(), q, 5, "", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// 距离归一为 1/(1+d)，得分落在 (0, 1]
	assert.InDelta(t, 1.0/1.2, candidates[0].Score, 1e-9)
	assert.InDelta(t, 1.0/1.8, candidates[1].Score, 1e-9)
	for _, c := range candidates {
		assert.Greater(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}
}

func TestRetriever_Retrieve_EmptyQueryRejectedBeforeAnyCall(t *testing.T) {
	embedder := &mockEmbedder{}
	vectorStore := &mockStore{}
	r := NewRetriever(vectorStore, embedder, nil)

	q := NewProcessor(nil).Process("   ")
	_, err := r.Retrieve(context.Background(), q, 5, "companies", nil)
	require.Error(t, err)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrInvalidQuery.Code))

	// 空查询必须在任何嵌入或向量库调用之前被拒绝
	assert.Equal(t, 0, embedder.calls)
	assert.Equal(t, 0, vectorStore.calls)

	_, err = r.Retrieve(context.Background(), nil, 5, "companies", nil)
	require.Error(t, err)
	assert.Equal(t, 0, embedder.calls)
	assert.Equal(t, 0, vectorStore.calls)
}

func TestRetriever_Retrieve_StoreErrorNotMaskedAsEmpty(t *testing.T) {
	storeErr := apierrors.ErrStoreUnavailable.WithCause(errors.New("connection refused"))
	embedder := &mockEmbedder{}
	vectorStore := &mockStore{searchErr: storeErr}
	r := NewRetriever(vectorStore, embedder, nil)

	q := NewProcessor(nil).Process("contact info")
	candidates, err := r.Retrieve(context.Background(), q, 5, "companies", nil)

	// 向量库不可用必须作为错误浮出，不能伪装成零结果
	require.Error(t, err)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrStoreUnavailable.Code))
	assert.Nil(t, candidates)
}

func TestRetriever_Retrieve_EmbedErrorMapped(t *testing.T) {
	embedder := &mockEmbedder{embedErr: errors.New("provider down")}
	vectorStore := &mockStore{}
	r := NewRetriever(vectorStore, embedder, nil)

	q := NewProcessor(nil).Process("contact info")
	_, err := r.Retrieve(context.Background(), q, 5, "companies", nil)
	require.Error(t, err)
	assert.True(t, apierrors.IsCode(err, apierrors.ErrEmbeddingUnavailable.Code))
	// 嵌入失败后不应触达向量库
	assert.Equal(t, 0, vectorStore.calls)
}

func TestRetriever_Retrieve_ZeroHitsIsNotAnError(t *testing.T) {
	embedder := &mockEmbedder{}
	vectorStore := &mockStore{hits: []*store.SearchHit{}}
	r := NewRetriever(vectorStore, embedder, nil)

	q := NewProcessor(nil).Process("unrelated topic query")
	candidates, err := r.Retrieve(context.Background(), q, 5, "companies", nil)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestRetriever_RetrieveMulti_DeduplicatesKeepingBestScore(t *testing.T) {
	embedder := &mockEmbedder{}
	// 同一 chunk c1 被两条变体命中，第二次距离更小（得分更高）
	vectorStore := &mockStore{hitsByCall: [][]*store.SearchHit{
		{
			hit("c1", "services offered", model.SectionCompanyInfo, 0.5),
			hit("c2", "contact details", model.SectionContactDetails, 0.4),
		},
		{
			hit("c1", "services offered", model.SectionCompanyInfo, 0.1),
			hit("c3", "social media links", model.SectionSocialMedia, 0.6),
		},
	}}
	r := NewRetriever(vectorStore, embedder, nil)

	candidates, err := r.RetrieveMulti(context.Background(),
		[]string{"services offered", "offerings provided"}, 3, 10, "companies", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	ids := make(map[string]int)
	for _, c := range candidates {
		ids[c.Chunk.ID]++
	}
	// 每个 chunk 只出现一次
	for id, count := range ids {
		assert.Equal(t, 1, count, "chunk %s 重复出现", id)
	}
	// c1 保留的是更优（距离 0.1）的那次得分
	for _, c := range candidates {
		if c.Chunk.ID == "c1" {
			assert.InDelta(t, 1.0/1.1, c.Score, 1e-9)
		}
	}
	// 合并结果按得分降序
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score)
	}
}

func TestRetriever_RetrieveMulti_CapsAtLimit(t *testing.T) {
	embedder := &mockEmbedder{}
	vectorStore := &mockStore{hitsByCall: [][]*store.SearchHit{
		{hit("c1", "a", "s", 0.1), hit("c2", "b", "s", 0.2)},
		{hit("c3", "c", "s", 0.3), hit("c4", "d", "s", 0.4)},
	}}
	r := NewRetriever(vectorStore, embedder, nil)

	candidates, err := r.RetrieveMulti(context.Background(),
		[]string{"query one", "query two"}, 2, 3, "companies", nil)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestRetriever_RetrieveMulti_RejectsEmptyVariant(t *testing.T) {
	embedder := &mockEmbedder{}
	vectorStore := &mockStore{}
	r := NewRetriever(vectorStore, embedder, nil)

	_, err := r.RetrieveMulti(context.Background(), []string{"valid", ""}, 3, 5, "companies", nil)
	require.Error(t, err)
	assert.Equal(t, 0, embedder.calls)
	assert.Equal(t, 0, vectorStore.calls)
}

func TestRetriever_RetrieveHybrid(t *testing.T) {
	embedder := &mockEmbedder{}
	// c2 语义距离更远，但与查询的词项重叠远高于 c1
	vectorStore := &mockStore{hits: []*store.SearchHit{
		hit("c1", "unrelated filler text body", model.SectionCompanyInfo, 0.1),
		hit("c2", "residential complexes specializations", model.SectionCompanyInfo, 0.4),
	}}
	r := NewRetriever(vectorStore, embedder, nil)

	q := NewProcessor(nil).Process("residential complexes specializations")
	candidates, err := r.RetrieveHybrid(context.Background(), q, 2, 0.7, "companies", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// 关键词权重 0.7 时，词项完全重叠的 c2 应排到首位
	assert.Equal(t, "c2", candidates[0].Chunk.ID)
	for _, c := range candidates {
		assert.GreaterOrEqual(t, c.Score, 0.0)
		assert.LessOrEqual(t, c.Score, 1.0)
	}

	// 关键词子得分单独保留，不被组合得分覆盖
	assert.InDelta(t, 1.0, candidates[0].KeywordScore, 1e-9)
	for _, c := range candidates {
		if c.Chunk.ID == "c1" {
			assert.Zero(t, c.KeywordScore)
		}
	}
}

func TestRetriever_RetrieveMulti_RecordsSourceVariant(t *testing.T) {
	embedder := &mockEmbedder{}
	// c1 被两条变体命中，第二条变体的得分更优
	vectorStore := &mockStore{hitsByCall: [][]*store.SearchHit{
		{
			hit("c1", "services offered", model.SectionCompanyInfo, 0.5),
			hit("c2", "contact details", model.SectionContactDetails, 0.4),
		},
		{
			hit("c1", "services offered", model.SectionCompanyInfo, 0.1),
		},
	}}
	r := NewRetriever(vectorStore, embedder, nil)

	candidates, err := r.RetrieveMulti(context.Background(),
		[]string{"services offered", "offerings provided"}, 3, 10, "companies", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// 每个候选记录命中它的变体，去重后保留最优那次的来源
	for _, c := range candidates {
		switch c.Chunk.ID {
		case "c1":
			assert.Equal(t, "offerings provided", c.Variant)
		case "c2":
			assert.Equal(t, "services offered", c.Variant)
		}
	}
}

func TestRetriever_RetrieveHybrid_InvalidWeight(t *testing.T) {
	r := NewRetriever(&mockStore{}, &mockEmbedder{}, nil)
	q := NewProcessor(nil).Process("any query")

	for _, w := range []float64{-0.1, 1.5} {
		_, err := r.RetrieveHybrid(context.Background(), q, 5, w, "companies", nil)
		require.Error(t, err, "weight %v 应被拒绝", w)
	}
}

func TestRetriever_FilterPassedToStore(t *testing.T) {
	embedder := &mockEmbedder{}
	vectorStore := &mockStore{}
	r := NewRetriever(vectorStore, embedder, nil)

	q := NewProcessor(nil).Process("contact info")
	filter := &store.FilterSpec{Section: model.SectionContactDetails}
	_, err := r.Retrieve(context.Background(), q, 5, "companies", filter)
	require.NoError(t, err)
	require.NotNil(t, vectorStore.lastFilter)
	assert.Equal(t, model.SectionContactDetails, vectorStore.lastFilter.Section)
}

func TestDedupeCandidates_PreservesFirstSeenOrder(t *testing.T) {
	candidates := []*model.Candidate{
		{Chunk: model.Chunk{ID: "a"}, Score: 0.5},
		{Chunk: model.Chunk{ID: "b"}, Score: 0.9},
		{Chunk: model.Chunk{ID: "a"}, Score: 0.8},
	}
	deduped := dedupeCandidates(candidates)
	require.Len(t, deduped, 2)
	assert.Equal(t, "a", deduped[0].Chunk.ID)
	assert.InDelta(t, 0.8, deduped[0].Score, 1e-9)
	assert.Equal(t, "b", deduped[1].Chunk.ID)
}
