package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/propintel/internal/model"
)

func candidate(id, content, section string, score float64) *model.Candidate {
	return &model.Candidate{
		Chunk: model.Chunk{ID: id, Content: content, Section: section},
		Score: score,
	}
}

func query(raw string) *model.Query {
	return NewProcessor(nil).Process(raw)
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"relevance", "diversity", "coverage", "mmr", "hybrid"} {
		s, err := ParseStrategy(name)
		require.NoError(t, err)
		assert.Equal(t, Strategy(name), s)
	}

	t.Run("空名称取默认 hybrid", func(t *testing.T) {
		s, err := ParseStrategy("")
		require.NoError(t, err)
		assert.Equal(t, StrategyHybrid, s)
	})

	t.Run("未知策略返回错误", func(t *testing.T) {
		_, err := ParseStrategy("pagerank")
		require.Error(t, err)
	})
}

func TestRanker_Relevance(t *testing.T) {
	r := NewRanker()
	candidates := []*model.Candidate{
		candidate("c1", "a", "s1", 0.3),
		candidate("c2", "b", "s2", 0.9),
		candidate("c3", "c", "s3", 0.6),
	}

	results := r.Rank(candidates, query("any query"), StrategyRelevance, nil)
	require.Len(t, results, 3)

	// 按复合得分降序，得分落在 [0, 1]，名次从 1 起始
	assert.Equal(t, "c2", results[0].Chunk.ID)
	assert.Equal(t, "c3", results[1].Chunk.ID)
	assert.Equal(t, "c1", results[2].Chunk.ID)
	for i, res := range results {
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
		assert.Equal(t, i+1, res.Rank)
	}
}

func TestRanker_Relevance_TiesKeepRetrievalOrder(t *testing.T) {
	r := NewRanker()
	candidates := []*model.Candidate{
		candidate("first", "a", "s", 0.5),
		candidate("second", "b", "s", 0.5),
		candidate("third", "c", "s", 0.5),
	}

	results := r.Rank(candidates, query("q"), StrategyRelevance, nil)
	assert.Equal(t, "first", results[0].Chunk.ID)
	assert.Equal(t, "second", results[1].Chunk.ID)
	assert.Equal(t, "third", results[2].Chunk.ID)
}

func TestRanker_Diversity(t *testing.T) {
	r := NewRanker()
	// 前两个候选同章节，第三个章节不同但得分略低
	candidates := []*model.Candidate{
		candidate("c1", "a", model.SectionCompanyInfo, 0.9),
		candidate("c2", "b", model.SectionCompanyInfo, 0.85),
		candidate("c3", "c", model.SectionContactDetails, 0.8),
	}

	results := r.Rank(candidates, query("q"), StrategyDiversity, nil)
	require.Len(t, results, 3)

	// c2 与 c1 同章节被衰减到 0.85/2，应被 c3 超越
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.Equal(t, "c3", results[1].Chunk.ID)
	assert.Equal(t, "c2", results[2].Chunk.ID)
	assert.InDelta(t, 0.425, results[2].Score, 1e-9)
}

func TestRanker_Coverage(t *testing.T) {
	r := NewRanker()
	q := query("residential complexes kolkata")
	// c2 语义得分稍低但覆盖全部查询显著词项
	candidates := []*model.Candidate{
		candidate("c1", "unrelated filler body text", model.SectionCompanyInfo, 0.8),
		candidate("c2", "residential complexes in kolkata", model.SectionCompanyInfo, 0.6),
	}

	results := r.Rank(candidates, q, StrategyCoverage, nil)
	require.Len(t, results, 2)

	// c1: 0.5*0.8+0.5*0 = 0.40; c2: 0.5*0.6+0.5*1 = 0.80
	assert.Equal(t, "c2", results[0].Chunk.ID)
	assert.InDelta(t, 0.80, results[0].Score, 1e-9)
	assert.InDelta(t, 0.40, results[1].Score, 1e-9)
}

func TestRanker_MMR_LambdaOneDegeneratesToRelevance(t *testing.T) {
	r := NewRanker()
	candidates := []*model.Candidate{
		candidate("c1", "alpha beta gamma", "s1", 0.7),
		candidate("c2", "alpha beta gamma", "s1", 0.9),
		candidate("c3", "delta epsilon", "s2", 0.5),
	}

	lambda := 1.0
	mmrResults := r.Rank(candidates, query("q"), StrategyMMR, &RankOptions{MMRLambda: &lambda})
	relevanceResults := r.Rank(candidates, query("q"), StrategyRelevance, nil)

	require.Len(t, mmrResults, len(relevanceResults))
	for i := range mmrResults {
		assert.Equal(t, relevanceResults[i].Chunk.ID, mmrResults[i].Chunk.ID)
	}
}

func TestRanker_MMR_LambdaZeroMaximizesDiversity(t *testing.T) {
	r := NewRanker()
	// c1 与 c2 文本近乎相同，c3 完全不同
	candidates := []*model.Candidate{
		candidate("c1", "alpha beta gamma delta", "s1", 0.9),
		candidate("c2", "alpha beta gamma delta", "s1", 0.85),
		candidate("c3", "totally different words here", "s2", 0.3),
	}

	lambda := 0.0
	results := r.Rank(candidates, query("q"), StrategyMMR, &RankOptions{MMRLambda: &lambda})
	require.Len(t, results, 3)

	// 存在足够多样的候选时，前两名不允许是近重复文本
	assert.NotEqual(t, results[0].Chunk.Content, results[1].Chunk.Content)
}

func TestRanker_MMR_ScoresStayInRange(t *testing.T) {
	r := NewRanker()
	candidates := []*model.Candidate{
		candidate("c1", "same text body", "s1", 0.9),
		candidate("c2", "same text body", "s1", 0.9),
	}

	results := r.Rank(candidates, query("q"), StrategyMMR, nil)
	for _, res := range results {
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 1.0)
	}
}

func TestRanker_Hybrid_DefaultWeights(t *testing.T) {
	r := NewRanker()
	q := query("specializations services")
	candidates := []*model.Candidate{
		candidate("c1", "specializations and services offered", model.SectionCompanyInfo, 0.8),
		candidate("c2", "unrelated body", model.SectionCompanyInfo, 0.7),
	}

	results := r.Rank(candidates, q, StrategyHybrid, nil)
	require.Len(t, results, 2)

	// c1: 0.5*0.8 + 0.3*1.0 + 0.2*1.0 = 0.90
	assert.Equal(t, "c1", results[0].Chunk.ID)
	assert.InDelta(t, 0.90, results[0].Score, 1e-9)
	// c2 同章节第二次出现，多样性衰减为 0.5，覆盖为 0
	assert.InDelta(t, 0.5*0.7+0.3*0.5, results[1].Score, 1e-9)
}

func TestRanker_Hybrid_WeightsOverridable(t *testing.T) {
	r := NewRanker()
	q := query("alpha")
	candidates := []*model.Candidate{
		candidate("c1", "alpha", "s1", 0.4),
	}

	results := r.Rank(candidates, q, StrategyHybrid, &RankOptions{
		Weights: &HybridWeights{Relevance: 1.0, Diversity: 0, Coverage: 0},
	})
	assert.InDelta(t, 0.4, results[0].Score, 1e-9)
}

func TestRanker_Hybrid_NonUnitWeightsNormalized(t *testing.T) {
	r := NewRanker()
	q := query("specializations services")
	candidates := []*model.Candidate{
		candidate("c1", "specializations and services offered", model.SectionCompanyInfo, 0.8),
		candidate("c2", "unrelated body", model.SectionCompanyInfo, 0.7),
	}

	t.Run("权重和大于 1 时按比例归一", func(t *testing.T) {
		results := r.Rank(candidates, q, StrategyHybrid, &RankOptions{
			Weights: &HybridWeights{Relevance: 1, Diversity: 1, Coverage: 1},
		})
		require.Len(t, results, 2)

		// 等权归一为 1/3，c1 三项子得分为 0.8、1.0、1.0
		assert.Equal(t, "c1", results[0].Chunk.ID)
		assert.InDelta(t, (0.8+1.0+1.0)/3.0, results[0].Score, 1e-9)
		for _, res := range results {
			assert.GreaterOrEqual(t, res.Score, 0.0)
			assert.LessOrEqual(t, res.Score, 1.0)
		}
	})

	t.Run("全零权重退回默认权重", func(t *testing.T) {
		withZero := r.Rank(candidates, q, StrategyHybrid, &RankOptions{
			Weights: &HybridWeights{},
		})
		withDefault := r.Rank(candidates, q, StrategyHybrid, nil)
		require.Len(t, withZero, len(withDefault))
		for i := range withZero {
			assert.Equal(t, withDefault[i].Chunk.ID, withZero[i].Chunk.ID)
			assert.InDelta(t, withDefault[i].Score, withZero[i].Score, 1e-9)
		}
	})
}

func TestRanker_Determinism(t *testing.T) {
	r := NewRanker()
	q := query("residential projects kolkata")
	candidates := []*model.Candidate{
		candidate("c1", "residential projects", model.SectionCompanyInfo, 0.7),
		candidate("c2", "kolkata area details", model.SectionCompanyInfo, 0.7),
		candidate("c3", "contact info", model.SectionContactDetails, 0.7),
	}

	for _, strategy := range []Strategy{StrategyRelevance, StrategyDiversity, StrategyCoverage, StrategyMMR, StrategyHybrid} {
		first := r.Rank(candidates, q, strategy, nil)
		second := r.Rank(candidates, q, strategy, nil)
		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].Chunk.ID, second[i].Chunk.ID, "strategy %s 输出顺序不稳定", strategy)
		}
	}
}

func TestRanker_EmptyInput(t *testing.T) {
	r := NewRanker()
	results := r.Rank(nil, query("q"), StrategyHybrid, nil)
	assert.Empty(t, results)
}

func TestRanker_Filter(t *testing.T) {
	r := NewRanker()
	results := []*model.RankedResult{
		{Chunk: model.Chunk{ID: "c1", Section: model.SectionCompanyInfo}, Score: 0.9, Rank: 1},
		{Chunk: model.Chunk{ID: "c2", Section: model.SectionContactDetails}, Score: 0.5, Rank: 2},
		{Chunk: model.Chunk{ID: "c3", Section: model.SectionCompanyInfo}, Score: 0.05, Rank: 3},
	}

	t.Run("最低得分过滤", func(t *testing.T) {
		filtered := r.Filter(results, &FilterCriteria{MinScore: 0.1})
		require.Len(t, filtered, 2)
		for _, res := range filtered {
			assert.GreaterOrEqual(t, res.Score, 0.1)
		}
	})

	t.Run("章节约束过滤", func(t *testing.T) {
		filtered := r.Filter(results, &FilterCriteria{RequiredSections: []string{model.SectionCompanyInfo}})
		require.Len(t, filtered, 2)
		for _, res := range filtered {
			assert.Equal(t, model.SectionCompanyInfo, res.Chunk.Section)
		}
	})

	t.Run("数量上限截断", func(t *testing.T) {
		filtered := r.Filter(results, &FilterCriteria{MaxResults: 1})
		require.Len(t, filtered, 1)
		assert.Equal(t, "c1", filtered[0].Chunk.ID)
	})

	t.Run("nil 条件原样返回", func(t *testing.T) {
		assert.Len(t, r.Filter(results, nil), 3)
	})
}
