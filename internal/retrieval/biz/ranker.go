package biz

import (
	"sort"

	"github.com/kart-io/propintel/internal/model"
	"github.com/kart-io/propintel/internal/pkg/textutil"
	"github.com/kart-io/propintel/pkg/errors"
)

// Strategy 排序策略标识。
type Strategy string

const (
	StrategyRelevance Strategy = "relevance"
	StrategyDiversity Strategy = "diversity"
	StrategyCoverage  Strategy = "coverage"
	StrategyMMR       Strategy = "mmr"
	StrategyHybrid    Strategy = "hybrid"
)

// ParseStrategy 解析策略名称，未知名称返回 ErrInvalidStrategy。
func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case StrategyRelevance, StrategyDiversity, StrategyCoverage, StrategyMMR, StrategyHybrid:
		return Strategy(name), nil
	case "":
		return StrategyHybrid, nil
	default:
		return "", errors.ErrInvalidStrategy.WithMessagef("unknown ranking strategy: %s", name)
	}
}

// HybridWeights hybrid 策略中三个子得分的权重。
type HybridWeights struct {
	Relevance float64
	Diversity float64
	Coverage  float64
}

// DefaultHybridWeights 返回默认的 hybrid 权重。
func DefaultHybridWeights() HybridWeights {
	return HybridWeights{Relevance: 0.5, Diversity: 0.3, Coverage: 0.2}
}

// RankOptions 单次排序的可调参数，零值取各自默认。
type RankOptions struct {
	// MMRLambda MMR 策略的相关性权重，取 [0, 1]，默认 0.5。
	MMRLambda *float64
	// Weights hybrid 策略的子得分权重，nil 取默认。
	Weights *HybridWeights
}

// FilterCriteria 排序后的过滤条件，由 Orchestrator 应用。
type FilterCriteria struct {
	MinScore         float64
	MaxResults       int
	RequiredSections []string
}

// Ranker 对检索候选做重排序。所有策略都是纯函数：
// 相同的候选、查询与参数必然产生相同的输出顺序。
type Ranker struct{}

// NewRanker 创建排序器实例。
func NewRanker() *Ranker {
	return &Ranker{}
}

// Rank 按指定策略排序候选并给出 1 起始的名次。
// 平级按原始检索名次保序，输出顺序完全可复现。
func (r *Ranker) Rank(candidates []*model.Candidate, q *model.Query, strategy Strategy, opts *RankOptions) []*model.RankedResult {
	if len(candidates) == 0 {
		return []*model.RankedResult{}
	}
	if opts == nil {
		opts = &RankOptions{}
	}

	results := make([]*model.RankedResult, len(candidates))
	for i, c := range candidates {
		results[i] = &model.RankedResult{
			Chunk: c.Chunk,
			Score: clamp01(c.Score),
			// Rank 暂存原始检索名次，用作排序的平级决胜项。
			Rank:       i,
			Components: map[string]float64{"relevance": clamp01(c.Score)},
		}
	}

	switch strategy {
	case StrategyRelevance:
		r.rankByRelevance(results)
	case StrategyDiversity:
		r.rankByDiversity(results)
	case StrategyCoverage:
		r.rankByCoverage(results, q)
	case StrategyMMR:
		lambda := 0.5
		if opts.MMRLambda != nil {
			lambda = clamp01(*opts.MMRLambda)
		}
		results = r.rankByMMR(results, lambda)
	case StrategyHybrid:
		weights := DefaultHybridWeights()
		if opts.Weights != nil {
			weights = *opts.Weights
		}
		r.rankHybrid(results, q, weights)
	default:
		r.rankByRelevance(results)
	}

	if strategy != StrategyMMR {
		stableSortByScore(results)
	}
	for i, res := range results {
		res.Rank = i + 1
	}
	return results
}

// Filter 应用最低得分、章节约束与数量上限，保持输入顺序。
func (r *Ranker) Filter(results []*model.RankedResult, criteria *FilterCriteria) []*model.RankedResult {
	if criteria == nil {
		return results
	}

	filtered := make([]*model.RankedResult, 0, len(results))
	for _, res := range results {
		if res.Score < criteria.MinScore {
			continue
		}
		if len(criteria.RequiredSections) > 0 && !textutil.ContainsString(criteria.RequiredSections, res.Chunk.Section) {
			continue
		}
		filtered = append(filtered, res)
	}
	if criteria.MaxResults > 0 && len(filtered) > criteria.MaxResults {
		filtered = filtered[:criteria.MaxResults]
	}
	return filtered
}

// rankByRelevance 仅按归一化的语义相似度排序。
func (r *Ranker) rankByRelevance(results []*model.RankedResult) {
	for _, res := range results {
		res.Score = res.Components["relevance"]
	}
}

// rankByDiversity 按相关性顺序遍历，同一章节每重复出现一次，
// 衰减因子 1/(1+重复次数) 就进一步压低该候选的得分。
func (r *Ranker) rankByDiversity(results []*model.RankedResult) {
	r.rankByRelevance(results)
	stableSortByScore(results)

	sectionCount := make(map[string]int)
	for _, res := range results {
		section := res.Chunk.Section
		decay := 1.0 / (1.0 + float64(sectionCount[section]))
		sectionCount[section]++

		res.Components["diversity"] = decay
		res.Score = res.Components["relevance"] * decay
	}
}

// rankByCoverage 计算查询显著词项在 chunk 文本中的覆盖比例，
// 与相关性等权组合。
func (r *Ranker) rankByCoverage(results []*model.RankedResult, q *model.Query) {
	terms := significantQueryTerms(q)
	for _, res := range results {
		coverage := coverageScore(terms, res.Chunk.Content)
		res.Components["coverage"] = coverage
		res.Score = 0.5*res.Components["relevance"] + 0.5*coverage
	}
}

// rankByMMR 最大边际相关：迭代选出 λ*相关性 − (1−λ)*最大相似度
// 最大的候选。每次选择都会影响下一次，不能一趟排序完成。
// λ=1 时退化为纯相关性排序。
func (r *Ranker) rankByMMR(results []*model.RankedResult, lambda float64) []*model.RankedResult {
	selected := make([]*model.RankedResult, 0, len(results))
	remaining := make([]*model.RankedResult, len(results))
	copy(remaining, results)

	for len(remaining) > 0 {
		bestIdx := 0
		bestScore := mmrScore(remaining[0], selected, lambda)
		for i := 1; i < len(remaining); i++ {
			score := mmrScore(remaining[i], selected, lambda)
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		chosen := remaining[bestIdx]
		chosen.Components["mmr"] = bestScore
		chosen.Score = clamp01(bestScore)
		selected = append(selected, chosen)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// rankHybrid 相关性、多样性、覆盖率三个子得分的加权线性组合。
// 权重先归一化到和为 1，复合得分因此始终落在 [0, 1] 区间。
func (r *Ranker) rankHybrid(results []*model.RankedResult, q *model.Query, weights HybridWeights) {
	weights = normalizeWeights(weights)

	// 多样性衰减依赖遍历顺序，先按相关性排好再计算。
	r.rankByRelevance(results)
	stableSortByScore(results)

	terms := significantQueryTerms(q)
	sectionCount := make(map[string]int)

	for _, res := range results {
		section := res.Chunk.Section
		diversity := 1.0 / (1.0 + float64(sectionCount[section]))
		sectionCount[section]++
		coverage := coverageScore(terms, res.Chunk.Content)

		res.Components["diversity"] = diversity
		res.Components["coverage"] = coverage
		res.Score = weights.Relevance*res.Components["relevance"] +
			weights.Diversity*diversity +
			weights.Coverage*coverage
	}
}

// normalizeWeights 把权重归一化到和为 1。三项子得分都在 [0, 1]，
// 归一化后的加权和不会越界。负权重按零处理，全零退回默认权重。
func normalizeWeights(weights HybridWeights) HybridWeights {
	w := HybridWeights{
		Relevance: max(weights.Relevance, 0),
		Diversity: max(weights.Diversity, 0),
		Coverage:  max(weights.Coverage, 0),
	}
	sum := w.Relevance + w.Diversity + w.Coverage
	if sum == 0 {
		return DefaultHybridWeights()
	}
	w.Relevance /= sum
	w.Diversity /= sum
	w.Coverage /= sum
	return w
}

// mmrScore 计算候选相对已选集合的 MMR 得分。
func mmrScore(candidate *model.RankedResult, selected []*model.RankedResult, lambda float64) float64 {
	relevance := candidate.Components["relevance"]
	if len(selected) == 0 {
		return lambda * relevance
	}

	maxSim := 0.0
	for _, s := range selected {
		if sim := chunkSimilarity(&candidate.Chunk, &s.Chunk); sim > maxSim {
			maxSim = sim
		}
	}
	return lambda*relevance - (1-lambda)*maxSim
}

// chunkSimilarity 估算两个 chunk 的相似度：章节一致占三成，
// 文本 Jaccard 重叠占七成。
func chunkSimilarity(a, b *model.Chunk) float64 {
	sectionMatch := 0.0
	if a.Section == b.Section {
		sectionMatch = 1.0
	}
	return 0.3*sectionMatch + 0.7*textutil.JaccardSimilarity(a.Content, b.Content)
}

// significantQueryTerms 返回查询的显著词项（去停用词，长度大于 2）。
func significantQueryTerms(q *model.Query) []string {
	if q == nil {
		return nil
	}
	return textutil.SignificantTerms(q.Cleaned, 2)
}

// coverageScore 计算显著词项出现在文本中的比例。
func coverageScore(terms []string, content string) float64 {
	if len(terms) == 0 {
		return 0
	}
	tokens := textutil.TokenSet(content)
	matched := 0
	for _, term := range terms {
		if _, ok := tokens[term]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// clamp01 把得分压回 [0, 1] 区间，保证跨策略的复合得分可比。
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stableSortByScore 按得分降序排序，平级保留原始检索名次顺序。
func stableSortByScore(results []*model.RankedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Rank < results[j].Rank
	})
}
