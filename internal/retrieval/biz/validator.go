package biz

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kart-io/propintel/internal/model"
	"github.com/kart-io/propintel/internal/pkg/textutil"
)

// ValidatorConfig 答案校验器配置。
type ValidatorConfig struct {
	// HallucinationThreshold 幻觉得分超过该值即判定答案无效。
	HallucinationThreshold float64
	// ConfidenceThreshold 置信度低于该值即判定答案无效。
	ConfidenceThreshold float64
}

// DefaultValidatorConfig 返回默认的校验阈值。
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{
		HallucinationThreshold: 0.5,
		ConfidenceThreshold:    0.4,
	}
}

// confidenceWeights 各子得分在置信度中的权重，总和为 1。
// 幻觉得分以 1-score 的形式参与，权重最高。
var confidenceWeights = struct {
	quality       float64
	uncertainty   float64
	fact          float64
	hallucination float64
	relevance     float64
	completeness  float64
}{
	quality:       0.25,
	uncertainty:   0.15,
	fact:          0.15,
	hallucination: 0.30,
	relevance:     0.10,
	completeness:  0.05,
}

// uncertaintyPhrases 表示答案缺乏依据的措辞。
var uncertaintyPhrases = []string{
	"i don't have", "not available", "no information", "cannot find",
	"unclear", "uncertain", "not sure", "don't know", "unable to find",
}

var sentenceSplitRegex = regexp.MustCompile(`[.!?]+`)

// Validator 对生成的答案做启发式质量与幻觉校验。
// 纯函数实现：只读取输入，除报告外不产生任何副作用。
type Validator struct {
	config *ValidatorConfig
}

// NewValidator 创建答案校验器实例。
func NewValidator(config *ValidatorConfig) *Validator {
	if config == nil {
		config = DefaultValidatorConfig()
	}
	return &Validator{config: config}
}

// ValidationInput 批量校验的单项输入。
type ValidationInput struct {
	Answer   string
	Query    *model.Query
	Evidence []*model.Chunk
}

// Validate 校验答案是否被证据支撑。
// 校验失败体现在报告的 Valid 字段里，不作为 error 返回。
func (v *Validator) Validate(answer string, evidence []*model.Chunk, q *model.Query) *model.ValidationReport {
	report := &model.ValidationReport{}

	evidenceText := joinEvidence(evidence)
	evidenceTokens := textutil.TokenSet(evidenceText)

	report.QualityScore = v.checkQuality(answer, report)
	report.UncertaintyScore = v.checkUncertainty(answer, report)
	report.HallucinationScore = v.checkHallucination(answer, evidenceText, evidenceTokens, report)
	report.FactScore = v.checkFacts(answer, evidenceTokens, report)
	report.RelevanceScore = v.checkRelevance(answer, q, report)
	report.CompletenessScore = v.checkCompleteness(answer, q)

	report.Confidence = confidenceWeights.quality*report.QualityScore +
		confidenceWeights.uncertainty*report.UncertaintyScore +
		confidenceWeights.fact*report.FactScore +
		confidenceWeights.hallucination*(1-report.HallucinationScore) +
		confidenceWeights.relevance*report.RelevanceScore +
		confidenceWeights.completeness*report.CompletenessScore

	report.Valid = report.HallucinationScore <= v.config.HallucinationThreshold &&
		report.Confidence >= v.config.ConfidenceThreshold
	if !report.Valid {
		if report.HallucinationScore > v.config.HallucinationThreshold {
			report.Issues = append(report.Issues,
				fmt.Sprintf("hallucination score %.2f exceeds threshold %.2f",
					report.HallucinationScore, v.config.HallucinationThreshold))
		}
		if report.Confidence < v.config.ConfidenceThreshold {
			report.Issues = append(report.Issues,
				fmt.Sprintf("confidence %.2f below threshold %.2f",
					report.Confidence, v.config.ConfidenceThreshold))
		}
	}
	return report
}

// ValidateBatch 批量校验多个答案。
func (v *Validator) ValidateBatch(inputs []*ValidationInput) []*model.ValidationReport {
	reports := make([]*model.ValidationReport, len(inputs))
	for i, input := range inputs {
		if input == nil || input.Answer == "" {
			reports[i] = &model.ValidationReport{
				Valid:  false,
				Issues: []string{"no answer to validate"},
			}
			continue
		}
		reports[i] = v.Validate(input.Answer, input.Evidence, input.Query)
	}
	return reports
}

// QualityReport 汇总一批校验报告的整体质量指标。
type QualityReport struct {
	Total             int     `json:"total"`
	Valid             int     `json:"valid"`
	Invalid           int     `json:"invalid"`
	ValidityRate      float64 `json:"validity_rate"`
	AverageConfidence float64 `json:"average_confidence"`
	TotalIssues       int     `json:"total_issues"`
	TotalWarnings     int     `json:"total_warnings"`
}

// Summarize 从一批校验报告生成质量汇总。
func (v *Validator) Summarize(reports []*model.ValidationReport) *QualityReport {
	summary := &QualityReport{Total: len(reports)}
	if len(reports) == 0 {
		return summary
	}

	confidenceSum := 0.0
	for _, r := range reports {
		if r.Valid {
			summary.Valid++
		}
		confidenceSum += r.Confidence
		summary.TotalIssues += len(r.Issues)
		summary.TotalWarnings += len(r.Warnings)
	}
	summary.Invalid = summary.Total - summary.Valid
	summary.ValidityRate = float64(summary.Valid) / float64(summary.Total)
	summary.AverageConfidence = confidenceSum / float64(summary.Total)
	return summary
}

// checkQuality 答案的基础质量：长度与句末标点。
func (v *Validator) checkQuality(answer string, report *model.ValidationReport) float64 {
	trimmed := strings.TrimSpace(answer)
	if trimmed == "" {
		report.Issues = append(report.Issues, "answer is empty")
		return 0
	}

	score := 1.0
	if len(trimmed) < 10 {
		report.Issues = append(report.Issues, "answer is too short")
		score *= 0.3
	} else if len(trimmed) < 20 {
		report.Warnings = append(report.Warnings, "answer may be too brief")
		score *= 0.7
	}
	if !strings.HasSuffix(trimmed, ".") && !strings.HasSuffix(trimmed, "!") && !strings.HasSuffix(trimmed, "?") {
		score *= 0.9
	}
	return score
}

// checkUncertainty 统计不确定措辞，每命中一条扣 0.3。
func (v *Validator) checkUncertainty(answer string, report *model.ValidationReport) float64 {
	lowered := strings.ToLower(answer)
	count := 0
	for _, phrase := range uncertaintyPhrases {
		if strings.Contains(lowered, phrase) {
			count++
		}
	}
	if count > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("answer contains %d uncertainty phrase(s)", count))
	}
	return clamp01(1.0 - float64(count)*0.3)
}

// checkHallucination 把答案拆成可核查的断言（句子、数值、实体），
// 幻觉得分是证据中找不到支撑的断言所占比例。
// 任何一个数值在全部证据中都不出现，即计为无支撑断言。
func (v *Validator) checkHallucination(answer, evidenceText string, evidenceTokens map[string]struct{}, report *model.ValidationReport) float64 {
	total := 0
	unsupported := 0

	// 句子断言：显著词项过半出现在证据里即视为被支撑。
	for _, sentence := range splitSentences(answer) {
		terms := textutil.SignificantTerms(sentence, 2)
		if len(terms) == 0 {
			continue
		}
		total++
		matched := 0
		for _, term := range terms {
			if _, ok := evidenceTokens[term]; ok {
				matched++
			}
		}
		if float64(matched) < float64(len(terms))*0.5 {
			unsupported++
		}
	}

	// 数值断言：必须在证据文本里逐字出现。
	evidenceNumbers := make(map[string]struct{})
	for _, n := range textutil.ExtractNumbers(evidenceText) {
		evidenceNumbers[n] = struct{}{}
	}
	for _, n := range textutil.ExtractNumbers(answer) {
		total++
		if _, ok := evidenceNumbers[n]; !ok {
			unsupported++
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("numeric claim %q not found in evidence", n))
		}
	}

	// 实体断言：大写词组需在证据中出现（忽略大小写）。
	loweredEvidence := strings.ToLower(evidenceText)
	for _, entity := range textutil.ExtractCapitalizedSpans(answer) {
		total++
		if !strings.Contains(loweredEvidence, strings.ToLower(entity)) {
			unsupported++
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("entity %q not found in evidence", entity))
		}
	}

	if total == 0 {
		return 0
	}
	return float64(unsupported) / float64(total)
}

// checkFacts 答案显著词项被证据覆盖的比例。
func (v *Validator) checkFacts(answer string, evidenceTokens map[string]struct{}, report *model.ValidationReport) float64 {
	if len(evidenceTokens) == 0 {
		report.Issues = append(report.Issues, "no evidence available for fact verification")
		return 0.5
	}

	terms := textutil.SignificantTerms(answer, 2)
	if len(terms) == 0 {
		return 0.5
	}
	matched := 0
	for _, term := range terms {
		if _, ok := evidenceTokens[term]; ok {
			matched++
		}
	}
	score := float64(matched) / float64(len(terms))
	if score < 0.3 {
		report.Issues = append(report.Issues, "many facts in answer not found in evidence")
	} else if score < 0.5 {
		report.Warnings = append(report.Warnings, "some facts in answer may not be from evidence")
	}
	return score
}

// checkRelevance 答案与查询的词项重叠程度。
func (v *Validator) checkRelevance(answer string, q *model.Query, report *model.ValidationReport) float64 {
	if q == nil || q.Cleaned == "" {
		return 0.5
	}
	score := textutil.OverlapRatio(strings.Join(textutil.SignificantTerms(q.Cleaned, 2), " "), answer)
	if score < 0.3 {
		report.Warnings = append(report.Warnings, "answer may not be relevant to query")
	}
	return score
}

// checkCompleteness 按查询类型估计答案是否覆盖了信息需求。
func (v *Validator) checkCompleteness(answer string, q *model.Query) float64 {
	score := 1.0
	if len(answer) < 30 {
		score *= 0.6
	} else if len(answer) < 50 {
		score *= 0.8
	}

	if q == nil {
		return score
	}
	switch q.Type {
	case model.QueryTypeContact:
		// 联系方式类查询的答案应包含数字或邮箱。
		if len(textutil.ExtractNumbers(answer)) == 0 && !strings.Contains(answer, "@") {
			score *= 0.7
		}
	case model.QueryTypeSpecialization:
		// 列举类查询的答案应呈现列表结构。
		if !strings.Contains(answer, ",") && !strings.Contains(answer, "-") {
			score *= 0.7
		}
	}
	return score
}

// joinEvidence 拼接所有证据 chunk 的文本。
func joinEvidence(evidence []*model.Chunk) string {
	parts := make([]string, 0, len(evidence))
	for _, chunk := range evidence {
		if chunk != nil {
			parts = append(parts, chunk.Content)
		}
	}
	return strings.Join(parts, " ")
}

// splitSentences 按句末标点切分文本。
func splitSentences(text string) []string {
	var sentences []string
	for _, s := range sentenceSplitRegex.Split(text, -1) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}
