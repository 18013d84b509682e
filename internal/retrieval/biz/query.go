package biz

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kart-io/logger"
	"github.com/kart-io/propintel/internal/model"
	"github.com/kart-io/propintel/internal/pkg/textutil"
)

// ProcessorConfig 查询处理器配置。
type ProcessorConfig struct {
	// MaxVariants 同义词扩展生成的最大变体数量。
	MaxVariants int
}

// DefaultProcessorConfig 返回默认的处理器配置。
func DefaultProcessorConfig() *ProcessorConfig {
	return &ProcessorConfig{MaxVariants: 3}
}

// synonymTable 房产领域的同义词表，用于查询扩展。
var synonymTable = map[string][]string{
	"apartment":   {"flat", "condo", "unit"},
	"building":    {"complex", "tower", "structure"},
	"commercial":  {"office", "business", "corporate"},
	"residential": {"housing", "living", "home"},
	"location":    {"area", "region", "place"},
	"contact":     {"phone", "email", "reach"},
	"service":     {"offering", "facility", "amenity"},
	"project":     {"development", "scheme", "property"},
	"price":       {"cost", "rate", "pricing"},
	"amenity":     {"facility", "feature", "service"},
	"upcoming":    {"future", "planned", "forthcoming"},
	"running":     {"ongoing", "current", "active"},
	"completed":   {"finished", "delivered", "ready"},
	"tower":       {"block", "building", "wing"},
	"floor":       {"storey", "level", "story"},
	"developer":   {"builder", "constructor", "company"},
}

// synonymTerms 是同义词表键的固定遍历顺序。
var synonymTerms = func() []string {
	terms := make([]string, 0, len(synonymTable))
	for term := range synonymTable {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}()

// typeRule 查询类型检测规则。规则按声明顺序匹配，命中即停。
type typeRule struct {
	queryType model.QueryType
	pattern   *regexp.Regexp
}

// typeRules 的顺序即优先级：位置类规则放在联系方式之前，
// 避免 "where is the office" 因 office 一词被误判为 contact。
var typeRules = []typeRule{
	{model.QueryTypeLocation, regexp.MustCompile(`where|which area|which location|service area|location of|area of`)},
	{model.QueryTypeContact, regexp.MustCompile(`contact|phone|email|reach|call|connect|address|office|branch`)},
	{model.QueryTypeTiming, regexp.MustCompile(`timing|hours|when|schedule|open|close`)},
	{model.QueryTypeSocial, regexp.MustCompile(`social|facebook|twitter|linkedin|instagram|youtube`)},
	{model.QueryTypeSpecialization, regexp.MustCompile(`specializ|specialis|service|offer|build`)},
	{model.QueryTypeAbout, regexp.MustCompile(`about|tell me|information|who|what is`)},
}

// sectionByType 查询类型到建议章节过滤的映射。generic 不建议任何过滤。
var sectionByType = map[model.QueryType]string{
	model.QueryTypeContact:        model.SectionContactDetails,
	model.QueryTypeTiming:         model.SectionContactDetails,
	model.QueryTypeSocial:         model.SectionSocialMedia,
	model.QueryTypeSpecialization: model.SectionCompanyInfo,
	model.QueryTypeAbout:          model.SectionCompanyInfo,
	model.QueryTypeLocation:       model.SectionCompanyInfo,
}

// knownCities 已知城市列表，用于实体抽取。
var knownCities = []string{
	"Mumbai", "Delhi", "Bangalore", "Hyderabad", "Kolkata",
	"Chennai", "Pune", "Ahmedabad", "Jaipur", "Surat",
	"Asansol", "Bandel", "Hooghly", "Durgapur", "Lathbagan",
	"Kailash Nagar", "Madhyamgram", "New Town", "Rajarhat",
}

// cleanRegex 清洗时保留小写字母、数字、空白和基础标点。
var cleanRegex = regexp.MustCompile(`[^a-z0-9\s.,?-]`)

// Processor 对原始查询做清洗、分类、扩展和实体抽取。
// 对任何输入都不返回错误，空查询交由下游检索器拒绝。
type Processor struct {
	config *ProcessorConfig
}

// NewProcessor 创建查询处理器实例。
func NewProcessor(config *ProcessorConfig) *Processor {
	if config == nil {
		config = DefaultProcessorConfig()
	}
	if config.MaxVariants <= 0 {
		config.MaxVariants = 3
	}
	return &Processor{config: config}
}

// Process 处理原始查询并返回结构化的 Query。
// 分类只依赖清洗后的文本，同一输入的结果完全确定。
func (p *Processor) Process(raw string) *model.Query {
	cleaned := p.Clean(raw)
	queryType := p.DetectType(cleaned)

	q := &model.Query{
		Original:         raw,
		Cleaned:          cleaned,
		Type:             queryType,
		Variants:         p.Expand(cleaned),
		Entities:         p.ExtractEntities(raw),
		SuggestedSection: sectionByType[queryType],
	}

	logger.Debugw("query processed",
		"type", q.Type,
		"variants", len(q.Variants),
		"entities", len(q.Entities),
		"section", q.SuggestedSection,
	)
	return q
}

// Clean 清洗查询文本：转小写、压缩空白、去除特殊字符。
func (p *Processor) Clean(raw string) string {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = cleanRegex.ReplaceAllString(cleaned, "")
	return textutil.CollapseWhitespace(cleaned)
}

// DetectType 按规则顺序检测查询类型，首个命中的规则生效。
// 无规则命中时回退为 generic。
func (p *Processor) DetectType(cleaned string) model.QueryType {
	lowered := strings.ToLower(cleaned)
	for _, rule := range typeRules {
		if rule.pattern.MatchString(lowered) {
			return rule.queryType
		}
	}
	return model.QueryTypeGeneric
}

// Expand 基于同义词表生成查询变体，最多 MaxVariants 条。
// 变体是替换后的新字符串，原查询不被修改。
func (p *Processor) Expand(cleaned string) []string {
	if cleaned == "" {
		return nil
	}

	var variants []string
	seen := map[string]struct{}{cleaned: {}}

	// 按词表的固定顺序遍历，变体截断结果与 map 迭代顺序无关。
	for _, term := range synonymTerms {
		if !containsWord(cleaned, term) {
			continue
		}
		for _, synonym := range synonymTable[term] {
			expanded := replaceWord(cleaned, term, synonym)
			if _, ok := seen[expanded]; ok {
				continue
			}
			seen[expanded] = struct{}{}
			variants = append(variants, expanded)
			if len(variants) >= p.config.MaxVariants {
				return variants
			}
		}
	}
	return variants
}

// ExtractEntities 抽取查询中的候选实体：连续首字母大写的词组与已知城市。
// 仅作为辅助元数据，抽取失败不影响检索正确性。
func (p *Processor) ExtractEntities(raw string) []string {
	var entities []string
	seen := make(map[string]struct{})

	for _, span := range textutil.ExtractCapitalizedSpans(raw) {
		key := strings.ToLower(span)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		entities = append(entities, span)
	}

	lowered := strings.ToLower(raw)
	for _, city := range knownCities {
		if !strings.Contains(lowered, strings.ToLower(city)) {
			continue
		}
		key := strings.ToLower(city)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		entities = append(entities, city)
	}
	return entities
}

// MultiQueries 生成用于多路检索的查询列表，首条始终是清洗后的原查询。
// 按类型追加一条改写查询，提高召回。
func (p *Processor) MultiQueries(q *model.Query, limit int) []string {
	if limit <= 0 {
		limit = p.config.MaxVariants
	}

	queries := []string{q.Cleaned}
	for _, v := range q.Variants {
		if len(queries) >= limit {
			return queries
		}
		if v != q.Cleaned {
			queries = append(queries, v)
		}
	}

	if reformulated := reformulateByType(q.Type); reformulated != "" && len(queries) < limit {
		if !textutil.ContainsString(queries, reformulated) {
			queries = append(queries, reformulated)
		}
	}
	return queries
}

// reformulateByType 按查询类型给出一条聚焦改写。
func reformulateByType(queryType model.QueryType) string {
	switch queryType {
	case model.QueryTypeSpecialization:
		return "services and specializations offered"
	case model.QueryTypeContact:
		return "contact information phone email address"
	case model.QueryTypeLocation:
		return "service areas operational locations regions"
	case model.QueryTypeAbout:
		return "company overview description background"
	default:
		return ""
	}
}

// containsWord 判断文本是否包含完整的词 term。
func containsWord(text, term string) bool {
	for _, tok := range strings.Fields(text) {
		if strings.Trim(tok, ".,?-") == term {
			return true
		}
	}
	return false
}

// replaceWord 按完整词边界替换 term 为 synonym。
func replaceWord(text, term, synonym string) string {
	fields := strings.Fields(text)
	for i, tok := range fields {
		if strings.Trim(tok, ".,?-") == term {
			fields[i] = strings.Replace(tok, term, synonym, 1)
		}
	}
	return strings.Join(fields, " ")
}

