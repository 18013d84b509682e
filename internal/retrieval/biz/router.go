package biz

import (
	"regexp"
	"strings"

	"github.com/kart-io/logger"
)

// RouterConfig 集合路由配置。
type RouterConfig struct {
	// CompanyCollection 公司信息集合名称。
	CompanyCollection string
	// ProjectCollection 项目信息集合名称。
	ProjectCollection string
	// ProjectNames 额外的项目名称，用于精确路由。
	ProjectNames []string
	// CompanyNames 额外的公司名称，用于精确路由。
	CompanyNames []string
}

// DefaultRouterConfig 返回默认的路由配置。
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		CompanyCollection: "property_companies",
		ProjectCollection: "property_projects",
	}
}

// projectKeywords 指向项目集合的关键词。
var projectKeywords = []string{
	"project", "tower", "floor", "storey", "upcoming", "running",
	"completed", "development", "construction", "block",
	"wing", "flat", "apartment",
}

// companyKeywords 指向公司集合的关键词。
var companyKeywords = []string{
	"company", "contact", "email", "phone", "call", "reach",
	"specialize", "specialization", "firm", "office", "address",
	"social media", "facebook", "linkedin", "instagram",
	"website", "timing", "hours", "schedule",
}

// RouteDecision 路由结果与置信度。
type RouteDecision struct {
	Collection   string  `json:"collection"`
	Confidence   float64 `json:"confidence"`
	CompanyScore float64 `json:"company_score"`
	ProjectScore float64 `json:"project_score"`
}

// CollectionRouter 根据查询内容决定检索哪个集合。
// 明确命中项目或公司名称时直接路由，否则按关键词计分，
// 难以区分时回退到公司集合。
type CollectionRouter struct {
	config       *RouterConfig
	projectRegex *regexp.Regexp
	companyRegex *regexp.Regexp
	projectNames *regexp.Regexp
	companyNames *regexp.Regexp
}

// NewCollectionRouter 创建集合路由器实例。
func NewCollectionRouter(config *RouterConfig) *CollectionRouter {
	if config == nil {
		config = DefaultRouterConfig()
	}
	return &CollectionRouter{
		config:       config,
		projectRegex: keywordRegexp(projectKeywords),
		companyRegex: keywordRegexp(companyKeywords),
		projectNames: nameRegexp(config.ProjectNames),
		companyNames: nameRegexp(config.CompanyNames),
	}
}

// Route 返回查询应当命中的集合名称。
func (r *CollectionRouter) Route(query string) string {
	return r.RouteWithConfidence(query).Collection
}

// RouteWithConfidence 路由并给出置信度。
// 名称精确命中贡献 0.8，关键词每命中一次贡献 0.2，上限 0.6。
func (r *CollectionRouter) RouteWithConfidence(query string) *RouteDecision {
	lowered := strings.ToLower(query)

	projectScore := 0.0
	companyScore := 0.0
	if r.projectNames != nil && r.projectNames.MatchString(lowered) {
		projectScore += 0.8
	}
	if r.companyNames != nil && r.companyNames.MatchString(lowered) {
		companyScore += 0.8
	}

	projectMatches := len(r.projectRegex.FindAllString(lowered, -1))
	companyMatches := len(r.companyRegex.FindAllString(lowered, -1))
	projectScore += min(float64(projectMatches)*0.2, 0.6)
	companyScore += min(float64(companyMatches)*0.2, 0.6)

	decision := &RouteDecision{
		CompanyScore: companyScore,
		ProjectScore: projectScore,
	}
	switch {
	case projectScore > companyScore:
		decision.Collection = r.config.ProjectCollection
		decision.Confidence = min(projectScore, 1.0)
	case companyScore > projectScore:
		decision.Collection = r.config.CompanyCollection
		decision.Confidence = min(companyScore, 1.0)
	default:
		// 无法区分时回退到公司集合，置信度给低。
		decision.Collection = r.config.CompanyCollection
		decision.Confidence = 0.3
	}

	logger.Debugw("query routed",
		"collection", decision.Collection,
		"confidence", decision.Confidence,
	)
	return decision
}

// ShouldQueryBoth 判断是否应同时检索两个集合。
// 置信度过低或双方得分接近时返回 true。
func (r *CollectionRouter) ShouldQueryBoth(query string, threshold float64) bool {
	decision := r.RouteWithConfidence(query)
	if decision.Confidence < threshold {
		return true
	}
	diff := decision.ProjectScore - decision.CompanyScore
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.3
}

// keywordRegexp 把关键词列表编译为交替匹配的正则。
func keywordRegexp(keywords []string) *regexp.Regexp {
	escaped := make([]string, len(keywords))
	for i, kw := range keywords {
		escaped[i] = regexp.QuoteMeta(kw)
	}
	return regexp.MustCompile(strings.Join(escaped, "|"))
}

// nameRegexp 把名称列表编译为正则，空列表返回 nil。
func nameRegexp(names []string) *regexp.Regexp {
	if len(names) == 0 {
		return nil
	}
	escaped := make([]string, len(names))
	for i, name := range names {
		escaped[i] = regexp.QuoteMeta(strings.ToLower(name))
	}
	return regexp.MustCompile(strings.Join(escaped, "|"))
}
