package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/propintel/internal/model"
)

func TestProcessor_DetectType(t *testing.T) {
	p := NewProcessor(nil)

	tests := []struct {
		name     string
		query    string
		expected model.QueryType
	}{
		{"专业领域查询", "what are the specializations of orbit infra?", model.QueryTypeSpecialization},
		{"联系方式查询", "how can i contact the company?", model.QueryTypeContact},
		{"电话查询", "what is the phone number", model.QueryTypeContact},
		{"位置查询优先于 contact", "where is the office located?", model.QueryTypeLocation},
		{"营业时间查询", "what are the business hours?", model.QueryTypeTiming},
		{"社交媒体查询", "do they have a facebook page?", model.QueryTypeSocial},
		{"公司介绍查询", "tell me more regarding the firm", model.QueryTypeAbout},
		{"无规则命中回退 generic", "residential complexes in kolkata", model.QueryTypeGeneric},
		{"空查询回退 generic", "", model.QueryTypeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := p.Process(tt.query)
			assert.Equal(t, tt.expected, q.Type)
		})
	}
}

func TestProcessor_Clean(t *testing.T) {
	p := NewProcessor(nil)

	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"转小写并保留标点", "What Are The Specializations?", "what are the specializations?"},
		{"压缩空白", "  contact \t the   company  ", "contact the company"},
		{"去除特殊字符", "email: info@orbit.com!!", "email infoorbit.com"},
		{"空白输入得到空串", "   \t  ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Clean(tt.raw))
		})
	}
}

func TestProcessor_SectionSuggestion(t *testing.T) {
	p := NewProcessor(nil)

	tests := []struct {
		name    string
		query   string
		section string
	}{
		{"contact 映射到联系章节", "contact number please", model.SectionContactDetails},
		{"timing 映射到联系章节", "opening hours today", model.SectionContactDetails},
		{"social 映射到社媒章节", "linkedin profile link", model.SectionSocialMedia},
		{"specialization 映射到公司信息", "services offered by the builder", model.SectionCompanyInfo},
		{"generic 不建议过滤", "green valley kolkata", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := p.Process(tt.query)
			assert.Equal(t, tt.section, q.SuggestedSection)
		})
	}
}

func TestProcessor_Expand(t *testing.T) {
	p := NewProcessor(&ProcessorConfig{MaxVariants: 3})

	t.Run("同义词替换生成变体", func(t *testing.T) {
		variants := p.Expand("contact the developer")
		assert.NotEmpty(t, variants)
		assert.LessOrEqual(t, len(variants), 3)
		for _, v := range variants {
			assert.NotEqual(t, "contact the developer", v)
		}
	})

	t.Run("变体数量不超过上限", func(t *testing.T) {
		// apartment、tower、floor 都在词表里，潜在变体远超 3 条
		variants := p.Expand("apartment tower floor price")
		assert.Len(t, variants, 3)
	})

	t.Run("无词表命中时无变体", func(t *testing.T) {
		assert.Empty(t, p.Expand("xyzzy quux"))
	})

	t.Run("原查询不被修改", func(t *testing.T) {
		original := "contact the developer"
		_ = p.Expand(original)
		assert.Equal(t, "contact the developer", original)
	})
}

func TestProcessor_ExtractEntities(t *testing.T) {
	p := NewProcessor(nil)

	t.Run("抽取大写词组与城市", func(t *testing.T) {
		entities := p.ExtractEntities("Tell me about Orbit Infra in Kolkata")
		assert.Contains(t, entities, "Orbit Infra")
		assert.Contains(t, entities, "Kolkata")
	})

	t.Run("城市匹配忽略大小写", func(t *testing.T) {
		entities := p.ExtractEntities("projects in mumbai")
		assert.Contains(t, entities, "Mumbai")
	})

	t.Run("无实体输入返回空", func(t *testing.T) {
		assert.Empty(t, p.ExtractEntities("what are the services"))
	})
}

func TestProcessor_Process_Idempotent(t *testing.T) {
	p := NewProcessor(nil)

	raw := "What are the specializations of Orbit Infra in Kolkata?"
	first := p.Process(raw)
	second := p.Process(raw)

	assert.Equal(t, first, second)

	// 对清洗结果再处理，分类与清洗保持稳定
	again := p.Process(first.Cleaned)
	assert.Equal(t, first.Cleaned, again.Cleaned)
	assert.Equal(t, first.Type, again.Type)
}

func TestProcessor_Process_EmptyInput(t *testing.T) {
	p := NewProcessor(nil)

	q := p.Process("   ")
	assert.Equal(t, model.QueryTypeGeneric, q.Type)
	assert.Empty(t, q.Cleaned)
	assert.Empty(t, q.Variants)
	assert.Empty(t, q.Entities)
	assert.Empty(t, q.SuggestedSection)
}

func TestProcessor_MultiQueries(t *testing.T) {
	p := NewProcessor(nil)

	t.Run("首条始终是清洗后的原查询", func(t *testing.T) {
		q := p.Process("contact the developer")
		queries := p.MultiQueries(q, 3)
		assert.Equal(t, q.Cleaned, queries[0])
		assert.LessOrEqual(t, len(queries), 3)
	})

	t.Run("按类型追加改写查询", func(t *testing.T) {
		q := p.Process("how can i reach you")
		queries := p.MultiQueries(q, 5)
		assert.Contains(t, queries, "contact information phone email address")
	})
}
