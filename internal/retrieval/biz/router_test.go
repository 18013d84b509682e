package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionRouter_Route(t *testing.T) {
	r := NewCollectionRouter(nil)

	tests := []struct {
		name     string
		query    string
		expected string
	}{
		{"项目关键词路由到项目集合", "how many towers in the upcoming project", "property_projects"},
		{"公司关键词路由到公司集合", "contact email and phone of the company", "property_companies"},
		{"无关键词回退公司集合", "general greeting hello there", "property_companies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Route(tt.query))
		})
	}
}

func TestCollectionRouter_RouteWithConfidence(t *testing.T) {
	r := NewCollectionRouter(&RouterConfig{
		CompanyCollection: "property_companies",
		ProjectCollection: "property_projects",
		ProjectNames:      []string{"Kabi Tirtha"},
		CompanyNames:      []string{"Orbit Infra"},
	})

	t.Run("项目名称命中给高置信度", func(t *testing.T) {
		decision := r.RouteWithConfidence("details of kabi tirtha")
		assert.Equal(t, "property_projects", decision.Collection)
		assert.GreaterOrEqual(t, decision.Confidence, 0.8)
	})

	t.Run("公司名称命中给高置信度", func(t *testing.T) {
		decision := r.RouteWithConfidence("tell me about orbit infra")
		assert.Equal(t, "property_companies", decision.Collection)
		assert.GreaterOrEqual(t, decision.Confidence, 0.8)
	})

	t.Run("模糊查询回退公司集合并压低置信度", func(t *testing.T) {
		decision := r.RouteWithConfidence("hello")
		assert.Equal(t, "property_companies", decision.Collection)
		assert.InDelta(t, 0.3, decision.Confidence, 1e-9)
	})

	t.Run("置信度不超过 1", func(t *testing.T) {
		decision := r.RouteWithConfidence("kabi tirtha project tower floor construction upcoming")
		assert.LessOrEqual(t, decision.Confidence, 1.0)
	})
}

func TestCollectionRouter_ShouldQueryBoth(t *testing.T) {
	r := NewCollectionRouter(nil)

	// 模糊查询双方得分接近，应同时检索两个集合
	assert.True(t, r.ShouldQueryBoth("hello there", 0.5))
	// 明确的项目查询只检索项目集合
	assert.False(t, r.ShouldQueryBoth("upcoming project tower floor construction status", 0.5))
}
