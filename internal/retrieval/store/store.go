package store

import (
	"context"

	"github.com/kart-io/propintel/internal/model"
)

// FilterSpec 描述检索时的元数据过滤条件。
// 所有非空字段按 AND 组合。
type FilterSpec struct {
	// Section 限定所属章节（如 contact_details）。
	Section string
	// Source 限定来源文档。
	Source string
}

// IsZero 报告过滤条件是否为空。
func (f *FilterSpec) IsZero() bool {
	return f == nil || (f.Section == "" && f.Source == "")
}

// SearchHit 表示一次向量搜索命中。
// Distance 是向量空间中的原始 L2 距离，越小越相似。
type SearchHit struct {
	Chunk    model.Chunk
	Distance float64
}

// CollectionConfig 集合配置。
type CollectionConfig struct {
	// Name 集合名称。
	Name string
	// Description 集合描述。
	Description string
	// Dimension 向量维度。
	Dimension int
}

// VectorStore 定义向量存储接口。
type VectorStore interface {
	// CreateCollection 创建集合（已存在时为空操作）。
	CreateCollection(ctx context.Context, config *CollectionConfig) error

	// Insert 批量插入文档块及其嵌入向量。
	Insert(ctx context.Context, collection string, chunks []*model.Chunk, embeddings [][]float32) ([]string, error)

	// Search 向量相似度搜索，filter 为 nil 时搜索整个集合。
	// 零命中返回空切片，不是错误。
	Search(ctx context.Context, collection string, embedding []float32, topK int, filter *FilterSpec) ([]*SearchHit, error)

	// GetStats 获取集合中的实体数量。
	GetStats(ctx context.Context, collection string) (int64, error)

	// Close 关闭连接。
	Close(ctx context.Context) error
}
