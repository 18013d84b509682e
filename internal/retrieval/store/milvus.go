package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/propintel/internal/model"
	"github.com/kart-io/propintel/pkg/component/milvus"
	apierrors "github.com/kart-io/propintel/pkg/errors"
)

// MilvusStore 实现基于 Milvus 的向量存储。
type MilvusStore struct {
	client *milvus.Client
}

// 确保 MilvusStore 实现了 VectorStore 接口。
var _ VectorStore = (*MilvusStore)(nil)

// NewMilvusStore 创建 Milvus 存储实例。
func NewMilvusStore(client *milvus.Client) *MilvusStore {
	return &MilvusStore{client: client}
}

// CreateCollection 创建 Milvus 集合。
func (s *MilvusStore) CreateCollection(ctx context.Context, config *CollectionConfig) error {
	schema := milvus.ChunkSchema(config.Name, config.Dimension)
	if config.Description != "" {
		schema.Description = config.Description
	}
	if err := s.client.CreateCollection(ctx, schema); err != nil {
		return apierrors.ErrStoreUnavailable.WithCause(err)
	}
	return nil
}

// Insert 批量插入文档块到 Milvus。
func (s *MilvusStore) Insert(ctx context.Context, collection string, chunks []*model.Chunk, embeddings [][]float32) ([]string, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("chunks and embeddings length mismatch: %d != %d", len(chunks), len(embeddings))
	}

	metadata := map[string][]any{
		"chunk_id": make([]any, len(chunks)),
		"content":  make([]any, len(chunks)),
		"section":  make([]any, len(chunks)),
		"source":   make([]any, len(chunks)),
	}

	for i, chunk := range chunks {
		metadata["chunk_id"][i] = chunk.ID
		metadata["content"][i] = chunk.Content
		metadata["section"][i] = chunk.Section
		metadata["source"][i] = chunk.Source
	}

	ids, err := s.client.Insert(ctx, collection, &milvus.InsertData{
		Embeddings: embeddings,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.WithCause(err)
	}

	stringIDs := make([]string, len(ids))
	for i, id := range ids {
		stringIDs[i] = fmt.Sprintf("%d", id)
	}
	return stringIDs, nil
}

// chunkOutputFields 是搜索时需要返回的元数据字段。
var chunkOutputFields = []string{"chunk_id", "content", "section", "source"}

// Search 执行向量相似度搜索。
func (s *MilvusStore) Search(ctx context.Context, collection string, embedding []float32, topK int, filter *FilterSpec) ([]*SearchHit, error) {
	expr := buildFilterExpr(filter)

	results, err := s.client.Search(ctx, collection, embedding, topK, expr, chunkOutputFields)
	if err != nil {
		return nil, apierrors.ErrStoreUnavailable.WithCause(err)
	}

	hits := make([]*SearchHit, 0, len(results))
	for _, r := range results {
		hit := &SearchHit{
			Distance: float64(r.Distance),
		}
		hit.Chunk = model.Chunk{
			ID:      metaString(r.Metadata, "chunk_id"),
			Content: metaString(r.Metadata, "content"),
			Section: metaString(r.Metadata, "section"),
			Source:  metaString(r.Metadata, "source"),
		}
		if hit.Chunk.ID == "" {
			hit.Chunk.ID = fmt.Sprintf("%d", r.ID)
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// buildFilterExpr 将过滤条件转换为 Milvus 布尔表达式。
func buildFilterExpr(filter *FilterSpec) string {
	if filter.IsZero() {
		return ""
	}

	var parts []string
	if filter.Section != "" {
		parts = append(parts, fmt.Sprintf(`section == "%s"`, escapeExprValue(filter.Section)))
	}
	if filter.Source != "" {
		parts = append(parts, fmt.Sprintf(`source == "%s"`, escapeExprValue(filter.Source)))
	}
	return strings.Join(parts, " && ")
}

// escapeExprValue 转义表达式中的引号和反斜杠，防止表达式注入。
func escapeExprValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return v
}

func metaString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

// GetStats 获取集合统计信息。
func (s *MilvusStore) GetStats(ctx context.Context, collection string) (int64, error) {
	count, err := s.client.GetCollectionStats(ctx, collection)
	if err != nil {
		return 0, apierrors.ErrStoreUnavailable.WithCause(err)
	}
	return count, nil
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}
