package biz

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/propintel/internal/model"
)

// 辅助函数：创建测试用 Redis 客户端
func setupTestRedis(t *testing.T) *goredis.Client {
	client := goredis.NewClient(&goredis.Options{
		Addr: "localhost:6379",
		DB:   15, // 使用测试专用数据库
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis 不可用，跳过测试")
	}
	client.FlushDB(ctx)
	return client
}

func cachedResponse(query string) *RetrievalResponse {
	return &RetrievalResponse{
		Query: &model.Query{Original: query, Cleaned: query, Type: model.QueryTypeGeneric},
		Results: []*model.RankedResult{
			{Chunk: model.Chunk{ID: "c1", Content: "cached content"}, Score: 0.9, Rank: 1},
		},
		Count:    1,
		Strategy: string(StrategyHybrid),
	}
}

func TestQueryCache_SetAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewQueryCache(client, &QueryCacheConfig{
		Enabled:   true,
		TTL:       time.Minute,
		KeyPrefix: "test:retrieval:",
	})
	ctx := context.Background()

	cache.Set(ctx, "services offered", "k=5", cachedResponse("services offered"))

	got, ok := cache.Get(ctx, "services offered", "k=5")
	require.True(t, ok)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, "c1", got.Results[0].Chunk.ID)
}

func TestQueryCache_FingerprintSeparatesEntries(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewQueryCache(client, &QueryCacheConfig{
		Enabled:   true,
		TTL:       time.Minute,
		KeyPrefix: "test:retrieval:",
	})
	ctx := context.Background()

	cache.Set(ctx, "services offered", "k=5", cachedResponse("services offered"))

	// 同一查询不同选项指纹不得命中同一条目
	_, ok := cache.Get(ctx, "services offered", "k=10")
	assert.False(t, ok)
}

func TestQueryCache_Miss(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewQueryCache(client, &QueryCacheConfig{
		Enabled:   true,
		TTL:       time.Minute,
		KeyPrefix: "test:retrieval:",
	})

	got, ok := cache.Get(context.Background(), "never cached", "k=5")
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestQueryCache_Disabled(t *testing.T) {
	cache := NewQueryCache(nil, &QueryCacheConfig{Enabled: false})
	ctx := context.Background()

	// 禁用时 Set 是空操作，Get 永远未命中，不触碰 Redis
	cache.Set(ctx, "q", "fp", cachedResponse("q"))
	_, ok := cache.Get(ctx, "q", "fp")
	assert.False(t, ok)
}

func TestQueryCache_NilConfig(t *testing.T) {
	cache := NewQueryCache(nil, nil)
	assert.False(t, cache.config.Enabled)
	assert.Equal(t, 5*time.Minute, cache.config.TTL)
	assert.Equal(t, "retrieval:", cache.config.KeyPrefix)
}

func TestQueryCache_Clear(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewQueryCache(client, &QueryCacheConfig{
		Enabled:   true,
		TTL:       time.Minute,
		KeyPrefix: "test:retrieval:",
	})
	ctx := context.Background()

	cache.Set(ctx, "q1", "fp", cachedResponse("q1"))
	cache.Set(ctx, "q2", "fp", cachedResponse("q2"))

	deleted, err := cache.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, ok := cache.Get(ctx, "q1", "fp")
	assert.False(t, ok)
}

func TestQueryCache_Stats(t *testing.T) {
	client := setupTestRedis(t)
	defer func() { _ = client.Close() }()

	cache := NewQueryCache(client, &QueryCacheConfig{
		Enabled:   true,
		TTL:       time.Minute,
		KeyPrefix: "test:retrieval:",
	})
	ctx := context.Background()

	cache.Set(ctx, "q1", "fp", cachedResponse("q1"))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 1, stats["key_count"])
}
