package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 检索响应的 Redis 缓存。
// 缓存故障一律降级为未命中，绝不让缓存问题阻断检索。
type QueryCache struct {
	redis  *goredis.Client
	config *QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis *goredis.Client, config *QueryCacheConfig) *QueryCache {
	if config == nil {
		config = &QueryCacheConfig{
			Enabled:   false,
			TTL:       5 * time.Minute,
			KeyPrefix: "retrieval:",
		}
	}
	return &QueryCache{
		redis:  redis,
		config: config,
	}
}

// cacheKey 基于查询文本和选项指纹生成缓存键。
// 不同检索参数的同一查询必须命中不同的缓存条目。
func (c *QueryCache) cacheKey(query, fingerprint string) string {
	hash := sha256.Sum256([]byte(query + "|" + fingerprint))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Get 读取缓存的检索响应，未命中或出错均返回 (nil, false)。
func (c *QueryCache) Get(ctx context.Context, query, fingerprint string) (*RetrievalResponse, bool) {
	if !c.config.Enabled || c.redis == nil {
		return nil, false
	}

	key := c.cacheKey(query, fingerprint)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			logger.Warnw("failed to get from query cache", "error", err.Error(), "key", key)
		}
		return nil, false
	}

	var response RetrievalResponse
	if err := json.Unmarshal(data, &response); err != nil {
		logger.Warnw("failed to unmarshal cached response", "error", err.Error(), "key", key)
		// 损坏的缓存条目直接删除
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}

	logger.Debugw("query cache hit", "key", key, "results", len(response.Results))
	return &response, true
}

// Set 写入检索响应缓存，失败仅记录日志。
func (c *QueryCache) Set(ctx context.Context, query, fingerprint string, response *RetrievalResponse) {
	if !c.config.Enabled || c.redis == nil || response == nil {
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		logger.Warnw("failed to marshal response for caching", "error", err.Error())
		return
	}

	key := c.cacheKey(query, fingerprint)
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set query cache", "error", err.Error(), "key", key)
		return
	}
	logger.Debugw("cached retrieval response", "key", key, "ttl", c.config.TTL)
}

// Clear 清除所有检索缓存条目，返回删除的数量。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.config.Enabled || c.redis == nil {
		return 0, nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("scan query cache: %w", err)
	}

	logger.Infow("cleared query cache", "deleted_count", deleted)
	return deleted, nil
}

// Stats 返回缓存统计信息。
func (c *QueryCache) Stats(ctx context.Context) (map[string]interface{}, error) {
	if !c.config.Enabled || c.redis == nil {
		return map[string]interface{}{"enabled": false}, nil
	}

	pattern := c.config.KeyPrefix + "*"
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"enabled":    true,
		"key_count":  keyCount,
		"ttl":        c.config.TTL.String(),
		"key_prefix": c.config.KeyPrefix,
	}, nil
}
