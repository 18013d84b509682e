package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/propintel/internal/retrieval/biz"
	"github.com/kart-io/propintel/internal/retrieval/handler"
	"github.com/kart-io/propintel/internal/retrieval/store"
	"github.com/kart-io/propintel/pkg/app"
	"github.com/kart-io/propintel/pkg/component/milvus"
	"github.com/kart-io/propintel/pkg/llm"
	"github.com/kart-io/propintel/pkg/llm/resilience"
	"github.com/kart-io/propintel/pkg/pool"

	// 导入嵌入供应商以自动注册
	_ "github.com/kart-io/propintel/pkg/llm/ollama"
	_ "github.com/kart-io/propintel/pkg/llm/openai"
)

const (
	appName        = "propintel-retrieval"
	appDescription = `PropIntel Retrieval Service

The retrieval and ranking service for the PropIntel knowledge base.

This server provides:
  - Query processing with type detection and synonym expansion
  - Vector similarity search over Milvus collections
  - Multi-strategy result ranking (relevance, diversity, coverage, MMR, hybrid)
  - Answer validation against retrieval evidence`
)

// NewApp creates a new application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the retrieval service with the given options.
func Run(opts *Options) error {
	// 1. 初始化日志
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting retrieval service...")

	// 2. 初始化协程池
	if err := pool.InitGlobalWithConfig(poolConfig(opts)); err != nil {
		return fmt.Errorf("failed to initialize worker pools: %w", err)
	}
	defer func() { _ = pool.CloseGlobal() }()

	// 3. 初始化 Milvus 客户端与向量存储
	milvusClient, err := milvus.New(opts.Milvus)
	if err != nil {
		return fmt.Errorf("failed to initialize milvus: %w", err)
	}
	defer func() { _ = milvusClient.Close(context.Background()) }()
	logger.Info("Milvus client initialized")

	// 默认集合与自动路由的目标集合都要在启动时就绪
	vectorStore := store.NewMilvusStore(milvusClient)
	for _, name := range bootstrapCollections(opts) {
		if err := vectorStore.CreateCollection(context.Background(), &store.CollectionConfig{
			Name:        name,
			Description: "PropIntel knowledge base chunks",
			Dimension:   opts.Retrieval.EmbeddingDim,
		}); err != nil {
			return fmt.Errorf("failed to ensure collection %q: %w", name, err)
		}
	}

	// 4. 初始化 Redis 客户端（缓存禁用时为 nil）
	var redisClient *goredis.Client
	if opts.Cache.Enabled {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:         opts.Cache.Redis.Addr(),
			Password:     opts.Cache.Redis.Password,
			DB:           opts.Cache.Redis.Database,
			MaxRetries:   opts.Cache.Redis.MaxRetries,
			PoolSize:     opts.Cache.Redis.PoolSize,
			MinIdleConns: opts.Cache.Redis.MinIdleConns,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			// 缓存是可选依赖，连不上只降级不阻断启动
			logger.Warnw("Redis unreachable, query cache disabled", "error", err.Error())
			redisClient = nil
		}
		cancel()
		defer func() {
			if redisClient != nil {
				_ = redisClient.Close()
			}
		}()
	}

	// 5. 初始化嵌入供应商：工厂创建，可选备用供应商，熔断重试包装，再加 Redis 缓存
	embedder, err := llm.NewEmbeddingProvider(opts.Embedding.Provider, opts.Embedding.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if fallbackConfig := opts.Embedding.FallbackConfigMap(); fallbackConfig != nil {
		fallback, err := llm.NewEmbeddingProvider(opts.Embedding.FallbackProvider, fallbackConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize fallback embedding provider: %w", err)
		}
		embedder, err = llm.NewFallbackEmbeddingProvider(embedder, fallback)
		if err != nil {
			return fmt.Errorf("failed to chain embedding providers: %w", err)
		}
	}
	var provider llm.EmbeddingProvider = resilience.NewResilientEmbeddingProvider(embedder, nil, nil)
	if redisClient != nil {
		provider = llm.NewCachedEmbeddingProvider(provider, redisClient, nil)
	}
	logger.Infow("Embedding provider initialized", "provider", opts.Embedding.Provider, "model", opts.Embedding.Model)

	// 6. 初始化 Biz 层
	processor := biz.NewProcessor(&biz.ProcessorConfig{MaxVariants: opts.Retrieval.MaxVariants})
	retriever := biz.NewRetriever(vectorStore, provider, &biz.RetrieverConfig{
		Collection: opts.Retrieval.Collection,
		TopK:       opts.Retrieval.TopK,
	})
	ranker := biz.NewRanker()

	// 校验关闭时 validator 为 nil，Handler 对校验请求直接拒绝
	var validator *biz.Validator
	if opts.Retrieval.EnableValidation {
		validator = biz.NewValidator(nil)
	}

	collectionRouter := biz.NewCollectionRouter(&biz.RouterConfig{
		CompanyCollection: opts.Retrieval.CompanyCollection,
		ProjectCollection: opts.Retrieval.ProjectCollection,
		CompanyNames:      opts.Retrieval.CompanyNames,
		ProjectNames:      opts.Retrieval.ProjectNames,
	})

	var queryCache *biz.QueryCache
	if redisClient != nil {
		queryCache = biz.NewQueryCache(redisClient, &biz.QueryCacheConfig{
			Enabled:   opts.Cache.Enabled,
			TTL:       opts.Cache.TTL,
			KeyPrefix: opts.Cache.KeyPrefix,
		})
	}

	orchestrator := biz.NewOrchestrator(processor, retriever, ranker, validator, collectionRouter, queryCache, &biz.OrchestratorConfig{
		TopK:      opts.Retrieval.TopK,
		MinScore:  opts.Retrieval.MinScore,
		Strategy:  opts.Retrieval.Strategy,
		AutoRoute: opts.Retrieval.AutoRoute,
	})
	logger.Info("Retrieval pipeline initialized")

	// 7. 初始化 Handler 层并启动服务器
	retrievalHandler := handler.NewRetrievalHandler(orchestrator, validator, queryCache, vectorStore)

	return RunServer(opts.HTTP, retrievalHandler)
}

// poolConfig 按配置推导协程池参数，批量检索的并发上限由选项控制。
func poolConfig(opts *Options) *pool.GlobalConfig {
	config := pool.DefaultGlobalConfig()
	config.RetrievalPool.Capacity = opts.Retrieval.BatchConcurrency
	return config
}

// bootstrapCollections 返回启动时需要确保存在的集合，去重保序。
// 自动路由开启时，路由目标集合同样需要就绪。
func bootstrapCollections(opts *Options) []string {
	names := []string{opts.Retrieval.Collection}
	if opts.Retrieval.AutoRoute {
		names = append(names, opts.Retrieval.CompanyCollection, opts.Retrieval.ProjectCollection)
	}

	seen := make(map[string]struct{}, len(names))
	unique := names[:0]
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		unique = append(unique, name)
	}
	return unique
}
