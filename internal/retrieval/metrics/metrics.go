// Package metrics 提供检索服务的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// PipelineMetrics 检索管道业务指标。
type PipelineMetrics struct {
	// 查询指标
	queriesTotal       uint64 // 总查询次数
	queriesCacheHits   uint64 // 缓存命中次数
	queriesCacheMisses uint64 // 缓存未命中次数
	queriesErrors      uint64 // 查询错误次数

	// 检索指标
	retrievalTotal       uint64  // 总检索次数
	retrievalDuration    float64 // 检索总耗时（秒）
	retrievalErrors      uint64  // 检索错误次数
	retrievalZeroResults uint64  // 零命中次数

	// 嵌入调用指标
	embedCallsTotal    uint64  // 嵌入总调用次数
	embedCallsDuration float64 // 嵌入调用总耗时（秒）
	embedCallsErrors   uint64  // 嵌入调用错误次数

	// 校验指标
	validationsTotal  uint64 // 总校验次数
	validationsFailed uint64 // 校验未通过次数

	// 批量检索指标
	batchTotal   uint64 // 批量请求次数
	batchQueries uint64 // 批量请求包含的查询总数

	startTime  time.Time
	durationMu sync.Mutex
}

// 全局指标实例。
var (
	globalMetrics *PipelineMetrics
	metricsOnce   sync.Once
)

// GetPipelineMetrics 获取全局指标实例。
func GetPipelineMetrics() *PipelineMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &PipelineMetrics{
			startTime: time.Now(),
		}
	})
	return globalMetrics
}

// RecordQuery 记录查询。
func (m *PipelineMetrics) RecordQuery(cacheHit bool, err error) {
	atomic.AddUint64(&m.queriesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.queriesErrors, 1)
		return
	}
	if cacheHit {
		atomic.AddUint64(&m.queriesCacheHits, 1)
	} else {
		atomic.AddUint64(&m.queriesCacheMisses, 1)
	}
}

// RecordRetrieval 记录一次向量检索。
func (m *PipelineMetrics) RecordRetrieval(duration time.Duration, resultCount int, err error) {
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}
	if resultCount == 0 {
		atomic.AddUint64(&m.retrievalZeroResults, 1)
	}

	m.durationMu.Lock()
	m.retrievalDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordEmbedding 记录一次嵌入调用。
func (m *PipelineMetrics) RecordEmbedding(duration time.Duration, err error) {
	atomic.AddUint64(&m.embedCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.embedCallsErrors, 1)
		return
	}

	m.durationMu.Lock()
	m.embedCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordValidation 记录一次答案校验。
func (m *PipelineMetrics) RecordValidation(valid bool) {
	atomic.AddUint64(&m.validationsTotal, 1)
	if !valid {
		atomic.AddUint64(&m.validationsFailed, 1)
	}
}

// RecordBatch 记录一次批量检索。
func (m *PipelineMetrics) RecordBatch(queries int) {
	atomic.AddUint64(&m.batchTotal, 1)
	atomic.AddUint64(&m.batchQueries, uint64(queries))
}

// Export 导出 Prometheus 文本格式指标。
func (m *PipelineMetrics) Export(namespace, subsystem string) string {
	var sb strings.Builder
	prefix := namespace
	if subsystem != "" {
		prefix = prefix + "_" + subsystem
	}

	writeCounter := func(name, help string, value uint64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s counter\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %d\n\n", prefix, name, value))
	}
	writeGauge := func(name, help string, value float64) {
		sb.WriteString(fmt.Sprintf("# HELP %s_%s %s\n", prefix, name, help))
		sb.WriteString(fmt.Sprintf("# TYPE %s_%s gauge\n", prefix, name))
		sb.WriteString(fmt.Sprintf("%s_%s %.4f\n\n", prefix, name, value))
	}

	writeCounter("queries_total", "Total number of retrieval queries.", atomic.LoadUint64(&m.queriesTotal))
	writeCounter("queries_cache_hits_total", "Number of cache hits.", atomic.LoadUint64(&m.queriesCacheHits))
	writeCounter("queries_cache_misses_total", "Number of cache misses.", atomic.LoadUint64(&m.queriesCacheMisses))
	writeCounter("queries_errors_total", "Number of query errors.", atomic.LoadUint64(&m.queriesErrors))

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheHitRate := 0.0
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}
	writeGauge("cache_hit_rate", "Cache hit rate (0-1).", cacheHitRate)

	writeCounter("retrieval_total", "Total number of vector searches.", atomic.LoadUint64(&m.retrievalTotal))
	writeCounter("retrieval_errors_total", "Number of vector search errors.", atomic.LoadUint64(&m.retrievalErrors))
	writeCounter("retrieval_zero_results_total", "Number of searches with zero hits.", atomic.LoadUint64(&m.retrievalZeroResults))

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	embedDuration := m.embedCallsDuration
	m.durationMu.Unlock()

	sb.WriteString(fmt.Sprintf("# HELP %s_retrieval_duration_seconds_total Total vector search duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_retrieval_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_retrieval_duration_seconds_total %.6f\n\n", prefix, retrievalDuration))

	writeCounter("embedding_calls_total", "Total number of embedding calls.", atomic.LoadUint64(&m.embedCallsTotal))
	writeCounter("embedding_errors_total", "Number of embedding call errors.", atomic.LoadUint64(&m.embedCallsErrors))

	sb.WriteString(fmt.Sprintf("# HELP %s_embedding_duration_seconds_total Total embedding call duration.\n", prefix))
	sb.WriteString(fmt.Sprintf("# TYPE %s_embedding_duration_seconds_total counter\n", prefix))
	sb.WriteString(fmt.Sprintf("%s_embedding_duration_seconds_total %.6f\n\n", prefix, embedDuration))

	writeCounter("validations_total", "Total number of answer validations.", atomic.LoadUint64(&m.validationsTotal))
	writeCounter("validations_failed_total", "Number of failed answer validations.", atomic.LoadUint64(&m.validationsFailed))

	writeCounter("batch_requests_total", "Total number of batch retrieval requests.", atomic.LoadUint64(&m.batchTotal))
	writeCounter("batch_queries_total", "Total number of queries in batch requests.", atomic.LoadUint64(&m.batchQueries))

	writeGauge("uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *PipelineMetrics) Stats() map[string]interface{} {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	embedDuration := m.embedCallsDuration
	m.durationMu.Unlock()

	cacheHits := atomic.LoadUint64(&m.queriesCacheHits)
	cacheMisses := atomic.LoadUint64(&m.queriesCacheMisses)
	cacheHitRate := 0.0
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total)
	}

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	avgRetrievalDuration := 0.0
	if retrievalTotal > 0 {
		avgRetrievalDuration = retrievalDuration / float64(retrievalTotal)
	}

	embedTotal := atomic.LoadUint64(&m.embedCallsTotal)
	avgEmbedDuration := 0.0
	if embedTotal > 0 {
		avgEmbedDuration = embedDuration / float64(embedTotal)
	}

	validationsTotal := atomic.LoadUint64(&m.validationsTotal)
	validationsFailed := atomic.LoadUint64(&m.validationsFailed)
	validationFailRate := 0.0
	if validationsTotal > 0 {
		validationFailRate = float64(validationsFailed) / float64(validationsTotal)
	}

	return map[string]interface{}{
		"queries": map[string]interface{}{
			"total":          atomic.LoadUint64(&m.queriesTotal),
			"cache_hits":     cacheHits,
			"cache_misses":   cacheMisses,
			"cache_hit_rate": cacheHitRate,
			"errors":         atomic.LoadUint64(&m.queriesErrors),
		},
		"retrieval": map[string]interface{}{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrievalDuration,
			"errors":              atomic.LoadUint64(&m.retrievalErrors),
			"zero_results":        atomic.LoadUint64(&m.retrievalZeroResults),
		},
		"embedding": map[string]interface{}{
			"calls_total":         embedTotal,
			"total_duration_secs": embedDuration,
			"avg_duration_secs":   avgEmbedDuration,
			"errors":              atomic.LoadUint64(&m.embedCallsErrors),
		},
		"validation": map[string]interface{}{
			"total":     validationsTotal,
			"failed":    validationsFailed,
			"fail_rate": validationFailRate,
		},
		"batch": map[string]interface{}{
			"requests": atomic.LoadUint64(&m.batchTotal),
			"queries":  atomic.LoadUint64(&m.batchQueries),
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}

// Reset 重置所有指标。
func (m *PipelineMetrics) Reset() {
	atomic.StoreUint64(&m.queriesTotal, 0)
	atomic.StoreUint64(&m.queriesCacheHits, 0)
	atomic.StoreUint64(&m.queriesCacheMisses, 0)
	atomic.StoreUint64(&m.queriesErrors, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.retrievalZeroResults, 0)
	atomic.StoreUint64(&m.embedCallsTotal, 0)
	atomic.StoreUint64(&m.embedCallsErrors, 0)
	atomic.StoreUint64(&m.validationsTotal, 0)
	atomic.StoreUint64(&m.validationsFailed, 0)
	atomic.StoreUint64(&m.batchTotal, 0)
	atomic.StoreUint64(&m.batchQueries, 0)

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.embedCallsDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}
