// Package handler provides HTTP handlers for the retrieval service.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/propintel/internal/model"
	"github.com/kart-io/propintel/internal/retrieval/biz"
	"github.com/kart-io/propintel/internal/retrieval/metrics"
	"github.com/kart-io/propintel/internal/retrieval/store"
	apierrors "github.com/kart-io/propintel/pkg/errors"
)

// queryTimeout 单次检索请求的超时上限。
const queryTimeout = 30 * time.Second

// RetrievalHandler handles retrieval HTTP requests.
type RetrievalHandler struct {
	orchestrator *biz.Orchestrator
	validator    *biz.Validator
	cache        *biz.QueryCache
	store        store.VectorStore
}

// NewRetrievalHandler creates a new RetrievalHandler.
func NewRetrievalHandler(
	orchestrator *biz.Orchestrator,
	validator *biz.Validator,
	cache *biz.QueryCache,
	vectorStore store.VectorStore,
) *RetrievalHandler {
	return &RetrievalHandler{
		orchestrator: orchestrator,
		validator:    validator,
		cache:        cache,
		store:        vectorStore,
	}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeError 按业务错误码决定 HTTP 状态码。
func writeError(c *gin.Context, err error) {
	errno := apierrors.FromError(err)
	c.JSON(errno.HTTPStatus(), ErrorResponse{
		Code:    errno.Code,
		Message: errno.Error(),
	})
}

// QueryOptions 请求中可调的检索参数。
type QueryOptions struct {
	TopK             int      `json:"top_k"`
	Strategy         string   `json:"strategy"`
	UseExpansion     *bool    `json:"use_expansion"`
	UseMultiQuery    bool     `json:"use_multi_query"`
	Hybrid           bool     `json:"hybrid"`
	KeywordWeight    float64  `json:"keyword_weight"`
	Collection       string   `json:"collection"`
	Section          string   `json:"section"`
	Source           string   `json:"source"`
	RequiredSections []string `json:"required_sections"`
	MinScore         *float64 `json:"min_score"`
	MMRLambda        *float64 `json:"mmr_lambda"`
	SkipCache        bool     `json:"skip_cache"`
}

func (o *QueryOptions) toRetrieveOptions() *biz.RetrieveOptions {
	opts := biz.DefaultRetrieveOptions()
	if o == nil {
		return opts
	}
	opts.TopK = o.TopK
	opts.Strategy = o.Strategy
	if o.UseExpansion != nil {
		opts.UseExpansion = *o.UseExpansion
	}
	opts.UseMultiQuery = o.UseMultiQuery
	opts.Hybrid = o.Hybrid
	opts.KeywordWeight = o.KeywordWeight
	opts.Collection = o.Collection
	opts.Section = o.Section
	opts.Source = o.Source
	opts.RequiredSections = o.RequiredSections
	opts.MinScore = o.MinScore
	opts.MMRLambda = o.MMRLambda
	opts.SkipCache = o.SkipCache
	return opts
}

// QueryRequest represents a retrieval query request.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	QueryOptions
}

// Query performs a retrieval query.
func (h *RetrievalHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	response, err := h.orchestrator.Retrieve(ctx, req.Query, req.QueryOptions.toRetrieveOptions())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			writeError(c, apierrors.ErrRetrievalTimeout.WithCause(err))
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: response})
}

// BatchQueryRequest represents a batch retrieval request.
type BatchQueryRequest struct {
	Queries []string `json:"queries" binding:"required,min=1"`
	QueryOptions
}

// BatchItem 批量检索的单项结果，失败项携带错误信息。
type BatchItem struct {
	Query    string                 `json:"query"`
	Response *biz.RetrievalResponse `json:"response,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// BatchQuery performs multiple retrieval queries, isolating per-item failures.
func (h *RetrievalHandler) BatchQuery(c *gin.Context) {
	var req BatchQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	results := h.orchestrator.BatchRetrieve(c.Request.Context(), req.Queries, req.QueryOptions.toRetrieveOptions())

	items := make([]BatchItem, len(results))
	for i, res := range results {
		items[i] = BatchItem{Query: res.Query, Response: res.Response}
		if res.Err != nil {
			items[i].Error = res.Err.Error()
		}
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: items})
}

// ValidateRequest 答案校验请求。提供 contexts 时直接校验，
// 否则先按 query 检索再以检索结果作为证据。
type ValidateRequest struct {
	Answer   string   `json:"answer" binding:"required"`
	Query    string   `json:"query" binding:"required"`
	Contexts []string `json:"contexts"`
	TopK     int      `json:"top_k"`
}

// ValidateResponse 答案校验响应。
type ValidateResponse struct {
	Report  *model.ValidationReport `json:"report"`
	Results []*model.RankedResult   `json:"results,omitempty"`
}

// Validate validates a generated answer against retrieval evidence.
// 服务端未启用校验时直接拒绝。
func (h *RetrievalHandler) Validate(c *gin.Context) {
	if h.validator == nil {
		writeError(c, apierrors.ErrServiceUnavailable.WithMessage("Answer validation is disabled"))
		return
	}

	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	if len(req.Contexts) > 0 {
		evidence := make([]*model.Chunk, len(req.Contexts))
		for i, content := range req.Contexts {
			evidence[i] = &model.Chunk{Content: content}
		}
		q := &model.Query{Original: req.Query, Cleaned: req.Query, Type: model.QueryTypeGeneric}
		report := h.validator.Validate(req.Answer, evidence, q)
		c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: ValidateResponse{Report: report}})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	response, err := h.orchestrator.Retrieve(ctx, req.Query, &biz.RetrieveOptions{TopK: req.TopK, UseExpansion: true})
	if err != nil {
		writeError(c, err)
		return
	}

	report := h.orchestrator.ValidateAnswer(req.Answer, response)
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: ValidateResponse{
		Report:  report,
		Results: response.Results,
	}})
}

// Stats returns pipeline statistics.
func (h *RetrievalHandler) Stats(c *gin.Context) {
	data := map[string]interface{}{
		"pipeline": h.orchestrator.Stats(),
		"metrics":  metrics.GetPipelineMetrics().Stats(),
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: data})
}

// ResetStats resets pipeline statistics.
func (h *RetrievalHandler) ResetStats(c *gin.Context) {
	h.orchestrator.ResetStats()
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Statistics reset"})
}

// Metrics exposes metrics in Prometheus text format.
func (h *RetrievalHandler) Metrics(c *gin.Context) {
	c.String(http.StatusOK, metrics.GetPipelineMetrics().Export("propintel", "retrieval"))
}

// CollectionStats returns the entity count of a collection.
func (h *RetrievalHandler) CollectionStats(c *gin.Context) {
	name := c.Param("name")
	count, err := h.store.GetStats(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: map[string]interface{}{
		"collection": name,
		"count":      count,
	}})
}

// CacheStats returns query cache statistics.
func (h *RetrievalHandler) CacheStats(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: map[string]interface{}{"enabled": false}})
		return
	}

	stats, err := h.cache.Stats(c.Request.Context())
	if err != nil {
		writeError(c, apierrors.ErrCache.WithCause(err))
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// ClearCache removes all cached retrieval responses.
func (h *RetrievalHandler) ClearCache(c *gin.Context) {
	if h.cache == nil {
		c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Cache disabled"})
		return
	}

	deleted, err := h.cache.Clear(c.Request.Context())
	if err != nil {
		writeError(c, apierrors.ErrCache.WithCause(err))
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Cache cleared", Data: map[string]interface{}{
		"deleted_count": deleted,
	}})
}
