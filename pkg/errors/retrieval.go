package errors

import "google.golang.org/grpc/codes"

// 检索服务代码: 20 (业务服务范围 20-79)
// 错误码格式: AABBCCC
// - AA: 20 (检索服务)
// - BB: 类别代码
// - CCC: 序号

var (
	// 请求参数错误 (类别 01)
	ErrInvalidQuery    = Register(New(MakeCode(ServiceRetrieval, CategoryRequest, 1), 400, codes.InvalidArgument, "Query must not be empty", "查询不能为空"))
	ErrInvalidTopK     = Register(New(MakeCode(ServiceRetrieval, CategoryRequest, 2), 400, codes.InvalidArgument, "Invalid topK value", "topK 参数无效"))
	ErrInvalidStrategy = Register(New(MakeCode(ServiceRetrieval, CategoryRequest, 3), 400, codes.InvalidArgument, "Unknown ranking strategy", "未知的排序策略"))
	ErrInvalidFilter   = Register(New(MakeCode(ServiceRetrieval, CategoryRequest, 4), 400, codes.InvalidArgument, "Invalid metadata filter", "元数据过滤条件无效"))

	// 上游依赖错误 (类别 10 - Network)
	// 向量库或嵌入服务不可达与"检索到零条结果"是两种结果，绝不混同。
	ErrStoreUnavailable     = Register(New(MakeCode(ServiceRetrieval, CategoryNetwork, 1), 503, codes.Unavailable, "Vector store unavailable", "向量库不可用"))
	ErrEmbeddingUnavailable = Register(New(MakeCode(ServiceRetrieval, CategoryNetwork, 2), 503, codes.Unavailable, "Embedding service unavailable", "嵌入服务不可用"))

	// 检索执行错误 (类别 07 - Internal)
	ErrRetrievalFailed = Register(New(MakeCode(ServiceRetrieval, CategoryInternal, 1), 500, codes.Internal, "Retrieval failed", "检索失败"))
	ErrRankingFailed   = Register(New(MakeCode(ServiceRetrieval, CategoryInternal, 2), 500, codes.Internal, "Ranking failed", "排序失败"))
	ErrBatchFailed     = Register(New(MakeCode(ServiceRetrieval, CategoryInternal, 3), 500, codes.Internal, "Batch retrieval failed", "批量检索失败"))

	// 超时 (类别 11)
	ErrRetrievalTimeout = Register(New(MakeCode(ServiceRetrieval, CategoryTimeout, 1), 408, codes.DeadlineExceeded, "Retrieval timeout", "检索超时"))
)
