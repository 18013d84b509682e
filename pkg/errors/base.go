package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// ============================================================================
// Success
// ============================================================================

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	GRPCCode:  codes.OK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// ============================================================================
// Request Errors (Category: 01)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 0),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Bad request",
		MessageZH: "请求错误",
	})

	// ErrInvalidParam indicates an invalid parameter.
	ErrInvalidParam = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 1),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Invalid parameter",
		MessageZH: "参数无效",
	})

	// ErrMissingParam indicates a missing required parameter.
	ErrMissingParam = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 2),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Missing required parameter",
		MessageZH: "缺少必需参数",
	})

	// ErrValidationFailed indicates validation failure.
	ErrValidationFailed = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 3),
		HTTP:      http.StatusBadRequest,
		GRPCCode:  codes.InvalidArgument,
		MessageEN: "Validation failed",
		MessageZH: "验证失败",
	})
)

// ============================================================================
// Resource Errors (Category: 04)
// ============================================================================

var (
	// ErrNotFound indicates the resource is not found.
	ErrNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryResource, 0),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Resource not found",
		MessageZH: "资源不存在",
	})

	// ErrRouteNotFound indicates the route is not found.
	ErrRouteNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryResource, 1),
		HTTP:      http.StatusNotFound,
		GRPCCode:  codes.NotFound,
		MessageEN: "Route not found",
		MessageZH: "路由不存在",
	})
)

// ============================================================================
// Internal Errors (Category: 07)
// ============================================================================

var (
	// ErrInternal indicates an internal server error.
	ErrInternal = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})

	// ErrUnknown indicates an unknown error.
	ErrUnknown = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Unknown,
		MessageEN: "Unknown error",
		MessageZH: "未知错误",
	})
)

// ============================================================================
// Cache Errors (Category: 09)
// ============================================================================

var (
	// ErrCache indicates a cache error.
	ErrCache = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryCache, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Cache error",
		MessageZH: "缓存错误",
	})

	// ErrCacheConnection indicates cache connection failure.
	ErrCacheConnection = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryCache, 1),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Cache connection failed",
		MessageZH: "缓存连接失败",
	})
)

// ============================================================================
// Network Errors (Category: 10)
// ============================================================================

var (
	// ErrNetwork indicates a network error.
	ErrNetwork = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryNetwork, 0),
		HTTP:      http.StatusBadGateway,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Network error",
		MessageZH: "网络错误",
	})

	// ErrServiceUnavailable indicates the service is unavailable.
	ErrServiceUnavailable = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryNetwork, 1),
		HTTP:      http.StatusServiceUnavailable,
		GRPCCode:  codes.Unavailable,
		MessageEN: "Service unavailable",
		MessageZH: "服务不可用",
	})
)

// ============================================================================
// Timeout Errors (Category: 11)
// ============================================================================

var (
	// ErrTimeout indicates operation timeout.
	ErrTimeout = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryTimeout, 0),
		HTTP:      http.StatusGatewayTimeout,
		GRPCCode:  codes.DeadlineExceeded,
		MessageEN: "Operation timeout",
		MessageZH: "操作超时",
	})

	// ErrContextCanceled indicates context canceled.
	ErrContextCanceled = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryTimeout, 1),
		HTTP:      499, // Client Closed Request
		GRPCCode:  codes.Canceled,
		MessageEN: "Context canceled",
		MessageZH: "上下文已取消",
	})
)

// ============================================================================
// Configuration Errors (Category: 12)
// ============================================================================

var (
	// ErrConfig indicates a configuration error.
	ErrConfig = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryConfig, 0),
		HTTP:      http.StatusInternalServerError,
		GRPCCode:  codes.Internal,
		MessageEN: "Configuration error",
		MessageZH: "配置错误",
	})
)
