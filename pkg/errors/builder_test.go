package errors

import (
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
)

// 80-89 区间保留给内部服务，测试用例使用 80 避免与真实注册冲突。
const testService = 80

func TestBuilderDefaults(t *testing.T) {
	errno, err := NewBuilder(testService, CategoryInternal, 1).
		Message("Something broke", "出错了").
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if errno.HTTP != http.StatusInternalServerError {
		t.Errorf("default HTTP = %d, want 500", errno.HTTP)
	}
	if errno.GRPCCode != codes.Internal {
		t.Errorf("default GRPC = %v, want Internal", errno.GRPCCode)
	}
}

func TestBuilderRequiresMessage(t *testing.T) {
	if _, err := NewBuilder(testService, CategoryRequest, 2).Build(); err == nil {
		t.Errorf("Build without message should fail")
	}
}

func TestBuilderRejectsDuplicates(t *testing.T) {
	if _, err := NewBuilder(testService, CategoryRequest, 3).Message("first", "").Build(); err != nil {
		t.Fatalf("first Build() error: %v", err)
	}
	if _, err := NewBuilder(testService, CategoryRequest, 3).Message("second", "").Build(); err == nil {
		t.Errorf("duplicate code should be rejected")
	}
}

func TestPresetBuilders(t *testing.T) {
	tests := []struct {
		name     string
		builder  *ErrnoBuilder
		wantHTTP int
		wantGRPC codes.Code
	}{
		{"request", NewRequestError(testService, 10), http.StatusBadRequest, codes.InvalidArgument},
		{"not_found", NewNotFoundError(testService, 10), http.StatusNotFound, codes.NotFound},
		{"internal", NewInternalError(testService, 10), http.StatusInternalServerError, codes.Internal},
		{"network", NewNetworkError(testService, 10), http.StatusServiceUnavailable, codes.Unavailable},
		{"timeout", NewTimeoutError(testService, 10), http.StatusGatewayTimeout, codes.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errno := tt.builder.Message("msg", "").MustBuild()
			if errno.HTTP != tt.wantHTTP {
				t.Errorf("HTTP = %d, want %d", errno.HTTP, tt.wantHTTP)
			}
			if errno.GRPCCode != tt.wantGRPC {
				t.Errorf("GRPC = %v, want %v", errno.GRPCCode, tt.wantGRPC)
			}
		})
	}
}
