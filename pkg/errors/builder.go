package errors

import (
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// ErrnoBuilder provides a fluent API for building error codes.
// This is the recommended way for external modules to define errors.
//
// Example:
//
//	var ErrCollectionMissing = errors.NewNotFoundError(errors.ServiceRetrieval, 9).
//	    Message("Collection not found", "集合不存在").
//	    MustBuild()
type ErrnoBuilder struct {
	service   int
	category  int
	sequence  int
	http      int
	grpc      codes.Code
	messageEN string
	messageZH string
}

// NewBuilder creates a new ErrnoBuilder with the given service, category, and sequence.
func NewBuilder(service, category, sequence int) *ErrnoBuilder {
	return &ErrnoBuilder{
		service:  service,
		category: category,
		sequence: sequence,
		http:     http.StatusInternalServerError, // default
		grpc:     codes.Internal,                 // default
	}
}

// HTTP sets the HTTP status code.
func (b *ErrnoBuilder) HTTP(status int) *ErrnoBuilder {
	b.http = status
	return b
}

// GRPC sets the gRPC status code.
func (b *ErrnoBuilder) GRPC(code codes.Code) *ErrnoBuilder {
	b.grpc = code
	return b
}

// Message sets both English and Chinese messages.
func (b *ErrnoBuilder) Message(en, zh string) *ErrnoBuilder {
	b.messageEN = en
	b.messageZH = zh
	return b
}

// Build creates and registers the Errno.
// Returns an error if registration fails (e.g., duplicate code).
func (b *ErrnoBuilder) Build() (*Errno, error) {
	if b.messageEN == "" {
		return nil, fmt.Errorf("English message is required")
	}

	e := &Errno{
		Code:      MakeCode(b.service, b.category, b.sequence),
		HTTP:      b.http,
		GRPCCode:  b.grpc,
		MessageEN: b.messageEN,
		MessageZH: b.messageZH,
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		return nil, fmt.Errorf("errno code %d already registered: %s", e.Code, existing.MessageEN)
	}
	errnoRegistry[e.Code] = e

	return e, nil
}

// MustBuild creates and registers the Errno.
// Panics if registration fails.
func (b *ErrnoBuilder) MustBuild() *Errno {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// NewRequestError creates a builder for request/validation errors (HTTP 400).
func NewRequestError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryRequest, sequence).
		HTTP(http.StatusBadRequest).
		GRPC(codes.InvalidArgument)
}

// NewNotFoundError creates a builder for resource not found errors (HTTP 404).
func NewNotFoundError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryResource, sequence).
		HTTP(http.StatusNotFound).
		GRPC(codes.NotFound)
}

// NewInternalError creates a builder for internal errors (HTTP 500).
func NewInternalError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryInternal, sequence).
		HTTP(http.StatusInternalServerError).
		GRPC(codes.Internal)
}

// NewNetworkError creates a builder for network errors (HTTP 503).
func NewNetworkError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryNetwork, sequence).
		HTTP(http.StatusServiceUnavailable).
		GRPC(codes.Unavailable)
}

// NewTimeoutError creates a builder for timeout errors (HTTP 504).
func NewTimeoutError(service, sequence int) *ErrnoBuilder {
	return NewBuilder(service, CategoryTimeout, sequence).
		HTTP(http.StatusGatewayTimeout).
		GRPC(codes.DeadlineExceeded)
}
