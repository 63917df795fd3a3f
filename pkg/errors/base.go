package errors

import "net/http"

// Service codes.
const (
	ServiceCommon    = 0
	ServiceIngestion = 20
	ServiceRetrieval = 21
	ServiceChat      = 22
)

// Category codes.
const (
	CategorySuccess  = 0
	CategoryRequest  = 1
	CategoryNotFound = 4
	CategoryConflict = 5
	CategoryInternal = 7
	CategoryDatabase = 8
	CategoryUpstream = 10
)

// ============================================================================
// Success
// ============================================================================

// OK represents a successful operation.
var OK = Register(&Errno{
	Code:      0,
	HTTP:      http.StatusOK,
	MessageEN: "Success",
	MessageZH: "成功",
})

// ============================================================================
// Common errors
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryRequest, 0),
		HTTP:      http.StatusBadRequest,
		MessageEN: "Bad request",
		MessageZH: "请求错误",
	})

	// ErrNotFound indicates a missing resource.
	ErrNotFound = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryNotFound, 0),
		HTTP:      http.StatusNotFound,
		MessageEN: "Resource not found",
		MessageZH: "资源不存在",
	})

	// ErrInternal indicates an unexpected internal error.
	ErrInternal = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryInternal, 0),
		HTTP:      http.StatusInternalServerError,
		MessageEN: "Internal server error",
		MessageZH: "服务器内部错误",
	})

	// ErrDatabase indicates a relational store failure.
	ErrDatabase = Register(&Errno{
		Code:      MakeCode(ServiceCommon, CategoryDatabase, 0),
		HTTP:      http.StatusInternalServerError,
		MessageEN: "Database error",
		MessageZH: "数据库错误",
		Retryable: true,
	})
)

// ============================================================================
// Ingestion pipeline errors
// ============================================================================

var (
	// ErrUnsupportedFormat indicates a document MIME type the parser cannot
	// handle. Fatal, caller's fault.
	ErrUnsupportedFormat = Register(&Errno{
		Code:      MakeCode(ServiceIngestion, CategoryRequest, 0),
		HTTP:      http.StatusUnsupportedMediaType,
		MessageEN: "Unsupported document format",
		MessageZH: "不支持的文档格式",
	})

	// ErrParseFailure indicates text extraction failed. Often transient.
	ErrParseFailure = Register(&Errno{
		Code:      MakeCode(ServiceIngestion, CategoryInternal, 0),
		HTTP:      http.StatusUnprocessableEntity,
		MessageEN: "Failed to parse document",
		MessageZH: "文档解析失败",
		Retryable: true,
	})

	// ErrEmbeddingFailure indicates the embedding service failed.
	ErrEmbeddingFailure = Register(&Errno{
		Code:      MakeCode(ServiceIngestion, CategoryUpstream, 0),
		HTTP:      http.StatusBadGateway,
		MessageEN: "Failed to generate embeddings",
		MessageZH: "向量嵌入生成失败",
		Retryable: true,
	})

	// ErrIngestConflict indicates the document is already being processed.
	ErrIngestConflict = Register(&Errno{
		Code:      MakeCode(ServiceIngestion, CategoryConflict, 0),
		HTTP:      http.StatusConflict,
		MessageEN: "Document ingestion already in progress",
		MessageZH: "文档正在处理中",
	})
)

// ============================================================================
// Retrieval errors
// ============================================================================

var (
	// ErrVectorSearchFailure indicates vector search failed. Recovered
	// internally via the keyword fallback, never surfaced to callers.
	ErrVectorSearchFailure = Register(&Errno{
		Code:      MakeCode(ServiceRetrieval, CategoryUpstream, 0),
		HTTP:      http.StatusBadGateway,
		MessageEN: "Vector search failed",
		MessageZH: "向量检索失败",
		Retryable: true,
	})
)

// ============================================================================
// Chat pipeline errors
// ============================================================================

var (
	// ErrProviderFailure indicates the completion provider failed. Surfaced
	// to the caller as a failed chat turn.
	ErrProviderFailure = Register(&Errno{
		Code:      MakeCode(ServiceChat, CategoryUpstream, 0),
		HTTP:      http.StatusBadGateway,
		MessageEN: "Completion provider failed",
		MessageZH: "生成模型调用失败",
		Retryable: true,
	})
)
