package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeCode(t *testing.T) {
	assert.Equal(t, 2001000, MakeCode(ServiceIngestion, CategoryRequest, 0))
	assert.Equal(t, 2110000, MakeCode(ServiceRetrieval, CategoryUpstream, 0))
	assert.Equal(t, 0, MakeCode(0, 0, 0))
}

func TestWithCause(t *testing.T) {
	cause := stderrors.New("pdf: malformed xref table")
	err := ErrParseFailure.WithCause(cause)

	// 原始 Errno 不应被修改
	require.Nil(t, ErrParseFailure.Unwrap())

	assert.ErrorIs(t, err, ErrParseFailure)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "malformed xref table")
}

func TestWithCause_ThroughWrapping(t *testing.T) {
	// %w 包装后仍可通过 errors.Is / IsCode 识别
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("ingest document abc: %w", ErrEmbeddingFailure.WithCause(cause))

	assert.True(t, IsCode(err, ErrEmbeddingFailure.Code))
	assert.ErrorIs(t, err, ErrEmbeddingFailure)
	assert.Equal(t, ErrEmbeddingFailure.Code, GetCode(err))
}

func TestFromError(t *testing.T) {
	assert.Equal(t, OK, FromError(nil))

	plain := stderrors.New("boom")
	got := FromError(plain)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, plain)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnsupportedMediaType, ErrUnsupportedFormat.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, (&Errno{Code: 999}).HTTPStatus())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "不支持的文档格式", ErrUnsupportedFormat.Message("zh"))
	assert.Equal(t, "Unsupported document format", ErrUnsupportedFormat.Message("en"))
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(ErrProviderFailure.Code)
	require.True(t, ok)
	assert.Equal(t, ErrProviderFailure, e)

	_, ok = Lookup(9999999)
	assert.False(t, ok)
}

func TestRetryable(t *testing.T) {
	assert.False(t, ErrUnsupportedFormat.Retryable)
	assert.True(t, ErrParseFailure.Retryable)
	assert.True(t, ErrEmbeddingFailure.Retryable)

	// Retryable 标记在 WithCause 克隆后保留
	assert.True(t, ErrParseFailure.WithCause(stderrors.New("x")).Retryable)
}
