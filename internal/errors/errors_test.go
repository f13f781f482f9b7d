package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSihError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with SihError
	sihErr := New(ErrCodeChunkNotFound, "chunk not found: manual_001", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, sihErr)
	assert.Equal(t, originalErr, errors.Unwrap(sihErr))
	assert.True(t, errors.Is(sihErr, originalErr))
}

func TestSihError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "store error",
			code:     ErrCodeChunkNotFound,
			message:  "chunk manual_042 not found",
			expected: "[ERR_201_CHUNK_NOT_FOUND] chunk manual_042 not found",
		},
		{
			name:     "timeout error",
			code:     ErrCodeSearchTimeout,
			message:  "search deadline exceeded",
			expected: "[ERR_301_SEARCH_TIMEOUT] search deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSihError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeChunkNotFound, "chunk A not found", nil)
	err2 := New(ErrCodeChunkNotFound, "chunk B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestSihError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeChunkNotFound, "chunk not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestSihError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeChunkNotFound, "chunk not found", nil)

	// When: adding details
	err = err.WithDetail("id", "portaria_2023_012")
	err = err.WithDetail("store", "chunks.db")

	// Then: details are available
	assert.Equal(t, "portaria_2023_012", err.Details["id"])
	assert.Equal(t, "chunks.db", err.Details["store"])
}

func TestSihError_WithSuggestion_AddsSuggestion(t *testing.T) {
	// Given: a dependency error
	err := New(ErrCodeDependencyUnavailable, "embedder unreachable", nil)

	// When: adding suggestion
	err = err.WithSuggestion("Check that the embedding service is running")

	// Then: suggestion is available
	assert.Equal(t, "Check that the embedding service is running", err.Suggestion)
}

func TestSihError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeChunkNotFound, CategoryStore},
		{ErrCodeCorruptIndex, CategoryStore},
		{ErrCodeSearchTimeout, CategoryNetwork},
		{ErrCodeDependencyUnavailable, CategoryNetwork},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeFilterUnsupported, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeEmbeddingFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestSihError_Retryable(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeSearchTimeout, true},
		{ErrCodeDependencyUnavailable, true},
		{ErrCodeNetworkTimeout, true},
		{ErrCodeChunkNotFound, false},
		{ErrCodeFilterUnsupported, false},
		{ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test", nil)
			assert.Equal(t, tt.wantRetryable, IsRetryable(err))
		})
	}
}

func TestWrap_NilError_ReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestIsFatal_CorruptIndex(t *testing.T) {
	err := New(ErrCodeCorruptIndex, "index checksum mismatch", nil)
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(New(ErrCodeSearchFailed, "failed", nil)))
}
