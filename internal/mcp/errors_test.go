package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sierrors "github.com/manual-sih/sihmcp/internal/errors"
)

func TestMapError(t *testing.T) {
	t.Run("nil passes through", func(t *testing.T) {
		assert.Nil(t, MapError(nil))
	})

	t.Run("validation errors map to invalid params", func(t *testing.T) {
		err := sierrors.New(sierrors.ErrCodeQueryEmpty, "search query is empty", nil)
		mapped := MapError(err)
		assert.Equal(t, ErrCodeInvalidParams, mapped.Code)
		assert.Contains(t, mapped.Message, "empty")
	})

	t.Run("network errors map to timeout", func(t *testing.T) {
		err := sierrors.New(sierrors.ErrCodeSearchTimeout, "search exceeded the deadline", nil)
		assert.Equal(t, ErrCodeTimeout, MapError(err).Code)
	})

	t.Run("corrupt index maps to index not found", func(t *testing.T) {
		err := sierrors.New(sierrors.ErrCodeCorruptIndex, "lexical index is corrupt", nil)
		assert.Equal(t, ErrCodeIndexNotFound, MapError(err).Code)
	})

	t.Run("suggestion is appended to the message", func(t *testing.T) {
		err := sierrors.New(sierrors.ErrCodeQueryEmpty, "search query is empty", nil).
			WithSuggestion("provide a non-empty query")
		assert.Contains(t, MapError(err).Message, "provide a non-empty query")
	})

	t.Run("wrapped sih errors are unwrapped", func(t *testing.T) {
		inner := sierrors.New(sierrors.ErrCodeQueryEmpty, "empty", nil)
		wrapped := errors.Join(errors.New("outer"), inner)
		assert.Equal(t, ErrCodeInvalidParams, MapError(wrapped).Code)
	})

	t.Run("context deadline", func(t *testing.T) {
		assert.Equal(t, ErrCodeTimeout, MapError(context.DeadlineExceeded).Code)
	})

	t.Run("unknown errors are internal", func(t *testing.T) {
		mapped := MapError(errors.New("boom"))
		require.NotNil(t, mapped)
		assert.Equal(t, ErrCodeInternalError, mapped.Code)
		assert.NotContains(t, mapped.Message, "boom")
	})
}
