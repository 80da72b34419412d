package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("wrapped domain error is unwrapped", func(t *testing.T) {
		conflict := NewConflict("duplicate", nil)
		got := ToDomainError(fmt.Errorf("create: %w", conflict))
		require.NotNil(t, got)
		assert.Equal(t, "CONFLICT", got.Code)
		assert.Equal(t, http.StatusConflict, got.HTTPStatus)
	})

	t.Run("fiber error keeps status", func(t *testing.T) {
		got := ToDomainError(fiber.NewError(http.StatusMethodNotAllowed, "nope"))
		assert.Equal(t, "METHOD_NOT_ALLOWED", got.Code)
		assert.Equal(t, http.StatusMethodNotAllowed, got.HTTPStatus)
		assert.Equal(t, "nope", got.Message)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		cause := errors.New("disk full")
		got := ToDomainError(cause)
		assert.Equal(t, "INTERNAL_ERROR", got.Code)
		assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
		assert.ErrorIs(t, got, cause)
	})
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewTooManyRequests("slow down", 30))
	assert.True(t, HasCode(err, "TOO_MANY_REQUESTS"))
	assert.False(t, HasCode(err, "CONFLICT"))
	assert.False(t, HasCode(errors.New("x"), "CONFLICT"))
}
