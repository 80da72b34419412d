package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-portal/internal/domain"
)

func TestUserRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	user := &domain.User{
		Username:     "carol",
		Name:         "Carol",
		Email:        "carol@example.com",
		PasswordHash: "old",
		Role:         domain.RoleUser,
		CreatedAt:    time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, user))

	t.Run("duplicate username", func(t *testing.T) {
		dup := *user
		dup.Email = "other@example.com"
		assert.ErrorIs(t, repo.Create(ctx, &dup), ErrDuplicate)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := *user
		dup.Username = "carol2"
		assert.ErrorIs(t, repo.Create(ctx, &dup), ErrDuplicate)
	})

	t.Run("get", func(t *testing.T) {
		found, err := repo.GetByUsername(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, "Carol", found.Name)
		assert.Equal(t, domain.RoleUser, found.Role)
		assert.True(t, user.CreatedAt.Equal(found.CreatedAt))

		_, err = repo.GetByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update hash and role", func(t *testing.T) {
		require.NoError(t, repo.UpdatePasswordHash(ctx, "carol", "new"))
		require.NoError(t, repo.UpdateRole(ctx, "carol", domain.RoleAdmin))

		found, err := repo.GetByUsername(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, "new", found.PasswordHash)
		assert.True(t, found.IsAdmin())

		assert.ErrorIs(t, repo.UpdateRole(ctx, "nobody", domain.RoleAdmin), ErrNotFound)
	})
}
