package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/persistence"
)

func setupTestDB(t *testing.T) *persistence.Database {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := persistence.OpenSQLite(ctx, filepath.Join(t.TempDir(), "tickets.db"), 1000, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.RunMigrations(ctx, db, logger))
	return db
}

func seedUser(t *testing.T, repo UserRepository, username string) {
	t.Helper()
	err := repo.Create(context.Background(), &domain.User{
		Username:     username,
		Name:         username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleUser,
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
}

func newOpenTicket(name, subject string, at time.Time) *domain.Ticket {
	return &domain.Ticket{
		Name:        name,
		Email:       name + "@example.com",
		Subject:     subject,
		Description: "details for " + subject,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func statusPtr(s domain.TicketStatus) *domain.TicketStatus { return &s }

func TestTicketRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTicketRepository(db)
	ctx := context.Background()
	seedUser(t, users, "alice")

	at := time.Date(2026, 5, 1, 12, 30, 0, 123000000, time.UTC)
	ticket := newOpenTicket("alice", "Printer", at)
	require.NoError(t, repo.Create(ctx, ticket))
	assert.NotZero(t, ticket.ID)

	found, err := repo.GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, "Printer", found.Subject)
	assert.Equal(t, domain.TicketStatusOpen, found.Status)
	assert.True(t, at.Equal(found.CreatedAt))
	assert.Equal(t, "", found.Comments)

	_, err = repo.GetByID(ctx, ticket.ID+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTicketRepository_DuplicateOpenSubmission(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTicketRepository(db)
	ctx := context.Background()
	seedUser(t, users, "alice")
	seedUser(t, users, "bob")
	now := time.Now()

	first := newOpenTicket("alice", "VPN down", now)
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, newOpenTicket("alice", "VPN down", now))
	assert.ErrorIs(t, err, ErrDuplicate)

	// Another user may file the same text.
	require.NoError(t, repo.Create(ctx, newOpenTicket("bob", "VPN down", now)))

	// Once the first is no longer Open the same submission is accepted again.
	_, err = repo.Update(ctx, TicketUpdate{
		ID:           first.ID,
		FromStatuses: []domain.TicketStatus{domain.TicketStatusOpen},
		ToStatus:     statusPtr(domain.TicketStatusResolved),
		At:           now,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, newOpenTicket("alice", "VPN down", now)))
}

func TestTicketRepository_UpdateConditional(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTicketRepository(db)
	ctx := context.Background()
	seedUser(t, users, "alice")
	seedUser(t, users, "bob")
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	later := created.Add(time.Hour)

	ticket := newOpenTicket("alice", "Laptop", created)
	require.NoError(t, repo.Create(ctx, ticket))

	t.Run("status and comment change together", func(t *testing.T) {
		updated, err := repo.Update(ctx, TicketUpdate{
			ID:            ticket.ID,
			FromStatuses:  []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusReopened},
			ToStatus:      statusPtr(domain.TicketStatusResolved),
			AppendComment: "[2026-05-01 10:00] Admin: fixed\n",
			At:            later,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusResolved, updated.Status)
		assert.Equal(t, "[2026-05-01 10:00] Admin: fixed\n", updated.Comments)
		assert.True(t, later.Equal(updated.UpdatedAt))
		assert.True(t, created.Equal(updated.CreatedAt))
	})

	t.Run("stale status is a conflict", func(t *testing.T) {
		current, err := repo.Update(ctx, TicketUpdate{
			ID:           ticket.ID,
			FromStatuses: []domain.TicketStatus{domain.TicketStatusOpen},
			ToStatus:     statusPtr(domain.TicketStatusDiscarded),
			At:           later,
		})
		assert.ErrorIs(t, err, ErrConflict)
		require.NotNil(t, current)
		assert.Equal(t, domain.TicketStatusResolved, current.Status)
	})

	t.Run("foreign owner is not found", func(t *testing.T) {
		bob := "bob"
		_, err := repo.Update(ctx, TicketUpdate{
			ID:            ticket.ID,
			Owner:         &bob,
			AppendComment: "[2026-05-01 11:00] bob: hi\n",
			At:            later,
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("comments accumulate", func(t *testing.T) {
		alice := "alice"
		updated, err := repo.Update(ctx, TicketUpdate{
			ID:            ticket.ID,
			Owner:         &alice,
			FromStatuses:  []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusDiscarded},
			ToStatus:      statusPtr(domain.TicketStatusReopened),
			AppendComment: "[2026-05-01 12:00] alice: still broken\n",
			At:            later,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TicketStatusReopened, updated.Status)
		assert.Equal(t, "[2026-05-01 10:00] Admin: fixed\n[2026-05-01 12:00] alice: still broken\n", updated.Comments)
	})

	t.Run("missing ticket", func(t *testing.T) {
		_, err := repo.Update(ctx, TicketUpdate{ID: 9999, ToStatus: statusPtr(domain.TicketStatusResolved), At: later})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTicketRepository_ListAndStats(t *testing.T) {
	db := setupTestDB(t)
	users := NewUserRepository(db)
	repo := NewTicketRepository(db)
	ctx := context.Background()
	seedUser(t, users, "alice")
	seedUser(t, users, "bob")
	now := time.Now()

	subjects := []string{"Email bounce", "Monitor flicker", "Email quota"}
	ids := make([]int64, 0, len(subjects))
	for _, subject := range subjects {
		ticket := newOpenTicket("alice", subject, now)
		require.NoError(t, repo.Create(ctx, ticket))
		ids = append(ids, ticket.ID)
	}
	require.NoError(t, repo.Create(ctx, newOpenTicket("bob", "Keyboard", now)))

	_, err := repo.Update(ctx, TicketUpdate{ID: ids[1], ToStatus: statusPtr(domain.TicketStatusDiscarded), At: now})
	require.NoError(t, err)

	alice := "alice"
	own, err := repo.List(ctx, TicketFilter{Name: &alice})
	require.NoError(t, err)
	require.Len(t, own, 3)
	assert.Equal(t, ids[2], own[0].ID, "newest first")
	assert.Equal(t, ids[0], own[2].ID)

	open, err := repo.List(ctx, TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusOpen}})
	require.NoError(t, err)
	assert.Len(t, open, 3)

	search := "EMAIL"
	found, err := repo.List(ctx, TicketFilter{SearchTerm: &search})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	page, err := repo.List(ctx, TicketFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	total, err := repo.Count(ctx, TicketFilter{Name: &alice})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	stats, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStats{Open: 3, Discarded: 1}, stats)
}
