package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/auth"
	"github.com/spec-kit/ticket-portal/internal/config"
	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/events"
	"github.com/spec-kit/ticket-portal/internal/persistence"
	"github.com/spec-kit/ticket-portal/internal/repository"
)

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) types() []events.EventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]events.EventType, 0, len(d.events))
	for _, e := range d.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	users      repository.UserRepository
	tickets    repository.TicketRepository
	auth       *AuthService
	ticketSvc  *TicketService
	dispatcher *recordingDispatcher
	revoked    auth.Revocations
}

// newTestEnv builds services over a fresh SQLite file. seed statements run
// before migrations.
func newTestEnv(t *testing.T, seed ...string) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := persistence.OpenSQLite(ctx, filepath.Join(t.TempDir(), "tickets.db"), 1000, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	for _, stmt := range seed {
		_, err := db.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	require.NoError(t, persistence.RunMigrations(ctx, db, logger))

	env := &testEnv{
		users:      repository.NewUserRepository(db),
		tickets:    repository.NewTicketRepository(db),
		dispatcher: &recordingDispatcher{},
		revoked:    auth.NewMemoryRevocations(),
	}
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	env.auth = NewAuthService(config.AuthConfig{BcryptCost: 4}, env.users, tokens, env.revoked, logger)
	env.auth.now = func() time.Time { return fixedNow }
	env.ticketSvc = NewTicketService(env.tickets, env.dispatcher, logger)
	env.ticketSvc.now = func() time.Time { return fixedNow }
	return env
}

func (e *testEnv) signup(t *testing.T, username string) *domain.User {
	t.Helper()
	user, err := e.auth.Signup(context.Background(), SignupInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "1234",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) admin(t *testing.T) *domain.User {
	t.Helper()
	user, _, err := e.auth.CreateAdmin(context.Background(), CreateAdminInput{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "admin-pass",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) submit(t *testing.T, user *domain.User, subject string) *domain.Ticket {
	t.Helper()
	ticket, err := e.ticketSvc.SubmitTicket(context.Background(), user, SubmitTicketInput{
		Subject:     subject,
		Description: "details for " + subject,
		Email:       user.Email,
	})
	require.NoError(t, err)
	return ticket
}
