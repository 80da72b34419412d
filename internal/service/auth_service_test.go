package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-portal/internal/domain"
	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
)

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   SignupInput
		wantErr error
	}{
		{name: "blank username", input: SignupInput{Username: "  ", Email: "a@example.com", Password: "x"}, wantErr: ErrFieldsRequired},
		{name: "blank email", input: SignupInput{Username: "bob", Password: "x"}, wantErr: ErrFieldsRequired},
		{name: "blank password", input: SignupInput{Username: "bob", Email: "a@example.com", Password: "   "}, wantErr: ErrFieldsRequired},
		{name: "bad email", input: SignupInput{Username: "bob", Email: "not-an-email", Password: "x"}, wantErr: ErrInvalidEmail},
		{name: "colon in username", input: SignupInput{Username: "bo:b", Email: "a@example.com", Password: "x"}, wantErr: ErrInvalidUsername},
		{name: "space in username", input: SignupInput{Username: "bo b", Email: "a@example.com", Password: "x"}, wantErr: ErrInvalidUsername},
		{name: "newline in username", input: SignupInput{Username: "bo\nb", Email: "a@example.com", Password: "x"}, wantErr: ErrInvalidUsername},
		{name: "password over 72 bytes", input: SignupInput{Username: "bob", Email: "a@example.com", Password: strings.Repeat("é", 40)}, wantErr: ErrPasswordTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Signup(ctx, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSignupCreatesRegularUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Signup(ctx, SignupInput{Username: "  Alice ", Email: "alice@example.com", Password: "1234"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$2"))

	_, err = env.auth.Signup(ctx, SignupInput{Username: "ALICE", Email: "other@example.com", Password: "1234"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = env.auth.Signup(ctx, SignupInput{Username: "alice2", Email: "alice@example.com", Password: "1234"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "alice")

	_, _, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = env.auth.Login(ctx, LoginInput{Username: "nobody", Password: "1234"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.True(t, apperrors.HasCode(err, "UNAUTHORIZED"))

	_, _, err = env.auth.Login(ctx, LoginInput{Username: "", Password: ""})
	assert.ErrorIs(t, err, ErrFieldsRequired)

	user, session, err := env.auth.Login(ctx, LoginInput{Username: " Alice", Password: "1234"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, session.Token)

	claims, err := env.auth.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestLoginUpgradesLegacyPasswords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sum := sha256.Sum256([]byte("legacy-pass"))
	legacyRows := map[string]string{
		"shauser":   hex.EncodeToString(sum[:]),
		"plainuser": "legacy-pass",
	}
	for username, stored := range legacyRows {
		require.NoError(t, env.users.Create(ctx, &domain.User{
			Username:     username,
			Email:        username + "@example.com",
			PasswordHash: stored,
			Role:         domain.RoleAdmin,
			CreatedAt:    time.Now(),
		}))
	}

	for username := range legacyRows {
		t.Run(username, func(t *testing.T) {
			_, _, err := env.auth.Login(ctx, LoginInput{Username: username, Password: "legacy-pass"})
			require.NoError(t, err)

			stored, err := env.users.GetByUsername(ctx, username)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"), "password rehashed with bcrypt")

			_, _, err = env.auth.Login(ctx, LoginInput{Username: username, Password: "legacy-pass"})
			assert.NoError(t, err)
		})
	}
}

func TestLoginAgainstImportedLegacyDatabase(t *testing.T) {
	env := newTestEnv(t,
		`CREATE TABLE users (username TEXT PRIMARY KEY, email TEXT UNIQUE, password TEXT, role TEXT DEFAULT 'user')`,
		`CREATE TABLE tickets (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT, email TEXT, subject TEXT,
			description TEXT, status TEXT, created_at TEXT, updated_at TEXT, comments TEXT)`,
		`INSERT INTO users (username, email, password, role)
			VALUES ('admin', 'admin@example.com', '03ac674216f3e15c761ee1a5e255f067953623c8b388b4459e13f978d7c846f4', 'admin')`,
	)
	ctx := context.Background()

	user, _, err := env.auth.Login(ctx, LoginInput{Username: "admin", Password: "1234"})
	require.NoError(t, err)
	assert.True(t, user.IsAdmin())

	stored, err := env.users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$2"), "legacy digest is rehashed on login")

	_, _, err = env.auth.Login(ctx, LoginInput{Username: "admin", Password: "1234"})
	require.NoError(t, err)
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "alice")

	_, session, err := env.auth.Login(ctx, LoginInput{Username: "alice", Password: "1234"})
	require.NoError(t, err)
	claims, err := env.auth.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, claims))
	revoked, err := env.revoked.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.NoError(t, env.auth.Logout(ctx, nil))
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, created, err := env.auth.CreateAdmin(ctx, CreateAdminInput{Username: "Root", Email: "root@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.RoleAdmin, user.Role)

	env.signup(t, "bob")
	promoted, created, err := env.auth.CreateAdmin(ctx, CreateAdminInput{Username: "bob", Password: "new-pw"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, promoted.IsAdmin())

	_, _, err = env.auth.Login(ctx, LoginInput{Username: "bob", Password: "new-pw"})
	assert.NoError(t, err)

	_, _, err = env.auth.CreateAdmin(ctx, CreateAdminInput{Username: "nomail", Password: "pw"})
	assert.ErrorIs(t, err, ErrFieldsRequired)

	_, _, err = env.auth.CreateAdmin(ctx, CreateAdminInput{Username: "bob", Password: strings.Repeat("é", 40)})
	assert.ErrorIs(t, err, ErrPasswordTooLong)
}
