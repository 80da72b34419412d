package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/auth"
	"github.com/spec-kit/ticket-portal/internal/config"
	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/repository"
	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
)

// SignupInput is the self-service registration form.
type SignupInput struct {
	Username string `json:"username" form:"username" validate:"required,max=64,nospace,excludesall=:[]"`
	Name     string `json:"name" form:"name" validate:"max=120"`
	Email    string `json:"email" form:"email" validate:"required,email,max=254"`
	Password string `json:"password" form:"password" validate:"required,maxbytes=72"`
}

// LoginInput is the login form.
type LoginInput struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// CreateAdminInput provisions a moderator account.
type CreateAdminInput struct {
	Username string `json:"username" validate:"required,max=64,nospace,excludesall=:[]"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required,maxbytes=72"`
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users       repository.UserRepository
	tokenMgr    *auth.TokenManager
	revocations auth.Revocations
	bcryptCost  int
	logger      *zap.Logger
	now         func() time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, tokenMgr *auth.TokenManager, revocations auth.Revocations, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:       users,
		tokenMgr:    tokenMgr,
		revocations: revocations,
		bcryptCost:  cfg.BcryptCost,
		logger:      logger,
		now:         time.Now,
	}
}

// NormalizeUsername trims and lowercases a username.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Signup creates a regular user account. It does not log the user in.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*domain.User, error) {
	input.Username = NormalizeUsername(input.Username)
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if strings.TrimSpace(input.Password) == "" {
		input.Password = ""
	}
	if err := checkInput(input, ErrFieldsRequired); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:     input.Username,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		CreatedAt:    s.now().UTC(),
	}
	if user.Name == "" {
		user.Name = user.Username
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("user registered", zap.String("username", user.Username))
	return user, nil
}

// Login verifies credentials and issues a session token. Legacy password
// rows are rehashed with bcrypt after a successful match.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, *domain.Session, error) {
	input.Username = NormalizeUsername(input.Username)
	if err := checkInput(input, ErrFieldsRequired); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	legacy, err := auth.VerifyPassword(user.PasswordHash, input.Password)
	if err != nil {
		return nil, nil, ErrInvalidCredentials
	}
	if legacy {
		s.upgradePassword(ctx, user, input.Password)
	}

	session, err := s.tokenMgr.GenerateToken(user.Username, user.Role)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return user, session, nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return hash, nil
}

func (s *AuthService) upgradePassword(ctx context.Context, user *domain.User, password string) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		s.logger.Warn("password rehash failed", zap.String("username", user.Username), zap.Error(err))
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.Username, hash); err != nil {
		s.logger.Warn("password rehash failed", zap.String("username", user.Username), zap.Error(err))
		return
	}
	user.PasswordHash = hash
	s.logger.Info("legacy password upgraded", zap.String("username", user.Username))
}

// Logout revokes the token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || s.revocations == nil {
		return nil
	}
	until := s.now().Add(s.tokenMgr.TTL())
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := s.revocations.Revoke(ctx, claims.ID, until); err != nil {
		return apperrors.NewInternalError(fmt.Errorf("revoke token: %w", err))
	}
	return nil
}

// CreateAdmin creates an admin account, or promotes and resets the password
// of an existing one. created reports whether a new row was inserted.
func (s *AuthService) CreateAdmin(ctx context.Context, input CreateAdminInput) (user *domain.User, created bool, err error) {
	input.Username = NormalizeUsername(input.Username)
	input.Email = strings.TrimSpace(input.Email)
	if err := checkInput(input, ErrFieldsRequired); err != nil {
		return nil, false, err
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.users.GetByUsername(ctx, input.Username)
	switch {
	case err == nil:
		if err := s.users.UpdatePasswordHash(ctx, existing.Username, hash); err != nil {
			return nil, false, apperrors.NewInternalError(err)
		}
		if err := s.users.UpdateRole(ctx, existing.Username, domain.RoleAdmin); err != nil {
			return nil, false, apperrors.NewInternalError(err)
		}
		existing.PasswordHash = hash
		existing.Role = domain.RoleAdmin
		s.logger.Info("user promoted to admin", zap.String("username", existing.Username))
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, apperrors.NewInternalError(err)
	}

	if input.Email == "" {
		return nil, false, ErrFieldsRequired
	}
	user = &domain.User{
		Username:     input.Username,
		Name:         input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, false, ErrUsernameTaken
		}
		return nil, false, apperrors.NewInternalError(err)
	}
	s.logger.Info("admin created", zap.String("username", user.Username))
	return user, true, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
