package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/repository"
	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User   *domain.User
	Claims *Claims
}

// Role is the caller's current role as stored, not as issued in the token.
func (p *Principal) Role() domain.Role {
	if p == nil || p.User == nil {
		return ""
	}
	return p.User.Role
}

// AuthMiddleware validates bearer tokens or session cookies and loads principals.
type AuthMiddleware struct {
	tokens      *TokenManager
	users       repository.UserRepository
	revocations Revocations
	cookieName  string
	logger      *zap.Logger
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, revocations Revocations, cookieName string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, revocations: revocations, cookieName: cookieName, logger: logger}
}

// Handle enforces authentication for protected API routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.Authenticate(c)
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// RequireSession enforces authentication for HTML pages, redirecting
// anonymous visitors to loginPath.
func (m *AuthMiddleware) RequireSession(loginPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := m.Authenticate(c)
		if err != nil {
			if apperrors.HasCode(err, "UNAUTHORIZED") {
				m.ClearCookie(c)
				return c.Redirect(loginPath, fiber.StatusSeeOther)
			}
			return err
		}
		c.Locals(principalKey, principal)
		return c.Next()
	}
}

// Authenticate resolves the caller from the Authorization header, falling
// back to the session cookie.
func (m *AuthMiddleware) Authenticate(c *fiber.Ctx) (*Principal, error) {
	raw, err := m.extractToken(c)
	if err != nil {
		return nil, err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	if m.revocations != nil {
		revoked, err := m.revocations.IsRevoked(c.UserContext(), claims.ID)
		if err != nil {
			m.logger.Warn("revocation check failed", zap.Error(err))
		} else if revoked {
			return nil, apperrors.NewUnauthorized("session ended")
		}
	}

	user, err := m.users.GetByUsername(c.UserContext(), claims.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("user not found")
		}
		return nil, apperrors.MapError(err)
	}
	return &Principal{User: user, Claims: claims}, nil
}

// SetCookie stores the session token in the browser.
func (m *AuthMiddleware) SetCookie(c *fiber.Ctx, session *domain.Session, secure bool) {
	c.Cookie(&fiber.Cookie{
		Name:     m.cookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func (m *AuthMiddleware) ClearCookie(c *fiber.Ctx) {
	c.ClearCookie(m.cookieName)
}

func (m *AuthMiddleware) extractToken(c *fiber.Ctx) (string, error) {
	if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return "", apperrors.NewUnauthorized("invalid authorization header")
		}
		return strings.TrimSpace(parts[1]), nil
	}
	if cookie := c.Cookies(m.cookieName); cookie != "" {
		return cookie, nil
	}
	return "", apperrors.NewUnauthorized("missing authorization header")
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal != nil && principal.User != nil
}
