package web

import (
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/auth"
	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/service"
	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
	"github.com/spec-kit/ticket-portal/pkg/util/markdown"
)

const (
	loginPath  = "/login"
	portalPath = "/portal"
)

// Dependencies bundles what the portal needs.
type Dependencies struct {
	Auth           *service.AuthService
	Tickets        *service.TicketService
	AuthMiddleware *auth.AuthMiddleware
	// LoginLimiter throttles login attempts per client IP. Nil disables it.
	LoginLimiter auth.RateLimiter
	CookieSecure bool
	Logger       *zap.Logger
}

// Portal serves the server-rendered HTML pages.
type Portal struct {
	auth         *service.AuthService
	tickets      *service.TicketService
	mw           *auth.AuthMiddleware
	limiter      auth.RateLimiter
	cookieSecure bool
	logger       *zap.Logger
	views        views
}

// NewPortal parses the embedded templates.
func NewPortal(deps Dependencies) (*Portal, error) {
	v, err := loadViews(markdown.NewRenderer())
	if err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Portal{
		auth:         deps.Auth,
		tickets:      deps.Tickets,
		mw:           deps.AuthMiddleware,
		limiter:      deps.LoginLimiter,
		cookieSecure: deps.CookieSecure,
		logger:       logger,
		views:        v,
	}, nil
}

// Register mounts the portal routes.
func (p *Portal) Register(app *fiber.App) {
	app.Get("/", p.handleErrors, p.home)
	app.Get(loginPath, p.handleErrors, p.showAuth)
	app.Post(loginPath, p.handleErrors, p.login)
	app.Post("/signup", p.handleErrors, p.signup)
	app.Post("/logout", p.handleErrors, p.logout)

	portal := app.Group(portalPath, p.handleErrors, p.mw.RequireSession(loginPath))
	portal.Get("/", p.dashboard)
	portal.Get("/tickets/:id", p.ticketDetail)

	portal.Post("/tickets", auth.RequireUser(), p.submitTicket)
	portal.Post("/tickets/:id/reopen", auth.RequireUser(), p.reopenTicket)
	portal.Post("/tickets/:id/comments", auth.RequireUser(), p.commentTicket)

	portal.Post("/admin/tickets/:id/resolve", auth.RequireAdmin(), p.resolveTicket)
	portal.Post("/admin/tickets/:id/discard", auth.RequireAdmin(), p.discardTicket)
	portal.Post("/admin/tickets/:id/reply", auth.RequireAdmin(), p.replyTicket)
}

// handleErrors renders failures as an HTML page instead of the JSON envelope.
func (p *Portal) handleErrors(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus == fiber.StatusUnauthorized {
		p.mw.ClearCookie(c)
		return c.Redirect(loginPath, fiber.StatusSeeOther)
	}
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		p.logger.Error("page failed", zap.String("path", c.Path()), zap.Error(domainErr))
	}
	data := &pageData{
		Title:   "Error",
		Status:  domainErr.HTTPStatus,
		Message: domainErr.Message,
	}
	if principal, ok := auth.PrincipalFromContext(c); ok {
		data.User = principal.User
	}
	if renderErr := p.views.render(c, domainErr.HTTPStatus, "error.html", data); renderErr != nil {
		return c.Status(domainErr.HTTPStatus).SendString(domainErr.Message)
	}
	return nil
}

func (p *Portal) home(c *fiber.Ctx) error {
	if _, err := p.mw.Authenticate(c); err == nil {
		return c.Redirect(portalPath, fiber.StatusSeeOther)
	}
	return c.Redirect(loginPath, fiber.StatusSeeOther)
}

func principal(c *fiber.Ctx) (*domain.User, error) {
	pr, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return pr.User, nil
}

func ticketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound("ticket", nil)
	}
	return id, nil
}

func redirectWithNotice(c *fiber.Ctx, target, notice string) error {
	return c.Redirect(target+"?notice="+url.QueryEscape(notice), fiber.StatusSeeOther)
}

func ticketPath(id int64) string {
	return portalPath + "/tickets/" + strconv.FormatInt(id, 10)
}

// formFailure returns the status and message to show inline above a form,
// or false when err should propagate to handleErrors.
func formFailure(err error) (int, string, bool) {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.HTTPStatus >= fiber.StatusInternalServerError {
		return 0, "", false
	}
	return domainErr.HTTPStatus, domainErr.Message, true
}
