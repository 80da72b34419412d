package web

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/service"
)

const (
	tabLogin  = "login"
	tabSignup = "signup"
)

func (p *Portal) showAuth(c *fiber.Ctx) error {
	if _, err := p.mw.Authenticate(c); err == nil {
		return c.Redirect(portalPath, fiber.StatusSeeOther)
	}
	tab := tabLogin
	if c.Query("tab") == tabSignup {
		tab = tabSignup
	}
	return p.views.render(c, fiber.StatusOK, "auth.html", &pageData{Title: "Ticket Portal", Tab: tab})
}

func (p *Portal) login(c *fiber.Ctx) error {
	input := service.LoginInput{
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
	}
	data := &pageData{
		Title: "Ticket Portal",
		Tab:   tabLogin,
		Form:  map[string]string{"username": input.Username},
	}

	if p.limiter != nil {
		allowed, retryAfter, err := p.limiter.Allow(c.UserContext(), "login:"+c.IP())
		if err != nil {
			p.logger.Warn("rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			secs := int(math.Max(1, math.Ceil(retryAfter.Seconds())))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
			data.Error = "Too many login attempts. Try again later."
			return p.views.render(c, fiber.StatusTooManyRequests, "auth.html", data)
		}
	}

	_, session, err := p.auth.Login(c.UserContext(), input)
	if err != nil {
		status, msg, ok := formFailure(err)
		if !ok {
			return err
		}
		data.Error = msg
		return p.views.render(c, status, "auth.html", data)
	}

	p.mw.SetCookie(c, session, p.cookieSecure)
	return c.Redirect(portalPath, fiber.StatusSeeOther)
}

func (p *Portal) signup(c *fiber.Ctx) error {
	input := service.SignupInput{
		Username: c.FormValue("username"),
		Name:     c.FormValue("name"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
	}

	if _, err := p.auth.Signup(c.UserContext(), input); err != nil {
		status, msg, ok := formFailure(err)
		if !ok {
			return err
		}
		return p.views.render(c, status, "auth.html", &pageData{
			Title: "Ticket Portal",
			Tab:   tabSignup,
			Error: msg,
			Form: map[string]string{
				"username": input.Username,
				"name":     input.Name,
				"email":    input.Email,
			},
		})
	}
	return redirectWithNotice(c, loginPath, "signedup")
}

func (p *Portal) logout(c *fiber.Ctx) error {
	if pr, err := p.mw.Authenticate(c); err == nil {
		if err := p.auth.Logout(c.UserContext(), pr.Claims); err != nil {
			p.logger.Warn("logout revocation failed", zap.String("username", pr.User.Username), zap.Error(err))
		}
	}
	p.mw.ClearCookie(c)
	return redirectWithNotice(c, loginPath, "loggedout")
}
