package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/service"
)

func (p *Portal) dashboard(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	if user.IsAdmin() {
		data, err := p.adminData(c, user)
		if err != nil {
			return err
		}
		return p.views.render(c, fiber.StatusOK, "admin.html", data)
	}
	data, err := p.userData(c, user, map[string]string{"email": user.Email})
	if err != nil {
		return err
	}
	return p.views.render(c, fiber.StatusOK, "user.html", data)
}

func (p *Portal) userData(c *fiber.Ctx, user *domain.User, form map[string]string) (*pageData, error) {
	tickets, err := p.tickets.ListOwnTickets(c.UserContext(), user.Username)
	if err != nil {
		return nil, err
	}
	return &pageData{Title: "My tickets", User: user, OwnTickets: tickets, Form: form}, nil
}

func (p *Portal) adminData(c *fiber.Ctx, user *domain.User) (*pageData, error) {
	ctx := c.UserContext()
	stats, err := p.tickets.Stats(ctx)
	if err != nil {
		return nil, err
	}
	data := &pageData{Title: "Admin dashboard", User: user, Stats: stats}
	for _, status := range domain.TicketStatuses {
		tickets, err := p.tickets.ListSection(ctx, status)
		if err != nil {
			return nil, err
		}
		data.Sections = append(data.Sections, section{Status: status, Tickets: tickets, Actions: status.Active()})
	}

	query := strings.TrimSpace(c.Query("q"))
	owner := strings.TrimSpace(c.Query("owner"))
	status := strings.TrimSpace(c.Query("status"))
	if query == "" && owner == "" && status == "" {
		return data, nil
	}
	adminQuery := service.AdminTicketQuery{
		Owner:  owner,
		Search: query,
		Page:   c.QueryInt("page", 1),
	}
	if status != "" {
		adminQuery.Statuses = []domain.TicketStatus{domain.TicketStatus(status)}
	}
	page, err := p.tickets.ListTickets(ctx, adminQuery)
	if err != nil {
		return nil, err
	}
	result := &searchResult{Query: query, Owner: owner, Status: status, Page: page}
	if page.Page > 1 {
		result.PrevPage = page.Page - 1
	}
	if page.Page*page.PageSize < page.Total {
		result.NextPage = page.Page + 1
	}
	data.Search = result
	return data, nil
}

func (p *Portal) ticketDetail(c *fiber.Ctx) error {
	data, err := p.detailData(c)
	if err != nil {
		return err
	}
	return p.views.render(c, fiber.StatusOK, "ticket.html", data)
}

func (p *Portal) detailData(c *fiber.Ctx) (*pageData, error) {
	user, err := principal(c)
	if err != nil {
		return nil, err
	}
	id, err := ticketID(c)
	if err != nil {
		return nil, err
	}
	var ticket *domain.Ticket
	if user.IsAdmin() {
		ticket, err = p.tickets.GetTicket(c.UserContext(), id)
	} else {
		ticket, err = p.tickets.GetOwnTicket(c.UserContext(), user.Username, id)
	}
	if err != nil {
		return nil, err
	}
	return &pageData{
		Title:        ticket.Subject,
		User:         user,
		Ticket:       ticket,
		Conversation: ticket.Conversation(),
	}, nil
}

// renderDetailError re-renders the ticket page with an inline error.
func (p *Portal) renderDetailError(c *fiber.Ctx, cause error, form map[string]string) error {
	status, msg, ok := formFailure(cause)
	if !ok {
		return cause
	}
	data, err := p.detailData(c)
	if err != nil {
		return err
	}
	data.Error = msg
	data.Form = form
	return p.views.render(c, status, "ticket.html", data)
}

func (p *Portal) submitTicket(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	input := service.SubmitTicketInput{
		Subject:     c.FormValue("subject"),
		Description: c.FormValue("description"),
		Email:       c.FormValue("email"),
	}
	if _, err := p.tickets.SubmitTicket(c.UserContext(), user, input); err != nil {
		status, msg, ok := formFailure(err)
		if !ok {
			return err
		}
		data, dataErr := p.userData(c, user, map[string]string{
			"subject":     input.Subject,
			"description": input.Description,
			"email":       input.Email,
		})
		if dataErr != nil {
			return dataErr
		}
		data.Error = msg
		return p.views.render(c, status, "user.html", data)
	}
	return redirectWithNotice(c, portalPath, "submitted")
}

func (p *Portal) reopenTicket(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	comment := c.FormValue("comment")
	if _, err := p.tickets.ReopenTicket(c.UserContext(), user, id, comment); err != nil {
		return p.renderDetailError(c, err, map[string]string{"reopen": comment})
	}
	return redirectWithNotice(c, ticketPath(id), "reopened")
}

func (p *Portal) commentTicket(c *fiber.Ctx) error {
	user, err := principal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	comment := c.FormValue("comment")
	if _, err := p.tickets.CommentOnTicket(c.UserContext(), user, id, comment); err != nil {
		return p.renderDetailError(c, err, map[string]string{"comment": comment})
	}
	return redirectWithNotice(c, ticketPath(id), "commented")
}

func (p *Portal) resolveTicket(c *fiber.Ctx) error {
	return p.closeTicket(c, domain.TicketStatusResolved)
}

func (p *Portal) discardTicket(c *fiber.Ctx) error {
	return p.closeTicket(c, domain.TicketStatusDiscarded)
}

func (p *Portal) closeTicket(c *fiber.Ctx, to domain.TicketStatus) error {
	admin, err := principal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	op, notice := p.tickets.Resolve, "resolved"
	if to == domain.TicketStatusDiscarded {
		op, notice = p.tickets.Discard, "discarded"
	}
	if _, err := op(c.UserContext(), admin, id); err != nil {
		status, msg, ok := formFailure(err)
		if !ok {
			return err
		}
		data, dataErr := p.adminData(c, admin)
		if dataErr != nil {
			return dataErr
		}
		data.Error = msg
		return p.views.render(c, status, "admin.html", data)
	}
	return redirectWithNotice(c, portalPath, notice)
}

func (p *Portal) replyTicket(c *fiber.Ctx) error {
	admin, err := principal(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	message := c.FormValue("message")
	if _, err := p.tickets.Reply(c.UserContext(), admin, id, message); err != nil {
		return p.renderDetailError(c, err, map[string]string{"message": message})
	}
	return redirectWithNotice(c, ticketPath(id), "replied")
}
