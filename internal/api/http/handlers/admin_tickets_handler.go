package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-portal/internal/api/dto"
	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/service"
	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
)

// AdminTicketsHandler handles moderation endpoints.
type AdminTicketsHandler struct {
	tickets *service.TicketService
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService) *AdminTicketsHandler {
	return &AdminTicketsHandler{tickets: ticketService}
}

// Stats GET /api/admin/stats.
func (h *AdminTicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.tickets.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatsResponse(stats)})
}

// Dashboard GET /api/admin/dashboard returns the stats and every section.
func (h *AdminTicketsHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.tickets.Stats(c.UserContext())
	if err != nil {
		return err
	}
	sections := make(fiber.Map, len(domain.TicketStatuses))
	for _, status := range domain.TicketStatuses {
		tickets, err := h.tickets.ListSection(c.UserContext(), status)
		if err != nil {
			return err
		}
		sections[string(status)] = dto.NewTicketSummaries(tickets)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"stats":    dto.NewStatsResponse(stats),
		"sections": sections,
	}})
}

// ListTickets GET /api/admin/tickets.
func (h *AdminTicketsHandler) ListTickets(c *fiber.Ctx) error {
	page, err := h.tickets.ListTickets(c.UserContext(), parseAdminTicketQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketPageResponse{
		Items:    dto.NewTicketSummaries(page.Items),
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	}})
}

// GetTicket GET /api/admin/tickets/:id.
func (h *AdminTicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// Resolve POST /api/admin/tickets/:id/resolve.
func (h *AdminTicketsHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Resolve)
}

// Discard POST /api/admin/tickets/:id/discard.
func (h *AdminTicketsHandler) Discard(c *fiber.Ctx) error {
	return h.transition(c, h.tickets.Discard)
}

type transitionFunc func(ctx context.Context, admin *domain.User, id int64) (*domain.Ticket, error)

func (h *AdminTicketsHandler) transition(c *fiber.Ctx, op transitionFunc) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	ticket, err := op(c.UserContext(), admin, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

// Reply POST /api/admin/tickets/:id/replies.
func (h *AdminTicketsHandler) Reply(c *fiber.Ctx) error {
	admin, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := ticketID(c)
	if err != nil {
		return err
	}
	var req dto.ReplyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Reply(c.UserContext(), admin, id, req.Message)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketDetail(ticket)})
}

func parseAdminTicketQuery(c *fiber.Ctx) service.AdminTicketQuery {
	query := service.AdminTicketQuery{
		Owner:    c.Query("owner"),
		Search:   c.Query("search"),
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), 0),
	}
	if statuses := c.Query("status"); statuses != "" {
		for _, part := range strings.Split(statuses, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Statuses = append(query.Statuses, domain.TicketStatus(part))
			}
		}
	}
	return query
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
