package dto

import (
	"time"

	"github.com/spec-kit/ticket-portal/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string `json:"subject" form:"subject"`
	Description string `json:"description" form:"description"`
	Email       string `json:"email" form:"email"`
}

// CommentRequest carries a user comment or reopen reason.
type CommentRequest struct {
	Comment string `json:"comment" form:"comment"`
}

// ReplyRequest carries an admin reply.
type ReplyRequest struct {
	Message string `json:"message" form:"message"`
}

// TicketSummary response.
type TicketSummary struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	Email            string              `json:"email"`
	Subject          string              `json:"subject"`
	Status           domain.TicketStatus `json:"status"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	LatestAdminReply string              `json:"latest_admin_reply,omitempty"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	ID           int64                  `json:"id"`
	Name         string                 `json:"name"`
	Email        string                 `json:"email"`
	Subject      string                 `json:"subject"`
	Description  string                 `json:"description"`
	Status       domain.TicketStatus    `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
	Conversation []ConversationResponse `json:"conversation"`
}

// ConversationResponse is one comment log entry.
type ConversationResponse struct {
	Timestamp string `json:"timestamp,omitempty"`
	Author    string `json:"author,omitempty"`
	Body      string `json:"body"`
	FromAdmin bool   `json:"from_admin"`
}

// StatsResponse is the admin dashboard header.
type StatsResponse struct {
	Open      int `json:"open"`
	Reopened  int `json:"reopened"`
	Resolved  int `json:"resolved"`
	Discarded int `json:"discarded"`
	Closed    int `json:"closed"`
	Total     int `json:"total"`
}

// TicketPageResponse is a page of summaries.
type TicketPageResponse struct {
	Items    []TicketSummary `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// NewTicketSummary maps a ticket.
func NewTicketSummary(ticket *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:        ticket.ID,
		Name:      ticket.Name,
		Email:     ticket.Email,
		Subject:   ticket.Subject,
		Status:    ticket.Status,
		CreatedAt: ticket.CreatedAt,
		UpdatedAt: ticket.UpdatedAt,
	}
}

// NewTicketSummaries maps a slice of tickets.
func NewTicketSummaries(tickets []domain.Ticket) []TicketSummary {
	items := make([]TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketSummary(&tickets[i]))
	}
	return items
}

// NewTicketDetail maps a ticket and its parsed conversation.
func NewTicketDetail(ticket *domain.Ticket) TicketDetailResponse {
	entries := ticket.Conversation()
	conversation := make([]ConversationResponse, 0, len(entries))
	for _, e := range entries {
		body := e.Body
		if e.Author == "" {
			body = e.Raw
		}
		conversation = append(conversation, ConversationResponse{
			Timestamp: e.Timestamp,
			Author:    e.Author,
			Body:      body,
			FromAdmin: e.FromAdmin(),
		})
	}
	return TicketDetailResponse{
		ID:           ticket.ID,
		Name:         ticket.Name,
		Email:        ticket.Email,
		Subject:      ticket.Subject,
		Description:  ticket.Description,
		Status:       ticket.Status,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
		Conversation: conversation,
	}
}

// NewStatsResponse maps dashboard counts.
func NewStatsResponse(stats domain.TicketStats) StatsResponse {
	return StatsResponse{
		Open:      stats.Open,
		Reopened:  stats.Reopened,
		Resolved:  stats.Resolved,
		Discarded: stats.Discarded,
		Closed:    stats.Closed(),
		Total:     stats.Total(),
	}
}
