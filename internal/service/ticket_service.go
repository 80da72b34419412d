package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/events"
	"github.com/spec-kit/ticket-portal/internal/repository"
	apperrors "github.com/spec-kit/ticket-portal/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TicketService coordinates ticket workflows for submitters and admins.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// SubmitTicketInput is the new-ticket form.
type SubmitTicketInput struct {
	Subject     string `json:"subject" form:"subject" validate:"required,max=200"`
	Description string `json:"description" form:"description" validate:"required,max=10000"`
	Email       string `json:"email" form:"email" validate:"required,email,max=254"`
}

// OwnTicket is a submitter's ticket with the latest admin reply.
type OwnTicket struct {
	domain.Ticket
	LatestAdminReply string
}

// AdminTicketQuery filters the moderation listing.
type AdminTicketQuery struct {
	Statuses []domain.TicketStatus
	Owner    string
	Search   string
	Page     int
	PageSize int
}

// TicketPage is one page of a listing.
type TicketPage struct {
	Items    []domain.Ticket
	Total    int
	Page     int
	PageSize int
}

// NewTicketService constructs the service.
func NewTicketService(tickets repository.TicketRepository, dispatcher events.Dispatcher, logger *zap.Logger) *TicketService {
	return &TicketService{
		tickets:    tickets,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// SubmitTicket opens a ticket owned by user.
func (s *TicketService) SubmitTicket(ctx context.Context, user *domain.User, input SubmitTicketInput) (*domain.Ticket, error) {
	input.Subject = strings.TrimSpace(input.Subject)
	input.Description = strings.TrimSpace(input.Description)
	input.Email = strings.TrimSpace(input.Email)
	if err := checkInput(input, ErrTicketFieldsRequired); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ticket := &domain.Ticket{
		Name:        user.Username,
		Email:       input.Email,
		Subject:     input.Subject,
		Description: input.Description,
		Status:      domain.TicketStatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateTicket
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketCreated, ticket.ID, actorOf(user), now, events.TicketCreatedPayload{
		Owner:   ticket.Name,
		Email:   ticket.Email,
		Subject: ticket.Subject,
	}))
	return ticket, nil
}

// ListOwnTickets returns the caller's tickets, newest first.
func (s *TicketService) ListOwnTickets(ctx context.Context, username string) ([]OwnTicket, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{Name: &username})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	out := make([]OwnTicket, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, OwnTicket{Ticket: t, LatestAdminReply: domain.LatestAdminReply(t.Comments)})
	}
	return out, nil
}

// GetOwnTicket fetches a ticket owned by username. Other users' tickets are
// reported as missing.
func (s *TicketService) GetOwnTicket(ctx context.Context, username string, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotOwned
		}
		return nil, apperrors.NewInternalError(err)
	}
	if ticket.Name != username {
		return nil, ErrTicketNotOwned
	}
	return ticket, nil
}

// ReopenTicket moves a resolved or discarded ticket back to Reopened and
// records the user's reason.
func (s *TicketService) ReopenTicket(ctx context.Context, user *domain.User, id int64, comment string) (*domain.Ticket, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, ErrReopenComment
	}

	current, err := s.GetOwnTicket(ctx, user.Username, id)
	if err != nil {
		return nil, err
	}
	if current.Status.Active() {
		return nil, ErrTicketActive
	}

	now := s.now().UTC()
	to := domain.TicketStatusReopened
	owner := user.Username
	updated, err := s.tickets.Update(ctx, repository.TicketUpdate{
		ID:            id,
		Owner:         &owner,
		FromStatuses:  []domain.TicketStatus{current.Status},
		ToStatus:      &to,
		AppendComment: domain.NewEntryLine(now, user.Username, comment),
		At:            now,
	})
	if err != nil {
		return nil, s.classifyUserUpdate(err, updated)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, id, actorOf(user), now, events.TicketStatusChangedPayload{
		OldStatus: current.Status,
		NewStatus: updated.Status,
		Comment:   events.Preview(comment),
	}))
	return updated, nil
}

// CommentOnTicket appends a user entry while the ticket is still active.
func (s *TicketService) CommentOnTicket(ctx context.Context, user *domain.User, id int64, comment string) (*domain.Ticket, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, ErrCommentRequired
	}

	now := s.now().UTC()
	owner := user.Username
	updated, err := s.tickets.Update(ctx, repository.TicketUpdate{
		ID:            id,
		Owner:         &owner,
		FromStatuses:  []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusReopened},
		AppendComment: domain.NewEntryLine(now, user.Username, comment),
		At:            now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrTicketNotOwned
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrTicketClosed
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketCommentAdded, id, actorOf(user), now, events.TicketCommentAddedPayload{
		Author:      user.Username,
		BodyPreview: events.Preview(comment),
	}))
	return updated, nil
}

func (s *TicketService) classifyUserUpdate(err error, current *domain.Ticket) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrTicketNotOwned
	case errors.Is(err, repository.ErrConflict):
		if current != nil && current.Status.Active() {
			return ErrTicketActive
		}
		return ErrTicketChanged
	}
	return apperrors.NewInternalError(err)
}

// Stats counts tickets per status.
func (s *TicketService) Stats(ctx context.Context) (domain.TicketStats, error) {
	stats, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return domain.TicketStats{}, apperrors.NewInternalError(err)
	}
	return stats, nil
}

// ListSection returns every ticket in one status, newest first.
func (s *TicketService) ListSection(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	if !status.Valid() {
		return nil, ErrUnknownStatus
	}
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{Statuses: []domain.TicketStatus{status}})
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return tickets, nil
}

// ListTickets returns a filtered page of all tickets.
func (s *TicketService) ListTickets(ctx context.Context, query AdminTicketQuery) (*TicketPage, error) {
	for _, status := range query.Statuses {
		if !status.Valid() {
			return nil, ErrUnknownStatus
		}
	}
	page, size := normalizePaging(query.Page, query.PageSize)

	filter := repository.TicketFilter{
		Statuses: query.Statuses,
		Limit:    size,
		Offset:   (page - 1) * size,
	}
	if owner := NormalizeUsername(query.Owner); owner != "" {
		filter.Name = &owner
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		filter.SearchTerm = &search
	}

	items, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	total, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &TicketPage{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func normalizePaging(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

// GetTicket fetches any ticket for an admin.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

// Resolve closes an active ticket as resolved.
func (s *TicketService) Resolve(ctx context.Context, admin *domain.User, id int64) (*domain.Ticket, error) {
	return s.close(ctx, admin, id, domain.TicketStatusResolved)
}

// Discard closes an active ticket as discarded.
func (s *TicketService) Discard(ctx context.Context, admin *domain.User, id int64) (*domain.Ticket, error) {
	return s.close(ctx, admin, id, domain.TicketStatusDiscarded)
}

func (s *TicketService) close(ctx context.Context, admin *domain.User, id int64, to domain.TicketStatus) (*domain.Ticket, error) {
	current, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.Active() {
		return nil, ErrIllegalTransition
	}

	now := s.now().UTC()
	updated, err := s.tickets.Update(ctx, repository.TicketUpdate{
		ID:           id,
		FromStatuses: []domain.TicketStatus{current.Status},
		ToStatus:     &to,
		At:           now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrTicketNotFound
		case errors.Is(err, repository.ErrConflict):
			if updated != nil && updated.Status.Active() {
				return nil, ErrTicketChanged
			}
			return nil, ErrIllegalTransition
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("ticket closed",
		zap.Int64("ticket_id", id),
		zap.String("admin", admin.Username),
		zap.String("status", string(to)))
	s.publishEvent(ctx, events.NewEvent(events.EventTicketStatusChanged, id, actorOf(admin), now, events.TicketStatusChangedPayload{
		OldStatus: current.Status,
		NewStatus: updated.Status,
	}))
	return updated, nil
}

// Reply appends an admin entry to a ticket in any status.
func (s *TicketService) Reply(ctx context.Context, admin *domain.User, id int64, message string) (*domain.Ticket, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrReplyRequired
	}

	now := s.now().UTC()
	updated, err := s.tickets.Update(ctx, repository.TicketUpdate{
		ID:            id,
		AppendComment: domain.NewEntryLine(now, domain.AdminAuthor, message),
		At:            now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventTicketCommentAdded, id, actorOf(admin), now, events.TicketCommentAddedPayload{
		Author:      domain.AdminAuthor,
		FromAdmin:   true,
		BodyPreview: events.Preview(message),
	}))
	return updated, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func actorOf(user *domain.User) events.Actor {
	return events.Actor{Username: user.Username, Role: user.Role}
}
