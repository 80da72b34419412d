package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-portal/internal/domain"
	"github.com/spec-kit/ticket-portal/internal/persistence"
)

// TicketFilter captures listing parameters. A non-positive Limit returns
// every matching row.
type TicketFilter struct {
	Name       *string
	Statuses   []domain.TicketStatus
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketUpdate is a conditional single-row mutation. The row is changed only
// when it matches ID, Owner (if set) and one of FromStatuses (if any).
type TicketUpdate struct {
	ID            int64
	Owner         *string
	FromStatuses  []domain.TicketStatus
	ToStatus      *domain.TicketStatus
	AppendComment string
	At            time.Time
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	Count(ctx context.Context, filter TicketFilter) (int, error)
	CountByStatus(ctx context.Context) (domain.TicketStats, error)
	Update(ctx context.Context, update TicketUpdate) (*domain.Ticket, error)
}

type ticketRepository struct {
	db *persistence.Database
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db *persistence.Database) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, name, email, subject, description, status, created_at, updated_at, comments`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (name, email, subject, description, status, created_at, updated_at, comments)
        VALUES (?,?,?,?,?,?,?,?)
        RETURNING id`
	err := r.db.DB.QueryRowContext(ctx, r.db.Rebind(query),
		ticket.Name,
		ticket.Email,
		ticket.Subject,
		ticket.Description,
		ticket.Status,
		dbTime{ticket.CreatedAt},
		dbTime{ticket.UpdatedAt},
		ticket.Comments,
	).Scan(&ticket.ID)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=?`
	ticket, err := scanTicket(r.db.DB.QueryRowContext(ctx, r.db.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	where, args := buildTicketWhere(filter)
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + where + ` ORDER BY id DESC`
	if filter.Limit > 0 {
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	}

	rows, err := r.db.DB.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) Count(ctx context.Context, filter TicketFilter) (int, error) {
	where, args := buildTicketWhere(filter)
	var count int
	err := r.db.DB.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM tickets WHERE `+where), args...).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (domain.TicketStats, error) {
	var stats domain.TicketStats
	rows, err := r.db.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status domain.TicketStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		switch status {
		case domain.TicketStatusOpen:
			stats.Open = count
		case domain.TicketStatusReopened:
			stats.Reopened = count
		case domain.TicketStatusResolved:
			stats.Resolved = count
		case domain.TicketStatusDiscarded:
			stats.Discarded = count
		}
	}
	return stats, rows.Err()
}

func (r *ticketRepository) Update(ctx context.Context, update TicketUpdate) (*domain.Ticket, error) {
	sets := []string{}
	args := []any{}
	if update.ToStatus != nil {
		sets = append(sets, "status=?")
		args = append(args, *update.ToStatus)
	}
	if update.AppendComment != "" {
		sets = append(sets, "comments = comments || ?")
		args = append(args, update.AppendComment)
	}
	if len(sets) == 0 {
		return nil, errors.New("ticket update changes nothing")
	}
	sets = append(sets, "updated_at=?")
	args = append(args, dbTime{update.At})

	clauses := []string{"id=?"}
	args = append(args, update.ID)
	if update.Owner != nil {
		clauses = append(clauses, "name=?")
		args = append(args, *update.Owner)
	}
	if len(update.FromStatuses) > 0 {
		clauses = append(clauses, statusInClause(update.FromStatuses, &args))
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), strings.Join(clauses, " AND "), ticketColumns)

	ticket, err := scanTicket(r.db.DB.QueryRowContext(ctx, r.db.Rebind(query), args...))
	if err == nil {
		return ticket, nil
	}
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Nothing matched: tell a missing (or foreign) ticket apart from a stale status.
	current, getErr := r.GetByID(ctx, update.ID)
	if getErr != nil {
		return nil, getErr
	}
	if update.Owner != nil && current.Name != *update.Owner {
		return nil, ErrNotFound
	}
	return current, ErrConflict
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Name != nil {
		clauses = append(clauses, "name=?")
		args = append(args, *filter.Name)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, statusInClause(filter.Statuses, &args))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		clauses = append(clauses, "(LOWER(subject) LIKE ? OR LOWER(description) LIKE ?)")
		args = append(args, search, search)
	}
	return strings.Join(clauses, " AND "), args
}

func statusInClause(statuses []domain.TicketStatus, args *[]any) string {
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		*args = append(*args, status)
		placeholders[i] = "?"
	}
	return fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ","))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket             domain.Ticket
		createdAt, updated dbTime
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Name,
		&ticket.Email,
		&ticket.Subject,
		&ticket.Description,
		&ticket.Status,
		&createdAt,
		&updated,
		&ticket.Comments,
	); err != nil {
		return nil, err
	}
	ticket.CreatedAt = createdAt.Time
	ticket.UpdatedAt = updated.Time
	return &ticket, nil
}
