package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen      TicketStatus = "Open"
	TicketStatusReopened  TicketStatus = "Reopened"
	TicketStatusResolved  TicketStatus = "Resolved"
	TicketStatusDiscarded TicketStatus = "Discarded"
)

// TicketStatuses lists every status in dashboard order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusReopened,
	TicketStatusResolved,
	TicketStatusDiscarded,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Active reports whether the ticket still awaits an admin decision.
func (s TicketStatus) Active() bool {
	return s == TicketStatusOpen || s == TicketStatusReopened
}

// Closed reports whether an admin has resolved or discarded the ticket.
func (s TicketStatus) Closed() bool {
	return s == TicketStatusResolved || s == TicketStatusDiscarded
}

// Ticket is a user-submitted support request.
type Ticket struct {
	ID          int64
	Name        string
	Email       string
	Subject     string
	Description string
	Status      TicketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Comments    string
}

// Conversation parses the ticket's comment log.
func (t *Ticket) Conversation() []ConversationEntry {
	return ParseConversation(t.Comments)
}

// TicketStats summarizes ticket counts per status for the admin dashboard.
type TicketStats struct {
	Open      int
	Reopened  int
	Resolved  int
	Discarded int
}

// Closed counts tickets no longer awaiting action.
func (s TicketStats) Closed() int {
	return s.Resolved + s.Discarded
}

// Total counts all tickets.
func (s TicketStats) Total() int {
	return s.Open + s.Reopened + s.Resolved + s.Discarded
}
