package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusActive TicketStatus = "active"
	TicketStatusVoid   TicketStatus = "void"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID           string       `bun:"id,pk" json:"id"`
	EventID      string       `bun:"event_id,notnull" json:"eventId"`
	AttendeeName string       `bun:"attendee_name,notnull" json:"attendeeName"`
	TicketNumber int          `bun:"ticket_number,notnull" json:"ticketNumber"`
	TotalTickets int          `bun:"total_tickets,notnull" json:"totalTickets"`
	CheckedIn    bool         `bun:"checked_in,notnull" json:"checkedIn"`
	CheckedInAt  *time.Time   `bun:"checked_in_at" json:"checkedInAt,omitempty"`
	Status       TicketStatus `bun:"status,notnull" json:"status"`
	CreatedAt    time.Time    `bun:"created_at,notnull" json:"createdAt"`
}

// IsActive reports whether the ticket can still be used at the door.
func (t Ticket) IsActive() bool {
	return t.Status == TicketStatusActive
}

// TicketPatch is the edit form: rename the attendee or flip the status.
type TicketPatch struct {
	AttendeeName *string       `json:"attendeeName,omitempty" validate:"omitempty,min=1,max=200"`
	Status       *TicketStatus `json:"status,omitempty" validate:"omitempty,oneof=active void"`
}

// BatchRequest adds count tickets for one attendee.
type BatchRequest struct {
	AttendeeName string `json:"attendeeName" validate:"required,max=200"`
	Count        int    `json:"count" validate:"required,gte=1"`
}
