package models

import (
	"time"
)

type ChangeAction string

const (
	ActionCreated ChangeAction = "created"
	ActionUpdated ChangeAction = "updated"
	ActionDeleted ChangeAction = "deleted"
	ActionVoided  ChangeAction = "voided"
	ActionChecked ChangeAction = "checked_in"
)

// ChangeEventDto is published to Kafka after every successful write.
type ChangeEventDto struct {
	Action     ChangeAction `json:"action"`
	EventID    string       `json:"event_id"`
	TicketIDs  []string     `json:"ticket_ids,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

func NewChangeEventDto(action ChangeAction, eventID string, ticketIDs ...string) ChangeEventDto {
	return ChangeEventDto{
		Action:     action,
		EventID:    eventID,
		TicketIDs:  ticketIDs,
		OccurredAt: time.Now().UTC(),
	}
}

// ExportCompletedDto records a finished archive.
type ExportCompletedDto struct {
	EventID    string    `json:"event_id"`
	Archive    string    `json:"archive"`
	Files      int       `json:"files"`
	OccurredAt time.Time `json:"occurred_at"`
}
