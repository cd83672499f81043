package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusActive    EventStatus = "active"
	EventStatusCompleted EventStatus = "completed"
)

// DefaultEventImage is the cover used when a draft does not carry one.
const DefaultEventImage = "https://images.unsplash.com/photo-1519741497674-611481863552?auto=format&fit=crop&q=80"

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID              string      `bun:"id,pk" json:"id"`
	Couple          string      `bun:"couple,notnull" json:"couple"`
	Date            time.Time   `bun:"date,notnull" json:"date"`
	Location        string      `bun:"location,notnull" json:"location"`
	Image           string      `bun:"image" json:"image"`
	Guests          int         `bun:"guests" json:"guests"`
	WebsiteTemplate *string     `bun:"website_template" json:"websiteTemplate,omitempty"`
	WebsiteURL      *string     `bun:"website_url" json:"websiteUrl,omitempty"`
	Photos          []string    `bun:"photos" json:"photos,omitempty"`
	OwnerID         string      `bun:"owner_id" json:"ownerId,omitempty"`
	Status          EventStatus `bun:"status,notnull" json:"status"`
	CreatedAt       time.Time   `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt       time.Time   `bun:"updated_at,notnull" json:"updatedAt"`
}

// EventDraft is the user-submitted form for a new event.
type EventDraft struct {
	Couple   string      `json:"couple" validate:"required,max=200"`
	Date     time.Time   `json:"date" validate:"required"`
	Location string      `json:"location" validate:"required,max=300"`
	Image    string      `json:"image" validate:"omitempty,url"`
	Guests   int         `json:"guests" validate:"gte=0"`
	Status   EventStatus `json:"status" validate:"omitempty,oneof=draft active completed"`
}

// EventPatch carries a partial update; nil fields are left untouched.
type EventPatch struct {
	Couple          *string      `json:"couple,omitempty" validate:"omitempty,min=1,max=200"`
	Date            *time.Time   `json:"date,omitempty"`
	Location        *string      `json:"location,omitempty" validate:"omitempty,min=1,max=300"`
	Image           *string      `json:"image,omitempty" validate:"omitempty,url"`
	Guests          *int         `json:"guests,omitempty" validate:"omitempty,gte=0"`
	WebsiteTemplate *string      `json:"websiteTemplate,omitempty"`
	WebsiteURL      *string      `json:"websiteUrl,omitempty" validate:"omitempty,url"`
	Status          *EventStatus `json:"status,omitempty" validate:"omitempty,oneof=draft active completed"`
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Couple == nil && p.Date == nil && p.Location == nil && p.Image == nil &&
		p.Guests == nil && p.WebsiteTemplate == nil && p.WebsiteURL == nil && p.Status == nil
}
