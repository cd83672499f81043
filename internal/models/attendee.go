package models

// Attendee is a read-only projection of the tickets sharing one attendee name
// within an event. It is rebuilt from the ticket list and never stored.
type Attendee struct {
	Name        string   `json:"name"`
	TicketCount int      `json:"ticketCount"`
	Tickets     []Ticket `json:"tickets"`
}

// AttendeeSummary is the listing row returned by the API.
type AttendeeSummary struct {
	Attendee
	ActiveCount    int `json:"activeCount"`
	CheckedInCount int `json:"checkedInCount"`
}
