package feed

import "strings"

// EventsScope is the scope of the full event list.
const EventsScope = "events"

const ticketsPrefix = "tickets:"

// TicketsScope is the scope of one event's ticket list.
func TicketsScope(eventID string) string {
	return ticketsPrefix + eventID
}

// ParseTicketsScope returns the event id of a tickets scope.
func ParseTicketsScope(scope string) (string, bool) {
	if !strings.HasPrefix(scope, ticketsPrefix) {
		return "", false
	}
	return strings.TrimPrefix(scope, ticketsPrefix), true
}
