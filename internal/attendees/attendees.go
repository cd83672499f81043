// Package attendees derives the per-guest view of an event's tickets.
package attendees

import (
	"sort"
	"strings"

	"wedding-manager/internal/models"
)

// Aggregate groups tickets by attendee name. Tickets inside a group are
// ordered by ticket number; groups are ordered by the first ticket created
// for them. The result does not depend on the order of the input.
func Aggregate(tickets []models.Ticket) []models.Attendee {
	sorted := make([]models.Ticket, len(tickets))
	copy(sorted, tickets)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.AttendeeName != b.AttendeeName {
			return a.AttendeeName < b.AttendeeName
		}
		return a.ID < b.ID
	})

	index := make(map[string]int)
	var result []models.Attendee
	for _, t := range sorted {
		i, ok := index[t.AttendeeName]
		if !ok {
			i = len(result)
			index[t.AttendeeName] = i
			result = append(result, models.Attendee{Name: t.AttendeeName})
		}
		result[i].Tickets = append(result[i].Tickets, t)
	}

	for i := range result {
		group := result[i].Tickets
		sort.SliceStable(group, func(a, b int) bool {
			if group[a].TicketNumber != group[b].TicketNumber {
				return group[a].TicketNumber < group[b].TicketNumber
			}
			return group[a].ID < group[b].ID
		})
		result[i].TicketCount = len(group)
	}
	return result
}

// Filter keeps attendees whose name contains term, ignoring case. The input is
// never modified; an empty term returns a copy of everything.
func Filter(attendees []models.Attendee, term string) []models.Attendee {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]models.Attendee, 0, len(attendees))
	for _, a := range attendees {
		if needle == "" || strings.Contains(strings.ToLower(a.Name), needle) {
			out = append(out, a)
		}
	}
	return out
}

// Find returns the attendee with exactly this name.
func Find(attendees []models.Attendee, name string) (models.Attendee, bool) {
	for _, a := range attendees {
		if a.Name == name {
			return a, true
		}
	}
	return models.Attendee{}, false
}

// Summarize adds active and checked-in counts for listings.
func Summarize(attendees []models.Attendee) []models.AttendeeSummary {
	out := make([]models.AttendeeSummary, len(attendees))
	for i, a := range attendees {
		s := models.AttendeeSummary{Attendee: a}
		for _, t := range a.Tickets {
			if t.IsActive() {
				s.ActiveCount++
			}
			if t.CheckedIn {
				s.CheckedInCount++
			}
		}
		out[i] = s
	}
	return out
}
