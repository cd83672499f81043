package tickets

import "time"

// SetIDSource replaces the id generator in tests.
func (s *TicketService) SetIDSource(f func() string) { s.newID = f }

// SetClock replaces the clock in tests.
func (s *TicketService) SetClock(f func() time.Time) { s.now = f }
