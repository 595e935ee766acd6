package model

import "time"

// Slot represents a capacity-bounded, time-scheduled bookable resource
// as stored in the `slots` table together with its booking set from
// `slot_bookings`. Date and Time are kept in the DB string formats
// ("2006-01-02" and "15:04", UTC) so they round-trip through the API
// unchanged.
//
// Fields:
//  ID        – uuid primary key, assigned at creation, immutable.
//  Date      – scheduled date ("2006-01-02", UTC).
//  Time      – scheduled time of day ("15:04", UTC).
//  Capacity  – maximum concurrent bookings, always >= 1.
//  BookedBy  – ids of users holding a booking; set semantics, each id
//              appears at most once (enforced by a unique key).
//  CreatedAt – row creation timestamp.
//  UpdatedAt – last modification timestamp.
type Slot struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Capacity  uint32    `json:"capacity"`
	BookedBy  []uint64  `json:"booked_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Slot status values derived from capacity and the booking count.
const (
	SlotStatusAvailable = "available"
	SlotStatusFull      = "full"
)

// AvailableSpots returns capacity minus the number of bookings. It never
// goes negative even if the invariant were somehow violated upstream.
func (s *Slot) AvailableSpots() uint32 {
	if uint32(len(s.BookedBy)) >= s.Capacity {
		return 0
	}
	return s.Capacity - uint32(len(s.BookedBy))
}

// Status derives "available" or "full" from capacity and bookings. It is
// computed on every read and never persisted, so it cannot drift from
// the booking set.
func (s *Slot) Status() string {
	if uint32(len(s.BookedBy)) >= s.Capacity {
		return SlotStatusFull
	}
	return SlotStatusAvailable
}

// StartsAt combines Date and Time into a UTC instant for past/future
// comparisons.
func (s *Slot) StartsAt() (time.Time, error) {
	return time.Parse("2006-01-02 15:04", s.Date+" "+s.Time)
}
