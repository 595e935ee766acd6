// Package queue defines message payloads exchanged over the message broker.
package queue

// SlotBookedEvent is published when a booking is successfully committed.
// It carries enough information for downstream consumers to log, notify
// or feed analytics without querying the primary database.
type SlotBookedEvent struct {
	SlotID         string `json:"slot_id"`
	UserID         uint64 `json:"user_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Capacity       uint32 `json:"capacity"`
	AvailableSpots uint32 `json:"available_spots"`
	BookedAt       string `json:"booked_at"`
}

// BookingCancelledEvent is published when a booking is cancelled.
type BookingCancelledEvent struct {
	SlotID         string `json:"slot_id"`
	UserID         uint64 `json:"user_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	AvailableSpots uint32 `json:"available_spots"`
	CancelledAt    string `json:"cancelled_at"`
}
