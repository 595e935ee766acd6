// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. Business
// outcomes (slot full, duplicate booking, cancelling without a booking)
// are deliberately separate values from infrastructure failures: a
// handler translates the former into 4xx responses while anything else
// coming out of the store is treated as a retryable 5xx.
package repository

import "errors"

// ErrSlotNotFound is returned when the requested slot does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrSlotNotFound = errors.New("slot not found")

// ErrSlotFull is returned when a booking cannot be added because the
// slot already holds capacity bookings at commit time. Handlers should
// translate this into an HTTP 409 response.
var ErrSlotFull = errors.New("slot is full")

// ErrAlreadyBooked is returned when the user already holds a booking on
// the slot. Handlers should translate this into an HTTP 409 response.
var ErrAlreadyBooked = errors.New("already booked")

// ErrNoBooking is returned when a cancellation targets a slot the user
// has no booking on. Handlers should translate this into an HTTP 409
// response.
var ErrNoBooking = errors.New("no booking for this slot")

// ErrSlotHasBookings is returned when an administrative delete targets
// a slot that still has active bookings.
var ErrSlotHasBookings = errors.New("slot has bookings")
