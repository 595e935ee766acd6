// Package service implements the reservation engine: it applies booking
// and cancellation requests to the slot store under the capacity and
// duplication invariants, and serves the read-side availability query.
// Correctness rests entirely on the store's atomic conditional update;
// the engine itself holds no locks and performs exactly one store
// mutation per call.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/metrics"
	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// Validation failures produced before any store call. Handlers map
// these to HTTP 400.
var (
	ErrInvalidSlotID   = errors.New("invalid slot id")
	ErrPastSlot        = errors.New("slot is in the past")
	ErrInvalidSchedule = errors.New("invalid slot date/time")
	ErrInvalidCapacity = errors.New("capacity must be at least 1")
)

// SlotStore is the persistence capability the engine depends on. Book
// and Cancel must be atomic conditional updates: check the predicate
// and apply the mutation as one indivisible step, rejecting the
// mutation if the predicate no longer holds at commit time.
// *repository.SlotRepo satisfies it; tests use an in-memory fake.
type SlotStore interface {
	Create(ctx context.Context, s *model.Slot) error
	GetByID(ctx context.Context, slotID string) (*model.Slot, error)
	Book(ctx context.Context, slotID string, userID uint64) (*model.Slot, error)
	Cancel(ctx context.Context, slotID string, userID uint64) (*model.Slot, error)
	Delete(ctx context.Context, slotID string) error
	ListAvailable(ctx context.Context, now time.Time, f repository.AvailabilityFilter) ([]repository.SlotAvailability, error)
	ListBookingsByUser(ctx context.Context, userID uint64) ([]repository.UserBooking, error)
}

// EventPublisher publishes domain events after a mutation commits.
// Failures must not affect the committed booking; the engine logs and
// ignores them.
type EventPublisher interface {
	PublishSlotBooked(ctx context.Context, ev queue.SlotBookedEvent) error
	PublishBookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error
}

// BookingService is the reservation engine. Publisher and Metrics are
// optional; a nil value disables the corresponding side effect.
type BookingService struct {
	store     SlotStore
	logger    *zap.Logger
	publisher EventPublisher
	metrics   metrics.Recorder

	now func() time.Time // injectable clock for tests
}

// NewBookingService constructs the engine. store and logger must be
// non-nil.
func NewBookingService(store SlotStore, logger *zap.Logger, publisher EventPublisher, rec metrics.Recorder) *BookingService {
	if store == nil || logger == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{
		store:     store,
		logger:    logger,
		publisher: publisher,
		metrics:   rec,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// BookSlot books one spot on the slot for the user. It performs exactly
// one atomic store operation; a reported predicate failure is a genuine
// business conflict (full slot or duplicate booking), not a transient
// fault, so the engine surfaces it instead of retrying. Returns the
// post-mutation slot on success.
func (s *BookingService) BookSlot(ctx context.Context, userID uint64, slotID string) (*model.Slot, error) {
	if _, err := uuid.Parse(slotID); err != nil {
		return nil, ErrInvalidSlotID
	}

	slot, err := s.store.Book(ctx, slotID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotFull):
			s.recordConflict("full")
		case errors.Is(err, repository.ErrAlreadyBooked):
			s.recordConflict("duplicate")
		}
		return nil, err
	}

	s.logger.Info("slot booked",
		zap.String("slot_id", slot.ID),
		zap.Uint64("user_id", userID),
		zap.Uint32("available_spots", slot.AvailableSpots()),
	)
	if s.metrics != nil {
		s.metrics.RecordBooking()
	}
	if s.publisher != nil {
		ev := queue.SlotBookedEvent{
			SlotID:         slot.ID,
			UserID:         userID,
			Date:           slot.Date,
			Time:           slot.Time,
			Capacity:       slot.Capacity,
			AvailableSpots: slot.AvailableSpots(),
			BookedAt:       s.now().Format(time.RFC3339),
		}
		if err := s.publisher.PublishSlotBooked(ctx, ev); err != nil {
			s.logger.Warn("publish slot.booked failed", zap.Error(err))
		}
	}
	return slot, nil
}

// CancelBooking removes the user's booking from the slot. Cancelling a
// slot whose scheduled time has already passed is rejected with
// ErrPastSlot before any mutation is attempted.
func (s *BookingService) CancelBooking(ctx context.Context, userID uint64, slotID string) (*model.Slot, error) {
	if _, err := uuid.Parse(slotID); err != nil {
		return nil, ErrInvalidSlotID
	}

	existing, err := s.store.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	startsAt, err := existing.StartsAt()
	if err != nil {
		return nil, err
	}
	if startsAt.Before(s.now()) {
		return nil, ErrPastSlot
	}

	slot, err := s.store.Cancel(ctx, slotID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNoBooking) {
			s.recordConflict("no_booking")
		}
		return nil, err
	}

	s.logger.Info("booking cancelled",
		zap.String("slot_id", slot.ID),
		zap.Uint64("user_id", userID),
	)
	if s.metrics != nil {
		s.metrics.RecordCancellation()
	}
	if s.publisher != nil {
		ev := queue.BookingCancelledEvent{
			SlotID:         slot.ID,
			UserID:         userID,
			Date:           slot.Date,
			Time:           slot.Time,
			AvailableSpots: slot.AvailableSpots(),
			CancelledAt:    s.now().Format(time.RFC3339),
		}
		if err := s.publisher.PublishBookingCancelled(ctx, ev); err != nil {
			s.logger.Warn("publish slot.booking_cancelled failed", zap.Error(err))
		}
	}
	return slot, nil
}

// ListAvailable returns the availability projection for all future
// slots with free capacity. Read-only; never mutates.
func (s *BookingService) ListAvailable(ctx context.Context, f repository.AvailabilityFilter) ([]repository.SlotAvailability, error) {
	return s.store.ListAvailable(ctx, s.now(), f)
}

// MyBookings lists the bookings held by a user, newest first.
func (s *BookingService) MyBookings(ctx context.Context, userID uint64) ([]repository.UserBooking, error) {
	return s.store.ListBookingsByUser(ctx, userID)
}

// CreateSlot creates a new bookable slot. date is "2006-01-02", tm is
// "15:04", both UTC.
func (s *BookingService) CreateSlot(ctx context.Context, date, tm string, capacity uint32) (*model.Slot, error) {
	if capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, ErrInvalidSchedule
	}
	if _, err := time.Parse("15:04", tm); err != nil {
		return nil, ErrInvalidSchedule
	}
	slot := &model.Slot{Date: date, Time: tm, Capacity: capacity}
	if err := s.store.Create(ctx, slot); err != nil {
		return nil, err
	}
	s.logger.Info("slot created",
		zap.String("slot_id", slot.ID),
		zap.String("date", slot.Date),
		zap.String("time", slot.Time),
		zap.Uint32("capacity", slot.Capacity),
	)
	return slot, nil
}

// DeleteSlot removes a slot that has no bookings.
func (s *BookingService) DeleteSlot(ctx context.Context, slotID string) error {
	if _, err := uuid.Parse(slotID); err != nil {
		return ErrInvalidSlotID
	}
	return s.store.Delete(ctx, slotID)
}

func (s *BookingService) recordConflict(reason string) {
	if s.metrics != nil {
		s.metrics.RecordBookingConflict(reason)
	}
}

// WithClock replaces the engine's clock. Test helper.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}
