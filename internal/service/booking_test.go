package service

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/queue"
	"github.com/iliyamo/slot-booking/internal/repository"
)

// --- fakes ---

// memSlotStore is an in-memory SlotStore whose Book/Cancel honor the
// same atomicity contract as the MySQL repository: predicate check and
// mutation happen under one lock, so concurrent callers cannot
// overbook.
type memSlotStore struct {
	mu    sync.Mutex
	slots map[string]*model.Slot
}

func newMemSlotStore(slots ...*model.Slot) *memSlotStore {
	m := &memSlotStore{slots: make(map[string]*model.Slot)}
	for _, s := range slots {
		cp := *s
		cp.BookedBy = append([]uint64(nil), s.BookedBy...)
		m.slots[s.ID] = &cp
	}
	return m
}

func (m *memSlotStore) snapshot(s *model.Slot) *model.Slot {
	cp := *s
	cp.BookedBy = append([]uint64(nil), s.BookedBy...)
	return &cp
}

func (m *memSlotStore) Create(ctx context.Context, s *model.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = "11111111-2222-3333-4444-555555555555"
	}
	s.BookedBy = []uint64{}
	m.slots[s.ID] = m.snapshot(s)
	return nil
}

func (m *memSlotStore) GetByID(ctx context.Context, slotID string) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	return m.snapshot(s), nil
}

func (m *memSlotStore) Book(ctx context.Context, slotID string, userID uint64) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	for _, u := range s.BookedBy {
		if u == userID {
			return nil, repository.ErrAlreadyBooked
		}
	}
	if uint32(len(s.BookedBy)) >= s.Capacity {
		return nil, repository.ErrSlotFull
	}
	s.BookedBy = append(s.BookedBy, userID)
	return m.snapshot(s), nil
}

func (m *memSlotStore) Cancel(ctx context.Context, slotID string, userID uint64) (*model.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	for i, u := range s.BookedBy {
		if u == userID {
			s.BookedBy = append(s.BookedBy[:i], s.BookedBy[i+1:]...)
			return m.snapshot(s), nil
		}
	}
	return nil, repository.ErrNoBooking
}

func (m *memSlotStore) Delete(ctx context.Context, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok {
		return repository.ErrSlotNotFound
	}
	if len(s.BookedBy) > 0 {
		return repository.ErrSlotHasBookings
	}
	delete(m.slots, slotID)
	return nil
}

func (m *memSlotStore) ListAvailable(ctx context.Context, now time.Time, f repository.AvailabilityFilter) ([]repository.SlotAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.SlotAvailability, 0)
	for _, s := range m.slots {
		startsAt, err := s.StartsAt()
		if err != nil {
			return nil, err
		}
		if startsAt.Before(now) {
			continue
		}
		if uint32(len(s.BookedBy)) >= s.Capacity {
			continue
		}
		if f.From != "" && s.Date < f.From {
			continue
		}
		if f.To != "" && s.Date > f.To {
			continue
		}
		if f.MinCapacity > 0 && s.Capacity < f.MinCapacity {
			continue
		}
		out = append(out, repository.SlotAvailability{
			ID:             s.ID,
			Date:           s.Date,
			Time:           s.Time,
			Capacity:       s.Capacity,
			AvailableSpots: s.AvailableSpots(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (m *memSlotStore) ListBookingsByUser(ctx context.Context, userID uint64) ([]repository.UserBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.UserBooking, 0)
	for _, s := range m.slots {
		for _, u := range s.BookedBy {
			if u == userID {
				out = append(out, repository.UserBooking{
					SlotID: s.ID, Date: s.Date, Time: s.Time, Capacity: s.Capacity,
				})
			}
		}
	}
	return out, nil
}

// recordingPublisher counts published events.
type recordingPublisher struct {
	mu        sync.Mutex
	booked    []queue.SlotBookedEvent
	cancelled []queue.BookingCancelledEvent
}

func (p *recordingPublisher) PublishSlotBooked(ctx context.Context, ev queue.SlotBookedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.booked = append(p.booked, ev)
	return nil
}

func (p *recordingPublisher) PublishBookingCancelled(ctx context.Context, ev queue.BookingCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, ev)
	return nil
}

// --- helpers ---

const (
	futureSlotID = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	pastSlotID   = "ffffffff-0000-1111-2222-333333333333"
)

var fixedNow = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func futureSlot(capacity uint32, bookedBy ...uint64) *model.Slot {
	return &model.Slot{
		ID: futureSlotID, Date: "2026-03-01", Time: "10:00",
		Capacity: capacity, BookedBy: bookedBy,
	}
}

func pastSlot(capacity uint32, bookedBy ...uint64) *model.Slot {
	return &model.Slot{
		ID: pastSlotID, Date: "2025-06-15", Time: "09:30",
		Capacity: capacity, BookedBy: bookedBy,
	}
}

func newTestService(store SlotStore, pub EventPublisher) *BookingService {
	return NewBookingService(store, zap.NewNop(), pub, nil).
		WithClock(func() time.Time { return fixedNow })
}

// --- tests ---

func TestBookSlotSuccess(t *testing.T) {
	store := newMemSlotStore(futureSlot(10))
	pub := &recordingPublisher{}
	svc := newTestService(store, pub)

	slot, err := svc.BookSlot(context.Background(), 7, futureSlotID)
	if err != nil {
		t.Fatalf("BookSlot: %v", err)
	}
	if got := slot.BookedBy; len(got) != 1 || got[0] != 7 {
		t.Errorf("bookedBy = %v, want [7]", got)
	}
	if slot.AvailableSpots() != 9 {
		t.Errorf("availableSpots = %d, want 9", slot.AvailableSpots())
	}
	if slot.Status() != model.SlotStatusAvailable {
		t.Errorf("status = %q, want available", slot.Status())
	}
	if len(pub.booked) != 1 {
		t.Errorf("published %d booked events, want 1", len(pub.booked))
	}
}

func TestBookSlotCapacityRace(t *testing.T) {
	const capacity = 3
	const callers = 32
	store := newMemSlotStore(futureSlot(capacity))
	svc := newTestService(store, nil)

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.BookSlot(context.Background(), uint64(i+1), futureSlotID)
		}(i)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrSlotFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != capacity {
		t.Errorf("successes = %d, want %d", ok, capacity)
	}
	if full != callers-capacity {
		t.Errorf("full conflicts = %d, want %d", full, callers-capacity)
	}

	slot, err := store.GetByID(context.Background(), futureSlotID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(slot.BookedBy) != capacity {
		t.Errorf("final |bookedBy| = %d, want %d", len(slot.BookedBy), capacity)
	}
	seen := make(map[uint64]bool)
	for _, u := range slot.BookedBy {
		if seen[u] {
			t.Errorf("duplicate user %d in bookedBy", u)
		}
		seen[u] = true
	}
	if slot.Status() != model.SlotStatusFull {
		t.Errorf("status = %q, want full", slot.Status())
	}
}

func TestBookSlotCapacityOneBoundary(t *testing.T) {
	store := newMemSlotStore(futureSlot(1))
	svc := newTestService(store, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.BookSlot(context.Background(), uint64(100+i), futureSlotID)
		}(i)
	}
	wg.Wait()

	if (errs[0] == nil) == (errs[1] == nil) {
		t.Fatalf("want exactly one success, got errs = %v", errs)
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, repository.ErrSlotFull) {
			t.Errorf("loser error = %v, want ErrSlotFull", err)
		}
	}
	slot, _ := store.GetByID(context.Background(), futureSlotID)
	if len(slot.BookedBy) != 1 {
		t.Errorf("final |bookedBy| = %d, want 1", len(slot.BookedBy))
	}
}

func TestBookSlotDuplicate(t *testing.T) {
	store := newMemSlotStore(futureSlot(10))
	svc := newTestService(store, nil)

	if _, err := svc.BookSlot(context.Background(), 5, futureSlotID); err != nil {
		t.Fatalf("first BookSlot: %v", err)
	}
	_, err := svc.BookSlot(context.Background(), 5, futureSlotID)
	if !errors.Is(err, repository.ErrAlreadyBooked) {
		t.Fatalf("second BookSlot err = %v, want ErrAlreadyBooked", err)
	}

	slot, _ := store.GetByID(context.Background(), futureSlotID)
	if len(slot.BookedBy) != 1 {
		t.Errorf("|bookedBy| = %d after duplicate attempt, want 1", len(slot.BookedBy))
	}
}

func TestBookSlotNotFound(t *testing.T) {
	svc := newTestService(newMemSlotStore(), nil)
	_, err := svc.BookSlot(context.Background(), 1, "aaaaaaaa-0000-0000-0000-000000000000")
	if !errors.Is(err, repository.ErrSlotNotFound) {
		t.Fatalf("err = %v, want ErrSlotNotFound", err)
	}
}

func TestBookSlotMalformedID(t *testing.T) {
	svc := newTestService(newMemSlotStore(), nil)
	_, err := svc.BookSlot(context.Background(), 1, "invalid-id")
	if !errors.Is(err, ErrInvalidSlotID) {
		t.Fatalf("err = %v, want ErrInvalidSlotID", err)
	}
}

func TestCancelThenRebook(t *testing.T) {
	store := newMemSlotStore(futureSlot(2))
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.BookSlot(ctx, 9, futureSlotID); err != nil {
		t.Fatalf("book: %v", err)
	}
	if _, err := svc.CancelBooking(ctx, 9, futureSlotID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	slot, err := svc.BookSlot(ctx, 9, futureSlotID)
	if err != nil {
		t.Fatalf("rebook: %v", err)
	}
	if !reflect.DeepEqual(slot.BookedBy, []uint64{9}) {
		t.Errorf("final bookedBy = %v, want [9]", slot.BookedBy)
	}
}

func TestCancelWithoutBooking(t *testing.T) {
	store := newMemSlotStore(futureSlot(2, 42))
	svc := newTestService(store, nil)

	_, err := svc.CancelBooking(context.Background(), 7, futureSlotID)
	if !errors.Is(err, repository.ErrNoBooking) {
		t.Fatalf("err = %v, want ErrNoBooking", err)
	}
	slot, _ := store.GetByID(context.Background(), futureSlotID)
	if !reflect.DeepEqual(slot.BookedBy, []uint64{42}) {
		t.Errorf("bookedBy = %v, want unchanged [42]", slot.BookedBy)
	}
}

func TestCancelPastSlotRejected(t *testing.T) {
	store := newMemSlotStore(pastSlot(5, 7))
	svc := newTestService(store, nil)

	_, err := svc.CancelBooking(context.Background(), 7, pastSlotID)
	if !errors.Is(err, ErrPastSlot) {
		t.Fatalf("err = %v, want ErrPastSlot", err)
	}
	slot, _ := store.GetByID(context.Background(), pastSlotID)
	if !reflect.DeepEqual(slot.BookedBy, []uint64{7}) {
		t.Errorf("bookedBy = %v, want unchanged [7]", slot.BookedBy)
	}
}

func TestListAvailableProjection(t *testing.T) {
	slot := futureSlot(20, 1, 2, 3, 4, 5)
	full := &model.Slot{
		ID: "bbbbbbbb-1111-2222-3333-444444444444", Date: "2026-02-01", Time: "08:00",
		Capacity: 1, BookedBy: []uint64{6},
	}
	store := newMemSlotStore(slot, full, pastSlot(50))
	svc := newTestService(store, nil)

	got, err := svc.ListAvailable(context.Background(), repository.AvailabilityFilter{})
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1 (full and past slots excluded): %+v", len(got), got)
	}
	if got[0].ID != futureSlotID || got[0].AvailableSpots != 15 {
		t.Errorf("got %+v, want id=%s availableSpots=15", got[0], futureSlotID)
	}

	// Idempotent read: a second call with no mutation in between returns
	// identical results.
	again, err := svc.ListAvailable(context.Background(), repository.AvailabilityFilter{})
	if err != nil {
		t.Fatalf("ListAvailable again: %v", err)
	}
	if !reflect.DeepEqual(got, again) {
		t.Errorf("second read differs: %+v vs %+v", got, again)
	}
}

func TestListAvailableOrdering(t *testing.T) {
	a := &model.Slot{ID: "aaaaaaaa-1111-1111-1111-111111111111", Date: "2026-02-10", Time: "15:00", Capacity: 3, BookedBy: []uint64{}}
	b := &model.Slot{ID: "bbbbbbbb-1111-1111-1111-111111111111", Date: "2026-02-10", Time: "09:00", Capacity: 3, BookedBy: []uint64{}}
	c := &model.Slot{ID: "cccccccc-1111-1111-1111-111111111111", Date: "2026-01-20", Time: "18:00", Capacity: 3, BookedBy: []uint64{}}
	svc := newTestService(newMemSlotStore(a, b, c), nil)

	got, err := svc.ListAvailable(context.Background(), repository.AvailabilityFilter{})
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	want := []string{c.ID, b.ID, a.ID}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("order[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestCreateSlotValidation(t *testing.T) {
	svc := newTestService(newMemSlotStore(), nil)
	ctx := context.Background()

	if _, err := svc.CreateSlot(ctx, "2026-03-01", "10:00", 0); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("capacity 0 err = %v, want ErrInvalidCapacity", err)
	}
	if _, err := svc.CreateSlot(ctx, "03/01/2026", "10:00", 5); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("bad date err = %v, want ErrInvalidSchedule", err)
	}
	if _, err := svc.CreateSlot(ctx, "2026-03-01", "25:99", 5); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("bad time err = %v, want ErrInvalidSchedule", err)
	}

	slot, err := svc.CreateSlot(ctx, "2026-03-01", "10:00", 5)
	if err != nil {
		t.Fatalf("CreateSlot: %v", err)
	}
	if slot.ID == "" || slot.Capacity != 5 || len(slot.BookedBy) != 0 {
		t.Errorf("created slot = %+v", slot)
	}
}

func TestCancelPublishesEvent(t *testing.T) {
	store := newMemSlotStore(futureSlot(2, 9))
	pub := &recordingPublisher{}
	svc := newTestService(store, pub)

	if _, err := svc.CancelBooking(context.Background(), 9, futureSlotID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(pub.cancelled) != 1 {
		t.Fatalf("published %d cancelled events, want 1", len(pub.cancelled))
	}
	if pub.cancelled[0].SlotID != futureSlotID || pub.cancelled[0].UserID != 9 {
		t.Errorf("event = %+v", pub.cancelled[0])
	}
}
