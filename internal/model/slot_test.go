package model

import (
	"testing"
	"time"
)

func TestSlotStatusDerived(t *testing.T) {
	tests := []struct {
		name       string
		capacity   uint32
		booked     int
		wantStatus string
		wantSpots  uint32
	}{
		{"empty", 5, 0, SlotStatusAvailable, 5},
		{"partial", 5, 3, SlotStatusAvailable, 2},
		{"full", 5, 5, SlotStatusFull, 0},
		{"capacity one free", 1, 0, SlotStatusAvailable, 1},
		{"capacity one taken", 1, 1, SlotStatusFull, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Slot{Capacity: tt.capacity, BookedBy: make([]uint64, tt.booked)}
			if got := s.Status(); got != tt.wantStatus {
				t.Errorf("Status() = %q, want %q", got, tt.wantStatus)
			}
			if got := s.AvailableSpots(); got != tt.wantSpots {
				t.Errorf("AvailableSpots() = %d, want %d", got, tt.wantSpots)
			}
		})
	}
}

func TestSlotStartsAt(t *testing.T) {
	s := Slot{Date: "2026-03-01", Time: "09:30"}
	got, err := s.StartsAt()
	if err != nil {
		t.Fatalf("StartsAt: %v", err)
	}
	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("StartsAt = %v, want %v", got, want)
	}

	bad := Slot{Date: "03/01/2026", Time: "09:30"}
	if _, err := bad.StartsAt(); err == nil {
		t.Error("StartsAt accepted malformed date")
	}
}
