// Package repository contains data access logic for slots and their
// bookings. The slots table holds the schedule and capacity; the
// slot_bookings table is the bookedBy set, one row per (slot, user)
// pair guarded by a unique key. All timestamps are stored in UTC.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/slot-booking/internal/model"
)

// SlotRepo manages persistence for slots and bookings. Book and Cancel
// are the store's atomic conditional-update primitives: each runs a
// single transaction that locks the slot row, re-checks the predicate
// (space left, membership) and applies the mutation, so two racing
// writers on the same slot are serialized by InnoDB and the loser sees
// the post-commit state instead of silently overbooking.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need transactions
// spanning multiple repositories.
func (r *SlotRepo) DB() *sql.DB { return r.db }

// querier is satisfied by both *sql.DB and *sql.Tx so slot loading can
// run inside or outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Create inserts a new slot. When s.ID is empty a uuid is generated and
// populated on the passed structure. Capacity must be at least 1; the
// caller validates, the table CHECK is the backstop.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	const q = `INSERT INTO slots (id, slot_date, slot_time, capacity) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, q, s.ID, s.Date, s.Time, s.Capacity); err != nil {
		return err
	}
	loaded, err := loadSlot(ctx, r.db, s.ID)
	if err != nil {
		return err
	}
	*s = *loaded
	return nil
}

// GetByID loads a slot together with its full bookedBy set. It returns
// ErrSlotNotFound when no slot with the given id exists.
func (r *SlotRepo) GetByID(ctx context.Context, slotID string) (*model.Slot, error) {
	return loadSlot(ctx, r.db, slotID)
}

// Book atomically adds userID to the slot's booking set. The predicate
// "slot exists AND bookings < capacity AND user not already booked" is
// evaluated under a row lock in the same transaction as the insert, so
// it still holds at commit time. On a predicate failure the transaction
// is rolled back and one of ErrSlotNotFound, ErrSlotFull or
// ErrAlreadyBooked is returned; state is never mutated on failure. On
// success the post-mutation slot is returned.
func (r *SlotRepo) Book(ctx context.Context, slotID string, userID uint64) (*model.Slot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Lock the slot row. Concurrent bookers of the same slot queue here;
	// bookers of other slots are unaffected.
	var capacity uint32
	err = tx.QueryRowContext(ctx, `SELECT capacity FROM slots WHERE id = ? FOR UPDATE`, slotID).Scan(&capacity)
	if err == sql.ErrNoRows {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}

	var booked uint32
	var mine bool
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(user_id = ?), 0) FROM slot_bookings WHERE slot_id = ?`,
		userID, slotID).Scan(&booked, &mine)
	if err != nil {
		return nil, err
	}
	if mine {
		return nil, ErrAlreadyBooked
	}
	if booked >= capacity {
		return nil, ErrSlotFull
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO slot_bookings (slot_id, user_id) VALUES (?, ?)`, slotID, userID); err != nil {
		return nil, err
	}

	slot, err := loadSlot(ctx, tx, slotID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return slot, nil
}

// Cancel atomically removes userID from the slot's booking set. It
// returns ErrSlotNotFound for an unknown slot and ErrNoBooking when the
// user holds no booking on it. On success the post-mutation slot is
// returned. The past-date policy check belongs to the service layer,
// not the store.
func (r *SlotRepo) Cancel(ctx context.Context, slotID string, userID uint64) (*model.Slot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ? FOR UPDATE`, slotID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM slot_bookings WHERE slot_id = ? AND user_id = ?`, slotID, userID)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNoBooking
	}

	slot, err := loadSlot(ctx, tx, slotID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return slot, nil
}

// Delete removes a slot administratively. Slots that still hold
// bookings are protected by ErrSlotHasBookings.
func (r *SlotRepo) Delete(ctx context.Context, slotID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM slots WHERE id = ? FOR UPDATE`, slotID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrSlotNotFound
	}
	if err != nil {
		return err
	}

	var booked uint32
	if err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM slot_bookings WHERE slot_id = ?`, slotID).Scan(&booked); err != nil {
		return err
	}
	if booked > 0 {
		return ErrSlotHasBookings
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, slotID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// SlotAvailability is the read-side projection returned by
// ListAvailable: one record per future slot with free capacity.
type SlotAvailability struct {
	ID             string `json:"id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	Capacity       uint32 `json:"capacity"`
	AvailableSpots uint32 `json:"available_spots"`
}

// AvailabilityFilter narrows the availability listing. Zero values mean
// no filtering. From/To are inclusive date bounds ("2006-01-02").
type AvailabilityFilter struct {
	From        string
	To          string
	MinCapacity uint32
}

// ListAvailable returns all slots scheduled at or after now that still
// have free capacity, ordered ascending by (date, time). The query
// takes no locks; results may be stale by the time the caller acts on
// them, which is fine because Book re-validates under its own lock.
func (r *SlotRepo) ListAvailable(ctx context.Context, now time.Time, f AvailabilityFilter) ([]SlotAvailability, error) {
	query := `SELECT s.id,
	                 DATE_FORMAT(s.slot_date, '%Y-%m-%d'),
	                 TIME_FORMAT(s.slot_time, '%H:%i'),
	                 s.capacity,
	                 s.capacity - COUNT(b.user_id)
	          FROM slots s
	          LEFT JOIN slot_bookings b ON b.slot_id = s.id
	          WHERE TIMESTAMP(s.slot_date, s.slot_time) >= ?`
	args := []interface{}{now.UTC().Format("2006-01-02 15:04:05")}
	if f.From != "" {
		query += ` AND s.slot_date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND s.slot_date <= ?`
		args = append(args, f.To)
	}
	if f.MinCapacity > 0 {
		query += ` AND s.capacity >= ?`
		args = append(args, f.MinCapacity)
	}
	query += ` GROUP BY s.id, s.slot_date, s.slot_time, s.capacity
	           HAVING COUNT(b.user_id) < s.capacity
	           ORDER BY s.slot_date ASC, s.slot_time ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]SlotAvailability, 0)
	for rows.Next() {
		var a SlotAvailability
		if err := rows.Scan(&a.ID, &a.Date, &a.Time, &a.Capacity, &a.AvailableSpots); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UserBooking is one entry in a user's booking list.
type UserBooking struct {
	SlotID   string    `json:"slot_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
	Capacity uint32    `json:"capacity"`
	BookedAt time.Time `json:"booked_at"`
}

// ListBookingsByUser returns every booking held by the given user,
// newest first. Served from the slot_bookings (user_id) index.
func (r *SlotRepo) ListBookingsByUser(ctx context.Context, userID uint64) ([]UserBooking, error) {
	const q = `SELECT b.slot_id,
	                  DATE_FORMAT(s.slot_date, '%Y-%m-%d'),
	                  TIME_FORMAT(s.slot_time, '%H:%i'),
	                  s.capacity,
	                  b.created_at
	           FROM slot_bookings b
	           JOIN slots s ON s.id = b.slot_id
	           WHERE b.user_id = ?
	           ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]UserBooking, 0)
	for rows.Next() {
		var ub UserBooking
		if err := rows.Scan(&ub.SlotID, &ub.Date, &ub.Time, &ub.Capacity, &ub.BookedAt); err != nil {
			return nil, err
		}
		out = append(out, ub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// loadSlot fetches a slot row and its bookedBy set using the provided
// querier (plain DB or open transaction).
func loadSlot(ctx context.Context, q querier, slotID string) (*model.Slot, error) {
	const slotQ = `SELECT id,
	                      DATE_FORMAT(slot_date, '%Y-%m-%d'),
	                      TIME_FORMAT(slot_time, '%H:%i'),
	                      capacity, created_at, updated_at
	               FROM slots WHERE id = ?`
	var s model.Slot
	err := q.QueryRowContext(ctx, slotQ, slotID).Scan(
		&s.ID, &s.Date, &s.Time, &s.Capacity, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, err
	}
	const bookQ = `SELECT user_id FROM slot_bookings WHERE slot_id = ? ORDER BY created_at, user_id`
	rows, err := q.QueryContext(ctx, bookQ, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	s.BookedBy = make([]uint64, 0)
	for rows.Next() {
		var uid uint64
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		s.BookedBy = append(s.BookedBy, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &s, nil
}
