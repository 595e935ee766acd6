package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slot-booking/internal/model"
	"github.com/iliyamo/slot-booking/internal/repository"
	"github.com/iliyamo/slot-booking/internal/service"
)

// SlotHandler exposes the booking API over HTTP.  All business rules
// live in the service; this layer binds requests, extracts the
// authenticated user and maps errors to status codes.
type SlotHandler struct {
	Svc *service.BookingService
}

func NewSlotHandler(svc *service.BookingService) *SlotHandler {
	return &SlotHandler{Svc: svc}
}

// ----- DTOs -----

type createSlotReq struct {
	Date     string `json:"date"` // "2006-01-02"
	Time     string `json:"time"` // "15:04"
	Capacity uint32 `json:"capacity"`
}

// slotView is the JSON shape of a slot returned by mutations.  Status
// and available_spots are derived from capacity and bookings on every
// response, never read from storage.
type slotView struct {
	ID             string   `json:"id"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	Capacity       uint32   `json:"capacity"`
	BookedBy       []uint64 `json:"booked_by"`
	AvailableSpots uint32   `json:"available_spots"`
	Status         string   `json:"status"`
}

func viewOf(s *model.Slot) slotView {
	booked := s.BookedBy
	if booked == nil {
		booked = []uint64{}
	}
	return slotView{
		ID:             s.ID,
		Date:           s.Date,
		Time:           s.Time,
		Capacity:       s.Capacity,
		BookedBy:       booked,
		AvailableSpots: s.AvailableSpots(),
		Status:         s.Status(),
	}
}

// getUserID pulls the authenticated user's ID set by the JWT middleware.
func getUserID(c echo.Context) (uint64, bool) {
	uid, ok := c.Get("user_id").(uint64)
	return uid, ok
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// writeBookingError maps service and repository errors to HTTP codes:
// validation 400, missing slot 404, business conflicts 409, anything
// else 500.
func writeBookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidSlotID),
		errors.Is(err, service.ErrPastSlot),
		errors.Is(err, service.ErrInvalidSchedule),
		errors.Is(err, service.ErrInvalidCapacity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrSlotNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "slot not found"})
	case errors.Is(err, repository.ErrSlotFull),
		errors.Is(err, repository.ErrAlreadyBooked),
		errors.Is(err, repository.ErrNoBooking),
		errors.Is(err, repository.ErrSlotHasBookings):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// Book handles POST /v1/slots/:id/book.
func (h *SlotHandler) Book(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	slot, err := h.Svc.BookSlot(ctx, uid, c.Param("id"))
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(slot))
}

// Cancel handles DELETE /v1/slots/:id/book.
func (h *SlotHandler) Cancel(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	slot, err := h.Svc.CancelBooking(ctx, uid, c.Param("id"))
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(slot))
}

// List handles GET /v1/slots: future slots with free spots, optionally
// narrowed by ?from=YYYY-MM-DD&to=YYYY-MM-DD&min_capacity=N.
func (h *SlotHandler) List(c echo.Context) error {
	var f repository.AvailabilityFilter

	if from := c.QueryParam("from"); from != "" {
		if _, err := time.Parse("2006-01-02", from); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from date"})
		}
		f.From = from
	}
	if to := c.QueryParam("to"); to != "" {
		if _, err := time.Parse("2006-01-02", to); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to date"})
		}
		f.To = to
	}
	if mc := c.QueryParam("min_capacity"); mc != "" {
		n, err := strconv.ParseUint(mc, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid min_capacity"})
		}
		f.MinCapacity = uint32(n)
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	slots, err := h.Svc.ListAvailable(ctx, f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// MyBookings handles GET /v1/my-bookings.
func (h *SlotHandler) MyBookings(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	bookings, err := h.Svc.MyBookings(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// Create handles POST /v1/slots (admin only).
func (h *SlotHandler) Create(c echo.Context) error {
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	slot, err := h.Svc.CreateSlot(ctx, req.Date, req.Time, req.Capacity)
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusCreated, viewOf(slot))
}

// Delete handles DELETE /v1/slots/:id (admin only).  Slots with live
// bookings cannot be removed.
func (h *SlotHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Svc.DeleteSlot(ctx, c.Param("id")); err != nil {
		return writeBookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
