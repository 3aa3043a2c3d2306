// Package tandems sells tandem jumps to walk-in passengers. Capacity is a
// per-day slot count; confirmed bookings consume it and cancelled ones
// give it back.
package tandems

import (
	"fmt"
	"time"

	"github.com/dropzone-hq/dropzone/internal/shared"
)

// BookingStatus is a tandem booking lifecycle state.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// ParseBookingStatus validates a raw status string.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	switch BookingStatus(raw) {
	case BookingConfirmed, BookingCancelled:
		return BookingStatus(raw), nil
	}
	return "", shared.Invalid(fmt.Sprintf("Unknown booking status %q", raw))
}

// Slot is one day's tandem capacity. The date is the key; there is at most
// one slot row per day.
type Slot struct {
	SlotDate   time.Time  `json:"slot_date"`
	TotalSlots int        `json:"total_slots"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
	CreatedBy  *int64     `json:"created_by,omitempty"`
	UpdatedBy  *int64     `json:"updated_by,omitempty"`
}

// Availability is the public view of one day's capacity.
type Availability struct {
	SlotDate       time.Time `json:"slot_date"`
	TotalSlots     int       `json:"total_slots"`
	BookedSlots    int       `json:"booked_slots"`
	AvailableSlots int       `json:"available_slots"`
}

// Booking reserves one tandem seat on a date. Cancelling flips the status
// and keeps the row; manifest approvals resolve the passenger through it.
type Booking struct {
	ID          int64         `json:"id"`
	UserID      int64         `json:"user_id"`
	UserName    string        `json:"user_name,omitempty"`
	BookingDate time.Time     `json:"booking_date"`
	Status      BookingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
	CreatedBy   *int64        `json:"created_by,omitempty"`
	UpdatedBy   *int64        `json:"updated_by,omitempty"`
}

// CreateSlotRequest opens a day for tandem bookings.
type CreateSlotRequest struct {
	SlotDate   string `json:"slot_date" validate:"required"`
	TotalSlots int    `json:"total_slots" validate:"gte=0"`
}

// UpdateSlotRequest resizes a day's capacity.
type UpdateSlotRequest struct {
	TotalSlots *int `json:"total_slots" validate:"omitempty,gte=0"`
}

// CreateBookingRequest books one tandem seat.
type CreateBookingRequest struct {
	BookingDate string `json:"booking_date" validate:"required"`
}

// UpdateBookingRequest carries partial booking changes.
type UpdateBookingRequest struct {
	BookingDate *string `json:"booking_date,omitempty"`
	Status      *string `json:"status,omitempty"`
}

func parseDay(raw, field string) (time.Time, error) {
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.Invalid(field + " must be YYYY-MM-DD")
	}
	return day, nil
}
