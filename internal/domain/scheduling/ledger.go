package scheduling

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingLedger is the record of appointments held against doctors' slots.
// It never rejects on capacity; that is decided by AvailabilityService.
type BookingLedger struct {
	bookings BookingRepository
	logger   zerolog.Logger
}

func NewBookingLedger(bookings BookingRepository, logger zerolog.Logger) *BookingLedger {
	return &BookingLedger{
		bookings: bookings,
		logger:   logger.With().Str("component", "booking-ledger").Logger(),
	}
}

// BookingsFor lists the active bookings of a doctor on date, ordered by time.
func (l *BookingLedger) BookingsFor(ctx context.Context, doctorID string, date Date) ([]*Booking, error) {
	return l.bookings.ListForDate(ctx, doctorID, date)
}

// Record writes a booking. It fails only on malformed input.
func (l *BookingLedger) Record(ctx context.Context, doctorID string, date Date, at ClockTime, patientRef string) (*Booking, error) {
	doctorID = strings.TrimSpace(doctorID)
	patientRef = strings.TrimSpace(patientRef)
	switch {
	case doctorID == "":
		return nil, invalid("doctor_id", "doctor_id is required")
	case date.IsZero():
		return nil, invalid("date", "date is required")
	case !at.Valid():
		return nil, invalid("time", "time must be between 00:00 and 23:59")
	case patientRef == "":
		return nil, invalid("patient_ref", "patient_ref is required")
	}
	b := &Booking{
		DoctorID:   doctorID,
		Date:       date,
		Time:       at,
		PatientRef: patientRef,
		Status:     BookingBooked,
	}
	if err := l.bookings.Create(ctx, b); err != nil {
		l.logger.Error().Err(err).Str("doctor_id", doctorID).Msg("failed to record booking")
		return nil, err
	}
	return b, nil
}

func (l *BookingLedger) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return l.bookings.GetByID(ctx, id)
}

// Cancel releases a booking's capacity. Cancelling twice is a no-op.
func (l *BookingLedger) Cancel(ctx context.Context, id uuid.UUID) error {
	b, err := l.bookings.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !b.Active() {
		return nil
	}
	if err := l.bookings.SetStatus(ctx, id, BookingCancelled); err != nil {
		return err
	}
	l.logger.Info().Str("booking_id", id.String()).Str("doctor_id", b.DoctorID).
		Str("date", b.Date.String()).Str("time", b.Time.String()).Msg("booking cancelled")
	return nil
}
