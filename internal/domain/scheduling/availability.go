package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hms/scheduler/internal/domain/directory"
	"github.com/hms/scheduler/internal/platform/metrics"
)

var tracer = otel.Tracer("hms.internal.domain.scheduling")

// SlotLocker serializes confirmations for one slot key. The returned func releases the lock.
type SlotLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// AvailabilityService answers availability questions and confirms bookings against them.
type AvailabilityService struct {
	schedules ScheduleRepository
	leaves    *LeaveRegistry
	ledger    *BookingLedger
	doctors   directory.Directory
	metrics   *metrics.SchedulingMetrics
	locker    SlotLocker
	logger    zerolog.Logger
}

type AvailabilityOption func(*AvailabilityService)

func WithDoctors(d directory.Directory) AvailabilityOption {
	return func(s *AvailabilityService) { s.doctors = d }
}

func WithMetrics(m *metrics.SchedulingMetrics) AvailabilityOption {
	return func(s *AvailabilityService) { s.metrics = m }
}

// WithStrictCapacity makes ConfirmBooking reject full slots with ErrCapacityExhausted.
// Confirmations for the same slot are serialized through locker.
func WithStrictCapacity(locker SlotLocker) AvailabilityOption {
	return func(s *AvailabilityService) { s.locker = locker }
}

func NewAvailabilityService(schedules ScheduleRepository, leaves *LeaveRegistry, ledger *BookingLedger, logger zerolog.Logger, opts ...AvailabilityOption) *AvailabilityService {
	s := &AvailabilityService{
		schedules: schedules,
		leaves:    leaves,
		ledger:    ledger,
		logger:    logger.With().Str("component", "availability").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strict reports whether capacity is enforced rather than advisory.
func (s *AvailabilityService) Strict() bool { return s.locker != nil }

// GetAvailability returns the doctor's slots on date. A full-day leave short-circuits
// to an empty list with IsLeave set.
func (s *AvailabilityService) GetAvailability(ctx context.Context, doctorID string, date Date) (*Availability, error) {
	ctx, span := tracer.Start(ctx, "scheduling.availability", trace.WithAttributes(
		attribute.String("hms.doctor_id", doctorID),
		attribute.String("hms.date", date.String()),
	))
	defer span.End()
	started := time.Now()

	avail, err := s.availability(ctx, doctorID, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	outcome := "slots"
	switch {
	case avail.IsLeave:
		outcome = "leave"
	case len(avail.Slots) == 0:
		outcome = "empty"
	}
	span.SetAttributes(attribute.Int("hms.slots", len(avail.Slots)), attribute.Bool("hms.leave", avail.IsLeave))
	s.metrics.ObserveAvailability(outcome, time.Since(started).Seconds())
	return avail, nil
}

func (s *AvailabilityService) availability(ctx context.Context, doctorID string, date Date) (*Availability, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, invalid("doctor_id", "doctor_id is required")
	}
	if date.IsZero() {
		return nil, invalid("date", "date is required")
	}
	if err := checkDoctor(ctx, s.doctors, doctorID); err != nil {
		return nil, err
	}

	onLeave, windows, err := s.leaves.blocksFor(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if onLeave {
		return &Availability{DoctorID: doctorID, Date: date, Slots: []TimeSlot{}, IsLeave: true}, nil
	}

	patterns, err := s.schedules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	bookings, err := s.ledger.BookingsFor(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	groups := make([][]TimeSlot, 0, len(patterns))
	for _, p := range patterns {
		groups = append(groups, Generate(p, date, bookings))
	}
	slots := ApplyBlocks(mergeSlots(groups...), windows)
	return &Availability{DoctorID: doctorID, Date: date, Slots: slots}, nil
}

// ConfirmBooking re-validates the chosen slot and records the booking. A full slot is
// still booked in advisory mode, with Overbooked set so the caller can warn.
func (s *AvailabilityService) ConfirmBooking(ctx context.Context, doctorID string, date Date, at ClockTime, patientRef string) (*BookingResult, error) {
	ctx, span := tracer.Start(ctx, "scheduling.confirm_booking", trace.WithAttributes(
		attribute.String("hms.doctor_id", doctorID),
		attribute.String("hms.date", date.String()),
		attribute.String("hms.time", at.String()),
	))
	defer span.End()

	res, err := s.confirm(ctx, doctorID, date, at, patientRef)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if IsValidation(err) {
			s.metrics.ObserveValidationFailure("booking_confirm")
		}
		s.metrics.ObserveBooking("rejected")
		return nil, err
	}
	span.SetAttributes(attribute.Bool("hms.overbooked", res.Overbooked))
	if res.Overbooked {
		s.metrics.ObserveBooking("overbooked")
	} else {
		s.metrics.ObserveBooking("recorded")
	}
	return res, nil
}

func (s *AvailabilityService) confirm(ctx context.Context, doctorID string, date Date, at ClockTime, patientRef string) (*BookingResult, error) {
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return nil, invalid("doctor_id", "doctor_id is required")
	}
	if strings.TrimSpace(patientRef) == "" {
		return nil, invalid("patient_ref", "patient_ref is required")
	}
	if !at.Valid() {
		return nil, invalid("time", "time must be between 00:00 and 23:59")
	}

	if s.locker != nil {
		key, err := s.lockKey(ctx, doctorID, date, at)
		if err != nil {
			return nil, err
		}
		unlock, err := s.locker.Lock(ctx, key)
		if err != nil {
			s.logger.Warn().Err(err).Str("doctor_id", doctorID).Str("date", date.String()).
				Str("time", at.String()).Msg("slot lock not acquired")
			return nil, fmt.Errorf("%w: %v", ErrSlotBusy, err)
		}
		defer unlock()
	}

	avail, err := s.availability(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	if avail.IsLeave {
		return nil, invalid("date", "doctor %s is on leave on %s", doctorID, date)
	}
	slot, ok := findSlot(avail.Slots, at)
	if !ok {
		return nil, invalid("time", "no slot starts at %s on %s", at, date)
	}
	if slot.Status == SlotBlocked {
		return nil, invalid("time", "slot %s on %s is blocked", slot.Window(), date)
	}
	overbooked := slot.Status == SlotBooked
	if overbooked && s.locker != nil {
		return nil, ErrCapacityExhausted
	}

	b, err := s.ledger.Record(ctx, doctorID, date, at, patientRef)
	if err != nil {
		return nil, err
	}
	if overbooked {
		s.logger.Info().Str("booking_id", b.ID.String()).Str("doctor_id", doctorID).
			Str("date", date.String()).Str("time", at.String()).
			Int("booked", slot.BookedCount+1).Int("capacity", slot.Capacity).
			Msg("slot overbooked")
	}
	return &BookingResult{Booking: b, Overbooked: overbooked}, nil
}

// findSlot prefers a slot that can still take the booking when patterns share a start time.
func findSlot(slots []TimeSlot, at ClockTime) (TimeSlot, bool) {
	var (
		found TimeSlot
		ok    bool
	)
	for _, sl := range slots {
		if sl.StartTime != at {
			continue
		}
		if sl.Status == SlotAvailable {
			return sl, true
		}
		if !ok {
			found, ok = sl, true
		}
	}
	return found, ok
}

// lockKey serializes confirmations per slot. A session cap spans every slot of the
// pattern, so when one applies on date the whole day is locked instead.
func (s *AvailabilityService) lockKey(ctx context.Context, doctorID string, date Date, at ClockTime) (string, error) {
	patterns, err := s.schedules.ListByDoctor(ctx, doctorID)
	if err != nil {
		return "", err
	}
	for _, p := range patterns {
		if p.MaxPatientsPerSession > 0 && p.Active() && p.Covers(date) && p.WorksOn(date.Weekday()) {
			return dayKey(doctorID, date), nil
		}
	}
	return slotKey(doctorID, date, at), nil
}

func dayKey(doctorID string, date Date) string {
	return doctorID + "|" + date.String()
}

func slotKey(doctorID string, date Date, at ClockTime) string {
	return dayKey(doctorID, date) + "|" + at.String()
}
