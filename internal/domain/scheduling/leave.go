package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/scheduler/internal/domain/directory"
)

// LeaveRegistry records per-date leave overrides for doctors.
type LeaveRegistry struct {
	leaves        LeaveRepository
	doctors       directory.Directory
	allowBackfill bool
	now           func() time.Time
	logger        zerolog.Logger
}

type LeaveOption func(*LeaveRegistry)

// WithBackfill lets Add accept dates before today, for importing historical leave.
func WithBackfill(allow bool) LeaveOption {
	return func(r *LeaveRegistry) { r.allowBackfill = allow }
}

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) LeaveOption {
	return func(r *LeaveRegistry) { r.now = now }
}

// NewLeaveRegistry builds a registry. doctors may be nil, in which case doctor ids are not checked.
func NewLeaveRegistry(leaves LeaveRepository, doctors directory.Directory, logger zerolog.Logger, opts ...LeaveOption) *LeaveRegistry {
	r := &LeaveRegistry{
		leaves:  leaves,
		doctors: doctors,
		now:     time.Now,
		logger:  logger.With().Str("component", "leave-registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add records a full-day leave.
func (r *LeaveRegistry) Add(ctx context.Context, doctorID string, date Date, note string) (*Leave, error) {
	return r.add(ctx, &Leave{DoctorID: doctorID, Date: date, Note: note})
}

// AddPartial records a leave that blocks only the slots intersecting window.
func (r *LeaveRegistry) AddPartial(ctx context.Context, doctorID string, date Date, note string, window Window) (*Leave, error) {
	if !window.Start.Valid() || !window.End.Valid() {
		return nil, invalid("start_time", "leave window must lie within one day")
	}
	if window.Start >= window.End {
		return nil, invalid("end_time", "end_time must be after start_time")
	}
	start, end := window.Start, window.End
	return r.add(ctx, &Leave{DoctorID: doctorID, Date: date, Note: note, StartTime: &start, EndTime: &end})
}

func (r *LeaveRegistry) add(ctx context.Context, l *Leave) (*Leave, error) {
	l.DoctorID = strings.TrimSpace(l.DoctorID)
	if l.DoctorID == "" {
		return nil, invalid("doctor_id", "doctor_id is required")
	}
	if l.Date.IsZero() {
		return nil, invalid("date", "date is required")
	}
	if !r.allowBackfill && l.Date.Before(DateOf(r.now())) {
		return nil, invalid("date", "leave date %s is in the past", l.Date)
	}
	if err := checkDoctor(ctx, r.doctors, l.DoctorID); err != nil {
		return nil, err
	}
	if l.FullDay() {
		existing, err := r.leaves.ListForDate(ctx, l.DoctorID, l.Date)
		if err != nil {
			return nil, err
		}
		for _, e := range existing {
			if e.FullDay() {
				return nil, invalid("date", "doctor %s is already on leave on %s", l.DoctorID, l.Date)
			}
		}
	}
	if err := r.leaves.Create(ctx, l); err != nil {
		r.logger.Error().Err(err).Str("doctor_id", l.DoctorID).Msg("failed to store leave")
		return nil, err
	}
	ev := r.logger.Info().Str("doctor_id", l.DoctorID).Str("date", l.Date.String()).Str("leave_id", l.ID.String())
	if w, ok := l.Window(); ok {
		ev = ev.Str("window", w.String())
	}
	ev.Msg("leave added")
	return l, nil
}

// Remove deletes a leave. Unknown ids yield a *NotFoundError.
func (r *LeaveRegistry) Remove(ctx context.Context, id uuid.UUID) error {
	if err := r.leaves.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info().Str("leave_id", id.String()).Msg("leave removed")
	return nil
}

func (r *LeaveRegistry) Get(ctx context.Context, id uuid.UUID) (*Leave, error) {
	return r.leaves.GetByID(ctx, id)
}

// IsOnLeave reports whether a full-day leave exists for the doctor on date.
func (r *LeaveRegistry) IsOnLeave(ctx context.Context, doctorID string, date Date) (bool, error) {
	full, _, err := r.blocksFor(ctx, doctorID, date)
	return full, err
}

func (r *LeaveRegistry) ListForDoctor(ctx context.Context, doctorID string) ([]*Leave, error) {
	return r.leaves.ListByDoctor(ctx, doctorID)
}

// blocksFor reports a full-day leave, or else the partial-day windows to block.
func (r *LeaveRegistry) blocksFor(ctx context.Context, doctorID string, date Date) (bool, []Window, error) {
	leaves, err := r.leaves.ListForDate(ctx, doctorID, date)
	if err != nil {
		return false, nil, err
	}
	var windows []Window
	for _, l := range leaves {
		w, ok := l.Window()
		if !ok {
			return true, nil, nil
		}
		windows = append(windows, w)
	}
	return false, windows, nil
}

func checkDoctor(ctx context.Context, doctors directory.Directory, id string) error {
	if doctors == nil {
		return nil
	}
	if _, err := doctors.GetDoctor(ctx, id); err != nil {
		if errors.Is(err, directory.ErrDoctorNotFound) {
			return notFound("doctor", id)
		}
		return err
	}
	return nil
}
