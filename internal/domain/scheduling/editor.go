package scheduling

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/scheduler/internal/domain/directory"
	"github.com/hms/scheduler/internal/platform/metrics"
)

// SchedulePatch is a partial update. Nil fields keep the stored value.
type SchedulePatch struct {
	WorkingDays           []Weekday
	StartTime             *ClockTime
	EndTime               *ClockTime
	BreakStart            *ClockTime
	BreakEnd              *ClockTime
	ClearBreak            bool
	SlotDurationMinutes   *int
	MaxPatientsPerSlot    *int
	MaxPatientsPerSession *int
	ConsultationMode      *ConsultationMode
	RoomNumber            *string
	ValidFrom             *Date
	ValidTo               *Date
	ClearValidTo          bool
	Status                *ScheduleStatus
}

// apply returns a copy of s with the patch merged in.
func (p SchedulePatch) apply(s *WeeklySchedule) *WeeklySchedule {
	m := s.Clone()
	if p.WorkingDays != nil {
		m.WorkingDays = append([]Weekday(nil), p.WorkingDays...)
	}
	if p.StartTime != nil {
		m.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		m.EndTime = *p.EndTime
	}
	if p.ClearBreak {
		m.BreakStart, m.BreakEnd = nil, nil
	}
	if p.BreakStart != nil {
		v := *p.BreakStart
		m.BreakStart = &v
	}
	if p.BreakEnd != nil {
		v := *p.BreakEnd
		m.BreakEnd = &v
	}
	if p.SlotDurationMinutes != nil {
		m.SlotDurationMinutes = *p.SlotDurationMinutes
	}
	if p.MaxPatientsPerSlot != nil {
		m.MaxPatientsPerSlot = *p.MaxPatientsPerSlot
	}
	if p.MaxPatientsPerSession != nil {
		m.MaxPatientsPerSession = *p.MaxPatientsPerSession
	}
	if p.ConsultationMode != nil {
		m.ConsultationMode = *p.ConsultationMode
	}
	if p.RoomNumber != nil {
		m.RoomNumber = *p.RoomNumber
	}
	if p.ValidFrom != nil {
		m.ValidFrom = *p.ValidFrom
	}
	if p.ClearValidTo {
		m.ValidTo = nil
	}
	if p.ValidTo != nil {
		v := *p.ValidTo
		m.ValidTo = &v
	}
	if p.Status != nil {
		m.Status = *p.Status
	}
	return m
}

// ScheduleEditor validates weekly patterns before they reach the store.
type ScheduleEditor struct {
	schedules ScheduleRepository
	doctors   directory.Directory
	metrics   *metrics.SchedulingMetrics
	logger    zerolog.Logger
}

// NewScheduleEditor builds an editor. doctors and m may be nil.
func NewScheduleEditor(schedules ScheduleRepository, doctors directory.Directory, m *metrics.SchedulingMetrics, logger zerolog.Logger) *ScheduleEditor {
	return &ScheduleEditor{
		schedules: schedules,
		doctors:   doctors,
		metrics:   m,
		logger:    logger.With().Str("component", "schedule-editor").Logger(),
	}
}

// Create validates s, fills defaults and stores it. The stored pattern is returned.
func (e *ScheduleEditor) Create(ctx context.Context, s *WeeklySchedule) (*WeeklySchedule, error) {
	s = s.Clone()
	s.ID = uuid.Nil
	if err := e.check(ctx, "schedule_create", s); err != nil {
		return nil, err
	}
	if err := e.schedules.Create(ctx, s); err != nil {
		e.logger.Error().Err(err).Str("doctor_id", s.DoctorID).Msg("failed to create schedule")
		return nil, err
	}
	e.logger.Info().Str("schedule_id", s.ID.String()).Str("doctor_id", s.DoctorID).Msg("schedule created")
	return s, nil
}

// Update merges patch onto the stored pattern and validates the result as a whole.
func (e *ScheduleEditor) Update(ctx context.Context, id uuid.UUID, patch SchedulePatch) (*WeeklySchedule, error) {
	current, err := e.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := patch.apply(current)
	if err := e.check(ctx, "schedule_update", merged); err != nil {
		return nil, err
	}
	if err := e.schedules.Update(ctx, merged); err != nil {
		e.logger.Error().Err(err).Str("schedule_id", id.String()).Msg("failed to update schedule")
		return nil, err
	}
	e.logger.Info().Str("schedule_id", id.String()).Str("doctor_id", merged.DoctorID).Msg("schedule updated")
	return merged, nil
}

func (e *ScheduleEditor) Delete(ctx context.Context, id uuid.UUID) error {
	if err := e.schedules.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info().Str("schedule_id", id.String()).Msg("schedule deleted")
	return nil
}

// Get returns every pattern of a doctor, active or not.
func (e *ScheduleEditor) Get(ctx context.Context, doctorID string) ([]*WeeklySchedule, error) {
	return e.schedules.ListByDoctor(ctx, doctorID)
}

func (e *ScheduleEditor) GetByID(ctx context.Context, id uuid.UUID) (*WeeklySchedule, error) {
	return e.schedules.GetByID(ctx, id)
}

func (e *ScheduleEditor) ListByDepartment(ctx context.Context, departmentID string) ([]*WeeklySchedule, error) {
	return e.schedules.ListByDepartment(ctx, departmentID)
}

func (e *ScheduleEditor) check(ctx context.Context, op string, s *WeeklySchedule) error {
	err := e.validate(ctx, s)
	if err != nil && IsValidation(err) {
		e.metrics.ObserveValidationFailure(op)
	}
	return err
}

func (e *ScheduleEditor) validate(ctx context.Context, s *WeeklySchedule) error {
	normalize(s)
	if err := ValidateSchedule(s); err != nil {
		return err
	}
	if err := checkDoctor(ctx, e.doctors, s.DoctorID); err != nil {
		return err
	}
	if !s.Active() {
		return nil
	}
	existing, err := e.schedules.ListByDoctor(ctx, s.DoctorID)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == s.ID {
			continue
		}
		if day, ok := conflicts(s, other); ok {
			return invalid("working_days", "overlaps active schedule %s on %s (%s-%s)",
				other.ID, day, other.StartTime, other.EndTime)
		}
	}
	return nil
}

// normalize fills defaults and puts working days into Monday-first order without duplicates.
func normalize(s *WeeklySchedule) {
	s.DoctorID = strings.TrimSpace(s.DoctorID)
	s.RoomNumber = strings.TrimSpace(s.RoomNumber)
	if s.Status == "" {
		s.Status = StatusActive
	}
	if s.ConsultationMode == "" {
		s.ConsultationMode = ModeInPerson
	}
	seen := make(map[Weekday]bool, len(s.WorkingDays))
	days := make([]Weekday, 0, len(s.WorkingDays))
	for _, d := range s.WorkingDays {
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].index() < days[j].index() })
	s.WorkingDays = days
}

// ValidateSchedule checks the field-level invariants of a single pattern.
func ValidateSchedule(s *WeeklySchedule) error {
	if s.DoctorID == "" {
		return invalid("doctor_id", "doctor_id is required")
	}
	if s.Status != StatusActive && s.Status != StatusInactive {
		return invalid("status", "status must be active or inactive")
	}
	for _, d := range s.WorkingDays {
		if !d.Valid() {
			return invalid("working_days", "invalid weekday %q", d)
		}
	}
	if s.Active() && len(s.WorkingDays) == 0 {
		return invalid("working_days", "working_days must not be empty for an active schedule")
	}
	if !s.StartTime.Valid() {
		return invalid("start_time", "start_time must be between 00:00 and 23:59")
	}
	if !s.EndTime.Valid() {
		return invalid("end_time", "end_time must be between 00:00 and 23:59")
	}
	if s.StartTime >= s.EndTime {
		return invalid("end_time", "start_time must be before end_time")
	}
	if (s.BreakStart == nil) != (s.BreakEnd == nil) {
		return invalid("break_start", "break_start and break_end must be set together")
	}
	if s.HasBreak() {
		bs, be := *s.BreakStart, *s.BreakEnd
		if bs >= be {
			return invalid("break_end", "break_start must be before break_end")
		}
		if bs < s.StartTime {
			return invalid("break_start", "break_start must not be before start_time")
		}
		if be > s.EndTime {
			return invalid("break_end", "break_end must be before end_time")
		}
	}
	if s.SlotDurationMinutes <= 0 {
		return invalid("slot_duration_minutes", "slot_duration_minutes must be positive")
	}
	if s.SlotDurationMinutes > int(s.EndTime-s.StartTime) {
		return invalid("slot_duration_minutes", "slot_duration_minutes exceeds the working window")
	}
	if s.MaxPatientsPerSlot <= 0 {
		return invalid("max_patients_per_slot", "max_patients_per_slot must be positive")
	}
	if s.MaxPatientsPerSession < 0 {
		return invalid("max_patients_per_session", "max_patients_per_session must not be negative")
	}
	if !s.ConsultationMode.Valid() {
		return invalid("consultation_mode", "consultation_mode must be one of in-person, online, both")
	}
	if s.ConsultationMode.IncludesInPerson() && s.RoomNumber == "" {
		return invalid("room_number", "room_number is required for in-person consultations")
	}
	if s.ValidFrom.IsZero() {
		return invalid("valid_from", "valid_from is required")
	}
	if s.ValidTo != nil && s.ValidTo.Before(s.ValidFrom) {
		return invalid("valid_to", "valid_to must not be before valid_from")
	}
	return nil
}

// conflicts reports the first weekday on which two active patterns would both generate
// overlapping slots during a shared validity period.
func conflicts(a, b *WeeklySchedule) (Weekday, bool) {
	if !a.Active() || !b.Active() || a.DoctorID != b.DoctorID {
		return "", false
	}
	if !(Window{Start: a.StartTime, End: a.EndTime}).Overlaps(Window{Start: b.StartTime, End: b.EndTime}) {
		return "", false
	}
	if !validityOverlaps(a, b) {
		return "", false
	}
	for _, d := range a.WorkingDays {
		if b.WorksOn(d) {
			return d, true
		}
	}
	return "", false
}

func validityOverlaps(a, b *WeeklySchedule) bool {
	if a.ValidTo != nil && a.ValidTo.Before(b.ValidFrom) {
		return false
	}
	if b.ValidTo != nil && b.ValidTo.Before(a.ValidFrom) {
		return false
	}
	return true
}
