package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Schedule Repository ===========

type scheduleRepoPG struct{ q queryable }

func NewScheduleRepoPG(pool *pgxpool.Pool) ScheduleRepository { return &scheduleRepoPG{q: pool} }

const schedCols = `s.id, s.doctor_id, s.working_days, s.start_minute, s.end_minute,
	s.break_start_minute, s.break_end_minute, s.slot_duration_minutes, s.max_patients_per_slot,
	s.max_patients_per_session, s.consultation_mode, s.room_number, s.valid_from, s.valid_to,
	s.status, s.created_at, s.updated_at`

func (r *scheduleRepoPG) scanSchedule(row pgx.Row) (*WeeklySchedule, error) {
	var (
		s                    WeeklySchedule
		days                 []string
		start, end           int
		breakStart, breakEnd *int
		validFrom            time.Time
		validTo              *time.Time
		mode, status         string
	)
	err := row.Scan(&s.ID, &s.DoctorID, &days, &start, &end,
		&breakStart, &breakEnd, &s.SlotDurationMinutes, &s.MaxPatientsPerSlot,
		&s.MaxPatientsPerSession, &mode, &s.RoomNumber, &validFrom, &validTo,
		&status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, d := range days {
		s.WorkingDays = append(s.WorkingDays, Weekday(d))
	}
	s.StartTime = ClockTime(start)
	s.EndTime = ClockTime(end)
	s.BreakStart = clockPtr(breakStart)
	s.BreakEnd = clockPtr(breakEnd)
	s.ConsultationMode = ConsultationMode(mode)
	s.ValidFrom = DateOf(validFrom)
	if validTo != nil {
		d := DateOf(*validTo)
		s.ValidTo = &d
	}
	s.Status = ScheduleStatus(status)
	return &s, nil
}

func (r *scheduleRepoPG) Create(ctx context.Context, s *WeeklySchedule) error {
	s.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO weekly_schedule (id, doctor_id, working_days, start_minute, end_minute,
			break_start_minute, break_end_minute, slot_duration_minutes, max_patients_per_slot,
			max_patients_per_session, consultation_mode, room_number, valid_from, valid_to, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at`,
		s.ID, s.DoctorID, dayStrings(s.WorkingDays), int(s.StartTime), int(s.EndTime),
		intPtr(s.BreakStart), intPtr(s.BreakEnd), s.SlotDurationMinutes, s.MaxPatientsPerSlot,
		s.MaxPatientsPerSession, string(s.ConsultationMode), s.RoomNumber, s.ValidFrom.Time(), datePtr(s.ValidTo),
		string(s.Status)).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert weekly_schedule: %w", err)
	}
	return nil
}

func (r *scheduleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*WeeklySchedule, error) {
	s, err := r.scanSchedule(r.q.QueryRow(ctx, `SELECT `+schedCols+` FROM weekly_schedule s WHERE s.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("schedule", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get weekly_schedule %s: %w", id, err)
	}
	return s, nil
}

func (r *scheduleRepoPG) Update(ctx context.Context, s *WeeklySchedule) error {
	err := r.q.QueryRow(ctx, `
		UPDATE weekly_schedule SET working_days=$2, start_minute=$3, end_minute=$4,
			break_start_minute=$5, break_end_minute=$6, slot_duration_minutes=$7,
			max_patients_per_slot=$8, max_patients_per_session=$9, consultation_mode=$10,
			room_number=$11, valid_from=$12, valid_to=$13, status=$14, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		s.ID, dayStrings(s.WorkingDays), int(s.StartTime), int(s.EndTime),
		intPtr(s.BreakStart), intPtr(s.BreakEnd), s.SlotDurationMinutes,
		s.MaxPatientsPerSlot, s.MaxPatientsPerSession, string(s.ConsultationMode),
		s.RoomNumber, s.ValidFrom.Time(), datePtr(s.ValidTo), string(s.Status)).Scan(&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound("schedule", s.ID.String())
	}
	if err != nil {
		return fmt.Errorf("update weekly_schedule %s: %w", s.ID, err)
	}
	return nil
}

func (r *scheduleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM weekly_schedule WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete weekly_schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("schedule", id.String())
	}
	return nil
}

func (r *scheduleRepoPG) ListByDoctor(ctx context.Context, doctorID string) ([]*WeeklySchedule, error) {
	return r.list(ctx, `SELECT `+schedCols+` FROM weekly_schedule s
		WHERE s.doctor_id = $1 ORDER BY s.start_minute, s.created_at`, doctorID)
}

func (r *scheduleRepoPG) ListByDepartment(ctx context.Context, departmentID string) ([]*WeeklySchedule, error) {
	return r.list(ctx, `SELECT `+schedCols+` FROM weekly_schedule s
		JOIN doctor d ON d.id = s.doctor_id
		WHERE d.department = $1 ORDER BY s.doctor_id, s.start_minute, s.created_at`, departmentID)
}

func (r *scheduleRepoPG) list(ctx context.Context, query string, arg string) ([]*WeeklySchedule, error) {
	rows, err := r.q.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list weekly_schedule: %w", err)
	}
	defer rows.Close()
	var items []*WeeklySchedule
	for rows.Next() {
		s, err := r.scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan weekly_schedule: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// =========== Leave Repository ===========

type leaveRepoPG struct{ q queryable }

func NewLeaveRepoPG(pool *pgxpool.Pool) LeaveRepository { return &leaveRepoPG{q: pool} }

const leaveCols = `id, doctor_id, leave_date, note, start_minute, end_minute, created_at`

func (r *leaveRepoPG) scanLeave(row pgx.Row) (*Leave, error) {
	var (
		l          Leave
		date       time.Time
		start, end *int
	)
	if err := row.Scan(&l.ID, &l.DoctorID, &date, &l.Note, &start, &end, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Date = DateOf(date)
	l.StartTime = clockPtr(start)
	l.EndTime = clockPtr(end)
	return &l, nil
}

func (r *leaveRepoPG) Create(ctx context.Context, l *Leave) error {
	l.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO doctor_leave (id, doctor_id, leave_date, note, start_minute, end_minute)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		l.ID, l.DoctorID, l.Date.Time(), l.Note, intPtr(l.StartTime), intPtr(l.EndTime)).Scan(&l.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert doctor_leave: %w", err)
	}
	return nil
}

func (r *leaveRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Leave, error) {
	l, err := r.scanLeave(r.q.QueryRow(ctx, `SELECT `+leaveCols+` FROM doctor_leave WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("leave", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor_leave %s: %w", id, err)
	}
	return l, nil
}

func (r *leaveRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM doctor_leave WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete doctor_leave %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("leave", id.String())
	}
	return nil
}

func (r *leaveRepoPG) ListByDoctor(ctx context.Context, doctorID string) ([]*Leave, error) {
	return r.list(ctx, `SELECT `+leaveCols+` FROM doctor_leave
		WHERE doctor_id = $1 ORDER BY leave_date, created_at`, doctorID)
}

func (r *leaveRepoPG) ListForDate(ctx context.Context, doctorID string, date Date) ([]*Leave, error) {
	return r.list(ctx, `SELECT `+leaveCols+` FROM doctor_leave
		WHERE doctor_id = $1 AND leave_date = $2 ORDER BY created_at`, doctorID, date.Time())
}

func (r *leaveRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Leave, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctor_leave: %w", err)
	}
	defer rows.Close()
	var items []*Leave
	for rows.Next() {
		l, err := r.scanLeave(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doctor_leave: %w", err)
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

// =========== Booking Repository ===========

type bookingRepoPG struct{ q queryable }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository { return &bookingRepoPG{q: pool} }

const bookingCols = `id, doctor_id, booking_date, slot_minute, patient_ref, status, created_at`

func (r *bookingRepoPG) scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b      Booking
		date   time.Time
		minute int
		status string
	)
	if err := row.Scan(&b.ID, &b.DoctorID, &date, &minute, &b.PatientRef, &status, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.Date = DateOf(date)
	b.Time = ClockTime(minute)
	b.Status = BookingStatus(status)
	return &b, nil
}

func (r *bookingRepoPG) Create(ctx context.Context, b *Booking) error {
	b.ID = uuid.New()
	err := r.q.QueryRow(ctx, `
		INSERT INTO booking (id, doctor_id, booking_date, slot_minute, patient_ref, status)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		b.ID, b.DoctorID, b.Date.Time(), int(b.Time), b.PatientRef, string(b.Status)).Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *bookingRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := r.scanBooking(r.q.QueryRow(ctx, `SELECT `+bookingCols+` FROM booking WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("booking", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

func (r *bookingRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status BookingStatus) error {
	tag, err := r.q.Exec(ctx, `UPDATE booking SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update booking %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("booking", id.String())
	}
	return nil
}

func (r *bookingRepoPG) ListForDate(ctx context.Context, doctorID string, date Date) ([]*Booking, error) {
	rows, err := r.q.Query(ctx, `SELECT `+bookingCols+` FROM booking
		WHERE doctor_id = $1 AND booking_date = $2 AND status <> 'cancelled'
		ORDER BY slot_minute, created_at`, doctorID, date.Time())
	if err != nil {
		return nil, fmt.Errorf("list booking: %w", err)
	}
	defer rows.Close()
	var items []*Booking
	for rows.Next() {
		b, err := r.scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func dayStrings(days []Weekday) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}

func intPtr(t *ClockTime) *int {
	if t == nil {
		return nil
	}
	v := int(*t)
	return &v
}

func clockPtr(v *int) *ClockTime {
	if v == nil {
		return nil
	}
	t := ClockTime(*v)
	return &t
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}
