package scheduling

import (
	"context"

	"github.com/google/uuid"
)

// ScheduleRepository stores weekly patterns. GetByID returns *NotFoundError for unknown ids.
type ScheduleRepository interface {
	Create(ctx context.Context, s *WeeklySchedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*WeeklySchedule, error)
	Update(ctx context.Context, s *WeeklySchedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID string) ([]*WeeklySchedule, error)
	ListByDepartment(ctx context.Context, departmentID string) ([]*WeeklySchedule, error)
}

type LeaveRepository interface {
	Create(ctx context.Context, l *Leave) error
	GetByID(ctx context.Context, id uuid.UUID) (*Leave, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDoctor(ctx context.Context, doctorID string) ([]*Leave, error)
	ListForDate(ctx context.Context, doctorID string, date Date) ([]*Leave, error)
}

// BookingRepository persists bookings. ListForDate returns only active bookings.
type BookingRepository interface {
	Create(ctx context.Context, b *Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	SetStatus(ctx context.Context, id uuid.UUID, status BookingStatus) error
	ListForDate(ctx context.Context, doctorID string, date Date) ([]*Booking, error)
}
