package scheduling

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hms/scheduler/internal/domain/directory"
)

// MemoryScheduleRepo keeps patterns in process memory. The directory resolves departments.
type MemoryScheduleRepo struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*WeeklySchedule
	doctors   directory.Directory
}

func NewMemoryScheduleRepo(doctors directory.Directory) *MemoryScheduleRepo {
	return &MemoryScheduleRepo{schedules: make(map[uuid.UUID]*WeeklySchedule), doctors: doctors}
}

func (m *MemoryScheduleRepo) Create(_ context.Context, s *WeeklySchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = uuid.New()
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.schedules[s.ID] = s.Clone()
	return nil
}

func (m *MemoryScheduleRepo) GetByID(_ context.Context, id uuid.UUID) (*WeeklySchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, notFound("schedule", id.String())
	}
	return s.Clone(), nil
}

func (m *MemoryScheduleRepo) Update(_ context.Context, s *WeeklySchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.schedules[s.ID]
	if !ok {
		return notFound("schedule", s.ID.String())
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	m.schedules[s.ID] = s.Clone()
	return nil
}

func (m *MemoryScheduleRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.schedules[id]; !ok {
		return notFound("schedule", id.String())
	}
	delete(m.schedules, id)
	return nil
}

func (m *MemoryScheduleRepo) ListByDoctor(_ context.Context, doctorID string) ([]*WeeklySchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*WeeklySchedule
	for _, s := range m.schedules {
		if s.DoctorID == doctorID {
			out = append(out, s.Clone())
		}
	}
	sortSchedules(out)
	return out, nil
}

func (m *MemoryScheduleRepo) ListByDepartment(ctx context.Context, departmentID string) ([]*WeeklySchedule, error) {
	if m.doctors == nil {
		return nil, nil
	}
	doctors, err := m.doctors.ListDoctors(ctx)
	if err != nil {
		return nil, err
	}
	inDept := make(map[string]bool)
	for _, d := range doctors {
		if d.Department == departmentID {
			inDept[d.ID] = true
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*WeeklySchedule
	for _, s := range m.schedules {
		if inDept[s.DoctorID] {
			out = append(out, s.Clone())
		}
	}
	sortSchedules(out)
	return out, nil
}

func sortSchedules(items []*WeeklySchedule) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].DoctorID != items[j].DoctorID {
			return items[i].DoctorID < items[j].DoctorID
		}
		if items[i].StartTime != items[j].StartTime {
			return items[i].StartTime < items[j].StartTime
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

type MemoryLeaveRepo struct {
	mu     sync.RWMutex
	leaves map[uuid.UUID]*Leave
}

func NewMemoryLeaveRepo() *MemoryLeaveRepo {
	return &MemoryLeaveRepo{leaves: make(map[uuid.UUID]*Leave)}
}

func (m *MemoryLeaveRepo) Create(_ context.Context, l *Leave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = time.Now().UTC()
	c := *l
	m.leaves[l.ID] = &c
	return nil
}

func (m *MemoryLeaveRepo) GetByID(_ context.Context, id uuid.UUID) (*Leave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.leaves[id]
	if !ok {
		return nil, notFound("leave", id.String())
	}
	c := *l
	return &c, nil
}

func (m *MemoryLeaveRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leaves[id]; !ok {
		return notFound("leave", id.String())
	}
	delete(m.leaves, id)
	return nil
}

func (m *MemoryLeaveRepo) ListByDoctor(_ context.Context, doctorID string) ([]*Leave, error) {
	return m.filter(func(l *Leave) bool { return l.DoctorID == doctorID }), nil
}

func (m *MemoryLeaveRepo) ListForDate(_ context.Context, doctorID string, date Date) ([]*Leave, error) {
	return m.filter(func(l *Leave) bool { return l.DoctorID == doctorID && l.Date == date }), nil
}

func (m *MemoryLeaveRepo) filter(keep func(*Leave) bool) []*Leave {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Leave
	for _, l := range m.leaves {
		if keep(l) {
			c := *l
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type MemoryBookingRepo struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*Booking
}

func NewMemoryBookingRepo() *MemoryBookingRepo {
	return &MemoryBookingRepo{bookings: make(map[uuid.UUID]*Booking)}
}

func (m *MemoryBookingRepo) Create(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.New()
	b.CreatedAt = time.Now().UTC()
	c := *b
	m.bookings[b.ID] = &c
	return nil
}

func (m *MemoryBookingRepo) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, notFound("booking", id.String())
	}
	c := *b
	return &c, nil
}

func (m *MemoryBookingRepo) SetStatus(_ context.Context, id uuid.UUID, status BookingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return notFound("booking", id.String())
	}
	b.Status = status
	return nil
}

func (m *MemoryBookingRepo) ListForDate(_ context.Context, doctorID string, date Date) ([]*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Booking
	for _, b := range m.bookings {
		if b.DoctorID == doctorID && b.Date == date && b.Active() {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
