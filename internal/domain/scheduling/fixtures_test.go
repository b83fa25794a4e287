package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/scheduler/internal/domain/directory"
)

// 2025-03-03 is a Monday.
var (
	monday  = NewDate(2025, time.March, 3)
	tuesday = NewDate(2025, time.March, 4)
	today   = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
)

type testEnv struct {
	doctors   *directory.MemoryDirectory
	schedules *MemoryScheduleRepo
	leaveRepo *MemoryLeaveRepo
	bookRepo  *MemoryBookingRepo
	editor    *ScheduleEditor
	leaves    *LeaveRegistry
	ledger    *BookingLedger
	avail     *AvailabilityService
}

func newTestEnv(opts ...AvailabilityOption) *testEnv {
	doctors := directory.NewMemoryDirectory(
		directory.Doctor{ID: "d1", Name: "Adams", Specialization: "Cardiology", Department: "cardio"},
		directory.Doctor{ID: "d2", Name: "Baker", Specialization: "Orthopedics", Department: "ortho"},
		directory.Doctor{ID: "d3", Name: "Chen", Specialization: "Cardiology", Department: "cardio"},
	)
	env := &testEnv{
		doctors:   doctors,
		schedules: NewMemoryScheduleRepo(doctors),
		leaveRepo: NewMemoryLeaveRepo(),
		bookRepo:  NewMemoryBookingRepo(),
	}
	log := zerolog.Nop()
	env.editor = NewScheduleEditor(env.schedules, doctors, nil, log)
	env.leaves = NewLeaveRegistry(env.leaveRepo, doctors, log, WithClock(func() time.Time { return today }))
	env.ledger = NewBookingLedger(env.bookRepo, log)
	env.avail = NewAvailabilityService(env.schedules, env.leaves, env.ledger, log,
		append([]AvailabilityOption{WithDoctors(doctors)}, opts...)...)
	return env
}

func clock(s string) ClockTime {
	t, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return t
}

func clockRef(s string) *ClockTime {
	t := clock(s)
	return &t
}

// mondayMorning is the 09:00-11:00, 30 minute, single-patient Monday pattern.
func mondayMorning(doctorID string) *WeeklySchedule {
	return &WeeklySchedule{
		DoctorID:            doctorID,
		WorkingDays:         []Weekday{Monday},
		StartTime:           clock("09:00"),
		EndTime:             clock("11:00"),
		SlotDurationMinutes: 30,
		MaxPatientsPerSlot:  1,
		ConsultationMode:    ModeInPerson,
		RoomNumber:          "OPD-4",
		ValidFrom:           NewDate(2025, time.January, 1),
		Status:              StatusActive,
	}
}

func booking(doctorID string, d Date, at string, patient string) *Booking {
	return &Booking{ID: uuid.New(), DoctorID: doctorID, Date: d, Time: clock(at), PatientRef: patient, Status: BookingBooked}
}

func starts(slots []TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.StartTime.String()
	}
	return out
}

var errStore = errors.New("connection reset by peer")

// failingBookings fails every read so store errors can be observed propagating.
type failingBookings struct{ BookingRepository }

func (failingBookings) ListForDate(context.Context, string, Date) ([]*Booking, error) {
	return nil, errStore
}
