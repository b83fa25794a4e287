package scheduling

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Weekday is a lowercase weekday tag as used in working-day sets.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// weekOrder is the canonical Monday-first ordering of weekdays.
var weekOrder = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// WeekdayOf converts a time.Weekday into its tag.
func WeekdayOf(d time.Weekday) Weekday {
	switch d {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// ParseWeekday accepts full names and three-letter abbreviations, case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, w := range weekOrder {
		if s == string(w) || (len(s) == 3 && strings.HasPrefix(string(w), s)) {
			return w, nil
		}
	}
	return "", fmt.Errorf("invalid weekday %q", s)
}

// Valid reports whether w is one of the seven weekday tags.
func (w Weekday) Valid() bool {
	for _, d := range weekOrder {
		if w == d {
			return true
		}
	}
	return false
}

func (w Weekday) index() int {
	for i, d := range weekOrder {
		if w == d {
			return i
		}
	}
	return len(weekOrder)
}

// ClockTime is a local wall-clock time of day in minutes since midnight.
type ClockTime int

const minutesPerDay = 24 * 60

// NewClockTime builds a ClockTime from an hour and minute.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime parses a HH:MM time string.
func ParseClockTime(s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("invalid time format %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("hour out of range in %q", s)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("minute out of range in %q", s)
	}
	return NewClockTime(hour, minute), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Valid reports whether t falls within a single day.
func (t ClockTime) Valid() bool { return t >= 0 && t < minutesPerDay }

func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a HH:MM string")
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day in local wall-clock terms.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// NewDate normalizes the given components (e.g. Feb 30 becomes Mar 1/2).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Weekday() Weekday { return WeekdayOf(d.Time().Weekday()) }

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }

func (d Date) After(o Date) bool { return d.Time().After(o.Time()) }

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a YYYY-MM-DD string")
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ConsultationMode says which visit types a pattern supports.
type ConsultationMode string

const (
	ModeInPerson ConsultationMode = "in-person"
	ModeOnline   ConsultationMode = "online"
	ModeBoth     ConsultationMode = "both"
)

func (m ConsultationMode) Valid() bool {
	return m == ModeInPerson || m == ModeOnline || m == ModeBoth
}

// IncludesInPerson reports whether patients visit a physical room.
func (m ConsultationMode) IncludesInPerson() bool {
	return m == ModeInPerson || m == ModeBoth
}

type ScheduleStatus string

const (
	StatusActive   ScheduleStatus = "active"
	StatusInactive ScheduleStatus = "inactive"
)

// WeeklySchedule is a doctor's recurring availability template.
type WeeklySchedule struct {
	ID                    uuid.UUID        `db:"id" json:"id"`
	DoctorID              string           `db:"doctor_id" json:"doctor_id"`
	WorkingDays           []Weekday        `db:"working_days" json:"working_days"`
	StartTime             ClockTime        `db:"start_minute" json:"start_time"`
	EndTime               ClockTime        `db:"end_minute" json:"end_time"`
	BreakStart            *ClockTime       `db:"break_start_minute" json:"break_start,omitempty"`
	BreakEnd              *ClockTime       `db:"break_end_minute" json:"break_end,omitempty"`
	SlotDurationMinutes   int              `db:"slot_duration_minutes" json:"slot_duration_minutes"`
	MaxPatientsPerSlot    int              `db:"max_patients_per_slot" json:"max_patients_per_slot"`
	MaxPatientsPerSession int              `db:"max_patients_per_session" json:"max_patients_per_session,omitempty"`
	ConsultationMode      ConsultationMode `db:"consultation_mode" json:"consultation_mode"`
	RoomNumber            string           `db:"room_number" json:"room_number,omitempty"`
	ValidFrom             Date             `db:"valid_from" json:"valid_from"`
	ValidTo               *Date            `db:"valid_to" json:"valid_to,omitempty"`
	Status                ScheduleStatus   `db:"status" json:"status"`
	CreatedAt             time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time        `db:"updated_at" json:"updated_at"`
}

func (s *WeeklySchedule) Active() bool { return s.Status == StatusActive }

// WorksOn reports whether w is one of the pattern's working days.
func (s *WeeklySchedule) WorksOn(w Weekday) bool {
	for _, d := range s.WorkingDays {
		if d == w {
			return true
		}
	}
	return false
}

// Covers reports whether d lies within the inclusive validity window.
func (s *WeeklySchedule) Covers(d Date) bool {
	if !s.ValidFrom.IsZero() && d.Before(s.ValidFrom) {
		return false
	}
	if s.ValidTo != nil && d.After(*s.ValidTo) {
		return false
	}
	return true
}

func (s *WeeklySchedule) HasBreak() bool {
	return s.BreakStart != nil && s.BreakEnd != nil
}

// Clone returns a deep copy so stores never share slices or pointers with callers.
func (s *WeeklySchedule) Clone() *WeeklySchedule {
	c := *s
	c.WorkingDays = append([]Weekday(nil), s.WorkingDays...)
	if s.BreakStart != nil {
		v := *s.BreakStart
		c.BreakStart = &v
	}
	if s.BreakEnd != nil {
		v := *s.BreakEnd
		c.BreakEnd = &v
	}
	if s.ValidTo != nil {
		v := *s.ValidTo
		c.ValidTo = &v
	}
	return &c
}

// Window is a half-open wall-clock interval [Start, End).
type Window struct {
	Start ClockTime `json:"start_time"`
	End   ClockTime `json:"end_time"`
}

// Overlaps treats adjacent windows as disjoint.
func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && o.Start < w.End
}

func (w Window) String() string { return w.Start.String() + "-" + w.End.String() }

// Leave suppresses a doctor's slots on one date. Without a window it covers the whole day.
type Leave struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	DoctorID  string     `db:"doctor_id" json:"doctor_id"`
	Date      Date       `db:"leave_date" json:"date"`
	Note      string     `db:"note" json:"note,omitempty"`
	StartTime *ClockTime `db:"start_minute" json:"start_time,omitempty"`
	EndTime   *ClockTime `db:"end_minute" json:"end_time,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

func (l *Leave) FullDay() bool { return l.StartTime == nil || l.EndTime == nil }

// Window returns the blocked interval of a partial-day leave.
func (l *Leave) Window() (Window, bool) {
	if l.FullDay() {
		return Window{}, false
	}
	return Window{Start: *l.StartTime, End: *l.EndTime}, true
}

type BookingStatus string

const (
	BookingBooked    BookingStatus = "booked"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is an appointment held against a doctor's slot.
type Booking struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	DoctorID   string        `db:"doctor_id" json:"doctor_id"`
	Date       Date          `db:"booking_date" json:"date"`
	Time       ClockTime     `db:"slot_minute" json:"time"`
	PatientRef string        `db:"patient_ref" json:"patient_ref"`
	Status     BookingStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// Active reports whether the booking still counts toward capacity.
func (b *Booking) Active() bool { return b.Status != BookingCancelled }

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
)

// TimeSlot is a bookable interval derived from a WeeklySchedule for one date.
type TimeSlot struct {
	ScheduleID       uuid.UUID        `json:"schedule_id"`
	DoctorID         string           `json:"doctor_id"`
	Date             Date             `json:"date"`
	StartTime        ClockTime        `json:"start_time"`
	EndTime          ClockTime        `json:"end_time"`
	Status           SlotStatus       `json:"status"`
	BookedCount      int              `json:"booked_count"`
	Capacity         int              `json:"capacity"`
	BookedBy         []string         `json:"booked_by,omitempty"`
	ConsultationMode ConsultationMode `json:"consultation_mode"`
	RoomNumber       string           `json:"room_number,omitempty"`
}

func (t TimeSlot) Window() Window { return Window{Start: t.StartTime, End: t.EndTime} }

// Availability answers "what can be booked for a doctor on a date".
type Availability struct {
	DoctorID string     `json:"doctor_id"`
	Date     Date       `json:"date"`
	Slots    []TimeSlot `json:"slots"`
	IsLeave  bool       `json:"is_leave"`
}

// BookingResult carries the overbooking signal alongside a successful write.
type BookingResult struct {
	Booking    *Booking `json:"booking"`
	Overbooked bool     `json:"overbooked"`
}
