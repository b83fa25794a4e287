package scheduling

import "sort"

// Generate expands a weekly pattern into the slots it offers on date, annotated with the
// given bookings. Bookings for other doctors, dates or cancelled bookings are ignored.
// The result is ordered by start time and depends only on its inputs.
func Generate(s *WeeklySchedule, date Date, bookings []*Booking) []TimeSlot {
	if s == nil || !s.Active() || !s.Covers(date) || !s.WorksOn(date.Weekday()) {
		return []TimeSlot{}
	}
	dur := ClockTime(s.SlotDurationMinutes)
	if dur <= 0 {
		return []TimeSlot{}
	}

	byStart := make(map[ClockTime][]*Booking)
	for _, b := range bookings {
		if b == nil || !b.Active() || b.DoctorID != s.DoctorID || b.Date != date {
			continue
		}
		byStart[b.Time] = append(byStart[b.Time], b)
	}

	var brk Window
	if s.HasBreak() {
		brk = Window{Start: *s.BreakStart, End: *s.BreakEnd}
	}

	slots := []TimeSlot{}
	sessionBooked := 0
	for start := s.StartTime; start+dur <= s.EndTime; start += dur {
		w := Window{Start: start, End: start + dur}
		if s.HasBreak() && w.Overlaps(brk) {
			continue
		}
		held := byStart[start]
		slot := TimeSlot{
			ScheduleID:       s.ID,
			DoctorID:         s.DoctorID,
			Date:             date,
			StartTime:        w.Start,
			EndTime:          w.End,
			Status:           SlotAvailable,
			BookedCount:      len(held),
			Capacity:         s.MaxPatientsPerSlot,
			ConsultationMode: s.ConsultationMode,
			RoomNumber:       s.RoomNumber,
		}
		for _, b := range held {
			slot.BookedBy = append(slot.BookedBy, b.PatientRef)
		}
		if slot.BookedCount >= slot.Capacity {
			slot.Status = SlotBooked
		}
		sessionBooked += len(held)
		slots = append(slots, slot)
	}

	if s.MaxPatientsPerSession > 0 && sessionBooked >= s.MaxPatientsPerSession {
		for i := range slots {
			if slots[i].Status == SlotAvailable {
				slots[i].Status = SlotBooked
			}
		}
	}
	return slots
}

// ApplyBlocks marks every slot intersecting one of the windows as blocked.
func ApplyBlocks(slots []TimeSlot, windows []Window) []TimeSlot {
	for i := range slots {
		for _, w := range windows {
			if slots[i].Window().Overlaps(w) {
				slots[i].Status = SlotBlocked
				break
			}
		}
	}
	return slots
}

// mergeSlots combines slots produced by several patterns into one start-ordered list.
func mergeSlots(groups ...[]TimeSlot) []TimeSlot {
	out := []TimeSlot{}
	for _, g := range groups {
		out = append(out, g...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}
