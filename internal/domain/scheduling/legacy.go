package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// LegacyDay is one day of the free-form working-hours blob kept on old doctor records.
// Both start/end and open/close spellings occur in exported data.
type LegacyDay struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	Open       string `json:"open"`
	Close      string `json:"close"`
	BreakStart string `json:"break_start"`
	BreakEnd   string `json:"break_end"`
	Closed     bool   `json:"closed"`
}

// LegacyRecord pairs a doctor with their legacy working hours.
type LegacyRecord struct {
	DoctorID     string               `json:"doctor_id"`
	WorkingHours map[string]LegacyDay `json:"working_hours"`
}

// LegacyDefaults supplies the pattern fields the legacy blob never carried.
type LegacyDefaults struct {
	SlotDurationMinutes int
	MaxPatientsPerSlot  int
	ConsultationMode    ConsultationMode
	RoomNumber          string
	ValidFrom           Date
}

// ParseLegacyFile decodes a JSON array of LegacyRecord.
func ParseLegacyFile(data []byte) ([]LegacyRecord, error) {
	var records []LegacyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode legacy hours: %w", err)
	}
	return records, nil
}

type legacyKey struct {
	start, end           ClockTime
	breakStart, breakEnd ClockTime
	hasBreak             bool
}

// ConvertLegacyHours turns one doctor's legacy hours into weekly patterns. Days with
// identical hours share a pattern; closed or empty days are skipped.
func ConvertLegacyHours(doctorID string, hours map[string]LegacyDay, d LegacyDefaults) ([]*WeeklySchedule, error) {
	groups := make(map[legacyKey][]Weekday)
	for name, day := range hours {
		wd, err := ParseWeekday(name)
		if err != nil {
			return nil, invalid("working_hours", "doctor %s: %v", doctorID, err)
		}
		start, end := day.Start, day.End
		if start == "" {
			start = day.Open
		}
		if end == "" {
			end = day.Close
		}
		if day.Closed || (start == "" && end == "") {
			continue
		}
		var key legacyKey
		if key.start, err = ParseClockTime(start); err != nil {
			return nil, invalid("start_time", "doctor %s %s: %v", doctorID, wd, err)
		}
		if key.end, err = ParseClockTime(end); err != nil {
			return nil, invalid("end_time", "doctor %s %s: %v", doctorID, wd, err)
		}
		if day.BreakStart != "" || day.BreakEnd != "" {
			if key.breakStart, err = ParseClockTime(day.BreakStart); err != nil {
				return nil, invalid("break_start", "doctor %s %s: %v", doctorID, wd, err)
			}
			if key.breakEnd, err = ParseClockTime(day.BreakEnd); err != nil {
				return nil, invalid("break_end", "doctor %s %s: %v", doctorID, wd, err)
			}
			key.hasBreak = true
		}
		groups[key] = append(groups[key], wd)
	}

	out := make([]*WeeklySchedule, 0, len(groups))
	for key, days := range groups {
		s := &WeeklySchedule{
			DoctorID:            doctorID,
			WorkingDays:         days,
			StartTime:           key.start,
			EndTime:             key.end,
			SlotDurationMinutes: d.SlotDurationMinutes,
			MaxPatientsPerSlot:  d.MaxPatientsPerSlot,
			ConsultationMode:    d.ConsultationMode,
			RoomNumber:          d.RoomNumber,
			ValidFrom:           d.ValidFrom,
			Status:              StatusActive,
		}
		if key.hasBreak {
			bs, be := key.breakStart, key.breakEnd
			s.BreakStart, s.BreakEnd = &bs, &be
		}
		normalize(s)
		if err := ValidateSchedule(s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WorkingDays[0].index() < out[j].WorkingDays[0].index()
	})
	return out, nil
}

// ImportLegacy converts and stores every record. It stops at the first failure and
// reports how many patterns were created before it.
func (e *ScheduleEditor) ImportLegacy(ctx context.Context, records []LegacyRecord, d LegacyDefaults) (int, error) {
	created := 0
	for _, rec := range records {
		patterns, err := ConvertLegacyHours(rec.DoctorID, rec.WorkingHours, d)
		if err != nil {
			return created, err
		}
		for _, p := range patterns {
			if _, err := e.Create(ctx, p); err != nil {
				return created, fmt.Errorf("import %s: %w", rec.DoctorID, err)
			}
			created++
		}
	}
	e.logger.Info().Int("records", len(records)).Int("schedules", created).Msg("legacy hours imported")
	return created, nil
}
