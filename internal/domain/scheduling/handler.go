package scheduling

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hms/scheduler/internal/domain/directory"
	"github.com/hms/scheduler/internal/platform/auth"
	"github.com/hms/scheduler/pkg/pagination"
)

type Handler struct {
	editor  *ScheduleEditor
	leaves  *LeaveRegistry
	ledger  *BookingLedger
	avail   *AvailabilityService
	doctors directory.Directory
}

func NewHandler(editor *ScheduleEditor, leaves *LeaveRegistry, ledger *BookingLedger, avail *AvailabilityService, doctors directory.Directory) *Handler {
	return &Handler{editor: editor, leaves: leaves, ledger: ledger, avail: avail, doctors: doctors}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Read endpoints – all clinical and front-desk staff
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse", "registrar"))
	readGroup.GET("/doctors", h.ListDoctors)
	readGroup.GET("/doctors/:doctor_id/schedules", h.ListDoctorSchedules)
	readGroup.GET("/departments/:department_id/schedules", h.ListDepartmentSchedules)
	readGroup.GET("/schedules/:id", h.GetSchedule)
	readGroup.GET("/doctors/:doctor_id/leaves", h.ListLeaves)
	readGroup.GET("/doctors/:doctor_id/availability", h.GetAvailability)
	readGroup.GET("/doctors/:doctor_id/bookings", h.ListBookings)

	// Schedule and leave maintenance – admin, registrar
	adminGroup := api.Group("", auth.RequireRole("admin", "registrar"))
	adminGroup.POST("/schedules", h.CreateSchedule)
	adminGroup.PATCH("/schedules/:id", h.UpdateSchedule)
	adminGroup.DELETE("/schedules/:id", h.DeleteSchedule)
	adminGroup.POST("/leaves", h.CreateLeave)
	adminGroup.DELETE("/leaves/:id", h.DeleteLeave)

	// Booking – front desk and clinicians
	bookGroup := api.Group("", auth.RequireRole("admin", "registrar", "nurse", "physician"))
	bookGroup.POST("/bookings", h.CreateBooking)
	bookGroup.DELETE("/bookings/:id", h.CancelBooking)
}

// -- Request bodies --

type scheduleRequest struct {
	DoctorID              string   `json:"doctor_id" validate:"required"`
	WorkingDays           []string `json:"working_days" validate:"dive,weekday"`
	StartTime             string   `json:"start_time" validate:"required,datetime=15:04"`
	EndTime               string   `json:"end_time" validate:"required,datetime=15:04"`
	BreakStart            string   `json:"break_start" validate:"omitempty,datetime=15:04"`
	BreakEnd              string   `json:"break_end" validate:"omitempty,datetime=15:04"`
	SlotDurationMinutes   int      `json:"slot_duration_minutes" validate:"gt=0"`
	MaxPatientsPerSlot    int      `json:"max_patients_per_slot" validate:"gt=0"`
	MaxPatientsPerSession int      `json:"max_patients_per_session" validate:"gte=0"`
	ConsultationMode      string   `json:"consultation_mode" validate:"omitempty,oneof=in-person online both"`
	RoomNumber            string   `json:"room_number"`
	ValidFrom             string   `json:"valid_from" validate:"required,datetime=2006-01-02"`
	ValidTo               string   `json:"valid_to" validate:"omitempty,datetime=2006-01-02"`
	Status                string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (r *scheduleRequest) toSchedule() (*WeeklySchedule, error) {
	s := &WeeklySchedule{
		DoctorID:              r.DoctorID,
		SlotDurationMinutes:   r.SlotDurationMinutes,
		MaxPatientsPerSlot:    r.MaxPatientsPerSlot,
		MaxPatientsPerSession: r.MaxPatientsPerSession,
		ConsultationMode:      ConsultationMode(r.ConsultationMode),
		RoomNumber:            r.RoomNumber,
		Status:                ScheduleStatus(r.Status),
	}
	var err error
	if s.WorkingDays, err = parseWeekdays(r.WorkingDays); err != nil {
		return nil, err
	}
	if s.StartTime, err = parseClockField("start_time", r.StartTime); err != nil {
		return nil, err
	}
	if s.EndTime, err = parseClockField("end_time", r.EndTime); err != nil {
		return nil, err
	}
	if s.BreakStart, err = optionalClock("break_start", r.BreakStart); err != nil {
		return nil, err
	}
	if s.BreakEnd, err = optionalClock("break_end", r.BreakEnd); err != nil {
		return nil, err
	}
	if s.ValidFrom, err = parseDateField("valid_from", r.ValidFrom); err != nil {
		return nil, err
	}
	if r.ValidTo != "" {
		to, err := parseDateField("valid_to", r.ValidTo)
		if err != nil {
			return nil, err
		}
		s.ValidTo = &to
	}
	return s, nil
}

type schedulePatchRequest struct {
	WorkingDays           *[]string `json:"working_days" validate:"omitempty,dive,weekday"`
	StartTime             *string   `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime               *string   `json:"end_time" validate:"omitempty,datetime=15:04"`
	BreakStart            *string   `json:"break_start" validate:"omitempty,datetime=15:04"`
	BreakEnd              *string   `json:"break_end" validate:"omitempty,datetime=15:04"`
	ClearBreak            bool      `json:"clear_break"`
	SlotDurationMinutes   *int      `json:"slot_duration_minutes" validate:"omitempty,gt=0"`
	MaxPatientsPerSlot    *int      `json:"max_patients_per_slot" validate:"omitempty,gt=0"`
	MaxPatientsPerSession *int      `json:"max_patients_per_session" validate:"omitempty,gte=0"`
	ConsultationMode      *string   `json:"consultation_mode" validate:"omitempty,oneof=in-person online both"`
	RoomNumber            *string   `json:"room_number"`
	ValidFrom             *string   `json:"valid_from" validate:"omitempty,datetime=2006-01-02"`
	ValidTo               *string   `json:"valid_to" validate:"omitempty,datetime=2006-01-02"`
	ClearValidTo          bool      `json:"clear_valid_to"`
	Status                *string   `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (r *schedulePatchRequest) toPatch() (SchedulePatch, error) {
	p := SchedulePatch{
		ClearBreak:            r.ClearBreak,
		ClearValidTo:          r.ClearValidTo,
		SlotDurationMinutes:   r.SlotDurationMinutes,
		MaxPatientsPerSlot:    r.MaxPatientsPerSlot,
		MaxPatientsPerSession: r.MaxPatientsPerSession,
		RoomNumber:            r.RoomNumber,
	}
	var err error
	if r.WorkingDays != nil {
		if p.WorkingDays, err = parseWeekdays(*r.WorkingDays); err != nil {
			return p, err
		}
		if p.WorkingDays == nil {
			p.WorkingDays = []Weekday{}
		}
	}
	clocks := []struct {
		field string
		in    *string
		out   **ClockTime
	}{
		{"start_time", r.StartTime, &p.StartTime},
		{"end_time", r.EndTime, &p.EndTime},
		{"break_start", r.BreakStart, &p.BreakStart},
		{"break_end", r.BreakEnd, &p.BreakEnd},
	}
	for _, c := range clocks {
		if c.in == nil {
			continue
		}
		t, err := parseClockField(c.field, *c.in)
		if err != nil {
			return p, err
		}
		*c.out = &t
	}
	if r.ValidFrom != nil {
		d, err := parseDateField("valid_from", *r.ValidFrom)
		if err != nil {
			return p, err
		}
		p.ValidFrom = &d
	}
	if r.ValidTo != nil {
		d, err := parseDateField("valid_to", *r.ValidTo)
		if err != nil {
			return p, err
		}
		p.ValidTo = &d
	}
	if r.ConsultationMode != nil {
		m := ConsultationMode(*r.ConsultationMode)
		p.ConsultationMode = &m
	}
	if r.Status != nil {
		st := ScheduleStatus(*r.Status)
		p.Status = &st
	}
	return p, nil
}

type leaveRequest struct {
	DoctorID  string `json:"doctor_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Note      string `json:"note" validate:"max=500"`
	StartTime string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   string `json:"end_time" validate:"omitempty,datetime=15:04"`
}

type bookingRequest struct {
	DoctorID   string `json:"doctor_id" validate:"required"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Time       string `json:"time" validate:"required,datetime=15:04"`
	PatientRef string `json:"patient_ref" validate:"required"`
}

// -- Doctor Handlers --

func (h *Handler) ListDoctors(c echo.Context) error {
	if h.doctors == nil {
		return c.JSON(http.StatusOK, pagination.Slice([]*directory.Doctor{}, pagination.FromContext(c)))
	}
	items, err := h.doctors.ListDoctors(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Slice(items, pagination.FromContext(c)))
}

// -- Schedule Handlers --

func (h *Handler) CreateSchedule(c echo.Context) error {
	var req scheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	s, err := req.toSchedule()
	if err != nil {
		return httpError(err)
	}
	created, err := h.editor.Create(c.Request().Context(), s)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.editor.GetByID(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) ListDoctorSchedules(c echo.Context) error {
	items, err := h.editor.Get(c.Request().Context(), c.Param("doctor_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Slice(items, pagination.FromContext(c)))
}

func (h *Handler) ListDepartmentSchedules(c echo.Context) error {
	items, err := h.editor.ListByDepartment(c.Request().Context(), c.Param("department_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Slice(items, pagination.FromContext(c)))
}

func (h *Handler) UpdateSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req schedulePatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	patch, err := req.toPatch()
	if err != nil {
		return httpError(err)
	}
	s, err := h.editor.Update(c.Request().Context(), id, patch)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) DeleteSchedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.editor.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Leave Handlers --

func (h *Handler) CreateLeave(c echo.Context) error {
	var req leaveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		return httpError(err)
	}
	if (req.StartTime == "") != (req.EndTime == "") {
		return httpError(invalid("end_time", "start_time and end_time must be set together"))
	}
	ctx := c.Request().Context()
	var l *Leave
	if req.StartTime == "" {
		l, err = h.leaves.Add(ctx, req.DoctorID, date, req.Note)
	} else {
		var w Window
		if w.Start, err = parseClockField("start_time", req.StartTime); err != nil {
			return httpError(err)
		}
		if w.End, err = parseClockField("end_time", req.EndTime); err != nil {
			return httpError(err)
		}
		l, err = h.leaves.AddPartial(ctx, req.DoctorID, date, req.Note, w)
	}
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) ListLeaves(c echo.Context) error {
	items, err := h.leaves.ListForDoctor(c.Request().Context(), c.Param("doctor_id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.Slice(items, pagination.FromContext(c)))
}

func (h *Handler) DeleteLeave(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.leaves.Remove(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Availability & Booking Handlers --

func (h *Handler) GetAvailability(c echo.Context) error {
	date, err := parseDateField("date", c.QueryParam("date"))
	if err != nil {
		return httpError(err)
	}
	avail, err := h.avail.GetAvailability(c.Request().Context(), c.Param("doctor_id"), date)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, avail)
}

func (h *Handler) ListBookings(c echo.Context) error {
	date, err := parseDateField("date", c.QueryParam("date"))
	if err != nil {
		return httpError(err)
	}
	items, err := h.ledger.BookingsFor(c.Request().Context(), c.Param("doctor_id"), date)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Booking{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateBooking(c echo.Context) error {
	var req bookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := parseDateField("date", req.Date)
	if err != nil {
		return httpError(err)
	}
	at, err := parseClockField("time", req.Time)
	if err != nil {
		return httpError(err)
	}
	res, err := h.avail.ConfirmBooking(c.Request().Context(), req.DoctorID, date, at, req.PatientRef)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *Handler) CancelBooking(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.ledger.Cancel(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// httpError maps domain failures onto status codes. Store errors pass through as 500.
func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, ve)
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrCapacityExhausted), errors.Is(err, ErrSlotBusy):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}

func parseWeekdays(in []string) ([]Weekday, error) {
	var out []Weekday
	for _, s := range in {
		d, err := ParseWeekday(s)
		if err != nil {
			return nil, invalid("working_days", "%v", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseClockField(field, s string) (ClockTime, error) {
	t, err := ParseClockTime(s)
	if err != nil {
		return 0, invalid(field, "%v", err)
	}
	return t, nil
}

func optionalClock(field, s string) (*ClockTime, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseClockField(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDateField(field, s string) (Date, error) {
	if s == "" {
		return Date{}, invalid(field, "%s is required", field)
	}
	d, err := ParseDate(s)
	if err != nil {
		return Date{}, invalid(field, "%v", err)
	}
	return d, nil
}
