package validation

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	DoctorID string   `json:"doctor_id" validate:"required"`
	Start    string   `json:"start_time" validate:"required,datetime=15:04"`
	Date     string   `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Days     []string `json:"working_days" validate:"dive,weekday"`
	Mode     string   `json:"consultation_mode" validate:"omitempty,oneof=in-person online both"`
	Duration int      `json:"slot_duration_minutes" validate:"gt=0"`
}

func fieldErr(t *testing.T, err error) FieldError {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected *echo.HTTPError, got %T", err)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	fe, ok := he.Message.(FieldError)
	require.True(t, ok, "expected FieldError message, got %T", he.Message)
	return fe
}

func TestValidate_OK(t *testing.T) {
	v := New()
	err := v.Validate(&sample{DoctorID: "d1", Start: "09:00", Date: "2025-03-03", Days: []string{"Mon", "tuesday"}, Duration: 15})
	assert.NoError(t, err)
}

func TestValidate_Required(t *testing.T) {
	fe := fieldErr(t, New().Validate(&sample{Start: "09:00", Duration: 15}))
	assert.Equal(t, "doctor_id", fe.Field)
	assert.Equal(t, "doctor_id is required", fe.Message)
}

func TestValidate_TimeFormat(t *testing.T) {
	fe := fieldErr(t, New().Validate(&sample{DoctorID: "d1", Start: "9am", Duration: 15}))
	assert.Equal(t, "start_time", fe.Field)
	assert.Equal(t, "start_time must be a HH:MM time", fe.Message)
}

func TestValidate_Weekday(t *testing.T) {
	fe := fieldErr(t, New().Validate(&sample{DoctorID: "d1", Start: "09:00", Days: []string{"monday", "funday"}, Duration: 15}))
	assert.Equal(t, "working_days[1]", fe.Field)
}

func TestValidate_OneOf(t *testing.T) {
	fe := fieldErr(t, New().Validate(&sample{DoctorID: "d1", Start: "09:00", Mode: "phone", Duration: 15}))
	assert.Equal(t, "consultation_mode must be one of in-person, online, both", fe.Message)
}

func TestValidate_GreaterThan(t *testing.T) {
	fe := fieldErr(t, New().Validate(&sample{DoctorID: "d1", Start: "09:00"}))
	assert.Equal(t, "slot_duration_minutes", fe.Field)
	assert.Equal(t, "slot_duration_minutes must be greater than 0", fe.Message)
}
