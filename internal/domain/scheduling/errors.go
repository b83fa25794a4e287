package scheduling

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed or invariant-violating input for a single field.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a reference to a doctor, schedule, leave or booking that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func notFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ErrCapacityExhausted is returned only when strict capacity enforcement is enabled.
var ErrCapacityExhausted = errors.New("slot capacity exhausted")

// ErrSlotBusy means another confirmation for the same slot held the lock too long.
var ErrSlotBusy = errors.New("slot is being booked by another request")

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
