package clinic

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrValidation        = errors.New("validation failed")
)

var (
	ErrBookingNotFound   = fmt.Errorf("booking %w", ErrNotFound)
	ErrEncounterNotFound = fmt.Errorf("encounter %w", ErrNotFound)
	// ErrDuplicateEncounter means the booking already has a non-canceled encounter.
	ErrDuplicateEncounter = fmt.Errorf("%w: booking already has an active encounter", ErrInvalidTransition)
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func transitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

// RescheduleError is returned when the old booking was canceled but the
// replacement could not be created. The caller decides how to compensate.
type RescheduleError struct {
	Canceled *Booking
	Err      error
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("booking %s canceled but replacement failed: %v", e.Canceled.ID, e.Err)
}

func (e *RescheduleError) Unwrap() error { return e.Err }
