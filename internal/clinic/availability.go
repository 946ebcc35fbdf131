package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
	"github.com/hackgods/clinic-encounter-engine/internal/schedule"
)

// Resolver computes the open slots of a practitioner on a day. It has no side
// effects: with no booking change in between, two calls return the same slots.
type Resolver struct {
	schedules schedule.Provider
	bookings  BookingRepository
	logger    zerolog.Logger
}

func NewResolver(schedules schedule.Provider, bookings BookingRepository, logger zerolog.Logger) *Resolver {
	return &Resolver{
		schedules: schedules,
		bookings:  bookings,
		logger:    logger.With().Str("component", "availability").Logger(),
	}
}

// AvailableSlots returns the schedule's slots for date minus every slot held
// by a non-canceled booking, in ascending time order. An unknown practitioner
// or a malformed date yields no slots rather than an error.
func (r *Resolver) AvailableSlots(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]civil.TimeOfDay, error) {
	if !date.Valid() {
		return []civil.TimeOfDay{}, nil
	}

	sch, err := r.schedules.GetSchedule(ctx, practitionerID)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			r.logger.Debug().Str("practitioner_id", practitionerID.String()).Msg("no schedule, no availability")
			return []civil.TimeOfDay{}, nil
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	slots := sch.SlotsOn(date)
	if len(slots) == 0 {
		return []civil.TimeOfDay{}, nil
	}

	booked, err := r.bookings.ListBookingsForDay(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	occupied := make(map[civil.TimeOfDay]bool, len(booked))
	for i := range booked {
		if booked[i].Occupies() {
			occupied[booked[i].Time] = true
		}
	}

	free := make([]civil.TimeOfDay, 0, len(slots))
	for _, s := range slots {
		if !occupied[s] {
			free = append(free, s)
		}
	}
	return free, nil
}

// IsAvailable reports whether tod is currently bookable.
func (r *Resolver) IsAvailable(ctx context.Context, practitionerID uuid.UUID, date civil.Date, tod civil.TimeOfDay) (bool, error) {
	free, err := r.AvailableSlots(ctx, practitionerID, date)
	if err != nil {
		return false, err
	}
	for _, s := range free {
		if s == tod {
			return true, nil
		}
	}
	return false, nil
}
