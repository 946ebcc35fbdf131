// Package schedule supplies each practitioner's offerable hours per day of week.
// The clinic core only reads it.
package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
)

var ErrScheduleNotFound = errors.New("schedule not found")

// Schedule maps a weekday to that day's slots in ascending order.
type Schedule map[time.Weekday][]civil.TimeOfDay

// SlotsOn returns a copy of the slots offered on date's weekday.
func (s Schedule) SlotsOn(date civil.Date) []civil.TimeOfDay {
	wd := date.Weekday()
	if wd < 0 {
		return nil
	}
	slots := s[wd]
	out := make([]civil.TimeOfDay, len(slots))
	copy(out, slots)
	return out
}

// Normalize sorts every day's slots and drops duplicates and malformed entries.
func (s Schedule) Normalize() Schedule {
	out := make(Schedule, len(s))
	for wd, slots := range s {
		seen := make(map[civil.TimeOfDay]bool, len(slots))
		var clean []civil.TimeOfDay
		for _, t := range slots {
			if !t.Valid() || seen[t] {
				continue
			}
			seen[t] = true
			clean = append(clean, t)
		}
		sort.Slice(clean, func(i, j int) bool { return clean[i] < clean[j] })
		out[wd] = clean
	}
	return out
}

type Provider interface {
	GetSchedule(ctx context.Context, practitionerID uuid.UUID) (Schedule, error)
}

// Static is an in-memory Provider.
type Static struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]Schedule
}

func NewStatic() *Static {
	return &Static{schedules: make(map[uuid.UUID]Schedule)}
}

func (s *Static) Set(practitionerID uuid.UUID, sch Schedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[practitionerID] = sch.Normalize()
}

func (s *Static) GetSchedule(_ context.Context, practitionerID uuid.UUID) (Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.schedules[practitionerID]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return sch, nil
}

// Generate builds a schedule from opening hours and a slot step, for the given weekdays.
func Generate(days []time.Weekday, open, until civil.TimeOfDay, step time.Duration) Schedule {
	sch := make(Schedule, len(days))
	start, end := open.Minutes(), until.Minutes()
	stepMin := int(step / time.Minute)
	if start < 0 || end < 0 || stepMin <= 0 {
		return sch
	}
	for _, wd := range days {
		var slots []civil.TimeOfDay
		for m := start; m+stepMin <= end; m += stepMin {
			t := time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC)
			slots = append(slots, civil.TimeOfDayOf(t))
		}
		sch[wd] = slots
	}
	return sch
}
