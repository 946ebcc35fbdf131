package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
)

// Logical keys under which each collection is stored.
const (
	BookingsKey   = "clinic:bookings"
	EncountersKey = "clinic:encounters"
)

// Collection is an ordered set of JSON records keyed by id, read back whole.
type Collection[T any] interface {
	All(ctx context.Context) ([]T, error)
	Put(ctx context.Context, id uuid.UUID, v T) error
	Remove(ctx context.Context, id uuid.UUID) error
}

// KVRepository implements both repositories over two collections. Every
// operation holds one mutex, so each record write is atomic within the process.
type KVRepository struct {
	mu         sync.Mutex
	bookings   Collection[Booking]
	encounters Collection[Encounter]
}

func NewKVRepository(bookings Collection[Booking], encounters Collection[Encounter]) *KVRepository {
	return &KVRepository{bookings: bookings, encounters: encounters}
}

// NewMemoryRepository returns a KVRepository backed by process memory.
func NewMemoryRepository() *KVRepository {
	return NewKVRepository(NewMemoryCollection[Booking](), NewMemoryCollection[Encounter]())
}

// Bookings

func (r *KVRepository) InsertBooking(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return r.bookings.Put(ctx, b.ID, *b)
}

func (r *KVRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findBooking(ctx, id)
}

func (r *KVRepository) findBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	all, err := r.bookings.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, ErrBookingNotFound
}

func (r *KVRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus, at time.Time) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.findBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != from {
		return nil, transitionf("booking %s is %s, expected %s", id, b.Status, from)
	}
	b.Status = to
	b.UpdatedAt = at
	if err := r.bookings.Put(ctx, b.ID, *b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *KVRepository) ListBookingsForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.bookings.All(ctx)
	if err != nil {
		return nil, err
	}
	var result []Booking
	for _, b := range all {
		if b.PractitionerID == practitionerID && b.Date == date {
			result = append(result, b)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Time < result[j].Time })
	return result, nil
}

func (r *KVRepository) ListBookingsForPatient(ctx context.Context, patientID uuid.UUID) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.bookings.All(ctx)
	if err != nil {
		return nil, err
	}
	var result []Booking
	for _, b := range all {
		if b.PatientID == patientID {
			result = append(result, b)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Time < result[j].Time
	})
	return result, nil
}

// Encounters

func (r *KVRepository) InsertEncounter(ctx context.Context, e *Encounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.BookingID != nil {
		existing, err := r.findActiveForBooking(ctx, *e.BookingID)
		if err != nil && !errors.Is(err, ErrEncounterNotFound) {
			return err
		}
		if existing != nil {
			return ErrDuplicateEncounter
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Persisted = true
	return r.encounters.Put(ctx, e.ID, *e)
}

func (r *KVRepository) GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findEncounter(ctx, id)
}

func (r *KVRepository) findEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	all, err := r.loadEncounters(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, ErrEncounterNotFound
}

func (r *KVRepository) UpdateEncounter(ctx context.Context, e *Encounter, from EncounterStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, err := r.findEncounter(ctx, e.ID)
	if err != nil {
		return err
	}
	if stored.Status != from {
		return transitionf("encounter %s is %s, expected %s", e.ID, stored.Status, from)
	}
	e.Persisted = true
	return r.encounters.Put(ctx, e.ID, *e)
}

func (r *KVRepository) FindActiveEncounterForBooking(ctx context.Context, bookingID uuid.UUID) (*Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findActiveForBooking(ctx, bookingID)
}

func (r *KVRepository) findActiveForBooking(ctx context.Context, bookingID uuid.UUID) (*Encounter, error) {
	all, err := r.loadEncounters(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].BookingID != nil && *all[i].BookingID == bookingID && all[i].Active() {
			return &all[i], nil
		}
	}
	return nil, ErrEncounterNotFound
}

func (r *KVRepository) ListEncountersForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterEncounters(ctx, func(e *Encounter) bool {
		return e.PractitionerID == practitionerID && e.Date == date
	})
}

func (r *KVRepository) ListEncountersForPatient(ctx context.Context, patientID uuid.UUID) ([]Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterEncounters(ctx, func(e *Encounter) bool { return e.PatientID == patientID })
}

func (r *KVRepository) ListSeedEncounters(ctx context.Context) ([]Encounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterEncounters(ctx, func(e *Encounter) bool { return e.Seed })
}

func (r *KVRepository) DeleteEncounter(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encounters.Remove(ctx, id)
}

func (r *KVRepository) loadEncounters(ctx context.Context) ([]Encounter, error) {
	all, err := r.encounters.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		all[i].Persisted = true
	}
	return all, nil
}

func (r *KVRepository) filterEncounters(ctx context.Context, keep func(*Encounter) bool) ([]Encounter, error) {
	all, err := r.loadEncounters(ctx)
	if err != nil {
		return nil, err
	}
	var result []Encounter
	for i := range all {
		if keep(&all[i]) {
			result = append(result, all[i])
		}
	}
	sortEncounters(result)
	return result, nil
}

func sortEncounters(list []Encounter) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Date != list[j].Date {
			return list[i].Date < list[j].Date
		}
		return list[i].ScheduledTime < list[j].ScheduledTime
	})
}

// MemoryCollection keeps records as JSON in insertion order, so readers
// always get independent copies.
type MemoryCollection[T any] struct {
	mu    sync.RWMutex
	order []uuid.UUID
	data  map[uuid.UUID][]byte
}

func NewMemoryCollection[T any]() *MemoryCollection[T] {
	return &MemoryCollection[T]{data: make(map[uuid.UUID][]byte)}
}

func (c *MemoryCollection[T]) All(_ context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		var v T
		if err := json.Unmarshal(c.data[id], &v); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", id, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *MemoryCollection[T]) Put(_ context.Context, id uuid.UUID, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[id]; !ok {
		c.order = append(c.order, id)
	}
	c.data[id] = data
	return nil
}

func (c *MemoryCollection[T]) Remove(_ context.Context, id uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[id]; !ok {
		return nil
	}
	delete(c.data, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}
