// Package events carries lifecycle notifications out of the clinic core.
// Delivery is fire-and-forget: a failed publish is logged and dropped.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	BookingCreated     = "booking-created"
	BookingStarted     = "booking-started"
	BookingCompleted   = "booking-completed"
	BookingCanceled    = "booking-canceled"
	EncounterStarted   = "encounter-started"
	EncounterCompleted = "encounter-completed"
	EncounterCanceled  = "encounter-canceled"
	SeedRegenerated    = "seed-regenerated"
)

type Event struct {
	Name       string         `json:"name"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func (e Event) MarshalPayload() []byte {
	if len(e.Payload) == 0 {
		return []byte("{}")
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// Sink is what the core emits into. It never reports failure back.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Publisher delivers one event to one destination.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Dispatcher fans an event out to every publisher once, logging failures.
type Dispatcher struct {
	publishers []namedPublisher
	logger     zerolog.Logger
}

type namedPublisher struct {
	name string
	pub  Publisher
}

func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger.With().Str("component", "events").Logger()}
}

// Add registers a publisher under a name used in failure logs.
func (d *Dispatcher) Add(name string, p Publisher) *Dispatcher {
	d.publishers = append(d.publishers, namedPublisher{name: name, pub: p})
	return d
}

func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	for _, p := range d.publishers {
		if err := p.pub.Publish(ctx, ev); err != nil {
			d.logger.Error().Err(err).
				Str("publisher", p.name).
				Str("event", ev.Name).
				Str("entity_id", ev.EntityID.String()).
				Msg("event delivery failed")
		}
	}
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}

// Nop discards every event.
func Nop() Sink { return nopSink{} }

// LogPublisher writes events to a zerolog logger.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.Info().
		Str("event", ev.Name).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID.String()).
		RawJSON("payload", ev.MarshalPayload()).
		Time("occurred_at", ev.OccurredAt).
		Msg("lifecycle event")
	return nil
}

// Recorder keeps emitted events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *Recorder) Publish(ctx context.Context, ev Event) error {
	r.Emit(ctx, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the emitted event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Name
	}
	return out
}
