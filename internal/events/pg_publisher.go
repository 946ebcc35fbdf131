package events

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgPublisher appends events to the event_logs table.
type PgPublisher struct {
	pool *pgxpool.Pool
}

func NewPgPublisher(pool *pgxpool.Pool) *PgPublisher {
	return &PgPublisher{pool: pool}
}

func (p *PgPublisher) Publish(ctx context.Context, ev Event) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.Name, ev.EntityType, ev.EntityID, ev.MarshalPayload(), ev.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
