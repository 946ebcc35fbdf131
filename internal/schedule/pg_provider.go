package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
)

type PgProvider struct {
	pool *pgxpool.Pool
}

func NewPgProvider(pool *pgxpool.Pool) *PgProvider {
	return &PgProvider{pool: pool}
}

func (p *PgProvider) GetSchedule(ctx context.Context, practitionerID uuid.UUID) (Schedule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT weekday, slot
		FROM practitioner_schedules
		WHERE practitioner_id = $1
		ORDER BY weekday, slot
	`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	defer rows.Close()

	sch := make(Schedule)
	for rows.Next() {
		var wd int16
		var raw string
		if err := rows.Scan(&wd, &raw); err != nil {
			return nil, err
		}
		slot, err := civil.ParseTimeOfDay(raw)
		if err != nil {
			continue
		}
		sch[time.Weekday(wd)] = append(sch[time.Weekday(wd)], slot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sch) == 0 {
		return nil, ErrScheduleNotFound
	}
	return sch.Normalize(), nil
}

// Replace overwrites a practitioner's schedule in one transaction.
func (p *PgProvider) Replace(ctx context.Context, practitionerID uuid.UUID, sch Schedule) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM practitioner_schedules WHERE practitioner_id = $1`, practitionerID); err != nil {
		return fmt.Errorf("clear schedule: %w", err)
	}
	for wd, slots := range sch.Normalize() {
		for _, slot := range slots {
			_, err := tx.Exec(ctx, `
				INSERT INTO practitioner_schedules (practitioner_id, weekday, slot)
				VALUES ($1, $2, $3)
			`, practitionerID, int16(wd), string(slot))
			if err != nil {
				return fmt.Errorf("insert schedule slot: %w", err)
			}
		}
	}
	return tx.Commit(ctx)
}
