package schedule

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Cached keeps recently used schedules in an LRU in front of another Provider.
// Schedules are reference data, so entries live until evicted or invalidated.
type Cached struct {
	next   Provider
	cache  *lru.Cache[uuid.UUID, Schedule]
	logger zerolog.Logger
}

func NewCached(next Provider, size int, logger zerolog.Logger) (*Cached, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[uuid.UUID, Schedule](size)
	if err != nil {
		return nil, err
	}
	return &Cached{
		next:   next,
		cache:  cache,
		logger: logger.With().Str("component", "schedule_cache").Logger(),
	}, nil
}

func (c *Cached) GetSchedule(ctx context.Context, practitionerID uuid.UUID) (Schedule, error) {
	if sch, ok := c.cache.Get(practitionerID); ok {
		return sch, nil
	}
	c.logger.Debug().Str("practitioner_id", practitionerID.String()).Msg("schedule cache miss")

	sch, err := c.next.GetSchedule(ctx, practitionerID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(practitionerID, sch)
	return sch, nil
}

func (c *Cached) Invalidate(practitionerID uuid.UUID) {
	c.cache.Remove(practitionerID)
}

func (c *Cached) Purge() {
	c.cache.Purge()
}
