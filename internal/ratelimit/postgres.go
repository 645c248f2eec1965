package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres persists counters in the rate_limits table so the window survives
// restarts and is shared between instances.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool: pool,
		now:  time.Now,
	}
}

func (p *Postgres) Consume(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	const op = "ratelimit.Postgres.Consume"

	now := p.now()
	windowStart := now.Add(-window)

	_, err := p.pool.Exec(ctx,
		`DELETE FROM rate_limits WHERE key = $1 AND window_start < $2`,
		key, windowStart)
	if err != nil {
		return false, fmt.Errorf("%s: failed to purge stale window: %w", op, err)
	}

	// The allow decision uses the post-increment count, so two concurrent
	// consumers cannot both pass on the last slot.
	const query = `
		INSERT INTO rate_limits (key, window_start, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (key) DO UPDATE SET count = rate_limits.count + 1, window_start = EXCLUDED.window_start
		RETURNING count;
	`

	var count int
	if err := p.pool.QueryRow(ctx, query, key, now).Scan(&count); err != nil {
		return false, fmt.Errorf("%s: failed to increment: %w", op, err)
	}

	return count <= limit, nil
}
