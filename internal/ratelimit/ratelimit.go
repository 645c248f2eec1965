// Package ratelimit provides keyed counter windows with interchangeable
// backends: a process-local map, a Postgres-persisted counter, and a shared
// Redis counter. The backend is chosen at startup and injected into the
// engine.
package ratelimit

import (
	"context"
	"time"
)

// Limiter reports whether one more action is allowed for key within the
// window. The decision is based on the post-increment count, so concurrent
// callers cannot both squeeze through the last slot.
type Limiter interface {
	Consume(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
