package domain

import (
	"context"
	"time"
)

// SourcePort returns newly observed pushes, oldest first, at most one per key
type SourcePort interface {
	Poll(ctx context.Context) ([]PushEvent, error)
}

// CursorStore keeps the watermark below which no event is re-delivered
// Load on an empty store returns the zero time
type CursorStore interface {
	Load(ctx context.Context) (time.Time, error)
	Save(ctx context.Context, at time.Time) error
}
