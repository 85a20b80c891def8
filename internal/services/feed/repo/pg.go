package repo

import (
	"context"
	"errors"
	"time"

	"gourcewall/internal/modkit/repokit"
	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/store"
	"gourcewall/internal/services/feed/domain"

	"github.com/jackc/pgx/v5"
)

// PGCursor is a CursorStore backed by the feed_cursor table
type PGCursor interface {
	domain.CursorStore
	EnsureSchema(ctx context.Context) error
}

type (
	// PG is a Postgres cursor repository for one named cursor
	PG      struct{ name string }
	queries struct {
		q    repokit.Queryer
		name string
	}
)

// NewPG constructs a Postgres cursor binder for name
func NewPG(name string) repokit.Binder[PGCursor] { return PG{name: name} }

// Bind binds a Queryer to a Postgres implementation of PGCursor
func (p PG) Bind(q repokit.Queryer) PGCursor { return &queries{q: q, name: p.name} }

// EnsureSchema creates the cursor table when missing
func (r *queries) EnsureSchema(ctx context.Context) error {
	const sql = `
		CREATE TABLE IF NOT EXISTS feed_cursor (
			name        text PRIMARY KEY,
			observed_at timestamptz NOT NULL
		)
	`
	if _, err := r.q.Exec(ctx, sql); err != nil {
		return perr.FromPostgres(err, "feed_cursor ensure schema")
	}
	return nil
}

// Load reads the named cursor; a missing row is the zero time
func (r *queries) Load(ctx context.Context) (time.Time, error) {
	at, err := store.Scalar[time.Time](ctx, r.q, `SELECT observed_at FROM feed_cursor WHERE name = $1`, r.name)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, perr.FromPostgres(err, "feed_cursor load")
	}
	return at.UTC(), nil
}

// Save upserts the named cursor and never moves it backwards
func (r *queries) Save(ctx context.Context, at time.Time) error {
	const sql = `
		INSERT INTO feed_cursor (name, observed_at)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE
		SET observed_at = GREATEST(feed_cursor.observed_at, EXCLUDED.observed_at)
	`
	if _, err := r.q.Exec(ctx, sql, r.name, at.UTC()); err != nil {
		return perr.FromPostgres(err, "feed_cursor save")
	}
	return nil
}
