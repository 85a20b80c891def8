// Package store opens the optional backends a feed cursor can live in.
// Both are off unless configured; a zero Store works and holds nothing
package store

import (
	"context"

	"github.com/hashicorp/go-multierror"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
)

// Store carries whichever backends were opened
type Store struct {
	Log logger.Logger

	// PG is nil unless SERVICE_PGSQL_DBURL was set
	PG SQL

	// RDS is nil unless SERVICE_REDIS_ADDR was set
	RDS KV
}

// Row is a single result row
type Row interface {
	Scan(dest ...any) error
}

// CommandTag reports what a write touched
type CommandTag interface {
	RowsAffected() int64
}

// SQL is the statement surface the cursor repositories use
type SQL interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// KV stores string values under string keys. A missing key is ok=false, not an error
type KV interface {
	Get(ctx context.Context, key string) (val string, ok bool, err error)
	Set(ctx context.Context, key, val string) error
	Close() error
}

// Pinger reports readiness
type Pinger interface{ Ping(context.Context) error }

// Option adjusts a Store before any backend is opened
type Option func(*Store)

// WithLogger routes tracer and ping-retry logs through log
func WithLogger(log logger.Logger) Option { return func(s *Store) { s.Log = log } }

// Open connects the backends enabled in cfg and leaves the rest nil
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		o(s)
	}
	s.Log = s.Log.With().Str("app", cfg.AppName).Logger()

	if cfg.PG.Enabled {
		sql, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = sql
	}
	if cfg.RDS.Enabled {
		kv, err := openRedis(ctx, cfg, s)
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.RDS = kv
	}
	return s, nil
}

// Guard pings every opened backend and reports all failures together
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return perr.Newf(perr.ErrorCodeUnavailable, "nil store")
	}
	var merr *multierror.Error
	if p, ok := s.PG.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			merr = multierror.Append(merr, perr.Wrap(err, perr.ErrorCodeUnavailable, "pg"))
		}
	}
	if p, ok := s.RDS.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			merr = multierror.Append(merr, perr.Wrap(err, perr.ErrorCodeUnavailable, "redis"))
		}
	}
	return merr.ErrorOrNil()
}

// Close releases every opened backend; nil backends are skipped
func (s *Store) Close(context.Context) error {
	var merr *multierror.Error
	if s.RDS != nil {
		if err := s.RDS.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	return merr.ErrorOrNil()
}
