package store

import (
	"context"
	"time"

	"gourcewall/internal/platform/store/pg"
)

// pgAdapter exposes pg.PG as SQL and traces each statement when a tracer is set
type pgAdapter struct{ p *pg.PG }

func newPGAdapter(p *pg.PG) *pgAdapter { return &pgAdapter{p: p} }

func (a *pgAdapter) Ping(ctx context.Context) error {
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error {
	a.p.Close()
	return nil
}

func (a *pgAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := a.p.Pool.Exec(ctx, sql, args...)
	a.p.Trace(ctx, sql, args, start, err)
	return ct, err
}

// QueryRow traces once Scan has run so the scan error is part of the event
func (a *pgAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := a.p.Pool.QueryRow(ctx, sql, args...)
	return tracedRow{scan: r.Scan, done: func(err error) { a.p.Trace(ctx, sql, args, start, err) }}
}

type tracedRow struct {
	scan func(...any) error
	done func(error)
}

func (r tracedRow) Scan(dst ...any) error {
	err := r.scan(dst...)
	r.done(err)
	return err
}
