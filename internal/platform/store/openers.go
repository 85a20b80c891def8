package store

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-redis/redis"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/store/pg"
)

// openPG opens the pool and waits for postgres to answer, backing off between pings
func openPG(ctx context.Context, cfg Config, s *Store) (SQL, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.PG.URL,
		MaxConns: cfg.PG.MaxConns,
		SlowMs:   cfg.PG.SlowQueryMs,
		AppName:  cfg.AppName,
	}, tracer)
	if err != nil {
		return nil, perr.FromPostgres(err, "pg open")
	}

	attempts := cfg.PG.PingAttempts
	if attempts <= 0 {
		attempts = 20
	}
	timeout := cfg.PG.PingTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	a := newPGAdapter(p)
	err = retry.Do(
		func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return a.Ping(pctx)
		},
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(150*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.Log.Debug().Uint("attempt", n+1).Err(err).Msg("postgres not ready")
		}),
	)
	if err != nil {
		p.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "postgres ping after %d attempts", attempts)
	}
	s.Log.Debug().Int32("max_conns", cfg.PG.MaxConns).Msg("postgres connected")
	return a, nil
}

// openRedis dials redis and checks it answers PING
func openRedis(ctx context.Context, cfg Config, s *Store) (KV, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RDS.Addr, DB: cfg.RDS.DB})
	a := newRedisAdapter(client)
	if err := a.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis ping %s", cfg.RDS.Addr)
	}
	s.Log.Debug().Str("addr", cfg.RDS.Addr).Int("db", cfg.RDS.DB).Msg("redis connected")
	return a, nil
}
