package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/rs/zerolog"

	"gourcewall/internal/platform/config"
	perr "gourcewall/internal/platform/errors"
)

func TestOpen_PGEnabled_BadURL_BubblesError(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), Config{PG: PGConfig{Enabled: true, URL: "://bad"}})
	if err == nil {
		t.Fatalf("expected Open error for bad PG URL, got store=%#v", s)
	}
	if s != nil {
		t.Fatalf("expected nil store on error, got %#v", s)
	}
}

func TestOpen_EmptyConfig_WithLogger(t *testing.T) {
	t.Parallel()

	var zl zerolog.Logger
	s, err := Open(context.Background(), Config{}, WithLogger(zl))
	if err != nil || s == nil {
		t.Fatalf("Open = %v, %v", s, err)
	}
	if s.PG != nil || s.RDS != nil {
		t.Fatalf("unexpected seams set PG=%T RDS=%T", s.PG, s.RDS)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close on empty store returned error: %v", err)
	}
}

func TestOpen_Redis_Miniredis(t *testing.T) {
	db, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	s, err := Open(ctx, Config{RDS: RedisConfig{Enabled: true, Addr: db.Addr()}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close(ctx) }()

	if err := s.Guard(ctx); err != nil {
		t.Fatalf("Guard: %v", err)
	}

	if _, ok, err := s.RDS.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get missing = ok=%v err=%v", ok, err)
	}
	if err := s.RDS.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, ok, err := s.RDS.Get(ctx, "k"); !ok || err != nil || v != "v" {
		t.Fatalf("Get = %q ok=%v err=%v", v, ok, err)
	}
	if got, _ := db.Get("k"); got != "v" {
		t.Fatalf("value not stored in redis, got %q", got)
	}
}

func TestOpen_Redis_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{RDS: RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}})
	if err == nil || !strings.Contains(err.Error(), "redis ping") || !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("expected redis ping error, got %v", err)
	}
}

func TestRedisKV_CanceledContext(t *testing.T) {
	db, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer db.Close()

	kv := NewRedisKV(redis.NewClient(&redis.Options{Addr: db.Addr()}))
	defer func() { _ = kv.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := kv.Set(ctx, "k", "v"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, _, err := kv.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("SERVICE_PGSQL_DBURL", "postgres://u:p@h:5432/db")
	t.Setenv("SERVICE_REDIS_ADDR", "")
	t.Setenv("SERVICE_REDIS_DB", "3")
	t.Setenv("SERVICE_PGSQL_PING_TIMEOUT", "1s")

	c := FromConfig(config.New(), "gourcewall")
	if !c.PG.Enabled || c.PG.URL != "postgres://u:p@h:5432/db" {
		t.Fatalf("pg config = %+v", c.PG)
	}
	if c.PG.PingTimeout != time.Second || c.PG.PingAttempts != 0 {
		t.Fatalf("ping settings = %d attempts, %v", c.PG.PingAttempts, c.PG.PingTimeout)
	}
	if c.RDS.Enabled {
		t.Fatalf("redis should be disabled without an address")
	}
	if c.RDS.DB != 3 || c.AppName != "gourcewall" {
		t.Fatalf("unexpected config %+v", c)
	}
}

type pingSQL struct {
	rowSQL
	err error
}

func (p *pingSQL) Ping(context.Context) error { return p.err }

type pingKV struct{ err error }

func (k *pingKV) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (k *pingKV) Set(context.Context, string, string) error        { return nil }
func (k *pingKV) Close() error                                     { return nil }
func (k *pingKV) Ping(context.Context) error                       { return k.err }

func TestGuard(t *testing.T) {
	t.Parallel()

	var nilStore *Store
	if err := nilStore.Guard(context.Background()); err == nil {
		t.Fatalf("nil store passed Guard")
	}

	cases := []struct {
		name  string
		s     *Store
		wants []string
	}{
		{"empty", &Store{}, nil},
		{"sql without ping", &Store{PG: &rowSQL{}}, nil},
		{"healthy", &Store{PG: &pingSQL{}, RDS: &pingKV{}}, nil},
		{"pg down", &Store{PG: &pingSQL{err: errors.New("refused")}}, []string{"pg"}},
		{"both down", &Store{PG: &pingSQL{err: errors.New("refused")}, RDS: &pingKV{err: errors.New("loading")}}, []string{"pg", "redis"}},
	}
	for _, tc := range cases {
		err := tc.s.Guard(context.Background())
		if len(tc.wants) == 0 {
			if err != nil {
				t.Errorf("%s: Guard = %v", tc.name, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("%s: Guard passed", tc.name)
			continue
		}
		for _, w := range tc.wants {
			if !strings.Contains(err.Error(), w) {
				t.Errorf("%s: %q missing %q", tc.name, err, w)
			}
		}
	}
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	s, err := Open(context.Background(), Config{AppName: "gourcewall"}, WithLogger(zerolog.New(&buf)))
	if err != nil {
		t.Fatal(err)
	}
	s.Log.Info().Msg("hello")
	if !strings.Contains(buf.String(), `"app":"gourcewall"`) {
		t.Fatalf("log line = %q", buf.String())
	}
}
