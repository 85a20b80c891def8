package repo

import (
	"context"
	"testing"
	"time"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/store"
	kit "gourcewall/internal/platform/testkit"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
)

func newMiniredisCursor(t *testing.T, prefix string) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	db, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(db.Close)
	kv := store.NewRedisKV(redis.NewClient(&redis.Options{Addr: db.Addr()}))
	t.Cleanup(func() { _ = kv.Close() })
	return NewRedis(kv, prefix), db
}

func TestRedis_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cur, db := newMiniredisCursor(t, "gourcewall:default")

	if cur.Key() != "gourcewall:default:last_update" {
		t.Fatalf("Key = %q", cur.Key())
	}
	if at, err := cur.Load(ctx); err != nil || !at.IsZero() {
		t.Fatalf("empty Load = %v, %v", at, err)
	}

	at := time.Date(2026, 5, 1, 12, 0, 0, 123000000, time.FixedZone("CEST", 2*3600))
	if err := cur.Save(ctx, at); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, _ := db.Get("gourcewall:default:last_update")
	if raw != "2026-05-01T10:00:00.123Z" {
		t.Fatalf("stored %q", raw)
	}
	got, err := cur.Load(ctx)
	if err != nil || !got.Equal(at) {
		t.Fatalf("Load = %v, %v want %v", got, err, at)
	}
}

func TestRedis_CorruptValue(t *testing.T) {
	ctx := context.Background()
	cur, db := newMiniredisCursor(t, "wall")
	_ = db.Set("wall:last_update", "yesterday")

	if _, err := cur.Load(ctx); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestRedis_ServerGone(t *testing.T) {
	ctx := context.Background()
	cur, db := newMiniredisCursor(t, "wall")
	db.Close()

	if _, err := cur.Load(ctx); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("expected unavailable on Load, got %v", err)
	}
	if err := cur.Save(ctx, time.Now()); !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("expected unavailable on Save, got %v", err)
	}
}

func TestNewRedis_NilPanics(t *testing.T) {
	t.Parallel()
	kit.MustPanic(t, func() { _ = NewRedis(nil, "x") })
}
