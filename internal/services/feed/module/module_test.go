package module

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"

	"gourcewall/internal/modkit"
	"gourcewall/internal/modkit/module"
	"gourcewall/internal/platform/config"
	"gourcewall/internal/platform/logger"
	"gourcewall/internal/platform/store"
	kit "gourcewall/internal/platform/testkit"
	"gourcewall/internal/services/feed/repo"
)

func deps() modkit.Deps {
	return modkit.Deps{Log: logger.Nop(), Cfg: config.New()}
}

func TestFromConfig_DefaultsAndEnv(t *testing.T) {
	opts := FromConfig(config.New())
	if opts.Activity != "public" || opts.CursorBackend != CursorMemory || opts.CursorName != "default" {
		t.Fatalf("defaults = %+v", opts)
	}
	if opts.Timeout != 10*time.Second {
		t.Fatalf("timeout default = %v", opts.Timeout)
	}

	t.Setenv("FEED_ORG", "acme")
	t.Setenv("FEED_ACTIVITY", "ALL")
	t.Setenv("FEED_CURSOR_BACKEND", "redis")
	t.Setenv("FEED_RESET_CURSOR", "true")
	opts = FromConfig(config.New())
	if opts.Org != "acme" || opts.Activity != "all" || opts.CursorBackend != CursorRedis || !opts.ResetCursor {
		t.Fatalf("env = %+v", opts)
	}
}

func TestFromConfig_BadBackendPanics(t *testing.T) {
	t.Setenv("FEED_CURSOR_BACKEND", "sqlite")
	kit.MustPanic(t, func() { _ = FromConfig(config.New()) })
}

func TestOptionsMerge(t *testing.T) {
	t.Parallel()

	base := Options{Org: "acme", Activity: "public", CursorBackend: CursorMemory, CursorName: "default"}
	got := base.merge(Options{User: "octo", CursorName: "wall-2", ResetCursor: true})
	if got.Org != "acme" || got.User != "octo" || got.CursorName != "wall-2" || !got.ResetCursor {
		t.Fatalf("merge = %+v", got)
	}
	if got.CursorBackend != CursorMemory {
		t.Fatalf("empty override clobbered backend")
	}
}

func TestNew_MemoryCursorPollsServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orgs/acme/events" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"id": "1", "type": "PushEvent", "public": true,
			"created_at": "2026-06-01T09:00:00Z",
			"repo":       map[string]any{"name": "acme/api"},
			"payload":    map[string]any{"ref": "refs/heads/main", "head": "abc"},
		}})
	}))
	t.Cleanup(srv.Close)

	t.Setenv("FEED_ORG", "acme")
	m := New(context.Background(), deps(), Options{BaseURL: srv.URL})
	if m.Name() != "feed" {
		t.Fatalf("name = %q", m.Name())
	}
	ports := module.MustPortsOf[Ports](m)
	if _, ok := ports.Cursor.(*repo.Memory); !ok {
		t.Fatalf("expected memory cursor, got %T", ports.Cursor)
	}

	got, err := ports.Source.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(got) != 1 || got[0].Key != "acme/api/main" || got[0].Revision != "abc" {
		t.Fatalf("Poll = %+v", got)
	}
}

func TestNew_RedisCursor(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	d := deps()
	d.RDS = store.NewRedisKV(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = d.RDS.Close() })

	m := New(context.Background(), d, Options{Org: "acme", CursorBackend: CursorRedis, CursorName: "lobby"})
	cur, ok := m.Ports().(Ports).Cursor.(*repo.Redis)
	if !ok {
		t.Fatalf("expected redis cursor, got %T", m.Ports().(Ports).Cursor)
	}
	if cur.Key() != "gourcewall:lobby:last_update" {
		t.Fatalf("key = %q", cur.Key())
	}
}

func TestNew_MisconfigurationPanics(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{name: "no org or user", opts: Options{}},
		{name: "redis without store", opts: Options{Org: "acme", CursorBackend: CursorRedis}},
		{name: "pg without store", opts: Options{Org: "acme", CursorBackend: CursorPG}},
		{name: "bad base url", opts: Options{Org: "acme", BaseURL: "::not a url"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kit.MustPanic(t, func() { _ = New(context.Background(), deps(), tc.opts) })
		})
	}
}
