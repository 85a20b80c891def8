package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	kit "gourcewall/internal/platform/testkit"
)

func TestOpen_BadURL(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestOpen_AppliesConfigToPool(t *testing.T) {
	kit.Serial(t)

	var seen *pgxpool.Config
	kit.Swap(t, &newPool, func(_ context.Context, c *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = c
		return &pgxpool.Pool{}, nil
	})

	p, err := Open(context.Background(), Config{
		URL:      "postgres://u:p@h:5432/db?sslmode=disable",
		MaxConns: 3,
		SlowMs:   50,
		AppName:  "gourcewall",
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if seen.MaxConns != 3 || seen.ConnConfig.RuntimeParams["application_name"] != "gourcewall" {
		t.Fatalf("pool config = max %d params %v", seen.MaxConns, seen.ConnConfig.RuntimeParams)
	}
	if p.SlowMs != 50 || p.Pool == nil {
		t.Fatalf("PG = %+v", p)
	}
}

func TestOpen_PoolError(t *testing.T) {
	kit.Serial(t)

	kit.Swap(t, &newPool, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) {
		return nil, errors.New("no pool")
	})
	if _, err := Open(context.Background(), Config{URL: "postgres://h/db"}, nil); err == nil {
		t.Fatalf("expected pool error")
	}
}

type captured struct{ evs []QueryEvent }

func (c *captured) OnQuery(_ context.Context, ev QueryEvent) { c.evs = append(c.evs, ev) }

func TestTrace(t *testing.T) {
	t.Parallel()

	var nilPG *PG
	nilPG.Trace(context.Background(), "SELECT 1", nil, time.Now(), nil)
	(&PG{}).Trace(context.Background(), "SELECT 1", nil, time.Now(), nil)

	c := &captured{}
	p := &PG{Tracer: c, SlowMs: 0}
	p.Trace(context.Background(), "SELECT 1", []any{1}, time.Now().Add(-time.Millisecond), errors.New("x"))
	if len(c.evs) != 1 || !c.evs[0].Slow || c.evs[0].Err == nil || c.evs[0].ElapsedUS < 1000 {
		t.Fatalf("events = %+v", c.evs)
	}

	p.SlowMs = -1
	p.Trace(context.Background(), "SELECT 1", nil, time.Now(), nil)
	if c.evs[1].Slow {
		t.Fatalf("negative threshold should disable slow marking")
	}
}

func TestTracer_LogsOneLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := Tracer(zerolog.New(&buf).Level(zerolog.ErrorLevel))
	tr.OnQuery(context.Background(), QueryEvent{
		SQL:       "SELECT observed_at\n\t FROM feed_cursor\n WHERE name = $1",
		Args:      []any{"default"},
		ElapsedUS: 2500,
		Slow:      true,
	})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("tracer output %q: %v", buf.String(), err)
	}
	if line["level"] != "warn" || line["component"] != "pg" || line["elapsed_ms"] != 2.5 {
		t.Fatalf("line = %v", line)
	}
	if line["sql"] != "SELECT observed_at FROM feed_cursor WHERE name = $1" || line["args"] != float64(1) {
		t.Fatalf("sql/args = %v / %v", line["sql"], line["args"])
	}
}
