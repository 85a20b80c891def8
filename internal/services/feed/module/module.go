// Package module wires the feed service and exposes its ports
package module

import (
	"context"
	"time"

	gh "gourcewall/internal/adapters/feed/github"
	"gourcewall/internal/modkit"
	"gourcewall/internal/modkit/repokit"
	"gourcewall/internal/platform/validate"

	"gourcewall/internal/services/feed/domain"
	"gourcewall/internal/services/feed/repo"
	"gourcewall/internal/services/feed/service"
)

// Module defines the feed module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the feed module with its ports.
// Misconfiguration panics through the logger since nothing can run without a feed
func New(ctx context.Context, deps modkit.Deps, overrides Options) *Module {
	opts := FromConfig(deps.Cfg).merge(overrides)
	validate.MustStruct("feed", opts)

	log := deps.Log.With().Str("module", "feed").Logger()

	client := gh.NewClient(gh.Options{
		BaseURL: opts.BaseURL,
		Timeout: opts.Timeout,
		Token:   opts.Token,
		User:    opts.User,
		Pass:    opts.Pass,
	})
	path, err := gh.EventsPath(opts.Org, opts.User, client.Authenticated(), opts.Activity == domain.ActivityAll)
	if err != nil {
		log.Panic().Err(err).Msg("feed: cannot choose an events endpoint")
	}

	cursor := buildCursor(ctx, deps, opts)

	src := service.New(client, cursor, service.Config{
		Path:        path,
		Activity:    opts.Activity,
		ResetCursor: opts.ResetCursor,
	}, log)

	log.Info().
		Str("path", path).
		Str("activity", string(opts.Activity)).
		Str("cursor", opts.CursorBackend).
		Bool("authenticated", client.Authenticated()).
		Msg("feed ready")

	return &Module{
		deps:  deps,
		opts:  opts,
		ports: Ports{Source: src, Cursor: cursor},
	}
}

func buildCursor(ctx context.Context, deps modkit.Deps, opts Options) domain.CursorStore {
	switch opts.CursorBackend {
	case CursorRedis:
		if deps.RDS == nil {
			deps.Log.Panic().Msg("feed: redis cursor requires SERVICE_REDIS_ADDR")
		}
		return repo.NewRedis(deps.RDS, "gourcewall:"+opts.CursorName)

	case CursorPG:
		if deps.PG == nil {
			deps.Log.Panic().Msg("feed: pg cursor requires SERVICE_PGSQL_DBURL")
		}
		cur := repokit.MustBind(repo.NewPG(opts.CursorName), deps.PG)
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := cur.EnsureSchema(sctx); err != nil {
			deps.Log.Panic().Err(err).Msg("feed: cursor schema")
		}
		return cur

	default:
		return repo.NewMemory()
	}
}

// Name returns the module name
func (m *Module) Name() string { return "feed" }

// Ports returns the module ports (Source, Cursor)
func (m *Module) Ports() any { return m.ports }

// Options returns the effective options after env and overrides
func (m *Module) Options() Options { return m.opts }
