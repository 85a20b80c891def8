// Package module wires the rotation scheduler to git, gource and the side activities
package module

import (
	"context"

	"gourcewall/internal/adapters/avatar/gravatar"
	"gourcewall/internal/adapters/render/gource"
	"gourcewall/internal/adapters/sound"
	"gourcewall/internal/adapters/vcs/git"
	"gourcewall/internal/modkit"
	"gourcewall/internal/platform/validate"
	feeddom "gourcewall/internal/services/feed/domain"

	"gourcewall/internal/services/rotation/domain"
	"gourcewall/internal/services/rotation/service"
)

// Module defines the rotation module
type Module struct {
	deps  modkit.Deps
	opts  Options
	ports Ports
}

// New constructs the rotation module around src.
// Misconfiguration panics through the logger
func New(deps modkit.Deps, src feeddom.SourcePort, overrides Options) *Module {
	opts := FromConfig(deps.Cfg).merge(overrides)
	validate.MustStruct("rotation", opts)

	log := deps.Log.With().Str("module", "rotation").Logger()
	if src == nil {
		log.Panic().Msg("rotation: a feed source is required")
	}

	mirror, err := git.New(git.Options{
		Bin:         opts.GitBin,
		Store:       opts.GitStore,
		URLTemplate: opts.GitURLTemplate,
		LogLimit:    opts.GitLogLimit,
		Timeout:     opts.GitTimeout,
	}, log)
	if err != nil {
		log.Panic().Err(err).Msg("rotation: git mirror")
	}

	launcher := gource.NewLauncher(gource.Options{
		Bin:          opts.GourceBin,
		ConfigPath:   opts.GourceConfig,
		TermGrace:    opts.GourceTermGrace,
		ScreenW:      opts.ScreenW,
		ScreenH:      opts.ScreenH,
		Rows:         opts.Rows,
		Cols:         opts.Cols,
		PlaceWindows: opts.PlaceWindows,
		Loop:         opts.Loop,
	}, log)

	side := service.NewSidecar(opts.SideTimeout, log)
	if opts.AvatarEnabled {
		fetcher, err := gravatar.New(gravatar.Options{
			BaseURL:     opts.AvatarBaseURL,
			Size:        opts.AvatarSize,
			Concurrency: opts.AvatarConcurrency,
		}, log)
		if err != nil {
			log.Panic().Err(err).Msg("rotation: avatar fetcher")
		}
		side.Add("avatars", avatars(mirror, fetcher))
	}
	if opts.SoundEnabled {
		player := sound.New(opts.SoundFile, log)
		side.Add("sound", func(ctx context.Context, _ string, _ feeddom.PushEvent) error {
			return player.Play(ctx)
		})
	}

	sched := service.NewScheduler(src, mirror, launcherAdapter{l: launcher}, side, opts.Capacity(), log)
	driver := service.NewDriver(sched, service.DriverConfig{
		Refresh:       opts.Refresh,
		ShutdownGrace: opts.ShutdownGrace,
	}, log)

	log.Info().
		Int("rows", opts.Rows).
		Int("cols", opts.Cols).
		Str("store", mirror.Store()).
		Bool("loop", opts.Loop).
		Int("side_activities", side.Len()).
		Msg("rotation ready")

	return &Module{
		deps:  deps,
		opts:  opts,
		ports: Ports{Driver: driver, Scheduler: sched},
	}
}

// authorLister is the slice of the mirror the avatar activity needs
type authorLister interface {
	Authors(ctx context.Context, path string) ([]git.Author, error)
}

// avatars refreshes the avatar directory of a freshly synced working copy
func avatars(m authorLister, f *gravatar.Fetcher) domain.SideActivity {
	return func(ctx context.Context, path string, _ feeddom.PushEvent) error {
		authors, err := m.Authors(ctx, path)
		if err != nil {
			return err
		}
		_, err = f.Sync(ctx, path, authors)
		return err
	}
}

// launcherAdapter narrows *gource.Process to the worker port
type launcherAdapter struct{ l *gource.Launcher }

func (a launcherAdapter) Spawn(ctx context.Context, spec gource.SpawnSpec, history []byte) (domain.Worker, error) {
	p, err := a.l.Spawn(ctx, spec, history)
	if err != nil {
		// a typed nil would slip past the scheduler's nil checks
		return nil, err
	}
	return p, nil
}

// Run drives the rotation in the configured mode until ctx ends
func (m *Module) Run(ctx context.Context) error {
	if m.opts.Once {
		return m.ports.Driver.RunOnce(ctx)
	}
	return m.ports.Driver.Run(ctx)
}

// Name returns the module name
func (m *Module) Name() string { return "rotation" }

// Ports returns the module ports (Driver, Scheduler)
func (m *Module) Ports() any { return m.ports }

// Options returns the effective options after env and overrides
func (m *Module) Options() Options { return m.opts }
