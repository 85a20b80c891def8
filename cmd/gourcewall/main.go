package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"gourcewall/internal/modkit"
	"gourcewall/internal/modkit/module"
	"gourcewall/internal/modkit/repokit"
	"gourcewall/internal/platform/config"
	"gourcewall/internal/platform/logger"
	"gourcewall/internal/platform/store"

	feeddom "gourcewall/internal/services/feed/domain"
	feedmod "gourcewall/internal/services/feed/module"
	rotmod "gourcewall/internal/services/rotation/module"
)

func main() { os.Exit(run()) }

func run() int {
	root := config.New()
	l := logger.Get()

	var (
		fMode    = flag.String("mode", "continuous", "rotation mode: continuous | once")
		fPretty  = flag.Bool("pretty", false, "with -mode once, render whole working copies in a loop")
		fRows    = flag.Int("rows", 0, "grid rows (overrides GRID_ROWS)")
		fCols    = flag.Int("cols", 0, "grid columns (overrides GRID_COLUMNS)")
		fScreen  = flag.String("screen", "", "screen resolution WxH (overrides ROTATION_SCREEN)")
		fPlace   = flag.Bool("place-windows", false, "position each renderer window in its grid cell")
		fSound   = flag.Bool("sound", false, "play SOUND_FILE after every successful sync")
		fOrg     = flag.String("org", "", "watch an organization's events (overrides FEED_ORG)")
		fUser    = flag.String("user", "", "watch a user's events (overrides FEED_USER)")
		fAll     = flag.Bool("all", false, "include private activity; needs credentials")
		fCursor  = flag.String("cursor", "", "cursor backend: memory | redis | pg")
		fReset   = flag.Bool("reset-cursor", false, "ignore the stored watermark")
		fStore   = flag.String("store", "", "directory for working copies (overrides GIT_STORE)")
		fGource  = flag.String("gource", "", "renderer binary (overrides GOURCE_BIN)")
		fGConfig = flag.String("gource-config", "", "renderer ini file (overrides GOURCE_CONFIG)")
	)
	flag.Parse()

	once := false
	switch *fMode {
	case "continuous":
	case "once":
		once = true
	default:
		l.Error().Str("mode", *fMode).Msg("unknown -mode; want continuous or once")
		return 1
	}

	var screenW, screenH int
	if *fScreen != "" {
		w, h, ok := config.ParseSize(*fScreen)
		if !ok {
			l.Error().Str("screen", *fScreen).Msg("bad -screen; want WxH")
			return 1
		}
		screenW, screenH = w, h
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, store.FromConfig(root, "gourcewall"), store.WithLogger(*l))
	if err != nil {
		l.Error().Err(err).Msg("store.Open failed")
		return 1
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()
	repokit.MustGuard(ctx, st)

	deps := modkit.Deps{
		Log: *l,
		Cfg: root,
		PG:  st.PG,
		RDS: st.RDS,
	}

	var activity feeddom.Activity
	if *fAll {
		activity = feeddom.ActivityAll
	}
	feed := feedmod.New(ctx, deps, feedmod.Options{
		Org:           *fOrg,
		User:          *fUser,
		Activity:      activity,
		CursorBackend: *fCursor,
		ResetCursor:   *fReset,
	})
	module.Register(feed)
	feedPorts := module.MustPortsOf[feedmod.Ports](feed)

	rot := rotmod.New(deps, feedPorts.Source, rotmod.Options{
		Rows:         *fRows,
		Cols:         *fCols,
		ScreenW:      screenW,
		ScreenH:      screenH,
		PlaceWindows: *fPlace,
		SoundEnabled: *fSound,
		Once:         once,
		Loop:         once && *fPretty,
		GitStore:     *fStore,
		GourceBin:    *fGource,
		GourceConfig: *fGConfig,
	})
	module.Register(rot)

	l.Info().Str("mode", *fMode).Strs("modules", module.Names()).Msg("gourcewall starting")
	if err := rot.Run(ctx); err != nil {
		l.Error().Err(err).Msg("gourcewall stopped with errors")
		return 1
	}
	l.Info().Msg("gourcewall stopped")
	return 0
}
