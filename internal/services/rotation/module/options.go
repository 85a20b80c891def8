package module

import (
	"time"

	"gourcewall/internal/platform/config"
)

// Options controls the grid, the mirror, the renderer and the side activities.
// Values are read from env; non-zero overrides win
type Options struct {
	Rows int `env:"GRID_ROWS" validate:"min=1,max=8"`
	Cols int `env:"GRID_COLUMNS" validate:"min=1,max=8"`

	Refresh       time.Duration `env:"ROTATION_REFRESH" validate:"min=1s"`
	ShutdownGrace time.Duration `env:"ROTATION_SHUTDOWN_GRACE"`
	ScreenW       int           `env:"ROTATION_SCREEN" validate:"min=1"`
	ScreenH       int           `env:"ROTATION_SCREEN" validate:"min=1"`
	PlaceWindows  bool          `env:"ROTATION_PLACE_WINDOWS"`
	SideTimeout   time.Duration `env:"ROTATION_SIDE_TIMEOUT"`

	// Once runs a single cycle and keeps the renderers up until interrupted
	Once bool `env:"-"`
	// Loop renders whole working copies with gource --loop instead of streaming history
	Loop bool `env:"-"`

	GitBin         string        `env:"GIT_BIN" validate:"required"`
	GitStore       string        `env:"GIT_STORE" validate:"required"`
	GitURLTemplate string        `env:"GIT_URL_TEMPLATE" validate:"url_template"`
	GitLogLimit    int           `env:"GIT_LOG_LIMIT" validate:"min=0"`
	GitTimeout     time.Duration `env:"GIT_TIMEOUT"`

	GourceBin       string        `env:"GOURCE_BIN" validate:"required"`
	GourceConfig    string        `env:"GOURCE_CONFIG"`
	GourceTermGrace time.Duration `env:"GOURCE_TERM_GRACE"`

	AvatarEnabled     bool   `env:"AVATAR_ENABLED"`
	AvatarBaseURL     string `env:"AVATAR_BASE_URL" validate:"omitempty,url"`
	AvatarSize        int    `env:"AVATAR_SIZE" validate:"min=1,max=2048"`
	AvatarConcurrency int    `env:"AVATAR_CONCURRENCY" validate:"min=1,max=64"`

	SoundEnabled bool   `env:"SOUND_ENABLED"`
	SoundFile    string `env:"SOUND_FILE" validate:"required_if=SoundEnabled true"`
}

// Capacity is the number of grid cells
func (o Options) Capacity() int { return o.Rows * o.Cols }

// FromConfig reads options from the GRID_, ROTATION_, GIT_, GOURCE_, AVATAR_ and SOUND_ families
func FromConfig(cfg config.Conf) Options {
	grid := cfg.Prefix("GRID_")
	rot := cfg.Prefix("ROTATION_")
	gitc := cfg.Prefix("GIT_")
	gc := cfg.Prefix("GOURCE_")
	av := cfg.Prefix("AVATAR_")
	snd := cfg.Prefix("SOUND_")

	w, h := rot.MaySize("SCREEN", 1920, 1080)
	return Options{
		Rows:          grid.MayInt("ROWS", 3),
		Cols:          grid.MayInt("COLUMNS", 2),
		Refresh:       rot.MayDuration("REFRESH", 10*time.Second),
		ShutdownGrace: rot.MayDuration("SHUTDOWN_GRACE", 5*time.Second),
		ScreenW:       w,
		ScreenH:       h,
		PlaceWindows:  rot.MayBool("PLACE_WINDOWS", false),
		SideTimeout:   rot.MayDuration("SIDE_TIMEOUT", time.Minute),

		GitBin:         gitc.MayString("BIN", "git"),
		GitStore:       gitc.MayString("STORE", "repositories"),
		GitURLTemplate: gitc.MayString("URL_TEMPLATE", "git@github.com:%s.git"),
		GitLogLimit:    gitc.MayInt("LOG_LIMIT", 100),
		GitTimeout:     gitc.MayDuration("TIMEOUT", 2*time.Minute),

		GourceBin:       gc.MayString("BIN", "gource"),
		GourceConfig:    gc.MayString("CONFIG", "gourceconfig.ini"),
		GourceTermGrace: gc.MayDuration("TERM_GRACE", 3*time.Second),

		AvatarEnabled:     av.MayBool("ENABLED", true),
		AvatarBaseURL:     av.MayString("BASE_URL", ""),
		AvatarSize:        av.MayInt("SIZE", 90),
		AvatarConcurrency: av.MayInt("CONCURRENCY", 4),

		SoundEnabled: snd.MayBool("ENABLED", false),
		SoundFile:    snd.MayString("FILE", "happykids.wav"),
	}
}

// merge applies non-zero overrides on top of o. Booleans can only be switched on
func (o Options) merge(ov Options) Options {
	if ov.Rows != 0 {
		o.Rows = ov.Rows
	}
	if ov.Cols != 0 {
		o.Cols = ov.Cols
	}
	if ov.Refresh != 0 {
		o.Refresh = ov.Refresh
	}
	if ov.ShutdownGrace != 0 {
		o.ShutdownGrace = ov.ShutdownGrace
	}
	if ov.ScreenW != 0 && ov.ScreenH != 0 {
		o.ScreenW, o.ScreenH = ov.ScreenW, ov.ScreenH
	}
	if ov.SideTimeout != 0 {
		o.SideTimeout = ov.SideTimeout
	}
	o.PlaceWindows = o.PlaceWindows || ov.PlaceWindows
	o.Once = o.Once || ov.Once
	o.Loop = o.Loop || ov.Loop

	if ov.GitBin != "" {
		o.GitBin = ov.GitBin
	}
	if ov.GitStore != "" {
		o.GitStore = ov.GitStore
	}
	if ov.GitURLTemplate != "" {
		o.GitURLTemplate = ov.GitURLTemplate
	}
	if ov.GitLogLimit != 0 {
		o.GitLogLimit = ov.GitLogLimit
	}
	if ov.GitTimeout != 0 {
		o.GitTimeout = ov.GitTimeout
	}

	if ov.GourceBin != "" {
		o.GourceBin = ov.GourceBin
	}
	if ov.GourceConfig != "" {
		o.GourceConfig = ov.GourceConfig
	}
	if ov.GourceTermGrace != 0 {
		o.GourceTermGrace = ov.GourceTermGrace
	}

	o.AvatarEnabled = o.AvatarEnabled || ov.AvatarEnabled
	if ov.AvatarBaseURL != "" {
		o.AvatarBaseURL = ov.AvatarBaseURL
	}
	if ov.AvatarSize != 0 {
		o.AvatarSize = ov.AvatarSize
	}
	if ov.AvatarConcurrency != 0 {
		o.AvatarConcurrency = ov.AvatarConcurrency
	}

	o.SoundEnabled = o.SoundEnabled || ov.SoundEnabled
	if ov.SoundFile != "" {
		o.SoundFile = ov.SoundFile
	}
	return o
}
