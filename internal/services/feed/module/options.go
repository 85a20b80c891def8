package module

import (
	"time"

	"gourcewall/internal/platform/config"
	"gourcewall/internal/services/feed/domain"
)

// Cursor backends
const (
	CursorMemory = "memory"
	CursorRedis  = "redis"
	CursorPG     = "pg"
)

// Options controls the feed. Values may also be read from env
type Options struct {
	Org   string `env:"FEED_ORG"`
	User  string `env:"FEED_USER"`
	Pass  string `env:"FEED_PASS"`
	Token string `env:"FEED_TOKEN"`

	Activity domain.Activity `env:"FEED_ACTIVITY" validate:"oneof=all public"`
	BaseURL  string          `env:"FEED_BASE_URL" validate:"omitempty,url"`
	Timeout  time.Duration   `env:"FEED_TIMEOUT"`

	CursorBackend string `env:"FEED_CURSOR_BACKEND" validate:"oneof=memory redis pg"`
	CursorName    string `env:"FEED_CURSOR_NAME" validate:"required,max=64"`

	// ResetCursor ignores whatever watermark is stored, like a fresh start
	ResetCursor bool `env:"FEED_RESET_CURSOR"`
}

// FromConfig reads options using the FEED_ prefix
func FromConfig(cfg config.Conf) Options {
	fc := cfg.Prefix("FEED_")
	return Options{
		Org:           fc.MayString("ORG", ""),
		User:          fc.MayString("USER", ""),
		Pass:          fc.MayString("PASS", ""),
		Token:         fc.MayString("TOKEN", ""),
		Activity:      domain.Activity(fc.MayEnum("ACTIVITY", string(domain.ActivityPublic), string(domain.ActivityAll), string(domain.ActivityPublic))),
		BaseURL:       fc.MayString("BASE_URL", ""),
		Timeout:       fc.MayDuration("TIMEOUT", 10*time.Second),
		CursorBackend: fc.MayEnum("CURSOR_BACKEND", CursorMemory, CursorMemory, CursorRedis, CursorPG),
		CursorName:    fc.MayString("CURSOR_NAME", "default"),
		ResetCursor:   fc.MayBool("RESET_CURSOR", false),
	}
}

// merge applies non-zero overrides on top of o
func (o Options) merge(ov Options) Options {
	if ov.Org != "" {
		o.Org = ov.Org
	}
	if ov.User != "" {
		o.User = ov.User
	}
	if ov.Pass != "" {
		o.Pass = ov.Pass
	}
	if ov.Token != "" {
		o.Token = ov.Token
	}
	if ov.Activity != "" {
		o.Activity = ov.Activity
	}
	if ov.BaseURL != "" {
		o.BaseURL = ov.BaseURL
	}
	if ov.Timeout != 0 {
		o.Timeout = ov.Timeout
	}
	if ov.CursorBackend != "" {
		o.CursorBackend = ov.CursorBackend
	}
	if ov.CursorName != "" {
		o.CursorName = ov.CursorName
	}
	if ov.ResetCursor {
		o.ResetCursor = true
	}
	return o
}
