// Package config reads settings from environment variables, one prefix per concern (GRID_, FEED_, GIT_ ...)
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gourcewall/internal/platform/logger"
)

// Conf is a namespaced view over the environment
type Conf struct{ prefix string }

// New returns the unprefixed root
func New() Conf { return Conf{} }

// Prefix returns a child view, e.g. cfg.Prefix("FEED_")
func (c Conf) Prefix(p string) Conf { return Conf{prefix: c.prefix + p} }

func (c Conf) key(k string) string { return c.prefix + k }

func (c Conf) value(key string) string { return strings.TrimSpace(os.Getenv(c.key(key))) }

// may parses key with parse, falling back to def when unset or unparsable.
// A bad value is logged, not fatal: a typo in an optional knob should not stop the wall
func may[T any](c Conf, key string, def T, kind string, parse func(string) (T, error)) T {
	s := c.value(key)
	if s == "" {
		return def
	}
	v, err := parse(s)
	if err != nil {
		logger.Get().Warn().Str("key", c.key(key)).Str("value", s).Interface("default", def).
			Msg("invalid " + kind + "; using default")
		return def
	}
	return v
}

// MayString returns the value or def when unset
func (c Conf) MayString(key, def string) string {
	if v := c.value(key); v != "" {
		return v
	}
	return def
}

// MayInt returns the integer value or def
func (c Conf) MayInt(key string, def int) int {
	return may(c, key, def, "int", strconv.Atoi)
}

// MayBool returns the boolean value (strconv.ParseBool syntax) or def
func (c Conf) MayBool(key string, def bool) bool {
	return may(c, key, def, "bool", strconv.ParseBool)
}

// MayDuration returns the duration value (250ms, 10s, 2m) or def
func (c Conf) MayDuration(key string, def time.Duration) time.Duration {
	return may(c, key, def, "duration", time.ParseDuration)
}

type size struct{ w, h int }

// MaySize returns a WIDTHxHEIGHT pair such as a screen resolution, or the defaults
func (c Conf) MaySize(key string, defW, defH int) (int, int) {
	s := may(c, key, size{defW, defH}, "size", func(v string) (size, error) {
		w, h, ok := ParseSize(v)
		if !ok {
			return size{}, strconv.ErrSyntax
		}
		return size{w, h}, nil
	})
	return s.w, s.h
}

// ParseSize parses "1920x1080" (either case of x) into positive width and height
func ParseSize(s string) (int, int, bool) {
	ws, hs, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		return 0, 0, false
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil || w <= 0 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// MayEnum returns the value in its allowed spelling, or def when unset.
// Anything outside allowed panics: a wrong backend or mode is not something to guess around
func (c Conf) MayEnum(key, def string, allowed ...string) string {
	v := c.MayString(key, def)
	if v == "" {
		return v
	}
	for _, a := range allowed {
		if strings.EqualFold(v, a) {
			return a
		}
	}
	logger.Get().Panic().Str("key", c.key(key)).Str("value", v).Strs("allowed", allowed).Msg("invalid enum value")
	return ""
}
