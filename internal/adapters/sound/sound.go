// Package sound plays a short notification after each successful sync
package sound

import (
	"context"
	"os/exec"
	"sync"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
)

// players are tried in order: afplay ships with macOS, play with sox
var players = []string{"afplay", "play"}

// Player runs the first available player binary against File
type Player struct {
	File string

	log      logger.Logger
	lookPath func(string) (string, error)

	once sync.Once
	bin  string
}

// New constructs a Player. Detection happens on first use
func New(file string, log logger.Logger) *Player {
	return &Player{
		File:     file,
		log:      log.With().Str("component", "sound").Logger(),
		lookPath: exec.LookPath,
	}
}

// Bin is the detected player, empty when none is installed
func (p *Player) Bin() string {
	p.once.Do(func() {
		for _, name := range players {
			if path, err := p.lookPath(name); err == nil {
				p.bin = path
				return
			}
		}
		p.log.Warn().Strs("tried", players).Msg("no sound player found; sounds disabled")
	})
	return p.bin
}

// Play blocks until the sound finished. Callers run it in the background
func (p *Player) Play(ctx context.Context) error {
	bin := p.Bin()
	if bin == "" {
		return perr.Unavailablef("no sound player")
	}
	if out, err := exec.CommandContext(ctx, bin, p.File).CombinedOutput(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "%s: %s", bin, string(out))
	}
	return nil
}
