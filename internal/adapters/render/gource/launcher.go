// Package gource launches one renderer process per grid slot and feeds it commit logs
package gource

import (
	"context"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
	feeddom "gourcewall/internal/services/feed/domain"
)

const (
	defaultBin   = "gource"
	defaultGrace = 3 * time.Second
)

// Options configures the Launcher
type Options struct {
	Bin        string
	ConfigPath string

	// TermGrace is how long a terminated process gets before SIGKILL
	TermGrace time.Duration

	ScreenW, ScreenH int
	Rows, Cols       int

	// PlaceWindows passes --window-position derived from the slot position
	PlaceWindows bool

	// Loop renders the working copy with --loop instead of reading stdin; feeds become no-ops
	Loop bool
}

// SpawnSpec describes one slot occupant
type SpawnSpec struct {
	Key      feeddom.EventKey
	Position int
	RepoPath string
}

// Launcher starts renderer processes
type Launcher struct {
	opts Options
	log  logger.Logger
}

// NewLauncher constructs a Launcher
func NewLauncher(opts Options, log logger.Logger) *Launcher {
	if opts.Bin == "" {
		opts.Bin = defaultBin
	}
	if opts.TermGrace <= 0 {
		opts.TermGrace = defaultGrace
	}
	if opts.Rows <= 0 {
		opts.Rows = 1
	}
	if opts.Cols <= 0 {
		opts.Cols = 1
	}
	return &Launcher{opts: opts, log: log.With().Str("component", "gource").Logger()}
}

// Viewport is the per-slot window size; each cell loses one pixel per neighbour for borders
func (l *Launcher) Viewport() (int, int) {
	return l.opts.ScreenW/l.opts.Cols - l.opts.Cols, l.opts.ScreenH/l.opts.Rows - l.opts.Rows
}

// WindowPosition is the top-left corner of the cell for position p, filled row by row
func (l *Launcher) WindowPosition(p int) (int, int) {
	col, row := p%l.opts.Cols, p/l.opts.Cols
	return col * (l.opts.ScreenW / l.opts.Cols), row * (l.opts.ScreenH / l.opts.Rows)
}

// Args builds the renderer command line for spec
func (l *Launcher) Args(spec SpawnSpec) []string {
	var args []string
	if l.opts.ConfigPath != "" {
		args = append(args, "--load-config", l.opts.ConfigPath)
	}
	w, h := l.Viewport()
	args = append(args,
		"--user-image-dir", filepath.Join(spec.RepoPath, ".git", "avatar"),
		"--viewport", strconv.Itoa(w)+"x"+strconv.Itoa(h),
		"--title", spec.Key.Title(),
	)
	if l.opts.PlaceWindows {
		x, y := l.WindowPosition(spec.Position)
		args = append(args, "--window-position", strconv.Itoa(x)+"x"+strconv.Itoa(y))
	}
	if l.opts.Loop {
		return append(args, "--loop", spec.RepoPath)
	}
	return append(args, "-")
}

// Spawn starts a renderer for spec and queues history as its first feed.
// The process outlives ctx; only Terminate stops it
func (l *Launcher) Spawn(ctx context.Context, spec SpawnSpec, history []byte) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeSpawn, "spawn canceled")
	}

	id := uuid.NewString()
	log := l.log.With().
		Str("worker_id", id).
		Str("key", string(spec.Key)).
		Int("position", spec.Position).
		Logger()

	cmd := exec.Command(l.opts.Bin, l.Args(spec)...)
	cmd.Dir = spec.RepoPath

	p := newProcess(id, spec, cmd, l.opts.TermGrace, l.opts.Loop, log)
	if !l.opts.Loop {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeSpawn, "renderer stdin")
		}
		p.stdin = stdin
	}
	if err := cmd.Start(); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeSpawn, "start %s", l.opts.Bin)
	}
	p.start()
	p.Feed(history)

	log.Info().Int("pid", cmd.Process.Pid).Int("history_bytes", len(history)).Msg("renderer started")
	return p, nil
}
