// Package git keeps local working copies of pushed branches and reads their history
package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
	feeddom "gourcewall/internal/services/feed/domain"
)

const (
	defaultBin         = "git"
	defaultURLTemplate = "git@github.com:%s.git"
	defaultLogLimit    = 100
	defaultTimeout     = 2 * time.Minute

	// HistoryFormat is the custom log format the renderer reads from stdin
	HistoryFormat = "--pretty=format:user:%aN%n%ct"
)

// Options configures the Mirror
type Options struct {
	Bin         string
	Store       string
	URLTemplate string

	// LogLimit caps history and author reads; 0 disables the cap
	LogLimit int

	// Timeout bounds each git invocation
	Timeout time.Duration
}

// Outcome is the coarse result of a sync
type Outcome int

// Sync outcomes
const (
	OutcomeOK Outcome = iota
	OutcomeGone
)

func (o Outcome) String() string {
	if o == OutcomeOK {
		return "ok"
	}
	return "gone"
}

// SyncResult reports where the working copy lives and whether it can be rendered.
// Cause is set for OutcomeGone and carries ErrorCodeRepoGone
type SyncResult struct {
	Path    string
	Outcome Outcome
	Cause   error
}

// OK is shorthand for Outcome == OutcomeOK
func (r SyncResult) OK() bool { return r.Outcome == OutcomeOK }

// Author is one commit author, as used for avatar lookups
type Author struct {
	Email string
	Name  string
}

// Mirror drives the git CLI against working copies under Store
type Mirror struct {
	opts Options
	log  logger.Logger
	run  runner
}

// New constructs a Mirror and makes sure the store directory exists
func New(opts Options, log logger.Logger) (*Mirror, error) {
	if opts.Bin == "" {
		opts.Bin = defaultBin
	}
	if opts.URLTemplate == "" {
		opts.URLTemplate = defaultURLTemplate
	}
	if opts.LogLimit < 0 {
		opts.LogLimit = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Store == "" {
		opts.Store = "repositories"
	}
	abs, err := filepath.Abs(opts.Store)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "git store path")
	}
	opts.Store = abs
	if err := os.MkdirAll(opts.Store, 0o755); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "git store mkdir")
	}

	l := log.With().Str("component", "git").Logger()
	return &Mirror{opts: opts, log: l, run: execRunner(opts.Bin, l)}, nil
}

var unsafePath = strings.NewReplacer("/", "_", ".", "_", `\`, "_")

// Sanitize turns a key into a single path segment
func Sanitize(key feeddom.EventKey) string {
	return unsafePath.Replace(norm.NFC.String(string(key)))
}

// PathFor is the working copy location for key
func (m *Mirror) PathFor(key feeddom.EventKey) string {
	return filepath.Join(m.opts.Store, Sanitize(key))
}

// Store is the absolute directory holding every working copy
func (m *Mirror) Store() string { return m.opts.Store }

// Sync clones the branch on first use and fast-forwards it afterwards.
// Every failure collapses into OutcomeGone
func (m *Mirror) Sync(ctx context.Context, ev feeddom.PushEvent) SyncResult {
	path := m.PathFor(ev.Key)
	repo, branch := coordinates(ev)
	log := m.log.With().Str("key", string(ev.Key)).Str("path", path).Logger()

	if repo == "" || branch == "" {
		return gone(path, perr.RepoGonef("cannot derive repository and branch from %q", ev.Key))
	}

	var err error
	if exists(filepath.Join(path, ".git")) {
		log.Debug().Str("branch", branch).Msg("updating working copy")
		_, err = m.git(ctx, path, "pull", "--ff-only", "origin", branch)
	} else {
		url := strings.Replace(m.opts.URLTemplate, "%s", repo, 1)
		log.Debug().Str("url", url).Str("branch", branch).Msg("cloning")
		_, err = m.git(ctx, "", "clone", "-b", branch, url, path)
		if err != nil {
			// a half-written clone would be mistaken for a working copy next time
			_ = os.RemoveAll(path)
		}
	}
	if err != nil {
		log.Warn().Err(err).Msg("git failed; assuming the repository is gone")
		return gone(path, perr.Wrapf(err, perr.ErrorCodeRepoGone, "sync %s", ev.Key))
	}
	return SyncResult{Path: path, Outcome: OutcomeOK}
}

// History returns commit log records in renderer format, oldest first.
// An empty from means the full (limited) history
func (m *Mirror) History(ctx context.Context, path string, from, to feeddom.Revision) ([]byte, error) {
	args := []string{"log", HistoryFormat, "--reverse", "--raw", "--encoding=UTF-8", "--no-renames"}
	if m.opts.LogLimit > 0 {
		args = append(args, "-n", strconv.Itoa(m.opts.LogLimit))
	}
	if from != "" {
		args = append(args, string(from)+".."+string(to))
	}
	out, err := m.git(ctx, path, args...)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeRepoGone, "history %s", filepath.Base(path))
	}
	return out, nil
}

// Authors lists distinct commit authors, most recent first
func (m *Mirror) Authors(ctx context.Context, path string) ([]Author, error) {
	args := []string{"log", "--pretty=format:%ae|%an"}
	if m.opts.LogLimit > 0 {
		args = append(args, "-n", strconv.Itoa(m.opts.LogLimit))
	}
	out, err := m.git(ctx, path, args...)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeRepoGone, "authors %s", filepath.Base(path))
	}
	return parseAuthors(string(out)), nil
}

func (m *Mirror) git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()
	return m.run(ctx, dir, args...)
}

func parseAuthors(s string) []Author {
	seen := make(map[string]struct{})
	var out []Author
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		email, name, ok := strings.Cut(line, "|")
		if !ok || email == "" || name == "" {
			continue
		}
		out = append(out, Author{Email: email, Name: name})
	}
	return out
}

// coordinates prefers the explicit fields and falls back to owner/name/branch... in the key
func coordinates(ev feeddom.PushEvent) (repo, branch string) {
	if ev.Repo != "" && ev.Branch != "" {
		return ev.Repo, ev.Branch
	}
	parts := strings.SplitN(string(ev.Key), "/", 3)
	if len(parts) < 3 {
		return "", ""
	}
	return parts[0] + "/" + parts[1], parts[2]
}

func gone(path string, cause error) SyncResult {
	return SyncResult{Path: path, Outcome: OutcomeGone, Cause: cause}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
