// Package gravatar caches contributor avatars next to each working copy for the renderer
package gravatar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"gourcewall/internal/adapters/vcs/git"
	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
)

const (
	defaultBaseURL     = "https://www.gravatar.com/avatar"
	defaultSize        = 90
	defaultConcurrency = 4
	defaultAttempts    = 3
	defaultDelay       = 200 * time.Millisecond
	defaultCacheSize   = 4096

	missSuffix = ".miss"
)

// Options configures the Fetcher
type Options struct {
	BaseURL     string
	Size        int
	Concurrency int
	Timeout     time.Duration

	// Attempts and Delay apply to transport errors and 5xx answers
	Attempts uint
	Delay    time.Duration

	// CacheSize bounds the in-memory index of resolved authors
	CacheSize int
}

// Stats summarizes one Sync
type Stats struct {
	Fetched int
	Missed  int
	Cached  int
	Failed  int
}

// Fetcher downloads avatars on demand. Every failure is logged and swallowed
type Fetcher struct {
	http  *http.Client
	opts  Options
	log   logger.Logger
	known *lru.Cache
}

// New constructs a Fetcher
func New(opts Options, log logger.Logger) (*Fetcher, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Size <= 0 {
		opts.Size = defaultSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Attempts == 0 {
		opts.Attempts = defaultAttempts
	}
	if opts.Delay <= 0 {
		opts.Delay = defaultDelay
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultCacheSize
	}
	known, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "avatar index")
	}
	return &Fetcher{
		http:  &http.Client{Timeout: opts.Timeout},
		opts:  opts,
		log:   log.With().Str("component", "gravatar").Logger(),
		known: known,
	}, nil
}

// Dir is where the renderer expects avatars for a working copy
func Dir(repoPath string) string { return filepath.Join(repoPath, ".git", "avatar") }

// URL is the lookup address for email; d=404 makes unknown addresses a miss instead of a placeholder
func (f *Fetcher) URL(email string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return f.opts.BaseURL + "/" + hex.EncodeToString(sum[:]) + "?d=404&size=" + strconv.Itoa(f.opts.Size)
}

// Sync makes sure every author has either an image or a miss marker under Dir(repoPath).
// Only ctx cancellation and an unusable directory are reported
func (f *Fetcher) Sync(ctx context.Context, repoPath string, authors []git.Author) (Stats, error) {
	dir := Dir(repoPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Stats{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "avatar dir")
	}

	var fetched, missed, cached, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Concurrency)
	for _, a := range authors {
		if !usableName(a.Name) {
			continue
		}
		g.Go(func() error {
			switch f.one(gctx, dir, a) {
			case resultFetched:
				fetched.Add(1)
			case resultMissed:
				missed.Add(1)
			case resultCached:
				cached.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	st := Stats{
		Fetched: int(fetched.Load()),
		Missed:  int(missed.Load()),
		Cached:  int(cached.Load()),
		Failed:  int(failed.Load()),
	}
	f.log.Debug().
		Str("dir", dir).
		Int("fetched", st.Fetched).
		Int("missed", st.Missed).
		Int("cached", st.Cached).
		Int("failed", st.Failed).
		Msg("avatars synced")
	return st, ctx.Err()
}

type result int

const (
	resultFailed result = iota
	resultFetched
	resultMissed
	resultCached
)

var errMiss = errors.New("no avatar")

func (f *Fetcher) one(ctx context.Context, dir string, a git.Author) result {
	img := filepath.Join(dir, a.Name+".png")
	miss := filepath.Join(dir, a.Name+missSuffix)
	if f.known.Contains(img) {
		return resultCached
	}
	if fileExists(img) || fileExists(miss) {
		f.known.Add(img, struct{}{})
		return resultCached
	}

	url := f.URL(a.Email)
	err := retry.Do(
		func() error { return f.download(ctx, url, img) },
		retry.Context(ctx),
		retry.Attempts(f.opts.Attempts),
		retry.Delay(f.opts.Delay),
		retry.LastErrorOnly(true),
	)
	switch {
	case err == nil:
		f.known.Add(img, struct{}{})
		return resultFetched
	case errors.Is(err, errMiss):
		if werr := os.WriteFile(miss, nil, 0o644); werr != nil {
			f.log.Debug().Err(werr).Str("author", a.Name).Msg("miss marker not written")
			return resultFailed
		}
		f.known.Add(img, struct{}{})
		return resultMissed
	default:
		f.log.Debug().Err(err).Str("author", a.Name).Msg("avatar fetch failed")
		return resultFailed
	}
}

// download writes the image to dst; errMiss and other 4xx answers are not retried
func (f *Fetcher) download(ctx context.Context, url, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return retry.Unrecoverable(err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return retry.Unrecoverable(errMiss)
	case resp.StatusCode >= 500:
		return fmt.Errorf("gravatar status %d", resp.StatusCode)
	default:
		return retry.Unrecoverable(fmt.Errorf("gravatar status %d", resp.StatusCode))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".avatar-*")
	if err != nil {
		return retry.Unrecoverable(err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return retry.Unrecoverable(err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return retry.Unrecoverable(err)
	}
	return nil
}

// usableName rejects names that would escape the avatar directory
func usableName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
