package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gourcewall/internal/adapters/render/gource"
	"gourcewall/internal/adapters/vcs/git"
	perr "gourcewall/internal/platform/errors"
	feeddom "gourcewall/internal/services/feed/domain"
	"gourcewall/internal/services/rotation/domain"
)

func ev(key, rev string) feeddom.PushEvent {
	return feeddom.PushEvent{Key: feeddom.EventKey(key), Revision: feeddom.Revision(rev)}
}

// fakeSource returns one scripted batch per Poll, then nothing
type fakeSource struct {
	batches [][]feeddom.PushEvent
	errs    []error
	calls   atomic.Int32
}

func (f *fakeSource) Poll(context.Context) ([]feeddom.PushEvent, error) {
	i := int(f.calls.Add(1)) - 1
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return nil, nil
}

type historyCall struct {
	path     string
	from, to feeddom.Revision
}

// fakeMirror syncs everything except keys in gone and remembers history ranges
type fakeMirror struct {
	mu        sync.Mutex
	gone      map[feeddom.EventKey]bool
	badLog    map[feeddom.EventKey]bool
	synced    []feeddom.EventKey
	histories []historyCall
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{gone: map[feeddom.EventKey]bool{}, badLog: map[feeddom.EventKey]bool{}}
}

func (m *fakeMirror) Sync(_ context.Context, ev feeddom.PushEvent) git.SyncResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = append(m.synced, ev.Key)
	path := "/repos/" + git.Sanitize(ev.Key)
	if m.gone[ev.Key] {
		return git.SyncResult{Path: path, Outcome: git.OutcomeGone, Cause: perr.RepoGonef("%s gone", ev.Key)}
	}
	return git.SyncResult{Path: path, Outcome: git.OutcomeOK}
}

func (m *fakeMirror) History(_ context.Context, path string, from, to feeddom.Revision) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histories = append(m.histories, historyCall{path: path, from: from, to: to})
	for k := range m.badLog {
		if path == "/repos/"+git.Sanitize(k) {
			return nil, perr.RepoGonef("bad revision")
		}
	}
	if from == "" {
		return []byte("full:" + string(to)), nil
	}
	return []byte(fmt.Sprintf("delta:%s..%s", from, to)), nil
}

// fakeWorker records feeds and terminations; Done closes on Terminate unless stubborn
type fakeWorker struct {
	id       string
	key      feeddom.EventKey
	position int
	stubborn bool
	exitErr  error

	mu         sync.Mutex
	feeds      []string
	terminated atomic.Int32
	done       chan struct{}
	once       sync.Once
}

func (w *fakeWorker) ID() string { return w.id }

func (w *fakeWorker) Feed(b []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.terminated.Load() > 0 {
		return
	}
	w.feeds = append(w.feeds, string(b))
}

func (w *fakeWorker) Terminate() error {
	w.terminated.Add(1)
	if !w.stubborn {
		w.once.Do(func() { close(w.done) })
	}
	return nil
}

func (w *fakeWorker) Done() <-chan struct{} { return w.done }

func (w *fakeWorker) ExitErr() error { return w.exitErr }

func (w *fakeWorker) Feeds() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.feeds...)
}

// exit simulates the process ending on its own
func (w *fakeWorker) exit() { w.once.Do(func() { close(w.done) }) }

type fakeLauncher struct {
	mu       sync.Mutex
	fail     map[feeddom.EventKey]bool
	stubborn bool
	spawned  []*fakeWorker

	// onSpawn runs before each spawn, outside the lock
	onSpawn func(spec gource.SpawnSpec)
}

func newFakeLauncher() *fakeLauncher { return &fakeLauncher{fail: map[feeddom.EventKey]bool{}} }

func (l *fakeLauncher) Spawn(_ context.Context, spec gource.SpawnSpec, history []byte) (domain.Worker, error) {
	if l.onSpawn != nil {
		l.onSpawn(spec)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail[spec.Key] {
		return nil, perr.Newf(perr.ErrorCodeSpawn, "cannot start renderer for %s", spec.Key)
	}
	w := &fakeWorker{
		id:       fmt.Sprintf("w%d", len(l.spawned)+1),
		key:      spec.Key,
		position: spec.Position,
		stubborn: l.stubborn,
		done:     make(chan struct{}),
	}
	w.Feed(history)
	l.spawned = append(l.spawned, w)
	return w, nil
}

func (l *fakeLauncher) workers() []*fakeWorker {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeWorker(nil), l.spawned...)
}

func (l *fakeLauncher) byKey(k string) *fakeWorker {
	for _, w := range l.workers() {
		if w.key == feeddom.EventKey(k) {
			return w
		}
	}
	return nil
}
