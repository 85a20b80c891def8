package service

import (
	"context"
	"sync"
	"time"

	"gourcewall/internal/platform/logger"
	feeddom "gourcewall/internal/services/feed/domain"
	"gourcewall/internal/services/rotation/domain"
)

type sideActivity struct {
	name string
	fn   domain.SideActivity
}

// Sidecar runs best-effort activities in the background after each successful sync.
// Failures and panics are logged and go no further
type Sidecar struct {
	acts    []sideActivity
	timeout time.Duration
	log     logger.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewSidecar constructs a Sidecar whose activities each get at most timeout
func NewSidecar(timeout time.Duration, log logger.Logger) *Sidecar {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Sidecar{timeout: timeout, log: log.With().Str("component", "sidecar").Logger()}
}

// Add registers an activity; call before the scheduler starts
func (s *Sidecar) Add(name string, fn domain.SideActivity) *Sidecar {
	if fn != nil {
		s.acts = append(s.acts, sideActivity{name: name, fn: fn})
	}
	return s
}

// Len is the number of registered activities
func (s *Sidecar) Len() int {
	if s == nil {
		return 0
	}
	return len(s.acts)
}

// Fire starts every activity for path and returns immediately.
// Activities outlive the cycle's ctx but keep its values
func (s *Sidecar) Fire(ctx context.Context, path string, ev feeddom.PushEvent) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Debug().Str("key", string(ev.Key)).Msg("sidecar closed; activities skipped")
		return
	}
	s.wg.Add(len(s.acts))
	s.mu.Unlock()

	base := logger.WithKey(context.WithoutCancel(ctx), string(ev.Key))
	for _, a := range s.acts {
		go func() {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Str("activity", a.name).Interface("panic", r).Msg("side activity panicked")
				}
			}()
			actx, cancel := context.WithTimeout(base, s.timeout)
			defer cancel()
			if err := a.fn(actx, path, ev); err != nil {
				logger.C(actx).Debug().Err(err).Str("activity", a.name).Msg("side activity failed")
			}
		}()
	}
}

// Wait closes the sidecar to new activities, then blocks until running ones finish or ctx ends
func (s *Sidecar) Wait(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
