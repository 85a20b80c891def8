package service

import (
	"sync"

	perr "gourcewall/internal/platform/errors"
	feeddom "gourcewall/internal/services/feed/domain"
	"gourcewall/internal/services/rotation/domain"
)

// Pool holds the occupied slots. byKey and positions always describe the same set of slots.
// Only the scheduler mutates it; the mutex lets Shutdown drain from another goroutine
type Pool struct {
	mu        sync.Mutex
	byKey     map[feeddom.EventKey]*domain.Slot
	positions []*domain.Slot

	// closed is set by Drain; a drained pool accepts nothing new
	closed bool
}

var errClosed = perr.Unavailablef("slot pool is shut down")

// NewPool creates an empty pool with capacity positions
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		panic("rotation: pool capacity must be positive")
	}
	return &Pool{
		byKey:     make(map[feeddom.EventKey]*domain.Slot, capacity),
		positions: make([]*domain.Slot, capacity),
	}
}

// Cap is the number of positions
func (p *Pool) Cap() int { return len(p.positions) }

// Len is the number of occupied positions
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byKey)
}

// Get looks a slot up by key
func (p *Pool) Get(key feeddom.EventKey) (*domain.Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byKey[key]
	return s, ok
}

// FreePosition is the lowest unoccupied position
func (p *Pool) FreePosition() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.positions {
		if s == nil {
			return i, true
		}
	}
	return 0, false
}

// Insert places s at its position, which must be free, under a key not yet present
func (p *Pool) Insert(s *domain.Slot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errClosed
	}
	if err := p.checkPosition(s.Position); err != nil {
		return err
	}
	if p.positions[s.Position] != nil {
		return perr.InvalidArgf("position %d is occupied by %s", s.Position, p.positions[s.Position].Key)
	}
	if _, dup := p.byKey[s.Key]; dup {
		return perr.InvalidArgf("key %s already has a slot", s.Key)
	}
	p.byKey[s.Key] = s
	p.positions[s.Position] = s
	return nil
}

// Replace swaps the occupant keyed old for s, which takes over old's position.
// The previous occupant is returned so the caller can terminate it
func (p *Pool) Replace(old feeddom.EventKey, s *domain.Slot) (*domain.Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errClosed
	}
	prev, ok := p.byKey[old]
	if !ok {
		return nil, perr.NotFoundf("no slot for %s", old)
	}
	if _, dup := p.byKey[s.Key]; dup {
		return nil, perr.InvalidArgf("key %s already has a slot", s.Key)
	}
	s.Position = prev.Position
	delete(p.byKey, old)
	p.byKey[s.Key] = s
	p.positions[s.Position] = s
	return prev, nil
}

// Advance records rev as the revision the slot keyed key has been fed up to
func (p *Pool) Advance(key feeddom.EventKey, rev feeddom.Revision) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byKey[key]
	if ok {
		s.LastRevision = rev
	}
	return ok
}

// Stale lists occupied keys missing from keep, by position ascending
func (p *Pool) Stale(keep map[feeddom.EventKey]struct{}) []feeddom.EventKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []feeddom.EventKey
	for _, s := range p.positions {
		if s == nil {
			continue
		}
		if _, ok := keep[s.Key]; !ok {
			out = append(out, s.Key)
		}
	}
	return out
}

// Snapshot copies the occupied slots by position ascending
func (p *Pool) Snapshot() []domain.Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Slot, 0, len(p.byKey))
	for _, s := range p.positions {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Drain empties and closes the pool and returns what it held, by position ascending
func (p *Pool) Drain() []*domain.Slot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var out []*domain.Slot
	for i, s := range p.positions {
		if s != nil {
			out = append(out, s)
			p.positions[i] = nil
		}
	}
	clear(p.byKey)
	return out
}

func (p *Pool) checkPosition(pos int) error {
	if pos < 0 || pos >= len(p.positions) {
		return perr.InvalidArgf("position %d out of range [0,%d)", pos, len(p.positions))
	}
	return nil
}
