// Package repo provides cursor stores for the push feed
package repo

import (
	"context"
	"sync"
	"time"

	"gourcewall/internal/services/feed/domain"
)

// Memory keeps the cursor for the life of the process
type Memory struct {
	mu sync.Mutex
	at time.Time
}

// NewMemory constructs an empty in-memory cursor
func NewMemory() *Memory { return &Memory{} }

var _ domain.CursorStore = (*Memory)(nil)

// Load returns the stored cursor
func (m *Memory) Load(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.at, nil
}

// Save stores at; the cursor never moves backwards
func (m *Memory) Save(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.After(m.at) {
		m.at = at
	}
	return nil
}
