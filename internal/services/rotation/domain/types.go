// Package domain defines the slot rotation types and ports
package domain

import (
	feeddom "gourcewall/internal/services/feed/domain"
)

// Slot is one occupied grid cell
type Slot struct {
	Position     int
	Key          feeddom.EventKey
	LastRevision feeddom.Revision
	Path         string
	Worker       Worker
}

// CycleReport summarizes one scheduling cycle
type CycleReport struct {
	ID          string
	Events      int
	Displayable int
	Overflow    int

	Created  int
	Updated  int
	Replaced int
	Failed   int

	// Fallbacks counts overflow entries promoted after a failure
	Fallbacks int

	// NoRoom counts fallback candidates with neither a free nor a stale position left
	NoRoom int
}

// State is the driver lifecycle
type State int

// Driver states
const (
	StateIdle State = iota
	StateRunning
	StateSleeping
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
