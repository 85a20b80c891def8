package domain

import (
	"context"

	"gourcewall/internal/adapters/render/gource"
	"gourcewall/internal/adapters/vcs/git"
	feeddom "gourcewall/internal/services/feed/domain"
)

// MirrorPort syncs working copies and reads their history
type MirrorPort interface {
	Sync(ctx context.Context, ev feeddom.PushEvent) git.SyncResult
	History(ctx context.Context, path string, from, to feeddom.Revision) ([]byte, error)
}

// Worker is one running renderer bound to a slot
type Worker interface {
	ID() string
	Feed(history []byte)
	Terminate() error
	Done() <-chan struct{}
}

// LauncherPort starts renderers
type LauncherPort interface {
	Spawn(ctx context.Context, spec gource.SpawnSpec, history []byte) (Worker, error)
}

// SideActivity is best-effort work run after a successful sync, such as avatars or a sound.
// It never affects the cycle
type SideActivity func(ctx context.Context, path string, ev feeddom.PushEvent) error

// DriverPort runs the rotation
type DriverPort interface {
	Run(ctx context.Context) error
	RunOnce(ctx context.Context) error
	Shutdown(ctx context.Context) error
	State() State
}
