package repokit

import (
	"context"
	"time"

	perr "gourcewall/internal/platform/errors"
)

// Guarder confirms its backends answer
type Guarder interface {
	Guard(context.Context) error
}

// GuardTimeout bounds MustGuard when ctx has no deadline of its own
const GuardTimeout = 5 * time.Second

// MustGuard panics with an Unavailable error when g does not answer. Startup only
func MustGuard(ctx context.Context, g Guarder) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, GuardTimeout)
		defer cancel()
	}
	if err := g.Guard(ctx); err != nil {
		panic(perr.Wrap(err, perr.ErrorCodeUnavailable, "startup guard"))
	}
}
