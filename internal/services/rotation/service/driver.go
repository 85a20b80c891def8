package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
	"gourcewall/internal/services/rotation/domain"
)

// DriverConfig carries the loop timings
type DriverConfig struct {
	Refresh       time.Duration
	ShutdownGrace time.Duration
}

// Driver repeats scheduler cycles and guarantees every renderer is terminated on the way out
type Driver struct {
	sched *Scheduler
	cfg   DriverConfig
	log   logger.Logger

	state atomic.Int32

	shutOnce sync.Once
	shutErr  error
}

var _ domain.DriverPort = (*Driver)(nil)

// NewDriver constructs a Driver around sched
func NewDriver(sched *Scheduler, cfg DriverConfig, log logger.Logger) *Driver {
	if sched == nil {
		panic("rotation.Driver requires a scheduler")
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = 10 * time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	return &Driver{sched: sched, cfg: cfg, log: log.With().Str("component", "driver").Logger()}
}

// State is the current lifecycle state
func (d *Driver) State() domain.State { return domain.State(d.state.Load()) }

func (d *Driver) set(s domain.State) {
	d.state.Store(int32(s))
	d.log.Debug().Str("state", s.String()).Msg("driver state")
}

// Run cycles until ctx is canceled, sleeping Refresh between the end of one cycle and the next.
// Feed failures only skip a cycle. The returned error comes from Shutdown
func (d *Driver) Run(ctx context.Context) (err error) {
	defer d.finish(&err)

	for {
		d.set(domain.StateRunning)
		_, _ = d.sched.RunCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}

		d.set(domain.StateSleeping)
		t := time.NewTimer(d.cfg.Refresh)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// RunOnce runs a single cycle, then keeps the renderers up until ctx ends or all of them exit.
// A feed failure is returned together with any shutdown error
func (d *Driver) RunOnce(ctx context.Context) (err error) {
	defer d.finish(&err)

	d.set(domain.StateRunning)
	if _, err := d.sched.RunCycle(ctx); err != nil {
		return err
	}

	d.set(domain.StateSleeping)
	slots := d.sched.Pool().Snapshot()
	if len(slots) == 0 {
		d.log.Info().Msg("single cycle placed nothing")
		return nil
	}
	d.log.Info().Int("slots", len(slots)).Msg("single cycle done; waiting for renderers or interrupt")

	all := make(chan struct{})
	go func() {
		for _, s := range slots {
			select {
			case <-s.Worker.Done():
			case <-ctx.Done():
				return
			}
		}
		close(all)
	}()
	select {
	case <-ctx.Done():
		return nil
	case <-all:
	}
	return exitErrors(slots)
}

// exitErrors collects the failures of renderers that ended on their own
func exitErrors(slots []domain.Slot) error {
	var merr *multierror.Error
	for _, s := range slots {
		w, ok := s.Worker.(interface{ ExitErr() error })
		if !ok {
			continue
		}
		if err := w.ExitErr(); err != nil {
			merr = multierror.Append(merr, perr.Wrapf(err, perr.ErrorCodeUnknown, "renderer for %s exited", s.Key))
		}
	}
	return merr.ErrorOrNil()
}

// finish shuts down on every exit path and re-raises panics once the renderers are gone
func (d *Driver) finish(errp *error) {
	r := recover()
	if serr := d.Shutdown(context.Background()); serr != nil {
		*errp = multierror.Append(*errp, serr).ErrorOrNil()
	}
	if r != nil {
		d.log.Error().Interface("panic", r).Msg("driver panicked; renderers terminated")
		panic(r)
	}
}

// Shutdown terminates every renderer in the pool once and waits up to the grace period for them to exit.
// Later calls return the first result
func (d *Driver) Shutdown(ctx context.Context) error {
	d.shutOnce.Do(func() {
		d.set(domain.StateShuttingDown)
		slots := d.sched.Pool().Drain()

		var merr *multierror.Error
		for _, s := range slots {
			if err := s.Worker.Terminate(); err != nil {
				merr = multierror.Append(merr, perr.Wrapf(err, perr.ErrorCodeUnknown, "terminate %s", s.Key))
			}
		}

		gctx, cancel := context.WithTimeout(ctx, d.cfg.ShutdownGrace)
		defer cancel()
		for _, s := range slots {
			select {
			case <-s.Worker.Done():
			case <-gctx.Done():
				merr = multierror.Append(merr, perr.Wrapf(gctx.Err(), perr.ErrorCodeUnavailable, "renderer for %s still running", s.Key))
			}
		}

		if err := d.sched.side.Wait(gctx); err != nil {
			d.log.Debug().Err(err).Msg("side activities abandoned")
		}

		d.shutErr = merr.ErrorOrNil()
		d.set(domain.StateStopped)
		ev := d.log.Info()
		if d.shutErr != nil {
			ev = d.log.Warn().Err(d.shutErr)
		}
		ev.Int("terminated", len(slots)).Msg("rotation stopped")
	})
	return d.shutErr
}
