// Package service contains the slot rotation: the per-cycle scheduler and the driver loop around it
package service

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"gourcewall/internal/adapters/render/gource"
	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
	feeddom "gourcewall/internal/services/feed/domain"
	"gourcewall/internal/services/rotation/domain"
)

// Partition splits chronological events into the newest capacity entries and the older rest
func Partition(events []feeddom.PushEvent, capacity int) (displayable, overflow []feeddom.PushEvent) {
	if capacity < 0 {
		capacity = 0
	}
	cut := max(len(events)-capacity, 0)
	return events[cut:], events[:cut]
}

// Scheduler owns the pool and decides, once per cycle, which keys get a slot
type Scheduler struct {
	src      feeddom.SourcePort
	mirror   domain.MirrorPort
	launcher domain.LauncherPort
	side     *Sidecar
	pool     *Pool
	log      logger.Logger
}

// NewScheduler wires a scheduler around an empty pool of capacity slots.
// side may be nil
func NewScheduler(src feeddom.SourcePort, mirror domain.MirrorPort, launcher domain.LauncherPort, side *Sidecar, capacity int, log logger.Logger) *Scheduler {
	if src == nil || mirror == nil || launcher == nil {
		panic("rotation.Scheduler requires a source, a mirror and a launcher")
	}
	return &Scheduler{
		src:      src,
		mirror:   mirror,
		launcher: launcher,
		side:     side,
		pool:     NewPool(capacity),
		log:      log.With().Str("component", "scheduler").Logger(),
	}
}

// Pool exposes the slot pool
func (s *Scheduler) Pool() *Pool { return s.pool }

type attempt int

const (
	attemptOK attempt = iota
	attemptFailed
	attemptNoRoom
)

// cycle carries the per-cycle working sets
type cycle struct {
	ctx      context.Context
	log      logger.Logger
	report   *domain.CycleReport
	stale    []feeddom.EventKey
	overflow []feeddom.PushEvent
	// waiting maps keys in this cycle's overflow to their index, oldest first
	waiting map[feeddom.EventKey]int
}

// RunCycle polls once and reconciles the pool with what was observed.
// A feed failure is returned untouched and leaves the pool as it was; every per-candidate failure is absorbed
func (s *Scheduler) RunCycle(ctx context.Context) (domain.CycleReport, error) {
	rep := domain.CycleReport{ID: uuid.NewString()}
	ctx = logger.WithCycle(ctx, rep.ID)
	log := s.log.With().Str("cycle_id", rep.ID).Logger()

	events, err := s.src.Poll(ctx)
	if err != nil {
		ev := log.Error()
		if perr.Transient(perr.CodeOf(err)) {
			ev = log.Warn()
		}
		ev.Err(err).Str("code", perr.CodeOf(err).String()).Msg("feed poll failed; cycle skipped")
		return rep, err
	}
	rep.Events = len(events)
	if len(events) == 0 {
		log.Debug().Msg("nothing new")
		return rep, nil
	}

	displayable, overflow := Partition(events, s.pool.Cap())
	rep.Displayable, rep.Overflow = len(displayable), len(overflow)

	keep := make(map[feeddom.EventKey]struct{}, len(displayable))
	for _, ev := range displayable {
		keep[ev.Key] = struct{}{}
	}
	c := &cycle{
		ctx:      ctx,
		log:      log,
		report:   &rep,
		stale:    s.pool.Stale(keep),
		overflow: slices.Clone(overflow),
		waiting:  make(map[feeddom.EventKey]int, len(overflow)),
	}
	for i, ev := range overflow {
		c.waiting[ev.Key] = i
	}

	candidates := slices.Clone(displayable)
	for i := 0; i < len(candidates); i++ {
		if ctx.Err() != nil {
			log.Debug().Msg("cycle interrupted")
			break
		}
		if s.try(c, candidates[i]) != attemptFailed {
			continue
		}
		rep.Failed++
		if len(c.overflow) == 0 {
			log.Debug().Str("key", string(candidates[i].Key)).Msg("no overflow left to fall back on")
			continue
		}
		fb := c.overflow[len(c.overflow)-1]
		c.overflow = c.overflow[:len(c.overflow)-1]
		rep.Fallbacks++
		log.Debug().Str("failed", string(candidates[i].Key)).Str("fallback", string(fb.Key)).Msg("falling back to overflow")
		candidates = slices.Insert(candidates, i+1, fb)
	}

	log.Info().
		Int("events", rep.Events).
		Int("displayable", rep.Displayable).
		Int("overflow", rep.Overflow).
		Int("created", rep.Created).
		Int("updated", rep.Updated).
		Int("replaced", rep.Replaced).
		Int("failed", rep.Failed).
		Int("fallbacks", rep.Fallbacks).
		Int("slots", s.pool.Len()).
		Msg("cycle done")
	return rep, nil
}

// try runs one candidate through the update, replace or create path
func (s *Scheduler) try(c *cycle, ev feeddom.PushEvent) attempt {
	log := c.log.With().Str("key", string(ev.Key)).Str("rev", string(ev.Revision)).Logger()

	if slot, ok := s.pool.Get(ev.Key); ok {
		c.dropStale(ev.Key)
		return s.update(c, slot, ev, log)
	}

	victimKey, pos, ok := s.placement(c)
	if !ok {
		log.Debug().Msg("no free or stale position; candidate skipped")
		c.report.NoRoom++
		return attemptNoRoom
	}
	free := victimKey == ""

	res := s.mirror.Sync(c.ctx, ev)
	if !res.OK() {
		log.Warn().Err(res.Cause).Msg("repository gone; candidate abandoned")
		return attemptFailed
	}
	s.side.Fire(c.ctx, res.Path, ev)

	hist, err := s.mirror.History(c.ctx, res.Path, "", ev.Revision)
	if err != nil {
		log.Warn().Err(err).Msg("history unreadable; candidate abandoned")
		return attemptFailed
	}

	if !free {
		victim, ok := s.pool.Get(victimKey)
		if !ok {
			c.dropStale(victimKey)
			log.Debug().Str("evicted", string(victimKey)).Msg("stale slot vanished; pool is shutting down")
			return attemptNoRoom
		}
		pos = victim.Position
		w, err := s.launcher.Spawn(c.ctx, gource.SpawnSpec{Key: ev.Key, Position: pos, RepoPath: res.Path}, hist)
		if err != nil {
			log.Warn().Err(err).Msg("renderer spawn failed; candidate abandoned")
			return attemptFailed
		}
		prev, err := s.pool.Replace(victimKey, &domain.Slot{Key: ev.Key, LastRevision: ev.Revision, Path: res.Path, Worker: w})
		if err != nil {
			// the pool refused; do not leak the new process
			_ = w.Terminate()
			log.Error().Err(err).Msg("slot replace rejected")
			return attemptFailed
		}
		c.dropStale(victimKey)
		if err := prev.Worker.Terminate(); err != nil {
			log.Warn().Err(err).Str("evicted", string(prev.Key)).Msg("terminate evicted renderer")
		}
		c.report.Replaced++
		log.Info().Int("position", pos).Str("evicted", string(prev.Key)).Str("worker_id", w.ID()).Msg("slot replaced")
		return attemptOK
	}

	w, err := s.launcher.Spawn(c.ctx, gource.SpawnSpec{Key: ev.Key, Position: pos, RepoPath: res.Path}, hist)
	if err != nil {
		log.Warn().Err(err).Msg("renderer spawn failed; candidate abandoned")
		return attemptFailed
	}
	if err := s.pool.Insert(&domain.Slot{Position: pos, Key: ev.Key, LastRevision: ev.Revision, Path: res.Path, Worker: w}); err != nil {
		_ = w.Terminate()
		log.Error().Err(err).Msg("slot insert rejected")
		return attemptFailed
	}
	c.report.Created++
	log.Info().Int("position", pos).Str("worker_id", w.ID()).Msg("slot created")
	return attemptOK
}

// placement picks where a key without a slot goes: a stale slot to reclaim (victim set) or a
// free position. Stale keys still waiting in this cycle's overflow are reclaimed only when
// nothing else is left, oldest overflow entry first, so a later fallback to one of them
// cannot land it at a different position
func (s *Scheduler) placement(c *cycle) (victim feeddom.EventKey, pos int, ok bool) {
	for _, k := range c.stale {
		if _, w := c.waiting[k]; !w {
			return k, -1, true
		}
	}
	if p, free := s.pool.FreePosition(); free {
		return "", p, true
	}
	for _, k := range c.stale {
		if victim == "" || c.waiting[k] < c.waiting[victim] {
			victim = k
		}
	}
	return victim, -1, victim != ""
}

// update feeds an occupied slot everything between its last revision and ev
func (s *Scheduler) update(c *cycle, slot *domain.Slot, ev feeddom.PushEvent, log logger.Logger) attempt {
	if slot.LastRevision == ev.Revision {
		log.Debug().Msg("slot already at revision")
		c.report.Updated++
		return attemptOK
	}

	res := s.mirror.Sync(c.ctx, ev)
	if !res.OK() {
		log.Warn().Err(res.Cause).Msg("repository gone; update abandoned")
		return attemptFailed
	}
	s.side.Fire(c.ctx, res.Path, ev)

	delta, err := s.mirror.History(c.ctx, res.Path, slot.LastRevision, ev.Revision)
	if err != nil {
		log.Warn().Err(err).Msg("delta unreadable; update abandoned")
		return attemptFailed
	}
	slot.Worker.Feed(delta)
	s.pool.Advance(ev.Key, ev.Revision)
	c.report.Updated++
	log.Debug().Int("position", slot.Position).Int("bytes", len(delta)).Msg("slot fed")
	return attemptOK
}

func (c *cycle) dropStale(key feeddom.EventKey) {
	if i := slices.Index(c.stale, key); i >= 0 {
		c.stale = slices.Delete(c.stale, i, i+1)
	}
}
