// Package service contains the push feed workflow
package service

import (
	"context"
	"slices"
	"time"

	gh "gourcewall/internal/adapters/feed/github"
	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
	"gourcewall/internal/services/feed/domain"
)

// EventsAPI is the slice of the GitHub client the source needs
type EventsAPI interface {
	Events(ctx context.Context, path, etag string) ([]gh.Event, string, bool, error)
}

// Config carries runtime knobs for the source
type Config struct {
	// Path is the events endpoint, see gh.EventsPath
	Path     string
	Activity domain.Activity

	// ResetCursor ignores the persisted cursor on the first poll
	ResetCursor bool
}

// Source polls the events endpoint and turns it into ordered, deduplicated pushes
// It is driven by one goroutine (the scheduler) and is not safe for concurrent Poll calls
type Source struct {
	api    EventsAPI
	cursor domain.CursorStore
	cfg    Config
	log    logger.Logger

	cur    time.Time
	loaded bool
	etag   string
}

// New constructs a Source
func New(api EventsAPI, cursor domain.CursorStore, cfg Config, log logger.Logger) *Source {
	if api == nil || cursor == nil {
		panic("feed.Source requires an events api and a cursor store")
	}
	if cfg.Activity == "" {
		cfg.Activity = domain.ActivityPublic
	}
	return &Source{
		api:    api,
		cursor: cursor,
		cfg:    cfg,
		log:    log.With().Str("component", "feed").Str("path", cfg.Path).Logger(),
	}
}

var _ domain.SourcePort = (*Source)(nil)

// Poll fetches everything newer than the cursor and returns it oldest first, one entry per key.
// The cursor only moves once a whole page was fetched, decoded and persisted.
// Errors carry an Unavailable, TooManyRequests, Unauthorized or JSON code
func (s *Source) Poll(ctx context.Context) ([]domain.PushEvent, error) {
	if !s.loaded {
		if !s.cfg.ResetCursor {
			at, err := s.cursor.Load(ctx)
			if err != nil {
				return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "feed load cursor")
			}
			s.cur = at
		}
		s.loaded = true
	}

	raw, etag, notModified, err := s.api.Events(ctx, s.cfg.Path, s.etag)
	if err != nil {
		return nil, feedError(err)
	}
	if notModified {
		s.log.Debug().Msg("feed not modified")
		return nil, nil
	}

	pushes := s.filter(raw)
	if len(pushes) == 0 {
		s.etag = etag
		s.log.Debug().Int("raw", len(raw)).Msg("no new pushes")
		return nil, nil
	}

	newest := pushes[len(pushes)-1].ObservedAt
	if err := s.cursor.Save(ctx, newest); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "feed save cursor")
	}
	s.cur = newest
	s.etag = etag

	out := Dedup(pushes)
	s.log.Debug().
		Int("raw", len(raw)).
		Int("pushes", len(pushes)).
		Int("keys", len(out)).
		Time("cursor", newest).
		Msg("feed polled")
	return out, nil
}

// Cursor is the in-memory watermark
func (s *Source) Cursor() time.Time { return s.cur }

// filter keeps new push events, converted and in chronological order
func (s *Source) filter(raw []gh.Event) []domain.PushEvent {
	out := make([]domain.PushEvent, 0, len(raw))
	// the API answers newest first
	for i := len(raw) - 1; i >= 0; i-- {
		e := raw[i]
		if e.Type != gh.PushEventType {
			continue
		}
		if s.cfg.Activity == domain.ActivityPublic && !e.Public {
			continue
		}
		if !e.CreatedAt.After(s.cur) {
			continue
		}
		if e.Repo.Name == "" || e.Payload.Ref == "" || e.Payload.Head == "" {
			s.log.Debug().Str("event_id", e.ID).Msg("push event without repo, ref or head; skipped")
			continue
		}
		key, branch := domain.KeyFor(e.Repo.Name, e.Payload.Ref)
		out = append(out, domain.PushEvent{
			Key:        key,
			Revision:   domain.Revision(e.Payload.Head),
			ObservedAt: e.CreatedAt,
			Repo:       e.Repo.Name,
			Branch:     branch,
		})
	}
	slices.SortStableFunc(out, func(a, b domain.PushEvent) int { return a.ObservedAt.Compare(b.ObservedAt) })
	return out
}

// Dedup keeps the latest occurrence of every key. A key that recurs moves to its latest place,
// so the result is ordered by each key's latest occurrence. events must be chronological
func Dedup(events []domain.PushEvent) []domain.PushEvent {
	if len(events) == 0 {
		return nil
	}
	latest := make(map[domain.EventKey]int, len(events))
	for i, e := range events {
		latest[e.Key] = i
	}
	out := make([]domain.PushEvent, 0, len(latest))
	for i, e := range events {
		if latest[e.Key] == i {
			out = append(out, e)
		}
	}
	return out
}

// feedError makes sure transport failures surface with a feed code
func feedError(err error) error {
	switch perr.CodeOf(err) {
	case perr.ErrorCodeUnavailable, perr.ErrorCodeTooManyRequests, perr.ErrorCodeUnauthorized, perr.ErrorCodeJSON:
		return err
	default:
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "feed poll")
	}
}
