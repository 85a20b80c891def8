package repo

import (
	"context"
	"time"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/store"
	"gourcewall/internal/services/feed/domain"
)

// Redis keeps the cursor under "<prefix>:last_update" as RFC3339Nano text
type Redis struct {
	kv  store.KV
	key string
}

// NewRedis binds a cursor to the given kv seam; prefix namespaces several walls on one redis
func NewRedis(kv store.KV, prefix string) *Redis {
	if kv == nil {
		panic("feed.repo.Redis requires a non nil KV")
	}
	return &Redis{kv: kv, key: prefix + ":last_update"}
}

var _ domain.CursorStore = (*Redis)(nil)

// Key is the redis key in use
func (r *Redis) Key() string { return r.key }

// Load parses the stored value; a missing key is the zero time
func (r *Redis) Load(ctx context.Context) (time.Time, error) {
	v, ok, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return time.Time{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis get %s", r.key)
	}
	if !ok {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "redis cursor %s holds %q", r.key, v)
	}
	return at, nil
}

// Save overwrites the stored cursor
func (r *Redis) Save(ctx context.Context, at time.Time) error {
	if err := r.kv.Set(ctx, r.key, at.UTC().Format(time.RFC3339Nano)); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis set %s", r.key)
	}
	return nil
}
