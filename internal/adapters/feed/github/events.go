package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	perr "gourcewall/internal/platform/errors"
)

// maxEventsBody bounds one events page; 100 events is well under this
const maxEventsBody = 8 << 20

// EventsPath picks the events endpoint the way the feed is configured:
// org activity as seen by an authenticated user, public org activity, or a user's own activity
func EventsPath(org, user string, authenticated, all bool) (string, error) {
	switch {
	case org != "" && user != "" && authenticated && all:
		return "/users/" + url.PathEscape(user) + "/events/orgs/" + url.PathEscape(org), nil
	case org != "":
		return "/orgs/" + url.PathEscape(org) + "/events", nil
	case user != "":
		return "/users/" + url.PathEscape(user) + "/events", nil
	default:
		return "", perr.InvalidArgf("github events: an org or a user is required")
	}
}

// Events fetches one page of events (newest first) with optional etag
// notModified=true means the etag matched and events is nil
func (c *Client) Events(ctx context.Context, path, etag string) (events []Event, etagOut string, notModified bool, err error) {
	resp, err := c.Do(ctx, http.MethodGet, path+"?per_page=100", etag)
	if err != nil {
		return nil, "", false, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("github close body failed")
		}
	}()

	if resp.StatusCode == http.StatusNotModified {
		return nil, resp.Header.Get("ETag"), true, nil
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxEventsBody))
	if err != nil {
		return nil, "", false, perr.Wrap(err, perr.ErrorCodeUnavailable, "github read events body")
	}
	if err := json.Unmarshal(b, &events); err != nil {
		return nil, "", false, perr.Wrap(err, perr.ErrorCodeJSON, "github decode events")
	}
	return events, resp.Header.Get("ETag"), false, nil
}
