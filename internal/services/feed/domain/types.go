// Package domain defines the push feed types and ports
package domain

import (
	"strings"
	"time"
)

// EventKey identifies a repository branch, e.g. "acme/api/main"
// It is opaque to everything but the feed and stable across polls for the same branch
type EventKey string

// Revision is a commit id
type Revision string

// PushEvent is one observed push; immutable once created
type PushEvent struct {
	Key        EventKey
	Revision   Revision
	ObservedAt time.Time

	// Repo is the owner/name the key was built from, Branch the ref without refs/heads/
	Repo   string
	Branch string
}

// KeyFor builds the key for a repository and a ref, stripping a refs/heads/ prefix
func KeyFor(repo, ref string) (EventKey, string) {
	branch := strings.TrimPrefix(ref, "refs/heads/")
	return EventKey(repo + "/" + branch), branch
}

// Title is the key without its owner, with path separators spaced out for display
func (k EventKey) Title() string {
	s := string(k)
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	return strings.ReplaceAll(s, "/", " / ")
}

// Activity controls whether private events are shown
type Activity string

// Activity modes
const (
	ActivityAll    Activity = "all"
	ActivityPublic Activity = "public"
)
