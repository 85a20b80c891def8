package github

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// rateInfo is what the API tells us about quota and pacing
type rateInfo struct {
	remaining    int
	hasRemaining bool
	reset        time.Time
	retryAfter   int
	pollInterval time.Duration
}

// limited reports whether a 403 is a rate limit rather than a permission problem
func (r rateInfo) limited() bool {
	return r.retryAfter > 0 || (r.hasRemaining && r.remaining <= 0)
}

func parseRateHeaders(h http.Header) rateInfo {
	var r rateInfo
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		r.remaining = atoi(v)
		r.hasRemaining = true
	}
	if sec := atoi(h.Get("X-RateLimit-Reset")); sec > 0 {
		r.reset = time.Unix(int64(sec), 0).UTC()
	}
	r.retryAfter = atoi(h.Get("Retry-After"))
	if p := atoi(h.Get("X-Poll-Interval")); p > 0 {
		r.pollInterval = time.Duration(p) * time.Second
	}
	return r
}

// computeWait decides how long to wait based on headers
func computeWait(r rateInfo, now time.Time) time.Duration {
	if r.retryAfter > 0 {
		return time.Duration(r.retryAfter) * time.Second
	}
	if r.hasRemaining && r.remaining <= 0 && r.reset.After(now) {
		return r.reset.Sub(now)
	}
	return 0
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	i, _ := strconv.Atoi(s)
	return i
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 512))
	return rc.Close()
}
