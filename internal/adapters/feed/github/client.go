// Package github provides a resilient GitHub REST v3 client for the push feed
package github

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
)

const (
	baseURLDefault   = "https://api.github.com"
	defaultTimeout   = 10 * time.Second
	defaultUA        = "gourcewall"
	defaultMaxRetry  = 3
	defaultRetryBase = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// Options configures the Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Token wins over User/Pass when both are set
	Token string
	User  string
	Pass  string

	// Retry config for transient and rate limited responses
	MaxRetries int
	RetryBase  time.Duration
}

// Client is a minimal GitHub REST client with auth, retries and ETag support
type Client struct {
	http *http.Client
	opts Options
	auth string
	log  logger.Logger
	now  func() time.Time

	// pace turns a computed wait into the one actually slept; tests record and shrink it
	pace func(time.Duration) time.Duration

	pollInterval atomic.Int64
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetry
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		auth: authHeader(o),
		log:  *logger.Named("github"),
		now:  time.Now,
		pace: func(d time.Duration) time.Duration { return d },
	}
}

// authHeader builds the Authorization value: token first, then basic when both user and pass exist
func authHeader(o Options) string {
	if o.Token != "" {
		return "token " + o.Token
	}
	if o.User != "" && o.Pass != "" {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(o.User+":"+o.Pass))
	}
	return ""
}

// Authenticated reports whether requests carry credentials
func (c *Client) Authenticated() bool { return c.auth != "" }

// PollInterval is the last X-Poll-Interval the API asked for (zero when never seen)
func (c *Client) PollInterval() time.Duration { return time.Duration(c.pollInterval.Load()) }

// retryable marks a failure worth another attempt. wait, when set, replaces the backoff
type retryable struct {
	err  error
	wait time.Duration
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

func isRetryable(err error) bool {
	var r *retryable
	return errors.As(err, &r)
}

// Do issues a request with auth headers, etag, retries, and rate limit handling.
// etagIn is optional and adds If-None-Match for conditional requests
func (c *Client) Do(ctx context.Context, method, path string, etagIn string) (*http.Response, error) {
	var (
		resp    *http.Response
		attempt int
	)
	err := retry.Do(
		func() error {
			r, err := c.once(ctx, method, path, etagIn, attempt)
			attempt++
			resp = r
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.opts.MaxRetries)+1),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.DelayType(c.delay),
		retry.OnRetry(func(n uint, err error) {
			c.log.Warn().Err(err).Uint("attempt", n).Str("path", path).Msg("github request retrying")
		}),
	)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "github request canceled")
	}
	var r *retryable
	if errors.As(err, &r) {
		return nil, r.err
	}
	return nil, err
}

// delay is the retry-go DelayType: the server's wait when it named one, else capped backoff
func (c *Client) delay(n uint, err error, _ *retry.Config) time.Duration {
	d := c.backoff(int(n))
	var r *retryable
	if errors.As(err, &r) && r.wait > 0 {
		d = r.wait
	}
	return c.pace(d)
}

// once is a single attempt. Failures wrapped in *retryable are tried again by Do
func (c *Client) once(ctx context.Context, method, path, etagIn string, attempt int) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "github new request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if etagIn != "" {
		req.Header.Set("If-None-Match", etagIn)
	}
	if c.auth != "" {
		req.Header.Set("Authorization", c.auth)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryable{err: perr.Wrap(err, perr.ErrorCodeUnavailable, "github transport")}
	}

	rl := parseRateHeaders(resp.Header)
	if rl.pollInterval > 0 {
		c.pollInterval.Store(int64(rl.pollInterval))
	}
	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Int("attempt", attempt).
		Dur("latency", c.now().Sub(start)).
		Int("rate_remaining", rl.remaining).
		Time("rate_reset", rl.reset).
		Dur("poll_interval", rl.pollInterval).
		Msg("github http response")

	code := resp.StatusCode
	switch {
	case code == http.StatusOK, code == http.StatusNotModified:
		return resp, nil
	case code == http.StatusTooManyRequests, code == http.StatusForbidden && rl.limited():
		_ = drainAndClose(resp.Body)
		return nil, &retryable{
			err:  perr.Newf(perr.ErrorCodeTooManyRequests, "github rate limited"),
			wait: computeWait(rl, c.now()),
		}
	case code == http.StatusUnauthorized:
		_ = drainAndClose(resp.Body)
		return nil, perr.Newf(perr.ErrorCodeUnauthorized, "github rejected credentials")
	case code == http.StatusForbidden:
		_ = drainAndClose(resp.Body)
		return nil, perr.Newf(perr.ErrorCodeUnauthorized, "github forbade access to %s", path)
	case code >= 500:
		_ = drainAndClose(resp.Body)
		return nil, &retryable{err: perr.Newf(perr.ErrorCodeUnavailable, "github server error %d", code)}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		return nil, perr.Newf(perr.ErrorCodeUnavailable, "github unexpected status %d body %s", code, string(body))
	}
}

// backoff doubles RetryBase per attempt up to maxBackoff
func (c *Client) backoff(attempt int) time.Duration {
	d := c.opts.RetryBase << uint(attempt)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
