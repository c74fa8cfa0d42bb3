// internal/adapters/upstream/client.go
package upstream

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"stellerom/internal/adapters/observability"
	"stellerom/internal/domain"
)

// MaxRetries is the number of retries after the first attempt for transport failures.
const MaxRetries = 3

const maxErrorBody = 4096

type Options struct {
	Timeout time.Duration
	RPS     int
	// Backoff overrides the retry delay; nil uses exponential backoff with jitter.
	Backoff func(attempt int) time.Duration
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Client talks JSON to one upstream service.
type Client struct {
	service string
	base    string
	hc      *http.Client
	rl      *rate.Limiter
	backoff func(int) time.Duration
}

func New(service, base string, opts Options) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid base URL %q", service, base)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 20
	}
	if opts.Backoff == nil {
		opts.Backoff = backoff
	}
	return &Client{
		service: service,
		base:    NormalizeBase(base),
		hc:      &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		rl:      rate.NewLimiter(rate.Limit(opts.RPS), opts.RPS),
		backoff: opts.Backoff,
	}, nil
}

// NormalizeBase trims trailing slashes so equal endpoints compare equal.
func NormalizeBase(base string) string { return strings.TrimRight(strings.TrimSpace(base), "/") }

func (c *Client) Base() string { return c.base }

// Budget is the longest Do can run with the given per-attempt timeout: every
// attempt timing out plus the largest backoff between attempts.
func Budget(timeout time.Duration) time.Duration {
	d := time.Duration(MaxRetries+1) * timeout
	for i := 0; i < MaxRetries; i++ {
		d += maxBackoff(i)
	}
	return d
}

type Response struct {
	StatusCode int
	Body       []byte
}

// Do sends one request. Transport failures are retried up to MaxRetries times
// (only dial failures for non-idempotent methods); any non-2xx status is
// returned immediately as *domain.UpstreamError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) (*Response, error) {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		payload = b
	}

	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := endpointLabel(path)
	var lastErr error
	for i := 0; i <= MaxRetries; i++ {
		// build a fresh request each attempt
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "stellerom-web/1.0")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(c.service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if !retryable(method, err) {
				return nil, &domain.TransientTransportError{Service: c.service, Attempts: i + 1, Err: err}
			}
			if i < MaxRetries {
				log.Warn().Err(err).
					Str("service", c.service).
					Str("method", method).
					Str("path", path).
					Int("attempt", i+1).
					Msg("upstream transport failure, retrying")
				if sleepCtx(ctx, c.backoff(i)) {
					continue
				}
				return nil, ctx.Err()
			}
			return nil, &domain.TransientTransportError{Service: c.service, Attempts: i + 1, Err: lastErr}
		}

		raw, rerr := io.ReadAll(resp.Body)
		resp.Body.Close()
		observability.ObserveExternal(c.service, endpoint, resp.StatusCode, time.Since(start))
		log.Debug().
			Str("service", c.service).
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("duration", time.Since(start)).
			Msg("upstream request")

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if len(raw) > maxErrorBody {
				raw = raw[:maxErrorBody]
			}
			return nil, &domain.UpstreamError{
				Service:    c.service,
				Method:     method,
				URL:        target,
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(raw)),
			}
		}
		if rerr != nil {
			return nil, &domain.TransientTransportError{Service: c.service, Attempts: i + 1, Err: rerr}
		}
		return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
	}

	return nil, &domain.TransientTransportError{Service: c.service, Attempts: MaxRetries + 1, Err: lastErr}
}

// retryable reports whether a transport error may be retried for method.
// Idempotent requests retry any transport failure; others only when the
// connection was never established.
func retryable(method string, err error) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	var op *net.OpError
	return errors.As(err, &op) && op.Op == "dial"
}

// endpointLabel replaces id segments so metric labels stay bounded.
func endpointLabel(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func maxBackoff(i int) time.Duration {
	base := time.Duration(1<<i) * 100 * time.Millisecond
	return base + base/2
}

// backoff returns an exponential backoff delay with concurrency-safe jitter.
// Base doubles each attempt (100ms, 200ms, 400ms), with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 100 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
