// Package provider holds the HTTP clients for the upstream review sources.
package provider

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

const maxAttempts = 4

var (
	ErrUnauthorized = errors.New("provider: unauthorized")
	ErrForbidden    = errors.New("provider: forbidden")
)

// Options are the transport knobs shared by every provider client.
type Options struct {
	BaseURL         string
	RPS             int
	Timeout         time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

type transport struct {
	service  string
	hc       *http.Client
	rl       *rate.Limiter
	cb       *gobreaker.CircuitBreaker[[]byte]
	decorate func(*http.Request)
}

func newTransport(service string, o Options, decorate func(*http.Request)) *transport {
	if o.RPS <= 0 {
		o.RPS = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.BreakerFailures == 0 {
		o.BreakerFailures = 5
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = 30 * time.Second
	}

	observability.SetBreakerState(service, 0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Timeout:     o.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= o.BreakerFailures
		},
		// a missing review or a caller giving up says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("service", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			observability.SetBreakerState(name, breakerGauge(to))
		},
	})

	return &transport{
		service:  service,
		hc:       &http.Client{Timeout: o.Timeout},
		rl:       rate.NewLimiter(rate.Limit(o.RPS), o.RPS),
		cb:       cb,
		decorate: decorate,
	}
}

func breakerGauge(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// getJSON runs one logical GET through the breaker and decodes the body into out.
// endpoint is the low-cardinality label used for metrics.
func (t *transport) getJSON(ctx context.Context, endpoint, u string, out any) error {
	body, err := t.cb.Execute(func() ([]byte, error) {
		return t.get(ctx, endpoint, u)
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.service, endpoint, err)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", t.service, endpoint, err)
	}
	return nil
}

// get performs a GET with client-side rate limiting and retries.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (t *transport) get(ctx context.Context, endpoint, u string) ([]byte, error) {
	if err := t.rl.Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "flex-reviews/1.0")
		if t.decorate != nil {
			t.decorate(req)
		}

		start := time.Now()
		resp, err := t.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(t.service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = redact(err)
			if i < maxAttempts-1 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr
		}
		observability.ObserveExternal(t.service, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK, http.StatusCreated, http.StatusAccepted:
			b, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			return b, err

		case http.StatusNoContent:
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, nil

		case http.StatusNotFound:
			resp.Body.Close()
			return nil, domain.ErrNotFound

		case http.StatusUnauthorized:
			resp.Body.Close()
			return nil, ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return nil, ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < maxAttempts-1 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return nil, lastErr
}

// redact drops the request URL from transport errors; some providers take the key as a query param.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}

// sleepCtx waits for d or returns false early if ctx is done.
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

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent or invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
