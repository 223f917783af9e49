package csrf

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Fetcher retrieves a fresh token from the token-issuing endpoint.
type Fetcher func(ctx context.Context) (string, error)

// State is the observable state of a Cache.
type State int

const (
	StateEmpty State = iota
	StateFetching
	StateReady
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// pendingFetch is the shared handle for an in-flight fetch. The result fields
// are written once, before done is closed.
type pendingFetch struct {
	done       chan struct{}
	generation uint64
	token      string
	err        error
}

func (f *pendingFetch) wait(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cache holds the current CSRF token and coalesces concurrent requests for
// it: however many callers ask while no token is held, only one fetch is
// outstanding at a time and every caller joined to it sees the same result.
//
// ClearToken discards the held token and invalidates any fetch already in
// flight. A fetch that lands after a clear is not stored; callers arriving
// after the clear wait for it to finish, then start a fresh fetch.
type Cache struct {
	fetch        Fetcher
	fetchTimeout time.Duration

	mu         sync.Mutex
	token      string
	ready      bool
	inflight   *pendingFetch
	generation uint64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithFetchTimeout bounds each fetch. A zero value disables the bound.
func WithFetchTimeout(timeout time.Duration) CacheOption {
	return func(c *Cache) {
		c.fetchTimeout = timeout
	}
}

// NewCache creates an empty cache that obtains tokens using fetch.
func NewCache(fetch Fetcher, opts ...CacheOption) *Cache {
	initMetrics()

	c := &Cache{
		fetch:        fetch,
		fetchTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// GetToken returns the held token, joins an in-flight fetch, or starts a new
// one. Failures are reported as ErrTokenUnavailable. If ctx ends while
// waiting, the context error is returned and the fetch carries on for any
// other waiters.
func (c *Cache) GetToken(ctx context.Context) (string, error) {
	for {
		c.mu.Lock()
		if c.ready {
			token := c.token
			c.mu.Unlock()
			recordLookup(ctx, StateReady)
			return token, nil
		}

		f := c.inflight
		observed := StateFetching
		if f == nil {
			// the decision to fetch and the recording of the handle happen
			// under the same lock
			f = c.startFetch(ctx)
			observed = StateEmpty
		}
		stale := f.generation != c.generation
		c.mu.Unlock()

		recordLookup(ctx, observed)

		if err := f.wait(ctx); err != nil {
			return "", err
		}

		if stale {
			// cleared while this fetch was outstanding: its result is not
			// used, go around and fetch again
			continue
		}

		if f.err != nil {
			return "", fmt.Errorf("%w: %w", ErrTokenUnavailable, f.err)
		}

		return f.token, nil
	}
}

// startFetch must be called with c.mu held.
func (c *Cache) startFetch(ctx context.Context) *pendingFetch {
	f := &pendingFetch{
		done:       make(chan struct{}),
		generation: c.generation,
	}
	c.inflight = f

	// The fetch belongs to every caller that joins it, so it must not be
	// cancelled by the caller that happened to start it.
	fetchCtx := context.WithoutCancel(ctx)
	go c.runFetch(fetchCtx, f)

	return f
}

func (c *Cache) runFetch(ctx context.Context, f *pendingFetch) {
	var cancel context.CancelFunc = func() {}
	if c.fetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
	}
	defer cancel()

	start := time.Now()
	token, err := c.fetch(ctx)
	if err == nil && token == "" {
		err = &FetchError{Err: fmt.Errorf("empty token")}
	}
	duration := time.Since(start)

	c.mu.Lock()
	if c.inflight == f {
		c.inflight = nil
	}

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case f.generation != c.generation:
		outcome = "discarded"
	default:
		c.token = token
		c.ready = true
	}
	f.token, f.err = token, err
	c.mu.Unlock()

	defer close(f.done)

	recordFetch(ctx, outcome, duration)

	switch outcome {
	case "error":
		log.Warn().Err(err).Dur("duration", duration).Msg("csrf: token fetch failed")
	case "discarded":
		log.Info().Dur("duration", duration).Msg("csrf: token cleared during fetch, result discarded")
	default:
		log.Debug().Dur("duration", duration).Msg("csrf: token fetched")
	}
}

// ClearToken discards the held token. An in-flight fetch is not cancelled,
// but its result will not populate the cache.
func (c *Cache) ClearToken() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = ""
	c.ready = false
	c.generation++
}

// HasToken reports whether a token is held.
func (c *Cache) HasToken() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ready
}

// State reports the current state. A fetch that has been invalidated by
// ClearToken but not yet landed still counts as Fetching.
func (c *Cache) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.ready:
		return StateReady
	case c.inflight != nil:
		return StateFetching
	default:
		return StateEmpty
	}
}
