package shutdown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Hooks collects cleanup work for the end of the process. Hooks run in
// reverse order of registration, so resources registered first (telemetry)
// are released last and can observe the others.
type Hooks struct {
	hooks []hook
}

// Add registers a hook. Nil hooks are ignored with a warning.
func (h *Hooks) Add(name string, fn func(context.Context) error) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	log.Debug().Str("hook", name).Msg("adding shutdown hook")
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// AddFunc registers a hook that cannot fail.
func (h *Hooks) AddFunc(name string, fn func()) {
	if fn == nil {
		log.Warn().Str("hook", name).Msg("attempted to add nil shutdown hook; ignoring")
		return
	}

	h.Add(name, func(context.Context) error {
		fn()
		return nil
	})
}

// Len reports the number of registered hooks.
func (h *Hooks) Len() int {
	return len(h.hooks)
}

// Execute runs every hook, most recently added first, within timeout. A
// failing hook does not stop the others; all failures are returned joined.
func (h *Hooks) Execute(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	l := log.Ctx(ctx)

	var errs []error
	for i := len(h.hooks) - 1; i >= 0; i-- {
		hk := h.hooks[i]
		hookLog := l.With().Str("hook", hk.name).Logger()

		if err := hk.fn(ctx); err != nil {
			hookLog.Warn().Err(err).Msg("shutdown failed")
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
			continue
		}
		hookLog.Debug().Msg("shutdown complete")
	}

	h.hooks = nil

	return errors.Join(errs...)
}
