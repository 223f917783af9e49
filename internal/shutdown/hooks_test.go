package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_Add(t *testing.T) {
	t.Run("adds hook", func(t *testing.T) {
		hooks := &Hooks{}
		hooks.Add("test", func(ctx context.Context) error { return nil })

		require.Equal(t, 1, hooks.Len())
		assert.Equal(t, "test", hooks.hooks[0].name)
	})

	t.Run("ignores nil hook", func(t *testing.T) {
		hooks := &Hooks{}
		hooks.Add("nil-hook", nil)
		hooks.AddFunc("nil-func", nil)

		assert.Equal(t, 0, hooks.Len())
	})
}

func TestHooks_Execute(t *testing.T) {
	t.Run("runs hooks in reverse order", func(t *testing.T) {
		hooks := &Hooks{}
		var order []string

		hooks.AddFunc("telemetry", func() { order = append(order, "telemetry") })
		hooks.AddFunc("session", func() { order = append(order, "session") })
		hooks.Add("client", func(ctx context.Context) error {
			order = append(order, "client")
			return nil
		})

		err := hooks.Execute(context.Background(), time.Second)

		require.NoError(t, err)
		assert.Equal(t, []string{"client", "session", "telemetry"}, order)
		assert.Equal(t, 0, hooks.Len(), "hooks run only once")
	})

	t.Run("continues and joins failures", func(t *testing.T) {
		hooks := &Hooks{}
		var executed []string

		hooks.Add("first", func(ctx context.Context) error {
			executed = append(executed, "first")
			return errors.New("flush failed")
		})
		hooks.Add("second", func(ctx context.Context) error {
			executed = append(executed, "second")
			return errors.New("close failed")
		})

		err := hooks.Execute(context.Background(), 0)

		require.Error(t, err)
		assert.ErrorContains(t, err, "first: flush failed")
		assert.ErrorContains(t, err, "second: close failed")
		assert.Equal(t, []string{"second", "first"}, executed)
	})

	t.Run("applies timeout to hooks", func(t *testing.T) {
		hooks := &Hooks{}
		var deadline bool

		hooks.Add("deadline", func(ctx context.Context) error {
			_, deadline = ctx.Deadline()
			return nil
		})

		require.NoError(t, hooks.Execute(context.Background(), time.Second))
		assert.True(t, deadline)
	})
}
