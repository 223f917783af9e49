package testhelpers

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger sends the global logger's output to the test log for the
// duration of the test, and returns a context carrying it.
func SetupLogger(t *testing.T) context.Context {
	t.Helper()

	previous := log.Logger
	previousDefault := zerolog.DefaultContextLogger

	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger

	t.Cleanup(func() {
		log.Logger = previous
		zerolog.DefaultContextLogger = previousDefault
	})

	return logger.WithContext(context.Background())
}
