// This command is only used for local testing: it serves a fake UpTask API
// that issues CSRF tokens and enforces them, so the CLI can be exercised
// without the real backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
	"github.com/uptask/uptask-client/internal/shutdown"
	"github.com/uptask/uptask-client/internal/testhelpers"
)

type Config struct {
	Port            int `env:"MOCKAPI_PORT, default=4000"`
	TokenDelayMilli int `env:"MOCKAPI_TOKEN_DELAY_MS, default=0"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := Config{}
	err := envconfig.Process(context.Background(), &cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mock := testhelpers.NewMockAPIServer()
	mock.DelayTokens(time.Duration(cfg.TokenDelayMilli) * time.Millisecond)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mock.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
	}

	var hooks shutdown.Hooks
	hooks.Add("http-server", server.Shutdown)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		if err := hooks.Execute(context.Background(), 10*time.Second); err != nil {
			log.Warn().Err(err).Msg("mock API shutdown incomplete")
		}
	}()

	log.Info().Str("url", fmt.Sprintf("http://localhost:%d/api", cfg.Port)).Msg("mock API listening")

	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("mock API failed")
	}

	<-stopped
}
