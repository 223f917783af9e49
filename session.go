package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptask/uptask-client/internal/api"
	"github.com/uptask/uptask-client/internal/config"
	"github.com/uptask/uptask-client/internal/csrf"
	"github.com/uptask/uptask-client/internal/observe"
	"github.com/uptask/uptask-client/internal/shutdown"
)

const shutdownTimeout = 10 * time.Second

// session holds the dependencies shared by every command for the life of the
// process.
type session struct {
	cfg    config.Config
	api    *api.Client
	tokens *csrf.Cache
	hooks  shutdown.Hooks
}

// configureSession builds the HTTP stack for the API: telemetry wraps the
// CSRF transport, which wraps a tuned http.Transport. The token fetcher
// shares the cookie jar so the session cookie accompanies token requests.
func configureSession(ctx context.Context, cfg config.Config) (*session, error) {
	s := &session{cfg: cfg}

	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	s.hooks.Add("telemetry", shutdownTelemetry)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar creation failed: %w", err)
	}

	base := configureHTTPTransport(cfg.HTTP)
	s.hooks.AddFunc("http-transport", base.CloseIdleConnections)

	fetchClient := &http.Client{
		Transport: observe.HTTPTransport(base, cfg.Observe),
		Jar:       jar,
		Timeout:   cfg.API.Timeout(),
	}

	fetcher, err := csrf.NewHTTPFetcher(fetchClient, cfg.API.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("csrf token fetcher configuration failed: %w", err)
	}

	s.tokens = csrf.NewCache(fetcher, csrf.WithFetchTimeout(cfg.CSRF.FetchTimeout()))

	apiClient := &http.Client{
		Transport: observe.HTTPTransport(
			csrf.NewTransport(base, s.tokens, csrf.WithFieldName(cfg.CSRF.FieldName)),
			cfg.Observe,
		),
		Jar:     jar,
		Timeout: cfg.API.Timeout(),
	}

	s.api, err = api.New(cfg.API.BaseURL, apiClient, s.tokens)
	if err != nil {
		return nil, fmt.Errorf("api client configuration failed: %w", err)
	}

	return s, nil
}

// login authenticates with the configured credentials.
func (s *session) login(ctx context.Context) error {
	if s.cfg.API.Email == "" || s.cfg.API.Password == "" {
		return fmt.Errorf("UPTASK_EMAIL and UPTASK_PASSWORD must be set")
	}

	_, err := s.api.Login(ctx, api.LoginForm{
		Email:    s.cfg.API.Email,
		Password: s.cfg.API.Password,
	})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	log.Debug().Str("email", s.cfg.API.Email).Msg("logged in")

	return nil
}

// close runs the shutdown hooks on a context that outlives the command's.
func (s *session) close(ctx context.Context) error {
	return s.hooks.Execute(context.WithoutCancel(ctx), shutdownTimeout)
}

func configureHTTPTransport(cfg config.HTTPConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxConnsPerHost = cfg.MaxConnsPerHost

	return transport
}
