package csrf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultFieldName is the body key the token is sent in.
const DefaultFieldName = "_csrf"

// TokenSource supplies tokens to the transport. *Cache satisfies it.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// Outcome describes what the transport did to an outgoing request.
type Outcome int

const (
	// OutcomeSkipped: the request does not need a token and was not modified.
	OutcomeSkipped Outcome = iota
	// OutcomeInjected: the token was merged into the request body.
	OutcomeInjected
	// OutcomeTokenUnavailable: a token was needed but could not be obtained;
	// the request is sent without it.
	OutcomeTokenUnavailable
	// OutcomeUnsupportedBody: the body is not a JSON object, so the token
	// could not be merged; the request is sent without it.
	OutcomeUnsupportedBody
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeInjected:
		return "injected"
	case OutcomeTokenUnavailable:
		return "token_unavailable"
	case OutcomeUnsupportedBody:
		return "unsupported_body"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Transport is an http.RoundTripper that adds a CSRF token to the JSON body
// of mutating requests to non-public routes.
//
// Token failures never fail the request: it is sent without the token and
// the backend decides whether to reject it.
type Transport struct {
	base      http.RoundTripper
	tokens    TokenSource
	fieldName string
}

type TransportOption func(*Transport)

// WithFieldName overrides the body key used for the token.
func WithFieldName(name string) TransportOption {
	return func(t *Transport) {
		if name != "" {
			t.fieldName = name
		}
	}
}

// NewTransport wraps base, taking tokens from the supplied source. A nil base
// uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, tokens TokenSource, opts ...TransportOption) *Transport {
	initMetrics()

	if base == nil {
		base = http.DefaultTransport
	}

	t := &Transport{
		base:      base,
		tokens:    tokens,
		fieldName: DefaultFieldName,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	prepared, _, err := t.Prepare(req)
	if err != nil {
		return nil, err
	}

	return t.base.RoundTrip(prepared)
}

// Prepare applies the CSRF policy to req and returns the request to send
// along with the outcome. The supplied request is not modified; when the
// body changes a clone is returned. An error is returned only if the
// request body could not be read.
func (t *Transport) Prepare(req *http.Request) (*http.Request, Outcome, error) {
	ctx := req.Context()

	if !RequiresToken(req.Method, req.URL.Path) {
		return req, t.record(ctx, req, OutcomeSkipped, nil), nil
	}

	token, err := t.tokens.GetToken(ctx)
	if err != nil {
		return req, t.record(ctx, req, OutcomeTokenUnavailable, err), nil
	}

	body, err := readBody(req)
	if err != nil {
		return nil, OutcomeSkipped, fmt.Errorf("reading request body: %w", err)
	}

	merged, ok := t.merge(body, token)
	if !ok {
		return withBody(req, body), t.record(ctx, req, OutcomeUnsupportedBody, nil), nil
	}

	prepared := withBody(req, merged)
	if prepared.Header.Get("Content-Type") == "" {
		prepared.Header.Set("Content-Type", "application/json")
	}

	return prepared, t.record(ctx, req, OutcomeInjected, nil), nil
}

// merge sets the token field on a JSON object body, keeping every other
// field. An empty body is treated as an empty object.
func (t *Transport) merge(body []byte, token string) ([]byte, bool) {
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, false
	}

	merged, err := sjson.SetBytes(body, escapePath(t.fieldName), token)
	if err != nil {
		return nil, false
	}

	return merged, true
}

func (t *Transport) record(ctx context.Context, req *http.Request, outcome Outcome, err error) Outcome {
	recordOutcome(ctx, req.Method, outcome)

	l := zerolog.Ctx(ctx)
	switch outcome {
	case OutcomeTokenUnavailable:
		l.Error().Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("csrf: token unavailable, sending request without it")
	case OutcomeUnsupportedBody:
		l.Warn().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("csrf: request body is not a JSON object, sending request without token")
	case OutcomeInjected:
		l.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("csrf: token added to request")
	}

	return outcome
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	defer req.Body.Close()

	return io.ReadAll(req.Body)
}

func withBody(req *http.Request, body []byte) *http.Request {
	clone := req.Clone(req.Context())

	clone.ContentLength = int64(len(body))
	clone.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	if len(body) == 0 {
		clone.Body = http.NoBody
	} else {
		clone.Body = io.NopCloser(bytes.NewReader(body))
	}

	return clone
}

var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	`.`, `\.`,
	`*`, `\*`,
	`?`, `\?`,
	`|`, `\|`,
	`#`, `\#`,
	`@`, `\@`,
	`:`, `\:`,
)

// escapePath makes a body key safe to use as an sjson path.
func escapePath(field string) string {
	return pathEscaper.Replace(field)
}
