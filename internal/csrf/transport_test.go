package csrf_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptask/uptask-client/internal/csrf"
)

type staticTokens struct {
	token string
	err   error
	calls atomic.Int32
}

func (s *staticTokens) GetToken(ctx context.Context) (string, error) {
	s.calls.Add(1)
	return s.token, s.err
}

// capturingTransport records what was sent and answers 200.
type capturingTransport struct {
	req  *http.Request
	body string
}

func (c *capturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.req = req
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		c.body = string(b)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Request:    req,
	}, nil
}

func send(t *testing.T, transport http.RoundTripper, method, url, body string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	res, err := transport.RoundTrip(req)
	require.NoError(t, err)
	res.Body.Close()
}

func TestTransport_InjectsTokenIntoNonPublicMutatingRequest(t *testing.T) {
	tokens := &staticTokens{token: "abc"}
	base := &capturingTransport{}
	transport := csrf.NewTransport(base, tokens)

	send(t, transport, http.MethodPatch, "http://api.test/api/projects/123", `{"projectName":"Launch","clientName":"ACME"}`)

	assert.JSONEq(t, `{"projectName":"Launch","clientName":"ACME","_csrf":"abc"}`, base.body)
	assert.Equal(t, int64(len(base.body)), base.req.ContentLength)
	assert.Equal(t, int32(1), tokens.calls.Load())
}

func TestTransport_MutatingMethods(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			tokens := &staticTokens{token: "abc"}
			base := &capturingTransport{}
			transport := csrf.NewTransport(base, tokens)

			send(t, transport, method, "http://api.test/api/projects/123/team", `{"id":"u1"}`)

			assert.JSONEq(t, `{"id":"u1","_csrf":"abc"}`, base.body)
		})
	}
}

func TestTransport_EmptyBodyBecomesTokenObject(t *testing.T) {
	tokens := &staticTokens{token: "abc"}
	base := &capturingTransport{}
	transport := csrf.NewTransport(base, tokens)

	send(t, transport, http.MethodDelete, "http://api.test/api/projects/123", "")

	assert.JSONEq(t, `{"_csrf":"abc"}`, base.body)
	assert.Equal(t, "application/json", base.req.Header.Get("Content-Type"))
}

func TestTransport_ExistingFieldIsOverwritten(t *testing.T) {
	tokens := &staticTokens{token: "fresh"}
	base := &capturingTransport{}
	transport := csrf.NewTransport(base, tokens)

	send(t, transport, http.MethodPost, "http://api.test/api/projects", `{"_csrf":"stale","name":"x"}`)

	assert.JSONEq(t, `{"_csrf":"fresh","name":"x"}`, base.body)
}

func TestTransport_NonMutatingRequestsNeverAskForToken(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			tokens := &staticTokens{token: "abc"}
			base := &capturingTransport{}
			transport := csrf.NewTransport(base, tokens)

			send(t, transport, method, "http://api.test/api/projects", "")

			assert.Equal(t, int32(0), tokens.calls.Load())
			assert.Empty(t, base.body)
		})
	}
}

func TestTransport_PublicRoutesPassThrough(t *testing.T) {
	for _, route := range csrf.PublicRoutes {
		t.Run(route, func(t *testing.T) {
			tokens := &staticTokens{token: "abc"}
			base := &capturingTransport{}
			transport := csrf.NewTransport(base, tokens)

			body := `{"email":"a@b.c","password":"secret"}`
			send(t, transport, http.MethodPost, "http://api.test/api"+route, body)

			assert.Equal(t, body, base.body)
			assert.Equal(t, int32(0), tokens.calls.Load())
		})
	}
}

func TestTransport_TokenFailureStillSendsRequest(t *testing.T) {
	tokens := &staticTokens{err: errors.New("token endpoint down")}
	base := &capturingTransport{}
	transport := csrf.NewTransport(base, tokens)

	body := `{"name":"x"}`
	send(t, transport, http.MethodPost, "http://api.test/api/projects", body)

	require.NotNil(t, base.req, "request must still be sent")
	assert.Equal(t, body, base.body)
}

func TestTransport_NonObjectBodyPassesThrough(t *testing.T) {
	tokens := &staticTokens{token: "abc"}
	base := &capturingTransport{}
	transport := csrf.NewTransport(base, tokens)

	send(t, transport, http.MethodPost, "http://api.test/api/projects", `["a","b"]`)

	assert.Equal(t, `["a","b"]`, base.body)
}

func TestTransport_CustomFieldName(t *testing.T) {
	tokens := &staticTokens{token: "abc"}
	base := &capturingTransport{}
	transport := csrf.NewTransport(base, tokens, csrf.WithFieldName("csrf.token"))

	send(t, transport, http.MethodPost, "http://api.test/api/projects", `{}`)

	assert.JSONEq(t, `{"csrf.token":"abc"}`, base.body)
}

func TestTransport_Prepare(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		tokens   *staticTokens
		expected csrf.Outcome
	}{
		{
			name:     "GET is skipped",
			method:   http.MethodGet,
			path:     "/projects",
			tokens:   &staticTokens{token: "abc"},
			expected: csrf.OutcomeSkipped,
		},
		{
			name:     "login is skipped",
			method:   http.MethodPost,
			path:     "/auth/login",
			body:     `{}`,
			tokens:   &staticTokens{token: "abc"},
			expected: csrf.OutcomeSkipped,
		},
		{
			name:     "project update is injected",
			method:   http.MethodPatch,
			path:     "/projects/123",
			body:     `{}`,
			tokens:   &staticTokens{token: "abc"},
			expected: csrf.OutcomeInjected,
		},
		{
			name:     "token failure is reported",
			method:   http.MethodPost,
			path:     "/projects",
			body:     `{}`,
			tokens:   &staticTokens{err: csrf.ErrTokenUnavailable},
			expected: csrf.OutcomeTokenUnavailable,
		},
		{
			name:     "string body is unsupported",
			method:   http.MethodPut,
			path:     "/projects/1/tasks/2",
			body:     `"text"`,
			tokens:   &staticTokens{token: "abc"},
			expected: csrf.OutcomeUnsupportedBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := csrf.NewTransport(&capturingTransport{}, tt.tokens)

			var reader io.Reader
			if tt.body != "" {
				reader = strings.NewReader(tt.body)
			}
			req, err := http.NewRequest(tt.method, "http://api.test/api"+tt.path, reader)
			require.NoError(t, err)

			prepared, outcome, err := transport.Prepare(req)

			require.NoError(t, err)
			require.NotNil(t, prepared)
			assert.Equal(t, tt.expected, outcome)
			assert.Equal(t, tt.method, prepared.Method)
		})
	}
}

func TestTransport_PrepareDoesNotModifyOriginalRequest(t *testing.T) {
	transport := csrf.NewTransport(&capturingTransport{}, &staticTokens{token: "abc"})

	req, err := http.NewRequest(http.MethodDelete, "http://api.test/api/projects/1", nil)
	require.NoError(t, err)

	prepared, outcome, err := transport.Prepare(req)
	require.NoError(t, err)
	require.Equal(t, csrf.OutcomeInjected, outcome)

	assert.NotSame(t, req, prepared)
	assert.Empty(t, req.Header.Get("Content-Type"))
	assert.Equal(t, int64(0), req.ContentLength)

	body, err := prepared.GetBody()
	require.NoError(t, err)
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"_csrf":"abc"}`, string(b))
}

func TestTransport_WithCache(t *testing.T) {
	fetcher := newGatedFetcher()
	fetcher.open()
	cache := csrf.NewCache(fetcher.fetch)
	base := &capturingTransport{}
	transport := csrf.NewTransport(base, cache)

	send(t, transport, http.MethodPost, "http://api.test/api/projects", `{"a":1}`)
	assert.JSONEq(t, `{"a":1,"_csrf":"token-1"}`, base.body)

	send(t, transport, http.MethodPut, "http://api.test/api/projects/1", `{"a":2}`)
	assert.JSONEq(t, `{"a":2,"_csrf":"token-1"}`, base.body)

	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "skipped", csrf.OutcomeSkipped.String())
	assert.Equal(t, "injected", csrf.OutcomeInjected.String())
	assert.Equal(t, "token_unavailable", csrf.OutcomeTokenUnavailable.String())
	assert.Equal(t, "unsupported_body", csrf.OutcomeUnsupportedBody.String())
}
