package csrf_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptask/uptask-client/internal/csrf"
)

const tokenEndpoint = "http://api.test/api/auth/csrf-token"

func mockedFetcher(t *testing.T) (csrf.Fetcher, *httpmock.MockTransport) {
	t.Helper()

	mock := httpmock.NewMockTransport()
	fetch, err := csrf.NewHTTPFetcher(&http.Client{Transport: mock}, "http://api.test/api")
	require.NoError(t, err)

	return fetch, mock
}

func TestHTTPFetcher_Success(t *testing.T) {
	fetch, mock := mockedFetcher(t)
	mock.RegisterResponder(http.MethodGet, tokenEndpoint,
		httpmock.NewStringResponder(http.StatusOK, `{"csrfToken":"abc"}`))

	token, err := fetch(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "abc", token)
	assert.Equal(t, 1, mock.GetTotalCallCount())
}

func TestHTTPFetcher_Failures(t *testing.T) {
	tests := []struct {
		name       string
		responder  httpmock.Responder
		statusCode int
		errMsg     string
	}{
		{
			name:       "transport error",
			responder:  httpmock.NewErrorResponder(errors.New("connection reset")),
			statusCode: 0,
			errMsg:     "connection reset",
		},
		{
			name:       "server error with message",
			responder:  httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":"session store down"}`),
			statusCode: http.StatusInternalServerError,
			errMsg:     "session store down",
		},
		{
			name:       "unauthorized without body",
			responder:  httpmock.NewStringResponder(http.StatusUnauthorized, ``),
			statusCode: http.StatusUnauthorized,
			errMsg:     "unexpected response",
		},
		{
			name:       "invalid JSON",
			responder:  httpmock.NewStringResponder(http.StatusOK, `<html>`),
			statusCode: http.StatusOK,
			errMsg:     "not valid JSON",
		},
		{
			name:       "missing token",
			responder:  httpmock.NewStringResponder(http.StatusOK, `{"token":"abc"}`),
			statusCode: http.StatusOK,
			errMsg:     "no csrfToken",
		},
		{
			name:       "token is not a string",
			responder:  httpmock.NewStringResponder(http.StatusOK, `{"csrfToken":42}`),
			statusCode: http.StatusOK,
			errMsg:     "no csrfToken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetch, mock := mockedFetcher(t)
			mock.RegisterResponder(http.MethodGet, tokenEndpoint, tt.responder)

			token, err := fetch(context.Background())

			require.Error(t, err)
			assert.Empty(t, token)

			var fetchErr *csrf.FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.statusCode, fetchErr.StatusCode)
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestHTTPFetcher_InvalidBaseURL(t *testing.T) {
	_, err := csrf.NewHTTPFetcher(nil, "http://[::1")
	assert.ErrorContains(t, err, "invalid token endpoint")
}

func TestFetchError_Status(t *testing.T) {
	status, msg := (&csrf.FetchError{Err: errors.New("x")}).Status()
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "Bad Gateway", msg)

	status, _ = (&csrf.FetchError{StatusCode: http.StatusForbidden, Err: errors.New("x")}).Status()
	assert.Equal(t, http.StatusForbidden, status)
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base     string
		ref      string
		expected string
	}{
		{"http://api.test/api", "auth/csrf-token", "http://api.test/api/auth/csrf-token"},
		{"http://api.test/api/", "/auth/csrf-token", "http://api.test/api/auth/csrf-token"},
		{"http://api.test", "projects/123", "http://api.test/projects/123"},
		{"https://api.test/v1/api", "projects?x=1", "https://api.test/v1/api/projects?x=1"},
	}

	for _, tt := range tests {
		t.Run(tt.base+" "+tt.ref, func(t *testing.T) {
			u, err := csrf.ResolveURL(tt.base, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, u.String())
		})
	}
}
