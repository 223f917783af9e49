package csrf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// TokenPath is the token-issuing endpoint, relative to the API base URL.
const TokenPath = "auth/csrf-token"

// responses larger than this are not a token response
const maxTokenResponseBytes = 16 << 10

// NewHTTPFetcher returns a Fetcher that calls GET <baseURL>/auth/csrf-token
// with the supplied client and reads the "csrfToken" property of the JSON
// response. The client should share its cookie jar with the API client so
// the token is issued for the same session.
func NewHTTPFetcher(client *http.Client, baseURL string) (Fetcher, error) {
	endpoint, err := ResolveURL(baseURL, TokenPath)
	if err != nil {
		return nil, fmt.Errorf("invalid token endpoint: %w", err)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return "", &FetchError{Err: err}
		}
		req.Header.Set("Accept", "application/json")

		res, err := client.Do(req)
		if err != nil {
			return "", &FetchError{Err: err}
		}
		defer res.Body.Close()

		body, err := io.ReadAll(io.LimitReader(res.Body, maxTokenResponseBytes))
		if err != nil {
			return "", &FetchError{StatusCode: res.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
		}

		if res.StatusCode < 200 || res.StatusCode > 299 {
			return "", &FetchError{StatusCode: res.StatusCode, Err: errors.New(describeFailure(body))}
		}

		if !gjson.ValidBytes(body) {
			return "", &FetchError{StatusCode: res.StatusCode, Err: errors.New("response is not valid JSON")}
		}

		token := gjson.GetBytes(body, "csrfToken")
		if token.Type != gjson.String || token.Str == "" {
			return "", &FetchError{StatusCode: res.StatusCode, Err: errors.New("response has no csrfToken")}
		}

		return token.Str, nil
	}, nil
}

// describeFailure prefers the backend's {"error": "..."} message.
func describeFailure(body []byte) string {
	if msg := gjson.GetBytes(body, "error"); msg.Type == gjson.String && msg.Str != "" {
		return msg.Str
	}
	return "unexpected response"
}

// ResolveURL resolves ref against base, treating base as a directory so that
// any path on the base URL is kept.
func ResolveURL(base string, ref string) (*url.URL, error) {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	b, err := url.Parse(base)
	if err != nil {
		return nil, err
	}

	r, err := url.Parse(strings.TrimPrefix(ref, "/"))
	if err != nil {
		return nil, err
	}

	return b.ResolveReference(r), nil
}
