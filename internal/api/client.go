package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/uptask/uptask-client/internal/csrf"
)

// responses larger than this are truncated when read
const maxResponseBytes = 5 << 20

// TokenInvalidator discards a held CSRF token. *csrf.Cache satisfies it.
type TokenInvalidator interface {
	ClearToken()
}

// Client calls the UpTask REST API. The supplied http.Client is expected to
// carry the session cookie jar and the CSRF transport; Client itself only
// reacts to CSRF rejections by invalidating the held token.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  TokenInvalidator
}

// New creates a client for the API at baseURL.
func New(baseURL string, httpClient *http.Client, tokens TokenInvalidator) (*Client, error) {
	if _, err := csrf.ResolveURL(baseURL, ""); err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		tokens:  tokens,
	}, nil
}

// Error is a rejection from the backend. The message is the "error"
// property of the response body when present.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Status returns the backend's status code and message.
func (e *Error) Status() (int, string) {
	return e.StatusCode, e.Message
}

// IsCSRFRejection reports whether the backend refused the request because
// its CSRF token was missing or invalid.
func (e *Error) IsCSRFRejection() bool {
	return e.StatusCode == http.StatusForbidden &&
		strings.Contains(strings.ToLower(e.Message), "csrf")
}

// IsCSRFRejection reports whether err is, or wraps, a CSRF rejection.
func IsCSRFRejection(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsCSRFRejection()
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends a JSON request and decodes the response into out. A nil in sends
// no body; a nil out discards the response. Plain text responses can be
// decoded into a *string.
func (c *Client) do(ctx context.Context, method string, path string, in any, out any) error {
	endpoint, err := csrf.ResolveURL(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("invalid request path %q: %w", path, err)
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	if res.StatusCode >= 400 {
		return c.rejected(ctx, method, endpoint.Path, res.StatusCode, payload)
	}

	return decode(payload, out)
}

func (c *Client) rejected(ctx context.Context, method string, path string, status int, payload []byte) error {
	apiErr := &Error{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Message:    http.StatusText(status),
	}

	var eb errorBody
	if json.Unmarshal(payload, &eb) == nil && eb.Error != "" {
		apiErr.Message = eb.Error
	}

	if apiErr.IsCSRFRejection() && c.tokens != nil {
		zerolog.Ctx(ctx).Warn().
			Str("method", method).
			Str("path", path).
			Msg("csrf: token rejected by backend, clearing cached token")
		c.tokens.ClearToken()
	}

	return apiErr
}

func decode(payload []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	if s, ok := out.(*string); ok && !json.Valid(payload) {
		*s = string(payload)
		return nil
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func pathf(format string, ids ...string) string {
	escaped := make([]any, len(ids))
	for i, id := range ids {
		escaped[i] = url.PathEscape(id)
	}
	return fmt.Sprintf(format, escaped...)
}
