package csrf

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTokenUnavailable is returned by the cache when no token could be
// obtained. It wraps the underlying fetch failure.
var ErrTokenUnavailable = errors.New("csrf token unavailable")

// FetchError reports a failed call to the token-issuing endpoint: a
// transport failure, a non-2xx response, or a response without a token.
type FetchError struct {
	// StatusCode is zero when no response was received.
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("csrf token fetch failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("csrf token fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Status supplies the upstream status for callers reporting the failure.
func (e *FetchError) Status() (int, string) {
	if e.StatusCode == 0 {
		return http.StatusBadGateway, http.StatusText(http.StatusBadGateway)
	}
	return e.StatusCode, http.StatusText(e.StatusCode)
}
