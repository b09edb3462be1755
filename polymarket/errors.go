// Copyright (c) 2025 BVK Chaitanya

package polymarket

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is returned for http responses with non-200 status codes.
// Client-side status codes other than timeouts and throttling indicate a
// request the exchange will never accept, so retrying them is pointless.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if len(e.Message) == 0 {
		return fmt.Sprintf("http status %d", e.StatusCode)
	}
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Message)
}

// IsTerminal reports whether err indicates a request that can never succeed,
// as opposed to a transient network or server-side failure.
func IsTerminal(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500
}
