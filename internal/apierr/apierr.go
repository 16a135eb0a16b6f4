// Package apierr defines the failures the moderation backend can report,
// shared by the HTTP client and the components that react to them.
package apierr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned for any 401 response. The credential is
	// no longer trusted and the dashboard must log out.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when the backend does not know the resource.
	ErrNotFound = errors.New("not found")
	// ErrNetwork wraps transport failures where no response was received.
	ErrNetwork = errors.New("backend unreachable")
)

// StatusError is an unexpected non-2xx response.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.Code)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Detail)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == 429
}

// IsUnauthorized reports whether err carries a 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
