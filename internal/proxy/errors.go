package proxy

import (
	"errors"
	"fmt"

	"github.com/deepaksharma/otel-trace-access/internal/attribute"
	"github.com/deepaksharma/otel-trace-access/internal/otlp"
)

var (
	// ErrUnexpectedPageToken is returned by proxies that never issue tokens.
	ErrUnexpectedPageToken = errors.New("unexpected page token")

	// ErrInvalidPageToken is returned for tokens a proxy cannot decode.
	ErrInvalidPageToken = errors.New("invalid page token")
)

// BackendError reports a failure of the backing store. It carries the
// upstream status and code but never connection details.
type BackendError struct {
	Status int
	Code   string
	Title  string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error %d (%s): %s", e.Status, e.Code, e.Title)
}

// IsUserError reports whether err was caused by malformed caller input.
func IsUserError(err error) bool {
	return errors.Is(err, otlp.ErrMalformed) ||
		errors.Is(err, attribute.ErrMalformedFilter) ||
		errors.Is(err, ErrUnexpectedPageToken) ||
		errors.Is(err, ErrInvalidPageToken)
}
