package otlp

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks user input that cannot be decoded: bad hex ids,
	// badly shaped value envelopes or unexpected field types.
	ErrMalformed = errors.New("malformed input")

	// ErrInvalidated is returned when a single-pass view is iterated again.
	ErrInvalidated = errors.New("view already consumed")
)

// Malformedf returns an error wrapping ErrMalformed.
func Malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
