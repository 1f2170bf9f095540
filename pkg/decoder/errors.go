package decoder

import (
	"errors"
	"fmt"
)

// ErrMalformedValue is matched by every error returned when a numeric field
// cannot be parsed.
var ErrMalformedValue = errors.New("malformed value")

var errNotFinite = errors.New("value is not finite")

// MalformedValueError describes the field that failed to parse.
type MalformedValueError struct {
	Topic string
	// Sensor is empty for plain payloads.
	Sensor string
	Value  string
	Err    error
}

func (e *MalformedValueError) Error() string {
	if e.Sensor == "" {
		return fmt.Sprintf("topic %q: %v %q: %v", e.Topic, ErrMalformedValue, e.Value, e.Err)
	}
	return fmt.Sprintf("topic %q sensor %q: %v %q: %v", e.Topic, e.Sensor, ErrMalformedValue, e.Value, e.Err)
}

func (e *MalformedValueError) Unwrap() error { return e.Err }

// Is reports true for ErrMalformedValue.
func (e *MalformedValueError) Is(target error) bool { return target == ErrMalformedValue }
