package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is wrapped by every InvalidInputError.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidModel is returned by NewModel for inconsistent parameters.
	ErrInvalidModel = errors.New("invalid model")
)

// InvalidInputError reports a record that is not an object.
type InvalidInputError struct {
	// Index of the offending record in the batch, -1 when the batch itself is malformed
	Index  int
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Index < 0 {
		return e.Reason
	}
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

func invalidModel(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidModel, fmt.Sprintf(format, args...))
}
