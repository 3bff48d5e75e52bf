package invite

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("invitation not found")
	ErrNotPending   = errors.New("invitation not pending")
)

// TransitionError reports a respond call against an invitation that already
// reached a different terminal status.
type TransitionError struct {
	ID      string
	Current Status
	Wanted  Status
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invite %s: %v: is %s, cannot become %s", e.ID, ErrNotPending, e.Current, e.Wanted)
}

func (e TransitionError) Unwrap() error { return ErrNotPending }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
