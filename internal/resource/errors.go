package resource

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMethod is returned when an action is declared with a verb
	// other than get, post, patch or delete.
	ErrInvalidMethod = errors.New("invalid action method")
	// ErrUnknownAction is returned by Invoke for a name never added.
	ErrUnknownAction = errors.New("unknown action")
	// ErrUnknownPipe is returned by PipeLink.Child for an unregistered pipe.
	ErrUnknownPipe   = errors.New("unknown pipe")
)

// EnvelopeError reports a list response that does not carry the configured
// collection key.
type EnvelopeError struct {
	Path   string
	Key    string
	Reason string
}

func (e *EnvelopeError) Error() string {
	return fmt.Sprintf("unexpected list envelope from %s: %q %s", e.Path, e.Key, e.Reason)
}
