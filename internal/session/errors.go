package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many live sessions")
	ErrUnknownEvent    = errors.New("unknown event type")
	ErrTargetNotFound  = errors.New("event target not found")
	ErrClosed          = errors.New("session closed")
)
