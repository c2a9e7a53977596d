package runtimeapi

import (
	"errors"
	"fmt"
)

// ErrSessionRejected indicates the Runtime explicitly refused the session
// (expired or revoked). This is terminal: callers should invalidate rather
// than retry.
var ErrSessionRejected = errors.New("session rejected by runtime")

// TransportError wraps a network or HTTP-level failure. Read paths translate
// it into a logged nil result; write paths propagate it so callers can roll
// back optimistic UI.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
