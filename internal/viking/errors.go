package viking

import (
	"errors"
	"fmt"
)

// TransportError covers network failures, timeouts, and 5xx responses.
// Retriable: the outbox backs off and re-queues on these.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("viking %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError covers malformed responses: non-JSON bodies, a missing
// envelope, or a 2xx with status != "ok". Not retriable.
type ProtocolError struct {
	Op      string
	Code    string
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("viking %s: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("viking %s: %s", e.Op, e.Message)
}

// IsRetriable reports whether err may succeed on retry.
func IsRetriable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
