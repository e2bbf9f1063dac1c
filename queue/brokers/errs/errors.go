package errs

import (
	"fmt"
)

// ErrCouldNotUnmarshaTaskSignature ...
type ErrCouldNotUnmarshaTaskSignature struct {
	msg    []byte
	reason string
}

// Error implements the error interface
func (e ErrCouldNotUnmarshaTaskSignature) Error() string {
	return fmt.Sprintf("Could not unmarshal '%s' into a task signature: %v", e.msg, e.reason)
}

// NewErrCouldNotUnmarshaTaskSignature returns new ErrCouldNotUnmarshaTaskSignature instance
func NewErrCouldNotUnmarshaTaskSignature(msg []byte, err error) ErrCouldNotUnmarshaTaskSignature {
	return ErrCouldNotUnmarshaTaskSignature{msg: msg, reason: err.Error()}
}

// ErrBrokerUnavailable is returned from publish attempts which could not reach
// the broker. No message has been enqueued when it is returned.
type ErrBrokerUnavailable struct {
	reason string
}

// Error implements the error interface
func (e ErrBrokerUnavailable) Error() string {
	return fmt.Sprintf("Broker unavailable: %v", e.reason)
}

// NewErrBrokerUnavailable returns new ErrBrokerUnavailable instance
func NewErrBrokerUnavailable(err error) ErrBrokerUnavailable {
	return ErrBrokerUnavailable{reason: err.Error()}
}
