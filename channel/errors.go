package channel

import (
	"github.com/pkg/errors"
)

var (
	// ErrClosed is returned by PutContext and TakeContext when the channel is
	// closed (and, for takes, drained).
	ErrClosed = errors.New("channel closed")
	// ErrCancelled is returned when a blocking operation's context ends while
	// it is waiting. The context error is kept in the chain.
	ErrCancelled = errors.New("operation cancelled")
	// ErrInvalidOperation is returned by Alt for an op that is neither a take
	// nor a put.
	ErrInvalidOperation = errors.New("invalid alt operation")
)

type cancelError struct {
	cause error
}

func (e *cancelError) Error() string {
	return ErrCancelled.Error() + ": " + e.cause.Error()
}

func (e *cancelError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *cancelError) Unwrap() error {
	return e.cause
}

func cancelled(cause error, op string) error {
	return errors.WithMessage(&cancelError{cause: cause}, op)
}
