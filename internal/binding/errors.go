package binding

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a value cannot serve as a binding.
	ErrTypeMismatch = errors.New("binding type mismatch")

	// ErrUnreachable is returned when the underlying call rejected.
	ErrUnreachable = errors.New("index unreachable")

	// ErrMalformedResponse is returned when a response cannot be mapped onto
	// the typed result.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrSerializationFailed is returned when a vector has no dynamic form.
	ErrSerializationFailed = errors.New("vector serialization failed")

	// ErrNotCallable is returned when the wrapped value does not expose the
	// requested operation as something callable.
	ErrNotCallable = errors.New("operation not callable")
)

// TypeMismatchError reports a value that cannot be cast to a binding type.
type TypeMismatchError struct {
	TypeName string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("binding cannot be cast to the type %s from %s", e.TypeName, e.Actual)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// CallError is returned by every facade operation.
//
// errors.Is matches both the Kind sentinel and the underlying cause.
type CallError struct {
	Op    string
	Kind  error
	cause error
}

func (e *CallError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("vectorize %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("vectorize %s: %v: %v", e.Op, e.Kind, e.cause)
}

func (e *CallError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// Cause returns the diagnostic underneath the error kind.
func (e *CallError) Cause() error { return e.cause }

func callError(op string, kind, cause error) *CallError {
	return &CallError{Op: op, Kind: kind, cause: cause}
}
