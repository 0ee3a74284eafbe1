// Package errors provides the error classification and wrapping
// conventions used across this repository.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass partitions errors by how callers should react.
type ErrorClass int

const (
	// ErrorTransient marks temporary conditions that may be retried.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid marks bad input or misuse; retrying cannot help.
	ErrorInvalid
	// ErrorFatal marks unrecoverable conditions.
	ErrorFatal
)

// String returns the string representation of ErrorClass.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors raised in this repository.
var (
	// Lifecycle.
	ErrNotStarted     = errors.New("not started")
	ErrAlreadyStarted = errors.New("already started")
	ErrClosed         = errors.New("closed")

	// Connectivity.
	ErrNoConnection = errors.New("no connection available")

	// Configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ClassifiedError carries an error with its classification and the
// component/operation that raised it.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}
	return errors.Is(err, ErrNoConnection)
}

// IsInvalid reports whether err marks bad input or misuse.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrNotStarted) ||
		errors.Is(err, ErrAlreadyStarted)
}

// IsFatal reports whether err is unrecoverable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}
	return errors.Is(err, ErrClosed)
}

// Classify returns the class for err. Unclassified errors default to
// transient so retry loops keep trying unknown failures.
func Classify(err error) ErrorClass {
	switch {
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		return ErrorTransient
	}
}

// Wrap adds standard context to err:
// "component.method: action failed: <err>".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapClass(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{
		Class:     class,
		Err:       Wrap(err, component, method, action),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps err as transient with standard context.
func WrapTransient(err error, component, method, action string) error {
	return wrapClass(ErrorTransient, err, component, method, action)
}

// WrapInvalid wraps err as invalid with standard context.
func WrapInvalid(err error, component, method, action string) error {
	return wrapClass(ErrorInvalid, err, component, method, action)
}

// WrapFatal wraps err as fatal with standard context.
func WrapFatal(err error, component, method, action string) error {
	return wrapClass(ErrorFatal, err, component, method, action)
}
