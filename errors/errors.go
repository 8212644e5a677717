// Package errors provides the error taxonomy of the container runtime.
// Every failure a client or operator can observe is one of the sentinels below,
// optionally wrapped with component/method context and a handling class.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may succeed when retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors caused by the caller (bad name, dead session, bad args)
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that must stop startup or processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
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

// Definition and startup errors
var (
	ErrDuplicateDefinition = errors.New("duplicate component definition")
	ErrCyclicDependency    = errors.New("cyclic singleton dependency")
	ErrInvalidDefinition   = errors.New("invalid component definition")
	ErrRegistrySealed      = errors.New("component registry is sealed")
	ErrInvalidConfig       = errors.New("invalid configuration")
)

// Invocation errors
var (
	ErrNoSuchSession           = errors.New("no such session")
	ErrConcurrentSessionAccess = errors.New("concurrent access to session")
	ErrConcurrentAccessTimeout = errors.New("concurrent access timeout")
	ErrUnknownComponent        = errors.New("unknown component")
	ErrUnknownOperation        = errors.New("unknown operation")
	ErrWrongKind               = errors.New("operation not supported for component kind")
	ErrOperationNotInView      = errors.New("operation not exposed by view")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrComponentPanic          = errors.New("component panicked")
	ErrNotStarted              = errors.New("container not started")
	ErrShuttingDown            = errors.New("container is shutting down")
)

// Collaborator errors
var (
	ErrNameNotFound = errors.New("name not found")
	ErrDataStore    = errors.New("data store error")
	ErrNotFound     = errors.New("record not found")
	ErrNoConnection = errors.New("no connection available")
	ErrRateLimited  = errors.New("rate limited")
)

// sentinelClasses is consulted in order, so an error wrapping several sentinels
// takes the class of the first listed one.
var sentinelClasses = []struct {
	err   error
	class ErrorClass
}{
	{ErrDuplicateDefinition, ErrorFatal},
	{ErrCyclicDependency, ErrorFatal},
	{ErrInvalidDefinition, ErrorFatal},
	{ErrInvalidConfig, ErrorFatal},
	{ErrComponentPanic, ErrorFatal},
	{ErrRegistrySealed, ErrorInvalid},
	{ErrNoSuchSession, ErrorInvalid},
	{ErrUnknownComponent, ErrorInvalid},
	{ErrUnknownOperation, ErrorInvalid},
	{ErrWrongKind, ErrorInvalid},
	{ErrOperationNotInView, ErrorInvalid},
	{ErrInvalidArgument, ErrorInvalid},
	{ErrNameNotFound, ErrorInvalid},
	{ErrNotFound, ErrorInvalid},
	{ErrConcurrentSessionAccess, ErrorTransient},
	{ErrConcurrentAccessTimeout, ErrorTransient},
	{ErrDataStore, ErrorTransient},
	{ErrNoConnection, ErrorTransient},
	{ErrRateLimited, ErrorTransient},
	{ErrNotStarted, ErrorTransient},
	{ErrShuttingDown, ErrorTransient},
}

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// Is, As and New re-export the standard library helpers so callers only import
// this package for error handling.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Classify returns the handling class of err.
// An explicit ClassifiedError wins; otherwise the first matching sentinel decides.
// Context cancellation is transient. Anything unrecognised is treated as fatal.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTransient
	}

	for _, sc := range sentinelClasses {
		if errors.Is(err, sc.err) {
			return sc.class
		}
	}
	return ErrorFatal
}

// IsTransient checks if an error is transient and may be retried
func IsTransient(err error) bool {
	return err != nil && Classify(err) == ErrorTransient
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	return err != nil && Classify(err) == ErrorFatal
}

// IsInvalid checks if an error is caused by the caller
func IsInvalid(err error) bool {
	return err != nil && Classify(err) == ErrorInvalid
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Newf returns sentinel wrapped with a formatted detail, keeping errors.Is intact.
func Newf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
